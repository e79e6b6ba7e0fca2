// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// MonthBucket holds the events of one calendar month, sorted by date.
type MonthBucket struct {
	Month  string  `json:"month" yaml:"month"`
	Events []Event `json:"events" yaml:"events"`
}

// Timeline is the canonical dataset persisted as a single JSON file. Months
// is kept as an ordered array so the ascending month order survives
// serialization.
type Timeline struct {
	// AsOf is the date of the last mutating operation and doubles as the
	// incremental ingestion cursor.
	AsOf string `json:"asOf" yaml:"asOf"`

	RangeStart        string `json:"rangeStart" yaml:"rangeStart"`
	RangeEndInclusive string `json:"rangeEndInclusive" yaml:"rangeEndInclusive"`

	// ContextBefore holds pre-range baseline events. It is never targeted
	// by insertion.
	ContextBefore []Event `json:"contextBefore,omitempty" yaml:"contextBefore,omitempty"`

	Months []MonthBucket `json:"months" yaml:"months"`
}

// Clone returns a deep copy of the timeline.
func (t *Timeline) Clone() *Timeline {
	if t == nil {
		return nil
	}
	c := &Timeline{
		AsOf:              t.AsOf,
		RangeStart:        t.RangeStart,
		RangeEndInclusive: t.RangeEndInclusive,
	}
	if t.ContextBefore != nil {
		c.ContextBefore = make([]Event, len(t.ContextBefore))
		for i, e := range t.ContextBefore {
			c.ContextBefore[i] = e.Clone()
		}
	}
	c.Months = make([]MonthBucket, len(t.Months))
	for i, b := range t.Months {
		events := make([]Event, len(b.Events))
		for j, e := range b.Events {
			events[j] = e.Clone()
		}
		c.Months[i] = MonthBucket{Month: b.Month, Events: events}
	}
	return c
}
