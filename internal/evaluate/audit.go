// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package evaluate

import (
	"time"

	"github.com/pdiddy/milestone-engine/internal/signal"
)

// Audit records every decision of one evaluation run. Promotions can be
// recomputed from it with Reconstruct.
type Audit struct {
	RunID             string            `json:"runId" yaml:"runId"`
	StartedAt         time.Time         `json:"startedAt" yaml:"startedAt"`
	Model             string            `json:"model" yaml:"model"`
	BatchSize         int               `json:"batchSize" yaml:"batchSize"`
	NominationRetries int               `json:"nominationRetries" yaml:"nominationRetries"`
	SkipCorroboration bool              `json:"skipCorroboration" yaml:"skipCorroboration"`
	Events            int               `json:"events" yaml:"events"`
	Batches           []BatchRecord     `json:"batches" yaml:"batches"`
	Candidates        []CandidateRecord `json:"candidates" yaml:"candidates"`
	Promoted          []string          `json:"promoted" yaml:"promoted"`
}

// BatchRecord is the outcome of one nomination batch.
type BatchRecord struct {
	Index     int      `json:"index" yaml:"index"`
	Size      int      `json:"size" yaml:"size"`
	Attempts  int      `json:"attempts" yaml:"attempts"`
	Fallback  bool     `json:"fallback" yaml:"fallback"`
	Error     string   `json:"error,omitempty" yaml:"error,omitempty"`
	Nominated []string `json:"nominated" yaml:"nominated"`
}

// CandidateRecord is the corroboration of one nominee.
type CandidateRecord struct {
	Key      string           `json:"key" yaml:"key"`
	Date     string           `json:"date" yaml:"date"`
	Title    string           `json:"title" yaml:"title"`
	Keyword  string           `json:"keyword" yaml:"keyword"`
	Readings []signal.Reading `json:"readings" yaml:"readings"`
	Promoted bool             `json:"promoted" yaml:"promoted"`
}

// Reconstruct recomputes the promoted keys from the recorded readings
// alone: every candidate when corroboration was skipped, otherwise those
// with at least one error-free reading at or above its threshold.
func (a Audit) Reconstruct() []string {
	var promoted []string
	for _, c := range a.Candidates {
		if a.SkipCorroboration || corroborated(c.Readings) {
			promoted = append(promoted, c.Key)
		}
	}
	return promoted
}

func corroborated(readings []signal.Reading) bool {
	for _, r := range readings {
		if r.Error == "" && r.Value >= r.Threshold {
			return true
		}
	}
	return false
}
