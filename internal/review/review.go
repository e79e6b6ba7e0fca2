// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package review renders candidate events as a human-editable document and
// reads them back. The JSON block between StartMarker and EndMarker is the
// only part Parse reads; everything around it is for people.
package review

import (
	"bytes"
	"encoding/json"
	"strings"
	"text/template"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/pdiddy/milestone-engine/pkg/types"
)

const (
	StartMarker = "<!-- milestone-candidates:start -->"
	EndMarker   = "<!-- milestone-candidates:end -->"
)

// Meta describes where the candidates came from.
type Meta struct {
	GeneratedAt time.Time
	Items       int
	StoreFile   string
}

type docData struct {
	Meta
	Events []types.Event
	JSON   string
}

var docTmpl = template.Must(template.New("review").Funcs(template.FuncMap{
	"cell": cell,
	"inc":  func(i int) int { return i + 1 },
	"join": func(v []string) string { return strings.Join(v, ", ") },
	"date": func(t time.Time) string { return t.Format("2006-01-02") },
}).Parse(`# Milestone candidates {{date .GeneratedAt}}

{{len .Events}} candidate events from {{.Items}} newsletter items, not yet in {{.StoreFile}}.
Edit or delete entries in the JSON block at the end, then approve.

| # | Date | Organization | Title | Release | Impact |
|---|------|--------------|-------|---------|--------|
{{range $i, $e := .Events}}| {{inc $i}} | {{$e.Date}} | {{cell $e.Organization}} | {{cell $e.Title}} | {{$e.ReleaseType}} | {{$e.ImpactLevel}} |
{{end}}
## Details
{{range $i, $e := .Events}}
### {{inc $i}}. {{$e.Title}}

- Date: {{$e.Date}} ({{$e.DatePrecision}})
- Organization: {{$e.Organization}}
{{- if $e.ModelFamily}}
- Model family: {{$e.ModelFamily}}
{{- end}}
- Modalities: {{join $e.Modalities}}
- Description: {{$e.Description}}
{{- if $e.Rationale}}
- Rationale: {{$e.Rationale}}
{{- end}}
- Sources:{{range $e.Sources}} [{{.Label}}]({{.URL}}){{end}}
{{end}}
` + StartMarker + "\n```json\n{{.JSON}}\n```\n" + EndMarker + "\n"))

// cell escapes text for a markdown table cell.
func cell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}

// Render builds the review document for events.
func Render(events []types.Event, meta Meta) (string, error) {
	if events == nil {
		events = []types.Event{}
	}
	block, err := json.MarshalIndent(events, "", "  ")
	if err != nil {
		return "", eris.Wrap(err, "encoding candidates")
	}

	var buf bytes.Buffer
	if err := docTmpl.Execute(&buf, docData{Meta: meta, Events: events, JSON: string(block)}); err != nil {
		return "", eris.Wrap(err, "rendering review document")
	}
	return buf.String(), nil
}

// Parse extracts the events from the block between the markers. Elements
// that do not decode as events are dropped and counted; the caller still
// validates the rest. Missing markers or a block that is not a JSON array
// are ErrValidation.
func Parse(doc string) ([]types.Event, int, error) {
	start := strings.Index(doc, StartMarker)
	if start < 0 {
		return nil, 0, eris.Wrap(types.ErrValidation, "review document has no start marker")
	}
	rest := doc[start+len(StartMarker):]
	end := strings.Index(rest, EndMarker)
	if end < 0 {
		return nil, 0, eris.Wrap(types.ErrValidation, "review document has no end marker")
	}

	block := stripFence(rest[:end])
	var elements []json.RawMessage
	if err := json.Unmarshal([]byte(block), &elements); err != nil {
		return nil, 0, eris.Wrapf(types.ErrValidation, "candidate block is not a JSON array: %v", err)
	}

	var (
		events  []types.Event
		skipped int
	)
	for i, el := range elements {
		var e types.Event
		if err := json.Unmarshal(el, &e); err != nil {
			zap.L().Warn("dropping undecodable candidate", zap.Int("element", i), zap.Error(err))
			skipped++
			continue
		}
		events = append(events, e)
	}
	return events, skipped, nil
}

// stripFence removes an optional markdown code fence around the block.
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	} else {
		s = strings.TrimPrefix(s, "```")
	}
	s = strings.TrimSpace(s)
	return strings.TrimSpace(strings.TrimSuffix(s, "```"))
}
