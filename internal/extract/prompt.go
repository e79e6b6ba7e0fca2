// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/pdiddy/milestone-engine/pkg/types"
)

// systemPromptTmpl holds the extraction policy. Known names keep spelling
// consistent with events already in the dataset.
var systemPromptTmpl = template.Must(template.New("system").Funcs(tmplFuncs).Parse(`You maintain a curated timeline of AI milestones. You read AI newsletter items and extract the concrete, dated events they report.

Extract an event only when the item reports something that happened: a model, product, API, or feature release; open-weights publication; a research result; or a benchmark result. Skip opinion, funding news, hiring, rumors, tutorials, and events with no identifiable organization.

For each event return an object with these fields:
- date: the release date as YYYY-MM-DD, or YYYY-MM or YYYY when only that much is known
- datePrecision: "day", "month", or "year", matching the date
- title: a short headline naming the release (e.g. "GPT-4o released")
- organization: the organization responsible
- modelFamily: the model line, if any (e.g. "Claude", "Llama"); omit otherwise
- modalities: one or more of {{.Modalities}}
- releaseType: one of {{.ReleaseTypes}}
- description: one or two sentences on what was released
- rationale: one sentence on why it matters
- impactLevel: "high" or "low", your initial estimate
- sources: an array of {"label", "url"} pairs; use the item link when nothing more specific is given
- item: the number of the item the event came from
{{if .Organizations}}
Known organizations, use these spellings when they apply: {{join .Organizations}}
{{end}}{{if .Families}}
Known model families, use these spellings when they apply: {{join .Families}}
{{end}}
Respond with a JSON array of event objects and nothing else. Respond with [] when an item reports no events.

Example response:
[{"date": "2024-05-13", "datePrecision": "day", "title": "GPT-4o released", "organization": "OpenAI", "modelFamily": "GPT-4", "modalities": ["text", "image", "audio"], "releaseType": "model", "description": "OpenAI released GPT-4o, a natively multimodal model across text, vision, and audio.", "rationale": "First frontier model with real-time voice at GPT-4 quality.", "impactLevel": "high", "sources": [{"label": "OpenAI", "url": "https://openai.com/index/hello-gpt-4o/"}], "item": 1}]
`))

// itemsTmpl renders one or more newsletter items as the user message.
var itemsTmpl = template.Must(template.New("items").Funcs(tmplFuncs).Parse(`{{range $i, $it := .}}## Item {{inc $i}}: {{$it.Title}}
Link: {{$it.Link}}
{{if not $it.Published.IsZero}}Published: {{$it.Published.Format "2006-01-02"}}
{{end}}
{{$it.Text}}

{{end}}`))

var tmplFuncs = template.FuncMap{
	"join": func(v []string) string { return strings.Join(v, ", ") },
	"inc":  func(i int) int { return i + 1 },
}

// promptData feeds the system prompt template.
type promptData struct {
	Modalities    string
	ReleaseTypes  string
	Organizations []string
	Families      []string
}

// renderSystemPrompt executes the system prompt with the known names.
func renderSystemPrompt(organizations, families []string) (string, error) {
	var releaseTypes []string
	for _, rt := range types.ReleaseTypes {
		releaseTypes = append(releaseTypes, fmt.Sprintf("%q", rt))
	}
	var modalities []string
	for _, m := range types.Modalities {
		modalities = append(modalities, fmt.Sprintf("%q", m))
	}

	var buf bytes.Buffer
	err := systemPromptTmpl.Execute(&buf, promptData{
		Modalities:    strings.Join(modalities, ", "),
		ReleaseTypes:  strings.Join(releaseTypes, ", "),
		Organizations: organizations,
		Families:      families,
	})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}

// renderItems executes the items template.
func renderItems(items []types.Item) (string, error) {
	var buf bytes.Buffer
	if err := itemsTmpl.Execute(&buf, items); err != nil {
		return "", err
	}
	return buf.String(), nil
}
