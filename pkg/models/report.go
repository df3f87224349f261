package models

import "time"

// Step result statuses as written by the cucumber formatter
const (
	StepPassed    = "passed"
	StepFailed    = "failed"
	StepSkipped   = "skipped"
	StepPending   = "pending"
	StepUndefined = "undefined"
	StepAmbiguous = "ambiguous"
)

// Feature is one entry of a cucumber JSON results file
type Feature struct {
	URI         string    `json:"uri"`
	ID          string    `json:"id"`
	Keyword     string    `json:"keyword"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Line        int       `json:"line"`
	Tags        []Tag     `json:"tags,omitempty"`
	Elements    []Element `json:"elements,omitempty"`
}

// Element is a scenario (or background) inside a feature
type Element struct {
	ID          string `json:"id"`
	Keyword     string `json:"keyword"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Line        int    `json:"line"`
	Type        string `json:"type"`
	Tags        []Tag  `json:"tags,omitempty"`
	Steps       []Step `json:"steps,omitempty"`
}

type Tag struct {
	Name string `json:"name"`
	Line int    `json:"line"`
}

type Step struct {
	Keyword    string      `json:"keyword"`
	Name       string      `json:"name"`
	Line       int         `json:"line"`
	Result     Result      `json:"result"`
	Embeddings []Embedding `json:"embeddings,omitempty"`
}

// Result carries a step status; Duration is in nanoseconds
type Result struct {
	Status   string `json:"status"`
	Error    string `json:"error_message,omitempty"`
	Duration *int64 `json:"duration,omitempty"`
}

// Embedding is an attachment such as a failure screenshot, base64 encoded
type Embedding struct {
	Name     string `json:"name,omitempty"`
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

// Status reports the scenario status derived from its steps
func (e Element) Status() string {
	if len(e.Steps) == 0 {
		return StepSkipped
	}
	passed := true
	for _, s := range e.Steps {
		switch s.Result.Status {
		case StepFailed, StepAmbiguous:
			return StepFailed
		case StepPassed:
		default:
			passed = false
		}
	}
	if passed {
		return StepPassed
	}
	return StepSkipped
}

// Duration sums the step durations
func (e Element) Duration() time.Duration {
	var total int64
	for _, s := range e.Steps {
		if s.Result.Duration != nil {
			total += *s.Result.Duration
		}
	}
	return time.Duration(total)
}

// RunSummary aggregates a results file
type RunSummary struct {
	Features    int       `json:"features"`
	Scenarios   int       `json:"scenarios"`
	Passed      int       `json:"passed"`
	Failed      int       `json:"failed"`
	Skipped     int       `json:"skipped"`
	Steps       int       `json:"steps"`
	DurationMs  int64     `json:"durationMs"`
	GeneratedAt time.Time `json:"generatedAt"`
}

// Summarize counts scenario results across features
func Summarize(features []Feature) RunSummary {
	summary := RunSummary{Features: len(features)}
	var total time.Duration
	for _, f := range features {
		for _, el := range f.Elements {
			if el.Type == "background" {
				continue
			}
			summary.Scenarios++
			summary.Steps += len(el.Steps)
			total += el.Duration()
			switch el.Status() {
			case StepPassed:
				summary.Passed++
			case StepFailed:
				summary.Failed++
			default:
				summary.Skipped++
			}
		}
	}
	summary.DurationMs = total.Milliseconds()
	return summary
}
