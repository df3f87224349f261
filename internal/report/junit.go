package report

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/shehryarbajwa/cukebrowser/pkg/models"
)

type junitSuites struct {
	XMLName  xml.Name     `xml:"testsuites"`
	Name     string       `xml:"name,attr"`
	Tests    int          `xml:"tests,attr"`
	Failures int          `xml:"failures,attr"`
	Skipped  int          `xml:"skipped,attr"`
	Time     string       `xml:"time,attr"`
	Suites   []junitSuite `xml:"testsuite"`
}

type junitSuite struct {
	Name      string      `xml:"name,attr"`
	Tests     int         `xml:"tests,attr"`
	Failures  int         `xml:"failures,attr"`
	Skipped   int         `xml:"skipped,attr"`
	Time      string      `xml:"time,attr"`
	Timestamp string      `xml:"timestamp,attr,omitempty"`
	Cases     []junitCase `xml:"testcase"`
}

type junitCase struct {
	Name      string        `xml:"name,attr"`
	ClassName string        `xml:"classname,attr"`
	Time      string        `xml:"time,attr"`
	Failure   *junitFailure `xml:"failure,omitempty"`
	Skipped   *struct{}     `xml:"skipped,omitempty"`
}

type junitFailure struct {
	Message string `xml:"message,attr"`
	Type    string `xml:"type,attr"`
	Body    string `xml:",chardata"`
}

func seconds(ms int64) string {
	return fmt.Sprintf("%.3f", float64(ms)/1000)
}

func buildJUnit(summary models.RunSummary, features []models.Feature) junitSuites {
	out := junitSuites{
		Name:     "cukebrowser",
		Tests:    summary.Scenarios,
		Failures: summary.Failed,
		Skipped:  summary.Skipped,
		Time:     seconds(summary.DurationMs),
	}
	for _, f := range features {
		suite := junitSuite{Name: f.Name}
		if !summary.GeneratedAt.IsZero() {
			suite.Timestamp = summary.GeneratedAt.UTC().Format("2006-01-02T15:04:05")
		}
		var suiteMs int64
		for _, el := range f.Elements {
			if el.Type == "background" {
				continue
			}
			ms := el.Duration().Milliseconds()
			suiteMs += ms
			tc := junitCase{Name: el.Name, ClassName: f.Name, Time: seconds(ms)}
			switch el.Status() {
			case models.StepFailed:
				suite.Failures++
				tc.Failure = failureOf(el)
			case models.StepPassed:
			default:
				suite.Skipped++
				tc.Skipped = &struct{}{}
			}
			suite.Tests++
			suite.Cases = append(suite.Cases, tc)
		}
		suite.Time = seconds(suiteMs)
		out.Suites = append(out.Suites, suite)
	}
	return out
}

func failureOf(el models.Element) *junitFailure {
	for _, s := range el.Steps {
		if s.Result.Status == models.StepFailed || s.Result.Status == models.StepAmbiguous {
			msg := s.Result.Error
			if msg == "" {
				msg = s.Result.Status
			}
			return &junitFailure{
				Message: firstLine(msg),
				Type:    s.Result.Status,
				Body:    strings.TrimSpace(s.Keyword) + " " + s.Name + "\n" + msg,
			}
		}
	}
	return &junitFailure{Message: "failed", Type: models.StepFailed}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func renderJUnit(w io.Writer, summary models.RunSummary, features []models.Feature) error {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(buildJUnit(summary, features)); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}
