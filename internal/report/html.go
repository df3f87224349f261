package report

import (
	"html/template"
	"io"
	"strings"

	"github.com/shehryarbajwa/cukebrowser/pkg/models"
)

var htmlTemplate = template.Must(template.New("report").Funcs(template.FuncMap{
	"embedURL": embedURL,
	"isImage":  func(e models.Embedding) bool { return strings.HasPrefix(e.MimeType, "image/") },
}).Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: sans-serif; margin: 2rem; }
.passed { color: #2e7d32; } .failed { color: #c62828; } .skipped { color: #757575; }
.scenario { border-left: 4px solid #ccc; margin: 1rem 0; padding-left: 1rem; }
.scenario.failed { border-color: #c62828; } .scenario.passed { border-color: #2e7d32; }
pre { background: #f5f5f5; padding: .5rem; white-space: pre-wrap; }
img { max-width: 100%; border: 1px solid #ddd; }
</style>
</head>
<body>
<h1>{{.Title}}</h1>
<p>{{.Summary.Scenarios}} scenarios:
<span class="passed">{{.Summary.Passed}} passed</span>,
<span class="failed">{{.Summary.Failed}} failed</span>,
<span class="skipped">{{.Summary.Skipped}} skipped</span>
in {{.Summary.DurationMs}}ms. Generated {{.Summary.GeneratedAt.Format "2006-01-02 15:04:05"}}.</p>
{{range .Features}}
<section>
<h2>{{.Keyword}}: {{.Name}}</h2>
<p><code>{{.URI}}</code></p>
{{range .Elements}}{{if ne .Type "background"}}{{$status := .Status}}
<div class="scenario {{$status}}">
<h3>{{.Keyword}}: {{.Name}} <span class="{{$status}}">{{$status}}</span></h3>
<ol>
{{range .Steps}}<li class="{{.Result.Status}}">{{.Keyword}}{{.Name}}
{{if .Result.Error}}<pre>{{.Result.Error}}</pre>{{end}}
{{range .Embeddings}}{{if isImage .}}<img alt="{{.Name}}" src="{{embedURL .}}">{{end}}{{end}}
</li>
{{end}}
</ol>
</div>
{{end}}{{end}}
</section>
{{end}}
</body>
</html>
`))

type htmlData struct {
	Title    string
	Summary  models.RunSummary
	Features []models.Feature
}

// embedURL inlines an image attachment. The data is already base64.
func embedURL(e models.Embedding) template.URL {
	return template.URL("data:" + e.MimeType + ";base64," + e.Data)
}

func renderHTML(w io.Writer, title string, summary models.RunSummary, features []models.Feature) error {
	return htmlTemplate.Execute(w, htmlData{Title: title, Summary: summary, Features: features})
}
