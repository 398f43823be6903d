package mailer

import (
	"bytes"
	"html/template"
	"strings"

	"formrelay/internal/model"
)

var submissionHTMLTpl = template.Must(template.New("submission").Parse(`<h2>{{ .Title }}</h2>
<table>
{{ range .Fields }}  <tr><td><strong>{{ .Name }}:</strong></td><td>{{ .Value }}</td></tr>
{{ end }}</table>
`))

// RenderSubmission turns a submission into the two body encodings: a plain
// line-per-field block and an HTML table. Field order is preserved and values
// pass through html/template escaping in the HTML variant.
func RenderSubmission(title string, sub model.Submission) (textBody, htmlBody string, err error) {
	text := new(strings.Builder)
	text.WriteString(title + ":\n\n")
	for _, f := range sub {
		text.WriteString(f.Name + ": " + f.Value + "\n")
	}

	data := struct {
		Title  string
		Fields model.Submission
	}{
		Title:  title,
		Fields: sub,
	}
	var buf bytes.Buffer
	if err := submissionHTMLTpl.Execute(&buf, data); err != nil {
		return "", "", err
	}
	return text.String(), buf.String(), nil
}
