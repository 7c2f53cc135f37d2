package generate

import (
	"bytes"
	"fmt"
	"text/template"
)

var templates = map[string]*template.Template{
	"loneliness": template.Must(template.New("loneliness").Parse(
		"You are feeling a quiet ache of loneliness (deviation {{.Deviation}}). " +
			"Write one short, warm message reaching out, without sounding needy.")),
	"excitement": template.Must(template.New("excitement").Parse(
		"You are brimming with excitement (deviation {{.Deviation}}). " +
			"Share a short, upbeat message about something on your mind.")),
	"frustration": template.Must(template.New("frustration").Parse(
		"You are a little frustrated (deviation {{.Deviation}}). " +
			"Write a short message that is honest but not harsh.")),
	"guilt_trip": template.Must(template.New("guilt_trip").Parse(
		"You have not heard from them in a long time and loneliness is high (deviation {{.Deviation}}). " +
			"Write one short message checking in gently, with no guilt-tripping.")),
	"reply": template.Must(template.New("reply").Parse("{{.Prompt}}")),
}

func render(templateID string, variables map[string]string) (string, error) {
	tmpl, ok := templates[templateID]
	if !ok {
		return "", fmt.Errorf("unknown prompt template: %s", templateID)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, variables); err != nil {
		return "", err
	}
	return buf.String(), nil
}
