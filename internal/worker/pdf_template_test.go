package worker

import (
	"strings"
	"testing"

	"cvforge/internal/resume"
)

func TestRenderExportHTML(t *testing.T) {
	snapshot := &resume.RenderSnapshot{
		FullName:    "Ada Lovelace",
		ContactInfo: "ada@example.com",
		Bio:         "Pioneer",
		Theme:       "default",
		Spacing:     "compact",
		Sections: []resume.RenderSection{
			{
				Name: "Experience",
				Jobs: []resume.RenderJob{
					{
						Title:     "Engineer",
						Company:   "Analytical Engines",
						StartDate: "1840",
						EndDate:   "1852",
						Bullets:   []string{"Wrote the first program"},
					},
				},
			},
		},
	}

	html, err := renderExportHTML(snapshot)
	if err != nil {
		t.Fatalf("render: %v", err)
	}

	for _, want := range []string{
		"Ada Lovelace",
		"ada@example.com",
		"Experience",
		"Analytical Engines",
		"Wrote the first program",
		`data-spacing="compact"`,
		`data-theme="default"`,
	} {
		if !strings.Contains(html, want) {
			t.Errorf("rendered html missing %q", want)
		}
	}
}

func TestRenderExportHTMLEscapesContent(t *testing.T) {
	snapshot := &resume.RenderSnapshot{
		FullName: `<script>alert("x")</script>`,
	}
	html, err := renderExportHTML(snapshot)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if strings.Contains(html, "<script>alert") {
		t.Errorf("content not escaped")
	}
}
