package worker

import (
	"bytes"
	"fmt"
	"html/template"

	"cvforge/internal/resume"
)

// exportTemplate 是 PDF 渲染的 Go HTML 模板。
// 主题与间距通过 data 属性交给样式层，与前端打印样式保持一致。
const exportTemplate = `
<!DOCTYPE html>
<html lang="en" data-theme="{{.Theme}}" data-spacing="{{.Spacing}}">
<head>
    <meta charset="UTF-8">
    <style>
        body {
            margin: 0;
            padding: 0;
            font-family: 'Inter', 'Helvetica Neue', Arial, sans-serif;
            color: #1a1a1a;
            background: white;
        }
        .page {
            width: 794px; /* A4 @ 96 DPI */
            margin: 0 auto;
            padding: 48px;
            box-sizing: border-box;
        }
        .resume-header {
            border-bottom: 2px solid #333;
            margin-bottom: 16px;
            padding-bottom: 8px;
        }
        .resume-header h1 { margin: 0 0 4px 0; font-size: 24pt; }
        .resume-header p { margin: 2px 0; font-size: 10pt; }
        .section-name {
            font-size: 13pt;
            text-transform: uppercase;
            letter-spacing: 0.06em;
            margin: 18px 0 6px 0;
        }
        .job { margin-bottom: 10px; }
        .job h3 { margin: 0; font-size: 11pt; }
        .job .meta { margin: 1px 0 4px 0; font-size: 9pt; color: #555; }
        ul.bullets { margin: 0 0 0 18px; padding: 0; font-size: 10pt; }
        ul.bullets li { margin-bottom: 3px; }
        [data-spacing="compact"] .job { margin-bottom: 6px; }
        [data-spacing="compact"] ul.bullets li { margin-bottom: 1px; }
        [data-spacing="relaxed"] .job { margin-bottom: 16px; }
        [data-spacing="relaxed"] ul.bullets li { margin-bottom: 6px; }
    </style>
</head>
<body>
    <div class="page">
        <div class="resume-header">
            {{if .FullName}}<h1>{{.FullName}}</h1>{{end}}
            {{if .ContactInfo}}<p>{{.ContactInfo}}</p>{{end}}
            {{if .Bio}}<p>{{.Bio}}</p>{{end}}
        </div>
        {{range .Sections}}
        <div class="resume-section">
            <h2 class="section-name">{{.Name}}</h2>
            {{range .Jobs}}
            <div class="job">
                <h3>{{.Title}}{{if .Company}} · {{.Company}}{{end}}</h3>
                {{if or .StartDate .EndDate}}<p class="meta">{{.StartDate}}{{if .EndDate}} – {{.EndDate}}{{end}}</p>{{end}}
                <ul class="bullets">
                    {{range .Bullets}}<li>{{.}}</li>{{end}}
                </ul>
            </div>
            {{end}}
        </div>
        {{end}}
    </div>
</body>
</html>`

var parsedExportTemplate = template.Must(template.New("export").Parse(exportTemplate))

// renderExportHTML 将渲染快照展开为最终的静态 HTML。
func renderExportHTML(snapshot *resume.RenderSnapshot) (string, error) {
	var buf bytes.Buffer
	if err := parsedExportTemplate.Execute(&buf, snapshot); err != nil {
		return "", fmt.Errorf("execute export template: %w", err)
	}
	return buf.String(), nil
}
