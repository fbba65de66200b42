package export

import (
	"bytes"
	"html/template"
	"strings"
	"time"
)

var brochureTemplate *template.Template

func init() {
	funcMap := template.FuncMap{
		"lower": strings.ToLower,
		"formatDate": func(t time.Time, layout string) string {
			return t.Format(layout)
		},
	}

	brochureTemplate = template.Must(template.New("brochure").Funcs(funcMap).Parse(brochureHTML))
}

// BrochureData holds data for brochure template rendering
type BrochureData struct {
	Title        string
	PriceLabel   string
	Location     string
	PropertyType string
	Bedrooms     string
	Bathrooms    string
	Area         string
	Description  string
	Features     []string
	Images       []string
	AvailableOn  string
	OwnerName    string
	OwnerEmail   string
	OwnerPhone   string
	Featured     bool
	GeneratedAt  time.Time
}

// RenderBrochureHTML renders the brochure template with provided data
func RenderBrochureHTML(data BrochureData) (string, error) {
	var buf bytes.Buffer
	if err := brochureTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const brochureHTML = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>{{.Title}}</title>
  <style>
    body { font-family: Arial, sans-serif; line-height: 1.5; color: #222; margin: 0; }
    .hero { border-bottom: 3px solid #177e5c; padding-bottom: 0.75rem; margin-bottom: 1rem; }
    h1 { margin: 0 0 0.25rem 0; font-size: 1.6rem; }
    .price { color: #177e5c; font-size: 1.3rem; font-weight: bold; }
    .location { color: #666; }
    .badge { display: inline-block; background: #177e5c; color: white; font-size: 0.75rem; padding: 2px 8px; border-radius: 3px; margin-left: 0.5rem; vertical-align: middle; }
    .facts { display: flex; gap: 2rem; margin: 1rem 0; }
    .fact { font-size: 0.95rem; }
    .fact strong { display: block; font-size: 1.1rem; }
    .photos { display: flex; flex-wrap: wrap; gap: 0.5rem; margin: 1rem 0; }
    .photos img { width: 48%; height: auto; border-radius: 4px; }
    h2 { font-size: 1.1rem; border-bottom: 1px solid #ddd; padding-bottom: 0.25rem; margin-top: 1.5rem; }
    .features { columns: 2; padding-left: 1.2rem; margin: 0.5rem 0; }
    .contact { background: #f4f8f6; padding: 1rem; border-radius: 4px; margin-top: 1.5rem; }
    .footer { margin-top: 2rem; font-size: 0.75rem; color: #999; }
  </style>
</head>
<body>
  <div class="hero">
    <h1>{{.Title}}{{if .Featured}}<span class="badge">Featured</span>{{end}}</h1>
    {{if .PriceLabel}}<div class="price">{{.PriceLabel}}</div>{{end}}
    {{if .Location}}<div class="location">{{.Location}}</div>{{end}}
  </div>

  <div class="facts">
    {{if .PropertyType}}<div class="fact"><strong>{{.PropertyType}}</strong>Type</div>{{end}}
    {{if .Bedrooms}}<div class="fact"><strong>{{.Bedrooms}}</strong>Bedrooms</div>{{end}}
    {{if .Bathrooms}}<div class="fact"><strong>{{.Bathrooms}}</strong>Bathrooms</div>{{end}}
    {{if .Area}}<div class="fact"><strong>{{.Area}}</strong>Area</div>{{end}}
    {{if .AvailableOn}}<div class="fact"><strong>{{.AvailableOn}}</strong>Available</div>{{end}}
  </div>

  {{if .Images}}
  <div class="photos">
    {{range .Images}}<img src="{{.}}" alt="">{{end}}
  </div>
  {{end}}

  {{if .Description}}
  <h2>About this property</h2>
  <p>{{.Description}}</p>
  {{end}}

  {{if .Features}}
  <h2>Features</h2>
  <ul class="features">
    {{range .Features}}<li>{{.}}</li>{{end}}
  </ul>
  {{end}}

  {{if .OwnerName}}
  <div class="contact">
    <strong>Contact</strong><br>
    {{.OwnerName}}{{if .OwnerEmail}} &middot; {{.OwnerEmail}}{{end}}{{if .OwnerPhone}} &middot; {{.OwnerPhone}}{{end}}
  </div>
  {{end}}

  <div class="footer">Generated by Rentfolio on {{formatDate .GeneratedAt "Jan 2, 2006"}}</div>
</body>
</html>`
