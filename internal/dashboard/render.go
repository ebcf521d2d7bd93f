package dashboard

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/lueurxax/cluster-eval-board/internal/core/domain"
	"github.com/lueurxax/cluster-eval-board/internal/process/evaluation"
)

//go:embed templates/*.html
var templateFS embed.FS

// absentMark is shown wherever a value is missing.
const absentMark = "-"

// Tier colour classes, highest tier first.
var tierClasses = map[domain.Tier]string{
	5: "tier-5",
	4: "tier-4",
	3: "tier-3",
	2: "tier-2",
	1: "tier-1",
}

// Renderer handles HTML template rendering.
type Renderer struct {
	lang       language.Tag
	reportTmpl *template.Template
	errorTmpl  *template.Template
}

// NewRenderer creates a renderer that formats numbers for lang.
// An unparsable tag falls back to English.
func NewRenderer(lang string) (*Renderer, error) {
	tag, err := language.Parse(lang)
	if err != nil {
		tag = language.English
	}

	printer := message.NewPrinter(tag)
	title := cases.Title(tag)

	funcs := template.FuncMap{
		"score": func(s domain.Score) string {
			v, ok := s.Value()
			if !ok {
				return absentMark
			}

			return printer.Sprintf("%.2f", v)
		},
		"tier": func(t domain.Tier) string {
			if !t.Available() {
				return absentMark
			}

			return printer.Sprintf("%d", int(t))
		},
		"tierClass": func(t domain.Tier) string {
			if c, ok := tierClasses[t]; ok {
				return c
			}

			return "tier-none"
		},
		"count": func(n int) string {
			return printer.Sprintf("%d", n)
		},
		"label": func(s string) string {
			return title.String(strings.ReplaceAll(s, "_", " "))
		},
		"metric": func(q *domain.QualitativeEvaluation, name string) domain.Score {
			if q == nil {
				return domain.Absent()
			}

			return q.Metric(name)
		},
		"summaryMetric": func(s domain.ReportSummary, name string) domain.Score {
			return s.Metric(name)
		},
		"cohesion": func(c domain.MergedClusterEvaluation, space domain.Space) domain.Cohesion {
			return c.CohesionFor(space)
		},
		"summaryCohesion": func(s domain.ReportSummary, space domain.Space) domain.CohesionSummary {
			return s.CohesionFor(space)
		},
	}

	reportTmpl, err := template.New("report.html").
		Funcs(funcs).
		ParseFS(templateFS, "templates/report.html")
	if err != nil {
		return nil, fmt.Errorf("parse report template: %w", err)
	}

	errorTmpl, err := template.New("error.html").
		ParseFS(templateFS, "templates/error.html")
	if err != nil {
		return nil, fmt.Errorf("parse error template: %w", err)
	}

	return &Renderer{
		lang:       tag,
		reportTmpl: reportTmpl,
		errorTmpl:  errorTmpl,
	}, nil
}

// ReportViewData contains all data for rendering the report view.
type ReportViewData struct {
	Lang        string
	Evaluation  *evaluation.Evaluation
	Metrics     []string
	Spaces      []domain.Space
	GeneratedAt time.Time
}

// ErrorData contains data for rendering error pages.
type ErrorData struct {
	Lang    string
	Code    int
	Title   string
	Message string
}

// RenderReport renders the merged report view.
func (r *Renderer) RenderReport(w io.Writer, eval *evaluation.Evaluation) error {
	data := &ReportViewData{
		Lang:        r.lang.String(),
		Evaluation:  eval,
		Metrics:     domain.QualitativeMetrics,
		Spaces:      domain.Spaces,
		GeneratedAt: time.Now().UTC(),
	}

	if err := r.reportTmpl.Execute(w, data); err != nil {
		return fmt.Errorf("execute report template: %w", err)
	}

	return nil
}

// RenderError renders an error page.
func (r *Renderer) RenderError(w io.Writer, data *ErrorData) error {
	data.Lang = r.lang.String()

	if err := r.errorTmpl.Execute(w, data); err != nil {
		return fmt.Errorf("execute error template: %w", err)
	}

	return nil
}
