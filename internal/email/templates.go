package email

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/url"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

//go:embed templates/*.html
var templateFS embed.FS

// Placeholders left in rendered nurture emails. The dispatcher swaps them
// for per-sequence tracking URLs right before sending.
const (
	PixelPlaceholder    = "{{TRACKING_PIXEL_URL}}"
	TrackURLPlaceholder = "{{TRACK_URL:%s}}"
)

// ErrUnknownTemplate is returned for template ids without a template file.
var ErrUnknownTemplate = errors.New("unknown email template")

const hotLeadTemplate = "hot_lead_alert"

var templateFiles = map[string]string{
	TemplateWelcome:     "welcome.html",
	TemplateCaseStudy:   "case_study.html",
	TemplateROIProposal: "roi_proposal.html",
	TemplateCTAMeeting:  "cta_meeting.html",
	hotLeadTemplate:     "hot_lead_alert.html",
}

// Recipient is the lead data the lead-facing templates need.
type Recipient struct {
	Name            string
	Email           string
	Company         string
	Budget          string
	ServiceInterest string
}

// HotLeadAlert is the team notification payload.
type HotLeadAlert struct {
	Name            string
	Email           string
	Company         string
	Phone           string
	Budget          string
	ServiceInterest string
	Message         string
	Score           int
}

// Rendered is a ready-to-send subject and body.
type Rendered struct {
	Subject string
	HTML    string
}

type baseEmailData struct {
	Title          string
	Brand          string
	Tagline        string
	Footer         string
	ContactEmail   string
	UnsubscribeURL string
	PrivacyURL     string
	CTAURL         string
}

type welcomeEmailData struct {
	baseEmailData
	Name string
}

type caseStudyEmailData struct {
	baseEmailData
	Name      string
	CaseStudy CaseStudy
}

type roiProposalEmailData struct {
	baseEmailData
	Name    string
	Company string
	ROI     ROIEstimate
}

type ctaMeetingEmailData struct {
	baseEmailData
	Name string
}

type hotLeadEmailData struct {
	baseEmailData
	Lead         HotLeadAlert
	BudgetLabel  string
	ServiceLabel string
	ReplySubject string
}

// Renderer turns catalog content and lead data into HTML emails.
type Renderer struct {
	catalog   *Catalog
	templates map[string]*template.Template
}

// NewRenderer loads the embedded catalog and parses every template once.
func NewRenderer() (*Renderer, error) {
	catalog, err := LoadCatalog()
	if err != nil {
		return nil, err
	}
	return NewRendererWithCatalog(catalog)
}

func NewRendererWithCatalog(catalog *Catalog) (*Renderer, error) {
	printer := message.NewPrinter(language.Spanish)
	funcs := template.FuncMap{
		"number": func(n int) string { return printer.Sprintf("%d", n) },
		// Tracking markers are emitted as raw HTML so the escaper leaves the
		// braces intact for the dispatcher.
		"trackingPixel": func() template.HTML {
			return template.HTML(`<img src="` + PixelPlaceholder + `" width="1" height="1" alt="" style="display:none;" />`)
		},
		"trackedHref": func(target string) template.HTMLAttr {
			return template.HTMLAttr(`href="` + fmt.Sprintf(TrackURLPlaceholder, template.HTMLEscapeString(target)) + `"`)
		},
	}

	parsed := make(map[string]*template.Template, len(templateFiles))
	for id, file := range templateFiles {
		tmpl, err := template.New("base.html").Funcs(funcs).ParseFS(templateFS, "templates/base.html", "templates/"+file)
		if err != nil {
			return nil, fmt.Errorf("parse email template %s: %w", file, err)
		}
		parsed[id] = tmpl
	}

	return &Renderer{catalog: catalog, templates: parsed}, nil
}

// Catalog exposes the content backing the renderer.
func (r *Renderer) Catalog() *Catalog {
	return r.catalog
}

// Known reports whether templateID can be rendered for a lead.
func (r *Renderer) Known(templateID string) bool {
	if templateID == hotLeadTemplate {
		return false
	}
	_, ok := r.templates[templateID]
	return ok
}

// Render builds a lead-facing email. Nurture templates keep their tracking
// placeholders; the welcome email carries none.
func (r *Renderer) Render(templateID string, to Recipient) (Rendered, error) {
	if !r.Known(templateID) {
		return Rendered{}, fmt.Errorf("%w: %q", ErrUnknownTemplate, templateID)
	}
	subject, ok := r.catalog.Subject(templateID, to.Name)
	if !ok {
		return Rendered{}, fmt.Errorf("%w: no subject for %q", ErrUnknownTemplate, templateID)
	}

	base := r.base(subject, to.Email)
	var data any
	switch templateID {
	case TemplateWelcome:
		data = welcomeEmailData{baseEmailData: base, Name: to.Name}
	case TemplateCaseStudy:
		data = caseStudyEmailData{baseEmailData: base, Name: to.Name, CaseStudy: r.catalog.CaseStudyFor(to.ServiceInterest)}
	case TemplateROIProposal:
		data = roiProposalEmailData{baseEmailData: base, Name: to.Name, Company: to.Company, ROI: r.catalog.EstimateROI(to.Budget)}
	case TemplateCTAMeeting:
		data = ctaMeetingEmailData{baseEmailData: base, Name: to.Name}
	}

	html, err := r.execute(templateID, data)
	if err != nil {
		return Rendered{}, err
	}
	return Rendered{Subject: subject, HTML: html}, nil
}

// RenderHotLeadAlert builds the internal team notification.
func (r *Renderer) RenderHotLeadAlert(alert HotLeadAlert) (Rendered, error) {
	subject := hotLeadSubject(alert.Name, alert.Company, alert.Score)
	data := hotLeadEmailData{
		baseEmailData: baseEmailData{
			Title:  subject,
			Brand:  r.catalog.Brand.Name,
			Footer: r.catalog.Brand.Name + " Lead Funnel - Notificacion automatica",
		},
		Lead:         alert,
		BudgetLabel:  r.catalog.BudgetLabel(alert.Budget),
		ServiceLabel: r.catalog.ServiceLabel(alert.ServiceInterest),
		ReplySubject: "Re: Tu consulta en " + r.catalog.Brand.Name,
	}
	html, err := r.execute(hotLeadTemplate, data)
	if err != nil {
		return Rendered{}, err
	}
	return Rendered{Subject: subject, HTML: html}, nil
}

func (r *Renderer) base(title, recipient string) baseEmailData {
	return baseEmailData{
		Title:          title,
		Brand:          r.catalog.Brand.Name,
		Tagline:        r.catalog.Brand.Tagline,
		Footer:         r.catalog.Brand.Footer,
		ContactEmail:   r.catalog.Brand.ContactEmail,
		UnsubscribeURL: r.catalog.Links.Unsubscribe + url.QueryEscape(recipient),
		PrivacyURL:     r.catalog.Links.Privacy,
		CTAURL:         r.catalog.Links.CTA,
	}
}

func (r *Renderer) execute(id string, data any) (string, error) {
	tmpl := r.templates[id]
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "email", data); err != nil {
		return "", fmt.Errorf("execute email template %s: %w", id, err)
	}
	return buf.String(), nil
}
