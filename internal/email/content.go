package email

import (
	_ "embed"
	"errors"
	"fmt"
	"math"

	"gopkg.in/yaml.v3"
)

//go:embed content.yaml
var contentYAML []byte

const defaultCaseStudy = "default"

// Catalog is the editable copy behind the templates.
type Catalog struct {
	Brand struct {
		Name         string `yaml:"name"`
		Tagline      string `yaml:"tagline"`
		Footer       string `yaml:"footer"`
		ContactEmail string `yaml:"contact_email"`
	} `yaml:"brand"`
	Links struct {
		CTA         string `yaml:"cta"`
		Unsubscribe string `yaml:"unsubscribe"`
		Privacy     string `yaml:"privacy"`
	} `yaml:"links"`
	Subjects      map[string]string    `yaml:"subjects"`
	ROI           ROISettings          `yaml:"roi"`
	BudgetLabels  map[string]string    `yaml:"budget_labels"`
	ServiceLabels map[string]string    `yaml:"service_labels"`
	CaseStudies   map[string]CaseStudy `yaml:"case_studies"`
}

type ROISettings struct {
	Multiplier         float64        `yaml:"multiplier"`
	HoursPerWeek       int            `yaml:"hours_per_week"`
	DefaultBudgetValue int            `yaml:"default_budget_value"`
	BudgetValues       map[string]int `yaml:"budget_values"`
}

type CaseStudy struct {
	Title       string   `yaml:"title"`
	Company     string   `yaml:"company"`
	Metrics     []string `yaml:"metrics"`
	Testimonial string   `yaml:"testimonial"`
}

// ROIEstimate is the savings projection shown in the roi_proposal email.
type ROIEstimate struct {
	Investment     int
	AnnualSavings  int
	MonthlySavings int
	HoursPerWeek   int
}

// LoadCatalog parses the embedded content catalog.
func LoadCatalog() (*Catalog, error) {
	return ParseCatalog(contentYAML)
}

// ParseCatalog parses and checks a catalog document.
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse email content: %w", err)
	}
	if _, ok := c.CaseStudies[defaultCaseStudy]; !ok {
		return nil, errors.New("email content: missing default case study")
	}
	for _, id := range []string{TemplateWelcome, TemplateCaseStudy, TemplateROIProposal, TemplateCTAMeeting} {
		if c.Subjects[id] == "" {
			return nil, fmt.Errorf("email content: missing subject for %s", id)
		}
	}
	if c.ROI.DefaultBudgetValue <= 0 || c.ROI.Multiplier <= 0 {
		return nil, errors.New("email content: roi settings must be positive")
	}
	return &c, nil
}

// CaseStudyFor picks the case study for a service interest, falling back to default.
func (c *Catalog) CaseStudyFor(serviceInterest string) CaseStudy {
	if cs, ok := c.CaseStudies[serviceInterest]; ok && serviceInterest != "" {
		return cs
	}
	return c.CaseStudies[defaultCaseStudy]
}

// EstimateROI projects savings from the lead's budget tier.
func (c *Catalog) EstimateROI(budget string) ROIEstimate {
	value, ok := c.ROI.BudgetValues[budget]
	if !ok || value <= 0 {
		value = c.ROI.DefaultBudgetValue
	}
	annual := int(math.Round(float64(value) * c.ROI.Multiplier))
	return ROIEstimate{
		Investment:     value,
		AnnualSavings:  annual,
		MonthlySavings: int(math.Round(float64(annual) / 12)),
		HoursPerWeek:   c.ROI.HoursPerWeek,
	}
}

// BudgetLabel returns the display label, the raw tier, or "No indicado".
func (c *Catalog) BudgetLabel(budget string) string {
	return label(c.BudgetLabels, budget)
}

// ServiceLabel returns the display label, the raw value, or "No indicado".
func (c *Catalog) ServiceLabel(service string) string {
	return label(c.ServiceLabels, service)
}

func label(labels map[string]string, key string) string {
	if key == "" {
		return "No indicado"
	}
	if v, ok := labels[key]; ok {
		return v
	}
	return key
}
