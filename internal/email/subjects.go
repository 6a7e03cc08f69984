package email

import (
	"fmt"
	"strings"
)

// Template ids stored on email_sequences.template_id.
const (
	TemplateWelcome     = "welcome"
	TemplateCaseStudy   = "case_study"
	TemplateROIProposal = "roi_proposal"
	TemplateCTAMeeting  = "cta_meeting"
)

const hotLeadSubjectFmt = "HOT LEAD: %s%s (Score: %d)"

// Subject resolves the subject line for a template, substituting {name}.
func (c *Catalog) Subject(templateID, name string) (string, bool) {
	subject, ok := c.Subjects[templateID]
	if !ok {
		return "", false
	}
	return strings.Replace(subject, "{name}", name, 1), true
}

func hotLeadSubject(name, company string, score int) string {
	suffix := ""
	if company != "" {
		suffix = " - " + company
	}
	return fmt.Sprintf(hotLeadSubjectFmt, name, suffix, score)
}
