package email

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRenderer(t *testing.T) *Renderer {
	t.Helper()
	r, err := NewRenderer()
	require.NoError(t, err)
	return r
}

func TestRenderNurtureKeepsTrackingPlaceholders(t *testing.T) {
	r := newTestRenderer(t)

	for _, id := range []string{TemplateCaseStudy, TemplateROIProposal, TemplateCTAMeeting} {
		out, err := r.Render(id, Recipient{Name: "Ana", Email: "ana@example.com"})
		require.NoError(t, err, id)
		assert.Contains(t, out.HTML, `src="{{TRACKING_PIXEL_URL}}"`, id)
		assert.Contains(t, out.HTML, `href="{{TRACK_URL:https://studiotek.es/#contact}}"`, id)
	}
}

func TestRenderWelcomeHasNoPixel(t *testing.T) {
	r := newTestRenderer(t)

	out, err := r.Render(TemplateWelcome, Recipient{Name: "Ana", Email: "ana@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "Gracias por contactar con StudioTek - Te respondemos en 24h", out.Subject)
	assert.NotContains(t, out.HTML, "TRACKING_PIXEL_URL")
	assert.Contains(t, out.HTML, "Hola Ana,")
}

func TestRenderSubjects(t *testing.T) {
	r := newTestRenderer(t)
	to := Recipient{Name: "Ana", Email: "ana@example.com"}

	out, err := r.Render(TemplateCaseStudy, to)
	require.NoError(t, err)
	assert.Equal(t, "Como empresas como la tuya ahorran 15h/semana con IA", out.Subject)

	out, err = r.Render(TemplateROIProposal, to)
	require.NoError(t, err)
	assert.Equal(t, "Ana, tu estimacion de ahorro con automatizacion", out.Subject)

	out, err = r.Render(TemplateCTAMeeting, to)
	require.NoError(t, err)
	assert.Equal(t, "Ana, reserva tu llamada estrategica gratuita", out.Subject)
}

func TestRenderUnknownTemplate(t *testing.T) {
	r := newTestRenderer(t)

	_, err := r.Render("newsletter", Recipient{Name: "Ana"})
	assert.ErrorIs(t, err, ErrUnknownTemplate)

	_, err = r.Render(hotLeadTemplate, Recipient{Name: "Ana"})
	assert.ErrorIs(t, err, ErrUnknownTemplate)
	assert.False(t, r.Known(hotLeadTemplate))
}

func TestRenderEscapesLeadInput(t *testing.T) {
	r := newTestRenderer(t)

	out, err := r.Render(TemplateWelcome, Recipient{Name: "<script>x</script>", Email: "a@b.es"})
	require.NoError(t, err)
	assert.NotContains(t, out.HTML, "<script>x</script>")
	assert.Contains(t, out.HTML, "&lt;script&gt;")
}

func TestRenderUnsubscribeCarriesEncodedEmail(t *testing.T) {
	r := newTestRenderer(t)

	out, err := r.Render(TemplateCaseStudy, Recipient{Name: "Ana", Email: "ana+x@example.com"})
	require.NoError(t, err)
	assert.Contains(t, out.HTML, "unsubscribe=ana%2Bx%40example.com")
}

func TestCaseStudySelection(t *testing.T) {
	r := newTestRenderer(t)

	out, err := r.Render(TemplateCaseStudy, Recipient{Name: "Ana", ServiceInterest: "implementacion"})
	require.NoError(t, err)
	assert.Contains(t, out.HTML, "Vitaeon Clinic")

	out, err = r.Render(TemplateCaseStudy, Recipient{Name: "Ana", ServiceInterest: "ia-personalizada"})
	require.NoError(t, err)
	assert.Contains(t, out.HTML, "Cliente StudioTek")
}

func TestEstimateROI(t *testing.T) {
	c, err := LoadCatalog()
	require.NoError(t, err)

	roi := c.EstimateROI("mas-50000")
	assert.Equal(t, ROIEstimate{Investment: 60000, AnnualSavings: 150000, MonthlySavings: 12500, HoursPerWeek: 15}, roi)

	roi = c.EstimateROI("")
	assert.Equal(t, 10000, roi.Investment)
	assert.Equal(t, 25000, roi.AnnualSavings)
	assert.Equal(t, 2083, roi.MonthlySavings)

	roi = c.EstimateROI("unknown-tier")
	assert.Equal(t, 10000, roi.Investment)
}

func TestRenderROIUsesSpanishGrouping(t *testing.T) {
	r := newTestRenderer(t)

	out, err := r.Render(TemplateROIProposal, Recipient{Name: "Ana", Budget: "mas-50000", Company: "Acme"})
	require.NoError(t, err)
	assert.Contains(t, out.HTML, "60.000 EUR")
	assert.Contains(t, out.HTML, "150.000 EUR")
	assert.Contains(t, out.HTML, "12.500 EUR/mes")
	assert.Contains(t, out.HTML, "para Acme")
}

func TestRenderHotLeadAlert(t *testing.T) {
	r := newTestRenderer(t)

	out, err := r.RenderHotLeadAlert(HotLeadAlert{
		Name:            "Ana",
		Email:           "ana@example.com",
		Company:         "Acme",
		Budget:          "mas-50000",
		ServiceInterest: "consultoria",
		Score:           95,
	})
	require.NoError(t, err)
	assert.Equal(t, "HOT LEAD: Ana - Acme (Score: 95)", out.Subject)
	assert.Contains(t, out.HTML, "95/100")
	assert.Contains(t, out.HTML, "Mas de 50.000 EUR")
	assert.Contains(t, out.HTML, "Consultoria Estrategica")
	assert.NotContains(t, out.HTML, "Telefono")
	assert.False(t, strings.Contains(out.HTML, "TRACKING_PIXEL_URL"))

	out, err = r.RenderHotLeadAlert(HotLeadAlert{Name: "Ana", Email: "ana@example.com", Score: 80})
	require.NoError(t, err)
	assert.Equal(t, "HOT LEAD: Ana (Score: 80)", out.Subject)
	assert.Contains(t, out.HTML, "No indicado")
}

func TestParseCatalogRejectsMissingDefault(t *testing.T) {
	_, err := ParseCatalog([]byte("case_studies: {}\n"))
	assert.Error(t, err)
}
