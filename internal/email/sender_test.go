package email

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type emailConfigStub struct {
	enabled  bool
	provider string
	brevoKey string
	smtpHost string
}

func (s emailConfigStub) GetEmailEnabled() bool       { return s.enabled }
func (s emailConfigStub) GetEmailProvider() string    { return s.provider }
func (s emailConfigStub) GetBrevoAPIKey() string      { return s.brevoKey }
func (s emailConfigStub) GetSMTPHost() string         { return s.smtpHost }
func (s emailConfigStub) GetSMTPPort() int            { return 587 }
func (s emailConfigStub) GetSMTPUsername() string     { return "" }
func (s emailConfigStub) GetSMTPPassword() string     { return "" }
func (s emailConfigStub) GetEmailFromName() string    { return "StudioTek" }
func (s emailConfigStub) GetEmailFromAddress() string { return "noreply@studiotek.es" }

func TestNewSenderSelectsProvider(t *testing.T) {
	s, err := NewSender(emailConfigStub{})
	require.NoError(t, err)
	assert.False(t, Available(s))

	s, err = NewSender(emailConfigStub{enabled: true, provider: "brevo", brevoKey: "k"})
	require.NoError(t, err)
	assert.IsType(t, &BrevoSender{}, s)
	assert.True(t, Available(s))

	s, err = NewSender(emailConfigStub{enabled: true, provider: "SMTP", smtpHost: "mail.local"})
	require.NoError(t, err)
	assert.IsType(t, &SMTPSender{}, s)

	_, err = NewSender(emailConfigStub{enabled: true, provider: "brevo"})
	assert.Error(t, err)

	_, err = NewSender(emailConfigStub{enabled: true, provider: "pigeon"})
	assert.Error(t, err)
}

func TestNoopSenderRefuses(t *testing.T) {
	_, err := NoopSender{}.Send(context.Background(), Message{To: "a@b.es"})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestBrevoSenderPostsPayload(t *testing.T) {
	var got brevoEmailRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("api-key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"messageId":"<abc@brevo>"}`))
	}))
	defer srv.Close()

	b := NewBrevoSender("secret", "noreply@studiotek.es", "StudioTek")
	b.endpoint = srv.URL

	id, err := b.Send(context.Background(), Message{To: "ana@example.com", Subject: "Hola", HTML: "<p>x</p>"})
	require.NoError(t, err)
	assert.Equal(t, "<abc@brevo>", id)
	assert.Equal(t, "StudioTek", got.Sender.Name)
	require.Len(t, got.To, 1)
	assert.Equal(t, "ana@example.com", got.To[0].Email)
	assert.Equal(t, "<p>x</p>", got.HTMLContent)
}

func TestBrevoSenderSurfacesFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusPaymentRequired)
	}))
	defer srv.Close()

	b := NewBrevoSender("secret", "noreply@studiotek.es", "StudioTek")
	b.endpoint = srv.URL

	_, err := b.Send(context.Background(), Message{To: "ana@example.com"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 402")
}

func TestSMTPBuildMessage(t *testing.T) {
	s := NewSMTPSender("mail.local", 587, "", "", "noreply@studiotek.es", "StudioTek")
	m, err := s.buildMessage(Message{To: "ana@example.com", Subject: "Hola", HTML: "<p>x</p>"})
	require.NoError(t, err)
	assert.NotEmpty(t, m.GetMessageID())

	_, err = s.buildMessage(Message{To: "not-an-address", Subject: "x"})
	assert.Error(t, err)
}
