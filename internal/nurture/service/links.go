package service

import (
	"html"
	"net/url"
	"regexp"
	"strings"

	"leadfunnel_backend/internal/email"

	"github.com/google/uuid"
)

var trackURLPattern = regexp.MustCompile(`\{\{TRACK_URL:(.*?)\}\}`)

// OpenTrackingURL is the pixel URL for one sequence.
func OpenTrackingURL(baseURL string, sequenceID uuid.UUID) string {
	return strings.TrimRight(baseURL, "/") + "/api/v1/track/open?sid=" + sequenceID.String()
}

// ClickTrackingURL wraps destination in the click redirect for one sequence.
func ClickTrackingURL(baseURL string, sequenceID uuid.UUID, destination string) string {
	return strings.TrimRight(baseURL, "/") + "/api/v1/track/click?sid=" + sequenceID.String() +
		"&url=" + url.QueryEscape(destination)
}

// RewriteTracking swaps the pixel placeholder and every wrapped link for
// per-sequence tracking URLs.
func RewriteTracking(body, baseURL string, sequenceID uuid.UUID) string {
	body = strings.ReplaceAll(body, email.PixelPlaceholder, OpenTrackingURL(baseURL, sequenceID))
	return trackURLPattern.ReplaceAllStringFunc(body, func(match string) string {
		sub := trackURLPattern.FindStringSubmatch(match)
		return ClickTrackingURL(baseURL, sequenceID, html.UnescapeString(sub[1]))
	})
}
