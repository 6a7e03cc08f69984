package handler

import (
	"context"
	"encoding/base64"
	"net/http"

	"leadfunnel_backend/internal/tracking/service"
	"leadfunnel_backend/platform/logger"

	"github.com/gin-gonic/gin"
)

// transparent 1x1 PNG
var pixelPNG, _ = base64.StdEncoding.DecodeString("iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mNk+M9QDwADhgGAWjR9awAAAABJRU5ErkJggg==")

// Spawner runs work after the response is written.
type Spawner interface {
	Submit(ctx context.Context, name string, fn func(ctx context.Context) error) error
}

// Handler serves the open pixel and click redirect. The response never
// depends on the tracking write.
type Handler struct {
	svc     *service.Service
	spawner Spawner
	log     *logger.Logger
}

func New(svc *service.Service, spawner Spawner, log *logger.Logger) *Handler {
	return &Handler{svc: svc, spawner: spawner, log: log}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/open", h.Open)
	rg.GET("/click", h.Click)
}

func (h *Handler) Open(c *gin.Context) {
	if sid := c.Query("sid"); sid != "" {
		h.spawn(c, "track.open", func(ctx context.Context) error {
			return h.svc.RecordOpen(ctx, sid)
		})
	}

	noStore(c)
	c.Data(http.StatusOK, "image/png", pixelPNG)
}

func (h *Handler) Click(c *gin.Context) {
	destination := h.svc.Destination(c.Query("url"))
	if sid := c.Query("sid"); sid != "" {
		h.spawn(c, "track.click", func(ctx context.Context) error {
			return h.svc.RecordClick(ctx, sid, destination)
		})
	}

	noStore(c)
	c.Redirect(http.StatusFound, destination)
}

func (h *Handler) spawn(c *gin.Context, name string, fn func(ctx context.Context) error) {
	if err := h.spawner.Submit(c.Request.Context(), name, fn); err != nil {
		h.log.WithContext(c.Request.Context()).Warn("tracking task dropped", "task", name, "error", err)
	}
}

func noStore(c *gin.Context) {
	c.Header("Cache-Control", "no-store, no-cache, must-revalidate, proxy-revalidate")
	c.Header("Pragma", "no-cache")
	c.Header("Expires", "0")
}
