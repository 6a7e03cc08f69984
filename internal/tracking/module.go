// Package tracking serves the open pixel and click redirect embedded in
// nurture emails.
package tracking

import (
	apphttp "leadfunnel_backend/internal/http"
	"leadfunnel_backend/internal/tracking/handler"
	"leadfunnel_backend/internal/tracking/service"
	"leadfunnel_backend/platform/config"
	"leadfunnel_backend/platform/logger"
)

type Module struct {
	handler *handler.Handler
}

func NewModule(store service.SequenceStore, timeline service.Timeline, spawner handler.Spawner, cfg config.TrackingConfig, log *logger.Logger) *Module {
	svc := service.New(store, timeline, cfg.GetSiteBaseURL())
	return &Module{handler: handler.New(svc, spawner, log)}
}

func (m *Module) Name() string {
	return "tracking"
}

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.V1.Group("/track"))
}

var _ apphttp.Module = (*Module)(nil)
