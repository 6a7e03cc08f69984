// Package leads provides the lead management bounded context module.
// This file defines the module that encapsulates all leads setup and route registration.
package leads

import (
	"leadfunnel_backend/internal/events"
	apphttp "leadfunnel_backend/internal/http"
	"leadfunnel_backend/internal/leads/handler"
	"leadfunnel_backend/internal/leads/repository"
	"leadfunnel_backend/internal/leads/service"
	"leadfunnel_backend/internal/leads/transport"
	"leadfunnel_backend/platform/logger"
	"leadfunnel_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the leads bounded context module implementing http.Module.
type Module struct {
	repo    *repository.Repository
	service *service.Service
	public  *handler.PublicHandler
	admin   *handler.Handler
}

// NewModule creates and initializes the leads module with all its dependencies.
func NewModule(pool *pgxpool.Pool, eventBus events.Bus, spawner service.Spawner, val *validator.Validator, log *logger.Logger) (*Module, error) {
	if err := transport.RegisterValidations(val); err != nil {
		return nil, err
	}

	repo := repository.New(pool)
	svc := service.New(repo, eventBus, spawner, log)

	return &Module{
		repo:    repo,
		service: svc,
		public:  handler.NewPublicHandler(svc, val),
		admin:   handler.New(svc, val),
	}, nil
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "leads"
}

// Repository exposes the lead store for adapters in other contexts.
func (m *Module) Repository() *repository.Repository {
	return m.repo
}

// Service returns the lead service for external use.
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes mounts leads routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	publicGroup := ctx.V1.Group("/leads")
	publicGroup.Use(ctx.SubmissionLimiter.RateLimit())
	m.public.RegisterRoutes(publicGroup)

	m.admin.RegisterRoutes(ctx.Admin.Group("/leads"))
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
