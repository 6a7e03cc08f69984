// Package nurture schedules and delivers the follow-up email series for
// leads that opted into commercial communication.
package nurture

import (
	"context"

	"leadfunnel_backend/internal/email"
	"leadfunnel_backend/internal/events"
	apphttp "leadfunnel_backend/internal/http"
	"leadfunnel_backend/internal/nurture/domain"
	"leadfunnel_backend/internal/nurture/handler"
	"leadfunnel_backend/internal/nurture/repository"
	"leadfunnel_backend/internal/nurture/service"
	"leadfunnel_backend/platform/config"
	"leadfunnel_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module wires the nurture scheduler, dispatcher and cron endpoint.
type Module struct {
	repo       *repository.Repository
	scheduler  *service.Scheduler
	dispatcher *service.Dispatcher
	cron       *handler.CronHandler
	sequences  *handler.SequenceHandler
	log        *logger.Logger
}

// NewModule builds the nurture context on top of the shared pool.
func NewModule(pool *pgxpool.Pool, leads service.LeadReader, timeline service.Timeline, renderer service.Renderer, sender email.Sender, cfg config.NurtureConfig, log *logger.Logger) *Module {
	repo := repository.New(pool)
	dispatcher := service.NewDispatcher(repo, leads, timeline, renderer, sender, service.DispatcherConfig{
		SiteBaseURL: cfg.GetSiteBaseURL(),
		BatchSize:   cfg.GetNurtureBatchSize(),
		JobTimeout:  cfg.GetNurtureJobTimeout(),
		ClaimTTL:    cfg.GetNurtureClaimTTL(),
	}, log)
	if pool != nil {
		dispatcher.SetPinger(pool)
	}

	return &Module{
		repo:       repo,
		scheduler:  service.NewScheduler(repo, log),
		dispatcher: dispatcher,
		cron:       handler.NewCronHandler(dispatcher, log),
		sequences:  handler.NewSequenceHandler(repo, log),
		log:        log,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "nurture"
}

// Repository exposes the sequence store for the tracking adapters.
func (m *Module) Repository() *repository.Repository {
	return m.repo
}

// Dispatcher returns the dispatcher for the scheduler worker.
func (m *Module) Dispatcher() *service.Dispatcher {
	return m.dispatcher
}

// SetRunLock enables the Redis run lock.
func (m *Module) SetRunLock(lock service.RunLock) { m.dispatcher.SetRunLock(lock) }

// EmailArchive stores delivered emails and links back to them.
type EmailArchive interface {
	service.Archiver
	handler.ArchiveLinker
}

// SetArchive enables archival of delivered emails and archive links in the
// admin sequence listing.
func (m *Module) SetArchive(archive EmailArchive) {
	m.dispatcher.SetArchiver(archive)
	m.sequences.SetArchiveLinker(archive)
}

// RegisterRoutes mounts the cron endpoint and the admin sequence listing.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.cron.RegisterRoutes(ctx.Cron)
	m.sequences.RegisterRoutes(ctx.Admin.Group("/leads"))
}

// RegisterHandlers subscribes to the lead lifecycle events.
func (m *Module) RegisterHandlers(bus events.Bus) {
	bus.Subscribe(events.LeadCreated{}.EventName(), m)
	bus.Subscribe(events.LeadStatusChanged{}.EventName(), m)
}

// Handle reacts to lead events. Failures are logged and swallowed so lead
// capture and operator actions never fail because of nurture.
func (m *Module) Handle(ctx context.Context, event events.Event) error {
	switch e := event.(type) {
	case events.LeadCreated:
		if !domain.Eligible(e.Classification, e.CommercialAccepted) {
			return nil
		}
		if _, err := m.scheduler.ScheduleLead(ctx, e.LeadID); err != nil {
			m.log.WithContext(ctx).Error("nurture schedule failed", "leadId", e.LeadID, "error", err)
		}
	case events.LeadStatusChanged:
		if _, err := m.scheduler.StopLead(ctx, e.LeadID, e.To); err != nil {
			m.log.WithContext(ctx).Error("nurture stop failed", "leadId", e.LeadID, "error", err)
		}
	}
	return nil
}

var _ apphttp.Module = (*Module)(nil)
