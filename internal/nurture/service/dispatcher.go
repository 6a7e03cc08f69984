package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"leadfunnel_backend/internal/email"
	"leadfunnel_backend/internal/nurture/domain"
	"leadfunnel_backend/internal/nurture/repository"
	"leadfunnel_backend/platform/apperr"
	"leadfunnel_backend/platform/logger"
	"leadfunnel_backend/platform/metrics"

	"github.com/google/uuid"
)

const (
	// MaxBatchSize bounds the jobs claimed by one invocation.
	MaxBatchSize      = 50
	defaultJobTimeout = 30 * time.Second
	defaultClaimTTL   = 10 * time.Minute
	// claimMargin covers post-send bookkeeping on top of the job timeout.
	claimMargin       = 30 * time.Second

	eventEmailSent = "email_sent"

	outcomeSent      = "sent"
	outcomeFailed    = "failed"
	outcomeCancelled = "cancelled"
)

var (
	// ErrStoreUnavailable short-circuits a run before any job is touched.
	ErrStoreUnavailable = apperr.Unavailable("DB not configured")
	// ErrMailUnavailable short-circuits a run when no transport is configured.
	ErrMailUnavailable = apperr.Unavailable("Email service not configured")
)

const msgClaimFailed = "Failed to query pending emails"

// JobError reports one job that did not end as sent.
type JobError struct {
	SequenceID uuid.UUID `json:"sequenceId"`
	Error      string    `json:"error"`
}

// RunResult summarizes one dispatcher invocation.
type RunResult struct {
	Processed int
	Sent      int
	Failed    int
	Errors    []JobError
	// Skipped is set when another run held the lock.
	Skipped bool
}

type DispatcherConfig struct {
	SiteBaseURL string
	BatchSize   int
	JobTimeout  time.Duration
	ClaimTTL    time.Duration
}

// Dispatcher sends due nurture jobs.
type Dispatcher struct {
	store    SequenceStore
	leads    LeadReader
	timeline Timeline
	renderer Renderer
	sender   email.Sender
	db       Pinger
	lock     RunLock
	archive  Archiver
	cfg      DispatcherConfig
	log      *logger.Logger
	now      func() time.Time
}

func NewDispatcher(store SequenceStore, leads LeadReader, timeline Timeline, renderer Renderer, sender email.Sender, cfg DispatcherConfig, log *logger.Logger) *Dispatcher {
	if cfg.BatchSize < 1 || cfg.BatchSize > MaxBatchSize {
		cfg.BatchSize = MaxBatchSize
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = defaultJobTimeout
	}
	if cfg.ClaimTTL <= 0 {
		cfg.ClaimTTL = defaultClaimTTL
	}
	// A claim renewed right before a job must outlive that job.
	if cfg.ClaimTTL < cfg.JobTimeout+claimMargin {
		cfg.ClaimTTL = cfg.JobTimeout + claimMargin
	}
	return &Dispatcher{
		store:    store,
		leads:    leads,
		timeline: timeline,
		renderer: renderer,
		sender:   sender,
		cfg:      cfg,
		log:      log,
		now:      time.Now,
	}
}

// SetPinger enables the data store reachability check.
func (d *Dispatcher) SetPinger(p Pinger) { d.db = p }

// SetRunLock enables cross-process run exclusion.
func (d *Dispatcher) SetRunLock(l RunLock) { d.lock = l }

// SetArchiver enables archival of delivered emails.
func (d *Dispatcher) SetArchiver(a Archiver) { d.archive = a }

// Available reports whether a run can start.
func (d *Dispatcher) Available(ctx context.Context) error {
	if d.store == nil {
		return ErrStoreUnavailable
	}
	if d.db != nil {
		if err := d.db.Ping(ctx); err != nil {
			return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
	}
	if !email.Available(d.sender) {
		return ErrMailUnavailable
	}
	return nil
}

// RunDueJobs claims and sends up to one batch of due jobs. A failing job is
// recorded and never stops the rest of the batch. Each claim is renewed right
// before its job runs; a job whose claim was taken over by a later run, or
// cancelled meanwhile, is left alone.
func (d *Dispatcher) RunDueJobs(ctx context.Context) (RunResult, error) {
	if err := d.Available(ctx); err != nil {
		return RunResult{}, err
	}

	log := d.log.WithContext(ctx)

	if d.lock != nil {
		release, ok, err := d.lock.Acquire(ctx, d.cfg.ClaimTTL)
		if err != nil {
			log.Warn("nurture run lock unavailable, continuing on row claims", "error", err)
		} else if !ok {
			log.Info("nurture run skipped, another run in progress")
			return RunResult{Skipped: true}, nil
		} else {
			defer release(context.WithoutCancel(ctx))
		}
	}

	start := d.now()
	claimedAt := d.claimTime()
	jobs, err := d.store.ClaimDue(ctx, repository.ClaimParams{
		Now:         claimedAt,
		StaleBefore: claimedAt.Add(-d.cfg.ClaimTTL),
		Limit:       d.cfg.BatchSize,
	})
	if err != nil {
		return RunResult{}, apperr.Wrap(apperr.KindInternal, msgClaimFailed, err).WithOp("claim due jobs")
	}
	sort.SliceStable(jobs, func(i, j int) bool {
		return jobs[i].ScheduledAt.Before(jobs[j].ScheduledAt)
	})

	var result RunResult
	for _, job := range jobs {
		if !d.renewClaim(ctx, job, claimedAt) {
			continue
		}
		result.Processed++
		outcome, jobErr := d.runJob(ctx, job)
		metrics.RecordNurtureJob(outcome)
		if jobErr == nil {
			result.Sent++
			continue
		}
		result.Failed++
		result.Errors = append(result.Errors, JobError{SequenceID: job.ID, Error: jobErr.Error()})
		log.Warn("nurture job not sent", "sequenceId", job.ID, "outcome", outcome, "error", jobErr)
	}

	metrics.ObserveNurtureRun(d.now().Sub(start))
	log.NurtureRun(result.Processed, result.Sent, result.Failed)
	return result, nil
}

// claimTime is stored as timestamptz, so it is kept at microsecond precision
// to compare equal when read back.
func (d *Dispatcher) claimTime() time.Time {
	return d.now().UTC().Truncate(time.Microsecond)
}

// renewClaim restarts the claim window of a job right before it runs. It
// reports false when the job is no longer this run's to send.
func (d *Dispatcher) renewClaim(ctx context.Context, job repository.Sequence, claimedAt time.Time) bool {
	observed := claimedAt
	if job.ClaimedAt != nil {
		observed = *job.ClaimedAt
	}
	ok, err := d.store.RenewClaim(ctx, job.ID, observed, d.claimTime())
	if err != nil {
		d.log.WithContext(ctx).Error("nurture claim renewal failed", "sequenceId", job.ID, "error", err)
		return false
	}
	if !ok {
		d.log.WithContext(ctx).Info("nurture job no longer claimed by this run", "sequenceId", job.ID)
	}
	return ok
}

// runJob isolates one job: its own timeout, its own panic boundary.
func (d *Dispatcher) runJob(parent context.Context, job repository.Sequence) (outcome string, err error) {
	ctx, cancel := context.WithTimeout(parent, d.cfg.JobTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
			outcome = outcomeFailed
			d.finish(parent, job.ID, outcome, err)
		}
	}()

	outcome, err = d.deliver(ctx, job)
	if err != nil {
		d.finish(parent, job.ID, outcome, err)
	}
	return outcome, err
}

func (d *Dispatcher) finish(ctx context.Context, id uuid.UUID, outcome string, cause error) {
	// The job context may be past its deadline; bookkeeping still has to land.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	var err error
	if outcome == outcomeCancelled {
		err = d.store.MarkCancelled(ctx, id, cause.Error())
	} else {
		err = d.store.MarkFailed(ctx, id, cause.Error())
	}
	if err != nil {
		d.log.DatabaseError("nurture mark "+outcome, err)
	}
}

func (d *Dispatcher) deliver(ctx context.Context, job repository.Sequence) (string, error) {
	lead, err := d.leads.GetLead(ctx, job.LeadID)
	if errors.Is(err, ErrLeadNotFound) {
		return outcomeFailed, fmt.Errorf("lead %s not found", job.LeadID)
	}
	if err != nil {
		return outcomeFailed, err
	}

	if !lead.CommercialAccepted {
		return outcomeCancelled, fmt.Errorf("lead %s has not accepted commercial communications", lead.Email)
	}
	if domain.StopsNurture(lead.Status) {
		return outcomeCancelled, fmt.Errorf("lead %s is %s", lead.ID, lead.Status)
	}

	rendered, err := d.renderer.Render(job.TemplateID, email.Recipient{
		Name:            lead.Name,
		Email:           lead.Email,
		Company:         lead.Company,
		Budget:          lead.Budget,
		ServiceInterest: lead.ServiceInterest,
	})
	if errors.Is(err, email.ErrUnknownTemplate) {
		return outcomeFailed, fmt.Errorf("unknown template: %s", job.TemplateID)
	}
	if err != nil {
		return outcomeFailed, err
	}

	body := RewriteTracking(rendered.HTML, d.cfg.SiteBaseURL, job.ID)
	if _, err := d.sender.Send(ctx, email.Message{To: lead.Email, Subject: rendered.Subject, HTML: body}); err != nil {
		return outcomeFailed, err
	}

	// From here on the email is out; bookkeeping failures are logged, never
	// turned into a failed job that could be resent.
	log := d.log.WithContext(ctx)
	bookkeeping, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := d.store.MarkSent(bookkeeping, job.ID, d.now().UTC()); err != nil {
		log.Error("nurture mark sent failed", "sequenceId", job.ID, "error", err)
	}
	if err := d.timeline.AppendEvent(bookkeeping, job.LeadID, eventEmailSent, map[string]any{
		"step":        job.Step,
		"template_id": job.TemplateID,
		"sequence_id": job.ID.String(),
	}); err != nil {
		log.Error("email_sent event failed", "sequenceId", job.ID, "error", err)
	}
	if d.archive != nil {
		if err := d.archive.Archive(bookkeeping, job.LeadID, job.ID, body); err != nil {
			log.Warn("nurture archive failed", "sequenceId", job.ID, "error", err)
		}
	}
	return outcomeSent, nil
}
