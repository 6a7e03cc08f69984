package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"leadfunnel_backend/internal/email"
	"leadfunnel_backend/internal/nurture/domain"
	"leadfunnel_backend/internal/nurture/repository"
	"leadfunnel_backend/platform/apperr"
	"leadfunnel_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	mu        sync.Mutex
	seqs      map[uuid.UUID]*repository.Sequence
	claimErr  error
	claimCall int
}

func newFakeStore() *fakeStore {
	return &fakeStore{seqs: make(map[uuid.UUID]*repository.Sequence)}
}

func (f *fakeStore) add(leadID uuid.UUID, step int, templateID string, at time.Time) uuid.UUID {
	id := uuid.New()
	f.seqs[id] = &repository.Sequence{
		ID: id, LeadID: leadID, Step: step, TemplateID: templateID,
		ScheduledAt: at, Status: domain.StatusPending,
	}
	return id
}

func (f *fakeStore) status(id uuid.UUID) domain.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.seqs[id].Status
}

func (f *fakeStore) Schedule(_ context.Context, p repository.ScheduleParams) ([]repository.Sequence, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]repository.Sequence, 0, len(p.Steps))
	for _, s := range p.Steps {
		seq := repository.Sequence{
			ID: uuid.New(), LeadID: p.LeadID, Step: s.Number, TemplateID: s.TemplateID,
			ScheduledAt: s.ScheduledAt, Status: domain.StatusPending,
		}
		f.seqs[seq.ID] = &seq
		out = append(out, seq)
	}
	return out, nil
}

// ClaimDue returns rows in map order so the dispatcher has to sort them.
func (f *fakeStore) ClaimDue(_ context.Context, p repository.ClaimParams) ([]repository.Sequence, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.claimCall++
	if f.claimErr != nil {
		return nil, f.claimErr
	}
	var out []repository.Sequence
	for _, s := range f.seqs {
		if len(out) == p.Limit {
			break
		}
		if s.ScheduledAt.After(p.Now) {
			continue
		}
		stale := s.Status == domain.StatusSending && s.ClaimedAt != nil && s.ClaimedAt.Before(p.StaleBefore)
		if s.Status != domain.StatusPending && !stale {
			continue
		}
		now := p.Now
		s.Status = domain.StatusSending
		s.ClaimedAt = &now
		out = append(out, *s)
	}
	return out, nil
}

func (f *fakeStore) RenewClaim(_ context.Context, id uuid.UUID, claimedAt, now time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.seqs[id]
	if s.Status != domain.StatusSending || s.ClaimedAt == nil || !s.ClaimedAt.Equal(claimedAt) {
		return false, nil
	}
	s.ClaimedAt = &now
	return true, nil
}

func (f *fakeStore) MarkSent(_ context.Context, id uuid.UUID, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.seqs[id]
	if s.Status != domain.StatusSending && s.Status != domain.StatusCancelled {
		return nil
	}
	s.Status = domain.StatusSent
	s.SentAt = &at
	return nil
}

func (f *fakeStore) MarkFailed(_ context.Context, id uuid.UUID, reason string) error {
	return f.set(id, domain.StatusFailed, reason)
}

func (f *fakeStore) MarkCancelled(_ context.Context, id uuid.UUID, reason string) error {
	return f.set(id, domain.StatusCancelled, reason)
}

func (f *fakeStore) set(id uuid.UUID, st domain.Status, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.seqs[id]
	s.Status = st
	s.LastError = &reason
	return nil
}

func (f *fakeStore) CancelPendingForLead(_ context.Context, leadID uuid.UUID, reason string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, s := range f.seqs {
		if s.LeadID == leadID && (s.Status == domain.StatusPending || s.Status == domain.StatusSending) {
			s.Status = domain.StatusCancelled
			n++
		}
	}
	return n, nil
}

type fakeLeads map[uuid.UUID]Lead

func (f fakeLeads) GetLead(_ context.Context, id uuid.UUID) (Lead, error) {
	l, ok := f[id]
	if !ok {
		return Lead{}, ErrLeadNotFound
	}
	return l, nil
}

type timelineEntry struct {
	leadID    uuid.UUID
	eventType string
	metadata  map[string]any
}

type fakeTimeline struct {
	mu      sync.Mutex
	entries []timelineEntry
}

func (f *fakeTimeline) AppendEvent(_ context.Context, leadID uuid.UUID, eventType string, metadata map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, timelineEntry{leadID, eventType, metadata})
	return nil
}

type fakeSender struct {
	mu    sync.Mutex
	sent  []email.Message
	fail  map[string]error
	block bool
	// onSend runs before the message is recorded.
	onSend func(email.Message)
}

func (f *fakeSender) Send(ctx context.Context, msg email.Message) (string, error) {
	if f.onSend != nil {
		f.onSend(msg)
	}
	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if err := f.fail[msg.To]; err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
	return "msg-" + msg.To, nil
}

type panicRenderer struct{ Renderer }

func (p panicRenderer) Render(templateID string, to email.Recipient) (email.Rendered, error) {
	if to.Name == "boom" {
		panic("template exploded")
	}
	return p.Renderer.Render(templateID, to)
}

type stubLock struct{ held bool }

func (s *stubLock) Acquire(context.Context, time.Duration) (func(context.Context), bool, error) {
	if s.held {
		return nil, false, nil
	}
	s.held = true
	return func(context.Context) { s.held = false }, true, nil
}

type dispatcherFixture struct {
	store    *fakeStore
	leads    fakeLeads
	timeline *fakeTimeline
	sender   *fakeSender
	d        *Dispatcher
	now      time.Time
}

func newDispatcherFixture(t *testing.T) *dispatcherFixture {
	t.Helper()
	renderer, err := email.NewRenderer()
	require.NoError(t, err)

	f := &dispatcherFixture{
		store:    newFakeStore(),
		leads:    fakeLeads{},
		timeline: &fakeTimeline{},
		sender:   &fakeSender{fail: map[string]error{}},
		now:      time.Date(2025, 5, 10, 9, 0, 0, 0, time.UTC),
	}
	f.d = NewDispatcher(f.store, f.leads, f.timeline, panicRenderer{renderer}, f.sender, DispatcherConfig{
		SiteBaseURL: "https://studiotek.es",
		JobTimeout:  200 * time.Millisecond,
	}, logger.Discard())
	f.d.now = func() time.Time { return f.now }
	return f
}

func (f *dispatcherFixture) lead(name string, consent bool) uuid.UUID {
	id := uuid.New()
	f.leads[id] = Lead{ID: id, Name: name, Email: strings.ToLower(name) + "@example.com", Status: "new", CommercialAccepted: consent}
	return id
}

func TestRunDueJobsMissingLeadDoesNotAbortBatch(t *testing.T) {
	f := newDispatcherFixture(t)
	good := f.lead("Ana", true)
	okJob := f.store.add(good, 2, "case_study", f.now.Add(-time.Hour))
	orphan := f.store.add(uuid.New(), 2, "case_study", f.now.Add(-2*time.Hour))

	res, err := f.d.RunDueJobs(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 2, res.Processed)
	assert.Equal(t, 1, res.Sent)
	assert.Equal(t, 1, res.Failed)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, orphan, res.Errors[0].SequenceID)
	assert.Contains(t, res.Errors[0].Error, "not found")
	assert.Equal(t, domain.StatusSent, f.store.status(okJob))
	assert.Equal(t, domain.StatusFailed, f.store.status(orphan))
}

func TestRunDueJobsSendsWithTrackingAndLogsEvent(t *testing.T) {
	f := newDispatcherFixture(t)
	lead := f.lead("Ana", true)
	id := f.store.add(lead, 3, "roi_proposal", f.now.Add(-time.Minute))

	res, err := f.d.RunDueJobs(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, res.Sent)
	assert.Empty(t, res.Errors)
	require.Len(t, f.sender.sent, 1)
	msg := f.sender.sent[0]
	assert.Equal(t, "ana@example.com", msg.To)
	assert.Equal(t, "Ana, tu estimacion de ahorro con automatizacion", msg.Subject)
	assert.Contains(t, msg.HTML, "https://studiotek.es/api/v1/track/open?sid="+id.String())
	assert.Contains(t, msg.HTML, "https://studiotek.es/api/v1/track/click?sid="+id.String()+"&url=")
	assert.NotContains(t, msg.HTML, "{{")

	require.Len(t, f.timeline.entries, 1)
	entry := f.timeline.entries[0]
	assert.Equal(t, "email_sent", entry.eventType)
	assert.Equal(t, lead, entry.leadID)
	assert.Equal(t, map[string]any{"step": 3, "template_id": "roi_proposal", "sequence_id": id.String()}, entry.metadata)
}

func TestRunDueJobsConsentWithdrawnCancels(t *testing.T) {
	f := newDispatcherFixture(t)
	lead := f.lead("Ana", false)
	id := f.store.add(lead, 2, "case_study", f.now.Add(-time.Minute))

	res, err := f.d.RunDueJobs(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, domain.StatusCancelled, f.store.status(id))
	assert.Contains(t, res.Errors[0].Error, "commercial communications")
	assert.Empty(t, f.sender.sent)
}

func TestRunDueJobsClosedLeadCancels(t *testing.T) {
	f := newDispatcherFixture(t)
	lead := f.lead("Ana", true)
	l := f.leads[lead]
	l.Status = "customer"
	f.leads[lead] = l
	id := f.store.add(lead, 4, "cta_meeting", f.now.Add(-time.Minute))

	_, err := f.d.RunDueJobs(context.Background())

	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, f.store.status(id))
}

func TestRunDueJobsUnknownTemplateFails(t *testing.T) {
	f := newDispatcherFixture(t)
	lead := f.lead("Ana", true)
	id := f.store.add(lead, 5, "newsletter", f.now.Add(-time.Minute))

	res, err := f.d.RunDueJobs(context.Background())

	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, f.store.status(id))
	assert.Equal(t, "unknown template: newsletter", res.Errors[0].Error)
}

func TestRunDueJobsIsolatesSendFailuresPanicsAndTimeouts(t *testing.T) {
	f := newDispatcherFixture(t)
	bounced := f.store.add(f.lead("Bounce", true), 2, "case_study", f.now.Add(-3*time.Hour))
	f.sender.fail["bounce@example.com"] = errors.New("mailbox unavailable")
	boom := f.store.add(f.lead("boom", true), 2, "case_study", f.now.Add(-2*time.Hour))
	ok := f.store.add(f.lead("Ana", true), 2, "case_study", f.now.Add(-time.Hour))

	res, err := f.d.RunDueJobs(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 3, res.Processed)
	assert.Equal(t, 1, res.Sent)
	assert.Equal(t, 2, res.Failed)
	assert.Equal(t, domain.StatusFailed, f.store.status(bounced))
	assert.Equal(t, domain.StatusFailed, f.store.status(boom))
	assert.Equal(t, domain.StatusSent, f.store.status(ok))
}

func TestRunDueJobsPerJobTimeout(t *testing.T) {
	f := newDispatcherFixture(t)
	f.sender.block = true
	id := f.store.add(f.lead("Ana", true), 2, "case_study", f.now.Add(-time.Minute))

	start := time.Now()
	res, err := f.d.RunDueJobs(context.Background())

	require.NoError(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, domain.StatusFailed, f.store.status(id))
}

func TestRunDueJobsProcessesOldestFirst(t *testing.T) {
	f := newDispatcherFixture(t)
	for i := 5; i >= 1; i-- {
		name := string(rune('a' + i))
		f.store.add(f.lead(name, true), 2, "case_study", f.now.Add(-time.Duration(i)*time.Hour))
	}

	_, err := f.d.RunDueJobs(context.Background())

	require.NoError(t, err)
	require.Len(t, f.sender.sent, 5)
	assert.Equal(t, "f@example.com", f.sender.sent[0].To)
	assert.Equal(t, "b@example.com", f.sender.sent[4].To)
}

func TestRunDueJobsRespectsBatchSizeAndFutureJobs(t *testing.T) {
	f := newDispatcherFixture(t)
	f.d.cfg.BatchSize = 2
	lead := f.lead("Ana", true)
	for i := 0; i < 3; i++ {
		f.store.add(lead, 2, "case_study", f.now.Add(-time.Minute))
	}
	future := f.store.add(lead, 3, "roi_proposal", f.now.Add(time.Hour))

	res, err := f.d.RunDueJobs(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 2, res.Processed)
	assert.Equal(t, domain.StatusPending, f.store.status(future))
}

func TestRunDueJobsEmptyBatch(t *testing.T) {
	f := newDispatcherFixture(t)

	res, err := f.d.RunDueJobs(context.Background())

	require.NoError(t, err)
	assert.Equal(t, RunResult{}, res)
}

func TestRunDueJobsUnavailableMailShortCircuits(t *testing.T) {
	f := newDispatcherFixture(t)
	f.d.sender = email.NoopSender{}

	_, err := f.d.RunDueJobs(context.Background())

	assert.ErrorIs(t, err, ErrMailUnavailable)
	assert.Zero(t, f.store.claimCall)
}

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("connection refused") }

func TestRunDueJobsUnavailableStoreShortCircuits(t *testing.T) {
	f := newDispatcherFixture(t)
	f.d.SetPinger(failingPinger{})

	_, err := f.d.RunDueJobs(context.Background())

	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.Zero(t, f.store.claimCall)
}

func TestRunDueJobsSkipsWhenLockHeld(t *testing.T) {
	f := newDispatcherFixture(t)
	lock := &stubLock{held: true}
	f.d.SetRunLock(lock)
	f.store.add(f.lead("Ana", true), 2, "case_study", f.now.Add(-time.Minute))

	res, err := f.d.RunDueJobs(context.Background())

	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Zero(t, f.store.claimCall)

	lock.held = false
	res, err = f.d.RunDueJobs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Sent)
	assert.False(t, lock.held)
}

func TestRunDueJobsClaimErrorSurfaces(t *testing.T) {
	f := newDispatcherFixture(t)
	dbErr := errors.New("db down")
	f.store.claimErr = dbErr

	_, err := f.d.RunDueJobs(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, dbErr)
	assert.Equal(t, apperr.KindInternal, apperr.GetKind(err))
}

func TestRunDueJobsUnavailableErrorsMapToServiceUnavailable(t *testing.T) {
	assert.Equal(t, apperr.KindUnavailable, apperr.GetKind(ErrStoreUnavailable))
	assert.Equal(t, apperr.KindUnavailable, apperr.GetKind(ErrMailUnavailable))

	f := newDispatcherFixture(t)
	f.d.SetPinger(failingPinger{})
	_, err := f.d.RunDueJobs(context.Background())
	assert.Equal(t, apperr.KindUnavailable, apperr.GetKind(err))
}

func TestNewDispatcherCapsBatchSize(t *testing.T) {
	f := newDispatcherFixture(t)
	d := NewDispatcher(f.store, f.leads, f.timeline, f.d.renderer, f.sender, DispatcherConfig{BatchSize: 100}, logger.Discard())
	d.now = func() time.Time { return f.now }
	lead := f.lead("Ana", true)
	for i := 0; i < 80; i++ {
		f.store.add(lead, 2, "case_study", f.now.Add(-time.Minute))
	}

	res, err := d.RunDueJobs(context.Background())

	require.NoError(t, err)
	assert.Equal(t, MaxBatchSize, d.cfg.BatchSize)
	assert.Equal(t, 50, res.Processed)
	assert.Len(t, f.sender.sent, 50)
}

func TestNewDispatcherClaimOutlivesJob(t *testing.T) {
	d := NewDispatcher(newFakeStore(), fakeLeads{}, &fakeTimeline{}, nil, &fakeSender{}, DispatcherConfig{
		JobTimeout: time.Minute,
		ClaimTTL:   40 * time.Second,
	}, logger.Discard())

	assert.Equal(t, time.Minute+claimMargin, d.cfg.ClaimTTL)
}

// A run slow enough to outlast the claim TTL overlaps with the next one; the
// later run takes over the stale claims and every email still goes out once.
func TestRunDueJobsOverlappingRunsSendEachJobOnce(t *testing.T) {
	f := newDispatcherFixture(t)
	f.d.cfg.JobTimeout = time.Minute
	f.d.cfg.ClaimTTL = 3 * time.Minute
	ids := make([]uuid.UUID, 0, 6)
	for i := 6; i >= 1; i-- {
		name := string(rune('a' + i))
		ids = append(ids, f.store.add(f.lead(name, true), 2, "case_study", f.now.Add(-time.Duration(i)*time.Hour)))
	}

	second := NewDispatcher(f.store, f.leads, f.timeline, f.d.renderer, f.sender, f.d.cfg, logger.Discard())
	second.now = func() time.Time { return f.now }

	start := f.now
	var overlap RunResult
	started := false
	f.sender.onSend = func(email.Message) {
		f.now = f.now.Add(50 * time.Second)
		if !started && f.now.Sub(start) >= f.d.cfg.ClaimTTL {
			started = true
			var err error
			overlap, err = second.RunDueJobs(context.Background())
			require.NoError(t, err)
		}
	}

	first, err := f.d.RunDueJobs(context.Background())

	require.NoError(t, err)
	require.True(t, started)
	assert.Equal(t, 2, overlap.Sent)
	assert.Equal(t, 4, first.Sent)
	assert.Equal(t, 4, first.Processed)
	assert.Zero(t, first.Failed)

	require.Len(t, f.sender.sent, 6)
	seen := map[string]int{}
	for _, msg := range f.sender.sent {
		seen[msg.To]++
	}
	for to, n := range seen {
		assert.Equal(t, 1, n, to)
	}
	for _, id := range ids {
		assert.Equal(t, domain.StatusSent, f.store.status(id))
	}
}

func TestRunDueJobsSkipsJobCancelledAfterClaim(t *testing.T) {
	f := newDispatcherFixture(t)
	first := f.store.add(f.lead("Ana", true), 2, "case_study", f.now.Add(-2*time.Hour))
	stoppedLead := f.lead("Bea", true)
	stopped := f.store.add(stoppedLead, 2, "case_study", f.now.Add(-time.Hour))
	f.sender.onSend = func(email.Message) {
		n, err := f.store.CancelPendingForLead(context.Background(), stoppedLead, "lead lost")
		require.NoError(t, err)
		require.EqualValues(t, 1, n)
		f.sender.onSend = nil
	}

	res, err := f.d.RunDueJobs(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, res.Processed)
	assert.Equal(t, 1, res.Sent)
	require.Len(t, f.sender.sent, 1)
	assert.Equal(t, "ana@example.com", f.sender.sent[0].To)
	assert.Equal(t, domain.StatusSent, f.store.status(first))
	assert.Equal(t, domain.StatusCancelled, f.store.status(stopped))
}

type recordingArchive struct {
	keys []string
}

func (r *recordingArchive) Archive(_ context.Context, leadID, seqID uuid.UUID, html string) error {
	r.keys = append(r.keys, leadID.String()+"/"+seqID.String())
	return errors.New("bucket missing")
}

func TestRunDueJobsArchiveFailureKeepsJobSent(t *testing.T) {
	f := newDispatcherFixture(t)
	archive := &recordingArchive{}
	f.d.SetArchiver(archive)
	lead := f.lead("Ana", true)
	id := f.store.add(lead, 2, "case_study", f.now.Add(-time.Minute))

	res, err := f.d.RunDueJobs(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, res.Sent)
	assert.Equal(t, domain.StatusSent, f.store.status(id))
	assert.Equal(t, []string{lead.String() + "/" + id.String()}, archive.keys)
}

func TestSchedulerScheduleAndStop(t *testing.T) {
	store := newFakeStore()
	s := NewScheduler(store, logger.Discard())
	now := time.Date(2025, 5, 10, 9, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	leadID := uuid.New()

	seqs, err := s.ScheduleLead(context.Background(), leadID)
	require.NoError(t, err)
	require.Len(t, seqs, 3)
	assert.Equal(t, now.Add(24*time.Hour), seqs[0].ScheduledAt)
	assert.Equal(t, now.Add(168*time.Hour), seqs[2].ScheduledAt)

	n, err := s.StopLead(context.Background(), leadID, "contacted")
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = s.StopLead(context.Background(), leadID, "lost")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	for _, seq := range seqs {
		assert.Equal(t, domain.StatusCancelled, store.status(seq.ID))
	}
}
