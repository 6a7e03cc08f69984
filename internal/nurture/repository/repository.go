package repository

import (
	"context"
	"errors"
	"time"

	"leadfunnel_backend/internal/nurture/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("email sequence not found")

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Sequence is one scheduled email of a lead's nurture series.
type Sequence struct {
	ID          uuid.UUID
	LeadID      uuid.UUID
	Step        int
	TemplateID  string
	ScheduledAt time.Time
	SentAt      *time.Time
	ClaimedAt   *time.Time
	Opened      bool
	Clicked     bool
	Status      domain.Status
	LastError   *string
	CreatedAt   time.Time
}

type ScheduleParams struct {
	LeadID uuid.UUID
	Steps  []domain.ScheduledStep
}

type ClaimParams struct {
	Now time.Time
	// StaleBefore releases sending claims older than this instant.
	StaleBefore time.Time
	Limit       int
}

const sequenceSelectCols = `
	id, lead_id, step, template_id, scheduled_at, sent_at, claimed_at,
	opened, clicked, status, last_error, created_at`

func scanSequence(row pgx.Row) (Sequence, error) {
	var s Sequence
	var status string
	if err := row.Scan(
		&s.ID, &s.LeadID, &s.Step, &s.TemplateID, &s.ScheduledAt, &s.SentAt, &s.ClaimedAt,
		&s.Opened, &s.Clicked, &status, &s.LastError, &s.CreatedAt,
	); err != nil {
		return Sequence{}, err
	}
	s.Status = domain.Status(status)
	return s, nil
}

// Schedule inserts every step in one transaction so a lead never ends up
// with a partial series.
func (r *Repository) Schedule(ctx context.Context, params ScheduleParams) ([]Sequence, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	batch := &pgx.Batch{}
	for _, step := range params.Steps {
		batch.Queue(`
			INSERT INTO email_sequences (id, lead_id, step, template_id, scheduled_at, status)
			VALUES ($1, $2, $3, $4, $5, 'pending')
			RETURNING`+sequenceSelectCols,
			uuid.New(), params.LeadID, step.Number, step.TemplateID, step.ScheduledAt,
		)
	}

	results := tx.SendBatch(ctx, batch)
	out := make([]Sequence, 0, len(params.Steps))
	for range params.Steps {
		seq, err := scanSequence(results.QueryRow())
		if err != nil {
			_ = results.Close()
			return nil, err
		}
		out = append(out, seq)
	}
	if err := results.Close(); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return out, nil
}

// ClaimDue moves up to Limit due jobs to sending and returns them. Rows locked
// by a concurrent claimer are skipped rather than waited on.
func (r *Repository) ClaimDue(ctx context.Context, params ClaimParams) ([]Sequence, error) {
	rows, err := r.pool.Query(ctx, `
		WITH due AS (
			SELECT id FROM email_sequences
			WHERE scheduled_at <= $1
			  AND (status = 'pending' OR (status = 'sending' AND claimed_at < $2))
			ORDER BY scheduled_at ASC
			LIMIT $3
			FOR UPDATE SKIP LOCKED
		)
		UPDATE email_sequences s
		SET status = 'sending', claimed_at = $1
		FROM due
		WHERE s.id = due.id
		RETURNING`+prefixed("s", sequenceSelectCols),
		params.Now, params.StaleBefore, params.Limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Sequence, 0, params.Limit)
	for rows.Next() {
		seq, err := scanSequence(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, seq)
	}
	return out, rows.Err()
}

// RenewClaim moves the claim of a job forward to now, provided the row is
// still sending under the claim the caller observed.
func (r *Repository) RenewClaim(ctx context.Context, id uuid.UUID, claimedAt, now time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE email_sequences
		SET claimed_at = $3
		WHERE id = $1 AND status = 'sending' AND claimed_at = $2
	`, id, claimedAt, now)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// MarkSent records a delivered job. A cancellation that landed while the
// email was in flight is overridden, since the email is out.
func (r *Repository) MarkSent(ctx context.Context, id uuid.UUID, sentAt time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE email_sequences
		SET status = 'sent', sent_at = $2, last_error = NULL
		WHERE id = $1 AND status IN ('sending', 'cancelled')
	`, id, sentAt)
	return err
}

func (r *Repository) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	return r.finish(ctx, id, domain.StatusFailed, reason)
}

func (r *Repository) MarkCancelled(ctx context.Context, id uuid.UUID, reason string) error {
	return r.finish(ctx, id, domain.StatusCancelled, reason)
}

func (r *Repository) finish(ctx context.Context, id uuid.UUID, status domain.Status, reason string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE email_sequences
		SET status = $2, last_error = $3
		WHERE id = $1 AND status IN ('pending', 'sending')
	`, id, string(status), reason)
	return err
}

// CancelPendingForLead cancels every not-yet-sent job of a lead, including
// claimed ones that have not been renewed for delivery yet.
func (r *Repository) CancelPendingForLead(ctx context.Context, leadID uuid.UUID, reason string) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE email_sequences
		SET status = 'cancelled', last_error = $2
		WHERE lead_id = $1 AND status IN ('pending', 'sending')
	`, leadID, reason)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Sequence, error) {
	seq, err := scanSequence(r.pool.QueryRow(ctx, `
		SELECT`+sequenceSelectCols+`
		FROM email_sequences
		WHERE id = $1
	`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Sequence{}, ErrNotFound
	}
	return seq, err
}

func (r *Repository) ListByLead(ctx context.Context, leadID uuid.UUID) ([]Sequence, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT`+sequenceSelectCols+`
		FROM email_sequences
		WHERE lead_id = $1
		ORDER BY step ASC
	`, leadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Sequence
	for rows.Next() {
		seq, err := scanSequence(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, seq)
	}
	return out, rows.Err()
}

// MarkOpenedIf sets opened and the given status only while the row is still
// in the status the caller observed. It reports whether the row changed.
func (r *Repository) MarkOpenedIf(ctx context.Context, id uuid.UUID, observed, next domain.Status) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE email_sequences
		SET opened = TRUE, status = $3
		WHERE id = $1 AND status = $2
	`, id, string(observed), string(next))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// MarkClicked records the strongest engagement signal unconditionally.
func (r *Repository) MarkClicked(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE email_sequences
		SET opened = TRUE, clicked = TRUE, status = 'clicked'
		WHERE id = $1
	`, id)
	return err
}
