package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound       = errors.New("lead not found")
	ErrStatusConflict = errors.New("lead status changed concurrently")
)

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type Lead struct {
	ID                 uuid.UUID
	Name               string
	Email              string
	Company            *string
	Phone              *string
	Budget             *string
	Message            *string
	ServiceInterest    *string
	Source             string
	Score              int
	Classification     string
	Status             string
	PrivacyAccepted    bool
	CommercialAccepted bool
	Metadata           map[string]any
	CreatedAt          time.Time
	UpdatedAt          time.Time
	LastContactedAt    *time.Time
}

type CreateLeadParams struct {
	Name               string
	Email              string
	Company            *string
	Phone              *string
	Budget             *string
	Message            *string
	ServiceInterest    *string
	Source             string
	Score              int
	Classification     string
	Status             string
	PrivacyAccepted    bool
	CommercialAccepted bool
	Metadata           map[string]any
}

// UpdateLeadParams is a partial update. Nil fields are left untouched and
// Metadata is shallow-merged into the stored object.
type UpdateLeadParams struct {
	Status          *string
	Classification  *string
	LastContactedAt *time.Time
	Metadata        map[string]any
}

// ConditionalStatusParams moves a lead only while it still has From.
type ConditionalStatusParams struct {
	ID             uuid.UUID
	From           string
	To             string
	TouchContacted bool
	At             time.Time
}

type ListParams struct {
	Status         *string
	Classification *string
	Source         *string
	Search         string
	Offset         int
	Limit          int
	SortBy         string
	SortOrder      string
}

const leadSelectCols = `
	id, name, email, company, phone, budget, message, service_interest, source,
	score, classification, status, privacy_accepted, commercial_accepted, metadata,
	created_at, updated_at, last_contacted_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLead(s rowScanner) (Lead, error) {
	var lead Lead
	var rawMetadata []byte
	if err := s.Scan(
		&lead.ID, &lead.Name, &lead.Email, &lead.Company, &lead.Phone, &lead.Budget, &lead.Message,
		&lead.ServiceInterest, &lead.Source, &lead.Score, &lead.Classification, &lead.Status,
		&lead.PrivacyAccepted, &lead.CommercialAccepted, &rawMetadata,
		&lead.CreatedAt, &lead.UpdatedAt, &lead.LastContactedAt,
	); err != nil {
		return Lead{}, err
	}
	lead.Metadata = map[string]any{}
	if len(rawMetadata) > 0 {
		_ = json.Unmarshal(rawMetadata, &lead.Metadata)
	}
	return lead, nil
}

func mapRowErr(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func (r *Repository) Create(ctx context.Context, params CreateLeadParams) (Lead, error) {
	metadata := params.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return Lead{}, err
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO leads (
			id, name, email, company, phone, budget, message, service_interest, source,
			score, classification, status, privacy_accepted, commercial_accepted, metadata
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING`+leadSelectCols,
		uuid.New(), params.Name, params.Email, params.Company, params.Phone, params.Budget, params.Message,
		params.ServiceInterest, params.Source, params.Score, params.Classification, params.Status,
		params.PrivacyAccepted, params.CommercialAccepted, metadataJSON,
	)
	return scanLead(row)
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Lead, error) {
	lead, err := scanLead(r.pool.QueryRow(ctx, `SELECT`+leadSelectCols+` FROM leads WHERE id = $1`, id))
	if err != nil {
		return Lead{}, mapRowErr(err)
	}
	return lead, nil
}

func (r *Repository) Update(ctx context.Context, id uuid.UUID, params UpdateLeadParams) (Lead, error) {
	setClauses := []string{"updated_at = now()"}
	args := []interface{}{id}
	argIdx := 2

	addSet := func(column string, value interface{}) {
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", column, argIdx))
		args = append(args, value)
		argIdx++
	}

	if params.Status != nil {
		addSet("status", *params.Status)
	}
	if params.Classification != nil {
		addSet("classification", *params.Classification)
	}
	if params.LastContactedAt != nil {
		addSet("last_contacted_at", *params.LastContactedAt)
	}
	if len(params.Metadata) > 0 {
		metadataJSON, err := json.Marshal(params.Metadata)
		if err != nil {
			return Lead{}, err
		}
		setClauses = append(setClauses, fmt.Sprintf("metadata = COALESCE(metadata, '{}'::jsonb) || $%d::jsonb", argIdx))
		args = append(args, metadataJSON)
		argIdx++
	}

	query := fmt.Sprintf(`UPDATE leads SET %s WHERE id = $1 RETURNING`+leadSelectCols, strings.Join(setClauses, ", "))
	lead, err := scanLead(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		return Lead{}, mapRowErr(err)
	}
	return lead, nil
}

// UpdateStatusIf applies a status change guarded by the expected current
// status. Returns ErrStatusConflict when the lead exists but moved meanwhile.
func (r *Repository) UpdateStatusIf(ctx context.Context, params ConditionalStatusParams) (Lead, error) {
	lead, err := scanLead(r.pool.QueryRow(ctx, `
		UPDATE leads
		SET status = $3,
			last_contacted_at = CASE WHEN $4 THEN $5 ELSE last_contacted_at END,
			updated_at = now()
		WHERE id = $1 AND status = $2
		RETURNING`+leadSelectCols,
		params.ID, params.From, params.To, params.TouchContacted, params.At,
	))
	if err == nil {
		return lead, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Lead{}, err
	}

	if _, getErr := r.GetByID(ctx, params.ID); getErr != nil {
		return Lead{}, getErr
	}
	return Lead{}, ErrStatusConflict
}

func (r *Repository) List(ctx context.Context, params ListParams) ([]Lead, int, error) {
	whereClause, args, argIdx := buildLeadListWhere(params)

	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM leads WHERE %s", whereClause)
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	sortColumn := mapLeadSortColumn(params.SortBy)
	sortOrder := "DESC"
	if params.SortOrder == "asc" {
		sortOrder = "ASC"
	}

	args = append(args, params.Limit, params.Offset)
	query := fmt.Sprintf(`
		SELECT`+leadSelectCols+`
		FROM leads
		WHERE %s
		ORDER BY %s %s, id %s
		LIMIT $%d OFFSET $%d
	`, whereClause, sortColumn, sortOrder, sortOrder, argIdx, argIdx+1)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	leads := make([]Lead, 0)
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, 0, err
		}
		leads = append(leads, lead)
	}
	if rows.Err() != nil {
		return nil, 0, rows.Err()
	}

	return leads, total, nil
}

func buildLeadListWhere(params ListParams) (string, []interface{}, int) {
	whereClauses := []string{"TRUE"}
	args := []interface{}{}
	argIdx := 1

	addEquals := func(column string, value interface{}) {
		whereClauses = append(whereClauses, fmt.Sprintf("%s = $%d", column, argIdx))
		args = append(args, value)
		argIdx++
	}

	if params.Status != nil {
		addEquals("status", *params.Status)
	}
	if params.Classification != nil {
		addEquals("classification", *params.Classification)
	}
	if params.Source != nil {
		addEquals("source", *params.Source)
	}
	if search := strings.TrimSpace(params.Search); search != "" {
		whereClauses = append(whereClauses, fmt.Sprintf("(name ILIKE $%d OR email ILIKE $%d OR company ILIKE $%d)", argIdx, argIdx, argIdx))
		args = append(args, "%"+escapeLike(search)+"%")
		argIdx++
	}

	return strings.Join(whereClauses, " AND "), args, argIdx
}

func escapeLike(value string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(value)
}

// SortColumns are the accepted sort keys.
var SortColumns = []string{"created_at", "updated_at", "score", "name", "email", "classification", "status"}

func mapLeadSortColumn(sortBy string) string {
	for _, column := range SortColumns {
		if column == sortBy {
			return column
		}
	}
	return "created_at"
}
