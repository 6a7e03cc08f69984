package handler

import (
	"context"
	"net/http"
	"time"

	"leadfunnel_backend/internal/nurture/repository"
	"leadfunnel_backend/platform/httpkit"
	"leadfunnel_backend/platform/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const msgInvalidLeadID = "invalid lead id"

// SequenceLister reads the nurture jobs of one lead.
type SequenceLister interface {
	ListByLead(ctx context.Context, leadID uuid.UUID) ([]repository.Sequence, error)
}

// ArchiveLinker resolves a short-lived link to an archived email.
type ArchiveLinker interface {
	DownloadURL(ctx context.Context, leadID, sequenceID uuid.UUID) (string, error)
}

// SequenceResponse is one nurture job as shown to operators.
type SequenceResponse struct {
	ID          uuid.UUID  `json:"id"`
	Step        int        `json:"step"`
	TemplateID  string     `json:"templateId"`
	Status      string     `json:"status"`
	ScheduledAt time.Time  `json:"scheduledAt"`
	SentAt      *time.Time `json:"sentAt,omitempty"`
	Opened      bool       `json:"opened"`
	Clicked     bool       `json:"clicked"`
	LastError   *string    `json:"lastError,omitempty"`
	ArchiveURL  string     `json:"archiveUrl,omitempty"`
}

// SequencesResponse wraps a lead's nurture jobs.
type SequencesResponse struct {
	Success bool               `json:"success"`
	Data    []SequenceResponse `json:"data"`
}

// SequenceHandler serves the admin view of a lead's nurture series.
type SequenceHandler struct {
	store   SequenceLister
	archive ArchiveLinker
	log     *logger.Logger
}

func NewSequenceHandler(store SequenceLister, log *logger.Logger) *SequenceHandler {
	return &SequenceHandler{store: store, log: log}
}

// SetArchiveLinker adds archive links to sent jobs.
func (h *SequenceHandler) SetArchiveLinker(archive ArchiveLinker) {
	h.archive = archive
}

func (h *SequenceHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/:id/sequences", h.ListByLead)
}

func (h *SequenceHandler) ListByLead(c *gin.Context) {
	leadID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidLeadID, nil)
		return
	}

	ctx := c.Request.Context()
	seqs, err := h.store.ListByLead(ctx, leadID)
	if httpkit.HandleError(c, err) {
		return
	}

	out := make([]SequenceResponse, 0, len(seqs))
	for _, seq := range seqs {
		item := SequenceResponse{
			ID:          seq.ID,
			Step:        seq.Step,
			TemplateID:  seq.TemplateID,
			Status:      string(seq.Status),
			ScheduledAt: seq.ScheduledAt,
			SentAt:      seq.SentAt,
			Opened:      seq.Opened,
			Clicked:     seq.Clicked,
			LastError:   seq.LastError,
		}
		if h.archive != nil && seq.SentAt != nil {
			link, err := h.archive.DownloadURL(ctx, leadID, seq.ID)
			if err != nil {
				h.log.WithContext(ctx).Warn("archive link failed", "sequenceId", seq.ID, "error", err)
			} else {
				item.ArchiveURL = link
			}
		}
		out = append(out, item)
	}

	httpkit.OK(c, SequencesResponse{Success: true, Data: out})
}
