package handler

import (
	"context"

	"leadfunnel_backend/internal/nurture/service"
	"leadfunnel_backend/platform/apperr"
	"leadfunnel_backend/platform/httpkit"
	"leadfunnel_backend/platform/logger"

	"github.com/gin-gonic/gin"
)

// Runner executes one dispatcher pass.
type Runner interface {
	RunDueJobs(ctx context.Context) (service.RunResult, error)
}

// RunResponse is the cron endpoint body.
type RunResponse struct {
	Success   bool               `json:"success"`
	Processed int                `json:"processed"`
	Sent      int                `json:"sent"`
	Failed    int                `json:"failed"`
	Errors    []service.JobError `json:"errors,omitempty"`
	Skipped   bool               `json:"skipped,omitempty"`
}

// CronHandler exposes the dispatcher to the external scheduler. The bearer
// secret is checked by the cron route group before this handler runs.
type CronHandler struct {
	runner Runner
	log    *logger.Logger
}

func NewCronHandler(runner Runner, log *logger.Logger) *CronHandler {
	return &CronHandler{runner: runner, log: log}
}

func (h *CronHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/nurture", h.Run)
	rg.POST("/nurture", h.Run)
}

func (h *CronHandler) Run(c *gin.Context) {
	result, err := h.runner.RunDueJobs(c.Request.Context())
	if err != nil {
		if apperr.GetKind(err) != apperr.KindUnavailable {
			h.log.WithContext(c.Request.Context()).Error("nurture run failed", "error", err)
		}
		httpkit.HandleError(c, err)
		return
	}

	httpkit.OK(c, RunResponse{
		Success:   true,
		Processed: result.Processed,
		Sent:      result.Sent,
		Failed:    result.Failed,
		Errors:    result.Errors,
		Skipped:   result.Skipped,
	})
}
