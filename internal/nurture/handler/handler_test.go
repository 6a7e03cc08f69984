package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"leadfunnel_backend/internal/nurture/service"
	"leadfunnel_backend/platform/apperr"
	"leadfunnel_backend/platform/httpkit"
	"leadfunnel_backend/platform/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRunner struct {
	result service.RunResult
	err    error
	calls  int
}

func (s *stubRunner) RunDueJobs(context.Context) (service.RunResult, error) {
	s.calls++
	return s.result, s.err
}

func newCronRouter(runner Runner) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	group := r.Group("/api/v1/cron")
	group.Use(httpkit.BearerSecretRequired(httpkit.ScopeCron, "s3cret", logger.Discard()))
	NewCronHandler(runner, logger.Discard()).RegisterRoutes(group)
	return r
}

func doRun(r *gin.Engine, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/cron/nurture", nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCronRejectsBadSecretBeforeRunning(t *testing.T) {
	runner := &stubRunner{}
	r := newCronRouter(runner)

	assert.Equal(t, http.StatusUnauthorized, doRun(r, "").Code)
	assert.Equal(t, http.StatusUnauthorized, doRun(r, "Bearer nope").Code)
	assert.Equal(t, http.StatusUnauthorized, doRun(r, "s3cret").Code)
	assert.Zero(t, runner.calls)
}

func TestCronReturnsSummary(t *testing.T) {
	failedID := uuid.New()
	runner := &stubRunner{result: service.RunResult{
		Processed: 2, Sent: 1, Failed: 1,
		Errors: []service.JobError{{SequenceID: failedID, Error: "lead x not found"}},
	}}
	r := newCronRouter(runner)

	w := doRun(r, "Bearer s3cret")

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, true, body["success"])
	assert.Equal(t, float64(2), body["processed"])
	assert.Equal(t, float64(1), body["sent"])
	assert.Equal(t, float64(1), body["failed"])
	errs := body["errors"].([]any)
	require.Len(t, errs, 1)
	assert.Equal(t, failedID.String(), errs[0].(map[string]any)["sequenceId"])
}

func TestCronOmitsEmptyErrors(t *testing.T) {
	r := newCronRouter(&stubRunner{})

	w := doRun(r, "Bearer s3cret")

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"processed":0,"sent":0,"failed":0}`, w.Body.String())
}

func TestCronUnavailable(t *testing.T) {
	w := doRun(newCronRouter(&stubRunner{err: service.ErrMailUnavailable}), "Bearer s3cret")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"success":false,"error":"Email service not configured"}`, w.Body.String())

	w = doRun(newCronRouter(&stubRunner{err: fmt.Errorf("%w: %v", service.ErrStoreUnavailable, errors.New("dial tcp"))}), "Bearer s3cret")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"success":false,"error":"DB not configured"}`, w.Body.String())
}

func TestCronClaimFailure(t *testing.T) {
	claimErr := apperr.Wrap(apperr.KindInternal, "Failed to query pending emails", errors.New("relation does not exist"))

	w := doRun(newCronRouter(&stubRunner{err: claimErr}), "Bearer s3cret")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"success":false,"error":"Failed to query pending emails"}`, w.Body.String())

	w = doRun(newCronRouter(&stubRunner{err: errors.New("boom")}), "Bearer s3cret")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "boom")
}
