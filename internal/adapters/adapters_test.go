package adapters

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"leadfunnel_backend/internal/adapters/storage"
	leadsrepo "leadfunnel_backend/internal/leads/repository"
	"leadfunnel_backend/internal/nurture/domain"
	nurturerepo "leadfunnel_backend/internal/nurture/repository"
	nurturesvc "leadfunnel_backend/internal/nurture/service"
	trackingsvc "leadfunnel_backend/internal/tracking/service"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryObjects struct {
	buckets     []string
	objects     map[string][]byte
	contentType string
}

func (m *memoryObjects) EnsureBucketExists(_ context.Context, bucket string) error {
	m.buckets = append(m.buckets, bucket)
	return nil
}

func (m *memoryObjects) PutObject(_ context.Context, bucket, key, contentType string, reader io.Reader, size int64) error {
	var buf bytes.Buffer
	n, err := io.Copy(&buf, reader)
	if err != nil {
		return err
	}
	if n != size {
		return errors.New("short write")
	}
	if m.objects == nil {
		m.objects = map[string][]byte{}
	}
	m.objects[bucket+"/"+key] = buf.Bytes()
	m.contentType = contentType
	return nil
}

func (m *memoryObjects) GenerateDownloadURL(_ context.Context, bucket, key string) (*storage.PresignedURL, error) {
	return &storage.PresignedURL{URL: "https://minio.local/" + bucket + "/" + key, FileKey: key}, nil
}

func TestEmailArchiveStoresHTMLUnderLeadPrefix(t *testing.T) {
	objects := &memoryObjects{}
	archive, err := NewEmailArchive(context.Background(), objects, "email-archive")
	require.NoError(t, err)
	assert.Equal(t, []string{"email-archive"}, objects.buckets)

	leadID, seqID := uuid.New(), uuid.New()
	html := "<p>Hola Ana, ñ</p>"
	require.NoError(t, archive.Archive(context.Background(), leadID, seqID, html))

	key := "nurture/" + leadID.String() + "/" + seqID.String() + ".html"
	assert.Equal(t, html, string(objects.objects["email-archive/"+key]))
	assert.Equal(t, "text/html; charset=utf-8", objects.contentType)

	link, err := archive.DownloadURL(context.Background(), leadID, seqID)
	require.NoError(t, err)
	assert.Equal(t, "https://minio.local/email-archive/"+key, link)
}

type stubLeadRepo struct {
	lead leadsrepo.Lead
	err  error
}

func (s stubLeadRepo) GetByID(context.Context, uuid.UUID) (leadsrepo.Lead, error) {
	return s.lead, s.err
}

func (s stubLeadRepo) List(context.Context, leadsrepo.ListParams) ([]leadsrepo.Lead, int, error) {
	return nil, 0, nil
}

func TestNurtureLeadReaderMapsLead(t *testing.T) {
	company := "Acme"
	lead := leadsrepo.Lead{ID: uuid.New(), Name: "Ana", Email: "ana@example.com", Company: &company, Status: "new", CommercialAccepted: true}

	got, err := NewNurtureLeadReader(stubLeadRepo{lead: lead}).GetLead(context.Background(), lead.ID)
	require.NoError(t, err)
	assert.Equal(t, "Acme", got.Company)
	assert.Empty(t, got.Budget)
	assert.True(t, got.CommercialAccepted)
}

func TestNurtureLeadReaderMapsNotFound(t *testing.T) {
	_, err := NewNurtureLeadReader(stubLeadRepo{err: leadsrepo.ErrNotFound}).GetLead(context.Background(), uuid.New())
	assert.ErrorIs(t, err, nurturesvc.ErrLeadNotFound)
}

type stubSequenceRepo struct {
	seq nurturerepo.Sequence
	err error
}

func (s stubSequenceRepo) GetByID(context.Context, uuid.UUID) (nurturerepo.Sequence, error) {
	return s.seq, s.err
}

func (s stubSequenceRepo) MarkOpenedIf(context.Context, uuid.UUID, domain.Status, domain.Status) (bool, error) {
	return true, nil
}

func (s stubSequenceRepo) MarkClicked(context.Context, uuid.UUID) error { return nil }

func TestTrackingSequenceStoreMapsSequence(t *testing.T) {
	seq := nurturerepo.Sequence{ID: uuid.New(), LeadID: uuid.New(), Status: domain.StatusSent}

	got, err := NewTrackingSequenceStore(stubSequenceRepo{seq: seq}).GetSequence(context.Background(), seq.ID)
	require.NoError(t, err)
	assert.Equal(t, trackingsvc.Sequence{ID: seq.ID, LeadID: seq.LeadID, Status: domain.StatusSent}, got)

	_, err = NewTrackingSequenceStore(stubSequenceRepo{err: nurturerepo.ErrNotFound}).GetSequence(context.Background(), seq.ID)
	assert.ErrorIs(t, err, trackingsvc.ErrSequenceNotFound)
}

type recordingEventStore struct {
	params leadsrepo.AppendEventParams
}

func (r *recordingEventStore) AppendEvent(_ context.Context, params leadsrepo.AppendEventParams) (leadsrepo.LeadEvent, error) {
	r.params = params
	return leadsrepo.LeadEvent{LeadID: params.LeadID, EventType: params.EventType}, nil
}

func (r *recordingEventStore) ListEvents(context.Context, uuid.UUID, int, int) ([]leadsrepo.LeadEvent, int, error) {
	return nil, 0, nil
}

func TestLeadTimelineWriterAppends(t *testing.T) {
	store := &recordingEventStore{}
	leadID := uuid.New()

	require.NoError(t, NewLeadTimelineWriter(store).AppendEvent(context.Background(), leadID, "email_opened", map[string]any{"sequence_id": "x"}))
	assert.Equal(t, leadID, store.params.LeadID)
	assert.Equal(t, "email_opened", store.params.EventType)
}
