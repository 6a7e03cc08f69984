package adapters

import (
	"context"
	"fmt"
	"io"
	"strings"

	"leadfunnel_backend/internal/adapters/storage"
	"leadfunnel_backend/internal/nurture"

	"github.com/google/uuid"
)

const archiveContentType = "text/html; charset=utf-8"

// ArchiveStore is the object storage surface the email archive needs.
type ArchiveStore interface {
	EnsureBucketExists(ctx context.Context, bucket string) error
	PutObject(ctx context.Context, bucket, key, contentType string, reader io.Reader, size int64) error
	GenerateDownloadURL(ctx context.Context, bucket, key string) (*storage.PresignedURL, error)
}

// EmailArchive keeps the delivered HTML of each nurture email in a bucket
// under nurture/<lead>/<sequence>.html.
type EmailArchive struct {
	store  ArchiveStore
	bucket string
}

// NewEmailArchive creates the archive adapter and makes sure the bucket exists.
func NewEmailArchive(ctx context.Context, store ArchiveStore, bucket string) (*EmailArchive, error) {
	if err := store.EnsureBucketExists(ctx, bucket); err != nil {
		return nil, err
	}
	return &EmailArchive{store: store, bucket: bucket}, nil
}

// ArchiveKey returns the object key for one delivered email.
func ArchiveKey(leadID, sequenceID uuid.UUID) string {
	return fmt.Sprintf("nurture/%s/%s.html", leadID, sequenceID)
}

// Archive uploads the rendered body as sent.
func (a *EmailArchive) Archive(ctx context.Context, leadID, sequenceID uuid.UUID, html string) error {
	return a.store.PutObject(ctx, a.bucket, ArchiveKey(leadID, sequenceID), archiveContentType, strings.NewReader(html), int64(len(html)))
}

// DownloadURL returns a presigned link to an archived email.
func (a *EmailArchive) DownloadURL(ctx context.Context, leadID, sequenceID uuid.UUID) (string, error) {
	presigned, err := a.store.GenerateDownloadURL(ctx, a.bucket, ArchiveKey(leadID, sequenceID))
	if err != nil {
		return "", err
	}
	return presigned.URL, nil
}

var (
	_ ArchiveStore         = (*storage.MinIOService)(nil)
	_ nurture.EmailArchive = (*EmailArchive)(nil)
)
