package s3

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
)

// Presigner is the subset of the MinIO client used to sign URLs.
type Presigner interface {
	PresignedPutObject(ctx context.Context, bucketName, objectName string, expiry time.Duration) (*url.URL, error)
	PresignedGetObject(ctx context.Context, bucketName, objectName string, expiry time.Duration, reqParams url.Values) (*url.URL, error)
}

var _ Presigner = (*minio.Client)(nil)

// Service signs short-lived URLs for ticket attachments so browsers upload
// directly to object storage.
type Service struct {
	Client Presigner
	Bucket string
	// MaxTTL limits the lifetime of generated URLs.
	MaxTTL time.Duration
}

// AttachmentKey returns the object key for a file attached to a ticket.
func AttachmentKey(ticketID, filename string) string {
	name := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		name = "file"
	}
	return fmt.Sprintf("tickets/%s/%s-%s", ticketID, uuid.New().String(), name)
}

// PresignPut creates a short-lived URL for uploading an object.
func (s Service) PresignPut(ctx context.Context, objectKey string, ttl time.Duration) (string, error) {
	if ttl <= 0 || ttl > s.MaxTTL {
		return "", fmt.Errorf("invalid ttl %v", ttl)
	}
	u, err := s.Client.PresignedPutObject(ctx, s.Bucket, objectKey, ttl)
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

// PresignGet creates a short-lived download URL with a forced Content-Disposition.
func (s Service) PresignGet(ctx context.Context, objectKey, filename string, ttl time.Duration) (string, error) {
	if ttl <= 0 || ttl > s.MaxTTL {
		return "", fmt.Errorf("invalid ttl %v", ttl)
	}
	vals := url.Values{}
	if filename != "" {
		vals.Set("response-content-disposition", "attachment; filename=\""+filename+"\"")
	}
	u, err := s.Client.PresignedGetObject(ctx, s.Bucket, objectKey, ttl, vals)
	if err != nil {
		return "", err
	}
	return u.String(), nil
}
