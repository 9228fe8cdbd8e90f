package raster

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path"
	"path/filepath"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	"google.golang.org/api/googleapi"
)

// GCSUploader stages documents in a Cloud Storage bucket and hands the converter
// a short-lived signed URL.
type GCSUploader struct {
	client *storage.Client
	bucket string
	prefix string
	expiry time.Duration
	logger *slog.Logger
}

func NewGCSUploader(client *storage.Client, bucket string, expiry time.Duration, logger *slog.Logger) *GCSUploader {
	if logger == nil {
		logger = slog.Default()
	}
	if expiry <= 0 {
		expiry = 15 * time.Minute
	}
	return &GCSUploader{client: client, bucket: bucket, prefix: "raster-uploads", expiry: expiry, logger: logger}
}

func (u *GCSUploader) Upload(ctx context.Context, name string, data []byte) (string, error) {
	object := path.Join(u.prefix, uuid.NewString()+"-"+safeObjectName(name))

	// Only create, never overwrite.
	w := u.client.Bucket(u.bucket).Object(object).If(storage.Conditions{DoesNotExist: true}).NewWriter(ctx)
	w.ContentType = "application/pdf"
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("gcs write %s: %w", object, err)
	}
	if err := w.Close(); err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) && gerr.Code == http.StatusPreconditionFailed {
			return "", fmt.Errorf("gcs object %s already exists", object)
		}
		return "", fmt.Errorf("gcs close %s: %w", object, err)
	}

	url, err := u.client.Bucket(u.bucket).SignedURL(object, &storage.SignedURLOptions{
		Scheme:  storage.SigningSchemeV4,
		Method:  http.MethodGet,
		Expires: time.Now().Add(u.expiry),
	})
	if err != nil {
		return "", fmt.Errorf("sign url for %s: %w", object, err)
	}
	u.logger.Info("raster.gcs.uploaded", "bucket", u.bucket, "object", object, "bytes", len(data))
	return url, nil
}

func safeObjectName(name string) string {
	base := filepath.Base(name)
	if base == "." || base == "/" || base == "" {
		return "document.pdf"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
}
