// Package media accepts uploaded images, validates them and hands them to a
// storage backend.
package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg" // register decoder
	_ "image/png"  // register decoder
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"snapgram/internal/featureflags"
	"snapgram/internal/middleware"
	"snapgram/internal/observability"

	"github.com/google/uuid"
)

// DefaultMaxBytes is the upload ceiling when none is configured.
const DefaultMaxBytes int64 = 5 << 20

var (
	// ErrTooLarge is returned for uploads above the configured ceiling.
	ErrTooLarge = errors.New("file too large")
	// ErrUnsupportedType is returned for anything that is not a decodable JPEG or PNG.
	ErrUnsupportedType = errors.New("unsupported image type")
)

var allowedTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/jpg":  ".jpg",
	"image/png":  ".png",
}

// Upload is one incoming file. Size is the declared size and may be zero when unknown.
type Upload struct {
	Reader      io.Reader
	Filename    string
	ContentType string
	Size        int64

	// OwnerID selects per-user feature flags.
	OwnerID uint
	// BaseURL is the public origin used to build local storage URLs.
	BaseURL string
}

// StoredImage describes a persisted upload.
type StoredImage struct {
	Key          string
	URL          string
	ContentType  string
	Size         int64
	ThumbnailKey string
	ThumbnailURL string
}

// Intake validates uploads and writes them to storage.
type Intake struct {
	storage  Storage
	maxBytes int64
	flags    *featureflags.Set
	now      func() time.Time
}

// NewIntake returns an Intake writing to storage. A non-positive maxBytes
// means DefaultMaxBytes. flags may be nil.
func NewIntake(storage Storage, maxBytes int64, flags *featureflags.Set) *Intake {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Intake{
		storage:  storage,
		maxBytes: maxBytes,
		flags:    flags,
		now:      time.Now,
	}
}

// MaxBytes returns the upload ceiling.
func (in *Intake) MaxBytes() int64 {
	return in.maxBytes
}

// Accept reads the whole upload, checks it and stores it. Nothing is written
// unless every check passes.
func (in *Intake) Accept(ctx context.Context, up Upload) (img *StoredImage, err error) {
	defer func() {
		observability.MediaUploads.WithLabelValues(uploadResult(err)).Inc()
	}()

	if up.Size > in.maxBytes {
		return nil, ErrTooLarge
	}
	declared := normalizeContentType(up.ContentType)
	if declared != "" {
		if _, ok := allowedTypes[declared]; !ok {
			return nil, ErrUnsupportedType
		}
	}

	data, err := io.ReadAll(io.LimitReader(up.Reader, in.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > in.maxBytes {
		return nil, ErrTooLarge
	}

	sniffed := normalizeContentType(http.DetectContentType(data))
	if _, ok := allowedTypes[sniffed]; !ok {
		return nil, ErrUnsupportedType
	}
	if declared != "" && !sameType(declared, sniffed) {
		return nil, ErrUnsupportedType
	}
	if _, _, err := image.DecodeConfig(bytes.NewReader(data)); err != nil {
		return nil, ErrUnsupportedType
	}

	key := in.objectKey(up.Filename, sniffed)
	if err := in.storage.Put(ctx, key, sniffed, bytes.NewReader(data), int64(len(data))); err != nil {
		return nil, fmt.Errorf("store upload: %w", err)
	}

	img = &StoredImage{
		Key:         key,
		URL:         in.storage.URL(up.BaseURL, key),
		ContentType: sniffed,
		Size:        int64(len(data)),
	}
	observability.MediaUploadBytes.Observe(float64(img.Size))

	if in.flags.Enabled(featureflags.MediaThumbnails, up.OwnerID) {
		in.attachThumbnail(ctx, img, data, up.BaseURL)
	}
	return img, nil
}

// attachThumbnail is best-effort: a failure leaves the original untouched.
func (in *Intake) attachThumbnail(ctx context.Context, img *StoredImage, data []byte, baseURL string) {
	thumb, err := Thumbnail(bytes.NewReader(data), ThumbnailMaxSide)
	if err != nil {
		middleware.Logger.WarnContext(ctx, "thumbnail generation failed",
			slog.String("key", img.Key), slog.String("error", err.Error()))
		return
	}
	key := thumbnailKey(img.Key)
	if err := in.storage.Put(ctx, key, "image/jpeg", bytes.NewReader(thumb), int64(len(thumb))); err != nil {
		middleware.Logger.WarnContext(ctx, "thumbnail store failed",
			slog.String("key", key), slog.String("error", err.Error()))
		return
	}
	img.ThumbnailKey = key
	img.ThumbnailURL = in.storage.URL(baseURL, key)
}

// Discard removes a stored image and its thumbnail.
func (in *Intake) Discard(ctx context.Context, img *StoredImage) error {
	if img == nil {
		return nil
	}
	var errs []error
	for _, key := range []string{img.Key, img.ThumbnailKey} {
		if key == "" {
			continue
		}
		if err := in.storage.Delete(ctx, key); err != nil {
			errs = append(errs, fmt.Errorf("delete %s: %w", key, err))
		}
	}
	return errors.Join(errs...)
}

// DiscardURL removes the objects behind URLs this intake issued. URLs owned
// by another host, such as seeded placeholder images, are left alone.
func (in *Intake) DiscardURL(ctx context.Context, imageURL, thumbnailURL string) error {
	img := &StoredImage{}
	for _, u := range []struct {
		raw string
		key *string
	}{{imageURL, &img.Key}, {thumbnailURL, &img.ThumbnailKey}} {
		if u.raw == "" {
			continue
		}
		key, ok := in.storage.KeyFor(u.raw)
		if !ok {
			middleware.Logger.DebugContext(ctx, "skipping foreign image url", slog.String("url", u.raw))
			continue
		}
		*u.key = key
	}
	return in.Discard(ctx, img)
}

// objectKey builds "<unix-millis>-<suffix><ext>".
func (in *Intake) objectKey(filename, contentType string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(filename)))
	switch ext {
	case ".jpg", ".jpeg", ".png":
	default:
		ext = allowedTypes[contentType]
	}
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%d-%s%s", in.now().UnixMilli(), suffix, ext)
}

func thumbnailKey(key string) string {
	return strings.TrimSuffix(key, filepath.Ext(key)) + "_thumb.jpg"
}

func normalizeContentType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return strings.ToLower(mediaType)
}

func sameType(declared, sniffed string) bool {
	return allowedTypes[declared] == allowedTypes[sniffed]
}

func uploadResult(err error) string {
	switch {
	case err == nil:
		return "accepted"
	case errors.Is(err, ErrTooLarge):
		return "too_large"
	case errors.Is(err, ErrUnsupportedType):
		return "unsupported"
	default:
		return "error"
	}
}
