// Package media stores uploaded images and their thumbnails.
package media

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
)

// Upload limits.
const (
	DefaultMaxBytes       = 5 << 20
	DefaultMaxPixels      = 25_000_000
	DefaultThumbnailWidth = 200
)

// Sentinel errors for rejected uploads.
var (
	ErrNotImage = errors.New("only image files are allowed")
	ErrTooLarge = errors.New("file is too large")
	ErrEmpty    = errors.New("file is empty")
)

// Store persists objects under a key and exposes them by URL.
type Store interface {
	Put(ctx context.Context, key string, content io.Reader, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
	URL(key string) string
}

// Upload is an incoming file. ContentType is the type declared by the
// client; the stored type is always sniffed from the content.
type Upload struct {
	Filename    string
	ContentType string
	Body        io.Reader
}

// Image describes a stored image and its thumbnail.
type Image struct {
	Key          string
	URL          string
	ThumbnailKey string
	ThumbnailURL string
}

// Uploader validates images, renders thumbnails and writes both to a Store.
type Uploader struct {
	store      Store
	maxBytes   int64
	maxPixels  int64
	thumbWidth int
	newID      func() string
}

// Option configures an Uploader.
type Option func(*Uploader)

// WithMaxBytes limits the accepted upload size.
func WithMaxBytes(n int64) Option {
	return func(u *Uploader) {
		if n > 0 {
			u.maxBytes = n
		}
	}
}

// WithMaxPixels limits the decoded width × height of accepted images.
func WithMaxPixels(n int64) Option {
	return func(u *Uploader) {
		if n > 0 {
			u.maxPixels = n
		}
	}
}

// WithThumbnailWidth sets the width thumbnails are scaled down to.
func WithThumbnailWidth(w int) Option {
	return func(u *Uploader) {
		if w > 0 {
			u.thumbWidth = w
		}
	}
}

// NewUploader creates an Uploader writing to store.
func NewUploader(store Store, opts ...Option) *Uploader {
	u := &Uploader{
		store:      store,
		maxBytes:   DefaultMaxBytes,
		maxPixels:  DefaultMaxPixels,
		thumbWidth: DefaultThumbnailWidth,
		newID:      func() string { return uuid.New().String() },
	}
	for _, o := range opts {
		o(u)
	}
	return u
}

// UploadImage stores the original image under prefix together with a JPEG
// thumbnail.
func (u *Uploader) UploadImage(ctx context.Context, prefix string, up Upload) (*Image, error) {
	if up.ContentType != "" && !isImageType(up.ContentType) {
		return nil, ErrNotImage
	}

	data, err := io.ReadAll(io.LimitReader(up.Body, u.maxBytes+1))
	if err != nil {
		return nil, errors.Wrap(err, "read upload")
	}
	switch {
	case len(data) == 0:
		return nil, ErrEmpty
	case int64(len(data)) > u.maxBytes:
		return nil, ErrTooLarge
	}

	contentType := http.DetectContentType(data)
	if !isImageType(contentType) {
		return nil, ErrNotImage
	}

	if err := checkDimensions(data, u.maxPixels); err != nil {
		return nil, err
	}

	thumb, err := thumbnail(data, u.thumbWidth)
	if err != nil {
		return nil, errors.Wrap(ErrNotImage, err.Error())
	}

	id := u.newID()
	img := &Image{
		Key: path.Join(prefix, id+extension(contentType, up.Filename)),
	}
	img.ThumbnailKey = ThumbnailKey(img.Key)

	if img.URL, err = u.store.Put(ctx, img.Key, bytes.NewReader(data), contentType); err != nil {
		return nil, errors.Wrap(err, "store image")
	}
	if img.ThumbnailURL, err = u.store.Put(ctx, img.ThumbnailKey, bytes.NewReader(thumb), "image/jpeg"); err != nil {
		_ = u.store.Delete(ctx, img.Key)
		return nil, errors.Wrap(err, "store thumbnail")
	}
	return img, nil
}

// DeleteImage removes every given key. All keys are attempted; the first
// failure is returned.
func (u *Uploader) DeleteImage(ctx context.Context, keys ...string) error {
	var first error
	for _, k := range keys {
		if err := u.store.Delete(ctx, k); err != nil && first == nil {
			first = errors.Wrapf(err, "delete %s", k)
		}
	}
	return first
}

// ThumbnailKey returns the key the thumbnail of key is stored under.
func ThumbnailKey(key string) string {
	return strings.TrimSuffix(key, path.Ext(key)) + "_thumb.jpg"
}

func isImageType(ct string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(ct)), "image/")
}

func extension(contentType, filename string) string {
	switch contentType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	case "image/bmp":
		return ".bmp"
	}
	if ext := path.Ext(filename); ext != "" {
		return strings.ToLower(ext)
	}
	return ""
}
