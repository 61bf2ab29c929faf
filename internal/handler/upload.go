package handler

import (
	"net/http"

	"github.com/go-faster/errors"

	"github.com/artelab/backoffice/internal/media"
)

// multipartOverhead leaves room for boundaries and other form fields.
const multipartOverhead = 1 << 20

// formFile extracts field from a multipart request as a media.Upload. The
// returned func closes the file and removes temporary parts.
func (h *Handler) formFile(w http.ResponseWriter, r *http.Request, field string) (media.Upload, func(), error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+multipartOverhead)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return media.Upload{}, nil, media.ErrTooLarge
		}
		return media.Upload{}, nil, &badRequest{msg: "invalid multipart form", err: err}
	}

	file, header, err := r.FormFile(field)
	if err != nil {
		_ = r.MultipartForm.RemoveAll()
		return media.Upload{}, nil, &badRequest{msg: field + " is required", err: err}
	}
	closeFn := func() {
		_ = file.Close()
		_ = r.MultipartForm.RemoveAll()
	}
	return media.Upload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Body:        file,
	}, closeFn, nil
}
