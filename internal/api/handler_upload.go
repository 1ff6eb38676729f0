package api

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"aida/internal/domain"
	"aida/internal/service/ingestion"
)

const (
	// multipartSlack covers boundaries, part headers and the form fields on
	// top of the file bytes.
	multipartSlack = 64 << 10
	maxFieldBytes  = 1 << 10

	uploadSucceeded = "File uploaded and processed successfully"
)

// Upload handles POST /upload. The body is streamed part by part; the
// fileType and projectId fields must come before the file part.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	if h.cfg.ReadTimeout > 0 {
		rc := http.NewResponseController(w)
		if err := rc.SetReadDeadline(time.Now().Add(h.cfg.ReadTimeout)); err != nil && !errors.Is(err, http.ErrNotSupported) {
			h.logger.WarnContext(r.Context(), "could not set upload read deadline", "error", err)
		}
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxUploadBytes+multipartSlack)

	mr, err := r.MultipartReader()
	if err != nil {
		h.writeError(w, r, domain.ErrInvalidFields(domain.FieldError{Param: "file", Msg: "File is required"}))
		return
	}

	principal, _ := domain.PrincipalFromContext(r.Context())
	req := ingestion.UploadRequest{Principal: principal.ID}
	for req.File == nil {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			h.writeError(w, r, multipartError(err))
			return
		}
		switch part.FormName() {
		case "fileType":
			req.FileType, err = readField(part)
		case "projectId":
			req.ProjectID, err = readField(part)
		case "file":
			req.File = &ingestion.FilePart{
				Name:      part.FileName(),
				MediaType: part.Header.Get("Content-Type"),
				Body:      part,
			}
		}
		if err != nil {
			h.writeError(w, r, err)
			return
		}
	}

	res, err := h.ingest.Ingest(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, UploadResponse{
		Msg:          uploadSucceeded,
		DataSourceID: res.DataSource.ID,
		Entries:      res.Entries,
	})
}

func readField(part *multipart.Part) (string, error) {
	b, err := io.ReadAll(io.LimitReader(part, maxFieldBytes+1))
	if err != nil {
		return "", multipartError(err)
	}
	if len(b) > maxFieldBytes {
		return "", domain.ErrInvalidFields(domain.FieldError{Param: part.FormName(), Msg: "Field value is too long"})
	}
	return strings.TrimSpace(string(b)), nil
}

func multipartError(err error) error {
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		return err
	}
	return domain.ErrValidation("malformed multipart body: %v", err)
}
