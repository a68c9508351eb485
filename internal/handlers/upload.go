package handlers

import (
	"net/http"
	"path"

	"debtster_installments/internal/adapters/objectstore"
	"debtster_installments/internal/services/schedule"

	"github.com/google/uuid"
)

const maxUpload = 16 << 20

// Upload accepts multipart/form-data with a `file` field and stores the schedule in S3.
// The returned path can be passed to the import endpoint.
func (h *Handlers) Upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUpload); err != nil {
		h.Logger.Printf("[UPLOAD][ERR] parse multipart: %v", err)
		h.fail(w, http.StatusBadRequest, "bad multipart: "+err.Error())
		return
	}

	f, fh, err := r.FormFile("file")
	if err != nil {
		h.Logger.Printf("[UPLOAD][ERR] missing file: %v", err)
		h.fail(w, http.StatusBadRequest, "file is required")
		return
	}
	defer f.Close()

	fname := path.Base(fh.Filename)
	ct := fh.Header.Get("Content-Type")
	format := schedule.DetectFormat(fname, ct)
	if format == "" {
		h.fail(w, http.StatusUnsupportedMediaType, "only .csv and .xlsx schedules are accepted")
		return
	}
	if ct == "" {
		ct = "application/octet-stream"
	}

	key := "schedules/" + uuid.NewString() + "-" + fname
	meta, err := h.Objects.Put(r.Context(), key, f, fh.Size, ct)
	if err != nil {
		h.Logger.Printf("[UPLOAD][ERR] s3 put: %v", err)
		h.fail(w, http.StatusInternalServerError, "failed to store file: "+err.Error())
		return
	}

	h.Logger.Printf("[UPLOAD][OK] key=%q size=%d fmt=%s", meta.Key, meta.Size, format)
	h.JSON(w, http.StatusCreated, map[string]any{
		"path":   objectstore.Path(meta),
		"key":    meta.Key,
		"size":   meta.Size,
		"format": format,
	})
}
