package handlers

import (
	"net/http"
	"strconv"
)

const defaultSubmissionsLimit = 50

func (h *Handlers) ListSubmissions(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		h.fail(w, http.StatusBadRequest, "contract id is required")
		return
	}

	limit := int64(defaultSubmissionsLimit)
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n <= 0 {
			h.fail(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	recs, err := h.Submissions.ListByContract(r.Context(), id.String(), limit)
	if err != nil {
		h.Logger.Printf("[SUBMISSIONS][ERR] contract=%s: %v", id, err)
		h.fail(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.JSON(w, http.StatusOK, map[string]any{"items": recs})
}
