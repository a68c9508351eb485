package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"debtster_installments/internal/adapters/objectstore"
	"debtster_installments/internal/services/schedule"
)

func (h *Handlers) DebtLedger(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		h.fail(w, http.StatusBadRequest, "debt id is required")
		return
	}
	l, err := h.Ledger.Build(r.Context(), id)
	if err != nil {
		h.Logger.Printf("[LEDGER][ERR] debt=%s: %v", id, err)
		h.upstreamError(w, err)
		return
	}
	h.JSON(w, http.StatusOK, l)
}

func (h *Handlers) ContractLedger(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		h.fail(w, http.StatusBadRequest, "contract id is required")
		return
	}
	cl, err := h.Ledger.ForContract(r.Context(), id)
	if err != nil {
		h.Logger.Printf("[LEDGER][ERR] contract=%s: %v", id, err)
		h.upstreamError(w, err)
		return
	}
	h.JSON(w, http.StatusOK, cl)
}

// ExportLedger writes the contract ledger to XLSX, stores it and returns a
// presigned download link.
func (h *Handlers) ExportLedger(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		h.fail(w, http.StatusBadRequest, "contract id is required")
		return
	}
	cl, err := h.Ledger.ForContract(r.Context(), id)
	if err != nil {
		h.Logger.Printf("[EXPORT][ERR] contract=%s: %v", id, err)
		h.upstreamError(w, err)
		return
	}

	body, err := schedule.ExportLedger(cl)
	if err != nil {
		h.Logger.Printf("[EXPORT][ERR] build xlsx: %v", err)
		h.fail(w, http.StatusInternalServerError, err.Error())
		return
	}

	now := h.Now().UTC()
	key := fmt.Sprintf("exports/ledger-%s-%s.xlsx", id, now.Format("20060102-150405"))
	meta, err := h.Objects.Put(r.Context(), key, bytes.NewReader(body), int64(len(body)), schedule.XLSXContentType)
	if err != nil {
		h.Logger.Printf("[EXPORT][ERR] s3 put: %v", err)
		h.fail(w, http.StatusInternalServerError, "failed to store export: "+err.Error())
		return
	}

	url, err := h.Objects.PresignGet(r.Context(), meta.Key, h.PresignTTL)
	if err != nil {
		h.Logger.Printf("[EXPORT][ERR] presign: %v", err)
		h.fail(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.Logger.Printf("[EXPORT][OK] contract=%s debts=%d key=%q", id, len(cl.Debts), meta.Key)
	h.JSON(w, http.StatusCreated, map[string]any{
		"path":       objectstore.Path(meta),
		"url":        url,
		"expires_at": now.Add(h.PresignTTL).Format(time.RFC3339),
		"debts":      len(cl.Debts),
	})
}
