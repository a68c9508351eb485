package handlers

import (
	"errors"
	"net/http"
	"time"

	"debtster_installments/internal/adapters/opener"
	"debtster_installments/internal/installments"
	"debtster_installments/internal/services/schedule"
)

type importRequest struct {
	FilePath string `json:"file_path" validate:"required"`
}

type importResponse struct {
	Source string              `json:"source"`
	Format string              `json:"format"`
	Report installments.Report `json:"report"`
}

// ImportSchedule reads a CSV/XLSX schedule and returns it as an editor report.
// Nothing is submitted; the client reviews the rows and posts them back.
func (h *Handlers) ImportSchedule(w http.ResponseWriter, r *http.Request) {
	var req importRequest
	if !h.decode(w, r, "IMPORT", &req) {
		return
	}
	c, ok := h.contract(w, r, "IMPORT")
	if !ok {
		return
	}

	start := time.Now()
	res, err := h.Importer.Import(r.Context(), req.FilePath)
	switch {
	case errors.Is(err, opener.ErrNoSource), errors.Is(err, opener.ErrHostNotAllowed):
		h.fail(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, schedule.ErrEmptySchedule), errors.Is(err, schedule.ErrNoAmountCol):
		h.fail(w, http.StatusUnprocessableEntity, err.Error())
		return
	case err != nil:
		h.Logger.Printf("[IMPORT][ERR] path=%q err=%v took=%s", req.FilePath, err, time.Since(start))
		h.upstreamError(w, err)
		return
	}

	ed, err := installments.FromInputs(c, res.Inputs, h.editorOptions()...)
	if err != nil {
		h.fail(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	h.Logger.Printf("[IMPORT][OK] contract=%s src=%s fmt=%s rows=%d took=%s",
		c.ID, res.Source, res.Format, len(res.Inputs), time.Since(start))
	h.JSON(w, http.StatusOK, importResponse{Source: res.Source, Format: res.Format, Report: ed.Validate()})
}
