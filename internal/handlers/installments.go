package handlers

import (
	"errors"
	"net/http"

	"debtster_installments/internal/installments"
	"debtster_installments/internal/models"
	"debtster_installments/internal/services/submission"
)

type rowRequest struct {
	Amount  *float64           `json:"amount"`
	Percent models.LooseAmount `json:"percent"`
	DueDate string             `json:"due_date" validate:"max=32"`
	Title   string             `json:"title" validate:"max=255"`
}

type rowsRequest struct {
	Rows []rowRequest `json:"rows" validate:"dive"`
}

func (req rowsRequest) inputs() []installments.Input {
	out := make([]installments.Input, 0, len(req.Rows))
	for _, row := range req.Rows {
		in := installments.Input{Amount: row.Amount, DueDate: row.DueDate, Title: row.Title}
		if row.Percent.Present() {
			in.Percent = row.Percent.Raw()
		}
		out = append(out, in)
	}
	return out
}

type retryRequest struct {
	Failed []submission.Failed `json:"failed" validate:"required,min=1"`
}

type summaryResponse struct {
	Outcome submission.Outcome `json:"outcome"`
	submission.Summary
}

// editor loads the contract and replays the posted rows into a fresh editor.
func (h *Handlers) editor(w http.ResponseWriter, r *http.Request, tag string) (*installments.Editor, bool) {
	var req rowsRequest
	if !h.decode(w, r, tag, &req) {
		return nil, false
	}
	c, ok := h.contract(w, r, tag)
	if !ok {
		return nil, false
	}
	ed, err := installments.FromInputs(c, req.inputs(), h.editorOptions()...)
	if err != nil {
		h.fail(w, http.StatusUnprocessableEntity, err.Error())
		return nil, false
	}
	return ed, true
}

// ValidateInstallments returns the editor report for the posted rows without
// touching the debt store.
func (h *Handlers) ValidateInstallments(w http.ResponseWriter, r *http.Request) {
	ed, ok := h.editor(w, r, "VALIDATE")
	if !ok {
		return
	}
	h.JSON(w, http.StatusOK, ed.Validate())
}

func (h *Handlers) SubmitInstallments(w http.ResponseWriter, r *http.Request) {
	ed, ok := h.editor(w, r, "SUBMIT")
	if !ok {
		return
	}
	s, err := h.Submitter.Submit(r.Context(), ed)
	h.writeSummary(w, "SUBMIT", s, err)
}

// RetryInstallments resubmits failed rows. The orchestrator checks them against
// the debts the contract already has, so the posted amounts are not trusted.
func (h *Handlers) RetryInstallments(w http.ResponseWriter, r *http.Request) {
	var req retryRequest
	if !h.decode(w, r, "RETRY", &req) {
		return
	}
	c, ok := h.contract(w, r, "RETRY")
	if !ok {
		return
	}
	s, err := h.Submitter.Retry(r.Context(), c, req.Failed)
	h.writeSummary(w, "RETRY", s, err)
}

func (h *Handlers) writeSummary(w http.ResponseWriter, tag string, s submission.Summary, err error) {
	var invalid *submission.InvalidError
	switch {
	case errors.As(err, &invalid):
		h.JSON(w, http.StatusUnprocessableEntity, map[string]any{"error": err.Error(), "report": invalid.Report})
		return
	case errors.Is(err, submission.ErrSubmissionInFlight):
		h.fail(w, http.StatusConflict, err.Error())
		return
	case errors.Is(err, submission.ErrNothingToRetry):
		h.fail(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, submission.ErrRetryUnverifiable):
		h.fail(w, http.StatusNotImplemented, err.Error())
		return
	case err != nil:
		h.Logger.Printf("[%s][ERR] %v", tag, err)
		h.upstreamError(w, err)
		return
	}

	code := http.StatusCreated
	switch s.Outcome() {
	case submission.OutcomePartial:
		code = http.StatusMultiStatus
	case submission.OutcomeFailed:
		code = http.StatusBadGateway
	}
	h.JSON(w, code, summaryResponse{Outcome: s.Outcome(), Summary: s})
}
