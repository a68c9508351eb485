package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"debtster_installments/internal/installments"
	"debtster_installments/internal/models"
	"debtster_installments/internal/ports"
	"debtster_installments/internal/repository/submissions"
	"debtster_installments/internal/services/ledger"
	"debtster_installments/internal/services/schedule"
	"debtster_installments/internal/services/submission"

	"github.com/go-playground/validator/v10"
)

const maxBody = 1 << 20

// SubmissionLog lists audited submissions of a contract.
type SubmissionLog interface {
	ListByContract(ctx context.Context, contractID string, limit int64) ([]submissions.Record, error)
}

type Deps struct {
	Contracts   ports.ContractReader
	Submitter   *submission.Orchestrator
	Ledger      *ledger.Service
	Importer    *schedule.Importer
	Objects     ports.ObjectStore
	Submissions SubmissionLog
	// Check pings the infrastructure behind /health.
	Check      func(ctx context.Context) error
	MaxRows    int
	PresignTTL time.Duration
	Now        func() time.Time
	Logger     *log.Logger
}

type Handlers struct {
	Deps
	validate *validator.Validate
}

func New(d Deps) *Handlers {
	if d.Logger == nil {
		d.Logger = log.Default()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.MaxRows <= 0 {
		d.MaxRows = installments.DefaultMaxRows
	}
	if d.PresignTTL <= 0 {
		d.PresignTTL = 15 * time.Minute
	}
	return &Handlers{Deps: d, validate: validator.New(validator.WithRequiredStructEnabled())}
}

func (h *Handlers) JSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *Handlers) fail(w http.ResponseWriter, code int, msg string) {
	h.JSON(w, code, map[string]string{"error": msg})
}

// decode reads a JSON body into dst and runs its validate tags.
func (h *Handlers) decode(w http.ResponseWriter, r *http.Request, tag string, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody))
	if err := dec.Decode(dst); err != nil {
		h.Logger.Printf("[%s][REQ][ERR] bad JSON: %v", tag, err)
		h.fail(w, http.StatusBadRequest, "bad JSON: "+err.Error())
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		h.Logger.Printf("[%s][REQ][ERR] invalid: %v", tag, err)
		h.JSON(w, http.StatusBadRequest, map[string]any{"error": "invalid request", "fields": fieldErrors(err)})
		return false
	}
	return true
}

func fieldErrors(err error) []string {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return []string{err.Error()}
	}
	out := make([]string, 0, len(ve))
	for _, fe := range ve {
		out = append(out, fmt.Sprintf("%s: %s", fe.Namespace(), fe.Tag()))
	}
	return out
}

func pathID(r *http.Request) (models.ID, bool) {
	id := strings.TrimSpace(r.PathValue("id"))
	return models.ID(id), id != ""
}

// contract loads the contract named by the {id} path segment.
func (h *Handlers) contract(w http.ResponseWriter, r *http.Request, tag string) (models.Contract, bool) {
	id, ok := pathID(r)
	if !ok {
		h.fail(w, http.StatusBadRequest, "contract id is required")
		return models.Contract{}, false
	}
	c, err := h.Contracts.GetContract(r.Context(), id)
	if err != nil {
		h.Logger.Printf("[%s][ERR] contract=%s: %v", tag, id, err)
		h.upstreamError(w, err)
		return models.Contract{}, false
	}
	return c, true
}

func (h *Handlers) upstreamError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ports.ErrNotFound):
		h.fail(w, http.StatusNotFound, "not found")
	case errors.Is(err, context.DeadlineExceeded):
		h.fail(w, http.StatusGatewayTimeout, err.Error())
	default:
		h.fail(w, http.StatusBadGateway, err.Error())
	}
}

func (h *Handlers) editorOptions() []installments.Option {
	return []installments.Option{
		installments.WithMaxRows(h.MaxRows),
		installments.WithClock(h.Now),
	}
}
