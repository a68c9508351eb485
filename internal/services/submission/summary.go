package submission

import (
	"time"

	"debtster_installments/internal/installments"
	"debtster_installments/internal/models"
)

type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomePartial Outcome = "partial"
	OutcomeFailed  Outcome = "failed"
)

type Created struct {
	Index          int         `json:"index"`
	IdempotencyKey string      `json:"idempotency_key"`
	Debt           models.Debt `json:"debt"`
}

// Failed keeps everything needed to resubmit the row later.
type Failed struct {
	Index          int                `json:"index"`
	IdempotencyKey string             `json:"idempotency_key"`
	Draft          installments.Draft `json:"draft"`
	Reason         string             `json:"reason"`
}

// Summary is the per-row result of one submission. Partial success is a
// first-class outcome: created rows stay created.
type Summary struct {
	ContractID models.ID `json:"contract_id"`
	ActorID    string    `json:"actor_id,omitempty"`
	Retry      bool      `json:"retry"`
	Atomic     bool      `json:"atomic"`
	Total      int64     `json:"total"`
	Sum        int64     `json:"sum"`
	Succeeded  []Created `json:"succeeded"`
	Failed     []Failed  `json:"failed"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

func (s Summary) Outcome() Outcome {
	switch {
	case len(s.Failed) == 0:
		return OutcomeSuccess
	case len(s.Succeeded) == 0:
		return OutcomeFailed
	default:
		return OutcomePartial
	}
}

func (s Summary) AllSucceeded() bool { return s.Outcome() == OutcomeSuccess }
