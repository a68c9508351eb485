package models

import (
	"encoding/json"
	"time"
)

type DebtStatus string

const (
	DebtStatusPending DebtStatus = "pending"
	DebtStatusPaid    DebtStatus = "paid"
	DebtStatusOverdue DebtStatus = "overdue"
)

type Debt struct {
	ID         ID         `json:"id"`
	ContractID ID         `json:"contract_id"`
	Amount     int64      `json:"amount"`
	DueDate    *Date      `json:"due_date"`
	Title      *string    `json:"title"`
	Status     DebtStatus `json:"status"`
	CreatedAt  *time.Time `json:"created_at,omitempty"`
}

// UnmarshalJSON tolerates amounts sent as decimal strings ("6000000.00") and
// timestamps without a zone.
func (d *Debt) UnmarshalJSON(b []byte) error {
	type plain Debt
	var aux struct {
		plain
		Amount    LooseAmount `json:"amount"`
		CreatedAt *string     `json:"created_at"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	*d = Debt(aux.plain)
	d.Amount = aux.Amount.Decimal().Round(0).IntPart()
	d.CreatedAt = nil
	if aux.CreatedAt != nil {
		for _, l := range []string{time.RFC3339Nano, "2006-01-02 15:04:05"} {
			if t, err := time.Parse(l, *aux.CreatedAt); err == nil {
				d.CreatedAt = &t
				break
			}
		}
	}
	return nil
}
