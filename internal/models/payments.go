package models

// Payment is a recorded payment against a debt. The backend is inconsistent about
// field names, so both spellings are decoded and resolved by the ledger.
type Payment struct {
	ID         ID          `json:"id"`
	DebtID     ID          `json:"debt_id"`
	PaidAmount LooseAmount `json:"paid_amount"`
	Amount     LooseAmount `json:"amount"`
	PaidDate   *Date       `json:"paid_date"`
	Date       *Date       `json:"date"`
}

// PaymentDate returns paid_date, falling back to date.
func (p Payment) PaymentDate() *Date {
	if p.PaidDate != nil {
		return p.PaidDate
	}
	return p.Date
}
