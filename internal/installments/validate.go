package installments

import (
	"fmt"

	"debtster_installments/internal/models"

	"github.com/shopspring/decimal"
)

type IssueCode string

const (
	IssueNoRows             IssueCode = "no_rows"
	IssueRowErrors          IssueCode = "row_errors"
	IssueNonPositiveAmounts IssueCode = "non_positive_amounts"
	IssueMissingDates       IssueCode = "missing_dates"
	IssueInvalidDates       IssueCode = "invalid_dates"
	IssueDatesNotInFuture   IssueCode = "dates_not_in_future"
	IssueSumMismatch        IssueCode = "sum_mismatch"
	IssueSubmitting         IssueCode = "submission_in_flight"
)

// Issue is one unmet condition, reported separately so the operator can see
// every problem at once.
type Issue struct {
	Code    IssueCode `json:"code"`
	Message string    `json:"message"`
	Rows    []int     `json:"rows,omitempty"`
}

type RowView struct {
	Index           int     `json:"index"`
	Amount          int64   `json:"amount"`
	Percent         *string `json:"percent"`
	EffectiveAmount int64   `json:"effective_amount"`
	Derived         bool    `json:"derived"`
	DueDate         string  `json:"due_date"`
	Title           string  `json:"title"`
	Error           string  `json:"error,omitempty"`
}

type Report struct {
	Valid      bool      `json:"valid"`
	ContractID string    `json:"contract_id"`
	Total      int64     `json:"total"`
	Sum        int64     `json:"sum"`
	Difference int64     `json:"difference"`
	Today      string    `json:"today"`
	Rows       []RowView `json:"rows"`
	Issues     []Issue   `json:"issues"`
}

// Has reports whether the report carries an issue with the given code.
func (r Report) Has(code IssueCode) bool {
	for _, is := range r.Issues {
		if is.Code == code {
			return true
		}
	}
	return false
}

// Validate recomputes derived amounts and every validity condition.
func (e *Editor) Validate() Report {
	today := e.Today()
	rep := Report{
		ContractID: e.contract.ID.String(),
		Total:      e.contract.TotalRevenue,
		Today:      today.String(),
		Rows:       make([]RowView, 0, len(e.rows)),
		Issues:     []Issue{},
	}

	var rowErrs, nonPositive, missing, invalid, past []int
	for i, r := range e.rows {
		eff := e.EffectiveAmount(r)

		v := RowView{
			Index:           i,
			Amount:          r.Amount,
			EffectiveAmount: eff,
			Derived:         r.Derived(),
			DueDate:         r.DueDate,
			Title:           r.Title,
		}
		if r.Percent != nil {
			p := r.Percent.String()
			v.Percent = &p
		}
		if r.Err != nil {
			v.Error = r.Err.Error()
			rowErrs = append(rowErrs, i)
		}
		rep.Rows = append(rep.Rows, v)

		if eff <= 0 {
			nonPositive = append(nonPositive, i)
		}
		if r.DueDate == "" {
			missing = append(missing, i)
			continue
		}
		due, err := models.ParseDate(r.DueDate)
		if err != nil {
			invalid = append(invalid, i)
			continue
		}
		if !due.After(today) {
			past = append(past, i)
		}
	}
	sum := e.sum()
	total := decimal.NewFromInt(rep.Total)
	rep.Sum = clampInt64(sum)
	rep.Difference = clampInt64(total.Sub(sum))

	if len(e.rows) == 0 {
		rep.Issues = append(rep.Issues, Issue{Code: IssueNoRows, Message: "add at least one installment"})
	}
	if len(rowErrs) > 0 {
		rep.Issues = append(rep.Issues, Issue{Code: IssueRowErrors, Message: "some rows have invalid input", Rows: rowErrs})
	}
	if len(nonPositive) > 0 {
		rep.Issues = append(rep.Issues, Issue{Code: IssueNonPositiveAmounts, Message: "every installment amount must be greater than zero", Rows: nonPositive})
	}
	if len(missing) > 0 {
		rep.Issues = append(rep.Issues, Issue{Code: IssueMissingDates, Message: "every installment needs a due date", Rows: missing})
	}
	if len(invalid) > 0 {
		rep.Issues = append(rep.Issues, Issue{Code: IssueInvalidDates, Message: "due date is not a valid date", Rows: invalid})
	}
	if len(past) > 0 {
		rep.Issues = append(rep.Issues, Issue{Code: IssueDatesNotInFuture, Message: "due date must be in the future", Rows: past})
	}
	if !sum.Equal(total) {
		rep.Issues = append(rep.Issues, Issue{
			Code:    IssueSumMismatch,
			Message: fmt.Sprintf("installments sum to %s, contract total is %d", sum, rep.Total),
		})
	}
	if e.Submitting() {
		rep.Issues = append(rep.Issues, Issue{Code: IssueSubmitting, Message: "submission already in progress"})
	}

	rep.Valid = len(rep.Issues) == 0
	return rep
}
