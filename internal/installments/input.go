package installments

import "debtster_installments/internal/models"

// Input is a row as it arrives from a form or a schedule file.
type Input struct {
	Amount  *float64
	Percent string
	DueDate string
	Title   string
}

// FromInputs replays inputs as editor operations. Row level problems stay on
// the rows and show up in Validate; only a cap violation aborts.
func FromInputs(contract models.Contract, inputs []Input, opts ...Option) (*Editor, error) {
	e := NewEmpty(contract, opts...)
	for _, in := range inputs {
		if err := e.AddRow(); err != nil {
			return nil, err
		}
		i := e.Len() - 1
		if in.Amount != nil {
			_ = e.SetAmount(i, *in.Amount)
		}
		if in.Percent != "" {
			_ = e.SetPercent(i, in.Percent)
		}
		_ = e.SetDueDate(i, in.DueDate)
		_ = e.SetTitle(i, in.Title)
	}
	return e, nil
}
