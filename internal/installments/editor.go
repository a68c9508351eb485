// Package installments holds the draft schedule an operator builds before a
// contract's total revenue is turned into debts.
package installments

import (
	"errors"
	"math"
	"strings"
	"sync/atomic"
	"time"

	"debtster_installments/internal/models"

	"github.com/shopspring/decimal"
)

const DefaultMaxRows = 120

var (
	ErrRowIndex       = errors.New("row index out of range")
	ErrTooManyRows    = errors.New("too many installment rows")
	ErrNegativeAmount = errors.New("amount must not be negative")
	ErrInvalidAmount  = errors.New("amount is not a number")
	ErrInvalidPercent = errors.New("percent is not a number")
	ErrAmountTooLarge = errors.New("amount exceeds the contract total")
)

var hundred = decimal.NewFromInt(100)

// Row is one draft installment. When Percent is set the Amount field is not
// used; the effective amount is derived from the contract total.
type Row struct {
	Amount  int64
	Percent *decimal.Decimal
	DueDate string
	Title   string
	Err     error
}

// Derived reports whether the row amount comes from its percent.
func (r Row) Derived() bool { return r.Percent != nil }

type Editor struct {
	contract   models.Contract
	rows       []Row
	maxRows    int
	now        func() time.Time
	submitting atomic.Bool
}

type Option func(*Editor)

// WithMaxRows caps the number of rows; n <= 0 keeps the default.
func WithMaxRows(n int) Option {
	return func(e *Editor) {
		if n > 0 {
			e.maxRows = n
		}
	}
}

// WithClock replaces time.Now when deciding what "today" is.
func WithClock(now func() time.Time) Option {
	return func(e *Editor) {
		if now != nil {
			e.now = now
		}
	}
}

// New opens an editor seeded with a single row covering the whole contract.
func New(contract models.Contract, opts ...Option) *Editor {
	e := NewEmpty(contract, opts...)
	e.rows = append(e.rows, Row{Amount: contract.TotalRevenue})
	return e
}

// NewEmpty opens an editor without rows, for callers that replay edits.
func NewEmpty(contract models.Contract, opts ...Option) *Editor {
	e := &Editor{
		contract: contract,
		maxRows:  DefaultMaxRows,
		now:      time.Now,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

func (e *Editor) Contract() models.Contract { return e.contract }
func (e *Editor) Total() int64              { return e.contract.TotalRevenue }
func (e *Editor) Len() int                  { return len(e.rows) }
func (e *Editor) MaxRows() int              { return e.maxRows }

// Today is the current calendar day according to the editor clock.
func (e *Editor) Today() models.Date { return models.DateOf(e.now()) }

// Rows returns a copy of the draft rows.
func (e *Editor) Rows() []Row {
	out := make([]Row, len(e.rows))
	copy(out, e.rows)
	return out
}

func (e *Editor) AddRow() error {
	if len(e.rows) >= e.maxRows {
		return ErrTooManyRows
	}
	e.rows = append(e.rows, Row{})
	return nil
}

func (e *Editor) RemoveRow(i int) error {
	if err := e.check(i); err != nil {
		return err
	}
	e.rows = append(e.rows[:i], e.rows[i+1:]...)
	return nil
}

// SetAmount stores v rounded to whole currency units and drops the row percent.
// A negative value is kept so the row shows up as invalid, and the row is
// flagged with ErrNegativeAmount. Values above the contract total are refused
// and leave the stored amount unchanged.
func (e *Editor) SetAmount(i int, v float64) error {
	if err := e.check(i); err != nil {
		return err
	}
	row := &e.rows[i]
	if math.IsNaN(v) || math.IsInf(v, 0) {
		row.Err = ErrInvalidAmount
		return ErrInvalidAmount
	}
	rounded := math.Round(v)
	limit := float64(e.contract.TotalRevenue)
	switch {
	case rounded > limit || rounded >= math.MaxInt64:
		row.Err = ErrAmountTooLarge
		return ErrAmountTooLarge
	case rounded < -limit || rounded <= math.MinInt64:
		row.Err = ErrNegativeAmount
		return ErrNegativeAmount
	}
	row.Percent = nil
	row.Amount = int64(rounded)
	row.Err = nil
	if row.Amount < 0 {
		row.Err = ErrNegativeAmount
		return ErrNegativeAmount
	}
	return nil
}

// SetPercent parses raw as a percentage of the contract total. An empty value
// clears the percent; anything else is clamped into [0, 100] and makes the row
// amount derived.
func (e *Editor) SetPercent(i int, raw string) error {
	if err := e.check(i); err != nil {
		return err
	}
	row := &e.rows[i]
	raw = models.NormalizeAmount(raw)
	if raw == "" {
		row.Percent = nil
		row.Err = nil
		return nil
	}
	p, err := decimal.NewFromString(strings.TrimSuffix(raw, "%"))
	if err != nil {
		row.Err = ErrInvalidPercent
		return ErrInvalidPercent
	}
	if p.IsNegative() {
		p = decimal.Zero
	}
	if p.GreaterThan(hundred) {
		p = hundred
	}
	row.Percent = &p
	row.Amount = 0
	row.Err = nil
	return nil
}

func (e *Editor) SetDueDate(i int, s string) error {
	if err := e.check(i); err != nil {
		return err
	}
	e.rows[i].DueDate = strings.TrimSpace(s)
	return nil
}

func (e *Editor) SetTitle(i int, s string) error {
	if err := e.check(i); err != nil {
		return err
	}
	e.rows[i].Title = strings.TrimSpace(s)
	return nil
}

// EffectiveAmount is round(total * percent / 100) for derived rows and the
// stored amount otherwise.
func (e *Editor) EffectiveAmount(r Row) int64 {
	if r.Percent == nil {
		return r.Amount
	}
	return decimal.NewFromInt(e.contract.TotalRevenue).
		Mul(*r.Percent).
		Div(hundred).
		Round(0).
		IntPart()
}

// CurrentSum is the sum of effective amounts, saturated to the int64 range.
func (e *Editor) CurrentSum() int64 { return clampInt64(e.sum()) }

func (e *Editor) sum() decimal.Decimal {
	sum := decimal.Zero
	for _, r := range e.rows {
		sum = sum.Add(decimal.NewFromInt(e.EffectiveAmount(r)))
	}
	return sum
}

var (
	maxInt64 = decimal.NewFromInt(math.MaxInt64)
	minInt64 = decimal.NewFromInt(math.MinInt64)
)

func clampInt64(d decimal.Decimal) int64 {
	switch {
	case d.GreaterThan(maxInt64):
		return math.MaxInt64
	case d.LessThan(minInt64):
		return math.MinInt64
	}
	return d.IntPart()
}

func (e *Editor) IsValid() bool { return e.Validate().Valid }

// BeginSubmit flips the editor into the submitting state. It returns false when
// a submission is already running.
func (e *Editor) BeginSubmit() bool { return e.submitting.CompareAndSwap(false, true) }
func (e *Editor) EndSubmit()        { e.submitting.Store(false) }
func (e *Editor) Submitting() bool  { return e.submitting.Load() }

// Draft is a row ready to be sent to the debt store.
type Draft struct {
	Index   int         `json:"index"`
	Amount  int64       `json:"amount"`
	DueDate models.Date `json:"due_date"`
	Title   *string     `json:"title"`
}

// Drafts converts the rows into create payloads. Unparseable dates are left
// zero; callers submit only after Validate reports the editor valid.
func (e *Editor) Drafts() []Draft {
	out := make([]Draft, 0, len(e.rows))
	for i, r := range e.rows {
		d := Draft{Index: i, Amount: e.EffectiveAmount(r)}
		if due, err := models.ParseDate(r.DueDate); err == nil {
			d.DueDate = due
		}
		if r.Title != "" {
			t := r.Title
			d.Title = &t
		}
		out = append(out, d)
	}
	return out
}

func (e *Editor) check(i int) error {
	if i < 0 || i >= len(e.rows) {
		return ErrRowIndex
	}
	return nil
}
