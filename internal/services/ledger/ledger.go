// Package ledger reconciles debts against the payments recorded for them.
package ledger

import (
	"context"
	"fmt"
	"log"

	"debtster_installments/internal/metrics"
	"debtster_installments/internal/models"
	"debtster_installments/internal/ports"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

type State string

const (
	StateLoaded      State = "loaded"
	StateEmpty       State = "empty"
	StateUnavailable State = "unavailable"
)

// Ledger is a debt with its payments. PaidSum and Remaining are nil when the
// payments could not be loaded: an unknown paid sum is not zero.
type Ledger struct {
	Debt      models.Debt      `json:"debt"`
	Payments  []models.Payment `json:"payments"`
	State     State            `json:"payments_state"`
	Nominal   int64            `json:"nominal"`
	PaidSum   *decimal.Decimal `json:"paid_sum"`
	Remaining *decimal.Decimal `json:"remaining"`
	Error     string           `json:"error,omitempty"`
}

// PaidSum adds paid_amount of every payment, using amount when paid_amount is
// absent. Non-numeric values count as zero.
func PaidSum(payments []models.Payment) decimal.Decimal {
	sum := decimal.Zero
	for _, p := range payments {
		if p.PaidAmount.Present() {
			sum = sum.Add(p.PaidAmount.Decimal())
			continue
		}
		sum = sum.Add(p.Amount.Decimal())
	}
	return sum
}

func Remaining(debt models.Debt, payments []models.Payment) decimal.Decimal {
	return decimal.NewFromInt(debt.Amount).Sub(PaidSum(payments))
}

// FromPayments builds the ledger for debt given the result of the payments fetch.
func FromPayments(debt models.Debt, payments []models.Payment, fetchErr error) Ledger {
	l := Ledger{Debt: debt, Nominal: debt.Amount, Payments: []models.Payment{}}
	if fetchErr != nil {
		l.State = StateUnavailable
		l.Error = fetchErr.Error()
		return l
	}
	if len(payments) > 0 {
		l.Payments = payments
		l.State = StateLoaded
	} else {
		l.State = StateEmpty
	}
	paid := PaidSum(payments)
	rem := decimal.NewFromInt(debt.Amount).Sub(paid)
	l.PaidSum, l.Remaining = &paid, &rem
	return l
}

type Service struct {
	debts       ports.DebtReader
	payments    ports.PaymentReader
	metrics     *metrics.Metrics
	logger      *log.Logger
	concurrency int
}

func NewService(debts ports.DebtReader, payments ports.PaymentReader, m *metrics.Metrics, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Default()
	}
	return &Service{debts: debts, payments: payments, metrics: m, logger: logger, concurrency: 8}
}

// Build loads one debt and its payments. A failing debt fetch is an error; a
// failing payments fetch yields an unavailable ledger.
func (s *Service) Build(ctx context.Context, debtID models.ID) (Ledger, error) {
	debt, err := s.debts.GetDebt(ctx, debtID)
	if err != nil {
		return Ledger{}, fmt.Errorf("load debt %s: %w", debtID, err)
	}
	return s.forDebt(ctx, debt), nil
}

func (s *Service) forDebt(ctx context.Context, debt models.Debt) Ledger {
	payments, err := s.payments.ListPayments(ctx, debt.ID)
	if err != nil {
		s.logger.Printf("[LEDGER][ERR] debt=%s payments unavailable: %v", debt.ID, err)
	}
	l := FromPayments(debt, payments, err)
	s.metrics.ObserveLedger(string(l.State))
	return l
}

type ContractLedger struct {
	ContractID models.ID       `json:"contract_id"`
	Debts      []Ledger        `json:"debts"`
	Nominal    int64           `json:"nominal"`
	PaidSum    decimal.Decimal `json:"paid_sum"`
	// Remaining is nil unless every debt's payments were loaded.
	Remaining   *decimal.Decimal `json:"remaining"`
	Unavailable int              `json:"unavailable"`
}

func (s *Service) ForContract(ctx context.Context, contractID models.ID) (ContractLedger, error) {
	debts, err := s.debts.ListDebts(ctx, contractID)
	if err != nil {
		return ContractLedger{}, fmt.Errorf("list debts of contract %s: %w", contractID, err)
	}

	out := ContractLedger{ContractID: contractID, Debts: make([]Ledger, len(debts)), PaidSum: decimal.Zero}

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, d := range debts {
		g.Go(func() error {
			out.Debts[i] = s.forDebt(ctx, d)
			return nil
		})
	}
	_ = g.Wait()

	for _, l := range out.Debts {
		out.Nominal += l.Nominal
		if l.PaidSum == nil {
			out.Unavailable++
			continue
		}
		out.PaidSum = out.PaidSum.Add(*l.PaidSum)
	}
	if out.Unavailable == 0 {
		rem := decimal.NewFromInt(out.Nominal).Sub(out.PaidSum)
		out.Remaining = &rem
	}
	return out, nil
}
