package ledger

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"

	"debtster_installments/internal/models"
)

type fakeStore struct {
	debts       map[models.ID]models.Debt
	payments    map[models.ID][]models.Payment
	paymentsErr map[models.ID]error
}

func (f *fakeStore) GetDebt(ctx context.Context, id models.ID) (models.Debt, error) {
	d, ok := f.debts[id]
	if !ok {
		return models.Debt{}, errors.New("not found")
	}
	return d, nil
}

func (f *fakeStore) ListDebts(ctx context.Context, cid models.ID) ([]models.Debt, error) {
	var out []models.Debt
	for _, id := range []models.ID{"1", "2", "3"} {
		if d, ok := f.debts[id]; ok && d.ContractID == cid {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeStore) ListPayments(ctx context.Context, debtID models.ID) ([]models.Payment, error) {
	if err := f.paymentsErr[debtID]; err != nil {
		return nil, err
	}
	return f.payments[debtID], nil
}

func pay(paid, amount string) models.Payment {
	var p models.Payment
	if paid != "-" {
		p.PaidAmount = models.NewLooseAmount(paid)
	}
	if amount != "-" {
		p.Amount = models.NewLooseAmount(amount)
	}
	return p
}

func TestPaidSum(t *testing.T) {
	got := PaidSum([]models.Payment{
		pay("100", "999"),
		pay("-", "50.5"),
		pay("abc", "70"),
		pay("-", "-"),
		pay("1 000,25", "-"),
	})
	if !got.Equal(mustDec(t, "1150.75")) {
		t.Fatalf("expected 1150.75, got %s", got)
	}
}

func TestRemaining(t *testing.T) {
	d := models.Debt{Amount: 1000}
	got := Remaining(d, []models.Payment{pay("250", "-")})
	if !got.Equal(mustDec(t, "750")) {
		t.Fatalf("expected 750, got %s", got)
	}
}

func TestFromPaymentsStates(t *testing.T) {
	d := models.Debt{ID: "1", Amount: 1000}

	l := FromPayments(d, nil, errors.New("timeout"))
	if l.State != StateUnavailable || l.PaidSum != nil || l.Remaining != nil || l.Nominal != 1000 {
		t.Fatalf("expected unavailable ledger without sums, got %+v", l)
	}

	l = FromPayments(d, nil, nil)
	if l.State != StateEmpty || l.Remaining == nil || !l.Remaining.Equal(mustDec(t, "1000")) {
		t.Fatalf("expected empty ledger with full remaining, got %+v", l)
	}

	l = FromPayments(d, []models.Payment{pay("400", "-")}, nil)
	if l.State != StateLoaded || !l.Remaining.Equal(mustDec(t, "600")) {
		t.Fatalf("expected loaded ledger, got %+v", l)
	}
}

func TestServiceBuildAndForContract(t *testing.T) {
	fs := &fakeStore{
		debts: map[models.ID]models.Debt{
			"1": {ID: "1", ContractID: "c", Amount: 600},
			"2": {ID: "2", ContractID: "c", Amount: 400},
			"3": {ID: "3", ContractID: "other", Amount: 5},
		},
		payments: map[models.ID][]models.Payment{
			"1": {pay("600", "-")},
			"2": {pay("-", "100")},
		},
		paymentsErr: map[models.ID]error{},
	}
	s := NewService(fs, fs, nil, log.New(io.Discard, "", 0))

	l, err := s.Build(context.Background(), "2")
	if err != nil {
		t.Fatal(err)
	}
	if !l.Remaining.Equal(mustDec(t, "300")) {
		t.Fatalf("expected 300 remaining, got %s", l.Remaining)
	}
	if _, err := s.Build(context.Background(), "404"); err == nil {
		t.Fatalf("expected error for unknown debt")
	}

	cl, err := s.ForContract(context.Background(), "c")
	if err != nil {
		t.Fatal(err)
	}
	if len(cl.Debts) != 2 || cl.Nominal != 1000 || cl.Remaining == nil || !cl.Remaining.Equal(mustDec(t, "300")) {
		t.Fatalf("unexpected contract ledger %+v", cl)
	}

	fs.paymentsErr["2"] = errors.New("502")
	cl, err = s.ForContract(context.Background(), "c")
	if err != nil {
		t.Fatal(err)
	}
	if cl.Unavailable != 1 || cl.Remaining != nil || !cl.PaidSum.Equal(mustDec(t, "600")) {
		t.Fatalf("expected unknown remaining with one unavailable debt, got %+v", cl)
	}
}
