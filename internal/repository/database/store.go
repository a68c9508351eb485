package database

import (
	"context"
	"errors"
	"fmt"

	"debtster_installments/internal/config/connections/postgres"
	"debtster_installments/internal/models"
	"debtster_installments/internal/ports"

	"github.com/jackc/pgx/v5"
)

var ErrNotFound = ports.ErrNotFound

// Store serves the installment workflow straight from Postgres. Unlike the
// REST backend it can create a whole schedule in one transaction.
type Store struct {
	Contracts *ContractsRepo
	Debts     *DebtsRepo
	Payments  *PaymentsRepo
}

var (
	_ ports.DebtStore        = (*Store)(nil)
	_ ports.BatchDebtCreator = (*Store)(nil)
)

func NewStore(pg *postgres.Postgres) *Store {
	return &Store{
		Contracts: NewContractsRepo(pg, ""),
		Debts:     NewDebtsRepo(pg, ""),
		Payments:  NewPaymentsRepo(pg, ""),
	}
}

func (s *Store) CreateDebt(ctx context.Context, contractID models.ID, in ports.DebtInput) (models.Debt, error) {
	return s.Debts.Create(ctx, contractID, in)
}

func (s *Store) CreateDebts(ctx context.Context, contractID models.ID, in []ports.DebtInput) ([]models.Debt, error) {
	return s.Debts.CreateBatch(ctx, contractID, in)
}

func (s *Store) GetDebt(ctx context.Context, id models.ID) (models.Debt, error) {
	d, err := s.Debts.GetByID(ctx, id)
	return d, notFound(err, "debt", id)
}

func (s *Store) ListDebts(ctx context.Context, contractID models.ID) ([]models.Debt, error) {
	return s.Debts.ListByContract(ctx, contractID)
}

func (s *Store) ListPayments(ctx context.Context, debtID models.ID) ([]models.Payment, error) {
	return s.Payments.ListByDebt(ctx, debtID)
}

func (s *Store) GetContract(ctx context.Context, id models.ID) (models.Contract, error) {
	c, err := s.Contracts.GetByID(ctx, id)
	return c, notFound(err, "contract", id)
}

func notFound(err error, what string, id models.ID) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s %s: %w", what, id, ErrNotFound)
	}
	return err
}
