package ports

import (
	"context"
	"errors"

	"debtster_installments/internal/models"
)

// ErrNotFound is returned by every store for a missing contract or debt.
var ErrNotFound = errors.New("not found")

// DebtInput is the create payload for one installment.
type DebtInput struct {
	Amount         int64
	DueDate        *models.Date
	Title          *string
	IdempotencyKey string
}

type DebtCreator interface {
	CreateDebt(ctx context.Context, contractID models.ID, in DebtInput) (models.Debt, error)
}

// BatchDebtCreator creates every input or none of them.
type BatchDebtCreator interface {
	CreateDebts(ctx context.Context, contractID models.ID, in []DebtInput) ([]models.Debt, error)
}

type DebtReader interface {
	GetDebt(ctx context.Context, id models.ID) (models.Debt, error)
	ListDebts(ctx context.Context, contractID models.ID) ([]models.Debt, error)
}

type PaymentReader interface {
	ListPayments(ctx context.Context, debtID models.ID) ([]models.Payment, error)
}

type ContractReader interface {
	GetContract(ctx context.Context, id models.ID) (models.Contract, error)
}

// DebtStore is everything the installment workflow needs from a backend.
type DebtStore interface {
	DebtCreator
	DebtReader
	PaymentReader
	ContractReader
}
