package database

import (
	"context"
	"time"

	"debtster_installments/internal/config/connections/postgres"
	"debtster_installments/internal/models"
)

type PaymentsRepo struct {
	pg    *postgres.Postgres
	table string
}

func NewPaymentsRepo(pg *postgres.Postgres, table string) *PaymentsRepo {
	if table == "" {
		table = "payments"
	}
	return &PaymentsRepo{
		pg:    pg,
		table: table,
	}
}

// ListByDebt reads amounts as text so the ledger sees exactly what is stored.
func (r *PaymentsRepo) ListByDebt(ctx context.Context, debtID models.ID) ([]models.Payment, error) {
	rows, err := r.pg.Pool.Query(ctx, `
		SELECT id::text, debt_id::text, paid_amount::text, amount::text, paid_date
		FROM `+r.table+`
		WHERE debt_id = $1::uuid
		ORDER BY paid_date NULLS LAST, created_at
	`, debtID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]models.Payment, 0)
	for rows.Next() {
		var (
			id, did      string
			paid, amount *string
			paidDate     *time.Time
		)
		if err := rows.Scan(&id, &did, &paid, &amount, &paidDate); err != nil {
			return nil, err
		}
		p := models.Payment{ID: models.ID(id), DebtID: models.ID(did)}
		if paid != nil {
			p.PaidAmount = models.NewLooseAmount(*paid)
		}
		if amount != nil {
			p.Amount = models.NewLooseAmount(*amount)
		}
		if paidDate != nil {
			d := models.DateOf(*paidDate)
			p.PaidDate = &d
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
