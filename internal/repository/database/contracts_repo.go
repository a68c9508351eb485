package database

import (
	"context"

	"debtster_installments/internal/config/connections/postgres"
	"debtster_installments/internal/models"
)

type ContractsRepo struct {
	pg    *postgres.Postgres
	table string
}

func NewContractsRepo(pg *postgres.Postgres, table string) *ContractsRepo {
	if table == "" {
		table = "contracts"
	}
	return &ContractsRepo{pg: pg, table: table}
}

func (r *ContractsRepo) GetByID(ctx context.Context, id models.ID) (models.Contract, error) {
	var (
		c      models.Contract
		cid    string
		code   *string
		amount int64
	)
	err := r.pg.Pool.QueryRow(ctx,
		`SELECT id::text, code, COALESCE(total_revenue, 0)::bigint FROM `+r.table+` WHERE id = $1::uuid`,
		id.String(),
	).Scan(&cid, &code, &amount)
	if err != nil {
		return models.Contract{}, err
	}
	c.ID, c.TotalRevenue = models.ID(cid), amount
	if code != nil {
		c.Code = *code
	}
	return c, nil
}
