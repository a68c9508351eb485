package database

import (
	"context"
	"fmt"
	"time"

	"debtster_installments/internal/config/connections/postgres"
	"debtster_installments/internal/models"
	"debtster_installments/internal/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type DebtsRepo struct {
	pg    *postgres.Postgres
	table string
}

func NewDebtsRepo(pg *postgres.Postgres, table string) *DebtsRepo {
	if table == "" {
		table = "debts"
	}
	return &DebtsRepo{
		pg:    pg,
		table: table,
	}
}

const debtColumns = `id::text, contract_id::text, amount, due_date, title, COALESCE(status, 'pending'), created_at`

// insert is idempotent on idempotency_key: a replayed key returns the row that
// was created the first time.
func (r *DebtsRepo) insertQuery() string {
	return `
		INSERT INTO ` + r.table + ` (
			id, contract_id, amount, due_date, title, status, idempotency_key, created_at
		) VALUES (
			$1::uuid, $2::uuid, $3::bigint, $4::date, $5, 'pending', NULLIF($6, ''), NOW()
		)
		ON CONFLICT (idempotency_key) DO UPDATE SET
			updated_at = ` + r.table + `.updated_at
		RETURNING ` + debtColumns
}

func insertArgs(contractID models.ID, in ports.DebtInput) []any {
	var due *time.Time
	if in.DueDate != nil && !in.DueDate.IsZero() {
		t := in.DueDate.Time()
		due = &t
	}
	return []any{uuid.NewString(), contractID.String(), in.Amount, due, in.Title, in.IdempotencyKey}
}

func (r *DebtsRepo) Create(ctx context.Context, contractID models.ID, in ports.DebtInput) (models.Debt, error) {
	row := r.pg.Pool.QueryRow(ctx, r.insertQuery(), insertArgs(contractID, in)...)
	return scanDebt(row)
}

// CreateBatch inserts every input inside one transaction.
func (r *DebtsRepo) CreateBatch(ctx context.Context, contractID models.ID, ins []ports.DebtInput) (out []models.Debt, err error) {
	tx, err := r.pg.Pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	batch := &pgx.Batch{}
	q := r.insertQuery()
	for _, in := range ins {
		batch.Queue(q, insertArgs(contractID, in)...)
	}

	br := tx.SendBatch(ctx, batch)
	out = make([]models.Debt, 0, len(ins))
	for i := range ins {
		d, scanErr := scanDebt(br.QueryRow())
		if scanErr != nil {
			_ = br.Close()
			return nil, fmt.Errorf("row %d: %w", i, scanErr)
		}
		out = append(out, d)
	}
	if err = br.Close(); err != nil {
		return nil, err
	}
	if err = tx.Commit(ctx); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *DebtsRepo) GetByID(ctx context.Context, id models.ID) (models.Debt, error) {
	row := r.pg.Pool.QueryRow(ctx, `SELECT `+debtColumns+` FROM `+r.table+` WHERE id = $1::uuid`, id.String())
	return scanDebt(row)
}

// ListByContract returns debts ordered by due date; an empty contractID lists all.
func (r *DebtsRepo) ListByContract(ctx context.Context, contractID models.ID) ([]models.Debt, error) {
	query := `SELECT ` + debtColumns + ` FROM ` + r.table
	var args []any
	if contractID != "" {
		query += ` WHERE contract_id = $1::uuid`
		args = append(args, contractID.String())
	}
	query += ` ORDER BY due_date NULLS LAST, created_at`

	rows, err := r.pg.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]models.Debt, 0)
	for rows.Next() {
		d, err := scanDebt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func scanDebt(row pgx.Row) (models.Debt, error) {
	var (
		d       models.Debt
		id, cid string
		due     *time.Time
		status  string
	)
	if err := row.Scan(&id, &cid, &d.Amount, &due, &d.Title, &status, &d.CreatedAt); err != nil {
		return models.Debt{}, err
	}
	d.ID, d.ContractID = models.ID(id), models.ID(cid)
	d.Status = models.DebtStatus(status)
	if due != nil {
		dd := models.DateOf(*due)
		d.DueDate = &dd
	}
	return d, nil
}
