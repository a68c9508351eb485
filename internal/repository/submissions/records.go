// Package submissions keeps the audit trail of installment submissions in Mongo.
package submissions

import (
	"context"
	"time"

	mg "debtster_installments/internal/config/connections/mongo"
	"debtster_installments/internal/services/submission"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const Collection = "installment_submissions"

type RowRecord struct {
	Index          int     `bson:"index" json:"index"`
	IdempotencyKey string  `bson:"idempotency_key" json:"idempotency_key"`
	Amount         int64   `bson:"amount" json:"amount"`
	DueDate        string  `bson:"due_date" json:"due_date"`
	Title          *string `bson:"title,omitempty" json:"title,omitempty"`
	DebtID         string  `bson:"debt_id,omitempty" json:"debt_id,omitempty"`
	Error          string  `bson:"error,omitempty" json:"error,omitempty"`
}

type Record struct {
	ID         any         `bson:"_id,omitempty" json:"id"`
	ContractID string      `bson:"contract_id" json:"contract_id"`
	ActorID    string      `bson:"actor_id,omitempty" json:"actor_id,omitempty"`
	Outcome    string      `bson:"outcome" json:"outcome"`
	Retry      bool        `bson:"retry" json:"retry"`
	Atomic     bool        `bson:"atomic" json:"atomic"`
	Total      int64       `bson:"total" json:"total"`
	Sum        int64       `bson:"sum" json:"sum"`
	Succeeded  []RowRecord `bson:"succeeded" json:"succeeded"`
	Failed     []RowRecord `bson:"failed" json:"failed"`
	StartedAt  time.Time   `bson:"started_at" json:"started_at"`
	FinishedAt time.Time   `bson:"finished_at" json:"finished_at"`
	CreatedAt  time.Time   `bson:"created_at" json:"created_at"`
}

// FromSummary flattens a summary into the stored shape.
func FromSummary(s submission.Summary) Record {
	rec := Record{
		ContractID: s.ContractID.String(),
		ActorID:    s.ActorID,
		Outcome:    string(s.Outcome()),
		Retry:      s.Retry,
		Atomic:     s.Atomic,
		Total:      s.Total,
		Sum:        s.Sum,
		Succeeded:  make([]RowRecord, 0, len(s.Succeeded)),
		Failed:     make([]RowRecord, 0, len(s.Failed)),
		StartedAt:  s.StartedAt.UTC(),
		FinishedAt: s.FinishedAt.UTC(),
	}
	for _, c := range s.Succeeded {
		rr := RowRecord{
			Index:          c.Index,
			IdempotencyKey: c.IdempotencyKey,
			Amount:         c.Debt.Amount,
			Title:          c.Debt.Title,
			DebtID:         c.Debt.ID.String(),
		}
		if c.Debt.DueDate != nil {
			rr.DueDate = c.Debt.DueDate.String()
		}
		rec.Succeeded = append(rec.Succeeded, rr)
	}
	for _, f := range s.Failed {
		rec.Failed = append(rec.Failed, RowRecord{
			Index:          f.Index,
			IdempotencyKey: f.IdempotencyKey,
			Amount:         f.Draft.Amount,
			DueDate:        f.Draft.DueDate.String(),
			Title:          f.Draft.Title,
			Error:          f.Reason,
		})
	}
	return rec
}

type Repo struct {
	mg *mg.Mongo
}

var _ submission.Recorder = (*Repo)(nil)

func NewRepo(m *mg.Mongo) *Repo { return &Repo{mg: m} }

func (r *Repo) coll() (*mongo.Collection, error) {
	if r.mg == nil || r.mg.Client == nil || r.mg.Database == nil {
		return nil, mongo.ErrClientDisconnected
	}
	return r.mg.Database.Collection(Collection), nil
}

func (r *Repo) Record(ctx context.Context, s submission.Summary) error {
	coll, err := r.coll()
	if err != nil {
		return err
	}
	rec := FromSummary(s)
	rec.CreatedAt = time.Now().UTC()
	_, err = coll.InsertOne(ctx, rec, options.InsertOne())
	return err
}

// ListByContract returns the newest records first.
func (r *Repo) ListByContract(ctx context.Context, contractID string, limit int64) ([]Record, error) {
	coll, err := r.coll()
	if err != nil {
		return nil, err
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}
	cur, err := coll.Find(ctx, bson.M{"contract_id": contractID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := make([]Record, 0)
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
