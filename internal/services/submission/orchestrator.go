// Package submission turns a validated installment schedule into debts.
package submission

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"debtster_installments/internal/installments"
	"debtster_installments/internal/metrics"
	"debtster_installments/internal/models"
	"debtster_installments/internal/ports"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

const DefaultConcurrency = 8

var (
	ErrInvalidSchedule    = errors.New("installment schedule is invalid")
	ErrSubmissionInFlight = errors.New("submission already in progress for contract")
	ErrNothingToRetry     = errors.New("nothing to retry")
	ErrRetryUnverifiable  = errors.New("debt store cannot list existing debts to check a retry")
)

// InvalidError carries the editor report that blocked the submission.
type InvalidError struct {
	Report installments.Report
}

func (e *InvalidError) Error() string {
	return fmt.Sprintf("%s: %d issue(s)", ErrInvalidSchedule, len(e.Report.Issues))
}

func (e *InvalidError) Unwrap() error { return ErrInvalidSchedule }

// Recorder keeps an audit trail of submissions.
type Recorder interface {
	Record(ctx context.Context, s Summary) error
}

type Options struct {
	// Concurrency bounds the parallel create calls of one submission.
	Concurrency int
	// Atomic uses BatchDebtCreator when the creator implements it.
	Atomic bool
	// RequestTimeout applies to each create call; zero means none.
	RequestTimeout time.Duration
	Now            func() time.Time
}

type Orchestrator struct {
	creator  ports.DebtCreator
	recorder Recorder
	metrics  *metrics.Metrics
	logger   *log.Logger
	opts     Options
	newKey   func() string

	mu       sync.Mutex
	inflight map[models.ID]struct{}
}

func New(creator ports.DebtCreator, recorder Recorder, m *metrics.Metrics, logger *log.Logger, opts Options) *Orchestrator {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Orchestrator{
		creator:  creator,
		recorder: recorder,
		metrics:  m,
		logger:   logger,
		opts:     opts,
		newKey:   uuid.NewString,
		inflight: make(map[models.ID]struct{}),
	}
}

type item struct {
	draft installments.Draft
	key   string
}

func (it item) input() ports.DebtInput {
	in := ports.DebtInput{Amount: it.draft.Amount, Title: it.draft.Title, IdempotencyKey: it.key}
	if !it.draft.DueDate.IsZero() {
		d := it.draft.DueDate
		in.DueDate = &d
	}
	return in
}

// Submit creates one debt per editor row. Rows are sent concurrently and
// settle independently; a failed row never cancels or rolls back the others.
// Issued calls are not cancelled when ctx is.
func (o *Orchestrator) Submit(ctx context.Context, ed *installments.Editor) (Summary, error) {
	if ed.Submitting() {
		return Summary{}, ErrSubmissionInFlight
	}
	rep := ed.Validate()
	if !rep.Valid {
		return Summary{}, &InvalidError{Report: rep}
	}
	if !ed.BeginSubmit() {
		return Summary{}, ErrSubmissionInFlight
	}
	defer ed.EndSubmit()

	cid := ed.Contract().ID
	if !o.acquire(cid) {
		return Summary{}, ErrSubmissionInFlight
	}
	defer o.release(cid)

	drafts := ed.Drafts()
	items := make([]item, len(drafts))
	for i, d := range drafts {
		items[i] = item{draft: d, key: o.newKey()}
	}

	s := o.run(ctx, cid, items)
	s.Total, s.Sum = rep.Total, rep.Sum
	o.finish(ctx, &s)
	return s, nil
}

// Retry resubmits rows that failed earlier with their original idempotency
// keys. The contract's existing debts plus the retried rows must still add up
// to the contract total, so a retry can only fill the gap the failures left.
func (o *Orchestrator) Retry(ctx context.Context, contract models.Contract, failed []Failed) (Summary, error) {
	if len(failed) == 0 {
		return Summary{}, ErrNothingToRetry
	}
	reader, ok := o.creator.(ports.DebtReader)
	if !ok {
		return Summary{}, ErrRetryUnverifiable
	}

	cid := contract.ID
	if !o.acquire(cid) {
		return Summary{}, ErrSubmissionInFlight
	}
	defer o.release(cid)

	existing, err := reader.ListDebts(ctx, cid)
	if err != nil {
		return Summary{}, fmt.Errorf("list debts of contract %s: %w", cid, err)
	}
	created := decimal.Zero
	for _, d := range existing {
		created = created.Add(decimal.NewFromInt(d.Amount))
	}
	gap := decimal.NewFromInt(contract.TotalRevenue).Sub(created)
	if !gap.IsPositive() {
		return Summary{}, &InvalidError{Report: installments.Report{
			ContractID: cid.String(),
			Total:      contract.TotalRevenue,
			Issues: []installments.Issue{{
				Code:    installments.IssueSumMismatch,
				Message: fmt.Sprintf("contract debts already sum to %s of %d", created, contract.TotalRevenue),
			}},
		}}
	}

	ed := installments.NewEmpty(models.Contract{ID: cid, Code: contract.Code, TotalRevenue: gap.IntPart()},
		installments.WithClock(o.opts.Now), installments.WithMaxRows(len(failed)))
	for i, f := range failed {
		_ = ed.AddRow()
		_ = ed.SetAmount(i, float64(f.Draft.Amount))
		_ = ed.SetDueDate(i, f.Draft.DueDate.String())
	}
	rep := ed.Validate()
	if !rep.Valid {
		return Summary{}, &InvalidError{Report: rep}
	}

	items := make([]item, len(failed))
	for i, f := range failed {
		key := f.IdempotencyKey
		if key == "" {
			key = o.newKey()
		}
		items[i] = item{draft: f.Draft, key: key}
	}

	s := o.run(ctx, cid, items)
	s.Retry = true
	s.Total, s.Sum = contract.TotalRevenue, rep.Sum
	o.finish(ctx, &s)
	return s, nil
}

func (o *Orchestrator) run(ctx context.Context, cid models.ID, items []item) Summary {
	s := Summary{ContractID: cid, ActorID: ports.ActorID(ctx), StartedAt: o.opts.Now()}
	o.logger.Printf("[SUBMIT][START] contract=%s rows=%d", cid, len(items))

	// closing the editor does not stop calls already on the wire
	detached := context.WithoutCancel(ctx)

	if bc, ok := o.creator.(ports.BatchDebtCreator); ok && o.opts.Atomic {
		s.Atomic = true
		o.runAtomic(detached, bc, cid, items, &s)
		s.FinishedAt = o.opts.Now()
		return s
	}

	type result struct {
		debt models.Debt
		err  error
	}
	results := make([]result, len(items))

	var g errgroup.Group
	g.SetLimit(o.opts.Concurrency)
	for i, it := range items {
		g.Go(func() error {
			rctx, cancel := o.requestContext(detached)
			defer cancel()

			start := time.Now()
			d, err := o.creator.CreateDebt(rctx, cid, it.input())
			o.metrics.ObserveCreate(start, err)
			results[i] = result{debt: d, err: err}
			return nil
		})
	}
	_ = g.Wait()

	for i, r := range results {
		it := items[i]
		if r.err != nil {
			o.logger.Printf("[SUBMIT][ROW][ERR] contract=%s row=%d amount=%d err=%v", cid, it.draft.Index, it.draft.Amount, r.err)
			s.Failed = append(s.Failed, Failed{Index: it.draft.Index, IdempotencyKey: it.key, Draft: it.draft, Reason: r.err.Error()})
			continue
		}
		s.Succeeded = append(s.Succeeded, Created{Index: it.draft.Index, IdempotencyKey: it.key, Debt: r.debt})
	}
	s.FinishedAt = o.opts.Now()
	return s
}

func (o *Orchestrator) runAtomic(ctx context.Context, bc ports.BatchDebtCreator, cid models.ID, items []item, s *Summary) {
	inputs := make([]ports.DebtInput, len(items))
	for i, it := range items {
		inputs[i] = it.input()
	}

	rctx, cancel := o.requestContext(ctx)
	defer cancel()

	start := time.Now()
	debts, err := bc.CreateDebts(rctx, cid, inputs)
	if err == nil && len(debts) != len(items) {
		err = fmt.Errorf("batch create returned %d debts for %d rows", len(debts), len(items))
	}
	o.metrics.ObserveCreate(start, err)

	if err != nil {
		o.logger.Printf("[SUBMIT][BATCH][ERR] contract=%s rows=%d err=%v", cid, len(items), err)
		for _, it := range items {
			s.Failed = append(s.Failed, Failed{Index: it.draft.Index, IdempotencyKey: it.key, Draft: it.draft, Reason: err.Error()})
		}
		return
	}
	for i, it := range items {
		s.Succeeded = append(s.Succeeded, Created{Index: it.draft.Index, IdempotencyKey: it.key, Debt: debts[i]})
	}
}

func (o *Orchestrator) finish(ctx context.Context, s *Summary) {
	outcome := s.Outcome()
	o.metrics.ObserveSubmission(string(outcome))
	o.logger.Printf("[SUBMIT][DONE] contract=%s outcome=%s ok=%d failed=%d retry=%t took=%s",
		s.ContractID, outcome, len(s.Succeeded), len(s.Failed), s.Retry, s.FinishedAt.Sub(s.StartedAt))

	if o.recorder == nil {
		return
	}
	if err := o.recorder.Record(context.WithoutCancel(ctx), *s); err != nil {
		o.logger.Printf("[SUBMIT][AUDIT][ERR] contract=%s err=%v", s.ContractID, err)
	}
}

func (o *Orchestrator) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.opts.RequestTimeout > 0 {
		return context.WithTimeout(ctx, o.opts.RequestTimeout)
	}
	return context.WithCancel(ctx)
}

func (o *Orchestrator) acquire(cid models.ID) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, busy := o.inflight[cid]; busy {
		return false
	}
	o.inflight[cid] = struct{}{}
	return true
}

func (o *Orchestrator) release(cid models.ID) {
	o.mu.Lock()
	delete(o.inflight, cid)
	o.mu.Unlock()
}
