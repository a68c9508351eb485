package submission

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"debtster_installments/internal/installments"
	"debtster_installments/internal/metrics"
	"debtster_installments/internal/models"
	"debtster_installments/internal/ports"

	"github.com/prometheus/client_golang/prometheus"
)

var fixedNow = time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

func day(offset int) string {
	return models.DateOf(fixedNow).AddDays(offset).String()
}

type fakeCreator struct {
	mu      sync.Mutex
	calls   []ports.DebtInput
	created []models.Debt
	failOn  map[int64]error
	block   chan struct{}
	running atomic.Int32
	peak    atomic.Int32
	nextID  atomic.Int64
}

func (f *fakeCreator) CreateDebt(ctx context.Context, cid models.ID, in ports.DebtInput) (models.Debt, error) {
	n := f.running.Add(1)
	defer f.running.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	if f.block != nil {
		<-f.block
	}

	f.mu.Lock()
	f.calls = append(f.calls, in)
	f.mu.Unlock()

	if err := f.failOn[in.Amount]; err != nil {
		return models.Debt{}, err
	}
	id := f.nextID.Add(1)
	d := models.Debt{ID: models.ID(fmt.Sprintf("d%d", id)), ContractID: cid, Amount: in.Amount, DueDate: in.DueDate, Status: models.DebtStatusPending}
	f.mu.Lock()
	f.created = append(f.created, d)
	f.mu.Unlock()
	return d, nil
}

func (f *fakeCreator) GetDebt(ctx context.Context, id models.ID) (models.Debt, error) {
	return models.Debt{}, ports.ErrNotFound
}

func (f *fakeCreator) ListDebts(ctx context.Context, cid models.ID) ([]models.Debt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Debt
	for _, d := range f.created {
		if d.ContractID == cid {
			out = append(out, d)
		}
	}
	return out, nil
}

type fakeBatch struct {
	fakeCreator
	batchErr error
	batches  int
}

func (f *fakeBatch) CreateDebts(ctx context.Context, cid models.ID, in []ports.DebtInput) ([]models.Debt, error) {
	f.batches++
	if f.batchErr != nil {
		return nil, f.batchErr
	}
	out := make([]models.Debt, len(in))
	for i, d := range in {
		out[i] = models.Debt{ID: models.ID(fmt.Sprintf("b%d", i)), ContractID: cid, Amount: d.Amount}
	}
	return out, nil
}

type fakeRecorder struct {
	got []Summary
}

func (r *fakeRecorder) Record(ctx context.Context, s Summary) error {
	r.got = append(r.got, s)
	return nil
}

func quietLogger() *log.Logger { return log.New(io.Discard, "", 0) }

func scenarioEditor(t *testing.T) *installments.Editor {
	t.Helper()
	ed := installments.New(models.Contract{ID: "42", TotalRevenue: 12_000_000}, installments.WithClock(clock))
	_ = ed.SetAmount(0, 6_000_000)
	_ = ed.SetDueDate(0, day(10))
	_ = ed.AddRow()
	_ = ed.SetPercent(1, "50")
	_ = ed.SetDueDate(1, day(20))
	_ = ed.SetTitle(1, "second half")
	return ed
}

func newOrchestrator(c ports.DebtCreator, r Recorder, opts Options) *Orchestrator {
	opts.Now = clock
	return New(c, r, metrics.New(prometheus.NewRegistry()), quietLogger(), opts)
}

func TestSubmitAllSucceed(t *testing.T) {
	fc := &fakeCreator{}
	rec := &fakeRecorder{}
	o := newOrchestrator(fc, rec, Options{})

	ctx := context.WithValue(context.Background(), ports.CtxActorID, "17")
	s, err := o.Submit(ctx, scenarioEditor(t))
	if err != nil {
		t.Fatal(err)
	}
	if s.Outcome() != OutcomeSuccess || len(s.Succeeded) != 2 || len(fc.calls) != 2 {
		t.Fatalf("unexpected summary %+v calls=%d", s, len(fc.calls))
	}
	if s.Succeeded[0].Index != 0 || s.Succeeded[1].Index != 1 {
		t.Fatalf("expected results in row order, got %+v", s.Succeeded)
	}
	if s.Sum != 12_000_000 || s.Total != 12_000_000 {
		t.Fatalf("unexpected totals %d/%d", s.Sum, s.Total)
	}
	for _, c := range fc.calls {
		if c.IdempotencyKey == "" || c.DueDate == nil {
			t.Fatalf("expected key and due date on every call, got %+v", c)
		}
	}
	if len(rec.got) != 1 || rec.got[0].ActorID != "17" {
		t.Fatalf("expected one audit record with actor, got %+v", rec.got)
	}
}

func TestSubmitPartialFailureKeepsCreatedRows(t *testing.T) {
	fc := &fakeCreator{failOn: map[int64]error{6_000_001: errors.New("network down")}}
	o := newOrchestrator(fc, nil, Options{})

	ed := installments.New(models.Contract{ID: "42", TotalRevenue: 12_000_000}, installments.WithClock(clock))
	_ = ed.SetAmount(0, 5_999_999)
	_ = ed.SetDueDate(0, day(10))
	_ = ed.AddRow()
	_ = ed.SetAmount(1, 6_000_001)
	_ = ed.SetDueDate(1, day(20))

	s, err := o.Submit(context.Background(), ed)
	if err != nil {
		t.Fatal(err)
	}
	if len(fc.calls) != 2 {
		t.Fatalf("expected both rows sent, got %d", len(fc.calls))
	}
	if s.Outcome() != OutcomePartial {
		t.Fatalf("expected partial outcome, got %s", s.Outcome())
	}
	if len(s.Succeeded) != 1 || s.Succeeded[0].Index != 0 {
		t.Fatalf("expected row 0 created, got %+v", s.Succeeded)
	}
	if len(s.Failed) != 1 || s.Failed[0].Index != 1 || s.Failed[0].Reason != "network down" {
		t.Fatalf("expected row 1 failed, got %+v", s.Failed)
	}
	if ed.Submitting() {
		t.Fatalf("expected editor released after submit")
	}

	fc.failOn = nil
	r, err := o.Retry(context.Background(), models.Contract{ID: "42", TotalRevenue: 12_000_000}, s.Failed)
	if err != nil {
		t.Fatal(err)
	}
	if r.Outcome() != OutcomeSuccess || !r.Retry {
		t.Fatalf("expected retry success, got %+v", r)
	}
	last := fc.calls[len(fc.calls)-1]
	if last.IdempotencyKey != s.Failed[0].IdempotencyKey || last.Amount != 6_000_001 {
		t.Fatalf("expected retry to reuse key and amount, got %+v", last)
	}
}

func TestSubmitAllFail(t *testing.T) {
	boom := errors.New("boom")
	fc := &fakeCreator{failOn: map[int64]error{6_000_000: boom}}
	o := newOrchestrator(fc, nil, Options{})
	s, err := o.Submit(context.Background(), scenarioEditor(t))
	if err != nil {
		t.Fatal(err)
	}
	if s.Outcome() != OutcomeFailed || len(s.Failed) != 2 {
		t.Fatalf("expected all failed, got %+v", s)
	}
}

func TestSubmitRejectsInvalidEditor(t *testing.T) {
	fc := &fakeCreator{}
	o := newOrchestrator(fc, nil, Options{})

	ed := scenarioEditor(t)
	_ = ed.SetAmount(0, 5_000_000)

	_, err := o.Submit(context.Background(), ed)
	var inv *InvalidError
	if !errors.As(err, &inv) || !errors.Is(err, ErrInvalidSchedule) {
		t.Fatalf("expected InvalidError, got %v", err)
	}
	if !inv.Report.Has(installments.IssueSumMismatch) {
		t.Fatalf("expected sum mismatch in report, got %+v", inv.Report.Issues)
	}
	if len(fc.calls) != 0 {
		t.Fatalf("expected no backend calls, got %d", len(fc.calls))
	}
}

func TestSubmitGuardsConcurrentSubmissionOfSameContract(t *testing.T) {
	fc := &fakeCreator{block: make(chan struct{})}
	o := newOrchestrator(fc, nil, Options{})

	done := make(chan error, 1)
	go func() {
		_, err := o.Submit(context.Background(), scenarioEditor(t))
		done <- err
	}()

	deadline := time.After(2 * time.Second)
	for fc.running.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("first submission never started")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	if _, err := o.Submit(context.Background(), scenarioEditor(t)); !errors.Is(err, ErrSubmissionInFlight) {
		t.Fatalf("expected ErrSubmissionInFlight, got %v", err)
	}

	close(fc.block)
	if err := <-done; err != nil {
		t.Fatal(err)
	}
	if _, err := o.Submit(context.Background(), scenarioEditor(t)); err != nil {
		t.Fatalf("expected guard released, got %v", err)
	}
}

func TestSubmitRejectsEditorAlreadySubmitting(t *testing.T) {
	fc := &fakeCreator{}
	o := newOrchestrator(fc, nil, Options{})

	ed := scenarioEditor(t)
	if !ed.BeginSubmit() {
		t.Fatal("expected BeginSubmit to succeed")
	}
	if _, err := o.Submit(context.Background(), ed); !errors.Is(err, ErrSubmissionInFlight) {
		t.Fatalf("expected ErrSubmissionInFlight, got %v", err)
	}
	if len(fc.calls) != 0 {
		t.Fatalf("expected no create calls, got %d", len(fc.calls))
	}
}

func TestSubmitRespectsConcurrencyLimit(t *testing.T) {
	fc := &fakeCreator{}
	o := newOrchestrator(fc, nil, Options{Concurrency: 1})

	ed := installments.NewEmpty(models.Contract{ID: "1", TotalRevenue: 50}, installments.WithClock(clock))
	for i := 0; i < 5; i++ {
		_ = ed.AddRow()
		_ = ed.SetAmount(i, 10)
		_ = ed.SetDueDate(i, day(i+1))
	}
	if _, err := o.Submit(context.Background(), ed); err != nil {
		t.Fatal(err)
	}
	if p := fc.peak.Load(); p != 1 {
		t.Fatalf("expected at most 1 call in flight, got %d", p)
	}
}

func TestSubmitDetachedFromCallerCancel(t *testing.T) {
	fc := &fakeCreator{}
	o := newOrchestrator(fc, nil, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s, err := o.Submit(ctx, scenarioEditor(t))
	if err != nil {
		t.Fatal(err)
	}
	if !s.AllSucceeded() {
		t.Fatalf("expected calls to run despite cancelled caller, got %+v", s)
	}
}

func TestAtomicMode(t *testing.T) {
	fb := &fakeBatch{}
	o := newOrchestrator(fb, nil, Options{Atomic: true})
	s, err := o.Submit(context.Background(), scenarioEditor(t))
	if err != nil {
		t.Fatal(err)
	}
	if !s.Atomic || fb.batches != 1 || len(fb.calls) != 0 || !s.AllSucceeded() {
		t.Fatalf("expected a single batch call, got %+v batches=%d", s, fb.batches)
	}

	fb.batchErr = errors.New("tx aborted")
	s, err = o.Submit(context.Background(), scenarioEditor(t))
	if err != nil {
		t.Fatal(err)
	}
	if s.Outcome() != OutcomeFailed || len(s.Failed) != 2 {
		t.Fatalf("expected every row failed in atomic mode, got %+v", s)
	}
}

func TestRetryValidation(t *testing.T) {
	fc := &fakeCreator{}
	o := newOrchestrator(fc, nil, Options{})
	c := models.Contract{ID: "1", TotalRevenue: 10}
	if _, err := o.Retry(context.Background(), c, nil); !errors.Is(err, ErrNothingToRetry) {
		t.Fatalf("expected ErrNothingToRetry, got %v", err)
	}

	stale := []Failed{{Index: 0, Draft: installments.Draft{Amount: 10, DueDate: models.DateOf(fixedNow)}}}
	if _, err := o.Retry(context.Background(), c, stale); !errors.Is(err, ErrInvalidSchedule) {
		t.Fatalf("expected past due date rejected, got %v", err)
	}
	if len(fc.calls) != 0 {
		t.Fatalf("expected nothing sent, got %d calls", len(fc.calls))
	}
}

func TestRetryMustFillTheRemainingGap(t *testing.T) {
	fc := &fakeCreator{}
	o := newOrchestrator(fc, nil, Options{})
	c := models.Contract{ID: "7", TotalRevenue: 1000}
	due := models.DateOf(fixedNow).AddDays(10)

	if _, err := fc.CreateDebt(context.Background(), "7", ports.DebtInput{Amount: 600}); err != nil {
		t.Fatal(err)
	}
	fc.calls = nil

	inflated := []Failed{{Index: 1, IdempotencyKey: "k1", Draft: installments.Draft{Index: 1, Amount: 999_999_999, DueDate: due}}}
	_, err := o.Retry(context.Background(), c, inflated)
	var invalid *InvalidError
	if !errors.As(err, &invalid) || !invalid.Report.Has(installments.IssueRowErrors) {
		t.Fatalf("expected inflated amount rejected, got %v", err)
	}

	short := []Failed{{Index: 1, IdempotencyKey: "k1", Draft: installments.Draft{Index: 1, Amount: 300, DueDate: due}}}
	_, err = o.Retry(context.Background(), c, short)
	if !errors.As(err, &invalid) || !invalid.Report.Has(installments.IssueSumMismatch) {
		t.Fatalf("expected sum mismatch for a short retry, got %v", err)
	}
	if len(fc.calls) != 0 {
		t.Fatalf("expected rejected retries to send nothing, got %d calls", len(fc.calls))
	}

	exact := []Failed{{Index: 1, IdempotencyKey: "k1", Draft: installments.Draft{Index: 1, Amount: 400, DueDate: due}}}
	s, err := o.Retry(context.Background(), c, exact)
	if err != nil {
		t.Fatal(err)
	}
	if s.Outcome() != OutcomeSuccess || s.Total != 1000 || s.Sum != 400 {
		t.Fatalf("unexpected retry summary %+v", s)
	}

	if _, err := o.Retry(context.Background(), c, exact); !errors.As(err, &invalid) || !invalid.Report.Has(installments.IssueSumMismatch) {
		t.Fatalf("expected a second retry on a complete contract rejected, got %v", err)
	}
}

func TestRetryNeedsDebtListing(t *testing.T) {
	o := newOrchestrator(struct{ ports.DebtCreator }{&fakeCreator{}}, nil, Options{})
	due := models.DateOf(fixedNow).AddDays(10)
	failed := []Failed{{Draft: installments.Draft{Amount: 10, DueDate: due}}}
	if _, err := o.Retry(context.Background(), models.Contract{ID: "1", TotalRevenue: 10}, failed); !errors.Is(err, ErrRetryUnverifiable) {
		t.Fatalf("expected ErrRetryUnverifiable, got %v", err)
	}
}
