package app

import (
	"context"
	"errors"
	"testing"

	"github.com/example/filedupe/internal/ports/primary"
)

// stubFinder advances the cursor by limit up to last.
type stubFinder struct {
	last  int64
	calls int
	err   error
}

func (f *stubFinder) Find(ctx context.Context, cursor int64, limit int) (int64, error) {
	f.calls++
	if f.err != nil {
		return cursor, f.err
	}
	next := min(cursor+int64(limit), f.last)
	return next, nil
}

// stubReplacer resolves rows in the ledger it is given.
type stubReplacer struct {
	ledger  *mockLedger
	outcome primary.ReplaceOutcome
	failOn  int64
}

func (r *stubReplacer) Replace(ctx context.Context, duplicateID, originalID int64) (*primary.ReplaceResult, error) {
	if duplicateID == r.failOn {
		return nil, errors.New("rewrite failed")
	}
	if err := r.ledger.MarkResolved(ctx, duplicateID, originalID, fixedNow()); err != nil {
		return nil, err
	}
	return &primary.ReplaceResult{DuplicateID: duplicateID, OriginalID: originalID, Outcome: r.outcome}, nil
}

func newOrchestratorFixture(rows ...pair) (*BatchOrchestrator, *mockLedger, *stubFinder, *stubReplacer) {
	items := newMockItemCatalog(
		newItem(1, 1, "a", "x"), newItem(2, 1, "a", "x"), newItem(3, 1, "a", "x"),
		newItem(4, 1, "a", "x"), newItem(5, 1, "a", "x"),
	)
	ledger := newMockLedger(items)
	for _, p := range rows {
		_ = ledger.Record(context.Background(), p.dup, p.orig, p.exact)
	}
	finder := &stubFinder{last: 5}
	replacer := &stubReplacer{ledger: ledger, outcome: primary.OutcomeDeleted}
	o := NewBatchOrchestrator(finder, replacer, ledger, items)
	o.now = fixedNow
	return o, ledger, finder, replacer
}

func TestBatchOrchestrator_FindSteps(t *testing.T) {
	o, _, finder, _ := newOrchestratorFixture()
	ctx := context.Background()
	p := &primary.Progress{}

	if err := o.FindStep(ctx, p, 2); err != nil {
		t.Fatalf("FindStep failed: %v", err)
	}
	if !p.Started || p.RunID == "" || p.Operation != primary.OperationFind {
		t.Fatalf("expected started find progress, got %+v", p)
	}
	if p.Total != 5 || p.Cursor != 2 || p.Processed != 2 {
		t.Errorf("unexpected progress after first step: %+v", p)
	}
	runID := p.RunID

	for !p.Finished {
		if err := o.FindStep(ctx, p, 2); err != nil {
			t.Fatalf("FindStep failed: %v", err)
		}
	}
	if p.RunID != runID {
		t.Error("run ID changed between steps")
	}
	if p.Cursor != 5 || p.Processed != 5 {
		t.Errorf("unexpected final progress: %+v", p)
	}
	// 0→2, 2→4, 4→5, 5→5 (done)
	if finder.calls != 4 {
		t.Errorf("expected 4 scans, got %d", finder.calls)
	}

	// Finished progress is a no-op.
	if err := o.FindStep(ctx, p, 2); err != nil {
		t.Fatalf("FindStep failed: %v", err)
	}
	if finder.calls != 4 {
		t.Errorf("expected no further scans, got %d", finder.calls)
	}
}

func TestBatchOrchestrator_FindStep_Error(t *testing.T) {
	o, _, finder, _ := newOrchestratorFixture()
	finder.err = errors.New("db locked")
	p := &primary.Progress{}

	if err := o.FindStep(context.Background(), p, 2); err == nil {
		t.Fatal("expected error")
	}
	if p.Cursor != 0 || p.Failures != 1 || p.Finished {
		t.Errorf("expected cursor kept and failure counted, got %+v", p)
	}
}

func TestBatchOrchestrator_FindStep_WrongOperation(t *testing.T) {
	o, _, _, _ := newOrchestratorFixture()
	p := &primary.Progress{Started: true, Operation: primary.OperationReplace}

	if err := o.FindStep(context.Background(), p, 2); err == nil {
		t.Error("expected error for mismatched operation")
	}
}

func TestBatchOrchestrator_ReplaceSteps(t *testing.T) {
	o, ledger, _, _ := newOrchestratorFixture(pair{2, 1, true}, pair{3, 1, false})
	ctx := context.Background()
	p := &primary.Progress{}

	if err := o.ReplaceStep(ctx, p); err != nil {
		t.Fatalf("ReplaceStep failed: %v", err)
	}
	if p.Total != 2 || p.Processed != 1 || p.CurrentDuplicateID != 2 || p.Deleted != 1 {
		t.Errorf("unexpected progress: %+v", p)
	}

	if err := o.RunReplace(ctx, p, primary.BatchOptions{}); err != nil {
		t.Fatalf("RunReplace failed: %v", err)
	}
	if !p.Finished || p.Processed != 2 {
		t.Errorf("expected finished after 2 rows, got %+v", p)
	}
	if next, _ := ledger.NextUnresolved(ctx); next != nil {
		t.Errorf("expected no unresolved rows, got %+v", next)
	}
	if p.Message != "Finished replacing duplicates" {
		t.Errorf("unexpected message %q", p.Message)
	}
}

func TestBatchOrchestrator_ReplaceFailureMovesOn(t *testing.T) {
	o, ledger, _, replacer := newOrchestratorFixture(pair{2, 1, true}, pair{3, 1, true}, pair{4, 1, true})
	replacer.failOn = 2
	ctx := context.Background()
	p := &primary.Progress{}

	var observed int
	err := o.RunReplace(ctx, p, primary.BatchOptions{OnStep: func(*primary.Progress) error {
		observed++
		return nil
	}})
	if err != nil {
		t.Fatalf("RunReplace failed: %v", err)
	}
	// 3 rows plus the finishing step
	if observed != 4 {
		t.Errorf("expected progress observed 4 times, got %d", observed)
	}
	if !p.Finished || p.Processed != 3 || p.Deleted != 2 || p.Failures != 1 {
		t.Errorf("unexpected progress: %+v", p)
	}
	if len(p.FailedRows) != 1 || p.FailedRows[0] != 1 {
		t.Errorf("expected ledger row 1 recorded as failed, got %v", p.FailedRows)
	}
	if p.Message != "Some files could not be fully processed" {
		t.Errorf("unexpected message %q", p.Message)
	}

	next, _ := ledger.NextUnresolved(ctx)
	if next == nil || next.DuplicateID != 2 {
		t.Errorf("expected row 2 to stay unresolved, got %+v", next)
	}

	// A fresh run retries the failed row.
	replacer.failOn = 0
	retry := &primary.Progress{}
	if err := o.RunReplace(ctx, retry, primary.BatchOptions{}); err != nil {
		t.Fatalf("RunReplace failed: %v", err)
	}
	if !retry.Finished || retry.Total != 1 || retry.Deleted != 1 || retry.Failures != 0 {
		t.Errorf("unexpected retry progress: %+v", retry)
	}
	if next, _ := ledger.NextUnresolved(ctx); next != nil {
		t.Errorf("expected no unresolved rows, got %+v", next)
	}
}

func TestBatchOrchestrator_ReplaceStep_CancelKeepsRow(t *testing.T) {
	o, _, _, replacer := newOrchestratorFixture(pair{2, 1, true})
	replacer.failOn = 2
	ctx, cancel := context.WithCancel(context.Background())
	p := &primary.Progress{}
	if err := o.start(ctx, p, primary.OperationReplace); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	cancel()

	if err := o.ReplaceStep(ctx, p); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if p.Cursor != 0 || p.Failures != 0 || len(p.FailedRows) != 0 {
		t.Errorf("expected row left for the next run, got %+v", p)
	}
}

func TestBatchOrchestrator_RunFind_MaxSteps(t *testing.T) {
	o, _, finder, _ := newOrchestratorFixture()
	p := &primary.Progress{}

	if err := o.RunFind(context.Background(), p, primary.BatchOptions{ChunkSize: 1, MaxSteps: 2}); err != nil {
		t.Fatalf("RunFind failed: %v", err)
	}
	if finder.calls != 2 || p.Cursor != 2 || p.Finished {
		t.Errorf("expected two steps, got calls=%d progress=%+v", finder.calls, p)
	}

	// Resuming from the saved progress finishes the run.
	if err := o.RunFind(context.Background(), p, primary.BatchOptions{ChunkSize: 10}); err != nil {
		t.Fatalf("RunFind failed: %v", err)
	}
	if !p.Finished || p.Cursor != 5 {
		t.Errorf("expected finished at 5, got %+v", p)
	}
}

func TestBatchOrchestrator_RunStopsOnCancel(t *testing.T) {
	o, _, finder, _ := newOrchestratorFixture()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := o.RunFind(ctx, &primary.Progress{}, primary.BatchOptions{ChunkSize: 1})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if finder.calls != 0 {
		t.Errorf("expected no scans, got %d", finder.calls)
	}
}

func TestBatchOrchestrator_OnStepError(t *testing.T) {
	o, _, finder, _ := newOrchestratorFixture()
	stop := errors.New("save failed")

	err := o.RunFind(context.Background(), &primary.Progress{}, primary.BatchOptions{
		ChunkSize: 1,
		OnStep:    func(*primary.Progress) error { return stop },
	})
	if !errors.Is(err, stop) {
		t.Errorf("expected OnStep error, got %v", err)
	}
	if finder.calls != 1 {
		t.Errorf("expected one scan, got %d", finder.calls)
	}
}
