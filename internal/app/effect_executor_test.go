package app

import (
	"context"
	"errors"
	"testing"

	"github.com/example/filedupe/internal/core/effects"
	"github.com/example/filedupe/internal/ports/secondary"
)

type recordingStore struct {
	saved   []*secondary.LiveRecord
	saveErr error
}

func (r *recordingStore) Load(ctx context.Context, recordType, recordID string) (*secondary.LiveRecord, error) {
	return nil, secondary.ErrRecordNotFound
}

func (r *recordingStore) Save(ctx context.Context, record *secondary.LiveRecord) error {
	if r.saveErr != nil {
		return r.saveErr
	}
	r.saved = append(r.saved, record)
	return nil
}

type recordingHistory struct {
	updates []secondary.HistoryUpdate
	rows    int64
}

func (r *recordingHistory) RewriteHistory(ctx context.Context, u secondary.HistoryUpdate) (int64, error) {
	r.updates = append(r.updates, u)
	return r.rows, nil
}

type usageCall struct {
	op     string
	itemID int64
	n      int
}

type recordingUsage struct {
	calls []usageCall
}

func (r *recordingUsage) Zero(ctx context.Context, ref secondary.ReferencingRecord, itemID int64) error {
	r.calls = append(r.calls, usageCall{effects.UsageZero, itemID, 0})
	return nil
}

func (r *recordingUsage) Decrement(ctx context.Context, ref secondary.ReferencingRecord, itemID int64, n int) error {
	r.calls = append(r.calls, usageCall{effects.UsageDecrement, itemID, n})
	return nil
}

func (r *recordingUsage) Increment(ctx context.Context, ref secondary.ReferencingRecord, itemID int64, n int) error {
	r.calls = append(r.calls, usageCall{effects.UsageIncrement, itemID, n})
	return nil
}

func TestEffectExecutor_Execute(t *testing.T) {
	store := &recordingStore{}
	history := &recordingHistory{rows: 3}
	usage := &recordingUsage{}
	items := newMockItemCatalog(newItem(2, 1, "a", "public://2"))
	e := NewEffectExecutor(store, history, usage, items)

	rev := int64(4)
	result, err := e.Execute(context.Background(), []effects.Effect{
		effects.SaveRecordEffect{RecordType: "article", RecordID: "a1", RevisionID: &rev, Fields: map[string][]int64{"image": {1}}},
		effects.HistoryUpdateEffect{Table: "t", Column: "c", IDColumn: "entity_id", VersionColumn: "revision_id", RecordID: "a1", ExcludeRevision: &rev, From: 2, To: 1},
		effects.CompositeEffect{Effects: []effects.Effect{
			effects.UsageEffect{Operation: effects.UsageZero, ItemID: 2},
			effects.UsageEffect{Operation: effects.UsageIncrement, ItemID: 1, Count: 4},
		}},
		effects.DeleteItemEffect{ItemID: 2, Locator: "public://2", RemoveContent: true},
		effects.LogEffect{Level: "debug", Message: "done", Fields: map[string]any{"fid": 2}},
	})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if result.RecordsSaved != 1 || len(store.saved) != 1 || *store.saved[0].RevisionID != 4 {
		t.Errorf("expected one save at revision 4, got %+v", store.saved)
	}
	if result.HistoryRows != 3 || len(history.updates) != 1 || history.updates[0].To != 1 {
		t.Errorf("unexpected history updates: %+v", history.updates)
	}
	if result.UsageChanges != 2 || len(usage.calls) != 2 || usage.calls[1] != (usageCall{effects.UsageIncrement, 1, 4}) {
		t.Errorf("unexpected usage calls: %+v", usage.calls)
	}
	if result.ItemsDeleted != 1 || len(items.items) != 0 {
		t.Errorf("expected item 2 deleted, catalog now %v", items.items)
	}
	if len(result.PendingRemovals) != 1 || result.PendingRemovals[0] != "public://2" {
		t.Errorf("expected pending removal of public://2, got %v", result.PendingRemovals)
	}
}

func TestEffectExecutor_StopsOnError(t *testing.T) {
	store := &recordingStore{saveErr: errors.New("locked")}
	history := &recordingHistory{}
	e := NewEffectExecutor(store, history, &recordingUsage{}, newMockItemCatalog())

	_, err := e.Execute(context.Background(), []effects.Effect{
		effects.SaveRecordEffect{RecordType: "article", RecordID: "a1"},
		effects.HistoryUpdateEffect{Table: "t"},
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if len(history.updates) != 0 {
		t.Error("expected no effects after the failing one")
	}
}

func TestEffectExecutor_UnknownUsageOperation(t *testing.T) {
	e := NewEffectExecutor(&recordingStore{}, &recordingHistory{}, &recordingUsage{}, newMockItemCatalog())

	if _, err := e.Execute(context.Background(), []effects.Effect{effects.UsageEffect{Operation: "double"}}); err == nil {
		t.Error("expected error for unknown usage operation")
	}
}

func TestEffectExecutor_DeleteKeepsSharedContent(t *testing.T) {
	items := newMockItemCatalog(
		newItem(1, 100, "image/png", "public://img/1.png"),
		newItem(5, 100, "image/png", "public://img/1.png"),
		newItem(6, 100, "image/png", "public://img/6.png"),
	)
	e := NewEffectExecutor(&recordingStore{}, &recordingHistory{}, &recordingUsage{}, items)

	result, err := e.Execute(context.Background(), []effects.Effect{
		effects.DeleteItemEffect{ItemID: 5, Locator: "public://img/1.png", RemoveContent: true},
		effects.DeleteItemEffect{ItemID: 6, Locator: "public://img/6.png", RemoveContent: true},
	})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if result.ItemsDeleted != 2 {
		t.Errorf("expected 2 items deleted, got %d", result.ItemsDeleted)
	}
	if _, ok := items.items[1]; !ok {
		t.Error("expected item 1 to remain")
	}
	if len(result.PendingRemovals) != 1 || result.PendingRemovals[0] != "public://img/6.png" {
		t.Errorf("expected only public://img/6.png pending removal, got %v", result.PendingRemovals)
	}
}
