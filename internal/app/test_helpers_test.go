package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/example/filedupe/internal/ports/secondary"
)

// Ensure mocks implement the interfaces
var (
	_ secondary.ItemCatalog        = (*mockItemCatalog)(nil)
	_ secondary.DuplicateLedger    = (*mockLedger)(nil)
	_ secondary.ExemptionPredicate = (*mockExemptions)(nil)
	_ secondary.ContentStore       = (*mockContentStore)(nil)
	_ secondary.Transactor         = (*mockTransactor)(nil)
)

// mockItemCatalog implements secondary.ItemCatalog for testing.
type mockItemCatalog struct {
	items     map[int64]*secondary.ManagedItem
	deleteErr error
}

func newMockItemCatalog(items ...*secondary.ManagedItem) *mockItemCatalog {
	m := &mockItemCatalog{items: make(map[int64]*secondary.ManagedItem)}
	for _, item := range items {
		m.items[item.ID] = item
	}
	return m
}

func (m *mockItemCatalog) Load(ctx context.Context, id int64) (*secondary.ManagedItem, error) {
	item, ok := m.items[id]
	if !ok {
		return nil, fmt.Errorf("file %d: %w", id, secondary.ErrItemNotFound)
	}
	return item, nil
}

func (m *mockItemCatalog) Query(ctx context.Context, size int64, mimeType string, idGreaterThan int64) ([]*secondary.ManagedItem, error) {
	var out []*secondary.ManagedItem
	for _, item := range m.sorted() {
		if item.ID > idGreaterThan && item.Size == size && item.MimeType == mimeType {
			out = append(out, item)
		}
	}
	return out, nil
}

func (m *mockItemCatalog) Delete(ctx context.Context, id int64) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	if _, ok := m.items[id]; !ok {
		return secondary.ErrItemNotFound
	}
	delete(m.items, id)
	return nil
}

func (m *mockItemCatalog) Count(ctx context.Context) (int, error) {
	return len(m.items), nil
}

func (m *mockItemCatalog) ExistsByLocator(ctx context.Context, locator string) (bool, error) {
	for _, item := range m.items {
		if item.Locator == locator {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockItemCatalog) sorted() []*secondary.ManagedItem {
	out := make([]*secondary.ManagedItem, 0, len(m.items))
	for _, item := range m.items {
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// mockLedger implements secondary.DuplicateLedger in memory. NextUnclassifiedAfter
// reads from items.
type mockLedger struct {
	rows      []*secondary.DuplicateRecord
	items     *mockItemCatalog
	recordErr error
	lastID    int64
}

func newMockLedger(items *mockItemCatalog) *mockLedger {
	return &mockLedger{items: items}
}

func (m *mockLedger) Record(ctx context.Context, duplicateID, originalID int64, exact bool) error {
	if m.recordErr != nil {
		return m.recordErr
	}
	if duplicateID == originalID {
		return secondary.ErrSelfReference
	}
	m.lastID++
	m.rows = append(m.rows, &secondary.DuplicateRecord{
		ID:          m.lastID,
		DuplicateID: duplicateID,
		OriginalID:  originalID,
		Exact:       exact,
	})
	return nil
}

func (m *mockLedger) NextUnresolved(ctx context.Context) (*secondary.DuplicateRecord, error) {
	return m.NextUnresolvedAfter(ctx, 0)
}

func (m *mockLedger) NextUnresolvedAfter(ctx context.Context, rowID int64) (*secondary.DuplicateRecord, error) {
	for _, r := range m.rows {
		if r.ReplacedAt == nil && r.ID > rowID {
			return r, nil
		}
	}
	return nil, nil
}

func (m *mockLedger) Lookup(ctx context.Context, duplicateID, originalID int64) (*secondary.DuplicateRecord, error) {
	for _, r := range m.rows {
		if r.ReplacedAt == nil && r.DuplicateID == duplicateID && r.OriginalID == originalID {
			return r, nil
		}
	}
	return nil, nil
}

func (m *mockLedger) MarkResolved(ctx context.Context, duplicateID, originalID int64, at time.Time) error {
	for _, r := range m.rows {
		if r.ReplacedAt == nil && r.DuplicateID == duplicateID && r.OriginalID == originalID {
			stamp := at
			r.ReplacedAt = &stamp
		}
	}
	return nil
}

func (m *mockLedger) Reset(ctx context.Context) error {
	m.rows = nil
	return nil
}

func (m *mockLedger) IsClassified(ctx context.Context, itemID int64) (bool, error) {
	for _, r := range m.rows {
		if r.DuplicateID == itemID || r.OriginalID == itemID {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockLedger) NextUnclassifiedAfter(ctx context.Context, cursor int64) (*secondary.ManagedItem, error) {
	for _, item := range m.items.sorted() {
		if item.ID <= cursor {
			continue
		}
		classified, _ := m.IsClassified(ctx, item.ID)
		if !classified {
			return item, nil
		}
	}
	return nil, nil
}

func (m *mockLedger) Counts(ctx context.Context) (*secondary.LedgerCounts, error) {
	c := &secondary.LedgerCounts{Total: len(m.rows)}
	for _, r := range m.rows {
		if r.Exact {
			c.Exact++
		}
		if r.ReplacedAt != nil {
			c.Resolved++
		}
	}
	c.Possible = c.Total - c.Exact
	c.Unresolved = c.Total - c.Resolved
	return c, nil
}

func (m *mockLedger) List(ctx context.Context, filters secondary.LedgerFilters) ([]*secondary.DuplicateRecord, error) {
	var out []*secondary.DuplicateRecord
	for _, r := range m.rows {
		if filters.UnresolvedOnly && r.ReplacedAt != nil {
			continue
		}
		if filters.ExactOnly && !r.Exact {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// mockExemptions implements secondary.ExemptionPredicate for testing.
type mockExemptions struct {
	exempt map[int64]bool
}

func (m *mockExemptions) IsExempt(ctx context.Context, itemID int64) (bool, error) {
	return m.exempt[itemID], nil
}

// mockContentStore implements secondary.ContentStore over a map of locators.
// Locators absent from the map are unreadable.
type mockContentStore struct {
	mu      sync.Mutex
	content map[string][]byte
	opened  map[string]int
	removed []string
}

func newMockContentStore(content map[string]string) *mockContentStore {
	m := &mockContentStore{content: make(map[string][]byte), opened: make(map[string]int)}
	for k, v := range content {
		m.content[k] = []byte(v)
	}
	return m
}

func (m *mockContentStore) Open(ctx context.Context, locator string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.opened[locator]++
	data, ok := m.content[locator]
	if !ok {
		return nil, errors.New("no such content")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *mockContentStore) Remove(ctx context.Context, locator string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removed = append(m.removed, locator)
	delete(m.content, locator)
	return nil
}

// mockTransactor runs fn directly.
type mockTransactor struct {
	calls int
}

func (m *mockTransactor) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	m.calls++
	return fn(ctx)
}

// secondaryItem shortens test tables.
type secondaryItem = secondary.ManagedItem

func newItem(id, size int64, mime, locator string) *secondary.ManagedItem {
	return &secondary.ManagedItem{ID: id, Size: size, MimeType: mime, Locator: locator}
}

func fixedNow() time.Time {
	return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
}
