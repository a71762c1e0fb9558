package products

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/masig/pricebook/internal/activity"
	"github.com/masig/pricebook/internal/changefeed"
	"github.com/masig/pricebook/internal/shared"
)

type memoryRepo struct {
	mu       sync.Mutex
	products map[string]Product
	ledger   map[string][]PriceEntry
	seq      int64
	calls    []string

	listErr          error
	ledgerErr        error
	appendErr        error
	deleteProductErr error

	// listHook runs before ListProducts takes the lock.
	listHook func()
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{products: map[string]Product{}, ledger: map[string][]PriceEntry{}}
}

func (m *memoryRepo) seed(p Product, entries ...PriceEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[p.Code] = p
	for _, e := range entries {
		m.seq++
		e.ProductCode = p.Code
		e.Seq = m.seq
		m.ledger[p.Code] = append(m.ledger[p.Code], e)
	}
}

func (m *memoryRepo) ListProducts(ctx context.Context, search string) ([]Product, error) {
	if m.listHook != nil {
		m.listHook()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []Product
	needle := strings.ToLower(search)
	for _, p := range m.products {
		if needle != "" && !strings.Contains(strings.ToLower(p.Code), needle) && !strings.Contains(strings.ToLower(p.Description), needle) {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (m *memoryRepo) GetProduct(ctx context.Context, code string) (Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[code]
	if !ok {
		return Product{}, fmt.Errorf("product %s: %w", code, shared.ErrNotFound)
	}
	return p, nil
}

func (m *memoryRepo) Ledger(ctx context.Context, codes ...string) (map[string][]PriceEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ledgerErr != nil {
		return nil, m.ledgerErr
	}
	out := map[string][]PriceEntry{}
	for _, code := range codes {
		entries := append([]PriceEntry(nil), m.ledger[code]...)
		if len(entries) == 0 {
			continue
		}
		sort.SliceStable(entries, func(i, j int) bool {
			if !entries[i].EffectiveDate.Equal(entries[j].EffectiveDate) {
				return entries[i].EffectiveDate.After(entries[j].EffectiveDate)
			}
			return entries[i].Seq > entries[j].Seq
		})
		out[code] = entries
	}
	return out, nil
}

func (m *memoryRepo) CreateProduct(ctx context.Context, p Product, first PriceEntry) (PriceEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.products[p.Code]; ok {
		return PriceEntry{}, fmt.Errorf("product %s: %w", p.Code, shared.ErrDuplicate)
	}
	m.products[p.Code] = p
	m.seq++
	first.ProductCode = p.Code
	first.Seq = m.seq
	m.ledger[p.Code] = append(m.ledger[p.Code], first)
	return first, nil
}

func (m *memoryRepo) EditProduct(ctx context.Context, p Product, next *PriceEntry) (*PriceEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.products[p.Code]; !ok {
		return nil, fmt.Errorf("product %s: %w", p.Code, shared.ErrNotFound)
	}
	if next != nil && m.appendErr != nil {
		return nil, m.appendErr
	}
	m.products[p.Code] = p
	if next == nil {
		return nil, nil
	}
	m.seq++
	e := *next
	e.ProductCode = p.Code
	e.Seq = m.seq
	m.ledger[p.Code] = append(m.ledger[p.Code], e)
	return &e, nil
}

func (m *memoryRepo) DeleteLedger(ctx context.Context, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "delete_ledger")
	delete(m.ledger, code)
	return nil
}

func (m *memoryRepo) DeleteProduct(ctx context.Context, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "delete_product")
	if m.deleteProductErr != nil {
		return m.deleteProductErr
	}
	delete(m.products, code)
	return nil
}

type recordingFeed struct {
	mu     sync.Mutex
	events []changefeed.Event
}

func (f *recordingFeed) Publish(ctx context.Context, ev changefeed.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	return nil
}

func (f *recordingFeed) snapshot() []changefeed.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]changefeed.Event(nil), f.events...)
}

type memorySink struct {
	mu      sync.Mutex
	entries []activity.Entry
}

func (s *memorySink) Insert(ctx context.Context, e activity.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
	return nil
}

func (s *memorySink) snapshot() []activity.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]activity.Entry(nil), s.entries...)
}
