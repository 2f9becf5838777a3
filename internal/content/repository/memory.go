package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/alien2112/safelines-sub000/internal/content"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemoryRepo is an in-memory repository used for unit tests and local runs
// without a database. It follows the Mongo repository's semantics.
type MemoryRepo struct {
	clock *content.Clock

	mu    sync.RWMutex
	store map[string][]map[string]interface{} // collection -> documents
}

func NewMemoryRepo(clock *content.Clock) *MemoryRepo {
	if clock == nil {
		clock = content.NewClock(nil)
	}
	return &MemoryRepo{clock: clock, store: make(map[string][]map[string]interface{})}
}

func denormalizedID(doc map[string]interface{}) string {
	s, _ := doc["id"].(string)
	return s
}

func (m *MemoryRepo) indexOf(col *content.Collection, id content.ID) int {
	for i, doc := range m.store[col.Name] {
		if id.Matches(doc["_id"], denormalizedID(doc)) {
			return i
		}
	}
	return -1
}

func (m *MemoryRepo) exists(col *content.Collection, docID interface{}) bool {
	for _, doc := range m.store[col.Name] {
		if doc["_id"] == docID {
			return true
		}
	}
	return false
}

func (m *MemoryRepo) denormalizedOf(col *content.Collection, docID interface{}) string {
	for _, doc := range m.store[col.Name] {
		if doc["_id"] == docID {
			return denormalizedID(doc)
		}
	}
	return ""
}

func (m *MemoryRepo) Insert(ctx context.Context, col *content.Collection, fields map[string]interface{}) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc := stampCreate(fields, m.clock.Now())
	delete(doc, "id")
	oid := primitive.NewObjectID()
	doc["_id"] = oid
	m.store[col.Name] = append(m.store[col.Name], doc)
	return oid.Hex(), nil
}

func (m *MemoryRepo) InsertWithID(ctx context.Context, col *content.Collection, id content.ID, fields map[string]interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.exists(col, id.DocumentID()) {
		return ErrDuplicateID
	}
	doc := stampInsert(fields, m.clock.Now())
	doc["_id"] = id.DocumentID()
	if id.IsNative() {
		delete(doc, "id")
	} else {
		doc["id"] = id.String()
	}
	m.store[col.Name] = append(m.store[col.Name], doc)
	return nil
}

func (m *MemoryRepo) Update(ctx context.Context, col *content.Collection, id content.ID, fields map[string]interface{}) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.indexOf(col, id)
	if i < 0 {
		return false, nil
	}
	for k, v := range stampUpdate(fields, m.clock.Now()) {
		m.store[col.Name][i][k] = v
	}
	return true, nil
}

func (m *MemoryRepo) Find(ctx context.Context, col *content.Collection, id content.ID) (content.Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	i := m.indexOf(col, id)
	if i < 0 {
		return nil, content.ErrNotFound
	}
	return col.Project(toItem(m.store[col.Name][i])), nil
}

func (m *MemoryRepo) List(ctx context.Context, col *content.Collection, q content.ListQuery) (*content.Listing, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	docs := m.store[col.Name]
	out := &content.Listing{Items: []content.Item{}, Total: len(docs)}
	for _, doc := range docs {
		it := toItem(doc)
		if u := it.UpdatedAt(); u.After(out.MaxUpdatedAt) {
			out.MaxUpdatedAt = u
		}
		if !q.IncludeHidden && !col.Visible(it) {
			continue
		}
		out.Items = append(out.Items, it)
	}
	sortItems(col, out.Items)
	for i, it := range out.Items {
		out.Items[i] = col.Project(it)
	}
	return out, nil
}

func (m *MemoryRepo) Delete(ctx context.Context, col *content.Collection, id content.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.indexOf(col, id)
	if i < 0 {
		return nil
	}
	docs := m.store[col.Name]
	m.store[col.Name] = append(docs[:i:i], docs[i+1:]...)
	return nil
}

func (m *MemoryRepo) MaxOrder(ctx context.Context, col *content.Collection) (int, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	max, found := 0, false
	for _, doc := range m.store[col.Name] {
		if n, ok := toInt(doc["order"]); ok && (!found || n > max) {
			max, found = n, true
		}
	}
	return max, found, nil
}

func (m *MemoryRepo) OrderEntries(ctx context.Context, col *content.Collection) ([]OrderEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	items := make([]content.Item, 0, len(m.store[col.Name]))
	for _, doc := range m.store[col.Name] {
		items = append(items, toItem(doc))
	}
	sortItems(col, items)
	out := make([]OrderEntry, 0, len(items))
	for _, it := range items {
		n, _ := toInt(it["order"])
		out = append(out, OrderEntry{DocID: it["_id"], Denormalized: m.denormalizedOf(col, it["_id"]), Order: n})
	}
	return out, nil
}

func (m *MemoryRepo) SetOrders(ctx context.Context, col *content.Collection, updates []OrderEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.clock.Now()
	for _, u := range updates {
		found := false
		for _, doc := range m.store[col.Name] {
			if doc["_id"] == u.DocID {
				for k, v := range stampUpdate(map[string]interface{}{"order": u.Order}, now) {
					doc[k] = v
				}
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("set order: %w", content.ErrNotFound)
		}
	}
	return nil
}

// toItem copies a stored document into the API shape: "id" carries the _id.
// The raw _id is kept under "_id" for internal callers and dropped by Project.
func toItem(doc map[string]interface{}) content.Item {
	it := make(content.Item, len(doc)+1)
	for k, v := range doc {
		it[k] = v
	}
	if denorm := denormalizedID(doc); denorm != "" {
		it["id"] = denorm
	}
	if s := content.DocIDString(doc["_id"]); s != "" {
		it["id"] = s
	}
	return it
}

func sortItems(col *content.Collection, items []content.Item) {
	key := func(it content.Item) string { return content.DocIDString(it["_id"]) }
	compare := func(a, b content.Item) int {
		switch col.SortField {
		case "order":
			// missing orders sort first, as Mongo sorts null before numbers
			x, okx := toInt(a["order"])
			y, oky := toInt(b["order"])
			if okx != oky {
				if !okx {
					return -1
				}
				return 1
			}
			if x != y {
				if x < y {
					return -1
				}
				return 1
			}
		default:
			x, _ := a[col.SortField].(time.Time)
			y, _ := b[col.SortField].(time.Time)
			if c := x.Compare(y); c != 0 {
				return c
			}
		}
		return strings.Compare(key(a), key(b))
	}
	sort.SliceStable(items, func(i, j int) bool {
		c := compare(items[i], items[j])
		if col.SortDescending {
			return c > 0
		}
		return c < 0
	})
}
