package repository

import (
	"context"
	"errors"
	"time"

	"github.com/alien2112/safelines-sub000/internal/content"
)

var (
	// ErrDuplicateID is returned when an insert races another insert for the same id.
	ErrDuplicateID = errors.New("duplicate id")
)

// Repository persists content items for all collections.
// Every write path goes through the stamp helpers so updatedAt is
// refreshed on each successful mutation.
type Repository interface {
	// Insert stores fields under a fresh native id and returns it.
	Insert(ctx context.Context, col *content.Collection, fields map[string]interface{}) (string, error)
	// InsertWithID stores fields under a caller-supplied id. External ids are also
	// written to the denormalized "id" field.
	InsertWithID(ctx context.Context, col *content.Collection, id content.ID, fields map[string]interface{}) error
	// Update $sets fields on the item addressed by id and reports whether one matched.
	Update(ctx context.Context, col *content.Collection, id content.ID, fields map[string]interface{}) (bool, error)
	Find(ctx context.Context, col *content.Collection, id content.ID) (content.Item, error)
	List(ctx context.Context, col *content.Collection, q content.ListQuery) (*content.Listing, error)
	// Delete removes the addressed item; a missing item is not an error.
	Delete(ctx context.Context, col *content.Collection, id content.ID) error
	// MaxOrder returns the highest "order" in the collection and whether any item has one.
	MaxOrder(ctx context.Context, col *content.Collection) (int, bool, error)
	// OrderEntries lists every item's id and order, sorted the way the listing is.
	OrderEntries(ctx context.Context, col *content.Collection) ([]OrderEntry, error)
	// SetOrders writes new order values.
	SetOrders(ctx context.Context, col *content.Collection, updates []OrderEntry) error
}

// OrderEntry identifies a stored item and its display order.
type OrderEntry struct {
	DocID        interface{}
	Denormalized string
	Order        int
}

// stampCreate prepares a document for a fresh insert; both timestamps are now.
func stampCreate(fields map[string]interface{}, now time.Time) map[string]interface{} {
	doc := stampInsert(fields, now)
	doc["createdAt"] = now
	return doc
}

// stampInsert prepares a document inserted under a caller-supplied id:
// createdAt is kept when supplied, updatedAt is always now.
func stampInsert(fields map[string]interface{}, now time.Time) map[string]interface{} {
	doc := make(map[string]interface{}, len(fields)+3)
	for k, v := range fields {
		doc[k] = v
	}
	delete(doc, "_id")
	if t, ok := doc["createdAt"].(time.Time); !ok || t.IsZero() {
		doc["createdAt"] = now
	}
	doc["updatedAt"] = now
	return doc
}

// stampUpdate prepares a $set body with a refreshed updatedAt.
func stampUpdate(fields map[string]interface{}, now time.Time) map[string]interface{} {
	set := make(map[string]interface{}, len(fields)+1)
	for k, v := range fields {
		set[k] = v
	}
	delete(set, "_id")
	delete(set, "id")
	set["updatedAt"] = now
	return set
}

// toInt converts the numeric forms an order value may take.
func toInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	}
	return 0, false
}
