package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/alien2112/safelines-sub000/internal/content"
	"github.com/alien2112/safelines-sub000/internal/content/repository"
	"github.com/alien2112/safelines-sub000/pkg/apperr"
	"github.com/alien2112/safelines-sub000/pkg/metrics"
	"github.com/gosimple/slug"
	"go.mongodb.org/mongo-driver/mongo"
)

// Service implements the content operations used by the handler layer and the
// seed command. All mutations go through the repository's stamping write path.
type Service struct {
	repo repository.Repository
}

func NewService(repo repository.Repository) *Service {
	return &Service{repo: repo}
}

// NewMemoryService returns a Service backed by the in-memory repository.
func NewMemoryService() *Service {
	return NewService(repository.NewMemoryRepo(content.NewClock(nil)))
}

// NewMongoService returns a Service backed by a Mongo database.
// Caller is responsible for creating the database handle (and client) and passing it in.
func NewMongoService(db *mongo.Database) *Service {
	return NewService(repository.NewMongoRepo(db, content.NewClock(nil)))
}

// SaveResult reports the id written and whether the write created the item.
type SaveResult struct {
	ID      string
	Created bool
}

func (s *Service) List(ctx context.Context, col *content.Collection, q content.ListQuery) (*content.Listing, error) {
	return s.repo.List(ctx, col, q)
}

// Get returns one item. Public callers only see visible items.
func (s *Service) Get(ctx context.Context, col *content.Collection, rawID string, includeHidden bool) (content.Item, error) {
	id, err := content.ParseID(rawID)
	if err != nil {
		return nil, err
	}
	it, err := s.repo.Find(ctx, col, id)
	if err != nil {
		return nil, err
	}
	if !includeHidden && !col.Visible(it) {
		return nil, content.ErrNotFound
	}
	return it, nil
}

// Save creates or updates an item.
//
// Without an id the payload is inserted under a fresh native id. With an id the
// payload's fields are $set on the addressed item; when nothing matches, the
// item is inserted under the supplied id. That applies to native and external
// ids alike, so a pre-seeded id such as "1" that was never imported still
// resolves to exactly one document after the first write.
func (s *Service) Save(ctx context.Context, col *content.Collection, payload map[string]interface{}) (SaveResult, error) {
	fields, rawID, hasID, err := sanitize(col, payload)
	if err != nil {
		return SaveResult{}, err
	}

	if !hasID {
		if err := s.applyInsertDefaults(ctx, col, fields); err != nil {
			return SaveResult{}, err
		}
		id, err := s.repo.Insert(ctx, col, fields)
		if err != nil {
			return SaveResult{}, err
		}
		metrics.ContentMutations.WithLabelValues(col.Name, "create").Inc()
		return SaveResult{ID: id, Created: true}, nil
	}

	id, err := content.IDFromValue(rawID)
	if err != nil {
		return SaveResult{}, err
	}
	matched, err := s.repo.Update(ctx, col, id, fields)
	if err != nil {
		return SaveResult{}, err
	}
	if matched {
		metrics.ContentMutations.WithLabelValues(col.Name, "update").Inc()
		return SaveResult{ID: id.String(), Created: false}, nil
	}

	if err := s.applyInsertDefaults(ctx, col, fields); err != nil {
		return SaveResult{}, err
	}
	switch err := s.repo.InsertWithID(ctx, col, id, fields); {
	case errors.Is(err, repository.ErrDuplicateID):
		// a concurrent writer inserted it between our update and insert
		if _, err := s.repo.Update(ctx, col, id, fields); err != nil {
			return SaveResult{}, err
		}
		metrics.ContentMutations.WithLabelValues(col.Name, "update").Inc()
		return SaveResult{ID: id.String(), Created: false}, nil
	case err != nil:
		return SaveResult{}, err
	}
	metrics.ContentMutations.WithLabelValues(col.Name, "upsert").Inc()
	return SaveResult{ID: id.String(), Created: true}, nil
}

// Validate checks a payload the way Save does, without writing.
func (s *Service) Validate(col *content.Collection, payload map[string]interface{}) error {
	_, rawID, hasID, err := sanitize(col, payload)
	if err != nil {
		return err
	}
	if hasID {
		_, err = content.IDFromValue(rawID)
	}
	return err
}

// Delete removes an item. Missing items are not an error.
func (s *Service) Delete(ctx context.Context, col *content.Collection, rawID string) error {
	id, err := content.ParseID(rawID)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, col, id); err != nil {
		return err
	}
	metrics.ContentMutations.WithLabelValues(col.Name, "delete").Inc()
	return nil
}

// Reorder swaps an item with its neighbour in direction dir and renumbers the
// collection 0..n-1. Moving the first item up or the last item down is a no-op.
func (s *Service) Reorder(ctx context.Context, col *content.Collection, rawID string, dir content.Direction) error {
	if !col.Ordered {
		return apperr.Invalidf("%s cannot be reordered", col.Name)
	}
	if !dir.Valid() {
		return apperr.Invalidf("direction must be %q or %q", content.Up, content.Down)
	}
	id, err := content.ParseID(rawID)
	if err != nil {
		return err
	}
	entries, err := s.repo.OrderEntries(ctx, col)
	if err != nil {
		return err
	}
	idx := -1
	for i, e := range entries {
		if id.Matches(e.DocID, e.Denormalized) {
			idx = i
			break
		}
	}
	if idx < 0 {
		return content.ErrNotFound
	}
	target := idx - 1
	if dir == content.Down {
		target = idx + 1
	}
	if target < 0 || target >= len(entries) {
		return nil
	}
	entries[idx], entries[target] = entries[target], entries[idx]

	var updates []repository.OrderEntry
	for i, e := range entries {
		if e.Order != i || i == idx || i == target {
			e.Order = i
			updates = append(updates, e)
		}
	}
	if err := s.repo.SetOrders(ctx, col, updates); err != nil {
		return err
	}
	metrics.ContentMutations.WithLabelValues(col.Name, "reorder").Inc()
	return nil
}

func (s *Service) applyInsertDefaults(ctx context.Context, col *content.Collection, fields map[string]interface{}) error {
	if col.Ordered {
		if _, ok := fields["order"]; !ok {
			max, found, err := s.repo.MaxOrder(ctx, col)
			if err != nil {
				return err
			}
			next := 0
			if found {
				next = max + 1
			}
			fields["order"] = next
		}
	}
	if col.Slugged {
		if _, ok := fields["slug"]; !ok {
			if title, ok := fields["title"].(string); ok && strings.TrimSpace(title) != "" {
				fields["slug"] = slug.Make(title)
			}
		}
	}
	return nil
}

// sanitize validates a payload and splits off the id. Server-managed keys are
// dropped; createdAt is parsed when supplied; the visibility flag must be a
// boolean and order an integer.
func sanitize(col *content.Collection, payload map[string]interface{}) (map[string]interface{}, interface{}, bool, error) {
	if payload == nil {
		return nil, nil, false, content.ErrInvalidPayload
	}
	fields := make(map[string]interface{}, len(payload))
	for k, v := range payload {
		fields[k] = v
	}

	rawID, hasID := fields["id"]
	if s, ok := rawID.(string); (ok && strings.TrimSpace(s) == "") || rawID == nil {
		hasID = false
	}
	delete(fields, "id")
	delete(fields, "_id")
	delete(fields, "updatedAt")

	if v, ok := fields[col.VisibilityField]; ok {
		if _, isBool := v.(bool); !isBool {
			return nil, nil, false, apperr.Invalidf("%s must be a boolean", col.VisibilityField)
		}
	}
	if v, ok := fields["order"]; ok {
		n, isNum := v.(float64)
		switch t := v.(type) {
		case int:
			n, isNum = float64(t), true
		case int64:
			n, isNum = float64(t), true
		}
		if !isNum || n != float64(int64(n)) {
			return nil, nil, false, apperr.Invalid("order must be an integer")
		}
		fields["order"] = int(n)
	}
	if v, ok := fields["createdAt"]; ok {
		switch t := v.(type) {
		case time.Time:
		case string:
			parsed, err := time.Parse(time.RFC3339Nano, t)
			if err != nil {
				return nil, nil, false, apperr.Invalidf("createdAt must be an RFC 3339 timestamp: %v", err)
			}
			fields["createdAt"] = parsed.UTC()
		default:
			return nil, nil, false, fmt.Errorf("%w: createdAt has type %T", content.ErrInvalidPayload, v)
		}
	}
	return fields, rawID, hasID, nil
}
