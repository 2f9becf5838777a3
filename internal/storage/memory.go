package storage

import (
	"bytes"
	"context"
	"io"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type memoryObject struct {
	meta Object
	data []byte
}

// MemoryStore is an ObjectStore held in process memory, used by tests and by
// STORAGE_BACKEND=memory for local runs.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]*memoryObject
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string]*memoryObject), now: time.Now}
}

func (m *MemoryStore) Upload(ctx context.Context, r io.Reader, in UploadInput) (Object, error) {
	data, err := io.ReadAll(NewContextReader(ctx, r))
	if err != nil {
		return Object{}, err
	}
	obj := Object{
		ID:          primitive.NewObjectID().Hex(),
		Filename:    in.Filename,
		ContentType: in.ContentType,
		Length:      int64(len(data)),
		// BSON dates carry milliseconds
		UploadDate: m.now().UTC().Truncate(time.Millisecond),
		Section:    in.Section,
		Order:      copyOrder(in.Order),
	}
	m.mu.Lock()
	m.objects[obj.ID] = &memoryObject{meta: obj, data: data}
	m.mu.Unlock()
	return obj, nil
}

func (m *MemoryStore) lookup(id string) (*memoryObject, error) {
	if _, err := ParseObjectID(id); err != nil {
		return nil, err
	}
	o, ok := m.objects[id]
	if !ok {
		return nil, ErrNotFound
	}
	return o, nil
}

func (m *MemoryStore) Open(ctx context.Context, id string) (Object, io.ReadCloser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, err := m.lookup(id)
	if err != nil {
		return Object{}, nil, err
	}
	return cloneObject(o.meta), io.NopCloser(bytes.NewReader(o.data)), nil
}

func (m *MemoryStore) Stat(ctx context.Context, id string) (Object, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, err := m.lookup(id)
	if err != nil {
		return Object{}, err
	}
	return cloneObject(o.meta), nil
}

func (m *MemoryStore) List(ctx context.Context, section string) (*Listing, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := &Listing{Objects: []Object{}}
	for _, o := range m.objects {
		if section != "" && o.meta.Section != section {
			continue
		}
		out.Objects = append(out.Objects, cloneObject(o.meta))
		if o.meta.UploadDate.After(out.MaxUploadDate) {
			out.MaxUploadDate = o.meta.UploadDate
		}
	}
	sort.Slice(out.Objects, func(i, j int) bool { return lessObjects(out.Objects[i], out.Objects[j]) })
	out.Count = len(out.Objects)
	return out, nil
}

func (m *MemoryStore) SetOrder(ctx context.Context, id string, order int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, err := m.lookup(id)
	if err != nil {
		return err
	}
	o.meta.Order = &order
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, id string) error {
	if _, err := ParseObjectID(id); err != nil {
		return err
	}
	m.mu.Lock()
	delete(m.objects, id)
	m.mu.Unlock()
	return nil
}

func copyOrder(o *int) *int {
	if o == nil {
		return nil
	}
	v := *o
	return &v
}

func cloneObject(o Object) Object {
	o.Order = copyOrder(o.Order)
	return o
}
