package storage

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/alien2112/safelines-sub000/pkg/apperr"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrNotFound  = apperr.NotFound("image not found")
	ErrInvalidID = apperr.Invalid("malformed image id")
)

// Object is the metadata of one stored image.
type Object struct {
	ID          string    `json:"id"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"contentType"`
	Length      int64     `json:"length"`
	UploadDate  time.Time `json:"uploadDate"`
	Section     string    `json:"section"`
	Order       *int      `json:"order,omitempty"`
}

// Listing is a section listing plus the newest upload date across it.
type Listing struct {
	Objects       []Object
	MaxUploadDate time.Time
	Count         int
}

// UploadInput describes a new object. Order is optional; Size is the byte
// count when known and zero otherwise.
type UploadInput struct {
	Filename    string
	Section     string
	ContentType string
	Order       *int
	Size        int64
}

// ObjectStore keeps image binaries together with their metadata. Ids are
// ObjectID hex strings for every backend so URLs stay stable across them.
type ObjectStore interface {
	// Upload writes the binary and its metadata as one logical operation.
	Upload(ctx context.Context, r io.Reader, in UploadInput) (Object, error)
	// Open returns the metadata and a lazy reader over the binary. The caller closes it.
	Open(ctx context.Context, id string) (Object, io.ReadCloser, error)
	Stat(ctx context.Context, id string) (Object, error)
	// List returns objects in section (all when empty) ordered by order asc,
	// then upload date desc.
	List(ctx context.Context, section string) (*Listing, error)
	SetOrder(ctx context.Context, id string, order int) error
	// Delete removes metadata and binary. Absent well-formed ids succeed.
	Delete(ctx context.Context, id string) error
}

// ParseObjectID validates an image id.
func ParseObjectID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, ErrInvalidID
	}
	return oid, nil
}

// IsNotFound reports whether err means the object does not exist.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// lessObjects is the listing order for backends that sort in process. Objects
// without an order come first, as they do in a Mongo ascending sort.
func lessObjects(a, b Object) bool {
	switch {
	case a.Order != nil && b.Order != nil && *a.Order != *b.Order:
		return *a.Order < *b.Order
	case a.Order == nil && b.Order != nil:
		return true
	case a.Order != nil && b.Order == nil:
		return false
	}
	if !a.UploadDate.Equal(b.UploadDate) {
		return a.UploadDate.After(b.UploadDate)
	}
	return a.ID > b.ID
}

// ContextReader stops a copy once ctx is done. The underlying reader is closed
// by the caller as usual.
type ContextReader struct {
	ctx context.Context
	r   io.Reader
}

func NewContextReader(ctx context.Context, r io.Reader) *ContextReader {
	return &ContextReader{ctx: ctx, r: r}
}

func (c *ContextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
