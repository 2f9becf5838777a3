package content

import (
	"strconv"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// IDKind distinguishes database-assigned ids from caller-supplied ones.
type IDKind int

const (
	// Native ids are ObjectIDs, either assigned on insert or supplied as 24 hex chars.
	Native IDKind = iota
	// External ids are any other string, e.g. "1" from imported seed data.
	External
)

// ID addresses a content item. It is either Native or External; the two kinds
// resolve against different fields and are kept apart so callers branch on the
// kind explicitly.
type ID struct {
	kind     IDKind
	native   primitive.ObjectID
	external string
}

// ParseID classifies s. Well-formed ObjectID hex is Native, anything else External.
func ParseID(s string) (ID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return ID{}, ErrInvalidID
	}
	if oid, err := primitive.ObjectIDFromHex(s); err == nil {
		return ID{kind: Native, native: oid}, nil
	}
	return ID{kind: External, external: s}, nil
}

// IDFromValue accepts the JSON forms an id may arrive in: string or integral number.
func IDFromValue(v interface{}) (ID, error) {
	switch t := v.(type) {
	case string:
		return ParseID(t)
	case float64:
		if t != float64(int64(t)) {
			return ID{}, ErrInvalidID
		}
		return ParseID(strconv.FormatInt(int64(t), 10))
	case int:
		return ParseID(strconv.Itoa(t))
	case int64:
		return ParseID(strconv.FormatInt(t, 10))
	case primitive.ObjectID:
		return NativeID(t), nil
	}
	return ID{}, ErrInvalidID
}

func NativeID(oid primitive.ObjectID) ID { return ID{kind: Native, native: oid} }

func (id ID) Kind() IDKind { return id.kind }

func (id ID) IsNative() bool { return id.kind == Native }

func (id ID) String() string {
	if id.kind == Native {
		return id.native.Hex()
	}
	return id.external
}

// DocumentID is the value stored in _id when the item is inserted under this id.
func (id ID) DocumentID() interface{} {
	if id.kind == Native {
		return id.native
	}
	return id.external
}

// Filter resolves the id to a Mongo filter. Native ids match _id. External ids
// match either a string _id (items created through this API) or the
// denormalized "id" field carried by imported documents.
func (id ID) Filter() bson.M {
	if id.kind == Native {
		return bson.M{"_id": id.native}
	}
	return bson.M{"$or": bson.A{
		bson.M{"_id": id.external},
		bson.M{"id": id.external},
	}}
}

// Matches reports whether a stored document with the given _id and
// denormalized id field is addressed by id. It mirrors Filter.
func (id ID) Matches(docID interface{}, denormalized string) bool {
	if id.kind == Native {
		oid, ok := docID.(primitive.ObjectID)
		return ok && oid == id.native
	}
	if s, ok := docID.(string); ok && s == id.external {
		return true
	}
	return denormalized != "" && denormalized == id.external
}

// DocIDString renders a stored _id for the API.
func DocIDString(docID interface{}) string {
	switch v := docID.(type) {
	case primitive.ObjectID:
		return v.Hex()
	case string:
		return v
	case nil:
		return ""
	}
	return ""
}
