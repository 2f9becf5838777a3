package content

import (
	"sort"
	"time"

	"github.com/alien2112/safelines-sub000/pkg/apperr"
	"go.mongodb.org/mongo-driver/bson"
)

var (
	ErrNotFound          = apperr.NotFound("content item not found")
	ErrUnknownCollection = apperr.NotFound("unknown collection")
	ErrInvalidID         = apperr.Invalid("malformed id")
	ErrInvalidPayload    = apperr.Invalid("invalid payload")
)

// Item is a content document as exposed by the API. Bilingual fields are opaque;
// only the id, timestamps, visibility flag and order are interpreted.
type Item map[string]interface{}

// ID returns the item's identifier ("id" key).
func (it Item) ID() string {
	s, _ := it["id"].(string)
	return s
}

// UpdatedAt returns the item's last mutation time, zero when absent.
func (it Item) UpdatedAt() time.Time {
	t, _ := it["updatedAt"].(time.Time)
	return t
}

// Collection describes one content collection: how visibility is decided, how
// listings are sorted and which fields a listing may expose.
type Collection struct {
	Name string
	// VisibilityField is "published" or "visible".
	VisibilityField string
	// VisibleByDefault treats items without the flag as visible.
	VisibleByDefault bool
	SortField        string
	SortDescending   bool
	// Ordered collections carry an integer "order" and support reorder.
	Ordered bool
	// Slugged collections derive "slug" from "title" when it is missing.
	Slugged bool
	Fields  []string
}

var (
	Blogs = &Collection{
		Name:            "blogs",
		VisibilityField: "published",
		SortField:       "createdAt",
		SortDescending:  true,
		Slugged:         true,
		Fields: []string{
			"title", "titleAr", "slug", "excerpt", "excerptAr", "content", "contentAr",
			"image", "author", "authorAr", "category", "categoryAr", "tags", "tagsAr",
			"readTime", "date",
		},
	}
	Services = &Collection{
		Name:             "services",
		VisibilityField:  "visible",
		VisibleByDefault: true,
		SortField:        "order",
		Ordered:          true,
		Fields: []string{
			"title", "titleAr", "description", "descriptionAr", "icon", "image",
			"features", "featuresAr", "link",
		},
	}
	Jobs = &Collection{
		Name:            "jobs",
		VisibilityField: "published",
		SortField:       "createdAt",
		SortDescending:  true,
		Fields: []string{
			"title", "titleAr", "department", "departmentAr", "location", "locationAr",
			"type", "typeAr", "description", "descriptionAr", "requirements", "requirementsAr",
			"responsibilities", "responsibilitiesAr", "salary", "image", "deadline",
		},
	}
)

var collections = map[string]*Collection{
	Blogs.Name:    Blogs,
	Services.Name: Services,
	Jobs.Name:     Jobs,
}

// Lookup resolves a collection by its route name.
func Lookup(name string) (*Collection, error) {
	c, ok := collections[name]
	if !ok {
		return nil, ErrUnknownCollection
	}
	return c, nil
}

// Names lists the known collection names in sorted order.
func Names() []string {
	out := make([]string, 0, len(collections))
	for n := range collections {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Visible reports whether a public listing may include it.
func (c *Collection) Visible(it Item) bool {
	v, ok := it[c.VisibilityField].(bool)
	if !ok {
		return c.VisibleByDefault
	}
	return v
}

// VisibleFilter is the Mongo filter equivalent of Visible.
func (c *Collection) VisibleFilter() bson.M {
	if c.VisibleByDefault {
		return bson.M{c.VisibilityField: bson.M{"$ne": false}}
	}
	return bson.M{c.VisibilityField: true}
}

// SortSpec is the listing order; _id breaks ties so pages are stable.
func (c *Collection) SortSpec() bson.D {
	dir := 1
	if c.SortDescending {
		dir = -1
	}
	return bson.D{{Key: c.SortField, Value: dir}, {Key: "_id", Value: dir}}
}

// ProjectedFields is the listing allow-list: bilingual fields plus the fields
// every collection exposes.
func (c *Collection) ProjectedFields() []string {
	out := make([]string, 0, len(c.Fields)+5)
	out = append(out, "id", c.VisibilityField, "createdAt", "updatedAt")
	if c.Ordered {
		out = append(out, "order")
	}
	return append(out, c.Fields...)
}

// Projection is the Mongo $project stage body for ProjectedFields.
func (c *Collection) Projection() bson.M {
	p := bson.M{"_id": 1}
	for _, f := range c.ProjectedFields() {
		p[f] = 1
	}
	return p
}

// Project keeps only the allow-listed keys of it.
func (c *Collection) Project(it Item) Item {
	out := make(Item, len(c.Fields)+5)
	for _, f := range c.ProjectedFields() {
		if v, ok := it[f]; ok {
			out[f] = v
		}
	}
	return out
}

// ListQuery selects between the public and the admin listing.
type ListQuery struct {
	IncludeHidden bool
}

// Listing is a listing plus the collection-wide change signal.
type Listing struct {
	Items []Item
	// MaxUpdatedAt spans the whole collection, hidden items included.
	MaxUpdatedAt time.Time
	// Total counts every document in the collection.
	Total int
}

// Direction moves an ordered item one slot.
type Direction string

const (
	Up   Direction = "up"
	Down Direction = "down"
)

func (d Direction) Valid() bool { return d == Up || d == Down }
