package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alien2112/safelines-sub000/internal/content"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoRepo implements Repository on one Mongo database; each content
// collection maps to the Mongo collection of the same name.
type MongoRepo struct {
	db    *mongo.Database
	clock *content.Clock
}

func NewMongoRepo(db *mongo.Database, clock *content.Clock) *MongoRepo {
	if clock == nil {
		clock = content.NewClock(nil)
	}
	return &MongoRepo{db: db, clock: clock}
}

func (m *MongoRepo) col(c *content.Collection) *mongo.Collection {
	return m.db.Collection(c.Name)
}

// EnsureIndexes creates the lookup and sort indexes for every collection.
func (m *MongoRepo) EnsureIndexes(ctx context.Context) error {
	for _, name := range content.Names() {
		c, _ := content.Lookup(name)
		models := []mongo.IndexModel{
			{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetSparse(true)},
			{Keys: c.SortSpec()},
			{Keys: bson.D{{Key: "updatedAt", Value: -1}}},
		}
		if _, err := m.col(c).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("ensure indexes %s: %w", c.Name, err)
		}
	}
	return nil
}

func (m *MongoRepo) Insert(ctx context.Context, c *content.Collection, fields map[string]interface{}) (string, error) {
	doc := bson.M(stampCreate(fields, m.clock.Now()))
	delete(doc, "id")
	oid := primitive.NewObjectID()
	doc["_id"] = oid
	if _, err := m.col(c).InsertOne(ctx, doc); err != nil {
		return "", fmt.Errorf("insert %s: %w", c.Name, err)
	}
	return oid.Hex(), nil
}

func (m *MongoRepo) InsertWithID(ctx context.Context, c *content.Collection, id content.ID, fields map[string]interface{}) error {
	doc := bson.M(stampInsert(fields, m.clock.Now()))
	doc["_id"] = id.DocumentID()
	if id.IsNative() {
		delete(doc, "id")
	} else {
		doc["id"] = id.String()
	}
	if _, err := m.col(c).InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateID
		}
		return fmt.Errorf("insert %s %s: %w", c.Name, id, err)
	}
	return nil
}

func (m *MongoRepo) Update(ctx context.Context, c *content.Collection, id content.ID, fields map[string]interface{}) (bool, error) {
	set := bson.M(stampUpdate(fields, m.clock.Now()))
	res, err := m.col(c).UpdateOne(ctx, id.Filter(), bson.M{"$set": set})
	if err != nil {
		return false, fmt.Errorf("update %s %s: %w", c.Name, id, err)
	}
	return res.MatchedCount > 0, nil
}

func (m *MongoRepo) Find(ctx context.Context, c *content.Collection, id content.ID) (content.Item, error) {
	var doc bson.M
	opts := options.FindOne().SetProjection(c.Projection())
	if err := m.col(c).FindOne(ctx, id.Filter(), opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, content.ErrNotFound
		}
		return nil, fmt.Errorf("find %s %s: %w", c.Name, id, err)
	}
	return c.Project(documentToItem(doc)), nil
}

// listResult is the shape of the $facet stage output.
type listResult struct {
	Items []bson.M `bson:"items"`
	Meta  []struct {
		MaxUpdatedAt time.Time `bson:"maxUpdatedAt"`
		Total        int       `bson:"total"`
	} `bson:"meta"`
}

// listPipeline builds the single aggregation behind a listing: the visible,
// sorted and projected items, plus max(updatedAt) and the document count over
// the whole collection.
func listPipeline(c *content.Collection, q content.ListQuery) mongo.Pipeline {
	items := bson.A{}
	if !q.IncludeHidden {
		items = append(items, bson.D{{Key: "$match", Value: c.VisibleFilter()}})
	}
	items = append(items,
		bson.D{{Key: "$sort", Value: c.SortSpec()}},
		bson.D{{Key: "$project", Value: c.Projection()}},
	)
	meta := bson.A{
		bson.D{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: nil},
			{Key: "maxUpdatedAt", Value: bson.D{{Key: "$max", Value: "$updatedAt"}}},
			{Key: "total", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
	}
	return mongo.Pipeline{
		{{Key: "$facet", Value: bson.D{{Key: "items", Value: items}, {Key: "meta", Value: meta}}}},
	}
}

func (m *MongoRepo) List(ctx context.Context, c *content.Collection, q content.ListQuery) (*content.Listing, error) {
	cur, err := m.col(c).Aggregate(ctx, listPipeline(c, q))
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", c.Name, err)
	}
	var results []listResult
	if err := cur.All(ctx, &results); err != nil {
		return nil, fmt.Errorf("list %s: decode: %w", c.Name, err)
	}
	out := &content.Listing{Items: []content.Item{}}
	if len(results) == 0 {
		return out, nil
	}
	res := results[0]
	for _, doc := range res.Items {
		out.Items = append(out.Items, c.Project(documentToItem(doc)))
	}
	if len(res.Meta) > 0 {
		out.MaxUpdatedAt = res.Meta[0].MaxUpdatedAt.UTC()
		out.Total = res.Meta[0].Total
	}
	return out, nil
}

func (m *MongoRepo) Delete(ctx context.Context, c *content.Collection, id content.ID) error {
	if _, err := m.col(c).DeleteOne(ctx, id.Filter()); err != nil {
		return fmt.Errorf("delete %s %s: %w", c.Name, id, err)
	}
	return nil
}

func (m *MongoRepo) MaxOrder(ctx context.Context, c *content.Collection) (int, bool, error) {
	var doc bson.M
	opts := options.FindOne().
		SetSort(bson.D{{Key: "order", Value: -1}}).
		SetProjection(bson.M{"order": 1})
	err := m.col(c).FindOne(ctx, bson.M{"order": bson.M{"$type": "number"}}, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("max order %s: %w", c.Name, err)
	}
	n, ok := toInt(doc["order"])
	return n, ok, nil
}

func (m *MongoRepo) OrderEntries(ctx context.Context, c *content.Collection) ([]OrderEntry, error) {
	opts := options.Find().
		SetSort(c.SortSpec()).
		SetProjection(bson.M{"_id": 1, "id": 1, "order": 1})
	cur, err := m.col(c).Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("order entries %s: %w", c.Name, err)
	}
	defer cur.Close(ctx)
	out := []OrderEntry{}
	for cur.Next(ctx) {
		var doc bson.M
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		n, _ := toInt(doc["order"])
		out = append(out, OrderEntry{DocID: doc["_id"], Denormalized: denormalizedID(doc), Order: n})
	}
	return out, cur.Err()
}

func (m *MongoRepo) SetOrders(ctx context.Context, c *content.Collection, updates []OrderEntry) error {
	if len(updates) == 0 {
		return nil
	}
	now := m.clock.Now()
	writes := make([]mongo.WriteModel, 0, len(updates))
	for _, u := range updates {
		set := bson.M(stampUpdate(map[string]interface{}{"order": u.Order}, now))
		writes = append(writes, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"_id": u.DocID}).
			SetUpdate(bson.M{"$set": set}))
	}
	if _, err := m.col(c).BulkWrite(ctx, writes, options.BulkWrite().SetOrdered(true)); err != nil {
		return fmt.Errorf("set orders %s: %w", c.Name, err)
	}
	return nil
}

// documentToItem converts a decoded document into API values: ObjectIDs become
// hex strings, BSON dates become time.Time and "id" carries the _id.
func documentToItem(doc bson.M) content.Item {
	it := make(content.Item, len(doc)+1)
	for k, v := range doc {
		it[k] = normalize(v)
	}
	if s := content.DocIDString(doc["_id"]); s != "" {
		it["id"] = s
	}
	return it
}

func normalize(v interface{}) interface{} {
	switch t := v.(type) {
	case primitive.DateTime:
		return t.Time().UTC()
	case primitive.ObjectID:
		return t.Hex()
	case primitive.A:
		out := make([]interface{}, len(t))
		for i := range t {
			out[i] = normalize(t[i])
		}
		return out
	case bson.M:
		out := make(map[string]interface{}, len(t))
		for k, e := range t {
			out[k] = normalize(e)
		}
		return out
	case bson.D:
		out := make(map[string]interface{}, len(t))
		for _, e := range t {
			out[e.Key] = normalize(e.Value)
		}
		return out
	case int32:
		return int(t)
	case int64:
		return int(t)
	}
	return v
}
