package repository

import (
	"testing"
	"time"

	"github.com/alien2112/safelines-sub000/internal/content"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestListPipeline_PublicFiltersBeforeSorting(t *testing.T) {
	p := listPipeline(content.Blogs, content.ListQuery{})
	require.Len(t, p, 1)
	facet := p[0][0]
	require.Equal(t, "$facet", facet.Key)

	stages := facet.Value.(bson.D)
	items := stages[0].Value.(bson.A)
	require.Equal(t, "items", stages[0].Key)
	require.Len(t, items, 3)
	require.Equal(t, bson.D{{Key: "$match", Value: bson.M{"published": true}}}, items[0])
	require.Equal(t, "$sort", items[1].(bson.D)[0].Key)
	require.Equal(t, content.Blogs.SortSpec(), items[1].(bson.D)[0].Value)

	// meta is computed over the whole collection, never behind the $match
	require.Equal(t, "meta", stages[1].Key)
	meta := stages[1].Value.(bson.A)
	require.Len(t, meta, 1)
	require.Equal(t, "$group", meta[0].(bson.D)[0].Key)
}

func TestListPipeline_AdminSkipsVisibilityMatch(t *testing.T) {
	p := listPipeline(content.Services, content.ListQuery{IncludeHidden: true})
	items := p[0][0].Value.(bson.D)[0].Value.(bson.A)
	require.Len(t, items, 2)
	require.Equal(t, bson.D{{Key: "order", Value: 1}, {Key: "_id", Value: 1}}, items[0].(bson.D)[0].Value)
}

func TestDocumentToItem(t *testing.T) {
	oid := primitive.NewObjectID()
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	doc := bson.M{
		"_id":       oid,
		"id":        "1",
		"title":     "A",
		"order":     int32(3),
		"updatedAt": primitive.NewDateTimeFromTime(ts),
		"tags":      primitive.A{"x", "y"},
	}
	it := documentToItem(doc)
	require.Equal(t, oid.Hex(), it.ID())
	require.Equal(t, ts, it.UpdatedAt())
	require.Equal(t, 3, it["order"])
	require.Equal(t, []interface{}{"x", "y"}, it["tags"])

	it = documentToItem(bson.M{"_id": "7", "id": "7"})
	require.Equal(t, "7", it.ID())
}

func TestStampHelpers(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	created := now.Add(-time.Hour)

	doc := stampInsert(map[string]interface{}{"title": "A", "createdAt": created, "_id": "x"}, now)
	require.Equal(t, created, doc["createdAt"])
	require.Equal(t, now, doc["updatedAt"])
	require.NotContains(t, doc, "_id")

	doc = stampInsert(map[string]interface{}{"title": "A"}, now)
	require.Equal(t, now, doc["createdAt"])

	doc = stampCreate(map[string]interface{}{"title": "A", "createdAt": created}, now)
	require.Equal(t, now, doc["createdAt"])
	require.Equal(t, now, doc["updatedAt"])

	set := stampUpdate(map[string]interface{}{"title": "B", "id": "1", "updatedAt": created}, now)
	require.Equal(t, now, set["updatedAt"])
	require.NotContains(t, set, "id")
}
