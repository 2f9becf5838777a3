package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestGridFSListPipeline(t *testing.T) {
	p := listPipeline("hero")
	require.Len(t, p, 2)
	require.Equal(t, bson.D{{Key: "$match", Value: bson.M{"metadata.section": "hero"}}}, p[0])

	facet := p[1][0].Value.(bson.D)
	require.Equal(t, "objects", facet[0].Key)
	sortStage := facet[0].Value.(bson.A)[0].(bson.D)[0]
	require.Equal(t, "$sort", sortStage.Key)
	require.Equal(t, "metadata.order", sortStage.Value.(bson.D)[0].Key)
	require.Equal(t, "uploadDate", sortStage.Value.(bson.D)[1].Key)
	require.Equal(t, -1, sortStage.Value.(bson.D)[1].Value)
	require.Equal(t, "meta", facet[1].Key)

	require.Len(t, listPipeline(""), 1)
}

func TestFileDocObject(t *testing.T) {
	oid := primitive.NewObjectID()
	up := time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC)
	doc := fileDoc{
		ID:         oid,
		Length:     42,
		UploadDate: up,
		Filename:   "team.jpg",
		Metadata:   fileMetadata{Section: "team", ContentType: "image/jpeg", Order: intp(3)},
	}
	obj := doc.object()
	require.Equal(t, oid.Hex(), obj.ID)
	require.Equal(t, "team", obj.Section)
	require.Equal(t, "image/jpeg", obj.ContentType)
	require.Equal(t, 3, *obj.Order)
	require.Equal(t, up, obj.UploadDate)

	raw, err := bson.Marshal(fileMetadata{Section: "hero"})
	require.NoError(t, err)
	var m bson.M
	require.NoError(t, bson.Unmarshal(raw, &m))
	require.NotContains(t, m, "order")
}
