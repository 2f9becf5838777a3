package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// GridFSStore keeps images in a GridFS bucket: one files document carrying the
// metadata plus the binary split into chunk documents.
type GridFSStore struct {
	db     *mongo.Database
	bucket string
}

// fileMetadata is the metadata sub-document of a files entry.
type fileMetadata struct {
	Section     string `bson:"section"`
	ContentType string `bson:"contentType,omitempty"`
	Order       *int   `bson:"order,omitempty"`
}

type fileDoc struct {
	ID         primitive.ObjectID `bson:"_id"`
	Length     int64              `bson:"length"`
	UploadDate time.Time          `bson:"uploadDate"`
	Filename   string             `bson:"filename"`
	Metadata   fileMetadata       `bson:"metadata"`
}

func (d fileDoc) object() Object {
	return Object{
		ID:          d.ID.Hex(),
		Filename:    d.Filename,
		ContentType: d.Metadata.ContentType,
		Length:      d.Length,
		UploadDate:  d.UploadDate.UTC(),
		Section:     d.Metadata.Section,
		Order:       d.Metadata.Order,
	}
}

func NewGridFSStore(db *mongo.Database, bucket string) *GridFSStore {
	if bucket == "" {
		bucket = options.DefaultName
	}
	return &GridFSStore{db: db, bucket: bucket}
}

func (g *GridFSStore) files() *mongo.Collection {
	return g.db.Collection(g.bucket + ".files")
}

// open returns a bucket handle whose deadlines follow ctx. Handles are cheap and
// deadlines are per handle, so each call gets its own.
func (g *GridFSStore) open(ctx context.Context) (*gridfs.Bucket, error) {
	b, err := gridfs.NewBucket(g.db, options.GridFSBucket().SetName(g.bucket))
	if err != nil {
		return nil, fmt.Errorf("gridfs bucket %s: %w", g.bucket, err)
	}
	if dl, ok := ctx.Deadline(); ok {
		_ = b.SetReadDeadline(dl)
		_ = b.SetWriteDeadline(dl)
	}
	return b, nil
}

// EnsureIndexes adds the listing index on metadata.section.
func (g *GridFSStore) EnsureIndexes(ctx context.Context) error {
	_, err := g.files().Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "metadata.section", Value: 1}, {Key: "metadata.order", Value: 1}, {Key: "uploadDate", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("ensure indexes %s.files: %w", g.bucket, err)
	}
	return nil
}

func (g *GridFSStore) Upload(ctx context.Context, r io.Reader, in UploadInput) (Object, error) {
	b, err := g.open(ctx)
	if err != nil {
		return Object{}, err
	}
	meta := fileMetadata{Section: in.Section, ContentType: in.ContentType, Order: in.Order}
	oid, err := b.UploadFromStream(in.Filename, NewContextReader(ctx, r), options.GridFSUpload().SetMetadata(meta))
	if err != nil {
		return Object{}, fmt.Errorf("gridfs upload: %w", err)
	}
	return g.stat(ctx, oid)
}

func (g *GridFSStore) stat(ctx context.Context, oid primitive.ObjectID) (Object, error) {
	var doc fileDoc
	if err := g.files().FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Object{}, ErrNotFound
		}
		return Object{}, fmt.Errorf("gridfs stat %s: %w", oid.Hex(), err)
	}
	return doc.object(), nil
}

func (g *GridFSStore) Stat(ctx context.Context, id string) (Object, error) {
	oid, err := ParseObjectID(id)
	if err != nil {
		return Object{}, err
	}
	return g.stat(ctx, oid)
}

func (g *GridFSStore) Open(ctx context.Context, id string) (Object, io.ReadCloser, error) {
	oid, err := ParseObjectID(id)
	if err != nil {
		return Object{}, nil, err
	}
	b, err := g.open(ctx)
	if err != nil {
		return Object{}, nil, err
	}
	ds, err := b.OpenDownloadStream(oid)
	if err != nil {
		if errors.Is(err, gridfs.ErrFileNotFound) {
			return Object{}, nil, ErrNotFound
		}
		return Object{}, nil, fmt.Errorf("gridfs open %s: %w", id, err)
	}
	f := ds.GetFile()
	doc := fileDoc{ID: oid, Length: f.Length, UploadDate: f.UploadDate, Filename: f.Name}
	if len(f.Metadata) > 0 {
		if err := bson.Unmarshal(f.Metadata, &doc.Metadata); err != nil {
			_ = ds.Close()
			return Object{}, nil, fmt.Errorf("gridfs metadata %s: %w", id, err)
		}
	}
	return doc.object(), ds, nil
}

// listPipeline filters by section and computes the sorted page together with
// max(uploadDate) and the count in one round trip.
func listPipeline(section string) mongo.Pipeline {
	p := mongo.Pipeline{}
	if section != "" {
		p = append(p, bson.D{{Key: "$match", Value: bson.M{"metadata.section": section}}})
	}
	return append(p, bson.D{{Key: "$facet", Value: bson.D{
		{Key: "objects", Value: bson.A{
			bson.D{{Key: "$sort", Value: bson.D{
				{Key: "metadata.order", Value: 1},
				{Key: "uploadDate", Value: -1},
				{Key: "_id", Value: -1},
			}}},
		}},
		{Key: "meta", Value: bson.A{
			bson.D{{Key: "$group", Value: bson.D{
				{Key: "_id", Value: nil},
				{Key: "maxUploadDate", Value: bson.D{{Key: "$max", Value: "$uploadDate"}}},
				{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
			}}},
		}},
	}}})
}

func (g *GridFSStore) List(ctx context.Context, section string) (*Listing, error) {
	cur, err := g.files().Aggregate(ctx, listPipeline(section))
	if err != nil {
		return nil, fmt.Errorf("gridfs list: %w", err)
	}
	var results []struct {
		Objects []fileDoc `bson:"objects"`
		Meta    []struct {
			MaxUploadDate time.Time `bson:"maxUploadDate"`
			Count         int       `bson:"count"`
		} `bson:"meta"`
	}
	if err := cur.All(ctx, &results); err != nil {
		return nil, fmt.Errorf("gridfs list: decode: %w", err)
	}
	out := &Listing{Objects: []Object{}}
	if len(results) == 0 {
		return out, nil
	}
	for _, d := range results[0].Objects {
		out.Objects = append(out.Objects, d.object())
	}
	if len(results[0].Meta) > 0 {
		out.MaxUploadDate = results[0].Meta[0].MaxUploadDate.UTC()
		out.Count = results[0].Meta[0].Count
	}
	return out, nil
}

func (g *GridFSStore) SetOrder(ctx context.Context, id string, order int) error {
	oid, err := ParseObjectID(id)
	if err != nil {
		return err
	}
	res, err := g.files().UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": bson.M{"metadata.order": order}})
	if err != nil {
		return fmt.Errorf("gridfs set order %s: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (g *GridFSStore) Delete(ctx context.Context, id string) error {
	oid, err := ParseObjectID(id)
	if err != nil {
		return err
	}
	b, err := g.open(ctx)
	if err != nil {
		return err
	}
	if err := b.DeleteContext(ctx, oid); err != nil && !errors.Is(err, gridfs.ErrFileNotFound) {
		return fmt.Errorf("gridfs delete %s: %w", id, err)
	}
	return nil
}
