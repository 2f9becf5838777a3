package storage

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
)

// Backends accepted by New.
const (
	BackendGridFS = "gridfs"
	BackendMinIO  = "minio"
	BackendMemory = "memory"
)

// MinIOConfig holds MinIO connection configuration
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
}

// Options selects and configures an ObjectStore backend.
type Options struct {
	Backend      string
	GridFSBucket string
	MinIO        MinIOConfig
}

// New builds the configured backend. db is required for GridFS only.
func New(ctx context.Context, opts Options, db *mongo.Database) (ObjectStore, error) {
	switch opts.Backend {
	case BackendGridFS, "":
		if db == nil {
			return nil, fmt.Errorf("gridfs storage requires a database")
		}
		s := NewGridFSStore(db, opts.GridFSBucket)
		if err := s.EnsureIndexes(ctx); err != nil {
			return nil, err
		}
		return s, nil
	case BackendMinIO:
		return NewMinIOStore(ctx, &opts.MinIO)
	case BackendMemory:
		return NewMemoryStore(), nil
	}
	return nil, fmt.Errorf("unsupported storage backend %q", opts.Backend)
}
