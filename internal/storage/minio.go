package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// user metadata keys; S3 stores them as X-Amz-Meta-<Key>
const (
	metaSection  = "Section"
	metaOrder    = "Order"
	metaUploaded = "Uploaded"
	metaFilename = "Filename"
)

// minioClient is the subset of *minio.Client the store uses.
type minioClient interface {
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	GetObject(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (*minio.Object, error)
	StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
	CopyObject(ctx context.Context, dst minio.CopyDestOptions, src minio.CopySrcOptions) (minio.UploadInfo, error)
	ListObjects(ctx context.Context, bucketName string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo
	RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error
}

var newMinioClient = func(endpoint string, opts *minio.Options) (minioClient, error) {
	return minio.New(endpoint, opts)
}

// MinIOStore keeps images in an S3-compatible bucket. The object key is the
// image id; section, order and the original upload time live in user metadata
// so that rewriting metadata does not move the upload date.
type MinIOStore struct {
	client minioClient
	bucket string
	now    func() time.Time
}

// NewMinIOStore creates the client and ensures the bucket exists.
func NewMinIOStore(ctx context.Context, cfg *MinIOConfig) (*MinIOStore, error) {
	if cfg == nil || cfg.Endpoint == "" {
		return nil, fmt.Errorf("minio config missing")
	}
	mc, err := newMinioClient(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio new: %w", err)
	}
	s := &MinIOStore{client: mc, bucket: cfg.Bucket, now: time.Now}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := mc.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		// ignore "already exists" style errors
		exist, xerr := mc.BucketExists(ctx, s.bucket)
		if xerr != nil || !exist {
			return nil, fmt.Errorf("minio bucket ensure: %w", err)
		}
	}
	return s, nil
}

func isNoSuchKey(err error) bool {
	return minio.ToErrorResponse(err).Code == "NoSuchKey"
}

func (s *MinIOStore) Upload(ctx context.Context, r io.Reader, in UploadInput) (Object, error) {
	id := primitive.NewObjectID().Hex()
	uploaded := s.now().UTC().Truncate(time.Millisecond)
	size := in.Size
	if size <= 0 {
		size = -1
	}
	meta := map[string]string{
		metaSection:  in.Section,
		metaUploaded: uploaded.Format(time.RFC3339Nano),
		metaFilename: encodeMeta(in.Filename),
	}
	if in.Order != nil {
		meta[metaOrder] = strconv.Itoa(*in.Order)
	}
	info, err := s.client.PutObject(ctx, s.bucket, id, NewContextReader(ctx, r), size, minio.PutObjectOptions{
		ContentType:  in.ContentType,
		UserMetadata: meta,
	})
	if err != nil {
		return Object{}, fmt.Errorf("minio upload: %w", err)
	}
	return Object{
		ID:          id,
		Filename:    in.Filename,
		ContentType: in.ContentType,
		Length:      info.Size,
		UploadDate:  uploaded,
		Section:     in.Section,
		Order:       copyOrder(in.Order),
	}, nil
}

func (s *MinIOStore) Stat(ctx context.Context, id string) (Object, error) {
	if _, err := ParseObjectID(id); err != nil {
		return Object{}, err
	}
	info, err := s.client.StatObject(ctx, s.bucket, id, minio.StatObjectOptions{})
	if err != nil {
		if isNoSuchKey(err) {
			return Object{}, ErrNotFound
		}
		return Object{}, fmt.Errorf("minio stat %s: %w", id, err)
	}
	return objectFromInfo(info), nil
}

func (s *MinIOStore) Open(ctx context.Context, id string) (Object, io.ReadCloser, error) {
	obj, err := s.Stat(ctx, id)
	if err != nil {
		return Object{}, nil, err
	}
	rc, err := s.client.GetObject(ctx, s.bucket, id, minio.GetObjectOptions{})
	if err != nil {
		if isNoSuchKey(err) {
			return Object{}, nil, ErrNotFound
		}
		return Object{}, nil, fmt.Errorf("minio get %s: %w", id, err)
	}
	return obj, rc, nil
}

func (s *MinIOStore) List(ctx context.Context, section string) (*Listing, error) {
	out := &Listing{Objects: []Object{}}
	for info := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Recursive: true, WithMetadata: true}) {
		if info.Err != nil {
			return nil, fmt.Errorf("minio list: %w", info.Err)
		}
		if _, ok := userMeta(info, metaSection); !ok {
			// listing metadata is a MinIO extension; other S3 servers need a stat
			full, err := s.client.StatObject(ctx, s.bucket, info.Key, minio.StatObjectOptions{})
			if err != nil {
				if isNoSuchKey(err) {
					continue
				}
				return nil, fmt.Errorf("minio stat %s: %w", info.Key, err)
			}
			info = full
		}
		obj := objectFromInfo(info)
		if section != "" && obj.Section != section {
			continue
		}
		out.Objects = append(out.Objects, obj)
		if obj.UploadDate.After(out.MaxUploadDate) {
			out.MaxUploadDate = obj.UploadDate
		}
	}
	sort.Slice(out.Objects, func(i, j int) bool { return lessObjects(out.Objects[i], out.Objects[j]) })
	out.Count = len(out.Objects)
	return out, nil
}

// SetOrder rewrites the object's metadata in place with a server-side copy.
func (s *MinIOStore) SetOrder(ctx context.Context, id string, order int) error {
	if _, err := ParseObjectID(id); err != nil {
		return err
	}
	info, err := s.client.StatObject(ctx, s.bucket, id, minio.StatObjectOptions{})
	if err != nil {
		if isNoSuchKey(err) {
			return ErrNotFound
		}
		return fmt.Errorf("minio stat %s: %w", id, err)
	}
	obj := objectFromInfo(info)
	meta := map[string]string{
		metaSection:    obj.Section,
		metaUploaded:   obj.UploadDate.Format(time.RFC3339Nano),
		metaFilename:   encodeMeta(obj.Filename),
		metaOrder:      strconv.Itoa(order),
		"Content-Type": obj.ContentType,
	}
	_, err = s.client.CopyObject(ctx,
		minio.CopyDestOptions{Bucket: s.bucket, Object: id, ReplaceMetadata: true, UserMetadata: meta},
		minio.CopySrcOptions{Bucket: s.bucket, Object: id},
	)
	if err != nil {
		return fmt.Errorf("minio set order %s: %w", id, err)
	}
	return nil
}

func (s *MinIOStore) Delete(ctx context.Context, id string) error {
	if _, err := ParseObjectID(id); err != nil {
		return err
	}
	if err := s.client.RemoveObject(ctx, s.bucket, id, minio.RemoveObjectOptions{}); err != nil && !isNoSuchKey(err) {
		return fmt.Errorf("minio delete %s: %w", id, err)
	}
	return nil
}

// User metadata travels as HTTP headers, which only carry ASCII safely;
// free-text values such as Arabic filenames are percent-encoded.
func encodeMeta(v string) string { return url.PathEscape(v) }

func decodeMeta(v string) string {
	if d, err := url.PathUnescape(v); err == nil {
		return d
	}
	return v
}

// userMeta reads a user metadata value from either the stat headers or the
// listing's metadata map.
func userMeta(info minio.ObjectInfo, key string) (string, bool) {
	if v := info.Metadata.Get("X-Amz-Meta-" + key); v != "" {
		return v, true
	}
	for k, v := range info.UserMetadata {
		k = strings.TrimPrefix(strings.ToLower(k), "x-amz-meta-")
		if k == strings.ToLower(key) {
			return v, true
		}
	}
	return "", false
}

func objectFromInfo(info minio.ObjectInfo) Object {
	obj := Object{
		ID:          info.Key,
		ContentType: info.ContentType,
		Length:      info.Size,
		UploadDate:  info.LastModified.UTC(),
	}
	obj.Section, _ = userMeta(info, metaSection)
	if v, ok := userMeta(info, metaFilename); ok {
		obj.Filename = decodeMeta(v)
	}
	if v, ok := userMeta(info, metaUploaded); ok {
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			obj.UploadDate = t.UTC()
		}
	}
	if v, ok := userMeta(info, metaOrder); ok {
		if n, err := strconv.Atoi(v); err == nil {
			obj.Order = &n
		}
	}
	if obj.ContentType == "" {
		obj.ContentType, _ = userMeta(info, "content-type")
	}
	return obj
}
