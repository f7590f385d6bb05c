// Package archive keeps a printable PNG copy of every issued QR code.
//
// Registration publishes a Job on the queue; Worker renders the PNG and hands
// it to a Sink (local directory, Cloudinary or a MinIO bucket).
package archive

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/Janhavi187/event-attendance-system/internal/cloudinary"
	"github.com/Janhavi187/event-attendance-system/internal/config"
)

// Sink stores one archived image and returns where it went.
type Sink interface {
	Put(ctx context.Context, studentID string, png []byte) (string, error)
}

// ObjectName is the file/object name used for a student's QR image.
func ObjectName(studentID string) string {
	return url.PathEscape(studentID) + ".png"
}

// NewSink builds the sink selected by cfg.Archive.Sink. It returns nil for "none".
func NewSink(ctx context.Context, cfg *config.App) (Sink, error) {
	switch cfg.Archive.Sink {
	case "none", "":
		return nil, nil
	case "disk":
		return NewDiskSink(cfg.Archive.Dir)
	case "cloudinary":
		c := cloudinary.New(cfg.Cloudinary.CloudName, cfg.Cloudinary.APIKey, cfg.Cloudinary.APISecret, cfg.Cloudinary.Folder)
		return NewCloudinarySink(c), nil
	case "minio":
		client, err := minio.New(cfg.MinIO.Endpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(cfg.MinIO.AccessKey, cfg.MinIO.SecretKey, ""),
			Secure: cfg.MinIO.UseSSL,
		})
		if err != nil {
			return nil, fmt.Errorf("minio client: %w", err)
		}
		return NewMinIOSink(ctx, client, cfg.MinIO.Bucket)
	default:
		return nil, fmt.Errorf("unknown archive sink %q", cfg.Archive.Sink)
	}
}

// DiskSink writes images into a local directory.
type DiskSink struct {
	dir string
}

// NewDiskSink creates dir if needed.
func NewDiskSink(dir string) (*DiskSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create archive dir: %w", err)
	}
	return &DiskSink{dir: dir}, nil
}

func (s *DiskSink) Put(_ context.Context, studentID string, png []byte) (string, error) {
	path := filepath.Join(s.dir, ObjectName(studentID))
	if err := os.WriteFile(path, png, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}

type uploader interface {
	Upload(ctx context.Context, publicID string, data []byte) (*cloudinary.UploadResult, error)
}

// CloudinarySink uploads images with the student id as public id.
type CloudinarySink struct {
	client uploader
}

func NewCloudinarySink(client uploader) *CloudinarySink {
	return &CloudinarySink{client: client}
}

func (s *CloudinarySink) Put(ctx context.Context, studentID string, png []byte) (string, error) {
	res, err := s.client.Upload(ctx, url.PathEscape(studentID), png)
	if err != nil {
		return "", err
	}
	return res.SecureURL, nil
}

// minioAPI is the part of *minio.Client the sink needs.
type minioAPI interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// MinIOSink stores images as objects in one bucket.
type MinIOSink struct {
	api    minioAPI
	bucket string
}

// NewMinIOSink makes sure bucket exists.
func NewMinIOSink(ctx context.Context, api minioAPI, bucket string) (*MinIOSink, error) {
	exists, err := api.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", bucket, err)
	}
	if !exists {
		if err := api.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", bucket, err)
		}
	}
	return &MinIOSink{api: api, bucket: bucket}, nil
}

func (s *MinIOSink) Put(ctx context.Context, studentID string, png []byte) (string, error) {
	name := ObjectName(studentID)
	_, err := s.api.PutObject(ctx, s.bucket, name, bytes.NewReader(png), int64(len(png)),
		minio.PutObjectOptions{ContentType: "image/png"})
	if err != nil {
		return "", fmt.Errorf("put object %s: %w", name, err)
	}
	return s.bucket + "/" + name, nil
}
