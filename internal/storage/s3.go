package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Top-level prefixes of mirrored runs.
const (
	DocumentsRoot = "documents"
	NewsRoot      = "news"
)

// Object names of a mirrored news run.
const (
	NewsDigestObject = "news-updates.md"
	NewsFeedObject   = "latest-cra-news.json"
)

// Config holds S3/MinIO client configuration.
type Config struct {
	Endpoint        string // "localhost:9000" for MinIO
	Bucket          string // "cra-sync"
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
}

// Client wraps the MinIO/S3 client used to mirror run outputs.
type Client struct {
	minioClient *minio.Client
	bucket      string
}

// New creates a new S3/MinIO client.
func New(config Config) (*Client, error) {
	if config.Endpoint == "" {
		return nil, fmt.Errorf("endpoint is required")
	}
	if config.Bucket == "" {
		return nil, fmt.Errorf("bucket is required")
	}

	minioClient, err := minio.New(config.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(config.AccessKeyID, config.SecretAccessKey, ""),
		Secure: config.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	return &Client{
		minioClient: minioClient,
		bucket:      config.Bucket,
	}, nil
}

// EnsureBucket creates the bucket if it doesn't exist.
func (c *Client) EnsureBucket(ctx context.Context) error {
	exists, err := c.minioClient.BucketExists(ctx, c.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket: %w", err)
	}
	if exists {
		return nil
	}

	err = c.minioClient.MakeBucket(ctx, c.bucket, minio.MakeBucketOptions{})
	if err != nil {
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}

// RunPrefix builds the object prefix for one run, e.g.
// "news/2024-12-04T17-30-00-3f2a...". Timestamps sort lexically.
func RunPrefix(root string, startedAt time.Time, runID string) string {
	return path.Join(root, startedAt.UTC().Format("2006-01-02T15-04-05")+"-"+runID)
}

// Put writes data under prefix/name.
func (c *Client) Put(ctx context.Context, prefix, name string, data []byte, contentType string) error {
	objectName := path.Join(prefix, name)

	_, err := c.minioClient.PutObject(ctx, c.bucket, objectName, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("failed to put %s: %w", objectName, err)
	}
	return nil
}

// Get reads the object at prefix/name.
func (c *Client) Get(ctx context.Context, prefix, name string) ([]byte, error) {
	objectName := path.Join(prefix, name)

	object, err := c.minioClient.GetObject(ctx, c.bucket, objectName, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", objectName, err)
	}
	defer object.Close()

	data, err := io.ReadAll(object)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", objectName, err)
	}
	return data, nil
}

// GetJSON reads prefix/name and unmarshals it into v.
func (c *Client) GetJSON(ctx context.Context, prefix, name string, v any) error {
	data, err := c.Get(ctx, prefix, name)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", name, err)
	}
	return nil
}

// LatestRun returns the most recent run prefix under root, or "" when none exists.
func (c *Client) LatestRun(ctx context.Context, root string) (string, error) {
	listPrefix := strings.TrimSuffix(root, "/") + "/"
	var runs []string

	objectCh := c.minioClient.ListObjects(ctx, c.bucket, minio.ListObjectsOptions{
		Prefix: listPrefix,
	})

	for object := range objectCh {
		if object.Err != nil {
			return "", fmt.Errorf("failed to list runs: %w", object.Err)
		}
		if strings.HasSuffix(object.Key, "/") {
			runs = append(runs, strings.TrimSuffix(object.Key, "/"))
		}
	}

	if len(runs) == 0 {
		return "", nil
	}
	sort.Strings(runs)
	return runs[len(runs)-1], nil
}

// Bucket returns the bucket name.
func (c *Client) Bucket() string {
	return c.bucket
}
