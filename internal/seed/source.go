// internal/seed/source.go
package seed

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"mcp-dish-order/internal/catalog"
)

// FileSource reads the menu from a local YAML file.
type FileSource struct {
	Path string
}

func (f FileSource) Load(ctx context.Context) (*catalog.Catalog, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read menu file: %w", err)
	}
	return Parse(data)
}

type objectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Source reads the menu from an object in an S3-compatible bucket.
type S3Source struct {
	client objectGetter
	Bucket string
	Key    string
}

type S3Config struct {
	Region   string
	Endpoint string // optional, e.g. MinIO
}

func NewS3Source(ctx context.Context, bucket, key string, cfg S3Config) (*S3Source, error) {
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return &S3Source{client: client, Bucket: bucket, Key: key}, nil
}

func (s *S3Source) Load(ctx context.Context) (*catalog.Catalog, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(s.Key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch s3://%s/%s: %w", s.Bucket, s.Key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read s3://%s/%s: %w", s.Bucket, s.Key, err)
	}
	return Parse(data)
}

// NewSource picks the source for a location: s3://bucket/key or a file path.
func NewSource(ctx context.Context, location string, cfg S3Config) (catalog.Source, error) {
	rest, ok := strings.CutPrefix(location, "s3://")
	if !ok {
		return FileSource{Path: location}, nil
	}
	bucket, key, found := strings.Cut(rest, "/")
	if !found || bucket == "" || key == "" {
		return nil, fmt.Errorf("invalid s3 location %q, want s3://bucket/key", location)
	}
	return NewS3Source(ctx, bucket, key, cfg)
}

// MenuStore is the part of storage seeding needs.
type MenuStore interface {
	MenuEmpty(ctx context.Context) (bool, error)
	SeedMenu(ctx context.Context, cat *catalog.Catalog) error
}

// Apply loads src into store if the store has no menu yet. It reports
// whether anything was written.
func Apply(ctx context.Context, src catalog.Source, store MenuStore, logger *zap.Logger) (bool, error) {
	empty, err := store.MenuEmpty(ctx)
	if err != nil {
		return false, err
	}
	if !empty {
		logger.Info("Menu already present, skipping seed")
		return false, nil
	}

	cat, err := src.Load(ctx)
	if err != nil {
		return false, err
	}
	if err := store.SeedMenu(ctx, cat); err != nil {
		return false, fmt.Errorf("failed to seed menu: %w", err)
	}
	menu := cat.Menu()
	logger.Info("Seeded menu",
		zap.Int("sizes", len(menu.Sizes)),
		zap.Int("bases", len(menu.Bases)),
		zap.Int("ingredients", len(menu.Ingredients)),
	)
	return true, nil
}
