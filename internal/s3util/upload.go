// Package s3util mirrors saved analysis results to an S3 bucket.
package s3util

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
)

// DefaultPrefix is the key prefix used when none is configured.
const DefaultPrefix = "analysis"

// ResultContentType is sent with every mirrored result.
const ResultContentType = "text/markdown; charset=utf-8"

// PutObjectAPI is the subset of *s3.Client used by Mirror.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Mirror uploads result files to Bucket under Prefix/YYYY/MM/DD/.
type Mirror struct {
	Client PutObjectAPI
	Bucket string
	Prefix string
	// Now dates the object key. Nil means time.Now.
	Now func() time.Time
}

// NewMirror creates a Mirror using the default AWS config, optionally pinned
// to region.
func NewMirror(ctx context.Context, bucket, prefix, region string) (*Mirror, error) {
	if bucket == "" {
		return nil, fmt.Errorf("S3 bucket is not configured")
	}
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	log.Debug().Str("region", cfg.Region).Str("bucket", bucket).Msg("S3 result mirror configured")
	return &Mirror{Client: s3.NewFromConfig(cfg), Bucket: bucket, Prefix: prefix}, nil
}

// ObjectKey returns the key a result file named name is stored under.
func (m *Mirror) ObjectKey(name string, now time.Time) string {
	prefix := strings.Trim(m.Prefix, "/")
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return path.Join(prefix, now.Format("2006/01/02"), filepath.Base(name))
}

// Publish uploads the file at localPath and returns its s3:// location.
func (m *Mirror) Publish(ctx context.Context, localPath string) (string, error) {
	now := time.Now
	if m.Now != nil {
		now = m.Now
	}
	key := m.ObjectKey(localPath, now())

	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to open result file: %w", err)
	}
	defer f.Close()

	log.Debug().
		Str("path", localPath).
		Str("bucket", m.Bucket).
		Str("key", key).
		Msg("Uploading result to S3")

	_, err = m.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(m.Bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String(ResultContentType),
		Tagging:     ProjectTagging(),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload result to S3: %w", err)
	}

	location := fmt.Sprintf("s3://%s/%s", m.Bucket, key)
	log.Info().Str("location", location).Msg("Result uploaded to S3")
	return location, nil
}
