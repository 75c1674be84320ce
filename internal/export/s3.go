package export

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const archiveContentType = "application/zip"

// ObjectPutter is the slice of the S3 client the uploader uses.
type ObjectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Uploader stores export archives under bucket/prefix.
type Uploader struct {
	client ObjectPutter
	bucket string
	prefix string
	now    func() time.Time
}

// NewUploader wraps an existing client.
func NewUploader(client ObjectPutter, bucket, prefix string) *Uploader {
	return &Uploader{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/"), now: time.Now}
}

// NewS3Uploader loads the default AWS credential chain; region may be empty.
func NewS3Uploader(ctx context.Context, region, bucket, prefix string) (*Uploader, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewUploader(s3.NewFromConfig(cfg), bucket, prefix), nil
}

// Key names the object for an archive produced at t.
func (u *Uploader) Key(t time.Time) string {
	name := "olxwatch-export-" + t.UTC().Format("20060102-150405") + ".zip"
	if u.prefix == "" {
		return name
	}
	return path.Join(u.prefix, name)
}

// Upload puts body as a new archive object and returns its key.
func (u *Uploader) Upload(ctx context.Context, body io.Reader) (string, error) {
	key := u.Key(u.now())
	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(archiveContentType),
	})
	if err != nil {
		return "", fmt.Errorf("put s3://%s/%s: %w", u.bucket, key, err)
	}
	return key, nil
}
