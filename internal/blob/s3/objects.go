package s3blob

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/alanyoungcy/tickerbot/internal/domain"
)

// minPartSize is the S3 minimum multipart part size.
const minPartSize int64 = 5 * 1024 * 1024

// Objects implements domain.ObjectStore. Paths are relative to the client's
// prefix.
type Objects struct {
	c *Client
}

// NewObjects creates an Objects over c.
func NewObjects(c *Client) *Objects {
	return &Objects{c: c}
}

// Put uploads data in one PutObject request.
func (o *Objects) Put(ctx context.Context, path string, data io.Reader, contentType string) error {
	_, err := o.c.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(o.c.bucket),
		Key:         aws.String(o.c.key(path)),
		Body:        data,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("s3blob: put object %s: %w", path, err)
	}
	return nil
}

// PutMultipart uploads data with the multipart upload manager. partSize is
// clamped to the S3 minimum.
func (o *Objects) PutMultipart(ctx context.Context, path string, data io.Reader, partSize int64) error {
	uploader := manager.NewUploader(o.c.s3, func(u *manager.Uploader) {
		u.PartSize = max(partSize, minPartSize)
	})
	_, err := uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(o.c.bucket),
		Key:    aws.String(o.c.key(path)),
		Body:   data,
	})
	if err != nil {
		return fmt.Errorf("s3blob: multipart upload %s: %w", path, err)
	}
	return nil
}

// Exists reports whether path exists.
func (o *Objects) Exists(ctx context.Context, path string) (bool, error) {
	_, err := o.c.s3.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(o.c.bucket),
		Key:    aws.String(o.c.key(path)),
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("s3blob: exists %s: %w", path, err)
	}
	return true, nil
}

// isNotFound matches NoSuchKey, NotFound (HeadObject) and bare 404s from
// S3-compatible providers.
func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	var httpErr interface{ HTTPStatusCode() int }
	return errors.As(err, &httpErr) && httpErr.HTTPStatusCode() == 404
}

var _ domain.ObjectStore = (*Objects)(nil)
