package s3blob

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// minPartSize is the smallest part S3 accepts in a multipart upload.
const minPartSize int64 = 5 * 1024 * 1024

// Writer uploads archives and blotters. Small objects go up in one PutObject
// call; PutMultipart splits large ones into concurrent parts.
type Writer struct {
	c        *Client
	partSize int64
}

// NewWriter returns a Writer on c's bucket.
func NewWriter(c *Client) *Writer {
	return &Writer{c: c, partSize: minPartSize}
}

// Put uploads data to path. Readers that report their length (bytes.Reader,
// strings.Reader) are sent with an explicit Content-Length.
func (w *Writer) Put(ctx context.Context, path string, data io.Reader, contentType string) error {
	key := w.c.key(path)
	in := &s3.PutObjectInput{
		Bucket:      aws.String(w.c.bucket),
		Key:         aws.String(key),
		Body:        data,
		ContentType: aws.String(contentType),
		Metadata:    map[string]string{"source": "bonddesk"},
	}
	if l, ok := data.(interface{ Len() int }); ok {
		in.ContentLength = aws.Int64(int64(l.Len()))
	}
	if _, err := w.c.s3.PutObject(ctx, in); err != nil {
		return fmt.Errorf("s3blob: put %s: %w", key, err)
	}
	return nil
}

// PutMultipart streams data to path through the S3 upload manager. The body
// may be of unknown length; it is read one part at a time.
func (w *Writer) PutMultipart(ctx context.Context, path string, data io.Reader, contentType string) error {
	key := w.c.key(path)
	uploader := manager.NewUploader(w.c.s3, func(u *manager.Uploader) {
		u.PartSize = max(w.partSize, minPartSize)
	})
	_, err := uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(w.c.bucket),
		Key:         aws.String(key),
		Body:        data,
		ContentType: aws.String(contentType),
		Metadata:    map[string]string{"source": "bonddesk"},
	})
	if err != nil {
		return fmt.Errorf("s3blob: multipart upload %s: %w", key, err)
	}
	return nil
}
