package s3blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/alanyoungcy/bonddesk/internal/domain"
)

// maxMarketFile caps how much of a market-data object is read.
const maxMarketFile = 64 << 20

// Reader serves market-data files out of the bucket.
type Reader struct {
	c *Client
}

// NewReader returns a Reader on c's bucket.
func NewReader(c *Client) *Reader {
	return &Reader{c: c}
}

// Get streams the object at path, truncated at 64 MiB. The caller closes
// the body. A missing object yields domain.ErrNotFound.
func (r *Reader) Get(ctx context.Context, path string) (io.ReadCloser, error) {
	key := r.c.key(path)
	out, err := r.c.s3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("s3blob: get %s: %w", key, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("s3blob: get %s: %w", key, err)
	}
	return limitedBody{Reader: io.LimitReader(out.Body, maxMarketFile), Closer: out.Body}, nil
}

type limitedBody struct {
	io.Reader
	io.Closer
}

// isNotFound matches NoSuchKey and bare 404s from providers that return
// neither typed error.
func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var status interface{ HTTPStatusCode() int }
	return errors.As(err, &status) && status.HTTPStatusCode() == http.StatusNotFound
}
