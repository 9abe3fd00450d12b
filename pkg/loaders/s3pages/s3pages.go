// Package s3pages loads S3 object listings as resource response streams.
// The request is a key prefix; each ListObjectsV2 page is one response and
// the stream completes after the last page.
package s3pages

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/vango-dev/streamres/pkg/resource"
	"github.com/vango-dev/streamres/pkg/stream"
)

// Object is one listed key.
type Object struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	ETag         string    `json:"etag,omitempty"`
	LastModified time.Time `json:"last_modified"`
}

// Page is one listing page.
type Page struct {
	Index          int      `json:"index"`
	Prefix         string   `json:"prefix"`
	Objects        []Object `json:"objects"`
	CommonPrefixes []string `json:"common_prefixes,omitempty"`
}

// ErrNoBucket is returned when the loader has no bucket configured.
var ErrNoBucket = errors.New("s3pages: bucket is required")

type options struct {
	pageSize  int32
	delimiter string
}

// Option configures the loader.
type Option func(*options)

// WithPageSize limits the number of keys per page.
func WithPageSize(n int32) Option {
	return func(o *options) {
		o.pageSize = n
	}
}

// WithDelimiter groups keys sharing a prefix up to delimiter into
// CommonPrefixes.
func WithDelimiter(d string) Option {
	return func(o *options) {
		o.delimiter = d
	}
}

// Loader returns a loader listing bucket under the requested prefix.
func Loader(client s3.ListObjectsV2APIClient, bucket string, opts ...Option) resource.Loader[string, Page] {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	return func(ctx context.Context, prefix string) (stream.Stream[Page], error) {
		if bucket == "" {
			return nil, ErrNoBucket
		}

		input := &s3.ListObjectsV2Input{
			Bucket: aws.String(bucket),
			Prefix: aws.String(prefix),
		}
		if o.delimiter != "" {
			input.Delimiter = aws.String(o.delimiter)
		}

		return stream.Create(func(e *stream.Emitter[Page]) func() {
			listCtx, cancel := context.WithCancel(e.Context())
			stop := context.AfterFunc(ctx, cancel)

			go func() {
				paginator := s3.NewListObjectsV2Paginator(client, input, func(po *s3.ListObjectsV2PaginatorOptions) {
					po.Limit = o.pageSize
					po.StopOnDuplicateToken = true
				})

				for i := 0; paginator.HasMorePages(); i++ {
					out, err := paginator.NextPage(listCtx)
					if err != nil {
						if listCtx.Err() == nil {
							e.Error(fmt.Errorf("s3pages: list s3://%s/%s: %w", bucket, prefix, err))
						}
						return
					}
					e.Next(toPage(i, prefix, out))
				}
				e.Complete()
			}()

			return func() {
				stop()
				cancel()
			}
		}), nil
	}
}

func toPage(index int, prefix string, out *s3.ListObjectsV2Output) Page {
	page := Page{
		Index:   index,
		Prefix:  prefix,
		Objects: make([]Object, 0, len(out.Contents)),
	}
	for _, obj := range out.Contents {
		page.Objects = append(page.Objects, Object{
			Key:          aws.ToString(obj.Key),
			Size:         aws.ToInt64(obj.Size),
			ETag:         aws.ToString(obj.ETag),
			LastModified: aws.ToTime(obj.LastModified),
		})
	}
	for _, cp := range out.CommonPrefixes {
		page.CommonPrefixes = append(page.CommonPrefixes, aws.ToString(cp.Prefix))
	}
	return page
}
