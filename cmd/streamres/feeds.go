package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"github.com/vango-dev/streamres/internal/config"
	"github.com/vango-dev/streamres/pkg/lifecycle"
	"github.com/vango-dev/streamres/pkg/loaders/redisfeed"
	"github.com/vango-dev/streamres/pkg/loaders/s3pages"
	"github.com/vango-dev/streamres/pkg/loaders/wsfeed"
	"github.com/vango-dev/streamres/pkg/resource"
	"github.com/vango-dev/streamres/pkg/server"
	"github.com/vango-dev/streamres/pkg/stream"
	"github.com/vango-dev/streamres/pkg/tracing"
)

// defaultTick is the interval of sequence feeds that set none.
const defaultTick = time.Second

// backends are the shared clients feeds load from.
type backends struct {
	scope     *lifecycle.Scope
	logger    *slog.Logger
	observers []resource.Observer
	redis     redis.UniversalClient
	s3        s3.ListObjectsV2APIClient
	dialer    *websocket.Dialer
}

// newBackends creates the clients the configured feeds need. Clients are
// closed when scope is disposed.
func newBackends(cfg *config.Config, scope *lifecycle.Scope, logger *slog.Logger, observers ...resource.Observer) *backends {
	b := &backends{
		scope:     scope,
		logger:    logger,
		observers: observers,
		dialer:    websocket.DefaultDialer,
	}

	for _, f := range cfg.Feeds {
		switch f.Kind {
		case config.KindRedis:
			if b.redis == nil {
				client := redis.NewClient(&redis.Options{
					Addr:     cfg.Redis.Addr,
					Password: cfg.Redis.Password,
					DB:       cfg.Redis.DB,
				})
				scope.OnCleanup(func() { _ = client.Close() })
				b.redis = client
			}
		case config.KindS3:
			if b.s3 == nil {
				b.s3 = newS3Client(cfg.S3)
			}
		}
	}
	return b
}

func newS3Client(cfg config.S3Config) *s3.Client {
	opts := s3.Options{
		Region:      cfg.Region,
		Credentials: envCredentials(),
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
		opts.UsePathStyle = true
	}
	return s3.New(opts)
}

// envCredentials reads static credentials from the standard AWS variables.
// Without them requests are sent anonymously.
func envCredentials() aws.CredentialsProvider {
	id, secret := os.Getenv("AWS_ACCESS_KEY_ID"), os.Getenv("AWS_SECRET_ACCESS_KEY")
	if id == "" || secret == "" {
		return aws.AnonymousCredentials{}
	}
	creds := aws.Credentials{
		AccessKeyID:     id,
		SecretAccessKey: secret,
		SessionToken:    os.Getenv("AWS_SESSION_TOKEN"),
		Source:          "environment",
	}
	return aws.NewCredentialsCache(aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
		return creds, nil
	}))
}

// buildFeeds creates one feed per configured entry and issues initial
// requests. On error every feed built so far is closed.
func buildFeeds(cfg *config.Config, b *backends) (*server.Registry, error) {
	feeds := server.NewRegistry()
	for _, fc := range cfg.Feeds {
		feed, err := buildFeed(fc, b)
		if err == nil {
			err = feeds.Add(feed)
			if err != nil {
				feed.Close()
			}
		}
		if err != nil {
			feeds.Close()
			return nil, fmt.Errorf("feed %q: %w", fc.Name, err)
		}
		if fc.InitialRequest != "" {
			feed.Push(fc.InitialRequest)
		}
	}
	return feeds, nil
}

func buildFeed(fc config.FeedConfig, b *backends) (*server.Feed, error) {
	load, err := loaderFor(fc, b)
	if err != nil {
		return nil, err
	}
	aggregate, initial, err := server.AggregateFor(fc.Aggregate, fc.Keep)
	if err != nil {
		return nil, err
	}

	opts := []resource.Option{
		resource.WithScope(b.scope),
		resource.WithLogger(b.logger),
	}
	for _, o := range b.observers {
		opts = append(opts, resource.WithObserver(o))
	}
	traced := tracing.Loader(fc.Name, load, tracing.WithRequestAttr(true))
	return server.NewFeed(fc.Name, fc.Kind, initial, traced, aggregate, opts...), nil
}

// loaderFor returns the loader of a feed kind, with responses widened to
// any so that every feed shares one resource type.
func loaderFor(fc config.FeedConfig, b *backends) (resource.Loader[string, any], error) {
	switch fc.Kind {
	case config.KindRedis:
		var o config.RedisOptions
		if err := config.DecodeOptions(fc, &o); err != nil {
			return nil, err
		}
		load := redisfeed.Loader(b.redis, redisfeed.WithPattern(o.Pattern), redisfeed.WithPrefix(o.Prefix))
		return resource.MapResponses(load, func(m redisfeed.Message) any { return m }), nil

	case config.KindWebsocket:
		var o config.WebsocketOptions
		if err := config.DecodeOptions(fc, &o); err != nil {
			return nil, err
		}
		load := wsfeed.Loader(b.dialer, wsfeed.WithHandshakeTimeout(o.HandshakeTimeout))
		return resource.MapResponses(load, func(f wsfeed.Frame) any { return f.Text() }), nil

	case config.KindS3:
		var o config.S3Options
		if err := config.DecodeOptions(fc, &o); err != nil {
			return nil, err
		}
		load := s3pages.Loader(b.s3, o.Bucket, s3pages.WithPageSize(o.PageSize), s3pages.WithDelimiter(o.Delimiter))
		return resource.MapResponses(load, func(p s3pages.Page) any { return p }), nil

	case config.KindSequence:
		var o config.SequenceOptions
		if err := config.DecodeOptions(fc, &o); err != nil {
			return nil, err
		}
		return sequenceLoader(o), nil

	default:
		return nil, fmt.Errorf("unknown kind %q", fc.Kind)
	}
}

// sequenceLoader emits "<request>#<n>" on every tick.
func sequenceLoader(o config.SequenceOptions) resource.Loader[string, any] {
	interval := o.Interval
	if interval <= 0 {
		interval = defaultTick
	}
	return func(_ context.Context, req string) (stream.Stream[any], error) {
		ticks := stream.Interval(interval)
		if o.Count > 0 {
			ticks = stream.Take(ticks, o.Count)
		}
		return stream.Map(ticks, func(n int) any { return fmt.Sprintf("%s#%d", req, n) }), nil
	}
}
