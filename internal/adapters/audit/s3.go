package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/yuxuanzhouo3/mvp-25-sub002/internal/core/domain"
)

const defaultBatchSize = 500

type S3Config struct {
	Bucket    string
	Prefix    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
	BatchSize int
}

type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Sink buffers events as JSON lines and uploads one object per batch.
type S3Sink struct {
	client    objectPutter
	bucket    string
	prefix    string
	batchSize int
	log       *slog.Logger
	now       func() time.Time

	mu    sync.Mutex
	buf   bytes.Buffer
	count int
}

func NewS3Client(ctx context.Context, cfg S3Config) (*s3.Client, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

func NewS3Sink(client objectPutter, cfg S3Config, log *slog.Logger) *S3Sink {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	return &S3Sink{
		client:    client,
		bucket:    cfg.Bucket,
		prefix:    cfg.Prefix,
		batchSize: cfg.BatchSize,
		log:       log,
		now:       time.Now,
	}
}

func (s *S3Sink) Emit(ctx context.Context, event domain.AuditEvent) {
	s.mu.Lock()
	line, err := json.Marshal(event)
	if err != nil {
		s.mu.Unlock()
		s.log.ErrorContext(ctx, "failed to encode audit event", slog.Any("error", err))
		return
	}
	s.buf.Write(line)
	s.buf.WriteByte('\n')
	s.count++
	full := s.count >= s.batchSize
	s.mu.Unlock()

	if full {
		if err := s.Flush(ctx); err != nil {
			s.log.ErrorContext(ctx, "failed to upload audit batch", slog.Any("error", err))
		}
	}
}

// Flush uploads the buffered events. A failed batch is dropped.
func (s *S3Sink) Flush(ctx context.Context) error {
	s.mu.Lock()
	if s.count == 0 {
		s.mu.Unlock()
		return nil
	}
	body := bytes.Clone(s.buf.Bytes())
	count := s.count
	s.buf.Reset()
	s.count = 0
	s.mu.Unlock()

	key := s.objectKey()
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/x-ndjson"),
	})
	if err != nil {
		return fmt.Errorf("put %s (%d events): %w", key, count, err)
	}
	return nil
}

func (s *S3Sink) objectKey() string {
	now := s.now().UTC()
	key := fmt.Sprintf("%04d/%02d/%02d/%s-%s.jsonl", now.Year(), now.Month(), now.Day(), now.Format("150405"), uuid.NewString())
	if s.prefix != "" {
		key = s.prefix + "/" + key
	}
	return key
}
