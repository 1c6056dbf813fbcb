// Package archive keeps an optional copy of recorded audio in an
// S3-compatible object store before the engine deletes the local file.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"

	"github.com/openwhisper/ow-engine/internal/dictation"
)

// Options describes the target bucket.
type Options struct {
	Endpoint  string // empty for AWS, set for MinIO and friends
	Region    string
	Bucket    string
	Prefix    string
	AccessKey string
	SecretKey string
	Workers   int
	Buffer    int
	Log       zerolog.Logger
}

// Store uploads audio buffers in the background. Enqueue never blocks
// the dictation pipeline: if the queue is full the copy is dropped,
// since archival is best-effort by contract.
type Store struct {
	client   *s3.Client
	bucket   string
	prefix   string
	ch       chan job
	log      zerolog.Logger
	stopped  atomic.Bool
	stopOnce sync.Once
	wg       sync.WaitGroup
}

type job struct {
	key         string
	data        []byte
	contentType string
}

// New builds the store and verifies the bucket is reachable.
func New(ctx context.Context, opts Options) (*Store, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(opts.Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, ""),
		),
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("aws config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if opts.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		})
	}

	client := s3.NewFromConfig(awsCfg, s3Opts...)
	if _, err := client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: &opts.Bucket}); err != nil {
		return nil, fmt.Errorf("head bucket %q: %w", opts.Bucket, err)
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = 2
	}
	buffer := opts.Buffer
	if buffer <= 0 {
		buffer = 16
	}

	st := &Store{
		client: client,
		bucket: opts.Bucket,
		prefix: opts.Prefix,
		ch:     make(chan job, buffer),
		log:    opts.Log.With().Str("component", "archive").Logger(),
	}
	for i := 0; i < workers; i++ {
		st.wg.Add(1)
		go st.worker()
	}
	st.log.Info().Int("workers", workers).Int("buffer", buffer).Str("bucket", opts.Bucket).Msg("audio archive started")
	return st, nil
}

var _ dictation.Archiver = (*Store)(nil)

// Archive enqueues one upload. The caller's buffer is not retained
// beyond the upload, but it must not be mutated after the call.
func (s *Store) Archive(key string, data []byte, contentType string) {
	if s.stopped.Load() {
		return
	}
	select {
	case s.ch <- job{key: key, data: data, contentType: contentType}:
	default:
		s.log.Warn().Str("key", key).Msg("archive queue full, dropping audio copy")
	}
}

// Close drains pending uploads and stops the workers.
func (s *Store) Close() {
	s.stopped.Store(true)
	s.stopOnce.Do(func() { close(s.ch) })
	s.wg.Wait()
}

func (s *Store) worker() {
	defer s.wg.Done()
	for j := range s.ch {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := s.save(ctx, j); err != nil {
			s.log.Error().Err(err).Str("key", j.key).Msg("audio upload failed")
		} else {
			s.log.Debug().Str("key", j.key).Int("bytes", len(j.data)).Msg("audio archived")
		}
		cancel()
	}
}

func (s *Store) save(ctx context.Context, j job) error {
	objKey := s.objectKey(j.key)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &s.bucket,
		Key:         &objKey,
		Body:        bytes.NewReader(j.data),
		ContentType: &j.contentType,
	})
	return err
}

func (s *Store) objectKey(key string) string {
	if s.prefix != "" {
		return s.prefix + "/" + key
	}
	return key
}
