// Package archive optionally mirrors connected accounts' query_memory
// snapshots to S3, giving operators a cold, point-in-time copy of zone
// state outside the director's hot path. It never participates in the
// wire protocol or in attempt_login/update_object; it only reads
// already-cached field values through serverdirector.Director.Snapshot.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/MultiDragon/libpuns/internal/logger"
	"github.com/MultiDragon/libpuns/pkg/config"
	"github.com/MultiDragon/libpuns/pkg/wire"
)

// director is the subset of serverdirector.Director the archiver
// needs: enough to list who is connected and read their field cache,
// without importing the director package directly (avoids a cyclic
// dependency risk if serverdirector ever needs archive-side helpers).
type director interface {
	ConnectedAccounts() []wire.ObjectID
	Snapshot(oid wire.ObjectID) map[string][]any
}

// putObjectAPI is the single S3 client method Archiver calls, narrowed
// from *s3.Client so tests can substitute a fake instead of talking to
// real S3 or localstack.
type putObjectAPI interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Archiver periodically puts a JSON dump of each connected account's
// field cache into S3.
type Archiver struct {
	client putObjectAPI
	bucket string
	prefix string
}

// New builds an Archiver from cfg, loading AWS credentials from the
// static key pair if both are set, or the SDK's default provider chain
// otherwise (env vars, shared config, instance role).
func New(ctx context.Context, cfg config.ArchiveConfig) (*Archiver, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("archive: load aws config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) { o.BaseEndpoint = aws.String(cfg.Endpoint) })
	}
	if cfg.ForcePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) { o.UsePathStyle = true })
	}

	return &Archiver{
		client: s3.NewFromConfig(awsCfg, s3Opts...),
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
	}, nil
}

func (a *Archiver) key(oid wire.ObjectID, at time.Time) string {
	return fmt.Sprintf("%s%s/%s.json", a.prefix, oid, at.UTC().Format("20060102T150405Z"))
}

// ArchiveSnapshot puts one object's current field cache as a single
// JSON document. Run's sweep calls it once per connected account with a
// non-empty snapshot.
func (a *Archiver) ArchiveSnapshot(ctx context.Context, oid wire.ObjectID, fields map[string][]any, at time.Time) error {
	payload, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("archive: marshal snapshot for %s: %w", oid, err)
	}

	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(a.key(oid, at)),
		Body:        bytes.NewReader(payload),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("archive: put object for %s: %w", oid, err)
	}
	return nil
}

// Run archives every connected account's current snapshot every
// interval, until ctx is cancelled. Failures are logged, not returned,
// so one bad write doesn't stop the sweep or take down the server.
func (a *Archiver) Run(ctx context.Context, dir director, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.sweep(ctx, dir)
		}
	}
}

func (a *Archiver) sweep(ctx context.Context, dir director) {
	now := time.Now()
	for _, oid := range dir.ConnectedAccounts() {
		fields := dir.Snapshot(oid)
		if len(fields) == 0 {
			continue
		}
		if err := a.ArchiveSnapshot(ctx, oid, fields, now); err != nil {
			logger.Warn("archive sweep failed", "oid", oid.String(), logger.Err(err))
		}
	}
}
