// Package amazons3 stores relayed files in an S3 (or S3-compatible) bucket.
package amazons3

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/custodia-labs/cloudrelay/internal/core/domain"
	"github.com/custodia-labs/cloudrelay/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.StorageProvider = (*Provider)(nil)

// Provider writes objects with a static access key. It has no per-user
// connection, so the credential argument of each operation is ignored.
type Provider struct {
	mu       sync.RWMutex
	client   *s3.Client
	uploader *manager.Uploader
	presign  *s3.PresignClient
	bucket   string
	prefix   string
	ttl      time.Duration

	logger *slog.Logger
}

// New creates an uninitialized S3 provider.
func New() *Provider {
	return &Provider{logger: slog.Default().With("provider", domain.ProviderAmazonS3)}
}

func (p *Provider) Name() domain.ProviderName { return domain.ProviderAmazonS3 }

func (p *Provider) DisplayName() string { return "Amazon S3" }

func (p *Provider) Capabilities() []domain.Capability {
	return []domain.Capability{
		domain.CapabilityUpload,
		domain.CapabilityDelete,
		domain.CapabilityPresignedURLs,
		domain.CapabilityAPIKey,
	}
}

func (p *Provider) AuthType() domain.AuthType { return domain.AuthTypeAPIKey }

func (p *Provider) StorageModel() domain.StorageModel { return domain.StorageModelFlat }

func (p *Provider) MaxFileSize() int64 { return MaxFileSize }

func (p *Provider) SupportedFileTypes() []string { return nil }

func (p *Provider) ConfigSchema() domain.ConfigSchema { return schema() }

func (p *Provider) ValidateConfiguration(cfg *domain.ProviderConfig) *domain.ValidationResult {
	return validate(cfg)
}

// Initialize builds the S3 client from the resolved settings.
func (p *Provider) Initialize(_ context.Context, cfg *domain.ProviderConfig) error {
	if missing := cfg.MissingKeys(schema().Required); len(missing) > 0 {
		return fmt.Errorf("%w: amazon-s3 missing %s", domain.ErrProviderNotConfigured, strings.Join(missing, ", "))
	}

	awsCfg := aws.Config{
		Region: cfg.Get(KeyRegion),
		Credentials: aws.NewCredentialsCache(credentials.NewStaticCredentialsProvider(
			cfg.Get(KeyAccessKeyID), cfg.Get(KeySecretAccessKey), "",
		)),
		RetryMaxAttempts: maxAttempts(cfg),
	}

	endpoint := cfg.Get(KeyEndpoint)
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})

	p.mu.Lock()
	defer p.mu.Unlock()
	p.client = client
	p.uploader = manager.NewUploader(client)
	p.presign = s3.NewPresignClient(client)
	p.bucket = cfg.Get(KeyBucket)
	p.prefix = strings.Trim(cfg.Get(KeyKeyPrefix), "/")
	p.ttl = presignTTL(cfg)

	p.logger.Info("s3 storage initialized", "bucket", p.bucket, "endpoint", endpoint)
	return nil
}

// Upload writes the file under <prefix>/<uploader>/<timestamp>_<id>_<name>.
// The returned location is a presigned GET URL.
func (p *Provider) Upload(ctx context.Context, _ *domain.ConnectionCredential, req *domain.UploadRequest) (*domain.UploadResult, error) {
	p.mu.RLock()
	uploader, bucket, prefix := p.uploader, p.bucket, p.prefix
	p.mu.RUnlock()
	if uploader == nil {
		return nil, notConfigured()
	}

	key := objectKey(prefix, req.UploaderEmail, req.Filename, time.Now())
	input := &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        req.Reader,
		ContentType: aws.String(req.MimeType),
		Metadata:    map[string]string{},
	}
	if disposition := mime.FormatMediaType("attachment", map[string]string{"filename": req.Filename}); disposition != "" {
		input.ContentDisposition = aws.String(disposition)
	}
	if req.UploaderEmail != "" {
		input.Metadata["uploader-email"] = req.UploaderEmail
	}

	if _, err := uploader.Upload(ctx, input); err != nil {
		return nil, translate(fmt.Errorf("put object %s: %w", key, err))
	}

	result := &domain.UploadResult{FileID: key}
	if url, err := p.PresignGetURL(ctx, key); err != nil {
		p.logger.Warn("failed to presign uploaded object", "key", key, "error", err)
	} else {
		result.Location = url
	}
	return result, nil
}

// Delete removes an object by key.
func (p *Provider) Delete(ctx context.Context, _ *domain.ConnectionCredential, fileID string) error {
	p.mu.RLock()
	client, bucket := p.client, p.bucket
	p.mu.RUnlock()
	if client == nil {
		return notConfigured()
	}

	_, err := client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(fileID),
	})
	if err != nil {
		return translate(fmt.Errorf("delete object %s: %w", fileID, err))
	}
	return nil
}

// TestConnection checks the bucket exists and the key can reach it.
func (p *Provider) TestConnection(ctx context.Context, _ *domain.ConnectionCredential) error {
	p.mu.RLock()
	client, bucket := p.client, p.bucket
	p.mu.RUnlock()
	if client == nil {
		return notConfigured()
	}

	if _, err := client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(bucket)}); err != nil {
		return translate(fmt.Errorf("head bucket %s: %w", bucket, err))
	}
	return nil
}

// PresignGetURL returns a time-limited download URL for key.
func (p *Provider) PresignGetURL(ctx context.Context, key string) (string, error) {
	p.mu.RLock()
	presign, bucket, ttl := p.presign, p.bucket, p.ttl
	p.mu.RUnlock()
	if presign == nil {
		return "", notConfigured()
	}

	req, err := presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = ttl
	})
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", key, err)
	}
	return req.URL, nil
}

// Cleanup drops the client.
func (p *Provider) Cleanup() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.client = nil
	p.uploader = nil
	p.presign = nil
	return nil
}

func notConfigured() error {
	return domain.NewCloudStorageError(domain.ErrorTypeProviderNotConfigured, domain.ProviderAmazonS3,
		domain.ErrProviderNotConfigured)
}

func objectKey(prefix, uploader, filename string, now time.Time) string {
	name := fmt.Sprintf("%s_%s_%s", now.UTC().Format("20060102150405"), domain.GenerateID(), keySegment(filepath.Base(filename)))
	segments := []string{}
	if prefix != "" {
		segments = append(segments, prefix)
	}
	if uploader != "" {
		segments = append(segments, keySegment(strings.ToLower(uploader)))
	}
	return path.Join(append(segments, name)...)
}

// keySegment keeps characters that are safe in an S3 key.
func keySegment(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '@', r == '.', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	if b.Len() == 0 {
		return "file"
	}
	return b.String()
}
