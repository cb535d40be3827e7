package amazons3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/cloudrelay/internal/core/domain"
)

type request struct {
	Method string
	Path   string
}

// fakeS3 records requests and answers with a fixed status per method.
type fakeS3 struct {
	mu       sync.Mutex
	requests []request
	failures map[string]s3Failure
}

type s3Failure struct {
	status int
	code   string
}

func (f *fakeS3) fail(method string, status int, code string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[method] = s3Failure{status: status, code: code}
}

func (f *fakeS3) recorded() []request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]request(nil), f.requests...)
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	_, _ = io.Copy(io.Discard, r.Body)

	f.mu.Lock()
	f.requests = append(f.requests, request{Method: r.Method, Path: r.URL.Path})
	failure, failing := f.failures[r.Method]
	f.mu.Unlock()

	if failing {
		w.Header().Set("Content-Type", "application/xml")
		w.WriteHeader(failure.status)
		if r.Method != http.MethodHead {
			fmt.Fprintf(w, "<Error><Code>%s</Code><Message>%s</Message></Error>", failure.code, failure.code)
		}
		return
	}

	switch r.Method {
	case http.MethodPut:
		w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
		w.WriteHeader(http.StatusOK)
	case http.MethodDelete:
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusOK)
	}
}

func setup(t *testing.T) (*Provider, *fakeS3) {
	t.Helper()
	fake := &fakeS3{failures: make(map[string]s3Failure)}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	p := New()
	require.NoError(t, p.Initialize(context.Background(), testConfig(srv.URL)))
	return p, fake
}

func testConfig(endpoint string) *domain.ProviderConfig {
	cfg := domain.NewProviderConfig(domain.ProviderAmazonS3, domain.AvailabilityFullyAvailable, schema().Sensitive)
	cfg.Set(KeyBucket, "relay-bucket", domain.ConfigSourceFile)
	cfg.Set(KeyRegion, "us-east-1", domain.ConfigSourceFile)
	cfg.Set(KeyAccessKeyID, "AKIDEXAMPLE", domain.ConfigSourceEnvironment)
	cfg.Set(KeySecretAccessKey, "secret", domain.ConfigSourceEnvironment)
	cfg.Set(KeyEndpoint, endpoint, domain.ConfigSourceFile)
	cfg.Set(KeyKeyPrefix, "uploads", domain.ConfigSourceDefault)
	cfg.Set(KeyPresignTTL, "15m", domain.ConfigSourceFile)
	cfg.Set(KeyMaxAttempts, "1", domain.ConfigSourceFile)
	return cfg
}

func TestProvider_Descriptor(t *testing.T) {
	p := New()

	assert.Equal(t, domain.ProviderAmazonS3, p.Name())
	assert.Equal(t, "Amazon S3", p.DisplayName())
	assert.Equal(t, domain.AuthTypeAPIKey, p.AuthType())
	assert.Equal(t, domain.StorageModelFlat, p.StorageModel())
	assert.Contains(t, p.Capabilities(), domain.CapabilityPresignedURLs)
	assert.NotContains(t, p.Capabilities(), domain.CapabilityOAuth)
	assert.Equal(t, []string{KeySecretAccessKey}, p.ConfigSchema().Sensitive)
}

func TestProvider_ValidateConfiguration(t *testing.T) {
	p := New()

	r := p.ValidateConfiguration(testConfig("https://s3.example.com"))
	assert.True(t, r.IsValid, r.Errors)
	assert.Empty(t, r.Warnings)

	cfg := testConfig("http://minio.local:9000")
	cfg.Set(KeyPresignTTL, "forever", domain.ConfigSourceFile)
	cfg.Set(KeyBucket, "", domain.ConfigSourceFile)
	r = p.ValidateConfiguration(cfg)
	assert.False(t, r.IsValid)
	assert.Contains(t, r.Errors, "missing required setting: bucket")
	assert.Contains(t, r.Errors, "presign_ttl must be a duration between 1s and 168h")
	assert.Contains(t, r.Warnings, "endpoint is not https")
	assert.NotEmpty(t, r.RecommendedAction)
}

func TestProvider_Uninitialized(t *testing.T) {
	p := New()

	err := p.TestConnection(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrProviderNotConfigured)
	assert.Equal(t, domain.ErrorTypeProviderNotConfigured, domain.ErrorTypeOf(err))

	_, err = p.Upload(context.Background(), nil, &domain.UploadRequest{Reader: strings.NewReader("x")})
	assert.Equal(t, domain.ErrorTypeProviderNotConfigured, domain.ErrorTypeOf(err))
}

func TestProvider_Upload(t *testing.T) {
	p, fake := setup(t)

	res, err := p.Upload(context.Background(), nil, &domain.UploadRequest{
		Reader:        strings.NewReader("quarterly numbers"),
		Filename:      "Q1 report.pdf",
		MimeType:      "application/pdf",
		Size:          17,
		UploaderEmail: "Client@Example.com",
	})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(res.FileID, "uploads/client@example.com/"), res.FileID)
	assert.True(t, strings.HasSuffix(res.FileID, "_Q1-report.pdf"), res.FileID)
	assert.Contains(t, res.Location, "X-Amz-Signature")
	assert.Contains(t, res.Location, "X-Amz-Expires=900")

	reqs := fake.recorded()
	require.NotEmpty(t, reqs)
	assert.Equal(t, http.MethodPut, reqs[0].Method)
	assert.Equal(t, "/relay-bucket/"+res.FileID, reqs[0].Path)
}

func TestProvider_Delete(t *testing.T) {
	p, fake := setup(t)

	require.NoError(t, p.Delete(context.Background(), nil, "uploads/a.txt"))

	reqs := fake.recorded()
	require.Len(t, reqs, 1)
	assert.Equal(t, request{Method: http.MethodDelete, Path: "/relay-bucket/uploads/a.txt"}, reqs[0])
}

func TestProvider_Delete_AccessDenied(t *testing.T) {
	p, fake := setup(t)
	fake.fail(http.MethodDelete, http.StatusForbidden, "AccessDenied")

	err := p.Delete(context.Background(), nil, "uploads/a.txt")
	require.Error(t, err)
	assert.Equal(t, domain.ErrorTypeInsufficientPermissions, domain.ErrorTypeOf(err))

	var apiErr smithy.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "AccessDenied", apiErr.ErrorCode())
}

func TestProvider_TestConnection(t *testing.T) {
	p, fake := setup(t)

	require.NoError(t, p.TestConnection(context.Background(), nil))
	assert.Equal(t, request{Method: http.MethodHead, Path: "/relay-bucket"}, fake.recorded()[0])

	fake.fail(http.MethodHead, http.StatusForbidden, "")
	err := p.TestConnection(context.Background(), nil)
	assert.Equal(t, domain.ErrorTypeInsufficientPermissions, domain.ErrorTypeOf(err))
	assert.False(t, domain.IsRetryable(err))
}

func TestProvider_Upload_Throttled(t *testing.T) {
	p, fake := setup(t)
	fake.fail(http.MethodPut, http.StatusServiceUnavailable, "SlowDown")

	_, err := p.Upload(context.Background(), nil, &domain.UploadRequest{
		Reader:   strings.NewReader("x"),
		Filename: "a.txt",
		MimeType: "text/plain",
	})
	require.Error(t, err)
	assert.Equal(t, domain.ErrorTypeAPIQuotaExceeded, domain.ErrorTypeOf(err))
	assert.True(t, domain.IsRetryable(err))
}

func TestProvider_Cleanup(t *testing.T) {
	p, _ := setup(t)

	require.NoError(t, p.Cleanup())
	err := p.Delete(context.Background(), nil, "k")
	assert.ErrorIs(t, err, domain.ErrProviderNotConfigured)
}

func TestObjectKey(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)

	key := objectKey("", "", "../../etc/passwd", now)
	assert.True(t, strings.HasPrefix(key, "20260301123000_"), key)
	assert.True(t, strings.HasSuffix(key, "_passwd"), key)
	assert.NotContains(t, key, "/")

	key = objectKey("in", "a b@x.io", "résumé.doc", now)
	assert.True(t, strings.HasPrefix(key, "in/a-b@x.io/"), key)
	assert.True(t, strings.HasSuffix(key, "_r-sum-.doc"), key)
}

func TestStatusType(t *testing.T) {
	assert.Equal(t, domain.ErrorTypeFileNotFound, statusType(http.StatusNotFound))
	assert.Equal(t, domain.ErrorTypeServiceUnavailable, statusType(http.StatusBadGateway))
	assert.Equal(t, domain.CloudStorageErrorType(""), statusType(http.StatusTeapot))
}
