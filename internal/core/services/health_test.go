package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/custodia-labs/cloudrelay/internal/core/domain"
	"github.com/custodia-labs/cloudrelay/internal/core/ports/driven"
	"github.com/custodia-labs/cloudrelay/internal/core/ports/driven/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockHealthChecker is a mock implementation of driven.HealthChecker
type MockHealthChecker struct {
	mock.Mock
}

func (m *MockHealthChecker) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

type healthFixture struct {
	*managerFixture
	creds  *mocks.MockCredentialStore
	tokens *tokenService
	store  *mocks.MockHealthStore
	queue  *mocks.MockTaskQueue
	files  *mocks.MockFileUploadStore
	svc    *healthService
}

func newHealthFixture(t *testing.T, components map[string]driven.HealthChecker) *healthFixture {
	t.Helper()
	mf := newManagerFixture(t)
	creds := mocks.NewMockCredentialStore()
	tokens := NewTokenService(creds, mf.manager, discardLogger()).(*tokenService)
	tokens.retryDelay = time.Millisecond
	store := mocks.NewMockHealthStore()
	queue := mocks.NewMockTaskQueue()
	files := mocks.NewMockFileUploadStore()

	svc := NewHealthService(HealthServiceConfig{
		Storage:    mf.manager,
		Tokens:     tokens,
		Store:      store,
		Queue:      queue,
		Files:      files,
		Components: components,
		Logger:     discardLogger(),
	}).(*healthService)

	return &healthFixture{managerFixture: mf, creds: creds, tokens: tokens, store: store, queue: queue, files: files, svc: svc}
}

func (f *healthFixture) connect(t *testing.T, expiresIn time.Duration, refreshToken string) {
	t.Helper()
	exp := time.Now().Add(expiresIn)
	require.NoError(t, f.creds.Save(context.Background(), &domain.ConnectionCredential{
		UserID:       "user-1",
		Provider:     domain.ProviderGoogleDrive,
		AccessToken:  "access",
		RefreshToken: refreshToken,
		ExpiresAt:    &exp,
	}))
}

func TestHealthService_NoCredential(t *testing.T) {
	f := newHealthFixture(t, nil)
	ctx := context.Background()

	status, err := f.svc.CheckConnectionHealth(ctx, "user-1", domain.ProviderGoogleDrive)
	require.NoError(t, err)

	assert.False(t, status.IsHealthy())
	assert.True(t, status.RequiresReconnection)
	assert.Equal(t, domain.StatusAuthenticationRequired, status.ConsolidatedStatus())
	_, probes := f.drive.Calls()
	assert.Zero(t, probes, "no probe without a credential")

	summary, err := f.svc.GetHealthSummary(ctx, "user-1", domain.ProviderGoogleDrive)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAuthenticationRequired, summary.Status)
	assert.False(t, summary.IsHealthy)
	assert.True(t, summary.RequiresUserIntervention)
	assert.Equal(t, "Google Drive", summary.ProviderDisplayName)
}

func TestHealthService_ExpiredWithoutRefreshToken(t *testing.T) {
	f := newHealthFixture(t, nil)
	f.connect(t, -time.Minute, "")
	f.drive.RefreshFn = func(cred *domain.ConnectionCredential) (*domain.ConnectionCredential, error) {
		return nil, domain.ErrNoRefreshToken
	}

	status, err := f.svc.CheckConnectionHealth(context.Background(), "user-1", domain.ProviderGoogleDrive)
	require.NoError(t, err)

	assert.False(t, status.IsHealthy())
	assert.Equal(t, domain.StatusAuthenticationRequired, status.ConsolidatedStatus())
	assert.Equal(t, 1, f.drive.Refreshes(), "no retry for a missing refresh token")
}

func TestHealthService_TransientRefreshTwice(t *testing.T) {
	f := newHealthFixture(t, nil)
	f.connect(t, -time.Minute, "refresh")
	f.drive.RefreshFn = func(cred *domain.ConnectionCredential) (*domain.ConnectionCredential, error) {
		return nil, fmt.Errorf("%w: dial tcp: i/o timeout", domain.ErrTransient)
	}

	status, err := f.svc.CheckConnectionHealth(context.Background(), "user-1", domain.ProviderGoogleDrive)
	require.NoError(t, err)

	assert.Equal(t, 2, f.drive.Refreshes())
	assert.Equal(t, domain.StatusConnectionIssues, status.ConsolidatedStatus())
	assert.False(t, status.RequiresReconnection)
	assert.Equal(t, domain.ErrorTypeNetworkError, status.LastErrorType)
}

func TestHealthService_TransientThenRecovered(t *testing.T) {
	f := newHealthFixture(t, nil)
	f.connect(t, -time.Minute, "refresh")
	calls := 0
	f.drive.RefreshFn = func(cred *domain.ConnectionCredential) (*domain.ConnectionCredential, error) {
		calls++
		if calls == 1 {
			return nil, domain.ErrTransient
		}
		exp := time.Now().Add(time.Hour)
		return &domain.ConnectionCredential{AccessToken: "fresh", ExpiresAt: &exp}, nil
	}
	var probedWith string
	f.drive.TestConnectionFn = func(cred *domain.ConnectionCredential) error {
		probedWith = cred.AccessToken
		return nil
	}

	status, err := f.svc.CheckConnectionHealth(context.Background(), "user-1", domain.ProviderGoogleDrive)
	require.NoError(t, err)
	assert.True(t, status.IsHealthy())
	assert.Equal(t, "fresh", probedWith)
}

func TestHealthService_Healthy(t *testing.T) {
	f := newHealthFixture(t, nil)
	ctx := context.Background()
	f.connect(t, 2*time.Hour, "refresh")

	status, err := f.svc.CheckConnectionHealth(ctx, "user-1", domain.ProviderGoogleDrive)
	require.NoError(t, err)
	assert.True(t, status.IsHealthy())
	assert.Zero(t, status.ConsecutiveFailures)
	assert.NotNil(t, status.LastSuccessfulOperationAt)
	assert.Zero(t, f.drive.Refreshes())

	summary, err := f.svc.GetHealthSummary(ctx, "user-1", domain.ProviderGoogleDrive)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusHealthy, summary.Status)
	assert.True(t, summary.IsHealthy)
	assert.False(t, summary.TokenExpiringSoon)
	assert.False(t, summary.TokenExpired)
}

func TestHealthService_ProbeFailure(t *testing.T) {
	f := newHealthFixture(t, nil)
	ctx := context.Background()
	f.connect(t, 2*time.Hour, "refresh")
	f.drive.TestConnectionFn = func(cred *domain.ConnectionCredential) error {
		return domain.NewCloudStorageError(domain.ErrorTypeServiceUnavailable, domain.ProviderGoogleDrive, errors.New("502"))
	}

	var status *domain.HealthStatus
	for i := 1; i <= 3; i++ {
		var err error
		status, err = f.svc.CheckConnectionHealth(ctx, "user-1", domain.ProviderGoogleDrive)
		require.NoError(t, err)
		assert.Equal(t, i, status.ConsecutiveFailures)
	}

	_, probes := f.drive.Calls()
	assert.Equal(t, 3, probes, "the probe is never retried within a check")
	assert.Equal(t, domain.StatusConnectionIssues, status.ConsolidatedStatus())
	assert.Equal(t, domain.RawStatusUnhealthy, status.Status)
	assert.False(t, status.RequiresReconnection)
	assert.Equal(t, domain.ErrorTypeServiceUnavailable, status.LastErrorType)

	stored, err := f.store.Get(ctx, "user-1", domain.ProviderGoogleDrive)
	require.NoError(t, err)
	assert.Equal(t, 3, stored.ConsecutiveFailures)

	// Recovery resets the counter
	f.drive.TestConnectionFn = nil
	status, err = f.svc.CheckConnectionHealth(ctx, "user-1", domain.ProviderGoogleDrive)
	require.NoError(t, err)
	assert.True(t, status.IsHealthy())
	assert.Zero(t, status.ConsecutiveFailures)
}

func TestHealthService_APIKeyProviderProbesWithoutCredential(t *testing.T) {
	f := newHealthFixture(t, nil)
	var gotCred *domain.ConnectionCredential
	called := false
	f.s3.TestConnectionFn = func(cred *domain.ConnectionCredential) error {
		called = true
		gotCred = cred
		return nil
	}

	status, err := f.svc.CheckConnectionHealth(context.Background(), "user-1", domain.ProviderAmazonS3)
	require.NoError(t, err)
	assert.True(t, called)
	assert.Nil(t, gotCred)
	assert.True(t, status.IsHealthy())
}

func TestHealthService_ResolutionFailures(t *testing.T) {
	f := newHealthFixture(t, nil)
	ctx := context.Background()

	_, err := f.svc.CheckConnectionHealth(ctx, "user-1", "box")
	assert.ErrorIs(t, err, domain.ErrProviderNotFound)

	status, err := f.svc.CheckConnectionHealth(ctx, "user-1", domain.ProviderDropbox)
	require.NoError(t, err)
	assert.Equal(t, domain.ErrorTypeProviderNotConfigured, status.LastErrorType)
	assert.Equal(t, domain.StatusConnectionIssues, status.ConsolidatedStatus())
}

// flakyHealthStore fails reads for one provider.
type flakyHealthStore struct {
	*mocks.MockHealthStore
	failing domain.ProviderName
}

func (s *flakyHealthStore) Get(ctx context.Context, userID string, provider domain.ProviderName) (*domain.HealthStatus, error) {
	if provider == s.failing {
		return nil, errors.New("connection reset")
	}
	return s.MockHealthStore.Get(ctx, userID, provider)
}

func TestHealthService_GetAllProvidersHealth(t *testing.T) {
	f := newHealthFixture(t, nil)
	f.svc.store = &flakyHealthStore{MockHealthStore: f.store, failing: domain.ProviderAmazonS3}

	summaries := f.svc.GetAllProvidersHealth(context.Background(), "user-1")
	require.Len(t, summaries, 2)

	assert.Equal(t, domain.ProviderAmazonS3, summaries[0].Provider)
	assert.False(t, summaries[0].IsHealthy)
	assert.Equal(t, domain.StatusConnectionIssues, summaries[0].Status)
	assert.NotEmpty(t, summaries[0].Error)

	assert.Equal(t, domain.ProviderGoogleDrive, summaries[1].Provider)
	assert.Empty(t, summaries[1].Error)
	assert.Equal(t, domain.StatusAuthenticationRequired, summaries[1].Status)

	uploads, probes := f.drive.Calls()
	assert.Zero(t, uploads+probes, "summaries never call the provider")
}

func TestHealthService_RecordOperation(t *testing.T) {
	f := newHealthFixture(t, nil)
	ctx := context.Background()

	f.svc.RecordOperationSuccess(ctx, "user-1", domain.ProviderGoogleDrive, nil)
	stored, err := f.store.Get(ctx, "user-1", domain.ProviderGoogleDrive)
	require.NoError(t, err)
	assert.True(t, stored.IsHealthy())

	f.svc.RecordOperationFailure(ctx, "user-1", domain.ProviderGoogleDrive,
		domain.NewCloudStorageError(domain.ErrorTypeAPIQuotaExceeded, domain.ProviderGoogleDrive, errors.New("429")))
	stored, _ = f.store.Get(ctx, "user-1", domain.ProviderGoogleDrive)
	assert.Equal(t, domain.StatusConnectionIssues, stored.ConsolidatedStatus())
	assert.Equal(t, domain.ErrorTypeAPIQuotaExceeded, stored.LastErrorType)
	assert.Contains(t, stored.LastErrorMessage, "Google Drive")

	f.svc.RecordOperationFailure(ctx, "user-1", domain.ProviderGoogleDrive,
		domain.NewCloudStorageError(domain.ErrorTypeTokenExpired, domain.ProviderGoogleDrive, errors.New("401")))
	stored, _ = f.store.Get(ctx, "user-1", domain.ProviderGoogleDrive)
	assert.Equal(t, domain.StatusAuthenticationRequired, stored.ConsolidatedStatus())
	assert.True(t, stored.RequiresReconnection)
	assert.Equal(t, 2, stored.ConsecutiveFailures)

	f.svc.RecordOperationFailure(ctx, "user-1", domain.ProviderGoogleDrive, nil)
	stored, _ = f.store.Get(ctx, "user-1", domain.ProviderGoogleDrive)
	assert.Equal(t, 2, stored.ConsecutiveFailures, "nil errors are ignored")
}

func TestHealthService_RecordOperationSuccess_TracksTokenExpiry(t *testing.T) {
	f := newHealthFixture(t, nil)
	ctx := context.Background()
	f.connect(t, time.Hour, "refresh")

	_, err := f.svc.CheckConnectionHealth(ctx, "user-1", domain.ProviderGoogleDrive)
	require.NoError(t, err)

	// A relay two hours later ran with a refreshed token
	later := time.Now().Add(2 * time.Hour)
	f.svc.now = func() time.Time { return later }
	refreshedUntil := later.Add(time.Hour)
	f.svc.RecordOperationSuccess(ctx, "user-1", domain.ProviderGoogleDrive, &domain.ConnectionCredential{
		UserID:    "user-1",
		Provider:  domain.ProviderGoogleDrive,
		ExpiresAt: &refreshedUntil,
	})

	summary, err := f.svc.GetHealthSummary(ctx, "user-1", domain.ProviderGoogleDrive)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusHealthy, summary.Status)
	assert.False(t, summary.TokenExpired)
	assert.False(t, summary.TokenExpiringSoon)

	// Disconnecting forgets the expiry of the deleted credential
	f.svc.now = func() time.Time { return later.Add(2 * time.Hour) }
	f.svc.RecordOperationFailure(ctx, "user-1", domain.ProviderGoogleDrive, domain.ErrNoCredential)

	stored, err := f.store.Get(ctx, "user-1", domain.ProviderGoogleDrive)
	require.NoError(t, err)
	assert.Nil(t, stored.TokenExpiresAt)
	summary, err = f.svc.GetHealthSummary(ctx, "user-1", domain.ProviderGoogleDrive)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAuthenticationRequired, summary.Status)
	assert.False(t, summary.TokenExpired)
}

func TestHealthService_ExpiredTokenWithoutRefresher(t *testing.T) {
	f := newHealthFixture(t, nil)
	ctx := context.Background()
	f.s3.Desc.AuthType = domain.AuthTypeOAuth

	exp := time.Now().Add(-time.Minute)
	require.NoError(t, f.creds.Save(ctx, &domain.ConnectionCredential{
		UserID:      "user-1",
		Provider:    domain.ProviderAmazonS3,
		AccessToken: "access",
		ExpiresAt:   &exp,
	}))

	status, err := f.svc.CheckConnectionHealth(ctx, "user-1", domain.ProviderAmazonS3)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAuthenticationRequired, status.ConsolidatedStatus())
	assert.True(t, status.RequiresReconnection)
	assert.Equal(t, domain.ErrorTypeTokenExpired, status.LastErrorType)
	_, probes := f.s3.Calls()
	assert.Zero(t, probes)
}

func TestHealthService_SystemHealth(t *testing.T) {
	db := new(MockHealthChecker)
	db.On("Ping", mock.Anything).Return(nil)
	redis := new(MockHealthChecker)
	redis.On("Ping", mock.Anything).Return(errors.New("connection refused"))

	f := newHealthFixture(t, map[string]driven.HealthChecker{"database": db, "redis": redis})
	ctx := context.Background()
	require.NoError(t, f.files.Save(ctx, &domain.FileUpload{ID: "f1", Status: domain.FileStatusFailed}))
	require.NoError(t, f.queue.Enqueue(ctx, domain.NewRelayFileTask("f2")))

	basic := f.svc.SystemHealth(ctx, false)
	assert.False(t, basic.Healthy)
	assert.Equal(t, "ok", basic.Checks["database"].Status)
	assert.Equal(t, "error", basic.Checks["redis"].Status)
	assert.Equal(t, "connection refused", basic.Checks["redis"].Error)
	assert.Nil(t, basic.Queue)
	assert.Nil(t, basic.Files)

	detailed := f.svc.SystemHealth(ctx, true)
	require.NotNil(t, detailed.Queue)
	assert.Equal(t, int64(1), detailed.Queue.PendingCount)
	assert.Equal(t, int64(1), detailed.Files[domain.FileStatusFailed])

	db.AssertExpectations(t)
	redis.AssertExpectations(t)
}

func TestHealthService_SystemHealth_AllOK(t *testing.T) {
	db := new(MockHealthChecker)
	db.On("Ping", mock.Anything).Return(nil)

	f := newHealthFixture(t, map[string]driven.HealthChecker{"database": db})
	report := f.svc.SystemHealth(context.Background(), false)
	assert.True(t, report.Healthy)
	assert.Len(t, report.Checks, 1)
}
