// Package googledrive stores relayed files in the owner's Google Drive.
package googledrive

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/custodia-labs/cloudrelay/internal/core/domain"
	"github.com/custodia-labs/cloudrelay/internal/core/ports/driven"
)

// Verify interface compliance
var (
	_ driven.StorageProvider = (*Provider)(nil)
	_ driven.TokenRefresher  = (*Provider)(nil)
	_ driven.OAuthConnector  = (*Provider)(nil)
)

const folderMimeType = "application/vnd.google-apps.folder"

// Provider uploads files through the Drive v3 API on behalf of a connected user.
type Provider struct {
	mu       sync.RWMutex
	cfg      *domain.ProviderConfig
	oauth    *oauth2.Config
	endpoint string

	// uploader folder ids, keyed by parent and folder name
	folders sync.Map

	logger *slog.Logger
}

// New creates an uninitialized Google Drive provider.
func New() *Provider {
	return &Provider{logger: slog.Default().With("provider", domain.ProviderGoogleDrive)}
}

func (p *Provider) Name() domain.ProviderName { return domain.ProviderGoogleDrive }

func (p *Provider) DisplayName() string { return "Google Drive" }

func (p *Provider) Capabilities() []domain.Capability {
	return []domain.Capability{
		domain.CapabilityUpload,
		domain.CapabilityDelete,
		domain.CapabilityFolderCreation,
		domain.CapabilityOAuth,
		domain.CapabilityFileSharing,
	}
}

func (p *Provider) AuthType() domain.AuthType { return domain.AuthTypeOAuth }

func (p *Provider) StorageModel() domain.StorageModel { return domain.StorageModelHierarchical }

func (p *Provider) MaxFileSize() int64 { return MaxFileSize }

func (p *Provider) SupportedFileTypes() []string { return nil }

func (p *Provider) ConfigSchema() domain.ConfigSchema { return schema() }

func (p *Provider) ValidateConfiguration(cfg *domain.ProviderConfig) *domain.ValidationResult {
	return validate(cfg)
}

// Initialize builds the OAuth client configuration.
func (p *Provider) Initialize(_ context.Context, cfg *domain.ProviderConfig) error {
	if missing := cfg.MissingKeys(schema().Required); len(missing) > 0 {
		return fmt.Errorf("%w: google-drive missing %s", domain.ErrProviderNotConfigured, strings.Join(missing, ", "))
	}

	endpoint := google.Endpoint
	if u := cfg.Get(KeyAuthURL); u != "" {
		endpoint.AuthURL = u
	}
	if u := cfg.Get(KeyTokenURL); u != "" {
		endpoint.TokenURL = u
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.cfg = cfg
	p.endpoint = cfg.Get(KeyAPIEndpoint)
	p.oauth = &oauth2.Config{
		ClientID:     cfg.Get(KeyClientID),
		ClientSecret: cfg.Get(KeyClientSecret),
		RedirectURL:  cfg.Get(KeyRedirectURI),
		Endpoint:     endpoint,
		Scopes:       []string{drive.DriveFileScope},
	}
	return nil
}

// Upload streams the file into the root folder, or into a per-uploader
// sub-folder when folder_per_uploader is set.
func (p *Provider) Upload(ctx context.Context, cred *domain.ConnectionCredential, req *domain.UploadRequest) (*domain.UploadResult, error) {
	svc, err := p.service(ctx, cred)
	if err != nil {
		return nil, err
	}

	cfg := p.config()
	parent := cfg.Get(KeyRootFolderID)
	if parent == "" {
		parent = "root"
	}
	if cfg.GetBool(KeyFolderPerUploader) && req.UploaderEmail != "" {
		parent, err = p.ensureFolder(ctx, svc, cred.UserID, parent, req.UploaderEmail)
		if err != nil {
			return nil, err
		}
	}

	meta := &drive.File{
		Name:        req.Filename,
		Parents:     []string{parent},
		MimeType:    req.MimeType,
		Description: req.Description,
	}

	created, err := svc.Files.Create(meta).
		Media(req.Reader, googleapi.ContentType(req.MimeType)).
		Fields("id, webViewLink").
		Context(ctx).
		Do()
	if err != nil {
		return nil, translate(fmt.Errorf("create file %q: %w", req.Filename, err))
	}

	p.logger.Debug("uploaded file", "file_id", created.Id, "parent", parent)
	return &domain.UploadResult{FileID: created.Id, Location: created.WebViewLink}, nil
}

// Delete removes a file by its Drive id.
func (p *Provider) Delete(ctx context.Context, cred *domain.ConnectionCredential, fileID string) error {
	svc, err := p.service(ctx, cred)
	if err != nil {
		return err
	}
	if err := svc.Files.Delete(fileID).Context(ctx).Do(); err != nil {
		return translate(fmt.Errorf("delete file %s: %w", fileID, err))
	}
	return nil
}

// TestConnection asks Drive who the token belongs to.
func (p *Provider) TestConnection(ctx context.Context, cred *domain.ConnectionCredential) error {
	svc, err := p.service(ctx, cred)
	if err != nil {
		return err
	}
	about, err := svc.About.Get().Fields("user").Context(ctx).Do()
	if err != nil {
		return translate(fmt.Errorf("about: %w", err))
	}
	if about.User == nil {
		return domain.NewCloudStorageError(domain.ErrorTypeInvalidCredentials, domain.ProviderGoogleDrive,
			fmt.Errorf("about: no user in response"))
	}
	return nil
}

// Cleanup drops cached folder ids.
func (p *Provider) Cleanup() error {
	p.folders.Clear()
	return nil
}

func (p *Provider) config() *domain.ProviderConfig {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.cfg
}

func (p *Provider) service(ctx context.Context, cred *domain.ConnectionCredential) (*drive.Service, error) {
	p.mu.RLock()
	initialized := p.oauth != nil
	endpoint := p.endpoint
	p.mu.RUnlock()

	if !initialized {
		return nil, domain.NewCloudStorageError(domain.ErrorTypeProviderNotConfigured, domain.ProviderGoogleDrive,
			domain.ErrProviderNotConfigured)
	}
	if cred == nil || cred.AccessToken == "" {
		return nil, domain.NewCloudStorageError(domain.ErrorTypeInvalidCredentials, domain.ProviderGoogleDrive,
			domain.ErrNoCredential)
	}

	opts := []option.ClientOption{option.WithTokenSource(oauth2.StaticTokenSource(token(cred)))}
	if endpoint != "" {
		opts = append(opts, option.WithEndpoint(endpoint))
	}

	svc, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, translate(fmt.Errorf("create drive service: %w", err))
	}
	return svc, nil
}

// ensureFolder returns the id of the named folder under parent, creating it if needed.
// Folder ids live in the owner's Drive, so the cache is keyed per owner.
func (p *Provider) ensureFolder(ctx context.Context, svc *drive.Service, owner, parent, name string) (string, error) {
	key := owner + "|" + parent + "|" + name
	if id, ok := p.folders.Load(key); ok {
		return id.(string), nil
	}

	q := fmt.Sprintf("mimeType = '%s' and name = '%s' and '%s' in parents and trashed = false",
		folderMimeType, escapeQuery(name), escapeQuery(parent))
	list, err := svc.Files.List().Q(q).Fields("files(id, name)").PageSize(1).Context(ctx).Do()
	if err != nil {
		return "", translate(fmt.Errorf("find folder %q: %w", name, err))
	}
	if len(list.Files) > 0 {
		p.folders.Store(key, list.Files[0].Id)
		return list.Files[0].Id, nil
	}

	folder, err := svc.Files.Create(&drive.File{
		Name:     name,
		MimeType: folderMimeType,
		Parents:  []string{parent},
	}).Fields("id").Context(ctx).Do()
	if err != nil {
		return "", translate(fmt.Errorf("create folder %q: %w", name, err))
	}

	p.logger.Info("created uploader folder", "folder_id", folder.Id, "parent", parent)
	p.folders.Store(key, folder.Id)
	return folder.Id, nil
}

func escapeQuery(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `'`, `\'`)
}
