// Package comingsoon describes providers that are announced but not implemented.
// They register normally so they can be listed, but every operation fails.
package comingsoon

import (
	"context"
	"fmt"

	"github.com/custodia-labs/cloudrelay/internal/core/domain"
	"github.com/custodia-labs/cloudrelay/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.StorageProvider = (*Provider)(nil)

// Provider is a descriptor-only storage provider.
type Provider struct {
	desc domain.ProviderDescriptor
}

// New creates a placeholder for the given descriptor.
func New(desc domain.ProviderDescriptor) *Provider {
	return &Provider{desc: desc}
}

// MicrosoftTeams returns the Microsoft Teams placeholder.
func MicrosoftTeams() *Provider {
	return New(domain.ProviderDescriptor{
		Name:        domain.ProviderMicrosoftTeams,
		DisplayName: "Microsoft Teams",
		Capabilities: []domain.Capability{
			domain.CapabilityUpload,
			domain.CapabilityFolderCreation,
			domain.CapabilityOAuth,
			domain.CapabilityFileSharing,
		},
		AuthType:     domain.AuthTypeOAuth,
		StorageModel: domain.StorageModelHierarchical,
		MaxFileSize:  250 << 30,
	})
}

// Dropbox returns the Dropbox placeholder.
func Dropbox() *Provider {
	return New(domain.ProviderDescriptor{
		Name:        domain.ProviderDropbox,
		DisplayName: "Dropbox",
		Capabilities: []domain.Capability{
			domain.CapabilityUpload,
			domain.CapabilityDelete,
			domain.CapabilityFolderCreation,
			domain.CapabilityOAuth,
			domain.CapabilityFileSharing,
		},
		AuthType:     domain.AuthTypeOAuth,
		StorageModel: domain.StorageModelHierarchical,
		MaxFileSize:  350 << 30,
	})
}

func (p *Provider) Name() domain.ProviderName { return p.desc.Name }

func (p *Provider) DisplayName() string { return p.desc.DisplayName }

func (p *Provider) Capabilities() []domain.Capability {
	return append([]domain.Capability(nil), p.desc.Capabilities...)
}

func (p *Provider) AuthType() domain.AuthType { return p.desc.AuthType }

func (p *Provider) StorageModel() domain.StorageModel { return p.desc.StorageModel }

func (p *Provider) MaxFileSize() int64 { return p.desc.MaxFileSize }

func (p *Provider) SupportedFileTypes() []string { return nil }

func (p *Provider) ConfigSchema() domain.ConfigSchema { return domain.ConfigSchema{} }

func (p *Provider) ValidateConfiguration(_ *domain.ProviderConfig) *domain.ValidationResult {
	result := domain.NewValidationResult()
	result.AddError("%s is not available yet", p.desc.DisplayName)
	result.RecommendedAction = "Choose a different storage provider"
	result.SetMetadata("provider", string(p.desc.Name))
	return result
}

func (p *Provider) Initialize(_ context.Context, _ *domain.ProviderConfig) error {
	return p.unavailable()
}

func (p *Provider) Upload(_ context.Context, _ *domain.ConnectionCredential, _ *domain.UploadRequest) (*domain.UploadResult, error) {
	return nil, p.unavailable()
}

func (p *Provider) Delete(_ context.Context, _ *domain.ConnectionCredential, _ string) error {
	return p.unavailable()
}

func (p *Provider) TestConnection(_ context.Context, _ *domain.ConnectionCredential) error {
	return p.unavailable()
}

func (p *Provider) Cleanup() error { return nil }

func (p *Provider) unavailable() error {
	return domain.NewCloudStorageError(domain.ErrorTypeProviderNotConfigured, p.desc.Name,
		fmt.Errorf("%w: %s is coming soon", domain.ErrProviderUnavailable, p.desc.DisplayName))
}
