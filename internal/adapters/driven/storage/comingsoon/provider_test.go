package comingsoon

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/custodia-labs/cloudrelay/internal/core/domain"
)

func TestPlaceholders_Descriptors(t *testing.T) {
	teams := MicrosoftTeams()
	assert.Equal(t, domain.ProviderMicrosoftTeams, teams.Name())
	assert.Equal(t, "Microsoft Teams", teams.DisplayName())
	assert.Equal(t, domain.AuthTypeOAuth, teams.AuthType())

	dropbox := Dropbox()
	assert.Equal(t, domain.ProviderDropbox, dropbox.Name())
	assert.Equal(t, domain.StorageModelHierarchical, dropbox.StorageModel())
	assert.Empty(t, dropbox.ConfigSchema().Required)
}

func TestPlaceholders_OperationsFail(t *testing.T) {
	ctx := context.Background()

	for _, p := range []*Provider{MicrosoftTeams(), Dropbox()} {
		t.Run(string(p.Name()), func(t *testing.T) {
			errs := []error{
				p.Initialize(ctx, nil),
				p.Delete(ctx, nil, "id"),
				p.TestConnection(ctx, nil),
			}
			_, uploadErr := p.Upload(ctx, nil, &domain.UploadRequest{})
			errs = append(errs, uploadErr)

			for _, err := range errs {
				assert.ErrorIs(t, err, domain.ErrProviderUnavailable)
				assert.Equal(t, domain.ErrorTypeProviderNotConfigured, domain.ErrorTypeOf(err))
			}

			assert.False(t, p.ValidateConfiguration(nil).IsValid)
			assert.NoError(t, p.Cleanup())
		})
	}
}

func TestPlaceholders_CapabilitiesAreCopies(t *testing.T) {
	p := Dropbox()
	caps := p.Capabilities()
	caps[0] = "mutated"

	assert.Equal(t, domain.CapabilityUpload, p.Capabilities()[0])
}
