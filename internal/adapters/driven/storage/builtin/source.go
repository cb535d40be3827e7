// Package builtin contributes the providers compiled into the binary.
package builtin

import (
	"context"

	"github.com/custodia-labs/cloudrelay/internal/adapters/driven/storage/amazons3"
	"github.com/custodia-labs/cloudrelay/internal/adapters/driven/storage/comingsoon"
	"github.com/custodia-labs/cloudrelay/internal/adapters/driven/storage/googledrive"
	"github.com/custodia-labs/cloudrelay/internal/core/domain"
	"github.com/custodia-labs/cloudrelay/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.DiscoverySource = Source{}

// Source is the discovery source for built-in providers.
type Source struct{}

func (Source) Name() string { return "builtin" }

func (Source) Discover(_ context.Context) (map[domain.ProviderName]driven.ProviderConstructor, error) {
	return map[domain.ProviderName]driven.ProviderConstructor{
		domain.ProviderGoogleDrive:    func() any { return googledrive.New() },
		domain.ProviderAmazonS3:       func() any { return amazons3.New() },
		domain.ProviderMicrosoftTeams: func() any { return comingsoon.MicrosoftTeams() },
		domain.ProviderDropbox:        func() any { return comingsoon.Dropbox() },
	}, nil
}
