package client

import (
	"context"

	"github.com/wehubfusion/Daedalus/pkg/derive"
	"github.com/wehubfusion/Daedalus/pkg/payload"
	"github.com/wehubfusion/Daedalus/pkg/platform"
)

// ConfigService loads configs and stores derivations of them for the connected session.
// Targets without a sim version get the configured one.
type ConfigService struct {
	platform   platform.Client
	session    *platform.Session
	simVersion string
}

// Load fetches a stored config by id.
func (s *ConfigService) Load(ctx context.Context, configID string) (*platform.Config, error) {
	return s.platform.LoadConfig(ctx, s.session, configID)
}

// CreateDerived applies edits to base and stores the result as a new config.
func (s *ConfigService) CreateDerived(ctx context.Context, base payload.Payload, edits []derive.PathEdit, target derive.Target) (string, error) {
	return derive.CreateDerivedConfig(ctx, s.platform, s.session, base, edits, s.withSimVersion(target))
}

// CreateCopied copies paths from source into base and stores the result as a new config.
func (s *ConfigService) CreateCopied(ctx context.Context, base, source payload.Payload, paths []string, target derive.Target) (string, error) {
	return derive.CreateCopiedConfig(ctx, s.platform, s.session, base, source, paths, s.withSimVersion(target))
}

// DeriveFrom loads the config configID and stores a derivation of it. The new config keeps
// the stored sub type.
func (s *ConfigService) DeriveFrom(ctx context.Context, configID string, edits []derive.PathEdit, name string) (string, error) {
	base, err := s.Load(ctx, configID)
	if err != nil {
		return "", err
	}
	return s.CreateDerived(ctx, base.Document.Data, edits, derive.Target{
		Name:       name,
		ConfigType: base.Document.SubType,
	})
}

func (s *ConfigService) withSimVersion(target derive.Target) derive.Target {
	if target.SimVersion == "" {
		target.SimVersion = s.simVersion
	}
	return target
}
