package derive

import (
	"context"
	"fmt"

	sdkerrors "github.com/wehubfusion/Daedalus/pkg/errors"
	"github.com/wehubfusion/Daedalus/pkg/payload"
	"github.com/wehubfusion/Daedalus/pkg/platform"
)

// Target names the config a derivation is stored as.
type Target struct {
	Name       string
	ConfigType string
	SimVersion string
}

func (t Target) validate() error {
	if t.Name == "" {
		return sdkerrors.NewInvalidArgumentError("name of config to be created is empty", "EMPTY_CONFIG_NAME")
	}
	if t.ConfigType == "" {
		return sdkerrors.NewInvalidArgumentError(fmt.Sprintf("config type for '%s' is empty", t.Name), "EMPTY_CONFIG_TYPE")
	}
	return nil
}

// CreateDerivedConfig derives a payload from base with edits and stores it as a new config.
// Nothing is sent to the platform when the derivation fails.
func CreateDerivedConfig(ctx context.Context, creator platform.ConfigCreator, session *platform.Session, base payload.Payload, edits []PathEdit, target Target) (string, error) {
	if err := target.validate(); err != nil {
		return "", err
	}
	data, err := Derive(base, edits)
	if err != nil {
		return "", err
	}
	return create(ctx, creator, session, data, target)
}

// CreateCopiedConfig copies paths from source into a copy of base and stores the result as a new config.
func CreateCopiedConfig(ctx context.Context, creator platform.ConfigCreator, session *platform.Session, base, source payload.Payload, paths []string, target Target) (string, error) {
	if err := target.validate(); err != nil {
		return "", err
	}
	data, err := DeriveByCopying(base, source, paths)
	if err != nil {
		return "", err
	}
	return create(ctx, creator, session, data, target)
}

func create(ctx context.Context, creator platform.ConfigCreator, session *platform.Session, data payload.Payload, target Target) (string, error) {
	configID, err := creator.CreateConfig(ctx, session, target.ConfigType, target.Name, data, target.SimVersion)
	if err != nil {
		return "", fmt.Errorf("failed to create %s config '%s': %w", target.ConfigType, target.Name, err)
	}
	return configID, nil
}
