package ai

import (
	"errors"
	"fmt"

	"github.com/poiesic/docchat/core"
)

var (
	// ErrProviderNotFound is returned when no provider is registered under an ID.
	ErrProviderNotFound = fmt.Errorf("provider %w", core.ErrNotFound)

	// ErrModelRequired is returned when a chat model is requested without a name.
	ErrModelRequired = fmt.Errorf("%w: model name is required", core.ErrValidation)

	// ErrDuplicateProvider is returned when two providers share an ID.
	ErrDuplicateProvider = errors.New("duplicate provider id")

	// ErrNoProviders is returned when a registry is built without providers.
	ErrNoProviders = errors.New("at least one provider is required")
)
