package docchat

import (
	"fmt"

	"github.com/poiesic/docchat/core"
)

var (
	// ErrFileTooLarge is returned for uploads over the size limit.
	ErrFileTooLarge = fmt.Errorf("%w: file too large", core.ErrValidation)

	// ErrEmptyFile is returned for uploads without content.
	ErrEmptyFile = fmt.Errorf("%w: file is empty", core.ErrValidation)
)
