package extract

import (
	"fmt"

	"github.com/poiesic/docchat/core"
)

var (
	// ErrUnsupportedFormat is returned for file types without a registered extractor.
	ErrUnsupportedFormat = fmt.Errorf("%w: unsupported document format", core.ErrValidation)

	// ErrInvalidEncoding is returned when text content is not valid UTF-8.
	ErrInvalidEncoding = fmt.Errorf("%w: content is not valid UTF-8", core.ErrValidation)
)
