package dendrite

import "errors"

// Error kinds returned by the public API.  Callers should test for
// them with errors.Is, since most are wrapped with extra context.
var (
	ErrNotInitialized      = errors.New("not initialized")
	ErrDimensionMismatch   = errors.New("dimension mismatch")
	ErrEmptyDataset        = errors.New("empty dataset")
	ErrInvalidIndex        = errors.New("invalid index")
	ErrUnsupportedFunction = errors.New("unsupported function")
	ErrInvalidConfig       = errors.New("invalid config")
)
