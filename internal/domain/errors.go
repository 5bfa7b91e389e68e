package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrConfig marks missing credentials or invalid configuration.
	ErrConfig = errors.New("configuration error")
	// ErrLoad marks a URL that could not be fetched or parsed.
	ErrLoad = errors.New("load error")
	// ErrIndexProvisioning marks an index that could not be created or never became ready.
	ErrIndexProvisioning = errors.New("index provisioning error")
	// ErrIndexWrite marks an upsert rejected by the index.
	ErrIndexWrite = errors.New("index write error")
	// ErrIndexNotReady marks a query against an index that was never built and populated.
	ErrIndexNotReady = errors.New("index not ready")
	// ErrSynthesis marks empty or malformed language model output.
	ErrSynthesis = errors.New("synthesis error")
)

// LoadError reports the failure of a single URL.
type LoadError struct {
	URL string
	Err error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s: %v", e.URL, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Is makes every LoadError match ErrLoad.
func (e *LoadError) Is(target error) bool { return target == ErrLoad }
