package cli

// SilentError wraps an error that has already been printed to stderr,
// so main.go's top-level handler knows not to print it again. Grounded
// on cmd/entire/main.go's SilentError/showSuggestion split.
type SilentError struct {
	err error
}

// NewSilentError wraps err as a SilentError.
func NewSilentError(err error) *SilentError {
	return &SilentError{err: err}
}

func (e *SilentError) Error() string { return e.err.Error() }

func (e *SilentError) Unwrap() error { return e.err }
