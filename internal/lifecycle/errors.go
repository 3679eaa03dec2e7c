package lifecycle

// noSelectionError signals an operation that needs a model configuration
// before one has been selected.
type noSelectionError struct{}

func (noSelectionError) Error() string { return "no model configuration selected" }

// ErrNoSelection constructs a noSelectionError.
func ErrNoSelection() error { return noSelectionError{} }

// IsNoSelection reports whether err indicates a missing selection.
func IsNoSelection(err error) bool {
	_, ok := err.(noSelectionError)
	return ok
}

// notLoadedError signals a detect request before any interpreter is loaded.
type notLoadedError struct{}

func (notLoadedError) Error() string { return "no interpreter loaded" }

// ErrNotLoaded constructs a notLoadedError.
func ErrNotLoaded() error { return notLoadedError{} }

// IsNotLoaded reports whether err indicates no loaded interpreter.
func IsNotLoaded(err error) bool {
	_, ok := err.(notLoadedError)
	return ok
}

