package classifier

// notRegisteredError signals an operation against a model whose metadata was
// never successfully registered on the handle.
type notRegisteredError struct{ name string }

func (e notRegisteredError) Error() string { return "model not registered: " + e.name }

// ErrNotRegistered constructs a notRegisteredError.
func ErrNotRegistered(name string) error { return notRegisteredError{name: name} }

// IsNotRegistered reports whether err indicates missing registration.
func IsNotRegistered(err error) bool {
	_, ok := err.(notRegisteredError)
	return ok
}

// notDownloadedError signals a remote model load attempted before its file
// is present locally.
type notDownloadedError struct{ name string }

func (e notDownloadedError) Error() string { return "model not downloaded: " + e.name }

// ErrNotDownloaded constructs a notDownloadedError.
func ErrNotDownloaded(name string) error { return notDownloadedError{name: name} }

// IsNotDownloaded reports whether err indicates an absent remote model file.
func IsNotDownloaded(err error) bool {
	_, ok := err.(notDownloadedError)
	return ok
}

// runtimeUnavailableError signals a missing native runtime (e.g., a binary
// built without the onnx tag) so the HTTP layer can return 503 instead of 500.
type runtimeUnavailableError struct{ msg string }

func (e runtimeUnavailableError) Error() string { return e.msg }

// ErrRuntimeUnavailable constructs a runtimeUnavailableError.
func ErrRuntimeUnavailable(msg string) error { return runtimeUnavailableError{msg: msg} }

// IsRuntimeUnavailable reports whether err indicates a missing runtime.
func IsRuntimeUnavailable(err error) bool {
	_, ok := err.(runtimeUnavailableError)
	return ok
}
