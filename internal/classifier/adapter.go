// Package classifier owns interpreter handles: loaded, ready-to-run model
// instances bound to one (remote, local) identity pair, plus the cache that
// keeps one handle alive per distinct pair for the process lifetime.
package classifier

import (
	"context"

	"classd/pkg/types"
)

// RuntimeBuiltIn reports whether this binary carries the real native
// inference runtime. Stub builds refuse to load models.
func RuntimeBuiltIn() bool { return onnxBuilt }

// Adapter abstracts the native inference runtime used to materialize
// interpreters. Concrete implementations (e.g., ONNX Runtime) satisfy this
// interface; default builds carry a CGO-free stub.
type Adapter interface {
	// Load materializes an interpreter session for the model file at path.
	Load(path string) (Session, error)
}

// Session is one loaded interpreter. Classification is potentially
// long-running and non-cancelable once started; implementations should
// check ctx only between units of work.
type Session interface {
	// Classify produces ranked (label, confidence) pairs for image bytes.
	Classify(ctx context.Context, image []byte) ([]types.Prediction, error)
	// Close releases native resources held by the session.
	Close() error
}
