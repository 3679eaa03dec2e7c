// Package infer runs classification requests against a loaded interpreter
// session and normalizes their outcome.
package infer

import (
	"context"

	"classd/internal/classifier"
	"classd/pkg/types"
)

// detectFailedError is the normalized failure for a classification run that
// errored or produced no results. An empty result list is indistinguishable
// from a pipeline fault in this design, so both take the same path.
type detectFailedError struct{ cause error }

func (e detectFailedError) Error() string {
	if e.cause != nil {
		return "failed to detect objects: " + e.cause.Error()
	}
	return "failed to detect objects"
}

func (e detectFailedError) Unwrap() error { return e.cause }

// ErrDetectFailed constructs the normalized detect failure wrapping cause
// (may be nil for the empty-result case).
func ErrDetectFailed(cause error) error { return detectFailedError{cause: cause} }

// IsDetectFailed reports whether err is the normalized detect failure.
func IsDetectFailed(err error) bool {
	_, ok := err.(detectFailedError)
	return ok
}

// Invoker requests detections from interpreter sessions. It carries no state;
// it exists so the session contract and result normalization live in one
// place.
type Invoker struct{}

// Detect classifies image using sess. It is a potentially long-running,
// non-cancelable unit of work once started and must be called off the
// control goroutine. Results are ordered best-first and never empty; an
// empty sequence from the session is normalized to ErrDetectFailed.
func (Invoker) Detect(ctx context.Context, sess classifier.Session, image []byte) ([]types.Prediction, error) {
	preds, err := sess.Classify(ctx, image)
	if err != nil {
		return nil, ErrDetectFailed(err)
	}
	if len(preds) == 0 {
		return nil, ErrDetectFailed(nil)
	}
	return preds, nil
}
