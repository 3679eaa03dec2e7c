package types

import "strconv"

// Kind distinguishes where a model comes from.
type Kind string

const (
	// KindRemote marks a model fetched on demand from the model registry
	// backend and cached locally after first download.
	KindRemote Kind = "remote"
	// KindLocal marks a model bundled with the deployment, always available
	// without a download.
	KindLocal Kind = "local"
)

// Variant is the numeric precision of a model.
type Variant int

const (
	// VariantInvalid is the deliberate "no valid selection" sentinel, e.g.
	// an out-of-range selector index.
	VariantInvalid Variant = iota
	// VariantQuantized is the integer-quantized precision.
	VariantQuantized
	// VariantFloat is the floating-point precision.
	VariantFloat
)

// String returns the lowercase variant label.
func (v Variant) String() string {
	switch v {
	case VariantQuantized:
		return "quantized"
	case VariantFloat:
		return "float"
	default:
		return "invalid"
	}
}

// Valid reports whether v is a selectable precision.
func (v Variant) Valid() bool {
	return v == VariantQuantized || v == VariantFloat
}

// ModelIdentity is an immutable value identifying one model choice.
// Exactly one identity is current per kind at any time, both derived from a
// single user-facing selector.
type ModelIdentity struct {
	Kind    Kind    `json:"kind"`
	Variant Variant `json:"variant"`
}

// Code returns the raw variant code as a string. Together with the registry
// description it must disambiguate any two distinct identities in cache keys.
func (id ModelIdentity) Code() string {
	return strconv.Itoa(int(id.Variant))
}

// Prediction is one ranked classification result.
type Prediction struct {
	// Class label.
	// example: golden retriever
	Label string `json:"label" example:"golden retriever"`
	// Confidence score in [0,1].
	// example: 0.87
	Confidence float32 `json:"confidence" example:"0.87"`
}
