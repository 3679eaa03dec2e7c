// Package registry maps model identities to their human-readable names,
// persisted download-state keys, and bundled filenames. It is a pure lookup
// table over a fixed enumeration; it holds no state.
package registry

import (
	"fmt"

	"classd/pkg/types"
)

// Selector indices as presented by the client control.
const (
	SelectorQuantized = 0
	SelectorFloat     = 1
)

// VariantFromSelector decodes a user-facing selector index into a Variant.
// An out-of-range index is a programming error in the caller, not a
// recoverable condition, so it panics.
func VariantFromSelector(idx int) types.Variant {
	switch idx {
	case SelectorQuantized:
		return types.VariantQuantized
	case SelectorFloat:
		return types.VariantFloat
	default:
		panic(fmt.Sprintf("registry: selector index out of range: %d", idx))
	}
}

// Identities returns the (remote, local) identity pair for a selector index.
func Identities(idx int) (remote, local types.ModelIdentity) {
	v := VariantFromSelector(idx)
	return types.ModelIdentity{Kind: types.KindRemote, Variant: v},
		types.ModelIdentity{Kind: types.KindLocal, Variant: v}
}

// Describe returns the display and lookup name for an identity.
// It is total over the enumeration; the Invalid variant maps to a sentinel
// name rather than an error so callers can log it.
func Describe(id types.ModelIdentity) string {
	switch id.Kind {
	case types.KindRemote:
		switch id.Variant {
		case types.VariantQuantized:
			return "mobilenet-quantized"
		case types.VariantFloat:
			return "mobilenet-float"
		}
	case types.KindLocal:
		switch id.Variant {
		case types.VariantQuantized:
			return "mobilenet-quantized-bundled"
		case types.VariantFloat:
			return "mobilenet-float-bundled"
		}
	}
	return "invalid"
}

// DownloadKey returns the persisted download-completed key for a remote
// identity. Keys are distinct per identity so unrelated models never affect
// each other's state.
func DownloadKey(id types.ModelIdentity) string {
	return "download_completed_" + Describe(id)
}

// BundledFilename returns the on-disk filename of a local model.
func BundledFilename(id types.ModelIdentity) string {
	switch id.Variant {
	case types.VariantQuantized:
		return "mobilenet_quant.onnx"
	case types.VariantFloat:
		return "mobilenet_float.onnx"
	default:
		return ""
	}
}

// RemoteFilename returns the filename a downloaded remote model is stored
// under inside the data directory.
func RemoteFilename(id types.ModelIdentity) string {
	return Describe(id) + ".onnx"
}

// All enumerates every defined identity, remote first.
func All() []types.ModelIdentity {
	return []types.ModelIdentity{
		{Kind: types.KindRemote, Variant: types.VariantQuantized},
		{Kind: types.KindRemote, Variant: types.VariantFloat},
		{Kind: types.KindLocal, Variant: types.VariantQuantized},
		{Kind: types.KindLocal, Variant: types.VariantFloat},
	}
}
