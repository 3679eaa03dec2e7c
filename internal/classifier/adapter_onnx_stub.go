//go:build !onnx

package classifier

// This file provides a no-CGO stub for the ONNX adapter. It is compiled when
// the 'onnx' build tag is NOT set, keeping default builds and CI CGO-free.
// The real adapter lives in adapter_onnx.go (tagged 'onnx').

// onnxBuilt indicates this binary was compiled with real ONNX support.
var onnxBuilt = false

type onnxAdapter struct {
	libPath string
}

// NewONNXAdapter creates the stub adapter. It satisfies Adapter but refuses
// to load models, so binaries built without the tag fail loudly instead of
// faking inference.
func NewONNXAdapter(libPath string) Adapter {
	return &onnxAdapter{libPath: libPath}
}

func (a *onnxAdapter) Load(path string) (Session, error) {
	return nil, ErrRuntimeUnavailable("onnx runtime not built in: rebuild with -tags onnx")
}
