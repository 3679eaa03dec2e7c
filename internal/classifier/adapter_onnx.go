//go:build onnx

package classifier

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"classd/pkg/types"
)

// onnxBuilt indicates this binary was compiled with real ONNX support.
var onnxBuilt = true

const (
	// Input tensor shape expected by the MobileNet-family models.
	inputHeight   = 224
	inputWidth    = 224
	inputChannels = 3

	// topK is the number of ranked predictions returned.
	topK = 5
)

var ortInit sync.Once

// onnxAdapter materializes ONNX Runtime sessions. One adapter is shared by
// every handle; sessions are independent.
type onnxAdapter struct {
	libPath string
}

// NewONNXAdapter creates the production adapter. libPath points at the ONNX
// runtime shared library; empty lets the runtime use its default lookup.
func NewONNXAdapter(libPath string) Adapter {
	return &onnxAdapter{libPath: libPath}
}

func (a *onnxAdapter) Load(path string) (Session, error) {
	var initErr error
	ortInit.Do(func() {
		if a.libPath != "" {
			ort.SetSharedLibraryPath(a.libPath)
		}
		initErr = ort.InitializeEnvironment()
	})
	if initErr != nil {
		return nil, fmt.Errorf("initializing onnx runtime: %w", initErr)
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("model file: %w", err)
	}
	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("session options: %w", err)
	}
	defer opts.Destroy()
	sess, err := ort.NewDynamicAdvancedSession(
		path,
		[]string{"input"},
		[]string{"output"},
		opts,
	)
	if err != nil {
		return nil, fmt.Errorf("loading onnx model: %w", err)
	}
	labels := loadLabels(path)
	return &onnxSession{session: sess, labels: labels}, nil
}

type onnxSession struct {
	session *ort.DynamicAdvancedSession
	labels  []string
}

// Classify runs the model over a preprocessed input tensor: little-endian
// float32 values in NCHW order, 1x3x224x224. Decoding and scaling the source
// image is the caller's concern.
func (s *onnxSession) Classify(ctx context.Context, image []byte) ([]types.Prediction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	want := inputChannels * inputHeight * inputWidth * 4
	if len(image) != want {
		return nil, fmt.Errorf("input tensor must be %d bytes, got %d", want, len(image))
	}
	data := make([]float32, want/4)
	for i := range data {
		data[i] = math.Float32frombits(binary.LittleEndian.Uint32(image[i*4:]))
	}
	shape := ort.NewShape(1, inputChannels, inputHeight, inputWidth)
	input, err := ort.NewTensor(shape, data)
	if err != nil {
		return nil, fmt.Errorf("input tensor: %w", err)
	}
	defer input.Destroy()

	outputs := []ort.Value{nil}
	if err := s.session.Run([]ort.Value{input}, outputs); err != nil {
		return nil, fmt.Errorf("running model: %w", err)
	}
	out, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("unexpected output tensor type %T", outputs[0])
	}
	defer out.Destroy()

	return s.rank(out.GetData()), nil
}

// rank applies softmax and returns the topK predictions, best first.
func (s *onnxSession) rank(scores []float32) []types.Prediction {
	if len(scores) == 0 {
		return nil
	}
	probs := softmax(scores)
	idx := make([]int, len(probs))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool { return probs[idx[a]] > probs[idx[b]] })
	n := topK
	if n > len(idx) {
		n = len(idx)
	}
	preds := make([]types.Prediction, 0, n)
	for _, i := range idx[:n] {
		preds = append(preds, types.Prediction{Label: s.label(i), Confidence: probs[i]})
	}
	return preds
}

func (s *onnxSession) label(i int) string {
	if i >= 0 && i < len(s.labels) {
		return s.labels[i]
	}
	return fmt.Sprintf("class %d", i)
}

func (s *onnxSession) Close() error {
	if s.session != nil {
		s.session.Destroy()
		s.session = nil
	}
	return nil
}

func softmax(scores []float32) []float32 {
	max := scores[0]
	for _, v := range scores[1:] {
		if v > max {
			max = v
		}
	}
	var sum float64
	out := make([]float32, len(scores))
	for i, v := range scores {
		e := math.Exp(float64(v - max))
		out[i] = float32(e)
		sum += e
	}
	for i := range out {
		out[i] = float32(float64(out[i]) / sum)
	}
	return out
}

// loadLabels reads a labels.txt next to the model file, one label per line.
// Missing labels are not an error; predictions fall back to class indices.
func loadLabels(modelPath string) []string {
	f, err := os.Open(filepath.Join(filepath.Dir(modelPath), "labels.txt"))
	if err != nil {
		return nil
	}
	defer f.Close()
	var labels []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			labels = append(labels, line)
		}
	}
	return labels
}
