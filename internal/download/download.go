// Package download fetches remote model files and broadcasts typed
// completion events. Completion is asynchronous: Download returns once the
// transfer is started, and every subscriber observes the eventual
// success/failure notification on an unspecified goroutine.
package download

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"classd/internal/common/fsutil"
	"classd/internal/registry"
	"classd/pkg/types"
)

// ErrHashMismatch indicates downloaded data failed hash verification.
var ErrHashMismatch = errors.New("download: hash verification failed")

// Downloader is the download subsystem consumed by the lifecycle controller.
// It is modeled as an injected dependency rather than ambient global state so
// tests can substitute a fake.
type Downloader interface {
	// Download starts fetching the model for id. It returns an error only
	// when the transfer cannot be started; transfer outcome arrives as an
	// Event. Starting a download that is already in flight is a no-op.
	Download(id types.ModelIdentity) error
	// ProgressOf reports the current transfer progress for id in [0,1].
	ProgressOf(id types.ModelIdentity) float64
	// Subscribe returns a channel of completion events and a cancel func.
	// Events for every model pass through every subscription.
	Subscribe(buffer int) (<-chan Event, func())
}

var downloadsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "classd",
		Subsystem: "download",
		Name:      "completed_total",
		Help:      "Completed model downloads by result",
	},
	[]string{"result"},
)

func init() {
	prometheus.MustRegister(downloadsTotal)
}

// transfer tracks one in-flight download.
type transfer struct {
	total int64
	done  atomic.Int64
}

// HTTPDownloader fetches model files over HTTP from a registry base URL and
// installs them into a data directory with an atomic rename.
type HTTPDownloader struct {
	baseURL string
	dataDir string
	client  *http.Client
	// checksums maps model name to an expected SHA-256 hex digest.
	// Empty entries skip verification.
	checksums map[string]string

	bus *broadcaster

	mu       sync.Mutex
	inflight map[types.ModelIdentity]*transfer
}

// NewHTTP creates an HTTPDownloader. checksums may be nil.
func NewHTTP(baseURL, dataDir string, checksums map[string]string) *HTTPDownloader {
	return &HTTPDownloader{
		baseURL:   baseURL,
		dataDir:   dataDir,
		client:    &http.Client{Timeout: 30 * time.Minute},
		checksums: checksums,
		bus:       newBroadcaster(),
		inflight:  make(map[types.ModelIdentity]*transfer),
	}
}

// InstallPath returns where the downloaded model for id lives (or will live).
func (d *HTTPDownloader) InstallPath(id types.ModelIdentity) string {
	return filepath.Join(d.dataDir, registry.RemoteFilename(id))
}

func (d *HTTPDownloader) Download(id types.ModelIdentity) error {
	d.mu.Lock()
	if _, busy := d.inflight[id]; busy {
		d.mu.Unlock()
		return nil
	}
	tr := &transfer{}
	d.inflight[id] = tr
	d.mu.Unlock()

	if err := fsutil.EnsureDir(d.dataDir); err != nil {
		d.finish(id, Event{Type: EventFailed, Identity: id, Name: registry.Describe(id), Err: err})
		return nil
	}
	go d.run(id, tr)
	return nil
}

func (d *HTTPDownloader) ProgressOf(id types.ModelIdentity) float64 {
	d.mu.Lock()
	tr, ok := d.inflight[id]
	d.mu.Unlock()
	if !ok {
		return 0
	}
	total := tr.total
	if total <= 0 {
		return 0
	}
	p := float64(tr.done.Load()) / float64(total)
	if p > 1 {
		p = 1
	}
	return p
}

func (d *HTTPDownloader) Subscribe(buffer int) (<-chan Event, func()) {
	return d.bus.subscribe(buffer)
}

// run performs the transfer and publishes the terminal event.
func (d *HTTPDownloader) run(id types.ModelIdentity, tr *transfer) {
	name := registry.Describe(id)
	err := d.fetch(id, tr)
	if err != nil {
		d.finish(id, Event{Type: EventFailed, Identity: id, Name: name, Err: err})
		return
	}
	d.finish(id, Event{Type: EventSucceeded, Identity: id, Name: name})
}

func (d *HTTPDownloader) finish(id types.ModelIdentity, e Event) {
	d.mu.Lock()
	delete(d.inflight, id)
	d.mu.Unlock()
	downloadsTotal.WithLabelValues(string(e.Type)).Inc()
	d.bus.publish(e)
}

func (d *HTTPDownloader) fetch(id types.ModelIdentity, tr *transfer) error {
	url := d.baseURL + "/" + registry.RemoteFilename(id)
	resp, err := d.client.Get(url)
	if err != nil {
		return fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetching %s: unexpected status %d", url, resp.StatusCode)
	}
	tr.total = resp.ContentLength

	dst := d.InstallPath(id)
	tmp, err := os.CreateTemp(d.dataDir, ".partial-*")
	if err != nil {
		return fmt.Errorf("temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	h := sha256.New()
	buf := make([]byte, 1<<16)
	for {
		n, rerr := resp.Body.Read(buf)
		if n > 0 {
			if _, werr := tmp.Write(buf[:n]); werr != nil {
				tmp.Close()
				return fmt.Errorf("writing model: %w", werr)
			}
			h.Write(buf[:n])
			tr.done.Add(int64(n))
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			tmp.Close()
			return fmt.Errorf("reading body: %w", rerr)
		}
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if want := d.checksums[registry.Describe(id)]; want != "" {
		if got := hex.EncodeToString(h.Sum(nil)); got != want {
			return ErrHashMismatch
		}
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return fmt.Errorf("installing model: %w", err)
	}
	return nil
}
