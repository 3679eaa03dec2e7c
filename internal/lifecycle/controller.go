package lifecycle

import (
	"fmt"
	"log"
	"time"

	"classd/internal/classifier"
	"classd/internal/download"
	"classd/internal/infer"
	"classd/internal/registry"
	"classd/internal/statestore"
	"classd/pkg/types"
)

// Controller is the model lifecycle state machine. One interpreter handle is
// "current" at a time; all mutable state below the marker comment is owned by
// the control goroutine started in New.
type Controller struct {
	cache      *classifier.Cache
	downloader download.Downloader
	store      statestore.Store
	publisher  EventPublisher
	invoker    infer.Invoker

	calls       chan func()
	events      <-chan download.Event
	unsubscribe func()
	quit        chan struct{}
	stopped     chan struct{}

	// Owned by the control goroutine.
	state            State
	cur              *classifier.Handle
	remote           types.ModelIdentity
	local            types.ModelIdentity
	selected         bool
	explicitDownload bool
	lastErr          string
	downloadsTotal   uint64
	loadsTotal       uint64

	startTime time.Time
}

// New constructs a Controller, subscribes it to the download subsystem, and
// starts its control goroutine. Callers must Close it when done.
func New(cfg ControllerConfig) *Controller {
	c := &Controller{
		cache:      cfg.Cache,
		downloader: cfg.Downloader,
		store:      cfg.Store,
		publisher:  cfg.Publisher,
		calls:      make(chan func()),
		quit:       make(chan struct{}),
		stopped:    make(chan struct{}),
		state:      StateIdle,
		startTime:  time.Now(),
	}
	if c.publisher == nil {
		c.publisher = noopPublisher{}
	}
	buf := cfg.EventBuffer
	if buf <= 0 {
		buf = defaultEventBuffer
	}
	c.events, c.unsubscribe = c.downloader.Subscribe(buf)
	go c.run()
	return c
}

// run is the control goroutine. Every mutation of controller state happens
// here: posted closures from public methods, and download completion events
// marshaled off their delivering goroutine.
func (c *Controller) run() {
	for {
		select {
		case fn := <-c.calls:
			fn()
		case ev, ok := <-c.events:
			if !ok {
				c.events = nil
				continue
			}
			c.handleDownloadEvent(ev)
		case <-c.quit:
			close(c.stopped)
			return
		}
	}
}

// do executes fn on the control goroutine and waits for it to finish.
func (c *Controller) do(fn func()) {
	done := make(chan struct{})
	c.calls <- func() {
		fn()
		close(done)
	}
	<-done
}

// Close stops the control goroutine, detaches from the download subsystem,
// and releases every cached interpreter. The controller must not be used
// afterwards.
func (c *Controller) Close() error {
	c.unsubscribe()
	close(c.quit)
	<-c.stopped
	return c.cache.Close()
}

// SelectConfiguration resolves the interpreter handle for the pair and
// registers model metadata on it. An identity carrying the Invalid variant is
// a caller bug (the UI selector maps to no defined variant) and panics.
// The returned error, when non-nil, is a non-fatal registration warning: the
// controller remains usable and loading is attempted on demand.
func (c *Controller) SelectConfiguration(remote, local types.ModelIdentity) error {
	if !remote.Variant.Valid() || !local.Variant.Valid() {
		panic(fmt.Sprintf("lifecycle: invalid model selection %s/%s", remote.Variant, local.Variant))
	}
	var warn error
	c.do(func() {
		h, w := c.cache.GetOrCreate(remote, local)
		c.cur = h
		c.remote = remote
		c.local = local
		c.selected = true
		c.explicitDownload = false
		c.state = StateConfiguring
		warn = w
	})
	log.Printf("lifecycle event=select remote=%q local=%q warn=%v", registry.Describe(remote), registry.Describe(local), warn)
	c.publisher.Publish(Event{Name: "select", Model: registry.Describe(remote), Fields: map[string]any{"local": registry.Describe(local)}})
	return warn
}

// IsRemoteDownloaded reads the persisted download-completed flag for id.
// The store serializes access internally; writes still happen only on the
// control goroutine.
func (c *Controller) IsRemoteDownloaded(id types.ModelIdentity) bool {
	return c.store.GetBool(registry.DownloadKey(id))
}

// RequestDownload fetches the currently selected remote model. When the
// model is already downloaded this is a no-op signal that proceeds straight
// to loading it. Explicit requests invoke the download subsystem directly
// and require prior registration; implicit requests delegate to the fetch
// triggered when a remote load finds the model absent.
func (c *Controller) RequestDownload(explicit bool) error {
	var err error
	c.do(func() { err = c.requestDownload(explicit) })
	return err
}

func (c *Controller) requestDownload(explicit bool) error {
	if !c.selected {
		return ErrNoSelection()
	}
	if c.store.GetBool(registry.DownloadKey(c.remote)) {
		return c.loadRemote()
	}
	if !explicit {
		return c.loadRemote()
	}
	if !c.cur.RemoteRegistered() {
		return classifier.ErrNotRegistered(c.cur.RemoteName())
	}
	if err := c.downloader.Download(c.remote); err != nil {
		c.lastErr = err.Error()
		return err
	}
	c.explicitDownload = true
	c.state = StateDownloading
	log.Printf("lifecycle event=download_start model=%q explicit=true", c.cur.RemoteName())
	c.publisher.Publish(Event{Name: "download_start", Model: c.cur.RemoteName(), Fields: map[string]any{"explicit": true}})
	return nil
}

// LoadRemoteModel materializes an interpreter for the registered remote
// model at the selected quantization. When the model file is not present yet
// the download is triggered implicitly and the not-downloaded error is
// reported; state remains ConfiguringModels so the caller may retry.
func (c *Controller) LoadRemoteModel() error {
	var err error
	c.do(func() { err = c.loadRemote() })
	return err
}

func (c *Controller) loadRemote() error {
	if !c.selected {
		return ErrNoSelection()
	}
	err := c.cur.LoadRemote()
	if err == nil {
		c.state = StateRemoteReady
		c.lastErr = ""
		c.loadsTotal++
		log.Printf("lifecycle event=remote_loaded model=%q", c.cur.RemoteName())
		c.publisher.Publish(Event{Name: "remote_loaded", Model: c.cur.RemoteName(), Fields: map[string]any{}})
		return nil
	}
	if classifier.IsNotDownloaded(err) {
		if derr := c.downloader.Download(c.remote); derr == nil {
			c.explicitDownload = false
			c.state = StateDownloading
			log.Printf("lifecycle event=download_start model=%q explicit=false", c.cur.RemoteName())
			c.publisher.Publish(Event{Name: "download_start", Model: c.cur.RemoteName(), Fields: map[string]any{"explicit": false}})
		} else {
			c.lastErr = derr.Error()
		}
		return err
	}
	c.lastErr = err.Error()
	return err
}

// LoadLocalModel materializes an interpreter for the bundled model.
func (c *Controller) LoadLocalModel() error {
	var err error
	c.do(func() {
		if !c.selected {
			err = ErrNoSelection()
			return
		}
		if err = c.cur.LoadLocal(); err != nil {
			c.lastErr = err.Error()
			return
		}
		c.state = StateLocalLoaded
		c.lastErr = ""
		c.loadsTotal++
		log.Printf("lifecycle event=local_loaded model=%q", c.cur.LocalName())
		c.publisher.Publish(Event{Name: "local_loaded", Model: c.cur.LocalName(), Fields: map[string]any{}})
	})
	return err
}

// Progress reports download progress for the current remote selection and
// whether a download is in flight.
func (c *Controller) Progress() (float64, bool) {
	var p float64
	var active bool
	c.do(func() {
		if !c.selected {
			return
		}
		p = c.downloader.ProgressOf(c.remote)
		active = c.state == StateDownloading
	})
	return p, active
}

// handleDownloadEvent runs on the control goroutine. The download subsystem
// is shared process-wide, so events for models this controller never
// requested are expected; everything is filtered by identity before any
// state is touched.
func (c *Controller) handleDownloadEvent(ev download.Event) {
	switch ev.Type {
	case download.EventSucceeded:
		c.onDownloadSucceeded(ev)
	case download.EventFailed:
		c.onDownloadFailed(ev)
	}
}

func (c *Controller) onDownloadSucceeded(ev download.Event) {
	if err := c.store.SetBool(registry.DownloadKey(ev.Identity), true); err != nil {
		log.Printf("lifecycle event=persist_error model=%q err=%v", ev.Name, err)
	}
	c.downloadsTotal++
	log.Printf("lifecycle event=download_succeeded model=%q", ev.Name)
	c.publisher.Publish(Event{Name: "download_succeeded", Model: ev.Name, Fields: map[string]any{}})
	if !c.selected || ev.Identity != c.remote {
		// Stale or foreign completion; the flag is persisted, nothing else
		// changes.
		return
	}
	wasExplicit := c.explicitDownload
	c.explicitDownload = false
	c.state = StateRemoteReady
	if wasExplicit {
		if err := c.loadRemote(); err != nil {
			log.Printf("lifecycle event=load_after_download_error model=%q err=%v", ev.Name, err)
		}
	}
}

func (c *Controller) onDownloadFailed(ev download.Event) {
	log.Printf("lifecycle event=download_failed model=%q err=%v", ev.Name, ev.Err)
	c.publisher.Publish(Event{Name: "download_failed", Model: ev.Name, Fields: map[string]any{"error": fmt.Sprint(ev.Err)}})
	if !c.selected || ev.Identity != c.remote {
		return
	}
	// Re-enable manual retry; no automatic backoff.
	c.explicitDownload = false
	c.state = StateConfiguring
	if ev.Err != nil {
		c.lastErr = ev.Err.Error()
	} else {
		c.lastErr = "download failed"
	}
}
