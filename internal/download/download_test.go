package download

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"classd/internal/registry"
	"classd/pkg/types"
)

var quantRemote = types.ModelIdentity{Kind: types.KindRemote, Variant: types.VariantQuantized}

func waitEvent(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case e := <-ch:
		return e
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for download event")
		return Event{}
	}
}

func TestBroadcasterDeliversToAllSubscribers(t *testing.T) {
	b := newBroadcaster()
	ch1, cancel1 := b.subscribe(1)
	ch2, cancel2 := b.subscribe(1)
	defer cancel1()
	defer cancel2()

	b.publish(Event{Type: EventSucceeded, Identity: quantRemote})
	for _, ch := range []<-chan Event{ch1, ch2} {
		e := waitEvent(t, ch)
		if e.Type != EventSucceeded || e.Identity != quantRemote {
			t.Fatalf("got %+v", e)
		}
	}
}

func TestBroadcasterPublishNeverBlocks(t *testing.T) {
	b := newBroadcaster()
	_, cancel := b.subscribe(1)
	defer cancel()

	done := make(chan struct{})
	go func() {
		// Second publish would block on an unbuffered send; it must drop.
		b.publish(Event{Type: EventSucceeded})
		b.publish(Event{Type: EventSucceeded})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("publish blocked on a full subscriber")
	}
}

func TestBroadcasterCancelClosesChannel(t *testing.T) {
	b := newBroadcaster()
	ch, cancel := b.subscribe(1)
	cancel()
	if _, ok := <-ch; ok {
		t.Fatalf("channel should be closed after cancel")
	}
	// Cancel twice is safe.
	cancel()
	b.publish(Event{Type: EventSucceeded})
}

func TestHTTPDownloaderInstallsFile(t *testing.T) {
	body := []byte("model-bytes")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/"+registry.RemoteFilename(quantRemote) {
			http.NotFound(w, r)
			return
		}
		w.Write(body)
	}))
	defer srv.Close()

	dir := t.TempDir()
	d := NewHTTP(srv.URL, dir, nil)
	ch, cancel := d.Subscribe(4)
	defer cancel()

	if err := d.Download(quantRemote); err != nil {
		t.Fatalf("Download: %v", err)
	}
	e := waitEvent(t, ch)
	if e.Type != EventSucceeded {
		t.Fatalf("got %+v", e)
	}
	got, err := os.ReadFile(d.InstallPath(quantRemote))
	if err != nil {
		t.Fatalf("installed file: %v", err)
	}
	if string(got) != string(body) {
		t.Fatalf("installed content mismatch")
	}
}

func TestHTTPDownloaderChecksumMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("tampered"))
	}))
	defer srv.Close()

	sum := sha256.Sum256([]byte("expected"))
	d := NewHTTP(srv.URL, t.TempDir(), map[string]string{
		registry.Describe(quantRemote): hex.EncodeToString(sum[:]),
	})
	ch, cancel := d.Subscribe(4)
	defer cancel()

	if err := d.Download(quantRemote); err != nil {
		t.Fatalf("Download: %v", err)
	}
	e := waitEvent(t, ch)
	if e.Type != EventFailed || !errors.Is(e.Err, ErrHashMismatch) {
		t.Fatalf("got %+v", e)
	}
	if _, err := os.Stat(d.InstallPath(quantRemote)); !os.IsNotExist(err) {
		t.Fatalf("rejected download must not be installed")
	}
}

func TestHTTPDownloaderNotFound(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	d := NewHTTP(srv.URL, t.TempDir(), nil)
	ch, cancel := d.Subscribe(4)
	defer cancel()

	if err := d.Download(quantRemote); err != nil {
		t.Fatalf("Download: %v", err)
	}
	if e := waitEvent(t, ch); e.Type != EventFailed {
		t.Fatalf("got %+v", e)
	}
}

func TestHTTPDownloaderInflightNoop(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		w.Write([]byte("x"))
	}))
	defer srv.Close()

	d := NewHTTP(srv.URL, t.TempDir(), nil)
	ch, cancel := d.Subscribe(4)
	defer cancel()

	if err := d.Download(quantRemote); err != nil {
		t.Fatalf("Download: %v", err)
	}
	// Second start while in flight must not spawn a second transfer.
	if err := d.Download(quantRemote); err != nil {
		t.Fatalf("Download (repeat): %v", err)
	}
	close(release)

	waitEvent(t, ch)
	select {
	case e := <-ch:
		t.Fatalf("unexpected second event %+v", e)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestFakeRecordsRequests(t *testing.T) {
	f := NewFake()
	if err := f.Download(quantRemote); err != nil {
		t.Fatalf("Download: %v", err)
	}
	reqs := f.Requests()
	if len(reqs) != 1 || reqs[0] != quantRemote {
		t.Fatalf("got %+v", reqs)
	}

	f.FailToStart(errors.New("boom"))
	if err := f.Download(quantRemote); err == nil {
		t.Fatalf("expected start error")
	}
	if len(f.Requests()) != 1 {
		t.Fatalf("failed start must not be recorded")
	}
}
