package lifecycle

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"classd/internal/classifier"
	"classd/internal/download"
	"classd/internal/infer"
	"classd/internal/registry"
	"classd/internal/statestore"
	"classd/pkg/types"
)

var (
	quantRemote = types.ModelIdentity{Kind: types.KindRemote, Variant: types.VariantQuantized}
	quantLocal  = types.ModelIdentity{Kind: types.KindLocal, Variant: types.VariantQuantized}
	floatRemote = types.ModelIdentity{Kind: types.KindRemote, Variant: types.VariantFloat}
	floatLocal  = types.ModelIdentity{Kind: types.KindLocal, Variant: types.VariantFloat}
)

// testMeta wraps the production metadata source and lets individual remote
// names be marked unknown to the backend.
type testMeta struct {
	classifier.DiskMetadata
	unknown map[string]bool
}

func (m *testMeta) RemoteKnown(name string) bool {
	if m.unknown[name] {
		return false
	}
	return m.DiskMetadata.RemoteKnown(name)
}

type fixture struct {
	ctrl    *Controller
	adapter *classifier.FakeAdapter
	dl      *download.Fake
	store   *statestore.Memory
	pub     *MemoryPublisher
	meta    *testMeta
	dataDir string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	bundledDir := t.TempDir()
	dataDir := t.TempDir()
	for _, id := range registry.All() {
		if id.Kind != types.KindLocal {
			continue
		}
		p := filepath.Join(bundledDir, registry.BundledFilename(id))
		if err := os.WriteFile(p, []byte("m"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	f := &fixture{
		adapter: &classifier.FakeAdapter{Predictions: []types.Prediction{{Label: "tabby", Confidence: 0.9}}},
		dl:      download.NewFake(),
		store:   statestore.NewMemory(),
		pub:     NewMemoryPublisher(),
		meta:    &testMeta{DiskMetadata: classifier.DiskMetadata{BundledDir: bundledDir, DataDir: dataDir}, unknown: map[string]bool{}},
		dataDir: dataDir,
	}
	f.ctrl = New(ControllerConfig{
		Cache:      classifier.NewCache(f.adapter, f.meta),
		Downloader: f.dl,
		Store:      f.store,
		Publisher:  f.pub,
	})
	t.Cleanup(func() { f.ctrl.Close() })
	return f
}

// installRemote writes the remote model file so a load can succeed.
func (f *fixture) installRemote(t *testing.T, id types.ModelIdentity) {
	t.Helper()
	p := filepath.Join(f.dataDir, registry.RemoteFilename(id))
	if err := os.WriteFile(p, []byte("m"), 0o644); err != nil {
		t.Fatal(err)
	}
}

// waitFor polls cond until it holds. Download events reach the controller
// asynchronously, so tests that inject one must wait for its effect.
func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", msg)
}

func (f *fixture) waitState(t *testing.T, want State) {
	t.Helper()
	waitFor(t, func() bool { return f.ctrl.Status().State == string(want) }, "state "+string(want))
}

func TestSelectConfiguration(t *testing.T) {
	f := newFixture(t)
	if err := f.ctrl.SelectConfiguration(quantRemote, quantLocal); err != nil {
		t.Fatalf("select: %v", err)
	}
	st := f.ctrl.Status()
	if st.State != string(StateConfiguring) {
		t.Fatalf("state = %q", st.State)
	}
	if st.Remote != "mobilenet-quantized" || st.Local != "mobilenet-quantized-bundled" {
		t.Fatalf("status names: %+v", st)
	}
	if st.CachedHandles != 1 {
		t.Fatalf("cached handles = %d", st.CachedHandles)
	}
}

func TestSelectConfigurationPanicsOnInvalidVariant(t *testing.T) {
	f := newFixture(t)
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic for invalid variant")
		}
	}()
	f.ctrl.SelectConfiguration(types.ModelIdentity{Kind: types.KindRemote}, quantLocal)
}

func TestSelectConfigurationWarnsOnUnknownRemote(t *testing.T) {
	f := newFixture(t)
	f.meta.unknown["mobilenet-quantized"] = true

	err := f.ctrl.SelectConfiguration(quantRemote, quantLocal)
	if err == nil {
		t.Fatalf("expected registration warning")
	}
	// The warning is non-fatal: the bundled model still loads.
	if err := f.ctrl.LoadLocalModel(); err != nil {
		t.Fatalf("LoadLocalModel: %v", err)
	}
	if !f.ctrl.Ready() {
		t.Fatalf("controller should be ready after local load")
	}
}

func TestReselectingSamePairReusesHandleAndSessions(t *testing.T) {
	f := newFixture(t)
	if err := f.ctrl.SelectConfiguration(quantRemote, quantLocal); err != nil {
		t.Fatalf("select: %v", err)
	}
	if err := f.ctrl.LoadLocalModel(); err != nil {
		t.Fatalf("LoadLocalModel: %v", err)
	}

	if err := f.ctrl.SelectConfiguration(floatRemote, floatLocal); err != nil {
		t.Fatalf("select float: %v", err)
	}
	if f.ctrl.Ready() {
		t.Fatalf("fresh pair must not inherit loaded sessions")
	}

	if err := f.ctrl.SelectConfiguration(quantRemote, quantLocal); err != nil {
		t.Fatalf("reselect: %v", err)
	}
	if !f.ctrl.Ready() {
		t.Fatalf("cached pair must keep its loaded session")
	}
	if err := f.ctrl.LoadLocalModel(); err != nil {
		t.Fatalf("LoadLocalModel (repeat): %v", err)
	}
	if n := len(f.adapter.Loads()); n != 1 {
		t.Fatalf("adapter loaded %d times, want 1", n)
	}
	if f.ctrl.Status().CachedHandles != 2 {
		t.Fatalf("cached handles = %d, want 2", f.ctrl.Status().CachedHandles)
	}
}

func TestOperationsRequireSelection(t *testing.T) {
	f := newFixture(t)
	if err := f.ctrl.RequestDownload(true); !IsNoSelection(err) {
		t.Fatalf("RequestDownload: got %v", err)
	}
	if err := f.ctrl.LoadRemoteModel(); !IsNoSelection(err) {
		t.Fatalf("LoadRemoteModel: got %v", err)
	}
	if err := f.ctrl.LoadLocalModel(); !IsNoSelection(err) {
		t.Fatalf("LoadLocalModel: got %v", err)
	}
	if _, _, err := f.ctrl.Detect(context.Background(), []byte("img")); !IsNoSelection(err) {
		t.Fatalf("Detect: got %v", err)
	}
}

func TestExplicitDownloadRequiresRegistration(t *testing.T) {
	f := newFixture(t)
	f.meta.unknown["mobilenet-quantized"] = true
	f.ctrl.SelectConfiguration(quantRemote, quantLocal)

	err := f.ctrl.RequestDownload(true)
	if !classifier.IsNotRegistered(err) {
		t.Fatalf("got %v, want not-registered", err)
	}
	if n := len(f.dl.Requests()); n != 0 {
		t.Fatalf("downloader contacted %d times for unregistered model", n)
	}
}

func TestExplicitDownloadThenSuccessLoadsModel(t *testing.T) {
	f := newFixture(t)
	if err := f.ctrl.SelectConfiguration(quantRemote, quantLocal); err != nil {
		t.Fatalf("select: %v", err)
	}
	if err := f.ctrl.RequestDownload(true); err != nil {
		t.Fatalf("RequestDownload: %v", err)
	}
	f.waitState(t, StateDownloading)
	if reqs := f.dl.Requests(); len(reqs) != 1 || reqs[0] != quantRemote {
		t.Fatalf("downloader requests: %+v", reqs)
	}

	f.installRemote(t, quantRemote)
	f.dl.Succeed(quantRemote)

	f.waitState(t, StateRemoteReady)
	if !f.store.GetBool(registry.DownloadKey(quantRemote)) {
		t.Fatalf("download-completed flag not persisted")
	}
	// Explicit flow loads the model as soon as the download lands.
	waitFor(t, f.ctrl.Ready, "remote session loaded")
}

func TestImplicitDownloadDoesNotAutoLoad(t *testing.T) {
	f := newFixture(t)
	f.ctrl.SelectConfiguration(quantRemote, quantLocal)

	// Loading an absent remote model triggers the fetch implicitly.
	err := f.ctrl.LoadRemoteModel()
	if !classifier.IsNotDownloaded(err) {
		t.Fatalf("got %v, want not-downloaded", err)
	}
	f.waitState(t, StateDownloading)
	if reqs := f.dl.Requests(); len(reqs) != 1 {
		t.Fatalf("downloader requests: %+v", reqs)
	}

	f.installRemote(t, quantRemote)
	f.dl.Succeed(quantRemote)

	f.waitState(t, StateRemoteReady)
	// Implicit completion records readiness but leaves loading to the caller.
	if f.ctrl.Ready() {
		t.Fatalf("implicit download must not auto-load the model")
	}
	if err := f.ctrl.LoadRemoteModel(); err != nil {
		t.Fatalf("LoadRemoteModel after download: %v", err)
	}
	if !f.ctrl.Ready() {
		t.Fatalf("explicit load after download should succeed")
	}
}

func TestDownloadSkippedWhenAlreadyDownloaded(t *testing.T) {
	f := newFixture(t)
	f.ctrl.SelectConfiguration(quantRemote, quantLocal)
	f.store.SetBool(registry.DownloadKey(quantRemote), true)
	f.installRemote(t, quantRemote)

	if err := f.ctrl.RequestDownload(true); err != nil {
		t.Fatalf("RequestDownload: %v", err)
	}
	if n := len(f.dl.Requests()); n != 0 {
		t.Fatalf("downloader contacted %d times for downloaded model", n)
	}
	f.waitState(t, StateRemoteReady)
	if !f.ctrl.Ready() {
		t.Fatalf("already-downloaded model should load directly")
	}
}

func TestForeignDownloadSuccessPersistsFlagOnly(t *testing.T) {
	f := newFixture(t)
	f.ctrl.SelectConfiguration(quantRemote, quantLocal)

	f.dl.Succeed(floatRemote)

	waitFor(t, func() bool {
		return f.store.GetBool(registry.DownloadKey(floatRemote))
	}, "foreign flag persisted")
	if st := f.ctrl.Status(); st.State != string(StateConfiguring) {
		t.Fatalf("foreign success changed state to %q", st.State)
	}
	if f.ctrl.Ready() {
		t.Fatalf("foreign success must not load anything")
	}
}

func TestForeignDownloadFailureIsIgnored(t *testing.T) {
	f := newFixture(t)
	f.ctrl.SelectConfiguration(quantRemote, quantLocal)
	if err := f.ctrl.RequestDownload(true); err != nil {
		t.Fatalf("RequestDownload: %v", err)
	}
	f.waitState(t, StateDownloading)

	f.dl.Fail(floatRemote, errors.New("disk full"))

	// The controller stays in its download; only the matching identity's
	// failure may move it.
	time.Sleep(50 * time.Millisecond)
	if st := f.ctrl.Status(); st.State != string(StateDownloading) {
		t.Fatalf("foreign failure changed state to %q", st.State)
	}
	if st := f.ctrl.Status(); st.LastError != "" {
		t.Fatalf("foreign failure set last error %q", st.LastError)
	}
}

func TestMatchingDownloadFailureReturnsToConfiguring(t *testing.T) {
	f := newFixture(t)
	f.ctrl.SelectConfiguration(quantRemote, quantLocal)
	if err := f.ctrl.RequestDownload(true); err != nil {
		t.Fatalf("RequestDownload: %v", err)
	}
	f.waitState(t, StateDownloading)

	f.dl.Fail(quantRemote, errors.New("connection reset"))

	f.waitState(t, StateConfiguring)
	if st := f.ctrl.Status(); st.LastError != "connection reset" {
		t.Fatalf("last error = %q", st.LastError)
	}
	if f.store.GetBool(registry.DownloadKey(quantRemote)) {
		t.Fatalf("failure must not persist the completed flag")
	}

	// Manual retry is allowed straight away.
	if err := f.ctrl.RequestDownload(true); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if n := len(f.dl.Requests()); n != 2 {
		t.Fatalf("retry requests = %d, want 2", n)
	}
}

func TestProgress(t *testing.T) {
	f := newFixture(t)
	if p, active := f.ctrl.Progress(); p != 0 || active {
		t.Fatalf("no selection: got %v %v", p, active)
	}

	f.ctrl.SelectConfiguration(quantRemote, quantLocal)
	f.ctrl.RequestDownload(true)
	f.waitState(t, StateDownloading)
	f.dl.SetProgress(quantRemote, 0.4)

	p, active := f.ctrl.Progress()
	if p != 0.4 || !active {
		t.Fatalf("got %v %v, want 0.4 true", p, active)
	}
}

func TestDetectPrefersRemoteOverLocal(t *testing.T) {
	f := newFixture(t)
	f.ctrl.SelectConfiguration(quantRemote, quantLocal)
	if err := f.ctrl.LoadLocalModel(); err != nil {
		t.Fatalf("LoadLocalModel: %v", err)
	}

	preds, name, err := f.ctrl.Detect(context.Background(), []byte("img"))
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if name != "mobilenet-quantized-bundled" {
		t.Fatalf("used model %q, want local", name)
	}
	if len(preds) != 1 || preds[0].Label != "tabby" {
		t.Fatalf("got %+v", preds)
	}
	if st := f.ctrl.Status(); st.State != string(StateResultsReady) {
		t.Fatalf("state = %q", st.State)
	}

	f.installRemote(t, quantRemote)
	f.store.SetBool(registry.DownloadKey(quantRemote), true)
	if err := f.ctrl.LoadRemoteModel(); err != nil {
		t.Fatalf("LoadRemoteModel: %v", err)
	}
	_, name, err = f.ctrl.Detect(context.Background(), []byte("img"))
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if name != "mobilenet-quantized" {
		t.Fatalf("used model %q, want remote once loaded", name)
	}
}

func TestDetectWithoutLoadedModel(t *testing.T) {
	f := newFixture(t)
	f.ctrl.SelectConfiguration(quantRemote, quantLocal)
	if _, _, err := f.ctrl.Detect(context.Background(), []byte("img")); !IsNotLoaded(err) {
		t.Fatalf("got %v, want not-loaded", err)
	}
}

func TestDetectEmptyResultIsFailure(t *testing.T) {
	f := newFixture(t)
	f.adapter.Predictions = nil
	f.ctrl.SelectConfiguration(quantRemote, quantLocal)
	if err := f.ctrl.LoadLocalModel(); err != nil {
		t.Fatalf("LoadLocalModel: %v", err)
	}

	preds, _, err := f.ctrl.Detect(context.Background(), []byte("img"))
	if preds != nil {
		t.Fatalf("empty classification must not yield predictions")
	}
	if !infer.IsDetectFailed(err) {
		t.Fatalf("got %v, want detect-failed", err)
	}
	st := f.ctrl.Status()
	if st.State != string(StateFailed) {
		t.Fatalf("state = %q", st.State)
	}
	if st.LastError == "" {
		t.Fatalf("last error not recorded")
	}
}

func TestModels(t *testing.T) {
	f := newFixture(t)
	f.store.SetBool(registry.DownloadKey(floatRemote), true)

	models := f.ctrl.Models()
	if len(models) != 4 {
		t.Fatalf("got %d models, want 4", len(models))
	}
	byName := map[string]types.ModelStatus{}
	for _, m := range models {
		byName[m.Name] = m
	}
	if !byName["mobilenet-float"].Downloaded {
		t.Fatalf("float remote should report downloaded")
	}
	if byName["mobilenet-quantized"].Downloaded {
		t.Fatalf("quantized remote should not report downloaded")
	}
}

func TestPublisherSeesLifecycleEvents(t *testing.T) {
	f := newFixture(t)
	f.ctrl.SelectConfiguration(quantRemote, quantLocal)
	f.ctrl.LoadLocalModel()
	f.ctrl.Detect(context.Background(), []byte("img"))

	names := map[string]bool{}
	for _, e := range f.pub.Events() {
		names[e.Name] = true
	}
	for _, want := range []string{"select", "local_loaded", "detect_done"} {
		if !names[want] {
			t.Fatalf("missing %q event; got %v", want, names)
		}
	}
}
