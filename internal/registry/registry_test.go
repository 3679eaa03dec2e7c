package registry

import (
	"os"
	"path/filepath"
	"testing"

	"classd/pkg/types"
)

func TestVariantFromSelector(t *testing.T) {
	if got := VariantFromSelector(SelectorQuantized); got != types.VariantQuantized {
		t.Fatalf("selector 0: got %s", got)
	}
	if got := VariantFromSelector(SelectorFloat); got != types.VariantFloat {
		t.Fatalf("selector 1: got %s", got)
	}
}

func TestVariantFromSelectorPanicsOutOfRange(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic for selector 2")
		}
	}()
	VariantFromSelector(2)
}

func TestIdentities(t *testing.T) {
	remote, local := Identities(SelectorFloat)
	if remote.Kind != types.KindRemote || remote.Variant != types.VariantFloat {
		t.Fatalf("remote: got %+v", remote)
	}
	if local.Kind != types.KindLocal || local.Variant != types.VariantFloat {
		t.Fatalf("local: got %+v", local)
	}
}

func TestDescribe(t *testing.T) {
	cases := []struct {
		id   types.ModelIdentity
		want string
	}{
		{types.ModelIdentity{Kind: types.KindRemote, Variant: types.VariantQuantized}, "mobilenet-quantized"},
		{types.ModelIdentity{Kind: types.KindRemote, Variant: types.VariantFloat}, "mobilenet-float"},
		{types.ModelIdentity{Kind: types.KindLocal, Variant: types.VariantQuantized}, "mobilenet-quantized-bundled"},
		{types.ModelIdentity{Kind: types.KindLocal, Variant: types.VariantFloat}, "mobilenet-float-bundled"},
		{types.ModelIdentity{}, "invalid"},
	}
	for _, c := range cases {
		if got := Describe(c.id); got != c.want {
			t.Fatalf("Describe(%+v): got %q want %q", c.id, got, c.want)
		}
	}
}

func TestDownloadKeysDistinctPerIdentity(t *testing.T) {
	seen := map[string]bool{}
	for _, id := range All() {
		if id.Kind != types.KindRemote {
			continue
		}
		k := DownloadKey(id)
		if seen[k] {
			t.Fatalf("duplicate download key %q", k)
		}
		seen[k] = true
	}
	if len(seen) != 2 {
		t.Fatalf("expected 2 remote download keys, got %d", len(seen))
	}
}

func TestResolveBundled(t *testing.T) {
	dir := t.TempDir()
	id := types.ModelIdentity{Kind: types.KindLocal, Variant: types.VariantQuantized}

	if _, err := ResolveBundled(dir, id); err == nil {
		t.Fatalf("expected error for absent file")
	}

	path := filepath.Join(dir, BundledFilename(id))
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := ResolveBundled(dir, id)
	if err != nil {
		t.Fatalf("ResolveBundled: %v", err)
	}
	if got != path {
		t.Fatalf("got %q want %q", got, path)
	}
}

func TestScanBundledDir(t *testing.T) {
	dir := t.TempDir()
	quant := types.ModelIdentity{Kind: types.KindLocal, Variant: types.VariantQuantized}
	if err := os.WriteFile(filepath.Join(dir, BundledFilename(quant)), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	found, err := ScanBundledDir(dir)
	if err != nil {
		t.Fatalf("ScanBundledDir: %v", err)
	}
	if len(found) != 1 || found[0] != quant {
		t.Fatalf("got %+v, want only the quantized bundled model", found)
	}

	if _, err := ScanBundledDir(filepath.Join(dir, "missing")); err == nil {
		t.Fatalf("expected error for unreadable dir")
	}
}
