package chartlog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/chartlog/chartlog/vdir"
)

// testRoot returns a granted directory over a fresh temp dir.
func testRoot(t *testing.T) vdir.Dir {
	t.Helper()
	root := vdir.NewRoot(t.TempDir())
	if perm := root.RequestPermission(); perm != vdir.Granted {
		t.Fatalf("RequestPermission = %s, want granted", perm)
	}
	return root.Dir()
}

func TestSaveAndReadImage(t *testing.T) {
	root := testRoot(t)
	img := []byte{0x89, 'P', 'N', 'G'}

	if err := SaveImage(root, "a_12345678.png", img, "Swing", "Breakouts"); err != nil {
		t.Fatalf("SaveImage returned unexpected error: %v", err)
	}
	// The image lands in the nested layout.
	nested := filepath.Join(root.Path(), "charts", "Swing", "Breakouts", "a_12345678.png")
	if _, err := os.Stat(nested); err != nil {
		t.Fatalf("image not found at nested path: %v", err)
	}

	data, err := ReadImage(root, "a_12345678.png", "Swing", "Breakouts")
	if err != nil {
		t.Fatalf("ReadImage returned unexpected error: %v", err)
	}
	if string(data) != string(img) {
		t.Errorf("ReadImage = %v, want %v", data, img)
	}
}

func TestSaveImageDefaultsFolders(t *testing.T) {
	root := testRoot(t)
	if err := SaveImage(root, "a.png", []byte("x"), "", ""); err != nil {
		t.Fatalf("SaveImage returned unexpected error: %v", err)
	}
	path := filepath.Join(root.Path(), "charts", "General", "Global", "a.png")
	if _, err := os.Stat(path); err != nil {
		t.Errorf("image not found under the default General/Global folders: %v", err)
	}
}

func TestReadImageLegacyFlatFallback(t *testing.T) {
	root := testRoot(t)

	// An old layout kept images flat under charts/.
	charts, err := root.GetOrCreateChild(ChartsDirName)
	if err != nil {
		t.Fatalf("GetOrCreateChild returned unexpected error: %v", err)
	}
	if err := charts.WriteFile("legacy.png", []byte("old")); err != nil {
		t.Fatalf("WriteFile returned unexpected error: %v", err)
	}

	data, err := ReadImage(root, "legacy.png", "Swing", "Breakouts")
	if err != nil {
		t.Fatalf("ReadImage returned unexpected error: %v", err)
	}
	if string(data) != "old" {
		t.Errorf("ReadImage = %q, want the legacy flat file content", data)
	}
}

func TestReadImageMissingIsNotAnError(t *testing.T) {
	root := testRoot(t)
	data, err := ReadImage(root, "nope.png", "Swing", "Breakouts")
	if err != nil {
		t.Fatalf("missing image must not be an error, got: %v", err)
	}
	if data != nil {
		t.Errorf("ReadImage = %v, want nil for a missing preview", data)
	}
}

func TestDeleteAssets(t *testing.T) {
	root := testRoot(t)
	c := Chart{ID: NewID(), ImageFileName: "a_12345678.png", ProjectID: DefaultProjectID}

	if err := SaveImage(root, c.ImageFileName, []byte("img"), "Swing", ""); err != nil {
		t.Fatalf("SaveImage returned unexpected error: %v", err)
	}
	if err := SaveMetadata(root, c.ImageFileName, c, "Swing", ""); err != nil {
		t.Fatalf("SaveMetadata returned unexpected error: %v", err)
	}

	if err := DeleteAssets(root, c.ImageFileName, "Swing", ""); err != nil {
		t.Fatalf("DeleteAssets returned unexpected error: %v", err)
	}
	dir := filepath.Join(root.Path(), "charts", "Swing", "Global")
	for _, name := range []string{"a_12345678.png", "a_12345678.json"} {
		if _, err := os.Stat(filepath.Join(dir, name)); !os.IsNotExist(err) {
			t.Errorf("%s should be gone after DeleteAssets", name)
		}
	}

	// Deleting already-missing assets is best-effort, not an error.
	if err := DeleteAssets(root, c.ImageFileName, "Swing", ""); err != nil {
		t.Errorf("second DeleteAssets returned unexpected error: %v", err)
	}
}

func TestScanAllMetadata(t *testing.T) {
	root := testRoot(t)

	// Two nested sidecars and one legacy flat sidecar.
	a := Chart{ID: NewID(), ImageFileName: "a.png", ProjectID: DefaultProjectID, Symbol: "EURUSD"}
	b := Chart{ID: NewID(), ImageFileName: "b.png", ProjectID: DefaultProjectID, Symbol: "GBPUSD"}
	if err := SaveMetadata(root, a.ImageFileName, a, "Swing", "Breakouts"); err != nil {
		t.Fatalf("SaveMetadata returned unexpected error: %v", err)
	}
	if err := SaveMetadata(root, b.ImageFileName, b, "Scalps", ""); err != nil {
		t.Fatalf("SaveMetadata returned unexpected error: %v", err)
	}
	legacy := Chart{ID: NewID(), ImageFileName: "old.png", ProjectID: DefaultProjectID}
	charts, err := root.GetOrCreateChild(ChartsDirName)
	if err != nil {
		t.Fatalf("GetOrCreateChild returned unexpected error: %v", err)
	}
	data, err := encodeDocument(legacy)
	if err != nil {
		t.Fatalf("encodeDocument returned unexpected error: %v", err)
	}
	if err := charts.WriteFile("old.json", data); err != nil {
		t.Fatalf("WriteFile returned unexpected error: %v", err)
	}
	// Noise the scan must skip: a non-JSON file and a corrupt sidecar.
	if err := charts.WriteFile("stray.png", []byte("img")); err != nil {
		t.Fatalf("WriteFile returned unexpected error: %v", err)
	}
	if err := charts.WriteFile("bad.json", []byte("{broken")); err != nil {
		t.Fatalf("WriteFile returned unexpected error: %v", err)
	}

	found, err := ScanAllMetadata(root)
	if err != nil {
		t.Fatalf("ScanAllMetadata returned unexpected error: %v", err)
	}
	if len(found) != 3 {
		t.Fatalf("ScanAllMetadata found %d charts, want 3", len(found))
	}
	ids := map[string]bool{}
	for _, c := range found {
		ids[c.ID] = true
	}
	for _, want := range []Chart{a, b, legacy} {
		if !ids[want.ID] {
			t.Errorf("chart %q missing from scan", want.ID)
		}
	}
}

func TestScanAllMetadataEmptyRoot(t *testing.T) {
	root := testRoot(t)
	found, err := ScanAllMetadata(root)
	if err != nil {
		t.Fatalf("ScanAllMetadata returned unexpected error: %v", err)
	}
	if len(found) != 0 {
		t.Errorf("ScanAllMetadata on empty root = %v, want empty", found)
	}
}
