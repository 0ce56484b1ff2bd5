package chartlog

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/chartlog/chartlog/date"
	"github.com/chartlog/chartlog/vdir"
)

// newTestEngine wires a store, an engine with a short debounce, and
// one connected, active folder over a temp dir.
func newTestEngine(t *testing.T) (*StateStore, *SyncEngine, vdir.Dir) {
	t.Helper()
	store := NewStateStore()
	engine := NewSyncEngine(store, 10*time.Millisecond)
	t.Cleanup(engine.Close)

	root := vdir.NewRoot(t.TempDir())
	f := store.AddFolder(StorageFolder{Name: "Main", Handle: root})
	engine.CheckFolders()
	if err := engine.Activate(f.ID); err != nil {
		t.Fatalf("Activate returned unexpected error: %v", err)
	}
	return store, engine, root.Dir()
}

func TestLoadFreshRoot(t *testing.T) {
	// Scenario: loading an empty root yields the compiled-in defaults.
	store, _, _ := newTestEngine(t)

	if got := store.Config(); got.FileNameTemplate != DefaultFileNameTemplate {
		t.Errorf("config template = %q, want default", got.FileNameTemplate)
	}
	projects := store.Projects()
	if len(projects) != 1 || projects[0].ID != DefaultProjectID || projects[0].Name != DefaultProjectName {
		t.Errorf("projects = %+v, want only the reserved project", projects)
	}
	if n := len(store.Themes()); n != 0 {
		t.Errorf("themes = %d, want 0", n)
	}
	if n := len(store.Sessions()); n != 0 {
		t.Errorf("sessions = %d, want 0", n)
	}
	if n := len(store.Charts()); n != 0 {
		t.Errorf("charts = %d, want 0", n)
	}
}

func TestWriteBackRoundTrip(t *testing.T) {
	store, engine, dir := newTestEngine(t)

	if _, err := store.AddProject("Swing", "swing trades"); err != nil {
		t.Fatalf("AddProject returned unexpected error: %v", err)
	}
	store.AddSession(NewTimerSession(DefaultProjectID, "", "EURUSD",
		time.Date(2025, time.January, 15, 9, 0, 0, 0, time.UTC),
		time.Date(2025, time.January, 15, 9, 30, 0, 0, time.UTC)))
	store.PatchConfig(func(c *AppConfig) { c.FileNameTemplate = "{symbol}" })
	engine.Flush()

	// A second engine over the same root must reload identical state.
	other := NewStateStore()
	otherEngine := NewSyncEngine(other, time.Minute)
	defer otherEngine.Close()
	root := vdir.NewRoot(dir.Path())
	f := other.AddFolder(StorageFolder{Name: "Same", Handle: root})
	otherEngine.CheckFolders()
	if err := otherEngine.Activate(f.ID); err != nil {
		t.Fatalf("Activate returned unexpected error: %v", err)
	}

	if got, want := other.Config().FileNameTemplate, "{symbol}"; got != want {
		t.Errorf("reloaded template = %q, want %q", got, want)
	}
	var names []string
	for _, p := range other.Projects() {
		names = append(names, p.Name)
	}
	if len(names) != 2 || names[0] != "General" || names[1] != "Swing" {
		t.Errorf("reloaded projects = %v, want [General Swing]", names)
	}
	sessions := other.Sessions()
	if len(sessions) != 1 || sessions[0].DurationSeconds != 1800 || sessions[0].Day.String() != "2025-01-15" {
		t.Errorf("reloaded sessions = %+v, want the original session", sessions)
	}
}

func TestDebounceLastWriteWins(t *testing.T) {
	store, _, dir := newTestEngine(t)

	// A burst of edits within the window must coalesce into one write
	// carrying the freshest snapshot.
	for _, sym := range []string{"A", "AB", "ABC"} {
		store.PatchConfig(func(c *AppConfig) { c.FileNameTemplate = "{symbol}_" + sym })
	}
	time.Sleep(100 * time.Millisecond)

	data, err := dir.ReadFile(ConfigFilename)
	if err != nil {
		t.Fatalf("config.json not written: %v", err)
	}
	var cfg AppConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		t.Fatalf("config.json does not parse: %v", err)
	}
	if want := "{symbol}_ABC"; cfg.FileNameTemplate != want {
		t.Errorf("persisted template = %q, want the freshest %q", cfg.FileNameTemplate, want)
	}
}

func TestCreateChartWritesAssets(t *testing.T) {
	store, engine, dir := newTestEngine(t)

	p, err := store.AddProject("Swing", "")
	if err != nil {
		t.Fatalf("AddProject returned unexpected error: %v", err)
	}
	c, err := engine.CreateChart(Chart{
		ProjectID:  p.ID,
		Symbol:     "EURUSD",
		Timeframe:  "H1",
		Outcome:    Win,
		TradingDay: date.MustParse("2025-01-15"),
	}, []byte("imagebytes"), ".png")
	if err != nil {
		t.Fatalf("CreateChart returned unexpected error: %v", err)
	}
	if c.ImageFileName == "" {
		t.Fatal("CreateChart must assign the image file name")
	}

	imgPath := filepath.Join(dir.Path(), "charts", "Swing", "Global", c.ImageFileName)
	if _, err := os.Stat(imgPath); err != nil {
		t.Errorf("image not written: %v", err)
	}
	sidecarPath := filepath.Join(dir.Path(), "charts", "Swing", "Global", SidecarName(c.ImageFileName))
	data, err := os.ReadFile(sidecarPath)
	if err != nil {
		t.Fatalf("sidecar not written: %v", err)
	}
	var fromSidecar Chart
	if err := json.Unmarshal(data, &fromSidecar); err != nil {
		t.Fatalf("sidecar does not parse: %v", err)
	}
	if fromSidecar.ID != c.ID || fromSidecar.Symbol != "EURUSD" {
		t.Errorf("sidecar = %+v, want the chart metadata", fromSidecar)
	}
}

func TestDeleteChartRemovesAssets(t *testing.T) {
	_, engine, dir := newTestEngine(t)

	c, err := engine.CreateChart(Chart{Symbol: "EURUSD"}, []byte("img"), ".png")
	if err != nil {
		t.Fatalf("CreateChart returned unexpected error: %v", err)
	}
	if err := engine.AddSecondaryImage(c.ID, "extra.png", []byte("img2")); err != nil {
		t.Fatalf("AddSecondaryImage returned unexpected error: %v", err)
	}

	if err := engine.DeleteChart(c.ID); err != nil {
		t.Fatalf("DeleteChart returned unexpected error: %v", err)
	}
	themeDir := filepath.Join(dir.Path(), "charts", "General", "Global")
	for _, name := range []string{c.ImageFileName, SidecarName(c.ImageFileName), "extra.png"} {
		if _, err := os.Stat(filepath.Join(themeDir, name)); !os.IsNotExist(err) {
			t.Errorf("%s should be gone after DeleteChart", name)
		}
	}
}

func TestSwitchFolderHardReplaces(t *testing.T) {
	// Scenario: switching the active folder from A to B fully replaces
	// the collections with B's contents, no residue from A.
	store := NewStateStore()
	engine := NewSyncEngine(store, 10*time.Millisecond)
	defer engine.Close()

	rootA := vdir.NewRoot(t.TempDir())
	rootB := vdir.NewRoot(t.TempDir())
	fa := store.AddFolder(StorageFolder{Name: "A", Handle: rootA})
	fb := store.AddFolder(StorageFolder{Name: "B", Handle: rootB})
	engine.CheckFolders()

	if err := engine.Activate(fa.ID); err != nil {
		t.Fatalf("Activate(A) returned unexpected error: %v", err)
	}
	if _, err := store.AddProject("OnlyInA", ""); err != nil {
		t.Fatalf("AddProject returned unexpected error: %v", err)
	}
	if _, err := engine.CreateChart(Chart{Symbol: "EURUSD"}, nil, ".png"); err != nil {
		t.Fatalf("CreateChart returned unexpected error: %v", err)
	}
	engine.Flush()

	if err := engine.Activate(fb.ID); err != nil {
		t.Fatalf("Activate(B) returned unexpected error: %v", err)
	}
	for _, p := range store.Projects() {
		if p.Name == "OnlyInA" {
			t.Error("project from folder A leaked into folder B's state")
		}
	}
	if n := len(store.Charts()); n != 0 {
		t.Errorf("charts = %d after switching to the empty folder B, want 0", n)
	}

	// And back: A's contents return intact.
	if err := engine.Activate(fa.ID); err != nil {
		t.Fatalf("Activate(A) returned unexpected error: %v", err)
	}
	found := false
	for _, p := range store.Projects() {
		if p.Name == "OnlyInA" {
			found = true
		}
	}
	if !found {
		t.Error("project OnlyInA should have been reloaded from folder A")
	}
	if n := len(store.Charts()); n != 1 {
		t.Errorf("charts = %d after returning to A, want 1", n)
	}
}

func TestLoadPrefersIndexFallsBackToScan(t *testing.T) {
	// Scenario: an empty index document with three sidecars on disk
	// must fall back to the recursive scan.
	store := NewStateStore()
	engine := NewSyncEngine(store, time.Minute)
	defer engine.Close()

	root := vdir.NewRoot(t.TempDir())
	root.RequestPermission()
	dir := root.Dir()
	if err := dir.WriteFile(ChartsIndexFilename, []byte("[]\n")); err != nil {
		t.Fatalf("WriteFile returned unexpected error: %v", err)
	}
	for i, name := range []string{"a.png", "b.png", "c.png"} {
		c := Chart{ID: NewID(), ImageFileName: name, ProjectID: DefaultProjectID}
		theme := []string{"Breakouts", "Breakouts", "News"}[i]
		if err := SaveMetadata(dir, name, c, "Swing", theme); err != nil {
			t.Fatalf("SaveMetadata returned unexpected error: %v", err)
		}
	}

	f := store.AddFolder(StorageFolder{Name: "Main", Handle: root})
	engine.CheckFolders()
	if err := engine.Activate(f.ID); err != nil {
		t.Fatalf("Activate returned unexpected error: %v", err)
	}
	if n := len(store.Charts()); n != 3 {
		t.Errorf("charts = %d, want all 3 recovered by the scan", n)
	}
}

func TestCorruptDocumentsLoadAsDefaults(t *testing.T) {
	store := NewStateStore()
	engine := NewSyncEngine(store, time.Minute)
	defer engine.Close()

	root := vdir.NewRoot(t.TempDir())
	root.RequestPermission()
	dir := root.Dir()
	if err := dir.WriteFile(ConfigFilename, []byte("{not json")); err != nil {
		t.Fatalf("WriteFile returned unexpected error: %v", err)
	}
	if err := dir.WriteFile(ProjectsFilename, []byte("also broken")); err != nil {
		t.Fatalf("WriteFile returned unexpected error: %v", err)
	}

	f := store.AddFolder(StorageFolder{Name: "Main", Handle: root})
	engine.CheckFolders()
	if err := engine.Activate(f.ID); err != nil {
		t.Fatalf("Activate returned unexpected error: %v", err)
	}
	if got := store.Config().FileNameTemplate; got != DefaultFileNameTemplate {
		t.Errorf("corrupt config loaded as %q, want defaults", got)
	}
	projects := store.Projects()
	if len(projects) != 1 || projects[0].ID != DefaultProjectID {
		t.Errorf("corrupt projects loaded as %+v, want the reserved project", projects)
	}
}

func TestDisconnectedFolderGating(t *testing.T) {
	store := NewStateStore()
	engine := NewSyncEngine(store, 10*time.Millisecond)
	defer engine.Close()

	// The folder's directory does not exist: permission probes deny.
	missing := vdir.NewRoot(filepath.Join(t.TempDir(), "gone"))
	f := store.AddFolder(StorageFolder{Name: "Revoked", Handle: missing})
	engine.CheckFolders()

	got, _ := store.Folder(f.ID)
	if got.IsConnected {
		t.Fatal("folder over a missing directory must be disconnected")
	}

	// Activating it is valid but performs no load and no write-back.
	if err := engine.Activate(f.ID); err != nil {
		t.Fatalf("Activate of a disconnected folder returned unexpected error: %v", err)
	}
	if err := engine.LoadActive(); !errors.Is(err, vdir.ErrPermissionDenied) {
		t.Errorf("LoadActive on disconnected folder error = %v, want ErrPermissionDenied", err)
	}

	// An explicit reconnect gesture restores it once the directory exists.
	if err := os.MkdirAll(missing.Path(), 0o755); err != nil {
		t.Fatalf("MkdirAll returned unexpected error: %v", err)
	}
	if err := engine.Reconnect(f.ID); err != nil {
		t.Fatalf("Reconnect returned unexpected error: %v", err)
	}
	got, _ = store.Folder(f.ID)
	if !got.IsConnected {
		t.Error("folder should be connected after a successful reconnect")
	}
}

func TestThumbnailNotPersisted(t *testing.T) {
	store, engine, dir := newTestEngine(t)

	c := store.AddChart(Chart{ProjectID: DefaultProjectID, ImageFileName: "a.png", Thumbnail: "base64data"})
	engine.Flush()

	data, err := dir.ReadFile(ChartsIndexFilename)
	if err != nil {
		t.Fatalf("charts index not written: %v", err)
	}
	var raw []map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("charts index does not parse: %v", err)
	}
	if len(raw) != 1 {
		t.Fatalf("charts index has %d entries, want 1", len(raw))
	}
	if _, leaked := raw[0]["thumbnail"]; leaked {
		t.Error("thumbnail must never be written into the index document")
	}
	if raw[0]["id"] != c.ID {
		t.Errorf("index id = %v, want %q", raw[0]["id"], c.ID)
	}
}
