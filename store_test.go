package chartlog

import (
	"slices"
	"testing"
	"time"
)

func TestNewStateStoreDefaults(t *testing.T) {
	s := NewStateStore()
	projects := s.Projects()
	if len(projects) != 1 || projects[0].ID != DefaultProjectID || projects[0].Name != DefaultProjectName {
		t.Fatalf("fresh store projects = %+v, want only the reserved project", projects)
	}
	if got := s.Config().FileNameTemplate; got != DefaultFileNameTemplate {
		t.Errorf("fresh store template = %q, want %q", got, DefaultFileNameTemplate)
	}
}

func TestProjectOrdering(t *testing.T) {
	s := NewStateStore()
	for _, name := range []string{"Zeta", "Alpha", "Momentum"} {
		if _, err := s.AddProject(name, ""); err != nil {
			t.Fatalf("AddProject(%q) returned unexpected error: %v", name, err)
		}
	}
	var names []string
	for _, p := range s.Projects() {
		names = append(names, p.Name)
	}
	want := []string{"Alpha", "General", "Momentum", "Zeta"}
	if !slices.Equal(names, want) {
		t.Errorf("project order = %v, want %v", names, want)
	}
}

func TestAddProjectDuplicateName(t *testing.T) {
	s := NewStateStore()
	if _, err := s.AddProject("Swing", ""); err != nil {
		t.Fatalf("AddProject returned unexpected error: %v", err)
	}
	if _, err := s.AddProject("Swing", ""); err == nil {
		t.Error("duplicate project name should have been rejected")
	}
}

func TestDeleteProjectCascade(t *testing.T) {
	s := NewStateStore()
	p, err := s.AddProject("Swing", "")
	if err != nil {
		t.Fatalf("AddProject returned unexpected error: %v", err)
	}
	th, err := s.AddTheme(p.ID, "Breakouts", "")
	if err != nil {
		t.Fatalf("AddTheme returned unexpected error: %v", err)
	}
	if _, err := s.AddTheme(DefaultProjectID, "Kept", ""); err != nil {
		t.Fatalf("AddTheme returned unexpected error: %v", err)
	}
	c := s.AddChart(Chart{ProjectID: p.ID, ThemeID: th.ID, ImageFileName: "x.png"})

	if err := s.DeleteProject(p.ID); err != nil {
		t.Fatalf("DeleteProject returned unexpected error: %v", err)
	}

	// Every theme owned by the project is gone; others survive.
	for _, th := range s.Themes() {
		if th.ProjectID == p.ID {
			t.Errorf("theme %q should have been cascaded away", th.Name)
		}
	}
	if len(s.Themes()) != 1 {
		t.Errorf("themes = %+v, want only the theme of the kept project", s.Themes())
	}

	// Charts keep their dangling references untouched.
	got, ok := s.Chart(c.ID)
	if !ok {
		t.Fatal("chart should not be deleted by the project cascade")
	}
	if got.ProjectID != p.ID || got.ThemeID != th.ID {
		t.Errorf("chart refs = (%q, %q), want unchanged (%q, %q)", got.ProjectID, got.ThemeID, p.ID, th.ID)
	}
	if s.ProjectName(got.ProjectID) != "Unknown" {
		t.Errorf("dangling project resolves to %q, want Unknown", s.ProjectName(got.ProjectID))
	}
}

func TestDeleteDefaultProject(t *testing.T) {
	s := NewStateStore()
	if err := s.DeleteProject(DefaultProjectID); err == nil {
		t.Error("deleting the reserved project should have failed")
	}
}

func TestDeleteThemeUnlinksCharts(t *testing.T) {
	s := NewStateStore()
	th, err := s.AddTheme(DefaultProjectID, "Breakouts", "")
	if err != nil {
		t.Fatalf("AddTheme returned unexpected error: %v", err)
	}
	c := s.AddChart(Chart{ProjectID: DefaultProjectID, ThemeID: th.ID, ImageFileName: "x.png"})

	if err := s.DeleteTheme(th.ID); err != nil {
		t.Fatalf("DeleteTheme returned unexpected error: %v", err)
	}
	got, ok := s.Chart(c.ID)
	if !ok {
		t.Fatal("chart should survive theme deletion")
	}
	if got.ThemeID != "" {
		t.Errorf("chart themeId = %q, want unlinked", got.ThemeID)
	}
}

func TestChartTimestamps(t *testing.T) {
	s := NewStateStore()
	c := s.AddChart(Chart{ProjectID: DefaultProjectID, ImageFileName: "a.png"})
	if c.CreatedAt.IsZero() || !c.CreatedAt.Equal(c.UpdatedAt) {
		t.Errorf("creation must stamp identical timestamps, got %v / %v", c.CreatedAt, c.UpdatedAt)
	}

	time.Sleep(5 * time.Millisecond)
	c.Symbol = "EURUSD"
	updated, err := s.UpdateChart(c)
	if err != nil {
		t.Fatalf("UpdateChart returned unexpected error: %v", err)
	}
	if !updated.UpdatedAt.After(updated.CreatedAt) {
		t.Errorf("update must stamp a new update timestamp, got %v / %v", updated.CreatedAt, updated.UpdatedAt)
	}
}

func TestUpdateChartPreservesFileName(t *testing.T) {
	s := NewStateStore()
	c := s.AddChart(Chart{ProjectID: DefaultProjectID, ImageFileName: "EURUSD_H1_win_12345678.png"})

	// Changing metadata that fed the naming template must not rename.
	c.Symbol = "GBPUSD"
	c.ImageFileName = "GBPUSD_renamed.png"
	updated, err := s.UpdateChart(c)
	if err != nil {
		t.Fatalf("UpdateChart returned unexpected error: %v", err)
	}
	if updated.ImageFileName != "EURUSD_H1_win_12345678.png" {
		t.Errorf("image file name = %q, want the original preserved", updated.ImageFileName)
	}
}

func TestAddSecondaryImage(t *testing.T) {
	s := NewStateStore()
	c := s.AddChart(Chart{ProjectID: DefaultProjectID, ImageFileName: "a.png"})
	if err := s.AddSecondaryImage(c.ID, "a_2.png"); err != nil {
		t.Fatalf("AddSecondaryImage returned unexpected error: %v", err)
	}
	got, _ := s.Chart(c.ID)
	if len(got.SecondaryImages) != 1 || got.SecondaryImages[0] != "a_2.png" {
		t.Errorf("secondary images = %v, want [a_2.png]", got.SecondaryImages)
	}
	if err := s.AddSecondaryImage("missing", "x.png"); err == nil {
		t.Error("AddSecondaryImage on unknown chart should fail")
	}
}

func TestSessionDayDerivation(t *testing.T) {
	s := NewStateStore()
	start := time.Date(2025, time.January, 15, 9, 30, 0, 0, time.UTC)
	sess := s.AddSession(TimerSession{ProjectID: DefaultProjectID, StartedAt: start, DurationSeconds: 90})
	if got := sess.Day.String(); got != "2025-01-15" {
		t.Errorf("session day = %q, want 2025-01-15", got)
	}
	if sess.ID == "" {
		t.Error("session should have been assigned an id")
	}
}

func TestSessionEdits(t *testing.T) {
	s := NewStateStore()
	sess := s.AddSession(NewTimerSession(DefaultProjectID, "", "EURUSD",
		time.Date(2025, time.January, 15, 9, 0, 0, 0, time.UTC),
		time.Date(2025, time.January, 15, 9, 30, 0, 0, time.UTC)))
	if sess.DurationSeconds != 1800 {
		t.Errorf("duration = %d, want 1800", sess.DurationSeconds)
	}

	sess.DurationSeconds = 1200
	if err := s.UpdateSession(sess); err != nil {
		t.Fatalf("UpdateSession returned unexpected error: %v", err)
	}
	if got := s.Sessions()[0].DurationSeconds; got != 1200 {
		t.Errorf("duration after edit = %d, want 1200", got)
	}

	if !s.DeleteSession(sess.ID) {
		t.Error("DeleteSession should report the deletion")
	}
	if len(s.Sessions()) != 0 {
		t.Error("sessions should be empty after deletion")
	}
}

func TestChangeFeed(t *testing.T) {
	s := NewStateStore()
	var seen []DocKind
	s.Subscribe(func(ch Change) { seen = append(seen, ch.Doc) })

	s.AddChart(Chart{ProjectID: DefaultProjectID, ImageFileName: "a.png"})
	s.PatchConfig(func(c *AppConfig) { c.Symbols = append(c.Symbols, "USDCHF") })
	p, _ := s.AddProject("Swing", "")
	if err := s.DeleteProject(p.ID); err != nil {
		t.Fatalf("DeleteProject returned unexpected error: %v", err)
	}

	want := []DocKind{DocChartIndex, DocConfig, DocProjects, DocProjects, DocThemes}
	if !slices.Equal(seen, want) {
		t.Errorf("change feed = %v, want %v", seen, want)
	}
}

func TestActiveFolderIndependence(t *testing.T) {
	s := NewStateStore()
	s.AddChart(Chart{ProjectID: DefaultProjectID, ImageFileName: "a.png"})

	f := s.AddFolder(StorageFolder{Name: "Main"})
	if err := s.SetActiveFolder(f.ID); err != nil {
		t.Fatalf("SetActiveFolder returned unexpected error: %v", err)
	}

	// Switching the active folder never mutates the collections; that
	// is only ever done by the sync engine's load pass.
	if len(s.Charts()) != 1 {
		t.Errorf("charts = %d after folder switch, want 1", len(s.Charts()))
	}
	if err := s.SetActiveFolder("nope"); err == nil {
		t.Error("activating an unknown folder should fail")
	}
}
