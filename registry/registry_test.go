package registry

import "testing"

func open(t *testing.T) *Store {
	t.Helper()
	s, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory returned unexpected error: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveLoadFolders(t *testing.T) {
	s := open(t)

	folders := []Folder{
		{ID: "a", Name: "Main", Path: "/data/main"},
		{ID: "b", Name: "Backtest", Path: "/data/backtest"},
	}
	if err := s.SaveFolders(folders); err != nil {
		t.Fatalf("SaveFolders returned unexpected error: %v", err)
	}

	got, err := s.LoadFolders()
	if err != nil {
		t.Fatalf("LoadFolders returned unexpected error: %v", err)
	}
	if len(got) != 2 || got[0].ID != "a" || got[1].Path != "/data/backtest" {
		t.Errorf("LoadFolders = %+v, want the saved folders in order", got)
	}
}

func TestSaveFoldersReplacesSet(t *testing.T) {
	s := open(t)

	if err := s.SaveFolders([]Folder{{ID: "a", Name: "Main", Path: "/a"}}); err != nil {
		t.Fatalf("SaveFolders returned unexpected error: %v", err)
	}
	// Saving a different set must fully replace the previous one.
	if err := s.SaveFolders([]Folder{{ID: "b", Name: "Other", Path: "/b"}}); err != nil {
		t.Fatalf("second SaveFolders returned unexpected error: %v", err)
	}
	got, err := s.LoadFolders()
	if err != nil {
		t.Fatalf("LoadFolders returned unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].ID != "b" {
		t.Errorf("LoadFolders = %+v, want only folder b", got)
	}
}

func TestClearFolders(t *testing.T) {
	s := open(t)
	if err := s.SaveFolders([]Folder{{ID: "a", Name: "Main", Path: "/a"}}); err != nil {
		t.Fatalf("SaveFolders returned unexpected error: %v", err)
	}
	if err := s.ClearFolders(); err != nil {
		t.Fatalf("ClearFolders returned unexpected error: %v", err)
	}
	got, err := s.LoadFolders()
	if err != nil {
		t.Fatalf("LoadFolders returned unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("LoadFolders after clear = %+v, want empty", got)
	}
}

func TestFlags(t *testing.T) {
	s := open(t)

	if v, err := s.Flag(FlagActiveFolder); err != nil || v != "" {
		t.Errorf("unset flag = (%q, %v), want (\"\", nil)", v, err)
	}
	if err := s.SetFlag(FlagActiveFolder, "abc"); err != nil {
		t.Fatalf("SetFlag returned unexpected error: %v", err)
	}
	if err := s.SetFlag(FlagActiveFolder, "def"); err != nil {
		t.Fatalf("SetFlag upsert returned unexpected error: %v", err)
	}
	if v, err := s.Flag(FlagActiveFolder); err != nil || v != "def" {
		t.Errorf("flag = (%q, %v), want (\"def\", nil)", v, err)
	}
}
