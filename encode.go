package chartlog

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/chartlog/chartlog/vdir"
)

// This file contains code to persist the journal state in a storage
// root, in a way that is still human-readable and git-friendly.
//
// The overall strategy is one JSON document per collection at the root
// of the folder, plus a charts/ tree for binary assets and their
// metadata sidecars:
//
//	config.json          — AppConfig
//	projects.json        — []Project
//	themes.json          — []Theme
//	timer-sessions.json  — []TimerSession
//	charts-index.json    — []Chart (minus thumbnails)
//	charts/{project}/{theme}/{image}, {image minus ext}.json

// Document file names inside a storage root.
const (
	ConfigFilename        = "config.json"
	ProjectsFilename      = "projects.json"
	ThemesFilename        = "themes.json"
	TimerSessionsFilename = "timer-sessions.json"
	ChartsIndexFilename   = "charts-index.json"
	ChartsDirName         = "charts"
)

// ErrCorrupt reports a document that exists but fails to parse. It is
// treated exactly like absence: the caller falls back to defaults.
var ErrCorrupt = errors.New("corrupt document")

// encodeDocument marshals v into indented JSON with a trailing newline.
func encodeDocument(v any) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("persist error: cannot marshal document: %w", err)
	}
	return append(data, '\n'), nil
}

// writeDocument persists one JSON document at the root of the folder.
func writeDocument(root vdir.Dir, name string, v any) error {
	data, err := encodeDocument(v)
	if err != nil {
		return err
	}
	if err := root.WriteFile(name, data); err != nil {
		return fmt.Errorf("persist error: cannot write %q: %w", name, err)
	}
	return nil
}

// readDocument reads one JSON document into v. Absence surfaces as
// vdir.ErrNotFound and an unparseable body as ErrCorrupt; both are
// non-fatal to callers, which substitute defaults.
func readDocument(root vdir.Dir, name string, v any) error {
	data, err := root.ReadFile(name)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("load error: %q: %w: %v", name, ErrCorrupt, err)
	}
	return nil
}

// Snapshot is the full reloadable content of one storage root.
type Snapshot struct {
	Config   AppConfig
	Projects []Project
	Themes   []Theme
	Sessions []TimerSession
	Charts   []Chart
}

// recoverable reports whether a document read failure should be
// silently replaced by defaults: the document is missing, corrupt, or
// unreadable for transient reasons. Only the error gets logged.
func recoverable(name string, err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, vdir.ErrNotFound) || errors.Is(err, ErrCorrupt) {
		return true
	}
	log.Printf("load-document name=%q err=%v", name, err)
	return true
}

// loadSnapshot reads the five root documents, substituting compiled-in
// defaults for anything absent or corrupt. When the chart index is
// missing or empty, it falls back to the recursive sidecar scan.
func loadSnapshot(root vdir.Dir) Snapshot {
	var snap Snapshot

	snap.Config = DefaultConfig()
	var cfg AppConfig
	if err := readDocument(root, ConfigFilename, &cfg); err == nil {
		snap.Config = cfg
	} else {
		recoverable(ConfigFilename, err)
	}

	if err := readDocument(root, ProjectsFilename, &snap.Projects); err != nil {
		recoverable(ProjectsFilename, err)
		snap.Projects = nil
	}
	if !hasProject(snap.Projects, DefaultProjectID) {
		snap.Projects = append(snap.Projects, DefaultProject())
	}

	if err := readDocument(root, ThemesFilename, &snap.Themes); err != nil {
		recoverable(ThemesFilename, err)
		snap.Themes = nil
	}
	if snap.Themes == nil {
		snap.Themes = []Theme{}
	}

	if err := readDocument(root, TimerSessionsFilename, &snap.Sessions); err != nil {
		recoverable(TimerSessionsFilename, err)
		snap.Sessions = nil
	}
	if snap.Sessions == nil {
		snap.Sessions = []TimerSession{}
	}

	if err := readDocument(root, ChartsIndexFilename, &snap.Charts); err != nil {
		recoverable(ChartsIndexFilename, err)
		snap.Charts = nil
	}
	if len(snap.Charts) == 0 {
		// No usable index: rebuild from the sidecar tree.
		charts, err := ScanAllMetadata(root)
		if err != nil {
			log.Printf("scan-metadata err=%v", err)
		}
		snap.Charts = charts
	}
	if snap.Charts == nil {
		snap.Charts = []Chart{}
	}

	sortProjects(snap.Projects)
	sortThemes(snap.Themes)
	return snap
}

func hasProject(projects []Project, id string) bool {
	for _, p := range projects {
		if p.ID == id {
			return true
		}
	}
	return false
}
