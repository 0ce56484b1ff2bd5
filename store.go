package chartlog

import (
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/chartlog/chartlog/date"
)

// DocKind identifies one of the root JSON documents.
type DocKind int

const (
	DocConfig DocKind = iota
	DocProjects
	DocThemes
	DocTimerSessions
	DocChartIndex
)

// Filename returns the document's file name inside a storage root.
func (k DocKind) Filename() string {
	switch k {
	case DocConfig:
		return ConfigFilename
	case DocProjects:
		return ProjectsFilename
	case DocThemes:
		return ThemesFilename
	case DocTimerSessions:
		return TimerSessionsFilename
	case DocChartIndex:
		return ChartsIndexFilename
	default:
		return ""
	}
}

// Change notifies subscribers that a document's backing collection
// was mutated.
type Change struct {
	Doc DocKind
}

// StateStore is the authoritative in-memory representation of the
// whole application. It exclusively owns all entity collections;
// every mutation goes through one of its operations, which keep the
// ordering invariants and emit a Change for each affected document.
//
// Projects and themes are always kept in case-sensitive alphabetical
// order by name. Callers may depend on that ordering.
type StateStore struct {
	mu       sync.Mutex
	config   AppConfig
	projects []Project
	themes   []Theme
	sessions []TimerSession
	charts   []Chart

	folders        []StorageFolder
	activeFolderID string

	subscribers []func(Change)
}

// NewStateStore returns a store holding the compiled-in defaults: the
// default configuration and the reserved project.
func NewStateStore() *StateStore {
	return &StateStore{
		config:   DefaultConfig(),
		projects: []Project{DefaultProject()},
		themes:   []Theme{},
		sessions: []TimerSession{},
		charts:   []Chart{},
	}
}

// Subscribe registers a change observer. Observers are invoked
// synchronously after the mutation completes, outside the store lock.
func (s *StateStore) Subscribe(fn func(Change)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers = append(s.subscribers, fn)
}

func (s *StateStore) notify(docs ...DocKind) {
	s.mu.Lock()
	subs := slices.Clone(s.subscribers)
	s.mu.Unlock()
	for _, doc := range docs {
		for _, fn := range subs {
			fn(Change{Doc: doc})
		}
	}
}

func sortProjects(projects []Project) {
	sort.SliceStable(projects, func(i, j int) bool { return projects[i].Name < projects[j].Name })
}

func sortThemes(themes []Theme) {
	sort.SliceStable(themes, func(i, j int) bool { return themes[i].Name < themes[j].Name })
}

// --- Accessors ---

// Config returns the current configuration.
func (s *StateStore) Config() AppConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.config
}

// Projects returns the projects in display order.
func (s *StateStore) Projects() []Project {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.projects)
}

// Themes returns the themes in display order.
func (s *StateStore) Themes() []Theme {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.themes)
}

// Sessions returns all timer sessions.
func (s *StateStore) Sessions() []TimerSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.sessions)
}

// Charts returns all charts.
func (s *StateStore) Charts() []Chart {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.charts)
}

// Chart returns the chart with the given id.
func (s *StateStore) Chart(id string) (Chart, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.charts {
		if c.ID == id {
			return c, true
		}
	}
	return Chart{}, false
}

// ProjectName resolves a project id to its display name. Dangling
// references resolve to "Unknown".
func (s *StateStore) ProjectName(id string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.projects {
		if p.ID == id {
			return p.Name
		}
	}
	return "Unknown"
}

// ThemeName resolves a theme id to its display name, or "" when the
// chart has no theme. Dangling references resolve to "Unknown".
func (s *StateStore) ThemeName(id string) string {
	if id == "" {
		return ""
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.themes {
		if t.ID == id {
			return t.Name
		}
	}
	return "Unknown"
}

// --- Chart mutations ---

// AddChart inserts a chart. A missing id is assigned; creation and
// update timestamps are stamped identically. The image file name must
// already be assigned by the caller and is never regenerated.
func (s *StateStore) AddChart(c Chart) Chart {
	now := time.Now().UTC()
	if c.ID == "" {
		c.ID = NewID()
	}
	if c.ProjectID == "" {
		c.ProjectID = DefaultProjectID
	}
	c.CreatedAt = now
	c.UpdatedAt = now
	s.mu.Lock()
	s.charts = append(s.charts, c)
	s.mu.Unlock()
	s.notify(DocChartIndex)
	return c
}

// UpdateChart replaces the stored chart with the same id. The id,
// image file name and creation timestamp are immutable; the update
// timestamp is stamped.
func (s *StateStore) UpdateChart(c Chart) (Chart, error) {
	s.mu.Lock()
	idx := slices.IndexFunc(s.charts, func(x Chart) bool { return x.ID == c.ID })
	if idx < 0 {
		s.mu.Unlock()
		return Chart{}, fmt.Errorf("unknown chart %q", c.ID)
	}
	prev := s.charts[idx]
	c.ImageFileName = prev.ImageFileName
	c.CreatedAt = prev.CreatedAt
	c.UpdatedAt = time.Now().UTC()
	s.charts[idx] = c
	s.mu.Unlock()
	s.notify(DocChartIndex)
	return c, nil
}

// DeleteChart removes a chart and returns it. The chart's assets are
// not touched here; the sync engine owns their deletion.
func (s *StateStore) DeleteChart(id string) (Chart, bool) {
	s.mu.Lock()
	idx := slices.IndexFunc(s.charts, func(x Chart) bool { return x.ID == id })
	if idx < 0 {
		s.mu.Unlock()
		return Chart{}, false
	}
	c := s.charts[idx]
	s.charts = slices.Delete(s.charts, idx, idx+1)
	s.mu.Unlock()
	s.notify(DocChartIndex)
	return c, true
}

// AddSecondaryImage records an extra image file name on a chart. The
// chart owns secondary images and is responsible for their deletion.
func (s *StateStore) AddSecondaryImage(chartID, fileName string) error {
	s.mu.Lock()
	idx := slices.IndexFunc(s.charts, func(x Chart) bool { return x.ID == chartID })
	if idx < 0 {
		s.mu.Unlock()
		return fmt.Errorf("unknown chart %q", chartID)
	}
	s.charts[idx].SecondaryImages = append(s.charts[idx].SecondaryImages, fileName)
	s.charts[idx].UpdatedAt = time.Now().UTC()
	s.mu.Unlock()
	s.notify(DocChartIndex)
	return nil
}

// --- Project mutations ---

// AddProject creates a project. Names are unique display labels.
func (s *StateStore) AddProject(name, description string) (Project, error) {
	p := Project{ID: NewID(), Name: name, Description: description, CreatedAt: time.Now().UTC()}
	s.mu.Lock()
	for _, x := range s.projects {
		if x.Name == name {
			s.mu.Unlock()
			return Project{}, fmt.Errorf("project %q already exists", name)
		}
	}
	s.projects = append(s.projects, p)
	sortProjects(s.projects)
	s.mu.Unlock()
	s.notify(DocProjects)
	return p, nil
}

// UpdateProject replaces the stored project with the same id and
// restores the alphabetical ordering.
func (s *StateStore) UpdateProject(p Project) error {
	s.mu.Lock()
	idx := slices.IndexFunc(s.projects, func(x Project) bool { return x.ID == p.ID })
	if idx < 0 {
		s.mu.Unlock()
		return fmt.Errorf("unknown project %q", p.ID)
	}
	p.CreatedAt = s.projects[idx].CreatedAt
	s.projects[idx] = p
	sortProjects(s.projects)
	s.mu.Unlock()
	s.notify(DocProjects)
	return nil
}

// DeleteProject removes a project and every theme it owns. Charts
// referencing the project are left untouched: the dangling projectId
// is tolerated and resolved defensively at render time as "Unknown".
// The reserved project cannot be deleted.
func (s *StateStore) DeleteProject(id string) error {
	if id == DefaultProjectID {
		return fmt.Errorf("the %q project cannot be deleted", DefaultProjectName)
	}
	s.mu.Lock()
	idx := slices.IndexFunc(s.projects, func(x Project) bool { return x.ID == id })
	if idx < 0 {
		s.mu.Unlock()
		return fmt.Errorf("unknown project %q", id)
	}
	s.projects = slices.Delete(s.projects, idx, idx+1)
	s.themes = slices.DeleteFunc(s.themes, func(t Theme) bool { return t.ProjectID == id })
	s.mu.Unlock()
	s.notify(DocProjects, DocThemes)
	return nil
}

// --- Theme mutations ---

// AddTheme creates a theme owned by a project.
func (s *StateStore) AddTheme(projectID, name, description string) (Theme, error) {
	s.mu.Lock()
	if !hasProject(s.projects, projectID) {
		s.mu.Unlock()
		return Theme{}, fmt.Errorf("unknown project %q", projectID)
	}
	t := Theme{ID: NewID(), ProjectID: projectID, Name: name, Description: description, CreatedAt: time.Now().UTC()}
	s.themes = append(s.themes, t)
	sortThemes(s.themes)
	s.mu.Unlock()
	s.notify(DocThemes)
	return t, nil
}

// UpdateTheme replaces the stored theme with the same id.
func (s *StateStore) UpdateTheme(t Theme) error {
	s.mu.Lock()
	idx := slices.IndexFunc(s.themes, func(x Theme) bool { return x.ID == t.ID })
	if idx < 0 {
		s.mu.Unlock()
		return fmt.Errorf("unknown theme %q", t.ID)
	}
	t.CreatedAt = s.themes[idx].CreatedAt
	s.themes[idx] = t
	sortThemes(s.themes)
	s.mu.Unlock()
	s.notify(DocThemes)
	return nil
}

// DeleteTheme removes a theme and unlinks it from any chart that
// referenced it. The charts themselves are never deleted.
func (s *StateStore) DeleteTheme(id string) error {
	s.mu.Lock()
	idx := slices.IndexFunc(s.themes, func(x Theme) bool { return x.ID == id })
	if idx < 0 {
		s.mu.Unlock()
		return fmt.Errorf("unknown theme %q", id)
	}
	s.themes = slices.Delete(s.themes, idx, idx+1)
	unlinked := false
	for i := range s.charts {
		if s.charts[i].ThemeID == id {
			s.charts[i].ThemeID = ""
			s.charts[i].UpdatedAt = time.Now().UTC()
			unlinked = true
		}
	}
	s.mu.Unlock()
	if unlinked {
		s.notify(DocThemes, DocChartIndex)
	} else {
		s.notify(DocThemes)
	}
	return nil
}

// --- Timer session mutations ---

// AddSession records a stopped stopwatch run.
func (s *StateStore) AddSession(sess TimerSession) TimerSession {
	if sess.ID == "" {
		sess.ID = NewID()
	}
	if sess.Day.IsZero() {
		sess.Day = date.Of(sess.StartedAt)
	}
	s.mu.Lock()
	s.sessions = append(s.sessions, sess)
	s.mu.Unlock()
	s.notify(DocTimerSessions)
	return sess
}

// UpdateSession replaces the stored session with the same id. Duration
// and time fields may be corrected after the fact.
func (s *StateStore) UpdateSession(sess TimerSession) error {
	s.mu.Lock()
	idx := slices.IndexFunc(s.sessions, func(x TimerSession) bool { return x.ID == sess.ID })
	if idx < 0 {
		s.mu.Unlock()
		return fmt.Errorf("unknown timer session %q", sess.ID)
	}
	s.sessions[idx] = sess
	s.mu.Unlock()
	s.notify(DocTimerSessions)
	return nil
}

// DeleteSession removes a session. It has no cascade effects.
func (s *StateStore) DeleteSession(id string) bool {
	s.mu.Lock()
	before := len(s.sessions)
	s.sessions = slices.DeleteFunc(s.sessions, func(x TimerSession) bool { return x.ID == id })
	deleted := len(s.sessions) != before
	s.mu.Unlock()
	if deleted {
		s.notify(DocTimerSessions)
	}
	return deleted
}

// --- Config mutations ---

// PatchConfig applies fn to a copy of the configuration and installs
// the result.
func (s *StateStore) PatchConfig(fn func(*AppConfig)) AppConfig {
	s.mu.Lock()
	cfg := s.config
	fn(&cfg)
	s.config = cfg
	s.mu.Unlock()
	s.notify(DocConfig)
	return cfg
}

// --- Storage folders ---

// Folders returns the linked storage folders.
func (s *StateStore) Folders() []StorageFolder {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.folders)
}

// Folder returns the folder with the given id.
func (s *StateStore) Folder(id string) (StorageFolder, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range s.folders {
		if f.ID == id {
			return f, true
		}
	}
	return StorageFolder{}, false
}

// ActiveFolder returns the folder activeFolderId points at, if any.
// The active folder may be disconnected; that is a valid state, its
// data simply cannot load until reconnected.
func (s *StateStore) ActiveFolder() (StorageFolder, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range s.folders {
		if f.ID == s.activeFolderID {
			return f, true
		}
	}
	return StorageFolder{}, false
}

// ActiveFolderID returns the current active folder id, possibly empty.
func (s *StateStore) ActiveFolderID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeFolderID
}

// AddFolder registers a storage folder.
func (s *StateStore) AddFolder(f StorageFolder) StorageFolder {
	if f.ID == "" {
		f.ID = NewID()
	}
	s.mu.Lock()
	s.folders = append(s.folders, f)
	s.mu.Unlock()
	return f
}

// RemoveFolder forgets a folder. The directory itself is untouched.
func (s *StateStore) RemoveFolder(id string) bool {
	s.mu.Lock()
	before := len(s.folders)
	s.folders = slices.DeleteFunc(s.folders, func(f StorageFolder) bool { return f.ID == id })
	removed := len(s.folders) != before
	if s.activeFolderID == id {
		s.activeFolderID = ""
	}
	s.mu.Unlock()
	return removed
}

// SetActiveFolder repoints activeFolderId. It never mutates the entity
// collections directly; reloading them is the sync engine's load pass.
func (s *StateStore) SetActiveFolder(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id != "" && !slices.ContainsFunc(s.folders, func(f StorageFolder) bool { return f.ID == id }) {
		return fmt.Errorf("unknown storage folder %q", id)
	}
	s.activeFolderID = id
	return nil
}

// SetFolderConnected records the outcome of a permission probe.
func (s *StateStore) SetFolderConnected(id string, connected bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.folders {
		if s.folders[i].ID == id {
			s.folders[i].IsConnected = connected
			return
		}
	}
}

// replaceCollections installs a loaded snapshot, fully replacing the
// chart, project, theme, session and config state. It does not emit
// changes: a load must not re-trigger write-back of what was just read.
func (s *StateStore) replaceCollections(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.config = snap.Config
	s.projects = slices.Clone(snap.Projects)
	s.themes = slices.Clone(snap.Themes)
	s.sessions = slices.Clone(snap.Sessions)
	s.charts = slices.Clone(snap.Charts)
}

// snapshot captures the current persistable state.
func (s *StateStore) snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Config:   s.config,
		Projects: slices.Clone(s.projects),
		Themes:   slices.Clone(s.themes),
		Sessions: slices.Clone(s.sessions),
		Charts:   slices.Clone(s.charts),
	}
}
