package chartlog

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/chartlog/chartlog/vdir"
)

// DefaultDebounce is the write-back coalescing window. Bursts of edits
// within the window collapse into a single write per document.
const DefaultDebounce = 500 * time.Millisecond

// SyncEngine mirrors the state store to the active storage folder and
// reconciles on-disk data back into the store when a folder is
// activated or reconnected.
//
// Document write-back is debounced per document: each mutation encodes
// the latest snapshot into the document's pending-write slot and
// resets its delay, so only the freshest snapshot is ever flushed
// (last-write-wins at document granularity). The target directory is
// captured at schedule time: a root switch while a write is pending
// lets the stale write complete against the old root.
//
// Chart binary assets and their sidecars are written immediately, not
// debounced: each represents a one-time creation event.
//
// Write failures never roll back in-memory state. They are logged,
// reported to the observer hook if one is set, and the operation is
// abandoned.
type SyncEngine struct {
	store *StateStore
	delay time.Duration

	mu      sync.Mutex
	pending map[DocKind]*pendingWrite

	observer func(op string, err error)
}

type pendingWrite struct {
	timer   *time.Timer
	target  vdir.Dir
	payload []byte
}

// NewSyncEngine creates an engine observing the store. A zero delay
// selects DefaultDebounce.
func NewSyncEngine(store *StateStore, delay time.Duration) *SyncEngine {
	if delay <= 0 {
		delay = DefaultDebounce
	}
	e := &SyncEngine{
		store:   store,
		delay:   delay,
		pending: make(map[DocKind]*pendingWrite),
	}
	store.Subscribe(e.onChange)
	return e
}

// SetObserver registers a hook invoked with the outcome of every
// background persistence operation, including the silent failures.
func (e *SyncEngine) SetObserver(fn func(op string, err error)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.observer = fn
}

func (e *SyncEngine) observe(op string, err error) {
	e.mu.Lock()
	fn := e.observer
	e.mu.Unlock()
	if fn != nil {
		fn(op, err)
	}
}

// onChange encodes the freshest snapshot of the mutated document and
// schedules its write against the currently active, connected root.
func (e *SyncEngine) onChange(ch Change) {
	folder, ok := e.store.ActiveFolder()
	if !ok || !folder.IsConnected || folder.Handle == nil {
		return
	}
	payload, err := e.encodeDoc(ch.Doc)
	if err != nil {
		log.Printf("encode-document name=%q err=%v", ch.Doc.Filename(), err)
		e.observe("encode "+ch.Doc.Filename(), err)
		return
	}
	e.schedule(ch.Doc, folder.Handle.Dir(), payload)
}

// encodeDoc captures the current content of one document.
func (e *SyncEngine) encodeDoc(doc DocKind) ([]byte, error) {
	switch doc {
	case DocConfig:
		return encodeDocument(e.store.Config())
	case DocProjects:
		return encodeDocument(e.store.Projects())
	case DocThemes:
		return encodeDocument(e.store.Themes())
	case DocTimerSessions:
		return encodeDocument(e.store.Sessions())
	case DocChartIndex:
		// Thumbnails are excluded by the Chart marshalling itself.
		return encodeDocument(e.store.Charts())
	default:
		return nil, fmt.Errorf("unknown document kind %d", doc)
	}
}

// schedule installs (or refreshes) the document's pending-write slot.
// A newer payload replaces the older one and restarts the delay.
func (e *SyncEngine) schedule(doc DocKind, target vdir.Dir, payload []byte) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if slot, ok := e.pending[doc]; ok {
		slot.timer.Stop()
		slot.target = target
		slot.payload = payload
		slot.timer = time.AfterFunc(e.delay, func() { e.drain(doc) })
		return
	}
	slot := &pendingWrite{target: target, payload: payload}
	slot.timer = time.AfterFunc(e.delay, func() { e.drain(doc) })
	e.pending[doc] = slot
}

// drain writes and clears the document's pending slot, if any.
func (e *SyncEngine) drain(doc DocKind) {
	e.mu.Lock()
	slot, ok := e.pending[doc]
	if ok {
		slot.timer.Stop()
		delete(e.pending, doc)
	}
	e.mu.Unlock()
	if !ok {
		return
	}
	name := doc.Filename()
	err := slot.target.WriteFile(name, slot.payload)
	if err != nil {
		// Fire-and-forget: the in-memory state is unaffected, the most
		// recent unsynced change may be lost.
		log.Printf("write-document name=%q err=%v", name, err)
	}
	e.observe("write "+name, err)
}

// Flush drains every pending write immediately.
func (e *SyncEngine) Flush() {
	e.mu.Lock()
	docs := make([]DocKind, 0, len(e.pending))
	for doc := range e.pending {
		docs = append(docs, doc)
	}
	e.mu.Unlock()
	for _, doc := range docs {
		e.drain(doc)
	}
}

// Close flushes pending writes and stops the engine.
func (e *SyncEngine) Close() {
	e.Flush()
}

// --- Folder lifecycle ---

// CheckFolders probes permission on every registered folder and
// records the connection state. It is run at startup for every
// previously remembered root.
func (e *SyncEngine) CheckFolders() {
	for _, f := range e.store.Folders() {
		connected := f.Handle != nil && f.Handle.QueryPermission() == vdir.Granted
		e.store.SetFolderConnected(f.ID, connected)
	}
}

// Activate repoints the active folder and, when it is connected,
// performs the load pass. Activating a disconnected folder is valid:
// its data cannot load until an explicit reconnect.
func (e *SyncEngine) Activate(folderID string) error {
	if err := e.store.SetActiveFolder(folderID); err != nil {
		return err
	}
	folder, ok := e.store.Folder(folderID)
	if !ok || !folder.IsConnected {
		return nil
	}
	return e.LoadActive()
}

// Reconnect re-requests permission on a folder. Browsers require a
// direct user gesture for this, so it is never called implicitly. On
// success the folder becomes connected again, and if it is the active
// folder its contents are loaded.
func (e *SyncEngine) Reconnect(folderID string) error {
	folder, ok := e.store.Folder(folderID)
	if !ok {
		return fmt.Errorf("unknown storage folder %q", folderID)
	}
	if folder.Handle == nil {
		return fmt.Errorf("folder %q has no directory handle: %w", folder.Name, vdir.ErrPermissionDenied)
	}
	if perm := folder.Handle.RequestPermission(); perm != vdir.Granted {
		e.store.SetFolderConnected(folderID, false)
		return fmt.Errorf("folder %q: %w", folder.Name, vdir.ErrPermissionDenied)
	}
	e.store.SetFolderConnected(folderID, true)
	if e.store.ActiveFolderID() == folderID {
		return e.LoadActive()
	}
	return nil
}

// LoadActive reads the active root's documents and fully replaces the
// in-memory collections with its contents. Missing or corrupt
// documents load as defaults; a missing or empty chart index falls
// back to the recursive sidecar scan.
func (e *SyncEngine) LoadActive() error {
	folder, ok := e.store.ActiveFolder()
	if !ok {
		return fmt.Errorf("no active storage folder")
	}
	if !folder.IsConnected || folder.Handle == nil {
		return fmt.Errorf("folder %q is disconnected: %w", folder.Name, vdir.ErrPermissionDenied)
	}
	snap := loadSnapshot(folder.Handle.Dir())
	e.store.replaceCollections(snap)
	log.Printf("load-root folder=%q charts=%d projects=%d themes=%d sessions=%d",
		folder.Name, len(snap.Charts), len(snap.Projects), len(snap.Themes), len(snap.Sessions))
	return nil
}

// --- Chart assets ---

// activeDir returns the active connected root directory.
func (e *SyncEngine) activeDir() (vdir.Dir, error) {
	folder, ok := e.store.ActiveFolder()
	if !ok {
		return vdir.Dir{}, fmt.Errorf("no active storage folder")
	}
	if !folder.IsConnected || folder.Handle == nil {
		return vdir.Dir{}, fmt.Errorf("folder %q is disconnected: %w", folder.Name, vdir.ErrPermissionDenied)
	}
	return folder.Handle.Dir(), nil
}

// chartDirNames resolves the folder segments for a chart's assets.
// Unknown references resolve to empty, which ResolveChartDir defaults.
func (e *SyncEngine) chartDirNames(c Chart) (projectName, themeName string) {
	for _, p := range e.store.Projects() {
		if p.ID == c.ProjectID {
			projectName = p.Name
			break
		}
	}
	if c.ThemeID != "" {
		for _, t := range e.store.Themes() {
			if t.ID == c.ThemeID {
				themeName = t.Name
				break
			}
		}
	}
	return projectName, themeName
}

// CreateChart assigns the chart its id and image file name, inserts it
// into the store, and immediately writes the image and its metadata
// sidecar to the active root. The id and file name are never
// regenerated afterwards, even if the metadata that fed the template
// changes.
//
// The image is written first, then the sidecar; a failure in between
// leaves an orphaned image behind, which the sidecar-only scan ignores.
func (e *SyncEngine) CreateChart(c Chart, image []byte, ext string) (Chart, error) {
	if c.ID == "" {
		c.ID = NewID()
	}
	if c.ProjectID == "" {
		c.ProjectID = DefaultProjectID
	}
	projectName, themeName := e.chartDirNames(c)
	if c.ImageFileName == "" {
		tmpl := e.store.Config().FileNameTemplate
		c.ImageFileName = BuildFileName(tmpl, TokensFor(c, projectName, themeName), c.ID, ext)
	}
	c = e.store.AddChart(c)

	root, err := e.activeDir()
	if err != nil {
		log.Printf("save-chart-assets chart=%q err=%v", c.ID, err)
		e.observe("save assets "+c.ImageFileName, err)
		return c, err
	}
	if image != nil {
		if err := SaveImage(root, c.ImageFileName, image, projectName, themeName); err != nil {
			log.Printf("save-chart-image chart=%q err=%v", c.ID, err)
			e.observe("save image "+c.ImageFileName, err)
			return c, err
		}
	}
	if err := SaveMetadata(root, c.ImageFileName, c, projectName, themeName); err != nil {
		log.Printf("save-chart-sidecar chart=%q err=%v", c.ID, err)
		e.observe("save sidecar "+c.ImageFileName, err)
		return c, err
	}
	return c, nil
}

// UpdateChart updates the stored chart and refreshes its sidecar.
func (e *SyncEngine) UpdateChart(c Chart) (Chart, error) {
	c, err := e.store.UpdateChart(c)
	if err != nil {
		return Chart{}, err
	}
	root, err := e.activeDir()
	if err != nil {
		return c, err
	}
	projectName, themeName := e.chartDirNames(c)
	return c, SaveMetadata(root, c.ImageFileName, c, projectName, themeName)
}

// AddSecondaryImage records and immediately writes an extra image for
// a chart, then refreshes the chart's sidecar.
func (e *SyncEngine) AddSecondaryImage(chartID, fileName string, image []byte) error {
	if err := e.store.AddSecondaryImage(chartID, fileName); err != nil {
		return err
	}
	c, ok := e.store.Chart(chartID)
	if !ok {
		return fmt.Errorf("unknown chart %q", chartID)
	}
	root, err := e.activeDir()
	if err != nil {
		return err
	}
	projectName, themeName := e.chartDirNames(c)
	if err := SaveImage(root, fileName, image, projectName, themeName); err != nil {
		return err
	}
	return SaveMetadata(root, c.ImageFileName, c, projectName, themeName)
}

// DeleteChart removes the chart from the store and best-effort deletes
// its primary asset pair and every secondary image it owns.
func (e *SyncEngine) DeleteChart(id string) error {
	c, ok := e.store.DeleteChart(id)
	if !ok {
		return fmt.Errorf("unknown chart %q", id)
	}
	root, err := e.activeDir()
	if err != nil {
		log.Printf("delete-chart-assets chart=%q err=%v", id, err)
		return nil
	}
	projectName, themeName := e.chartDirNames(c)
	if err := DeleteAssets(root, c.ImageFileName, projectName, themeName); err != nil {
		log.Printf("delete-chart-assets chart=%q err=%v", id, err)
	}
	for _, name := range c.SecondaryImages {
		if err := DeleteAssets(root, name, projectName, themeName); err != nil {
			log.Printf("delete-chart-assets chart=%q image=%q err=%v", id, name, err)
		}
	}
	return nil
}

// ReadChartImage reads a chart's image through the nested-then-flat
// fallback. A nil result with nil error means no preview is available.
func (e *SyncEngine) ReadChartImage(c Chart) ([]byte, error) {
	root, err := e.activeDir()
	if err != nil {
		return nil, err
	}
	projectName, themeName := e.chartDirNames(c)
	return ReadImage(root, c.ImageFileName, projectName, themeName)
}
