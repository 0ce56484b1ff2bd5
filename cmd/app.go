// Package cmd implements the tj CLI application over the journal core.
package cmd

import (
	"flag"
	"fmt"
	"log"

	"github.com/chartlog/chartlog"
	"github.com/chartlog/chartlog/registry"
	"github.com/chartlog/chartlog/vdir"
	"github.com/google/subcommands"
)

// Commands is the full command set, registered by the main package.
var Commands = []subcommands.Command{
	&linkCmd{},
	&foldersCmd{},
	&activateCmd{},
	&reconnectCmd{},
	&unlinkCmd{},

	&addCmd{},
	&chartsCmd{},
	&showCmd{},

	&projectsCmd{},
	&themesCmd{},
	&timerCmd{},

	&configCmd{},
	&summaryCmd{},
}

// As a CLI application, it has a very short lived lifecycle, so it is ok to use global variables.

var registryPath = flag.String("registry", "", "Path to the registry database (defaults to the user config dir)")

// app bundles the open registry, the state store and the sync engine
// for the lifetime of one command.
type app struct {
	reg    *registry.Store
	store  *chartlog.StateStore
	engine *chartlog.SyncEngine
}

// openApp opens the registry, restores the remembered folders as roots
// in the prompt state, probes them and loads the active folder if it is
// still accessible.
func openApp() (*app, error) {
	path := *registryPath
	if path == "" {
		var err error
		path, err = registry.DefaultPath()
		if err != nil {
			return nil, fmt.Errorf("locate registry: %w", err)
		}
	}
	reg, err := registry.Open(path)
	if err != nil {
		return nil, err
	}
	folders, err := reg.LoadFolders()
	if err != nil {
		reg.Close()
		return nil, err
	}

	store := chartlog.NewStateStore()
	for _, f := range folders {
		store.AddFolder(chartlog.StorageFolder{ID: f.ID, Name: f.Name, Handle: vdir.NewRoot(f.Path)})
	}
	engine := chartlog.NewSyncEngine(store, 0)
	engine.CheckFolders()

	if active, err := reg.Flag(registry.FlagActiveFolder); err == nil && active != "" {
		if _, ok := store.Folder(active); ok {
			if err := engine.Activate(active); err != nil {
				log.Printf("activate-folder id=%q err=%v", active, err)
			}
		}
	}
	return &app{reg: reg, store: store, engine: engine}, nil
}

// Close flushes pending writes and persists the folder set and the
// device-local flags back into the registry.
func (a *app) Close() error {
	a.engine.Close()

	folders := []registry.Folder{}
	for _, f := range a.store.Folders() {
		path := ""
		if f.Handle != nil {
			path = f.Handle.Path()
		}
		folders = append(folders, registry.Folder{ID: f.ID, Name: f.Name, Path: path})
	}
	if err := a.reg.SaveFolders(folders); err != nil {
		a.reg.Close()
		return err
	}
	if err := a.reg.SetFlag(registry.FlagActiveFolder, a.store.ActiveFolderID()); err != nil {
		a.reg.Close()
		return err
	}
	if len(folders) > 0 {
		if err := a.reg.SetFlag(registry.FlagHasLinked, "true"); err != nil {
			a.reg.Close()
			return err
		}
	}
	return a.reg.Close()
}
