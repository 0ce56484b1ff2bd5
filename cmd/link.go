package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/chartlog/chartlog"
	"github.com/chartlog/chartlog/vdir"
	"github.com/google/subcommands"
)

// linkCmd holds the flags for the 'link' subcommand.
type linkCmd struct {
	name string
}

func (*linkCmd) Name() string     { return "link" }
func (*linkCmd) Synopsis() string { return "link a local directory as a storage folder" }
func (*linkCmd) Usage() string {
	return `tj link [-name <label>] <directory>

  Links a local directory as a storage folder, remembers it in the
  device registry and makes it the active folder. A fresh directory is
  initialized with the default project and configuration.

Usage Examples:
# Link the current directory under its base name.
$ tj link .

`
}

func (c *linkCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.name, "name", "", "Display label for the folder (defaults to the directory base name)")
}

func (c *linkCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Error: link takes exactly one directory argument.")
		return subcommands.ExitUsageError
	}
	dir, err := filepath.Abs(f.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}

	app, err := openApp()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	defer app.Close()

	// Passing the directory on the command line is the user gesture.
	gateway := vdir.Gateway{Pick: func() (string, error) { return dir, nil }}
	root, err := gateway.RequestRoot()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}

	name := c.name
	if name == "" {
		name = filepath.Base(dir)
	}
	folder := app.store.AddFolder(chartlog.StorageFolder{Name: name, Handle: root, IsConnected: true})
	if err := app.engine.Activate(folder.ID); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}

	fmt.Printf("Linked %q as folder %s (active)\n", dir, folder.ID)
	return subcommands.ExitSuccess
}

// foldersCmd holds the flags for the 'folders' subcommand.
type foldersCmd struct{}

func (*foldersCmd) Name() string     { return "folders" }
func (*foldersCmd) Synopsis() string { return "list the linked storage folders" }
func (*foldersCmd) Usage() string {
	return `tj folders

  Lists the linked storage folders with their connection state. The
  active folder is marked with a star.
`
}
func (*foldersCmd) SetFlags(*flag.FlagSet) {}

func (*foldersCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	app, err := openApp()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	defer app.Close()

	folders := app.store.Folders()
	if len(folders) == 0 {
		fmt.Println("No storage folder linked yet. Use 'tj link <directory>'.")
		return subcommands.ExitSuccess
	}
	active := app.store.ActiveFolderID()
	for _, f := range folders {
		marker := " "
		if f.ID == active {
			marker = "*"
		}
		state := "disconnected"
		if f.IsConnected {
			state = "connected"
		}
		path := ""
		if f.Handle != nil {
			path = f.Handle.Path()
		}
		fmt.Printf("%s %s  %-20s %-12s %s\n", marker, f.ID, f.Name, state, path)
	}
	return subcommands.ExitSuccess
}

// activateCmd holds the flags for the 'activate' subcommand.
type activateCmd struct{}

func (*activateCmd) Name() string     { return "activate" }
func (*activateCmd) Synopsis() string { return "switch the active storage folder" }
func (*activateCmd) Usage() string {
	return `tj activate <folder-id>

  Makes the given folder the active one and loads its contents,
  replacing the in-memory state entirely. Activating a disconnected
  folder is allowed; its data loads after 'tj reconnect'.
`
}
func (*activateCmd) SetFlags(*flag.FlagSet) {}

func (*activateCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Error: activate takes exactly one folder id.")
		return subcommands.ExitUsageError
	}
	app, err := openApp()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	defer app.Close()

	if err := app.engine.Activate(f.Arg(0)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	fmt.Printf("Active folder is now %s\n", f.Arg(0))
	return subcommands.ExitSuccess
}

// reconnectCmd holds the flags for the 'reconnect' subcommand.
type reconnectCmd struct{}

func (*reconnectCmd) Name() string     { return "reconnect" }
func (*reconnectCmd) Synopsis() string { return "re-request access to a disconnected folder" }
func (*reconnectCmd) Usage() string {
	return `tj reconnect <folder-id>

  Re-requests permission on a folder whose access was lost, for example
  after the directory moved or the grant expired. If the folder is the
  active one, its contents are loaded on success.
`
}
func (*reconnectCmd) SetFlags(*flag.FlagSet) {}

func (*reconnectCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Error: reconnect takes exactly one folder id.")
		return subcommands.ExitUsageError
	}
	app, err := openApp()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	defer app.Close()

	if err := app.engine.Reconnect(f.Arg(0)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	fmt.Printf("Folder %s reconnected\n", f.Arg(0))
	return subcommands.ExitSuccess
}

// unlinkCmd holds the flags for the 'unlink' subcommand.
type unlinkCmd struct{}

func (*unlinkCmd) Name() string     { return "unlink" }
func (*unlinkCmd) Synopsis() string { return "forget a linked storage folder" }
func (*unlinkCmd) Usage() string {
	return `tj unlink <folder-id>

  Removes the folder from the registry. The directory and its journal
  data are left untouched on disk.
`
}
func (*unlinkCmd) SetFlags(*flag.FlagSet) {}

func (*unlinkCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Error: unlink takes exactly one folder id.")
		return subcommands.ExitUsageError
	}
	app, err := openApp()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	defer app.Close()

	if !app.store.RemoveFolder(f.Arg(0)) {
		fmt.Fprintf(os.Stderr, "Error: unknown storage folder %q\n", f.Arg(0))
		return subcommands.ExitFailure
	}
	fmt.Printf("Folder %s unlinked\n", f.Arg(0))
	return subcommands.ExitSuccess
}
