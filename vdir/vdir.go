// Package vdir wraps permission-gated access to user-granted local
// directories. A Root is an opaque, revocable capability over one
// directory tree: every operation is gated on the root's permission
// state, and entry names are confined to a single path segment so no
// operation can escape the granted tree.
//
// Acquiring a new root always goes through a PickFunc, the explicit
// user gesture. Permission is not durable: a root restored from the
// registry starts in the Prompt state and must be probed (or
// explicitly re-requested) before use.
package vdir

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

var (
	// ErrPermissionDenied reports that the user declined or revoked access to a root.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrNotFound reports that an expected file or directory is absent.
	ErrNotFound = errors.New("not found")
	// ErrInvalidName reports an entry name that is not a single, safe path segment.
	ErrInvalidName = errors.New("invalid entry name")
)

// Permission is the access state of a root.
type Permission int

const (
	// Prompt means permission has not been probed yet in this session.
	Prompt Permission = iota
	// Granted means the root is currently readable and writable.
	Granted
	// Denied means the user declined access, or the directory is gone.
	Denied
)

func (p Permission) String() string {
	switch p {
	case Prompt:
		return "prompt"
	case Granted:
		return "granted"
	case Denied:
		return "denied"
	default:
		return "unknown"
	}
}

// PickFunc prompts the user to choose a directory with read-write
// intent and returns its path. It must return an error when the user
// cancels or declines.
type PickFunc func() (string, error)

// Gateway acquires new roots through a user gesture.
type Gateway struct {
	// Pick is invoked for every RequestRoot call.
	Pick PickFunc
}

// RequestRoot prompts the user for a directory and returns a granted
// root over it. It fails with ErrPermissionDenied when the user
// cancels, or when the chosen directory is not accessible.
func (g *Gateway) RequestRoot() (*Root, error) {
	if g.Pick == nil {
		return nil, fmt.Errorf("no directory picker configured: %w", ErrPermissionDenied)
	}
	path, err := g.Pick()
	if err != nil {
		return nil, fmt.Errorf("directory pick declined: %w", ErrPermissionDenied)
	}
	root := NewRoot(path)
	if perm := root.RequestPermission(); perm != Granted {
		return nil, fmt.Errorf("access to %q: %w", path, ErrPermissionDenied)
	}
	return root, nil
}

// Root is a revocable capability over one local directory tree.
type Root struct {
	mu   sync.Mutex
	path string
	perm Permission
}

// NewRoot returns a root over path in the Prompt state. No I/O is
// performed until the permission is probed.
func NewRoot(path string) *Root {
	return &Root{path: path, perm: Prompt}
}

// Path returns the directory path this root refers to.
func (r *Root) Path() string { return r.path }

// QueryPermission probes the current access state without prompting.
func (r *Root) QueryPermission() Permission {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.perm = probe(r.path)
	return r.perm
}

// RequestPermission re-validates access to the root. It stands in for
// the host's permission prompt: a root that probes accessible becomes
// Granted, anything else becomes Denied.
func (r *Root) RequestPermission() Permission {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.perm = probe(r.path)
	if r.perm == Prompt {
		r.perm = Denied
	}
	return r.perm
}

// Revoke forces the root into the Denied state, as if the user had
// withdrawn the grant.
func (r *Root) Revoke() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.perm = Denied
}

func (r *Root) permission() Permission {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.perm
}

// probe checks that path is an accessible directory.
func probe(path string) Permission {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return Denied
	}
	f, err := os.Open(path)
	if err != nil {
		return Denied
	}
	f.Close()
	return Granted
}

// Dir returns a handle on the root directory itself.
func (r *Root) Dir() Dir { return Dir{root: r, path: r.path} }

// Kind discriminates directory entries.
type Kind int

const (
	KindFile Kind = iota
	KindDir
)

// Entry is one named child of a directory.
type Entry struct {
	Name string
	Kind Kind
}

// Dir is a handle on a directory inside a granted root.
type Dir struct {
	root *Root
	path string
}

// Path returns the directory path this handle refers to.
func (d Dir) Path() string { return d.path }

func (d Dir) check(name string) error {
	if d.root == nil {
		return fmt.Errorf("detached directory handle: %w", ErrPermissionDenied)
	}
	if d.root.permission() != Granted {
		return fmt.Errorf("root %q: %w", d.root.path, ErrPermissionDenied)
	}
	if name == "" {
		return nil
	}
	if name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%q: %w", name, ErrInvalidName)
	}
	return nil
}

// GetOrCreateChild returns the named subdirectory, creating it if needed.
func (d Dir) GetOrCreateChild(name string) (Dir, error) {
	if err := d.check(name); err != nil {
		return Dir{}, err
	}
	child := filepath.Join(d.path, name)
	if err := os.MkdirAll(child, 0o755); err != nil {
		return Dir{}, fmt.Errorf("create directory %q: %w", name, err)
	}
	return Dir{root: d.root, path: child}, nil
}

// Child returns the named subdirectory, or ErrNotFound if it does not exist.
func (d Dir) Child(name string) (Dir, error) {
	if err := d.check(name); err != nil {
		return Dir{}, err
	}
	child := filepath.Join(d.path, name)
	info, err := os.Stat(child)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Dir{}, fmt.Errorf("directory %q: %w", name, ErrNotFound)
		}
		return Dir{}, fmt.Errorf("stat directory %q: %w", name, err)
	}
	if !info.IsDir() {
		return Dir{}, fmt.Errorf("entry %q is not a directory: %w", name, ErrNotFound)
	}
	return Dir{root: d.root, path: child}, nil
}

// ReadFile reads the whole content of the named file.
func (d Dir) ReadFile(name string) ([]byte, error) {
	if err := d.check(name); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(d.path, name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("file %q: %w", name, ErrNotFound)
		}
		return nil, fmt.Errorf("read file %q: %w", name, err)
	}
	return data, nil
}

// WriteFile writes data to the named file, creating or replacing it.
// The write goes through a temporary file and a rename, so a reader
// never observes a torn document.
func (d Dir) WriteFile(name string, data []byte) error {
	if err := d.check(name); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(d.path, "."+name+".tmp*")
	if err != nil {
		return fmt.Errorf("create temp file for %q: %w", name, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write file %q: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close file %q: %w", name, err)
	}
	if err := os.Rename(tmpName, filepath.Join(d.path, name)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace file %q: %w", name, err)
	}
	return nil
}

// Remove deletes the named entry. Removing a non-empty directory
// requires recursive. A missing entry is reported as ErrNotFound.
func (d Dir) Remove(name string, recursive bool) error {
	if err := d.check(name); err != nil {
		return err
	}
	if name == "" {
		return fmt.Errorf("%q: %w", name, ErrInvalidName)
	}
	target := filepath.Join(d.path, name)
	var err error
	if recursive {
		// RemoveAll succeeds on missing targets, check first to keep
		// the not-found contract.
		if _, serr := os.Stat(target); errors.Is(serr, fs.ErrNotExist) {
			return fmt.Errorf("entry %q: %w", name, ErrNotFound)
		}
		err = os.RemoveAll(target)
	} else {
		err = os.Remove(target)
	}
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("entry %q: %w", name, ErrNotFound)
		}
		return fmt.Errorf("remove %q: %w", name, err)
	}
	return nil
}

// Entries lists the direct children of the directory.
func (d Dir) Entries() ([]Entry, error) {
	if err := d.check(""); err != nil {
		return nil, err
	}
	list, err := os.ReadDir(d.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("directory %q: %w", d.path, ErrNotFound)
		}
		return nil, fmt.Errorf("list directory %q: %w", d.path, err)
	}
	entries := make([]Entry, 0, len(list))
	for _, e := range list {
		kind := KindFile
		if e.IsDir() {
			kind = KindDir
		}
		entries = append(entries, Entry{Name: e.Name(), Kind: kind})
	}
	return entries, nil
}
