// Package chartlog is the local-first persistence and state core of a
// trading journal. It owns the in-memory application state (charts,
// projects, themes, timer sessions, configuration, and the set of
// linked storage folders), mirrors it to a user-granted local
// directory as JSON documents plus binary chart assets, and reconciles
// on-disk data back into memory when a storage folder is activated.
//
// The core functionalities include:
//   - State Store: the authoritative in-memory state graph, mutated
//     only through its operation methods, with a change feed the sync
//     engine subscribes to.
//   - Sync Engine: debounced, last-write-wins write-back of the root
//     JSON documents, immediate asset writes, and a load pass that
//     hard-replaces the in-memory collections from a root's contents.
//   - Naming Scheme: filesystem-safe sanitization of project and theme
//     names, and templated chart file names with an id suffix that
//     guarantees uniqueness.
//   - Chart Asset Store: image files and their JSON metadata sidecars,
//     nested as charts/{project}/{theme}/, with a read fallback for the
//     legacy flat layout and a recursive scan used to rebuild the index.
//
// All directory access goes through the vdir package, which models the
// revocable, permission-gated directory grants of the host. Folder
// handles themselves are remembered across restarts by the registry
// package, outside any synced directory.
//
// This package serves as the foundational logic for the `tj`
// command-line tool.
package chartlog
