// Package watcher provides drop-folder watching for ingest watch mode.
//
// A [DirWatcher] watches a single directory (non-recursive) with fsnotify
// and emits batches of [FileEvent]. Raw notifications pass through a
// [Debouncer] that coalesces the bursts editors and copy tools produce,
// so a file written in many syscalls surfaces as one event.
//
// The watcher knows nothing about documents; deciding what to do with an
// event belongs to the ingest layer.
package watcher
