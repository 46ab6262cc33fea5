// Package desktop owns the per-user desktop runtime: the open-window
// registry with its z-order, the cursor, the single-slot clipboard, and
// the chat transcript.
//
// Invariants:
//   - At most one window is active; activation raises it on a strictly
//     increasing z-order counter.
//   - Window geometry is always clamped to desktop bounds, except while
//     maximized, during which the prior geometry is kept for restore.
//   - Singleton apps (browser, doodle, studio, explorer) have at most
//     one window; the document editor is multi-instance.
//   - Closing a window releases its file and browser associations.
//
// The Manager is safe for concurrent use, but sequence execution is
// additionally serialized through TryRun/EndRun: the interpreter claims
// the desktop for the duration of a chat turn and a second turn is
// rejected while one is in flight.
package desktop
