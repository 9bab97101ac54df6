// Package tasks runs operator actions against the jukebox with progress reporting.
//
// # Core Operations
//
//  1. [Pipeline.Run] : Sequential batch upload
//     - Validates every name before any request
//     - Sends file i+1 only after file i is acknowledged
//     - Halts on the first failure; earlier files stay on the device
//
//  2. [Coordinator.Execute] : Tag assignment
//     - At most one mapping per tag
//     - Overwrites ask a [Confirmer], then delete before add
//     - Refusal sends no writes
//
//  3. [LibraryEngine] : Upload, rename, delete, map and unmap
//     - Exactly one library refresh after each successful operation
//     - Rename refreshes mappings only when the device rewrote them
//
// # Progress Reporting
//
// [ProgressUpdate] carries a phase, step counters and byte counts. Byte updates use select with
// default so a slow reader never stalls a transfer. Terminal updates ([UploadDone],
// [UploadFailed]) block until received or the context ends.
//
// # Journal
//
// The optional [Journal] interface records every mutating request (repositories.JournalRepository).
// Journal errors are logged and never fail an operation.
package tasks
