// Package models defines the domain entities exchanged with the jukebox and kept locally.
//
// The package contains two categories of types:
//
// 1. Wire and view types: values owned by the device or derived from it
//   - [Song] : an audio file stored on the jukebox's SD card
//   - [Mapping] : an association between an NFC tag and a song
//   - [DisplayRow] : a song joined with at most one mapping, ready for rendering
//   - [SortState] : the operator's chosen column and direction
//   - [FileBlob] / [UploadBatch] : local files queued for upload
//
// 2. Persistent entities: rows of the local operation journal
//   - [JournalEntry] : one mutating request and its outcome
//
// Persistent entities implement the [Model] interface and are stored through a [Repository].
package models
