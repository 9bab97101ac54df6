// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// The TUI is a control panel for the jukebox library:
//  1. [LibraryView] : Sortable file table with size, date and tag columns
//  2. [InputView] : Rename a file or enter paths to upload
//  3. [PickerView] : Choose the song for the tag on the reader
//  4. [ConfirmView] : Confirm delete, unmap or mapping overwrite
//  5. [UploadView] : Batch progress bar fed by upload progress updates
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union type.
// All device work runs through tasks.LibraryEngine in commands; the confirmation prompt is answered in
// [ConfirmView] before the engine is called, so a refusal never reaches the device.
//
// Keyboard navigation uses vim-style bindings (j/k, enter, esc, y/n, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui
