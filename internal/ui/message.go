package ui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/nfcbox/internal/library"
	"github.com/desertthunder/nfcbox/internal/models"
	"github.com/desertthunder/nfcbox/internal/tasks"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgLibraryLoaded MsgKind = iota
	MsgTagRead
	MsgProgressUpdate
	MsgUploadComplete
	MsgActionComplete
	MsgMappingChanged
)

type libraryLoaded struct {
	view library.View
	err  error
}

type tagRead struct {
	tag string
	err error
}

type uploadComplete struct {
	batch *models.UploadBatch
	err   error
}

type actionComplete struct {
	status string
	err    error
}

// libraryLoadedMsg is the constructor for [MsgLibraryLoaded]
func libraryLoadedMsg(view library.View, err error) Msg {
	return Msg{kind: MsgLibraryLoaded, data: libraryLoaded{view, err}}
}

// tagReadMsg is the constructor for [MsgTagRead]
func tagReadMsg(tag string, err error) Msg {
	return Msg{kind: MsgTagRead, data: tagRead{tag, err}}
}

// progressUpdateMsg is the constructor for [MsgProgressUpdate]
func progressUpdateMsg(update tasks.ProgressUpdate) Msg {
	return Msg{kind: MsgProgressUpdate, data: update}
}

// uploadCompleteMsg is the constructor for [MsgUploadComplete]
func uploadCompleteMsg(batch *models.UploadBatch, err error) Msg {
	return Msg{kind: MsgUploadComplete, data: uploadComplete{batch, err}}
}

// actionCompleteMsg is the constructor for [MsgActionComplete]
func actionCompleteMsg(status string, err error) Msg {
	return Msg{kind: MsgActionComplete, data: actionComplete{status, err}}
}

// mappingChangedMsg is the constructor for [MsgMappingChanged]
func mappingChangedMsg(plan tasks.MappingPlan) Msg {
	return Msg{kind: MsgMappingChanged, data: plan}
}
