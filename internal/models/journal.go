package models

import (
	"fmt"
	"time"
)

// OperationKind names a mutating request sent to the jukebox.
type OperationKind string

const (
	OpUpload OperationKind = "upload"
	OpRename OperationKind = "rename"
	OpDelete OperationKind = "delete"
	OpMap    OperationKind = "map"
	OpUnmap  OperationKind = "unmap"
)

// OperationStatus is the outcome of a journaled operation.
type OperationStatus string

const (
	StatusOK     OperationStatus = "ok"
	StatusFailed OperationStatus = "failed"
)

// JournalEntry records one mutating request and its outcome.
type JournalEntry struct {
	id           string
	sequence     int
	kind         OperationKind
	subject      string
	detail       string
	status       OperationStatus
	errorMessage string
	device       string
	batchID      string
	createdAt    time.Time
}

// NewJournalEntry creates an entry for a finished operation. A nil err records success.
func NewJournalEntry(kind OperationKind, subject, detail, device string, err error) *JournalEntry {
	entry := &JournalEntry{
		kind:      kind,
		subject:   subject,
		detail:    detail,
		status:    StatusOK,
		device:    device,
		createdAt: time.Now(),
	}
	if err != nil {
		entry.status = StatusFailed
		entry.errorMessage = err.Error()
	}
	return entry
}

// RestoreJournalEntry rebuilds an entry read from storage.
func RestoreJournalEntry(
	id string, sequence int, kind OperationKind, subject, detail string,
	status OperationStatus, errorMessage, device, batchID string, createdAt time.Time,
) *JournalEntry {
	return &JournalEntry{
		id:           id,
		sequence:     sequence,
		kind:         kind,
		subject:      subject,
		detail:       detail,
		status:       status,
		errorMessage: errorMessage,
		device:       device,
		batchID:      batchID,
		createdAt:    createdAt,
	}
}

func (e *JournalEntry) ID() string                { return e.id }
func (e *JournalEntry) Sequence() int             { return e.sequence }
func (e *JournalEntry) Kind() OperationKind       { return e.kind }
func (e *JournalEntry) Subject() string           { return e.subject }
func (e *JournalEntry) Detail() string            { return e.detail }
func (e *JournalEntry) Status() OperationStatus   { return e.status }
func (e *JournalEntry) ErrorMessage() string      { return e.errorMessage }
func (e *JournalEntry) Device() string            { return e.device }
func (e *JournalEntry) BatchID() string           { return e.batchID }
func (e *JournalEntry) CreatedAt() time.Time      { return e.createdAt }
func (e *JournalEntry) SetID(id string)           { e.id = id }
func (e *JournalEntry) SetSequence(sequence int)  { e.sequence = sequence }
func (e *JournalEntry) SetBatchID(batchID string) { e.batchID = batchID }

// Validate checks required fields and enumerations.
func (e *JournalEntry) Validate() error {
	switch e.kind {
	case OpUpload, OpRename, OpDelete, OpMap, OpUnmap:
	default:
		return fmt.Errorf("unknown operation kind %q", e.kind)
	}
	switch e.status {
	case StatusOK, StatusFailed:
	default:
		return fmt.Errorf("unknown status %q", e.status)
	}
	if e.subject == "" {
		return fmt.Errorf("subject is required")
	}
	if e.device == "" {
		return fmt.Errorf("device is required")
	}
	return nil
}
