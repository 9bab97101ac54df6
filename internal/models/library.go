package models

import (
	"fmt"
	"strings"
)

// Song is an audio file on the jukebox. Identity is Name.
type Song struct {
	Name      string `json:"name"`
	Size      int64  `json:"size"`
	Timestamp int64  `json:"timestamp,omitempty"` // unix seconds, zero when unknown
}

// Mapping associates an NFC tag with a song. At most one mapping exists per TagID.
type Mapping struct {
	TagID string `json:"tagid"`
	Song  string `json:"song"`
}

// DisplayRow is a song joined with at most one mapping.
//
// Raw attributes are kept next to their display strings so sorting never re-parses text.
type DisplayRow struct {
	Name        string `json:"name"`
	Size        int64  `json:"size"`
	Timestamp   int64  `json:"timestamp"`
	TagID       string `json:"tagid,omitempty"`
	Mapped      bool   `json:"mapped"`
	SizeDisplay string `json:"size_display"`
	DateDisplay string `json:"date_display"`
}

// Column is a sortable column of the file table.
type Column string

const (
	ColumnName Column = "name"
	ColumnSize Column = "size"
	ColumnDate Column = "date"
)

// ParseColumn validates a column name, ignoring case and surrounding space.
func ParseColumn(s string) (Column, error) {
	switch c := Column(strings.ToLower(strings.TrimSpace(s))); c {
	case ColumnName, ColumnSize, ColumnDate:
		return c, nil
	default:
		return "", fmt.Errorf("unknown sort column %q (want name, size or date)", s)
	}
}

// SortState is the operator's chosen ordering of the file table.
type SortState struct {
	Column    Column `json:"column"`
	Ascending bool   `json:"ascending"`
}

// DefaultSortState is newest first.
func DefaultSortState() SortState {
	return SortState{Column: ColumnDate, Ascending: false}
}

func (s SortState) String() string {
	dir := "desc"
	if s.Ascending {
		dir = "asc"
	}
	return fmt.Sprintf("%s %s", s.Column, dir)
}
