package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"

	"github.com/desertthunder/nfcbox/internal/formatter"
	"github.com/desertthunder/nfcbox/internal/models"
	"github.com/desertthunder/nfcbox/internal/tasks"
)

var _ list.Item = songItem{}

// songItem wraps [models.DisplayRow] to implement [list.Item] in the song picker.
//
// The zero value is the picker placeholder.
type songItem struct {
	row models.DisplayRow
}

func (i songItem) placeholder() bool { return i.row.Name == "" }

func (i songItem) FilterValue() string { return i.row.Name }

func (i songItem) Title() string {
	if i.placeholder() {
		return tasks.SongPlaceholder
	}
	return i.row.Name
}

func (i songItem) Description() string {
	if i.placeholder() {
		return ""
	}
	desc := i.row.SizeDisplay
	if i.row.Mapped {
		desc = fmt.Sprintf("%s • tag %s", desc, formatter.TagDisplay(i.row))
	}
	return desc
}

// Song returns the picked song name, or the placeholder.
func (i songItem) Song() string {
	return i.Title()
}

// songItems lists rows behind a leading placeholder.
func songItems(rows []models.DisplayRow) []list.Item {
	items := make([]list.Item, 0, len(rows)+1)
	items = append(items, songItem{})
	for _, r := range rows {
		items = append(items, songItem{row: r})
	}
	return items
}
