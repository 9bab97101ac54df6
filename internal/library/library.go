package library

import (
	"sort"
	"strings"
	"time"

	"github.com/desertthunder/nfcbox/internal/formatter"
	"github.com/desertthunder/nfcbox/internal/models"
)

// Options controls how rows are rendered.
type Options struct {
	DateLayout string
	Location   *time.Location
}

// Join derives one row per song, in song order.
func Join(songs []models.Song, mappings []models.Mapping, opts Options) []models.DisplayRow {
	rows := make([]models.DisplayRow, 0, len(songs))
	for _, song := range songs {
		row := models.DisplayRow{
			Name:        song.Name,
			Size:        song.Size,
			Timestamp:   song.Timestamp,
			SizeDisplay: formatter.FormatSize(song.Size),
			DateDisplay: formatter.FormatTimestamp(song.Timestamp, opts.DateLayout, opts.Location),
		}
		if m, ok := findMapping(mappings, song.Name); ok {
			row.TagID = m.TagID
			row.Mapped = true
		}
		rows = append(rows, row)
	}
	return rows
}

func findMapping(mappings []models.Mapping, song string) (models.Mapping, bool) {
	for _, m := range mappings {
		if m.Song == song {
			return m, true
		}
	}
	return models.Mapping{}, false
}

// NextSort returns the state after the operator selects column.
func NextSort(current models.SortState, column models.Column) models.SortState {
	if current.Column == column {
		return models.SortState{Column: column, Ascending: !current.Ascending}
	}
	return models.SortState{Column: column, Ascending: true}
}

// SortRows returns a stably sorted copy of rows.
func SortRows(rows []models.DisplayRow, state models.SortState) []models.DisplayRow {
	sorted := append([]models.DisplayRow(nil), rows...)
	less := lessFor(state.Column)
	if less == nil {
		return sorted
	}

	sort.SliceStable(sorted, func(i, j int) bool {
		if state.Ascending {
			return less(sorted[i], sorted[j])
		}
		return less(sorted[j], sorted[i])
	})
	return sorted
}

func lessFor(column models.Column) func(a, b models.DisplayRow) bool {
	switch column {
	case models.ColumnName:
		return func(a, b models.DisplayRow) bool {
			return strings.ToLower(a.Name) < strings.ToLower(b.Name)
		}
	case models.ColumnSize:
		return func(a, b models.DisplayRow) bool { return a.Size < b.Size }
	case models.ColumnDate:
		return func(a, b models.DisplayRow) bool { return a.Timestamp < b.Timestamp }
	default:
		return nil
	}
}

// View is an immutable snapshot of the library.
type View struct {
	songs    []models.Song
	mappings []models.Mapping
	base     []models.DisplayRow // join order
	rows     []models.DisplayRow // sorted
	state    models.SortState
	opts     Options
}

// Build joins songs and mappings and sorts the result by state.
func Build(songs []models.Song, mappings []models.Mapping, state models.SortState, opts Options) View {
	songs = append([]models.Song(nil), songs...)
	mappings = append([]models.Mapping(nil), mappings...)
	base := Join(songs, mappings, opts)

	return View{
		songs:    songs,
		mappings: mappings,
		base:     base,
		rows:     SortRows(base, state),
		state:    state,
		opts:     opts,
	}
}

// Rows returns a copy of the sorted rows.
func (v View) Rows() []models.DisplayRow {
	return append([]models.DisplayRow(nil), v.rows...)
}

// Songs returns a copy of the songs the view was built from.
func (v View) Songs() []models.Song {
	return append([]models.Song(nil), v.songs...)
}

// Mappings returns a copy of the mappings the view was built from.
func (v View) Mappings() []models.Mapping {
	return append([]models.Mapping(nil), v.mappings...)
}

func (v View) SortState() models.SortState { return v.state }
func (v View) Len() int                    { return len(v.rows) }

// Empty reports whether there are no songs, the "no files" state.
func (v View) Empty() bool {
	return len(v.rows) == 0
}

// Sort selects column, toggling direction when it is already active.
func (v View) Sort(column models.Column) View {
	return v.Apply(NextSort(v.state, column))
}

// Apply sorts by state as given.
//
// Sorting always starts from join order, so equal keys keep the device's order.
func (v View) Apply(state models.SortState) View {
	v.state = state
	v.rows = SortRows(v.base, state)
	return v
}

// Row finds the row for a song name.
func (v View) Row(name string) (models.DisplayRow, bool) {
	for _, r := range v.rows {
		if r.Name == name {
			return r, true
		}
	}
	return models.DisplayRow{}, false
}

// MappingForTag finds the mapping for tag.
func (v View) MappingForTag(tag string) (models.Mapping, bool) {
	for _, m := range v.mappings {
		if m.TagID == tag {
			return m, true
		}
	}
	return models.Mapping{}, false
}

// TagsForSong lists every tag mapped to song.
func (v View) TagsForSong(song string) []string {
	var tags []string
	for _, m := range v.mappings {
		if m.Song == song {
			tags = append(tags, m.TagID)
		}
	}
	return tags
}
