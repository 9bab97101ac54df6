package library

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/nfcbox/internal/formatter"
	"github.com/desertthunder/nfcbox/internal/models"
)

var utc = Options{Location: time.UTC}

func names(rows []models.DisplayRow) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.Name
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestJoin(t *testing.T) {
	songs := []models.Song{
		{Name: "A.mp3", Size: 500000, Timestamp: 1700000000},
		{Name: "B.mp3", Size: 2000000},
	}

	t.Run("Mapped And Unmapped", func(t *testing.T) {
		rows := Join(songs, []models.Mapping{{TagID: "tag1", Song: "A.mp3"}}, utc)

		if len(rows) != 2 {
			t.Fatalf("expected 2 rows, got %d", len(rows))
		}
		if !rows[0].Mapped || rows[0].TagID != "tag1" {
			t.Errorf("expected A.mp3 mapped to tag1, got %+v", rows[0])
		}
		if rows[1].Mapped || rows[1].TagID != "" {
			t.Errorf("expected B.mp3 unmapped, got %+v", rows[1])
		}
	})

	t.Run("Empty Mappings Render Unmapped", func(t *testing.T) {
		for _, mappings := range [][]models.Mapping{nil, {}} {
			rows := Join(songs, mappings, utc)
			for _, r := range rows {
				if r.Mapped {
					t.Errorf("expected %s unmapped", r.Name)
				}
			}
		}
	})

	t.Run("Display Strings", func(t *testing.T) {
		rows := Join(songs, nil, utc)
		if rows[0].SizeDisplay != "488.3 KB" || rows[1].SizeDisplay != "1.91 MB" {
			t.Errorf("unexpected sizes %q %q", rows[0].SizeDisplay, rows[1].SizeDisplay)
		}
		if rows[0].DateDisplay != "14.11.2023, 22:13" {
			t.Errorf("unexpected date %q", rows[0].DateDisplay)
		}
		if rows[1].DateDisplay != formatter.NoDate {
			t.Errorf("expected placeholder date, got %q", rows[1].DateDisplay)
		}
	})

	t.Run("First Matching Mapping Wins", func(t *testing.T) {
		rows := Join(songs[:1], []models.Mapping{
			{TagID: "tag1", Song: "A.mp3"},
			{TagID: "tag2", Song: "A.mp3"},
		}, utc)
		if rows[0].TagID != "tag1" {
			t.Errorf("expected first mapping, got %s", rows[0].TagID)
		}
	})

	t.Run("Stale Mapping Produces No Row", func(t *testing.T) {
		rows := Join(songs, []models.Mapping{{TagID: "tag9", Song: "gone.mp3"}}, utc)
		if len(rows) != 2 {
			t.Errorf("expected 2 rows, got %d", len(rows))
		}
	})
}

func TestNextSort(t *testing.T) {
	tests := []struct {
		name    string
		current models.SortState
		column  models.Column
		want    models.SortState
	}{
		{"same column flips to asc", models.SortState{Column: models.ColumnDate}, models.ColumnDate, models.SortState{Column: models.ColumnDate, Ascending: true}},
		{"same column flips to desc", models.SortState{Column: models.ColumnName, Ascending: true}, models.ColumnName, models.SortState{Column: models.ColumnName}},
		{"new column is ascending", models.SortState{Column: models.ColumnDate}, models.ColumnSize, models.SortState{Column: models.ColumnSize, Ascending: true}},
		{"new column from asc", models.SortState{Column: models.ColumnSize, Ascending: true}, models.ColumnName, models.SortState{Column: models.ColumnName, Ascending: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NextSort(tt.current, tt.column); got != tt.want {
				t.Errorf("NextSort = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestSortRows(t *testing.T) {
	rows := []models.DisplayRow{
		{Name: "b.mp3", Size: 10, Timestamp: 3},
		{Name: "A.mp3", Size: 20, Timestamp: 1},
		{Name: "c.mp3", Size: 10, Timestamp: 3},
		{Name: "a2.mp3", Size: 20, Timestamp: 2},
	}

	t.Run("Name Is Case Insensitive", func(t *testing.T) {
		got := names(SortRows(rows, models.SortState{Column: models.ColumnName, Ascending: true}))
		want := []string{"A.mp3", "a2.mp3", "b.mp3", "c.mp3"}
		if !equal(got, want) {
			t.Errorf("got %v, want %v", got, want)
		}
	})

	t.Run("Size Ascending Keeps Ties In Order", func(t *testing.T) {
		got := names(SortRows(rows, models.SortState{Column: models.ColumnSize, Ascending: true}))
		want := []string{"b.mp3", "c.mp3", "A.mp3", "a2.mp3"}
		if !equal(got, want) {
			t.Errorf("got %v, want %v", got, want)
		}
	})

	t.Run("Size Descending Keeps Ties In Order", func(t *testing.T) {
		got := names(SortRows(rows, models.SortState{Column: models.ColumnSize}))
		want := []string{"A.mp3", "a2.mp3", "b.mp3", "c.mp3"}
		if !equal(got, want) {
			t.Errorf("got %v, want %v", got, want)
		}
	})

	t.Run("Date Descending", func(t *testing.T) {
		got := names(SortRows(rows, models.SortState{Column: models.ColumnDate}))
		want := []string{"b.mp3", "c.mp3", "a2.mp3", "A.mp3"}
		if !equal(got, want) {
			t.Errorf("got %v, want %v", got, want)
		}
	})

	t.Run("Does Not Mutate Input", func(t *testing.T) {
		before := names(rows)
		SortRows(rows, models.SortState{Column: models.ColumnName, Ascending: true})
		if !equal(before, names(rows)) {
			t.Error("input rows were reordered")
		}
	})

	t.Run("Stable For Every Column And Direction", func(t *testing.T) {
		for _, col := range []models.Column{models.ColumnName, models.ColumnSize, models.ColumnDate} {
			for _, asc := range []bool{true, false} {
				state := models.SortState{Column: col, Ascending: asc}
				once := names(SortRows(rows, state))
				twice := names(SortRows(SortRows(rows, state), state))
				if !equal(once, twice) {
					t.Errorf("%s: re-sort changed order %v -> %v", state, once, twice)
				}
			}
		}
	})
}

func TestView(t *testing.T) {
	songs := []models.Song{
		{Name: "x.mp3", Size: 5, Timestamp: 10},
		{Name: "y.mp3", Size: 5, Timestamp: 30},
		{Name: "z.mp3", Size: 5, Timestamp: 20},
	}
	mappings := []models.Mapping{{TagID: "t1", Song: "y.mp3"}, {TagID: "t2", Song: "y.mp3"}}

	t.Run("Build Uses Sort State", func(t *testing.T) {
		v := Build(songs, mappings, models.DefaultSortState(), utc)
		if got := names(v.Rows()); !equal(got, []string{"y.mp3", "z.mp3", "x.mp3"}) {
			t.Errorf("expected newest first, got %v", got)
		}
	})

	t.Run("Sort Toggles And Apply Does Not", func(t *testing.T) {
		v := Build(songs, mappings, models.DefaultSortState(), utc)

		toggled := v.Sort(models.ColumnDate)
		if !toggled.SortState().Ascending {
			t.Error("expected toggle to ascending")
		}
		if v.SortState().Ascending {
			t.Error("original view was mutated")
		}

		applied := toggled.Apply(toggled.SortState())
		if applied.SortState() != toggled.SortState() {
			t.Errorf("Apply toggled state: %v", applied.SortState())
		}
		if !equal(names(applied.Rows()), []string{"x.mp3", "z.mp3", "y.mp3"}) {
			t.Errorf("unexpected order %v", names(applied.Rows()))
		}
	})

	t.Run("Equal Keys Return To Join Order", func(t *testing.T) {
		v := Build(songs, nil, models.SortState{Column: models.ColumnSize, Ascending: true}, utc)
		v = v.Sort(models.ColumnSize).Sort(models.ColumnSize)
		if got := names(v.Rows()); !equal(got, []string{"x.mp3", "y.mp3", "z.mp3"}) {
			t.Errorf("expected join order for equal sizes, got %v", got)
		}
	})

	t.Run("Lookups", func(t *testing.T) {
		v := Build(songs, mappings, models.DefaultSortState(), utc)

		if row, ok := v.Row("y.mp3"); !ok || row.TagID != "t1" {
			t.Errorf("unexpected row %+v %v", row, ok)
		}
		if _, ok := v.Row("nope.mp3"); ok {
			t.Error("expected missing row")
		}
		if m, ok := v.MappingForTag("t2"); !ok || m.Song != "y.mp3" {
			t.Errorf("unexpected mapping %+v %v", m, ok)
		}
		if tags := v.TagsForSong("y.mp3"); len(tags) != 2 {
			t.Errorf("expected 2 tags, got %v", tags)
		}
	})

	t.Run("Rows Are Copies", func(t *testing.T) {
		v := Build(songs, nil, models.DefaultSortState(), utc)
		rows := v.Rows()
		rows[0].Name = "changed"
		if v.Rows()[0].Name == "changed" {
			t.Error("view exposed internal rows")
		}
	})

	t.Run("Empty", func(t *testing.T) {
		if v := Build(nil, mappings, models.DefaultSortState(), utc); !v.Empty() || v.Len() != 0 {
			t.Error("expected empty view")
		}
	})
}

type stubFetcher struct {
	mu           sync.Mutex
	songs        []models.Song
	mappings     []models.Mapping
	songsErr     error
	mappingsErr  error
	songCalls    int
	mappingCalls int
	onSongs      func(call int) []models.Song
}

func (s *stubFetcher) Songs(ctx context.Context) ([]models.Song, error) {
	s.mu.Lock()
	s.songCalls++
	call, hook := s.songCalls, s.onSongs
	s.mu.Unlock()

	if hook != nil {
		return hook(call), nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.songs, s.songsErr
}

func (s *stubFetcher) Mappings(ctx context.Context) ([]models.Mapping, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mappingCalls++
	return s.mappings, s.mappingsErr
}

func TestViewModel(t *testing.T) {
	ctx := context.Background()

	t.Run("Refresh Joins Both Listings", func(t *testing.T) {
		f := &stubFetcher{
			songs:    []models.Song{{Name: "A.mp3"}, {Name: "B.mp3"}},
			mappings: []models.Mapping{{TagID: "tag1", Song: "A.mp3"}},
		}
		vm := NewViewModel(f, models.SortState{Column: models.ColumnName, Ascending: true}, utc, nil)

		v, err := vm.Refresh(ctx)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		rows := v.Rows()
		if !rows[0].Mapped || rows[0].TagID != "tag1" || rows[1].Mapped {
			t.Errorf("unexpected rows %+v", rows)
		}
		if f.songCalls != 1 || f.mappingCalls != 1 {
			t.Errorf("expected one fetch each, got %d/%d", f.songCalls, f.mappingCalls)
		}
		if vm.Refreshes() != 1 {
			t.Errorf("expected 1 refresh, got %d", vm.Refreshes())
		}
	})

	t.Run("Songs Failure Yields Empty View And Error", func(t *testing.T) {
		f := &stubFetcher{songsErr: errors.New("offline")}
		vm := NewViewModel(f, models.DefaultSortState(), utc, nil)

		v, err := vm.Refresh(ctx)
		if err == nil {
			t.Fatal("expected error")
		}
		if !v.Empty() || !vm.View().Empty() {
			t.Error("expected empty view")
		}
		if vm.MappingsCurrent() {
			t.Error("expected mappings not current after failure")
		}
	})

	t.Run("Mappings Failure Is Not An Error", func(t *testing.T) {
		f := &stubFetcher{
			songs:       []models.Song{{Name: "A.mp3"}, {Name: "B.mp3"}},
			mappingsErr: errors.New("busy"),
		}
		vm := NewViewModel(f, models.DefaultSortState(), utc, nil)

		v, err := vm.Refresh(ctx)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if v.Len() != 2 {
			t.Fatalf("expected 2 rows, got %d", v.Len())
		}
		if vm.MappingsCurrent() {
			t.Error("expected mappings not current after mapping failure")
		}
		for _, r := range v.Rows() {
			if r.Mapped {
				t.Errorf("expected %s unmapped", r.Name)
			}
		}
	})

	t.Run("No Songs Is Empty State", func(t *testing.T) {
		vm := NewViewModel(&stubFetcher{}, models.DefaultSortState(), utc, nil)

		v, err := vm.Refresh(ctx)
		if err != nil || !v.Empty() {
			t.Errorf("expected empty view without error, got %v %v", v.Len(), err)
		}
	})

	t.Run("Songs Scope Reuses Mappings", func(t *testing.T) {
		f := &stubFetcher{
			songs:    []models.Song{{Name: "A.mp3"}},
			mappings: []models.Mapping{{TagID: "tag1", Song: "A.mp3"}},
		}
		vm := NewViewModel(f, models.DefaultSortState(), utc, nil)
		if _, err := vm.Refresh(ctx); err != nil {
			t.Fatal(err)
		}

		f.mu.Lock()
		f.songs = []models.Song{{Name: "A.mp3"}, {Name: "C.mp3"}}
		f.mu.Unlock()

		v, err := vm.RefreshScope(ctx, ScopeSongs)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if f.mappingCalls != 1 {
			t.Errorf("expected mappings fetched once, got %d", f.mappingCalls)
		}
		if !vm.MappingsCurrent() {
			t.Error("expected cached mappings to stay current")
		}
		if row, _ := v.Row("A.mp3"); row.TagID != "tag1" {
			t.Errorf("expected cached mapping, got %+v", row)
		}
		if v.Len() != 2 {
			t.Errorf("expected 2 rows, got %d", v.Len())
		}
	})

	t.Run("Refresh Keeps Sort Without Toggling", func(t *testing.T) {
		f := &stubFetcher{songs: []models.Song{{Name: "b.mp3"}, {Name: "a.mp3"}}}
		vm := NewViewModel(f, models.DefaultSortState(), utc, nil)
		vm.Sort(models.ColumnName)

		for range 3 {
			v, err := vm.Refresh(ctx)
			if err != nil {
				t.Fatal(err)
			}
			if v.SortState() != (models.SortState{Column: models.ColumnName, Ascending: true}) {
				t.Fatalf("refresh changed sort state to %v", v.SortState())
			}
			if got := names(v.Rows()); !equal(got, []string{"a.mp3", "b.mp3"}) {
				t.Errorf("unexpected order %v", got)
			}
		}
	})

	t.Run("SetSort", func(t *testing.T) {
		vm := NewViewModel(&stubFetcher{}, models.DefaultSortState(), utc, nil)
		state := models.SortState{Column: models.ColumnSize}
		if got := vm.SetSort(state).SortState(); got != state {
			t.Errorf("expected %v, got %v", state, got)
		}
	})

	t.Run("Last Refresh To Complete Wins", func(t *testing.T) {
		started := make(chan struct{})
		release := make(chan struct{})
		f := &stubFetcher{onSongs: func(call int) []models.Song {
			if call == 1 {
				close(started)
				<-release
				return []models.Song{{Name: "slow.mp3"}}
			}
			return []models.Song{{Name: "fast.mp3"}}
		}}
		vm := NewViewModel(f, models.DefaultSortState(), utc, nil)

		done := make(chan struct{})
		go func() {
			defer close(done)
			vm.Refresh(ctx)
		}()

		<-started
		if v, _ := vm.Refresh(ctx); v.Rows()[0].Name != "fast.mp3" {
			t.Fatalf("expected fast refresh to commit, got %v", names(v.Rows()))
		}

		close(release)
		<-done

		if got := names(vm.View().Rows()); !equal(got, []string{"slow.mp3"}) {
			t.Errorf("expected last completed refresh to win, got %v", got)
		}
		if vm.Refreshes() != 2 {
			t.Errorf("expected 2 commits, got %d", vm.Refreshes())
		}
	})
}

func TestScope(t *testing.T) {
	if ScopeFull.String() != "full" || ScopeSongs.String() != "songs" {
		t.Errorf("unexpected scope names %s %s", ScopeFull, ScopeSongs)
	}
}
