package library

import (
	"context"
	"io"
	"sync"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/desertthunder/nfcbox/internal/models"
)

// Fetcher reads the device's library listings.
type Fetcher interface {
	Songs(ctx context.Context) ([]models.Song, error)
	Mappings(ctx context.Context) ([]models.Mapping, error)
}

// Scope selects what a refresh re-fetches.
type Scope int

const (
	ScopeFull Scope = iota
	ScopeSongs
)

func (s Scope) String() string {
	if s == ScopeSongs {
		return "songs"
	}
	return "full"
}

// ViewModel holds the current [View] and refreshes it from a [Fetcher].
//
// Safe for concurrent use. Each refresh commits a whole View; the last refresh to complete wins.
type ViewModel struct {
	fetcher Fetcher
	opts    Options
	logger  *log.Logger

	mu        sync.Mutex
	view      View
	refreshes int
	mappingOK bool
}

// NewViewModel creates a holder with an empty view sorted by state.
func NewViewModel(fetcher Fetcher, state models.SortState, opts Options, logger *log.Logger) *ViewModel {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &ViewModel{
		fetcher: fetcher,
		opts:    opts,
		logger:  logger,
		view:    Build(nil, nil, state, opts),
	}
}

// View returns the current snapshot.
func (vm *ViewModel) View() View {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.view
}

// Refreshes returns how many refreshes have been committed.
func (vm *ViewModel) Refreshes() int {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.refreshes
}

// MappingsCurrent reports whether the view's mappings came from the last refresh's successful fetch.
func (vm *ViewModel) MappingsCurrent() bool {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.mappingOK
}

// Sort selects column on the current view and commits the result.
func (vm *ViewModel) Sort(column models.Column) View {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	vm.view = vm.view.Sort(column)
	return vm.view
}

// SetSort applies state without toggling and commits the result.
func (vm *ViewModel) SetSort(state models.SortState) View {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	vm.view = vm.view.Apply(state)
	return vm.view
}

// Refresh re-fetches songs and mappings and rebuilds the view.
func (vm *ViewModel) Refresh(ctx context.Context) (View, error) {
	return vm.RefreshScope(ctx, ScopeFull)
}

// RefreshScope rebuilds the view, re-fetching mappings only for [ScopeFull].
//
// A songs-only refresh re-joins with the mappings of the current view.
func (vm *ViewModel) RefreshScope(ctx context.Context, scope Scope) (View, error) {
	var (
		songs       []models.Song
		mappings    []models.Mapping
		mappingsErr error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		songs, err = vm.fetcher.Songs(gctx)
		return err
	})

	if scope == ScopeFull {
		g.Go(func() error {
			mappings, mappingsErr = vm.fetcher.Mappings(gctx)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		vm.logger.Error("failed to load songs", "error", err)
		return vm.commit(nil, nil, false), err
	}

	mappingOK := true
	switch {
	case scope == ScopeSongs:
		mappings = vm.View().Mappings()
		mappingOK = vm.MappingsCurrent()
	case mappingsErr != nil:
		vm.logger.Warn("failed to load mappings, showing all songs unmapped", "error", mappingsErr)
		mappings = nil
		mappingOK = false
	}

	view := vm.commit(songs, mappings, mappingOK)
	vm.logger.Debug("library refreshed", "scope", scope, "songs", len(songs), "mappings", len(mappings))
	return view, nil
}

// commit builds a view with the sort state in effect now, not when the refresh started.
func (vm *ViewModel) commit(songs []models.Song, mappings []models.Mapping, mappingOK bool) View {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	vm.view = Build(songs, mappings, vm.view.SortState(), vm.opts)
	vm.refreshes++
	vm.mappingOK = mappingOK
	return vm.view
}
