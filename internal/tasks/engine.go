package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/nfcbox/internal/library"
	"github.com/desertthunder/nfcbox/internal/models"
	"github.com/desertthunder/nfcbox/internal/services"
	"github.com/desertthunder/nfcbox/internal/shared"
)

// Journal persists a record of each mutating request.
type Journal interface {
	Create(entry *models.JournalEntry) error
}

// RenameResult reports what a rename changed.
type RenameResult struct {
	MappingsUpdated bool
	Scope           library.Scope
	View            library.View
}

// LibraryEngine runs operator actions against the device and keeps the library view current.
//
// Every successful mutating operation is followed by exactly one refresh.
type LibraryEngine struct {
	device      services.Jukebox
	view        *library.ViewModel
	pipeline    *Pipeline
	coordinator *Coordinator
	journal     Journal
	logger      *log.Logger
}

// NewLibraryEngine wires the pipeline and coordinator to device and view.
func NewLibraryEngine(device services.Jukebox, view *library.ViewModel, logger *log.Logger) *LibraryEngine {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &LibraryEngine{
		device:      device,
		view:        view,
		pipeline:    NewPipeline(device, logger),
		coordinator: NewCoordinator(device, logger),
		logger:      logger,
	}
}

// WithJournal records operations in j. Journal failures are logged and otherwise ignored.
func (e *LibraryEngine) WithJournal(j Journal) *LibraryEngine {
	e.journal = j
	return e
}

// View returns the current library snapshot.
func (e *LibraryEngine) View() library.View {
	return e.view.View()
}

// Sort selects column on the current view.
func (e *LibraryEngine) Sort(column models.Column) library.View {
	return e.view.Sort(column)
}

// SetSort applies state without toggling.
func (e *LibraryEngine) SetSort(state models.SortState) library.View {
	return e.view.SetSort(state)
}

// Refresh re-fetches songs and mappings.
func (e *LibraryEngine) Refresh(ctx context.Context) (library.View, error) {
	return e.view.Refresh(ctx)
}

// ReadTag returns the tag currently on the device's reader.
func (e *LibraryEngine) ReadTag(ctx context.Context) (string, error) {
	return e.device.TagID(ctx)
}

// Download streams a stored file into w.
func (e *LibraryEngine) Download(ctx context.Context, name string, w io.Writer) (int64, error) {
	if strings.TrimSpace(name) == "" {
		return 0, fmt.Errorf("%w: file name", shared.ErrMissingArgument)
	}
	return e.device.Download(ctx, name, w)
}

// Upload sends files in order and refreshes once if anything reached the device.
//
// The batch is returned even on failure so callers can report which file halted it.
func (e *LibraryEngine) Upload(ctx context.Context, files []models.FileBlob, progress chan<- ProgressUpdate) (*models.UploadBatch, error) {
	batch := models.NewUploadBatch(shared.GenerateID(), files)
	runErr := e.pipeline.Run(ctx, batch, progress)

	for _, f := range batch.Uploaded() {
		e.record(models.OpUpload, f.Name, "", batch.ID, nil)
	}
	if batch.Failure != nil {
		e.record(models.OpUpload, batch.Failure.Name, "", batch.ID, batch.Failure)
	}

	if batch.Cursor == 0 {
		return batch, runErr
	}

	sendProgress(progress, refreshUpdate(library.ScopeFull))
	_, refreshErr := e.view.Refresh(ctx)
	if runErr != nil {
		return batch, runErr
	}
	return batch, refreshErr
}

// ValidateRename checks both names before any request is made.
func ValidateRename(oldName, newName string) error {
	if strings.TrimSpace(oldName) == "" {
		return fmt.Errorf("%w: current file name", shared.ErrMissingArgument)
	}
	if strings.TrimSpace(newName) == "" {
		return fmt.Errorf("%w: new file name", shared.ErrMissingArgument)
	}
	if newName == oldName {
		return fmt.Errorf("%w: new name is the same as the current name", shared.ErrInvalidInput)
	}
	if !shared.HasMP3Extension(newName) {
		return fmt.Errorf("%w: filename must end with .mp3", shared.ErrInvalidFilename)
	}
	return nil
}

// Rename renames a stored file. Mapping rewrites trigger a full refresh, otherwise songs only.
func (e *LibraryEngine) Rename(ctx context.Context, oldName, newName string) (RenameResult, error) {
	if err := ValidateRename(oldName, newName); err != nil {
		return RenameResult{}, err
	}

	updated, err := e.device.RenameFile(ctx, oldName, newName)
	e.record(models.OpRename, oldName, newName, "", err)
	if err != nil {
		return RenameResult{}, err
	}

	scope := library.ScopeSongs
	if updated {
		scope = library.ScopeFull
	}
	view, err := e.view.RefreshScope(ctx, scope)
	return RenameResult{MappingsUpdated: updated, Scope: scope, View: view}, err
}

// DeletePrompt is the confirmation question for deleting name.
func DeletePrompt(name string) string {
	return fmt.Sprintf("Delete %s? This cannot be undone.", name)
}

// Delete removes a stored file after the operator confirms.
func (e *LibraryEngine) Delete(ctx context.Context, name string, confirm Confirmer) (library.View, error) {
	if strings.TrimSpace(name) == "" {
		return e.View(), fmt.Errorf("%w: file name", shared.ErrMissingArgument)
	}
	if confirm == nil || !confirm.Confirm(DeletePrompt(name)) {
		return e.View(), shared.ErrAborted
	}

	err := e.device.DeleteFile(ctx, name)
	e.record(models.OpDelete, name, "", "", err)
	if err != nil {
		return e.View(), err
	}
	return e.view.Refresh(ctx)
}

// Assign maps tagID to song, replacing an existing mapping only with confirmation.
//
// Once the library has been loaded, a conflict in the view is confirmed before any request,
// so a refused overwrite sends nothing. The device's mappings are always re-read before a
// write; an existing mapping the view did not show is confirmed again.
func (e *LibraryEngine) Assign(ctx context.Context, tagID, song string, confirm Confirmer) (MappingPlan, MappingOutcome, error) {
	var cached *MappingPlan
	if e.view.MappingsCurrent() {
		plan, err := PlanFrom(e.View().Mappings(), tagID, song)
		if err != nil {
			return plan, MappingUnchanged, err
		}
		if plan.Conflict() && (confirm == nil || !confirm.Confirm(plan.Prompt())) {
			return plan, MappingUnchanged, shared.ErrAborted
		}
		cached = &plan
	}

	plan, err := e.coordinator.Plan(ctx, tagID, song)
	if err != nil {
		return plan, MappingUnchanged, err
	}
	stale := cached != nil && !samePlan(*cached, plan)
	if stale {
		e.logger.Warn("tag mapping changed on the device", "tag", plan.TagID)
	} else if cached != nil && cached.Conflict() {
		confirm = AlwaysConfirm
	}

	outcome, err := e.coordinator.Execute(ctx, plan, confirm)
	if errors.Is(err, shared.ErrAborted) {
		if stale {
			if _, refreshErr := e.view.Refresh(ctx); refreshErr != nil {
				e.logger.Warn("failed to refresh after refused overwrite", "error", refreshErr)
			}
		}
		return plan, outcome, err
	}

	e.recordAssignment(plan, outcome, err)

	if !outcome.Changed() {
		if stale && err == nil {
			_, err = e.view.Refresh(ctx)
		}
		return plan, outcome, err
	}
	if _, refreshErr := e.view.Refresh(ctx); err == nil {
		err = refreshErr
	}
	return plan, outcome, err
}

// samePlan reports whether a and b would replace the same mapping.
func samePlan(a, b MappingPlan) bool {
	if a.Existing == nil || b.Existing == nil {
		return a.Existing == nil && b.Existing == nil
	}
	return a.Existing.Song == b.Existing.Song
}

func (e *LibraryEngine) recordAssignment(plan MappingPlan, outcome MappingOutcome, err error) {
	switch {
	case outcome == MappingReplaced:
		e.record(models.OpUnmap, plan.TagID, plan.Existing.Song, "", nil)
		e.record(models.OpMap, plan.TagID, plan.Song, "", nil)
	case outcome == MappingRemoved:
		e.record(models.OpUnmap, plan.TagID, plan.Existing.Song, "", nil)
		e.record(models.OpMap, plan.TagID, plan.Song, "", err)
	case outcome == MappingAdded:
		e.record(models.OpMap, plan.TagID, plan.Song, "", nil)
	case err != nil && plan.Conflict():
		e.record(models.OpUnmap, plan.TagID, plan.Existing.Song, "", err)
	case err != nil:
		e.record(models.OpMap, plan.TagID, plan.Song, "", err)
	}
}

// UnmapSong removes the mapping shown for song.
func (e *LibraryEngine) UnmapSong(ctx context.Context, song string, confirm Confirmer) (models.Mapping, error) {
	if strings.TrimSpace(song) == "" {
		return models.Mapping{}, shared.ErrMissingSong
	}

	mappings, err := e.knownMappings(ctx)
	if err != nil {
		return models.Mapping{}, err
	}
	for _, m := range mappings {
		if m.Song == song {
			return m, e.remove(ctx, m, confirm)
		}
	}
	return models.Mapping{}, fmt.Errorf("%w: %s has no tag mapping", shared.ErrInvalidInput, song)
}

// UnmapTag removes the mapping for tagID.
func (e *LibraryEngine) UnmapTag(ctx context.Context, tagID string, confirm Confirmer) (models.Mapping, error) {
	if strings.TrimSpace(tagID) == "" {
		return models.Mapping{}, shared.ErrMissingTag
	}

	mappings, err := e.knownMappings(ctx)
	if err != nil {
		return models.Mapping{}, err
	}
	for _, m := range mappings {
		if m.TagID == tagID {
			return m, e.remove(ctx, m, confirm)
		}
	}
	return models.Mapping{}, fmt.Errorf("%w: tag %s is not mapped", shared.ErrInvalidInput, tagID)
}

func (e *LibraryEngine) remove(ctx context.Context, m models.Mapping, confirm Confirmer) error {
	_, err := e.coordinator.Remove(ctx, m, confirm)
	if errors.Is(err, shared.ErrAborted) {
		return err
	}
	e.record(models.OpUnmap, m.TagID, m.Song, "", err)
	if err != nil {
		return err
	}
	_, err = e.view.Refresh(ctx)
	return err
}

func (e *LibraryEngine) knownMappings(ctx context.Context) ([]models.Mapping, error) {
	if e.view.MappingsCurrent() {
		return e.View().Mappings(), nil
	}
	mappings, err := e.device.Mappings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load mappings: %w", err)
	}
	return mappings, nil
}

func (e *LibraryEngine) record(kind models.OperationKind, subject, detail, batchID string, err error) {
	if e.journal == nil {
		return
	}

	entry := models.NewJournalEntry(kind, subject, detail, e.device.Name(), err)
	entry.SetBatchID(batchID)
	if jerr := e.journal.Create(entry); jerr != nil {
		e.logger.Warn("failed to record operation", "kind", kind, "subject", subject, "error", jerr)
	}
}
