package tasks

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/nfcbox/internal/models"
	"github.com/desertthunder/nfcbox/internal/shared"
)

// SongPlaceholder is the unselected entry of the song picker; it never names a song.
const SongPlaceholder = "Select a song..."

// MappingClient is the part of the device the coordinator writes through.
type MappingClient interface {
	Mappings(ctx context.Context) ([]models.Mapping, error)
	AddMapping(ctx context.Context, tagID, song string) error
	DeleteMapping(ctx context.Context, tagID string) error
}

// Confirmer asks the operator a yes/no question.
type Confirmer interface {
	Confirm(prompt string) bool
}

// ConfirmFunc adapts a function to [Confirmer].
type ConfirmFunc func(prompt string) bool

func (f ConfirmFunc) Confirm(prompt string) bool { return f(prompt) }

var (
	// AlwaysConfirm answers yes without asking.
	AlwaysConfirm Confirmer = ConfirmFunc(func(string) bool { return true })

	// NeverConfirm answers no without asking.
	NeverConfirm Confirmer = ConfirmFunc(func(string) bool { return false })
)

// ConfirmPrompt answers yes to prompt only, for a question the operator already answered.
func ConfirmPrompt(prompt string) Confirmer {
	return ConfirmFunc(func(p string) bool { return p == prompt })
}

// MappingPlan is a pending tag assignment and the mapping it would replace.
type MappingPlan struct {
	TagID    string
	Song     string
	Existing *models.Mapping
}

// Conflict reports whether the tag already points at a different song.
func (p MappingPlan) Conflict() bool {
	return p.Existing != nil && p.Existing.Song != p.Song
}

// NoOp reports whether the tag already points at the requested song.
func (p MappingPlan) NoOp() bool {
	return p.Existing != nil && p.Existing.Song == p.Song
}

// Prompt is the overwrite question for a conflicting plan.
func (p MappingPlan) Prompt() string {
	if !p.Conflict() {
		return ""
	}
	return fmt.Sprintf("Tag %s is already mapped to %q. Overwrite with %q?", p.TagID, p.Existing.Song, p.Song)
}

// MappingOutcome is what [Coordinator.Execute] did.
type MappingOutcome int

const (
	MappingUnchanged MappingOutcome = iota
	MappingAdded
	MappingReplaced
	MappingRemoved
)

func (o MappingOutcome) String() string {
	switch o {
	case MappingUnchanged:
		return "unchanged"
	case MappingAdded:
		return "added"
	case MappingReplaced:
		return "replaced"
	case MappingRemoved:
		return "removed"
	default:
		return ""
	}
}

// Changed reports whether the device's mappings were written.
func (o MappingOutcome) Changed() bool {
	return o != MappingUnchanged
}

// Coordinator keeps at most one mapping per tag on the device.
//
// A conflicting assignment deletes the old mapping before adding the new one, and only after
// the operator confirms. Refusal issues no writes.
type Coordinator struct {
	client MappingClient
	logger *log.Logger
}

// NewCoordinator creates a coordinator over client.
func NewCoordinator(client MappingClient, logger *log.Logger) *Coordinator {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Coordinator{client: client, logger: logger}
}

// ValidateAssignment rejects an empty tag, an empty song or the picker placeholder.
func ValidateAssignment(tagID, song string) error {
	if strings.TrimSpace(tagID) == "" {
		return shared.ErrMissingTag
	}
	if strings.TrimSpace(song) == "" || song == SongPlaceholder {
		return shared.ErrMissingSong
	}
	return nil
}

// Plan validates the assignment and looks up the tag's current mapping on the device.
func (c *Coordinator) Plan(ctx context.Context, tagID, song string) (MappingPlan, error) {
	if err := ValidateAssignment(tagID, song); err != nil {
		return MappingPlan{}, err
	}

	mappings, err := c.client.Mappings(ctx)
	if err != nil {
		return MappingPlan{}, fmt.Errorf("failed to check existing mappings: %w", err)
	}
	return PlanFrom(mappings, tagID, song)
}

// PlanFrom plans against mappings already in hand, without any request.
func PlanFrom(mappings []models.Mapping, tagID, song string) (MappingPlan, error) {
	tagID = strings.TrimSpace(tagID)
	if err := ValidateAssignment(tagID, song); err != nil {
		return MappingPlan{}, err
	}

	plan := MappingPlan{TagID: tagID, Song: song}
	for _, m := range mappings {
		if m.TagID == tagID {
			existing := m
			plan.Existing = &existing
			break
		}
	}
	return plan, nil
}

// Execute applies plan, asking confirm first when it would overwrite a mapping.
//
// Delete-then-add runs strictly in order; a failed delete stops before the add.
func (c *Coordinator) Execute(ctx context.Context, plan MappingPlan, confirm Confirmer) (MappingOutcome, error) {
	if plan.NoOp() {
		c.logger.Info("tag already mapped to song", "tag", plan.TagID, "song", plan.Song)
		return MappingUnchanged, nil
	}

	outcome := MappingAdded
	if plan.Conflict() {
		if confirm == nil || !confirm.Confirm(plan.Prompt()) {
			return MappingUnchanged, shared.ErrAborted
		}

		if err := c.client.DeleteMapping(ctx, plan.TagID); err != nil {
			return MappingUnchanged, fmt.Errorf("failed to remove mapping for tag %s: %w", plan.TagID, err)
		}
		c.logger.Info("mapping removed", "tag", plan.TagID, "song", plan.Existing.Song)
		outcome = MappingReplaced
	}

	if err := c.client.AddMapping(ctx, plan.TagID, plan.Song); err != nil {
		if outcome == MappingReplaced {
			return MappingRemoved, fmt.Errorf("failed to assign tag %s after removing the old mapping: %w", plan.TagID, err)
		}
		return MappingUnchanged, fmt.Errorf("failed to assign tag %s: %w", plan.TagID, err)
	}

	c.logger.Info("mapping added", "tag", plan.TagID, "song", plan.Song)
	return outcome, nil
}

// Assign plans against the device's mappings and executes.
func (c *Coordinator) Assign(ctx context.Context, tagID, song string, confirm Confirmer) (MappingPlan, MappingOutcome, error) {
	plan, err := c.Plan(ctx, tagID, song)
	if err != nil {
		return plan, MappingUnchanged, err
	}
	outcome, err := c.Execute(ctx, plan, confirm)
	return plan, outcome, err
}

// RemovePrompt is the confirmation question for removing song's mapping.
func RemovePrompt(song string) string {
	return fmt.Sprintf("Remove NFC tag mapping for %q?", song)
}

// Remove deletes the mapping after the operator confirms. Refusal issues no request.
func (c *Coordinator) Remove(ctx context.Context, mapping models.Mapping, confirm Confirmer) (MappingOutcome, error) {
	if strings.TrimSpace(mapping.TagID) == "" {
		return MappingUnchanged, shared.ErrMissingTag
	}
	if confirm == nil || !confirm.Confirm(RemovePrompt(mapping.Song)) {
		return MappingUnchanged, shared.ErrAborted
	}

	if err := c.client.DeleteMapping(ctx, mapping.TagID); err != nil {
		return MappingUnchanged, fmt.Errorf("failed to remove mapping: %w", err)
	}
	c.logger.Info("mapping removed", "tag", mapping.TagID, "song", mapping.Song)
	return MappingRemoved, nil
}
