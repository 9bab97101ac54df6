package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/nfcbox/internal/models"
	"github.com/desertthunder/nfcbox/internal/shared"
)

type historyEntry struct {
	Sequence int       `json:"sequence"`
	Kind     string    `json:"kind"`
	Subject  string    `json:"subject"`
	Detail   string    `json:"detail,omitempty"`
	Status   string    `json:"status"`
	Error    string    `json:"error,omitempty"`
	Device   string    `json:"device"`
	BatchID  string    `json:"batch_id,omitempty"`
	At       time.Time `json:"at"`
}

func newHistoryEntry(e *models.JournalEntry) historyEntry {
	return historyEntry{
		Sequence: e.Sequence(),
		Kind:     string(e.Kind()),
		Subject:  e.Subject(),
		Detail:   e.Detail(),
		Status:   string(e.Status()),
		Error:    e.ErrorMessage(),
		Device:   e.Device(),
		BatchID:  e.BatchID(),
		At:       e.CreatedAt(),
	}
}

// History prints journaled operations, oldest first.
func (r *Runner) History(ctx context.Context, cmd *cli.Command) error {
	journal := r.recordOperations()
	if journal == nil {
		return fmt.Errorf("%w: the operation journal is disabled (database.path)", shared.ErrMissingConfig)
	}

	criteria := map[string]any{}
	if limit := cmd.Int("limit"); limit > 0 {
		criteria["limit"] = limit
	}
	if kind := cmd.String("kind"); kind != "" {
		switch k := models.OperationKind(kind); k {
		case models.OpUpload, models.OpRename, models.OpDelete, models.OpMap, models.OpUnmap:
			criteria["kind"] = k
		default:
			return fmt.Errorf("%w: unknown operation kind %q", shared.ErrInvalidInput, kind)
		}
	}
	if cmd.Bool("failed") {
		criteria["status"] = models.StatusFailed
	}

	entries, err := journal.List(criteria)
	if err != nil {
		return fmt.Errorf("failed to read journal: %w", err)
	}

	if cmd.Bool("json") {
		out := make([]historyEntry, 0, len(entries))
		for _, e := range entries {
			out = append(out, newHistoryEntry(e))
		}
		return r.writeJSON(out, true)
	}

	if len(entries) == 0 {
		return r.writePlain("No operations recorded.\n")
	}

	w := tabwriter.NewWriter(r.output, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "#\tWHEN\tKIND\tSUBJECT\tDETAIL\tSTATUS")
	for _, e := range entries {
		status := string(e.Status())
		if e.ErrorMessage() != "" {
			status += ": " + e.ErrorMessage()
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
			e.Sequence(), e.CreatedAt().Local().Format("2006-01-02 15:04:05"), e.Kind(), e.Subject(), e.Detail(), status)
	}
	return w.Flush()
}
