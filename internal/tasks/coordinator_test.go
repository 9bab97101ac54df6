package tasks

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/desertthunder/nfcbox/internal/models"
	"github.com/desertthunder/nfcbox/internal/services"
	"github.com/desertthunder/nfcbox/internal/shared"
	tu "github.com/desertthunder/nfcbox/internal/testing"
)

// promptRecorder answers with answer and keeps every prompt it was shown.
type promptRecorder struct {
	answer  bool
	prompts []string
}

func (p *promptRecorder) Confirm(prompt string) bool {
	p.prompts = append(p.prompts, prompt)
	return p.answer
}

func writeSummary(dev *tu.FakeDevice) []string {
	var out []string
	for _, w := range dev.Writes() {
		tag, _ := w.JSON["tagid"].(string)
		out = append(out, w.Path+":"+tag)
	}
	return out
}

func TestCoordinator(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (*tu.FakeDevice, *Coordinator) {
		dev := tu.NewFakeDevice(t)
		dev.AddSong("A.mp3", 100, 1)
		dev.AddSong("B.mp3", 100, 2)
		return dev, NewCoordinator(services.NewDeviceService(dev.URL()), nil)
	}

	t.Run("Adds Unmapped Tag Without Asking", func(t *testing.T) {
		dev, c := setup(t)
		confirm := &promptRecorder{answer: false}

		_, outcome, err := c.Assign(ctx, "04:AA", "A.mp3", confirm)

		if err != nil || outcome != MappingAdded {
			t.Fatalf("expected added, got %s %v", outcome, err)
		}
		if len(confirm.prompts) != 0 {
			t.Errorf("expected no prompt, got %v", confirm.prompts)
		}
		if got := writeSummary(dev); strings.Join(got, ",") != "/addmapping:04:AA" {
			t.Errorf("unexpected writes %v", got)
		}
	})

	t.Run("Confirmed Overwrite Deletes Then Adds", func(t *testing.T) {
		dev, c := setup(t)
		dev.AddMapping("04:AA", "A.mp3")
		confirm := &promptRecorder{answer: true}

		plan, outcome, err := c.Assign(ctx, "04:AA", "B.mp3", confirm)

		if err != nil || outcome != MappingReplaced {
			t.Fatalf("expected replaced, got %s %v", outcome, err)
		}
		if !plan.Conflict() || plan.Existing.Song != "A.mp3" {
			t.Errorf("unexpected plan %+v", plan)
		}
		if got := writeSummary(dev); strings.Join(got, ",") != "/delmapping:04:AA,/addmapping:04:AA" {
			t.Errorf("expected delete before add, got %v", got)
		}
		mappings := dev.Mappings()
		if len(mappings) != 1 || mappings[0].Song != "B.mp3" {
			t.Errorf("expected one mapping for the tag, got %v", mappings)
		}
		if len(confirm.prompts) != 1 || !strings.Contains(confirm.prompts[0], `"A.mp3"`) {
			t.Errorf("unexpected prompts %v", confirm.prompts)
		}
	})

	t.Run("Refused Overwrite Sends No Writes", func(t *testing.T) {
		dev, c := setup(t)
		dev.AddMapping("04:AA", "A.mp3")

		_, outcome, err := c.Assign(ctx, "04:AA", "B.mp3", NeverConfirm)

		if !errors.Is(err, shared.ErrAborted) || outcome != MappingUnchanged {
			t.Fatalf("expected aborted, got %s %v", outcome, err)
		}
		if len(dev.Writes()) != 0 {
			t.Errorf("expected no writes, got %v", dev.Paths())
		}
		if dev.Mappings()[0].Song != "A.mp3" {
			t.Error("expected mapping untouched")
		}
	})

	t.Run("Refusal With Known Mappings Sends Nothing", func(t *testing.T) {
		dev, c := setup(t)
		plan, err := PlanFrom([]models.Mapping{{TagID: "04:AA", Song: "A.mp3"}}, "04:AA", "B.mp3")
		if err != nil {
			t.Fatal(err)
		}

		if _, err := c.Execute(ctx, plan, NeverConfirm); !errors.Is(err, shared.ErrAborted) {
			t.Errorf("expected aborted, got %v", err)
		}
		if len(dev.Requests()) != 0 {
			t.Errorf("expected zero requests, got %v", dev.Paths())
		}
	})

	t.Run("Same Song Is No-Op", func(t *testing.T) {
		dev, c := setup(t)
		dev.AddMapping("04:AA", "A.mp3")

		plan, outcome, err := c.Assign(ctx, "04:AA", "A.mp3", NeverConfirm)

		if err != nil || outcome != MappingUnchanged || !plan.NoOp() {
			t.Fatalf("expected no-op, got %s %v", outcome, err)
		}
		if len(dev.Writes()) != 0 {
			t.Errorf("expected no writes, got %v", dev.Paths())
		}
	})

	t.Run("Validation Sends Nothing", func(t *testing.T) {
		dev, c := setup(t)
		tests := []struct {
			tag, song string
			want      error
		}{
			{"", "A.mp3", shared.ErrMissingTag},
			{"   ", "A.mp3", shared.ErrMissingTag},
			{"04:AA", "", shared.ErrMissingSong},
			{"04:AA", SongPlaceholder, shared.ErrMissingSong},
		}

		for _, tt := range tests {
			if _, _, err := c.Assign(ctx, tt.tag, tt.song, AlwaysConfirm); !errors.Is(err, tt.want) {
				t.Errorf("Assign(%q, %q) = %v, want %v", tt.tag, tt.song, err, tt.want)
			}
		}
		if len(dev.Requests()) != 0 {
			t.Errorf("expected zero requests, got %v", dev.Paths())
		}
	})

	t.Run("Failed Delete Skips Add", func(t *testing.T) {
		dev, c := setup(t)
		dev.AddMapping("04:AA", "A.mp3")
		dev.Override("/delmapping", tu.Response{Status: http.StatusInternalServerError})

		_, outcome, err := c.Assign(ctx, "04:AA", "B.mp3", AlwaysConfirm)

		if err == nil || outcome != MappingUnchanged {
			t.Fatalf("expected failure, got %s %v", outcome, err)
		}
		if dev.Count("/addmapping") != 0 {
			t.Error("expected add never sent")
		}
	})

	t.Run("Failed Add After Delete Reports Removal", func(t *testing.T) {
		dev, c := setup(t)
		dev.AddMapping("04:AA", "A.mp3")
		dev.Override("/addmapping", tu.Response{Status: http.StatusInternalServerError})

		_, outcome, err := c.Assign(ctx, "04:AA", "B.mp3", AlwaysConfirm)

		if err == nil || outcome != MappingRemoved {
			t.Fatalf("expected removed with error, got %s %v", outcome, err)
		}
		if !outcome.Changed() {
			t.Error("expected removal to count as a change")
		}
	})

	t.Run("Remove", func(t *testing.T) {
		dev, c := setup(t)
		dev.AddMapping("04:AA", "A.mp3")
		m := models.Mapping{TagID: "04:AA", Song: "A.mp3"}

		if _, err := c.Remove(ctx, m, NeverConfirm); !errors.Is(err, shared.ErrAborted) {
			t.Errorf("expected aborted, got %v", err)
		}
		if len(dev.Requests()) != 0 {
			t.Errorf("expected zero requests on refusal, got %v", dev.Paths())
		}

		confirm := &promptRecorder{answer: true}
		outcome, err := c.Remove(ctx, m, confirm)
		if err != nil || outcome != MappingRemoved {
			t.Fatalf("expected removed, got %s %v", outcome, err)
		}
		if len(dev.Mappings()) != 0 {
			t.Errorf("expected mapping gone, got %v", dev.Mappings())
		}
		if confirm.prompts[0] != RemovePrompt("A.mp3") {
			t.Errorf("unexpected prompt %q", confirm.prompts[0])
		}
	})

	t.Run("Remove Requires Tag", func(t *testing.T) {
		_, c := setup(t)
		if _, err := c.Remove(ctx, models.Mapping{Song: "A.mp3"}, AlwaysConfirm); !errors.Is(err, shared.ErrMissingTag) {
			t.Errorf("expected ErrMissingTag, got %v", err)
		}
	})
}

func TestMappingPlan(t *testing.T) {
	t.Run("PlanFrom Trims Tag", func(t *testing.T) {
		plan, err := PlanFrom([]models.Mapping{{TagID: "04:AA", Song: "A.mp3"}}, " 04:AA ", "B.mp3")
		if err != nil {
			t.Fatal(err)
		}
		if plan.TagID != "04:AA" || !plan.Conflict() {
			t.Errorf("unexpected plan %+v", plan)
		}
	})

	t.Run("Prompt Empty Without Conflict", func(t *testing.T) {
		if p := (MappingPlan{TagID: "x", Song: "A.mp3"}).Prompt(); p != "" {
			t.Errorf("expected empty prompt, got %q", p)
		}
	})

	t.Run("Outcome Names", func(t *testing.T) {
		for o, want := range map[MappingOutcome]string{
			MappingUnchanged: "unchanged",
			MappingAdded:     "added",
			MappingReplaced:  "replaced",
			MappingRemoved:   "removed",
		} {
			if o.String() != want {
				t.Errorf("got %q, want %q", o.String(), want)
			}
		}
	})
}
