package concepts

import (
	"strings"
	"testing"
)

func TestProgressSuccessPath(t *testing.T) {
	p := NewProgress()
	if got := p.Percent(); got != 0 {
		t.Fatalf("idle percent: want=0 got=%d", got)
	}
	if got := p.Status(); got != "waiting" {
		t.Fatalf("idle status: want=%q got=%q", "waiting", got)
	}

	steps := []struct {
		next    Progress
		stage   Stage
		percent int
	}{
		{p.UploadingThumbnail(), StageUploadingThumbnail, 20},
		{p.UploadingVideo(), StageUploadingVideo, 40},
		{p.SavingConcept(), StageSavingConcept, 60},
		{p.Done(), StageDone, 100},
	}
	for _, s := range steps {
		if s.next.Stage() != s.stage {
			t.Fatalf("stage: want=%q got=%q", s.stage, s.next.Stage())
		}
		if got := s.next.Percent(); got != s.percent {
			t.Fatalf("percent at %s: want=%d got=%d", s.stage, s.percent, got)
		}
	}
}

func TestProgressSfxInterpolation(t *testing.T) {
	cases := []struct {
		done, total int
		percent     int
	}{
		{0, 2, 60},
		{1, 2, 75},
		{2, 2, 90},
		{1, 3, 70},
		{3, 3, 90},
		{0, 0, 60}, // degenerate: no sfx requested
	}
	for _, c := range cases {
		p := NewProgress().UploadingSfx(c.done, c.total)
		if got := p.Percent(); got != c.percent {
			t.Fatalf("sfx %d/%d percent: want=%d got=%d", c.done, c.total, c.percent, got)
		}
	}

	p := NewProgress().UploadingSfx(1, 4)
	if got := p.Status(); got != "uploading sound effects (1/4)" {
		t.Fatalf("sfx status: got=%q", got)
	}
}

func TestProgressFailedRetainsStageText(t *testing.T) {
	p := NewProgress().UploadingVideo().Failed()
	if p.Stage() != StageFailed {
		t.Fatalf("stage: want=%q got=%q", StageFailed, p.Stage())
	}
	if got := p.Percent(); got != 0 {
		t.Fatalf("failed percent: want=0 got=%d", got)
	}
	if !strings.Contains(p.Status(), "uploading video") {
		t.Fatalf("failed status should retain stage text, got=%q", p.Status())
	}
}

func TestProgressSnapshot(t *testing.T) {
	snap := NewProgress().UploadingSfx(1, 2).Snapshot()
	if snap.Stage != string(StageUploadingSfx) {
		t.Fatalf("snapshot stage: got=%q", snap.Stage)
	}
	if snap.Percent != 75 {
		t.Fatalf("snapshot percent: want=75 got=%d", snap.Percent)
	}
	if snap.SfxDone != 1 || snap.SfxTotal != 2 {
		t.Fatalf("snapshot sfx counts: got done=%d total=%d", snap.SfxDone, snap.SfxTotal)
	}
}
