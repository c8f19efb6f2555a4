package concepts

import "fmt"

// Stage identifies a publish pipeline stage.
type Stage string

const (
	StageIdle               Stage = "idle"
	StageUploadingThumbnail Stage = "uploading_thumbnail"
	StageUploadingVideo     Stage = "uploading_video"
	StageSavingConcept      Stage = "saving_concept"
	StageUploadingSfx       Stage = "uploading_sfx"
	StageDone               Stage = "done"
	StageFailed             Stage = "failed"
)

// Progress is a pure value type mapping the current pipeline stage to a
// percentage and a status string. Transitions move forward through the
// success path; any failure jumps to StageFailed, which resets the percentage
// to zero but keeps the text of the stage that failed. There is no cancelled
// state; a started publish runs to completion or failure.
type Progress struct {
	stage      Stage
	sfxDone    int
	sfxTotal   int
	lastStatus string // status text at the moment of failure
}

// NewProgress returns the idle progress value.
func NewProgress() Progress {
	return Progress{stage: StageIdle}
}

// Stage returns the current stage.
func (p Progress) Stage() Stage { return p.stage }

// UploadingThumbnail advances to the thumbnail upload stage.
func (p Progress) UploadingThumbnail() Progress {
	return Progress{stage: StageUploadingThumbnail}
}

// UploadingVideo advances to the main video upload stage.
func (p Progress) UploadingVideo() Progress {
	return Progress{stage: StageUploadingVideo}
}

// SavingConcept advances to the concept record creation stage.
func (p Progress) SavingConcept() Progress {
	return Progress{stage: StageSavingConcept}
}

// UploadingSfx records that done of total sound effects have been processed.
func (p Progress) UploadingSfx(done, total int) Progress {
	return Progress{stage: StageUploadingSfx, sfxDone: done, sfxTotal: total}
}

// Done advances to the terminal success stage.
func (p Progress) Done() Progress {
	return Progress{stage: StageDone}
}

// Failed transitions to the terminal failure stage, retaining the status text
// of the stage the pipeline was in.
func (p Progress) Failed() Progress {
	return Progress{stage: StageFailed, lastStatus: p.Status()}
}

// Percent returns the progress percentage for the current stage.
func (p Progress) Percent() int {
	switch p.stage {
	case StageIdle:
		return 0
	case StageUploadingThumbnail:
		return 20
	case StageUploadingVideo:
		return 40
	case StageSavingConcept:
		return 60
	case StageUploadingSfx:
		if p.sfxTotal <= 0 {
			return 60
		}
		return 60 + p.sfxDone*30/p.sfxTotal
	case StageDone:
		return 100
	case StageFailed:
		return 0
	}
	return 0
}

// Status returns the human-readable status string for the current stage.
func (p Progress) Status() string {
	switch p.stage {
	case StageIdle:
		return "waiting"
	case StageUploadingThumbnail:
		return "uploading thumbnail"
	case StageUploadingVideo:
		return "uploading video"
	case StageSavingConcept:
		return "saving video concept"
	case StageUploadingSfx:
		return fmt.Sprintf("uploading sound effects (%d/%d)", p.sfxDone, p.sfxTotal)
	case StageDone:
		return "published"
	case StageFailed:
		return "failed: " + p.lastStatus
	}
	return ""
}

// Snapshot is the serializable form of a Progress value.
type Snapshot struct {
	Stage    string `json:"stage"`
	Percent  int    `json:"percent"`
	Status   string `json:"status"`
	SfxDone  int    `json:"sfx_done,omitempty"`
	SfxTotal int    `json:"sfx_total,omitempty"`
}

// Snapshot returns the serializable form of p.
func (p Progress) Snapshot() Snapshot {
	return Snapshot{
		Stage:    string(p.stage),
		Percent:  p.Percent(),
		Status:   p.Status(),
		SfxDone:  p.sfxDone,
		SfxTotal: p.sfxTotal,
	}
}
