package concepts

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/reelpost/backend/internal/models"
	"github.com/reelpost/backend/pkg/queue"
	"github.com/reelpost/backend/pkg/storage"
)

type fakeBlobStore struct {
	uploaded      []string // keys in call order
	failThumbnail bool
	failVideo     bool
	failSfx       map[string]bool // by base filename
}

func (f *fakeBlobStore) Upload(ctx context.Context, key, contentType string, body io.Reader, size int64) (string, error) {
	base := path.Base(key)
	switch {
	case strings.HasPrefix(key, storage.FolderThumbnails+"/") && f.failThumbnail:
		return "", errors.New("thumbnail upload refused")
	case strings.HasPrefix(key, storage.FolderVideos+"/") && f.failVideo:
		return "", errors.New("video upload refused")
	case strings.HasPrefix(key, storage.FolderSfx+"/") && f.failSfx[base]:
		return "", errors.New("sfx upload refused")
	}
	f.uploaded = append(f.uploaded, key)
	return "https://cdn.test/" + key, nil
}

type fakeRecordStore struct {
	concepts    []*models.VideoConcept
	sfx         []*models.SfxAsset
	failConcept bool
	failSfx     map[string]bool // by sfx name
}

func (f *fakeRecordStore) CreateConcept(ctx context.Context, c *models.VideoConcept) error {
	if f.failConcept {
		return errors.New("insert refused")
	}
	c.ID = uuid.New()
	c.CreatedAt = time.Now()
	cp := *c
	f.concepts = append(f.concepts, &cp)
	return nil
}

func (f *fakeRecordStore) CreateSfxAsset(ctx context.Context, a *models.SfxAsset) error {
	if f.failSfx[a.SfxName] {
		return errors.New("insert refused")
	}
	a.ID = uuid.New()
	a.CreatedAt = time.Now()
	cp := *a
	f.sfx = append(f.sfx, &cp)
	return nil
}

type fakeCleanupQueue struct {
	payloads []queue.OrphanCleanupPayload
}

func (f *fakeCleanupQueue) EnqueueOrphanCleanup(ctx context.Context, payload queue.OrphanCleanupPayload) error {
	f.payloads = append(f.payloads, payload)
	return nil
}

func submission(sfxNames ...string) Submission {
	sfx := make([]File, 0, len(sfxNames))
	for _, name := range sfxNames {
		sfx = append(sfx, File{Name: name, Body: strings.NewReader("audio"), Size: 5})
	}
	return Submission{
		UserID:      uuid.New(),
		Title:       "Sunset Timelapse",
		Description: "A calm sunset",
		Thumbnail:   &File{Name: "sunset.jpg", Body: strings.NewReader("img"), Size: 3},
		Video:       &File{Name: "sunset.mp4", Body: strings.NewReader("vid"), Size: 3},
		Sfx:         sfx,
	}
}

func newTestPublisher(blobs *fakeBlobStore, records *fakeRecordStore, cleanup *fakeCleanupQueue) *Publisher {
	return NewPublisher(blobs, records, cleanup, time.Minute, zap.NewNop())
}

func TestPublishSuccess(t *testing.T) {
	blobs := &fakeBlobStore{}
	records := &fakeRecordStore{}
	cleanup := &fakeCleanupQueue{}
	p := newTestPublisher(blobs, records, cleanup)

	var snaps []Snapshot
	result, err := p.Publish(context.Background(), submission("wind.mp3", "birds.mp3"), func(pr Progress) {
		snaps = append(snaps, pr.Snapshot())
	})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}

	if len(records.concepts) != 1 {
		t.Fatalf("concepts created: want=1 got=%d", len(records.concepts))
	}
	c := records.concepts[0]
	if c.ThumbnailURL == "" || c.VideoURL == "" {
		t.Fatalf("concept missing media URLs: %+v", c)
	}
	if c.ViewCount != 0 {
		t.Fatalf("view count: want=0 got=%d", c.ViewCount)
	}
	if len(records.sfx) != 2 {
		t.Fatalf("sfx created: want=2 got=%d", len(records.sfx))
	}
	for i, name := range []string{"wind.mp3", "birds.mp3"} {
		if records.sfx[i].SfxName != name {
			t.Fatalf("sfx[%d] name: want=%q got=%q", i, name, records.sfx[i].SfxName)
		}
		if records.sfx[i].VideoConceptID != result.Concept.ID {
			t.Fatalf("sfx[%d] references %s, want %s", i, records.sfx[i].VideoConceptID, result.Concept.ID)
		}
	}
	for i, r := range result.Sfx {
		if r.Error != "" || r.URL == "" {
			t.Fatalf("sfx result[%d]: %+v", i, r)
		}
	}
	if len(cleanup.payloads) != 0 {
		t.Fatalf("unexpected cleanup jobs: %+v", cleanup.payloads)
	}

	wantPercents := []int{20, 40, 60, 75, 90, 100}
	if len(snaps) != len(wantPercents) {
		t.Fatalf("progress updates: want=%d got=%d (%+v)", len(wantPercents), len(snaps), snaps)
	}
	for i, want := range wantPercents {
		if snaps[i].Percent != want {
			t.Fatalf("progress[%d] percent: want=%d got=%d", i, want, snaps[i].Percent)
		}
	}
	if snaps[len(snaps)-1].Stage != string(StageDone) {
		t.Fatalf("final stage: got=%q", snaps[len(snaps)-1].Stage)
	}
}

func TestPublishValidationNoSideEffects(t *testing.T) {
	mutations := []struct {
		name   string
		mutate func(*Submission)
	}{
		{"missing title", func(s *Submission) { s.Title = "   " }},
		{"missing description", func(s *Submission) { s.Description = "" }},
		{"missing thumbnail", func(s *Submission) { s.Thumbnail = nil }},
		{"missing video", func(s *Submission) { s.Video = nil }},
	}
	for _, m := range mutations {
		t.Run(m.name, func(t *testing.T) {
			blobs := &fakeBlobStore{}
			records := &fakeRecordStore{}
			p := newTestPublisher(blobs, records, &fakeCleanupQueue{})

			sub := submission("wind.mp3")
			m.mutate(&sub)

			calls := 0
			_, err := p.Publish(context.Background(), sub, func(Progress) { calls++ })
			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("want ValidationError, got=%v", err)
			}
			if len(blobs.uploaded) != 0 || len(records.concepts) != 0 || len(records.sfx) != 0 {
				t.Fatalf("side effects after validation failure: uploads=%d concepts=%d sfx=%d",
					len(blobs.uploaded), len(records.concepts), len(records.sfx))
			}
			if calls != 0 {
				t.Fatalf("progress reported before validation passed: %d updates", calls)
			}
		})
	}
}

func TestPublishVideoUploadFailure(t *testing.T) {
	blobs := &fakeBlobStore{failVideo: true}
	records := &fakeRecordStore{}
	cleanup := &fakeCleanupQueue{}
	p := newTestPublisher(blobs, records, cleanup)

	var last Snapshot
	_, err := p.Publish(context.Background(), submission(), func(pr Progress) { last = pr.Snapshot() })

	var pubErr *PublishError
	if !errors.As(err, &pubErr) {
		t.Fatalf("want PublishError, got=%v", err)
	}
	if pubErr.Stage != PublishStageVideo {
		t.Fatalf("stage: want=%q got=%q", PublishStageVideo, pubErr.Stage)
	}
	if len(records.concepts) != 0 {
		t.Fatalf("concept created despite video failure")
	}
	// The thumbnail object is orphaned and must be handed to cleanup.
	if len(cleanup.payloads) != 1 {
		t.Fatalf("cleanup jobs: want=1 got=%d", len(cleanup.payloads))
	}
	keys := cleanup.payloads[0].Keys
	if len(keys) != 1 || !strings.HasPrefix(keys[0], storage.FolderThumbnails+"/") {
		t.Fatalf("cleanup keys: %+v", keys)
	}
	if last.Stage != string(StageFailed) || last.Percent != 0 {
		t.Fatalf("final progress: %+v", last)
	}
	if !strings.Contains(last.Status, "uploading video") {
		t.Fatalf("failed status should name the stage, got=%q", last.Status)
	}
}

func TestPublishConceptCreateFailure(t *testing.T) {
	blobs := &fakeBlobStore{}
	records := &fakeRecordStore{failConcept: true}
	cleanup := &fakeCleanupQueue{}
	p := newTestPublisher(blobs, records, cleanup)

	_, err := p.Publish(context.Background(), submission("wind.mp3", "birds.mp3"), nil)

	var pubErr *PublishError
	if !errors.As(err, &pubErr) {
		t.Fatalf("want PublishError, got=%v", err)
	}
	if pubErr.Stage != PublishStageConcept {
		t.Fatalf("stage: want=%q got=%q", PublishStageConcept, pubErr.Stage)
	}
	if len(records.sfx) != 0 {
		t.Fatalf("sfx created despite concept failure")
	}
	// Only thumbnail and video were uploaded; both are orphans now.
	if len(blobs.uploaded) != 2 {
		t.Fatalf("uploads: want=2 got=%d (%v)", len(blobs.uploaded), blobs.uploaded)
	}
	if len(cleanup.payloads) != 1 || len(cleanup.payloads[0].Keys) != 2 {
		t.Fatalf("cleanup payloads: %+v", cleanup.payloads)
	}
	if cleanup.payloads[0].Stage != PublishStageConcept {
		t.Fatalf("cleanup stage: got=%q", cleanup.payloads[0].Stage)
	}
}

func TestPublishSfxFailureDoesNotFailPublish(t *testing.T) {
	blobs := &fakeBlobStore{failSfx: map[string]bool{"wind.mp3": true}}
	records := &fakeRecordStore{}
	cleanup := &fakeCleanupQueue{}
	p := newTestPublisher(blobs, records, cleanup)

	result, err := p.Publish(context.Background(), submission("rain.mp3", "wind.mp3", "birds.mp3"), nil)
	if err != nil {
		t.Fatalf("sfx failure flipped publish outcome: %v", err)
	}

	// The pipeline continues past the failed item.
	if len(records.sfx) != 2 {
		t.Fatalf("sfx created: want=2 got=%d", len(records.sfx))
	}
	if result.Sfx[0].URL == "" || result.Sfx[0].Error != "" {
		t.Fatalf("sfx[0] result: %+v", result.Sfx[0])
	}
	if result.Sfx[1].Error == "" {
		t.Fatalf("sfx[1] should carry the failure: %+v", result.Sfx[1])
	}
	if result.Sfx[2].URL == "" || result.Sfx[2].Error != "" {
		t.Fatalf("sfx[2] result: %+v", result.Sfx[2])
	}
	// Upload never happened, so there is nothing to clean up.
	if len(cleanup.payloads) != 0 {
		t.Fatalf("unexpected cleanup jobs: %+v", cleanup.payloads)
	}
}

func TestPublishSfxCreateFailureCleansOrphan(t *testing.T) {
	blobs := &fakeBlobStore{}
	records := &fakeRecordStore{failSfx: map[string]bool{"wind.mp3": true}}
	cleanup := &fakeCleanupQueue{}
	p := newTestPublisher(blobs, records, cleanup)

	result, err := p.Publish(context.Background(), submission("wind.mp3"), nil)
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if result.Sfx[0].Error == "" {
		t.Fatalf("sfx result should carry the failure: %+v", result.Sfx[0])
	}
	// The sfx object was uploaded but its record create failed: orphan.
	if len(cleanup.payloads) != 1 {
		t.Fatalf("cleanup jobs: want=1 got=%d", len(cleanup.payloads))
	}
	keys := cleanup.payloads[0].Keys
	if len(keys) != 1 || !strings.HasPrefix(keys[0], storage.FolderSfx+"/") {
		t.Fatalf("cleanup keys: %+v", keys)
	}
	if cleanup.payloads[0].Stage != PublishStageSfx {
		t.Fatalf("cleanup stage: got=%q", cleanup.payloads[0].Stage)
	}
}

func TestPublishAssignsPublishID(t *testing.T) {
	p := newTestPublisher(&fakeBlobStore{}, &fakeRecordStore{}, nil)

	sub := submission()
	want := uuid.New()
	sub.PublishID = want
	blobs := p.blobs.(*fakeBlobStore)
	if _, err := p.Publish(context.Background(), sub, nil); err != nil {
		t.Fatalf("publish: %v", err)
	}
	for _, key := range blobs.uploaded {
		if !strings.Contains(key, want.String()) {
			t.Fatalf("key %q does not use supplied publish id %s", key, want)
		}
	}
}
