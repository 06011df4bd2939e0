package schedule

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"postbot/internal/post"
	"postbot/internal/storage"
	logx "postbot/pkg/logx"
)

var testLoc = time.FixedZone("IST", 5*3600+1800)

func sample(owner int64, at time.Time) ScheduledPost {
	return ScheduledPost{
		OwnerID: owner,
		FireAt:  at,
		Content: post.Content{
			Media:    post.Photo{FileID: "file-1"},
			LinkText: "http://x/1",
			Variant:  post.VariantXRated,
		},
		SupplementaryLink: "https://t.me/TutorialsNG/11",
		Channels:          []string{"-100", "-200"},
	}
}

func TestAppendRejectsDuplicatePending(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewStore(storage.NewMemory(), testLoc, logx.Nop())
	at := time.Date(2026, 3, 1, 10, 30, 0, 0, testLoc)

	p, err := s.Append(ctx, sample(1, at))
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if p.JobID != JobID(1, at) || p.Status.State != StatePending {
		t.Fatalf("Append = %+v", p)
	}
	if _, err := s.Append(ctx, sample(1, at.Add(300*time.Millisecond))); !errors.Is(err, ErrAlreadyScheduled) {
		t.Fatalf("duplicate err = %v", err)
	}
	if _, err := s.Append(ctx, sample(2, at)); err != nil {
		t.Fatalf("other owner same time: %v", err)
	}
}

func TestMarkPostedIdempotent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewStore(storage.NewMemory(), testLoc, logx.Nop())
	at := time.Date(2026, 3, 1, 10, 30, 0, 0, testLoc)
	if _, err := s.Append(ctx, sample(1, at)); err != nil {
		t.Fatal(err)
	}

	ok, err := s.MarkPosted(ctx, 1, at, 1, 2)
	if err != nil || !ok {
		t.Fatalf("MarkPosted = %v, %v", ok, err)
	}
	ok, err = s.MarkPosted(ctx, 1, at, 2, 2)
	if err != nil || ok {
		t.Fatalf("second MarkPosted = %v, %v", ok, err)
	}
	l := s.ListFor(ctx, 1)
	if len(l.Posted) != 1 || l.Posted[0].Status != (Status{State: StatePosted, Success: 1, Total: 2}) {
		t.Fatalf("Posted = %+v", l.Posted)
	}
	if got := l.Posted[0].Status.String(); got != "✅ Posted (1/2 channels)" {
		t.Fatalf("status text = %q", got)
	}
	// After posting, the same slot can be scheduled again.
	if _, err := s.Append(ctx, sample(1, at)); err != nil {
		t.Fatalf("re-append after posted: %v", err)
	}
}

func TestListForOrderingAndLimit(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewStore(storage.NewMemory(), testLoc, logx.Nop())
	base := time.Date(2026, 3, 1, 8, 0, 0, 0, testLoc)

	for i := 0; i < 7; i++ {
		at := base.Add(time.Duration(i) * time.Hour)
		if _, err := s.Append(ctx, sample(1, at)); err != nil {
			t.Fatal(err)
		}
		if _, err := s.MarkPosted(ctx, 1, at, 2, 2); err != nil {
			t.Fatal(err)
		}
	}
	for _, h := range []int{30, 20, 25} {
		if _, err := s.Append(ctx, sample(1, base.Add(time.Duration(h)*time.Hour))); err != nil {
			t.Fatal(err)
		}
	}

	l := s.ListFor(ctx, 1)
	if len(l.Posted) != 5 {
		t.Fatalf("posted = %d, want 5", len(l.Posted))
	}
	if !l.Posted[0].FireAt.Equal(base.Add(6 * time.Hour)) {
		t.Fatalf("newest posted = %v", l.Posted[0].FireAt)
	}
	if len(l.Pending) != 3 {
		t.Fatalf("pending = %d, want 3", len(l.Pending))
	}
	for i := 1; i < len(l.Pending); i++ {
		if !l.Pending[i-1].FireAt.Before(l.Pending[i].FireAt) {
			t.Fatalf("pending not ascending: %v", l.Pending)
		}
	}
	if got := l.Pending[0].Status.String(); got != "⏳ Pending" {
		t.Fatalf("status text = %q", got)
	}
}

func TestPendingAcrossOwnersAndReload(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := storage.NewMemory()
	s := NewStore(st, testLoc, logx.Nop())
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, testLoc)
	_, _ = s.Append(ctx, sample(2, at.Add(time.Hour)))
	_, _ = s.Append(ctx, sample(1, at))

	reloaded := NewStore(st, testLoc, logx.Nop())
	got := reloaded.Pending(ctx)
	if len(got) != 2 || got[0].OwnerID != 1 || got[1].OwnerID != 2 {
		t.Fatalf("Pending = %+v", got)
	}
	p := got[0]
	if p.Content.Media != (post.Photo{FileID: "file-1"}) || p.Content.Variant != post.VariantXRated || len(p.Channels) != 2 {
		t.Fatalf("reloaded content = %+v", p)
	}
	if p.JobID != JobID(1, at) {
		t.Fatalf("job id changed across reload")
	}
}

func TestStoredWireFormat(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := storage.NewMemory()
	s := NewStore(st, testLoc, logx.Nop())
	at := time.Date(2026, 3, 1, 10, 5, 9, 0, testLoc)
	if _, err := s.Append(ctx, sample(9, at)); err != nil {
		t.Fatal(err)
	}
	raw, err := st.Load(ctx, "scheduled_posts")
	if err != nil {
		t.Fatal(err)
	}
	var m map[string][]map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatal(err)
	}
	rec := m["9"][0]
	if rec["fire_at"] != "2026-03-01 10:05:09" {
		t.Fatalf("fire_at = %v", rec["fire_at"])
	}
	content, _ := rec["content"].(map[string]any)
	if content["thumbnail_kind"] != "photo" || content["thumbnail_ref"] != "file-1" {
		t.Fatalf("content = %v", content)
	}
	if !strings.Contains(string(raw), `"state":"pending"`) {
		t.Fatalf("status not pending: %s", raw)
	}
}

func TestJobIDStable(t *testing.T) {
	t.Parallel()
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, testLoc)
	if JobID(1, at) != JobID(1, at.Add(400*time.Millisecond)) {
		t.Fatal("sub-second difference changed job id")
	}
	if JobID(1, at) == JobID(2, at) || JobID(1, at) == JobID(1, at.Add(time.Minute)) {
		t.Fatal("job ids collide")
	}
}
