package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"postbot/internal/task/engine"
	logx "postbot/pkg/logx"
)

type fakeEngine struct {
	mu    sync.Mutex
	tasks []engine.Task
	err   error
}

func (f *fakeEngine) Enqueue(t engine.Task) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.tasks = append(f.tasks, t)
	return nil
}

func (f *fakeEngine) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.tasks)
}

func (f *fakeEngine) setErr(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func newStarted(t *testing.T, eng Enqueuer) *Service {
	t.Helper()
	s := New(Config{Enabled: true, Timezone: "UTC"}, eng, logx.Nop())
	s.Start(context.Background())
	t.Cleanup(func() { s.Stop(context.Background()) })
	return s
}

func TestParseScheduleVariants(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		raw      string
		kind     SpecKind
		source   string
		duration time.Duration
	}{
		{name: "cron", raw: "*/5 * * * *", kind: SpecCron, source: "cron"},
		{name: "descriptor", raw: "@hourly", kind: SpecCron, source: "cron"},
		{name: "prefixed cron", raw: "cron:0 0 * * *", kind: SpecCron, source: "cron"},
		{name: "duration", raw: "10m", kind: SpecInterval, source: "duration", duration: 10 * time.Minute},
		{name: "prefixed interval", raw: "interval:45s", kind: SpecInterval, source: "duration", duration: 45 * time.Second},
		{name: "every prefix hhmm", raw: "every:00:05", kind: SpecInterval, source: "hhmm", duration: 5 * time.Minute},
		{name: "hhmm", raw: "01:30", kind: SpecInterval, source: "hhmm", duration: 90 * time.Minute},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSchedule(tt.raw)
			if err != nil {
				t.Fatalf("ParseSchedule(%q) error: %v", tt.raw, err)
			}
			if got.Kind != tt.kind || got.Source != tt.source {
				t.Fatalf("got %+v, want kind %v source %s", got, tt.kind, tt.source)
			}
			if tt.kind == SpecInterval && got.Every != tt.duration {
				t.Fatalf("Every = %v, want %v", got.Every, tt.duration)
			}
		})
	}
}

func TestParseScheduleInvalid(t *testing.T) {
	t.Parallel()
	for _, raw := range []string{"", "not-a-schedule", "0s", "00:00", "cron:", "interval:abc", "01:75"} {
		if _, err := ParseSchedule(raw); err == nil {
			t.Errorf("ParseSchedule(%q) should fail", raw)
		}
	}
}

func TestNextClock(t *testing.T) {
	t.Parallel()
	loc := time.FixedZone("IST", 5*3600+1800)
	now := time.Date(2026, 3, 10, 14, 30, 0, 0, loc)
	tests := []struct {
		in   string
		want time.Time
	}{
		{in: "15:00", want: time.Date(2026, 3, 10, 15, 0, 0, 0, loc)},
		{in: "9:05", want: time.Date(2026, 3, 11, 9, 5, 0, 0, loc)},
		{in: "14:30", want: time.Date(2026, 3, 11, 14, 30, 0, 0, loc)},
		{in: " 23:59 ", want: time.Date(2026, 3, 10, 23, 59, 0, 0, loc)},
	}
	for _, tt := range tests {
		got, err := NextClock(tt.in, now)
		if err != nil {
			t.Fatalf("NextClock(%q): %v", tt.in, err)
		}
		if !got.Equal(tt.want) || got.Location() != loc {
			t.Errorf("NextClock(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}

	late := time.Date(2026, 12, 31, 23, 59, 30, 0, loc)
	got, err := NextClock("00:00", late)
	if err != nil || !got.Equal(time.Date(2027, 1, 1, 0, 0, 0, 0, loc)) {
		t.Fatalf("midnight rollover = %v, %v", got, err)
	}
}

func TestNextClockInvalid(t *testing.T) {
	t.Parallel()
	now := time.Now()
	for _, in := range []string{"24:00", "12:60", "ab:cd", "1200", "12:5", "-1:30", "+1:30", "12:30:00", ""} {
		if _, err := NextClock(in, now); !errors.Is(err, ErrInvalidClock) {
			t.Errorf("NextClock(%q) err = %v, want ErrInvalidClock", in, err)
		}
	}
}

func TestScheduleOnceFiresPastTimeOnStart(t *testing.T) {
	t.Parallel()
	eng := &fakeEngine{}
	s := New(Config{Enabled: true}, eng, logx.Nop())
	job := func(context.Context) error { return nil }
	if err := s.ScheduleOnce(time.Now().Add(-time.Hour), "job-1", time.Minute, job); err != nil {
		t.Fatal(err)
	}
	if !s.Pending("job-1") || eng.count() != 0 {
		t.Fatal("nothing should fire before Start")
	}

	s.Start(context.Background())
	defer s.Stop(context.Background())
	waitFor(t, func() bool { return eng.count() == 1 })

	eng.mu.Lock()
	task := eng.tasks[0]
	eng.mu.Unlock()
	if task.ID != "job-1" || task.Key != "job-1" || task.Timeout != time.Minute || task.Opt.RetryMax != 0 {
		t.Fatalf("task = %+v", task)
	}
	if s.Pending("job-1") {
		t.Fatal("fired job should not be pending")
	}
	if err := s.ScheduleOnce(time.Now(), "job-1", 0, job); !errors.Is(err, ErrAlreadyFired) {
		t.Fatalf("re-register err = %v, want ErrAlreadyFired", err)
	}
}

func TestScheduleOnceReplacesTimer(t *testing.T) {
	t.Parallel()
	eng := &fakeEngine{}
	s := newStarted(t, eng)
	job := func(context.Context) error { return nil }

	if err := s.ScheduleOnce(time.Now().Add(time.Hour), "job-2", 0, job); err != nil {
		t.Fatal(err)
	}
	later := time.Now().Add(2 * time.Hour)
	for range 2 {
		if err := s.ScheduleOnce(later, "job-3", 0, job); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.ScheduleOnce(time.Now().Add(-time.Second), "job-2", 0, job); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return eng.count() == 1 })
	time.Sleep(20 * time.Millisecond)
	if eng.count() != 1 {
		t.Fatalf("fired %d times, want 1", eng.count())
	}
	snap := s.Snapshot()
	if len(snap.Once) != 1 || snap.Once[0].JobID != "job-3" || snap.Fired != 1 {
		t.Fatalf("snapshot = %+v", snap)
	}
}

func TestScheduleOnceEnqueueFailureAllowsRearm(t *testing.T) {
	t.Parallel()
	eng := &fakeEngine{err: engine.ErrQueueFull}
	s := newStarted(t, eng)
	job := func(context.Context) error { return nil }

	if err := s.ScheduleOnce(time.Now(), "job-4", 0, job); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return !s.Pending("job-4") })

	eng.setErr(nil)
	waitFor(t, func() bool { return s.ScheduleOnce(time.Now(), "job-4", 0, job) == nil })
	waitFor(t, func() bool { return eng.count() == 1 })
}

func TestScheduleOnceValidation(t *testing.T) {
	t.Parallel()
	s := New(Config{}, &fakeEngine{}, logx.Nop())
	job := func(context.Context) error { return nil }
	if err := s.ScheduleOnce(time.Now(), " ", 0, job); err == nil {
		t.Fatal("empty id should fail")
	}
	if err := s.ScheduleOnce(time.Time{}, "x", 0, job); err == nil {
		t.Fatal("zero time should fail")
	}
	if err := s.ScheduleOnce(time.Now(), "x", 0, nil); err == nil {
		t.Fatal("nil job should fail")
	}
}

func TestRemoveAndUpsert(t *testing.T) {
	t.Parallel()
	s := newStarted(t, &fakeEngine{})
	job := func(context.Context) error { return nil }

	if err := s.AddSchedule("sweep", "1m", time.Second, job); err != nil {
		t.Fatal(err)
	}
	if err := s.AddSchedule("sweep", "*/5 * * * *", time.Second, job); err != nil {
		t.Fatal(err)
	}
	snap := s.Snapshot()
	if len(snap.Schedules) != 1 || snap.Schedules[0].Spec != "*/5 * * * *" || snap.Schedules[0].Next.IsZero() {
		t.Fatalf("schedules = %+v", snap.Schedules)
	}
	if err := s.AddCron("bad", "not cron", 0, job); err == nil {
		t.Fatal("invalid cron should fail")
	}
	if !s.Remove("sweep") || s.Remove("sweep") {
		t.Fatal("Remove should report once")
	}
	if len(s.Snapshot().Schedules) != 0 {
		t.Fatal("schedule not removed")
	}
}

func TestIntervalSpreadFirstRun(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	sched, jitter := makeIntervalScheduleWithSpread(time.Minute, now, "x")
	if jitter < 0 || jitter >= 30*time.Second {
		t.Fatalf("jitter = %v", jitter)
	}
	first := sched.Next(now)
	if want := now.Add(time.Minute + jitter); !first.Equal(want) {
		t.Fatalf("first = %v, want %v", first, want)
	}
	if next := sched.Next(first); !next.After(first) {
		t.Fatalf("next = %v should follow %v", next, first)
	}
}
