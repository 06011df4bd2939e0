package schedule

import (
	"context"
	"slices"
	"strconv"
	"time"

	"postbot/internal/storage"
	logx "postbot/pkg/logx"
)

const (
	storageKey  = "scheduled_posts"
	postedLimit = 5
)

type Store struct {
	doc *storage.Doc[map[string][]record]
	loc *time.Location
	log logx.Logger
	now func() time.Time
}

// NewStore binds the scheduled_posts snapshot. loc interprets stored
// fire_at values; nil means time.Local.
func NewStore(st storage.Store, loc *time.Location, log logx.Logger) *Store {
	if loc == nil {
		loc = time.Local
	}
	log = log.With(logx.String("comp", "schedule"))
	return &Store{
		doc: storage.NewDoc(st, storageKey, func() map[string][]record { return map[string][]record{} }, log),
		loc: loc,
		log: log,
		now: time.Now,
	}
}

func (s *Store) Location() *time.Location { return s.loc }

// Append stores p as Pending and fills JobID and CreatedAt when empty.
// It returns ErrAlreadyScheduled if the owner has a Pending post at the
// same second.
func (s *Store) Append(ctx context.Context, p ScheduledPost) (ScheduledPost, error) {
	p.FireAt = p.FireAt.In(s.loc).Truncate(time.Second)
	p.Status = Status{State: StatePending}
	if p.JobID == "" {
		p.JobID = JobID(p.OwnerID, p.FireAt)
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.now()
	}
	rec := toRecord(p)
	key := strconv.FormatInt(p.OwnerID, 10)

	var dup bool
	err := s.doc.Update(ctx, func(m *map[string][]record) bool {
		for _, r := range (*m)[key] {
			if r.Status.State == StatePending && r.FireAt == rec.FireAt {
				dup = true
				return false
			}
		}
		(*m)[key] = append((*m)[key], rec)
		return true
	})
	if dup {
		return ScheduledPost{}, ErrAlreadyScheduled
	}
	if err == nil {
		s.log.Info("post scheduled",
			logx.Int64("user_id", p.OwnerID),
			logx.String("fire_at", rec.FireAt),
			logx.String("job_id", p.JobID),
			logx.Int("channels", len(p.Channels)),
		)
	}
	// A failed save keeps the in-memory append; callers still get the post.
	return p, nil
}

// MarkPosted flips the owner's Pending post at fireAt to Posted. It reports
// false, and logs, when no Pending post matches.
func (s *Store) MarkPosted(ctx context.Context, owner int64, fireAt time.Time, success, total int) (bool, error) {
	at := fireAt.In(s.loc).Format(TimeLayout)
	key := strconv.FormatInt(owner, 10)

	var found bool
	err := s.doc.Update(ctx, func(m *map[string][]record) bool {
		list := (*m)[key]
		for i := range list {
			if list[i].FireAt == at && list[i].Status.State == StatePending {
				list[i].Status = Status{State: StatePosted, Success: success, Total: total}
				found = true
				return true
			}
		}
		return false
	})
	if !found {
		s.log.Warn("no pending post to mark", logx.Int64("user_id", owner), logx.String("fire_at", at))
		return false, nil
	}
	return true, err
}

// ListFor returns the last five Posted posts, newest first, and every
// Pending post, soonest first.
func (s *Store) ListFor(ctx context.Context, owner int64) Listing {
	var out Listing
	for _, p := range s.load(ctx, strconv.FormatInt(owner, 10)) {
		if p.Status.State == StatePosted {
			out.Posted = append(out.Posted, p)
		} else {
			out.Pending = append(out.Pending, p)
		}
	}
	slices.SortStableFunc(out.Posted, func(a, b ScheduledPost) int { return b.FireAt.Compare(a.FireAt) })
	slices.SortStableFunc(out.Pending, func(a, b ScheduledPost) int { return a.FireAt.Compare(b.FireAt) })
	if len(out.Posted) > postedLimit {
		out.Posted = out.Posted[:postedLimit]
	}
	return out
}

// Pending returns every Pending post across owners, soonest first.
func (s *Store) Pending(ctx context.Context) []ScheduledPost {
	var out []ScheduledPost
	for _, p := range s.load(ctx, "") {
		if p.Status.State == StatePending {
			out = append(out, p)
		}
	}
	slices.SortStableFunc(out, func(a, b ScheduledPost) int { return a.FireAt.Compare(b.FireAt) })
	return out
}

// load decodes the records of one owner, or of all owners when key is empty.
func (s *Store) load(ctx context.Context, key string) []ScheduledPost {
	var recs []record
	s.doc.View(ctx, func(m map[string][]record) {
		if key != "" {
			recs = append(recs, m[key]...)
			return
		}
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			recs = append(recs, m[k]...)
		}
	})
	out := make([]ScheduledPost, 0, len(recs))
	for _, r := range recs {
		p, err := r.toPost(s.loc)
		if err != nil {
			s.log.Warn("skipping unreadable scheduled post", logx.Int64("user_id", r.OwnerID), logx.Err(err))
			continue
		}
		out = append(out, p)
	}
	return out
}
