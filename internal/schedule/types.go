// Package schedule persists scheduled posts and their delivery status.
package schedule

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"postbot/internal/post"

	"github.com/google/uuid"
)

// TimeLayout is the stored wall-clock form of fire_at. It has no zone; the
// store's location gives it one.
const TimeLayout = "2006-01-02 15:04:05"

var ErrAlreadyScheduled = errors.New("schedule: a pending post already exists for that time")

type State string

const (
	StatePending State = "pending"
	StatePosted  State = "posted"
)

type Status struct {
	State   State `json:"state"`
	Success int   `json:"success,omitempty"`
	Total   int   `json:"total,omitempty"`
}

func (s Status) String() string {
	if s.State == StatePosted {
		return fmt.Sprintf("✅ Posted (%d/%d channels)", s.Success, s.Total)
	}
	return "⏳ Pending"
}

// ScheduledPost is immutable after Append except for Status.
type ScheduledPost struct {
	OwnerID           int64
	FireAt            time.Time
	Content           post.Content
	SupplementaryLink string
	Channels          []string
	Status            Status
	JobID             string
	CreatedAt         time.Time
}

// Listing is what ListFor returns.
type Listing struct {
	Posted  []ScheduledPost
	Pending []ScheduledPost
}

var jobNamespace = uuid.NewSHA1(uuid.NameSpaceOID, []byte("postbot.scheduled_post"))

// JobID derives the scheduler id for (owner, fireAt). It is stable across
// restarts because fireAt is reduced to its stored second-precision form.
func JobID(owner int64, fireAt time.Time) string {
	name := strconv.FormatInt(owner, 10) + "|" + fireAt.Format(TimeLayout)
	return uuid.NewSHA1(jobNamespace, []byte(name)).String()
}

type record struct {
	OwnerID           int64         `json:"owner_id"`
	FireAt            string        `json:"fire_at"`
	Content           contentRecord `json:"content"`
	SupplementaryLink string        `json:"supplementary_link"`
	Channels          []string      `json:"channels"`
	Status            Status        `json:"status"`
	JobID             string        `json:"job_id"`
	CreatedAt         time.Time     `json:"created_at"`
}

type contentRecord struct {
	ThumbnailRef  string `json:"thumbnail_ref"`
	ThumbnailKind string `json:"thumbnail_kind"`
	LinkText      string `json:"link_text"`
	Variant       string `json:"variant"`
}

func toRecord(p ScheduledPost) record {
	r := record{
		OwnerID:           p.OwnerID,
		FireAt:            p.FireAt.Format(TimeLayout),
		SupplementaryLink: p.SupplementaryLink,
		Channels:          append([]string(nil), p.Channels...),
		Status:            p.Status,
		JobID:             p.JobID,
		CreatedAt:         p.CreatedAt,
		Content: contentRecord{
			LinkText: p.Content.LinkText,
			Variant:  string(p.Content.Variant),
		},
	}
	if m := p.Content.Media; m != nil {
		r.Content.ThumbnailKind = string(m.Kind())
		r.Content.ThumbnailRef = m.Ref()
	}
	return r
}

func (r record) toPost(loc *time.Location) (ScheduledPost, error) {
	at, err := time.ParseInLocation(TimeLayout, r.FireAt, loc)
	if err != nil {
		return ScheduledPost{}, fmt.Errorf("fire_at %q: %w", r.FireAt, err)
	}
	p := ScheduledPost{
		OwnerID:           r.OwnerID,
		FireAt:            at,
		SupplementaryLink: r.SupplementaryLink,
		Channels:          append([]string(nil), r.Channels...),
		Status:            r.Status,
		JobID:             r.JobID,
		CreatedAt:         r.CreatedAt,
		Content: post.Content{
			LinkText: r.Content.LinkText,
			Variant:  post.Variant(r.Content.Variant),
		},
	}
	if r.Content.ThumbnailKind != "" {
		m, err := post.NewMedia(post.MediaKind(r.Content.ThumbnailKind), r.Content.ThumbnailRef)
		if err != nil {
			return ScheduledPost{}, err
		}
		p.Content.Media = m
	}
	if p.JobID == "" {
		p.JobID = JobID(p.OwnerID, at)
	}
	return p, nil
}
