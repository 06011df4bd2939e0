// Package channel keeps each user's registered broadcast targets.
package channel

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"

	"postbot/internal/storage"
	logx "postbot/pkg/logx"
)

const storageKey = "channels"

var (
	ErrNoPermission     = errors.New("channel: bot cannot post there")
	ErrUnreachable      = errors.New("channel: chat not reachable")
	ErrInvalidChannelID = errors.New("channel: invalid channel id")
)

type Outcome int

const (
	Added Outcome = iota + 1
	AlreadyPresent
)

func (o Outcome) String() string {
	switch o {
	case Added:
		return "added"
	case AlreadyPresent:
		return "already_present"
	default:
		return "unknown"
	}
}

// Access is what the bot can do in a chat.
type Access struct {
	Title   string
	CanPost bool
}

// Verifier looks a chat up on the transport. Implementations wrap transport
// failures in ErrUnreachable.
type Verifier interface {
	VerifyAccess(ctx context.Context, channelID string) (Access, error)
}

// Entry is one row of ListVerified.
type Entry struct {
	ChannelID string
	Title     string
	CanPost   bool
	Err       error
}

type Registry struct {
	doc      *storage.Doc[map[string][]string]
	verifier Verifier
	log      logx.Logger

	// parallel verifications in ListVerified
	verifyWorkers int
}

func NewRegistry(store storage.Store, verifier Verifier, log logx.Logger) *Registry {
	log = log.With(logx.String("comp", "channel"))
	return &Registry{
		doc:           storage.NewDoc(store, storageKey, func() map[string][]string { return map[string][]string{} }, log),
		verifier:      verifier,
		log:           log,
		verifyWorkers: 4,
	}
}

// ParseChannelID accepts a signed 64-bit chat id such as -1001234567890.
func ParseChannelID(text string) (string, error) {
	text = strings.TrimSpace(text)
	id, err := strconv.ParseInt(text, 10, 64)
	if err != nil || id == 0 {
		return "", fmt.Errorf("%w: %q", ErrInvalidChannelID, text)
	}
	return strconv.FormatInt(id, 10), nil
}

func userKey(user int64) string { return strconv.FormatInt(user, 10) }

// Register verifies channelID and appends it to the user's list.
// A channel already on the list returns AlreadyPresent without verification.
func (r *Registry) Register(ctx context.Context, user int64, channelID string) (Outcome, Access, error) {
	if slices.Contains(r.List(ctx, user), channelID) {
		return AlreadyPresent, Access{}, nil
	}

	acc, err := r.verifier.VerifyAccess(ctx, channelID)
	if err != nil {
		if !errors.Is(err, ErrNoPermission) {
			err = fmt.Errorf("%w: %v", ErrUnreachable, err)
		}
		return 0, Access{}, err
	}
	if !acc.CanPost {
		return 0, acc, ErrNoPermission
	}

	outcome := Added
	_ = r.doc.Update(ctx, func(m *map[string][]string) bool {
		k := userKey(user)
		if slices.Contains((*m)[k], channelID) {
			outcome = AlreadyPresent
			return false
		}
		(*m)[k] = append((*m)[k], channelID)
		return true
	})
	if outcome == Added {
		r.log.Info("channel registered", logx.Int64("user_id", user), logx.String("channel_id", channelID), logx.String("title", acc.Title))
	}
	return outcome, acc, nil
}

// List returns the user's channels in insertion order.
func (r *Registry) List(ctx context.Context, user int64) []string {
	var out []string
	r.doc.View(ctx, func(m map[string][]string) {
		out = append([]string(nil), m[userKey(user)]...)
	})
	return out
}

// Users returns every user that has at least one channel.
func (r *Registry) Users(ctx context.Context) []int64 {
	var out []int64
	r.doc.View(ctx, func(m map[string][]string) {
		for k, v := range m {
			if len(v) == 0 {
				continue
			}
			if id, err := strconv.ParseInt(k, 10, 64); err == nil {
				out = append(out, id)
			}
		}
	})
	slices.Sort(out)
	return out
}

// ListVerified checks every channel concurrently. The result keeps List order
// and a failure only marks its own entry.
func (r *Registry) ListVerified(ctx context.Context, user int64) []Entry {
	ids := r.List(ctx, user)
	out := make([]Entry, len(ids))
	if len(ids) == 0 {
		return out
	}

	sem := make(chan struct{}, max(1, r.verifyWorkers))
	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			e := Entry{ChannelID: id}
			acc, err := r.verifier.VerifyAccess(ctx, id)
			if err != nil {
				e.Err = err
			} else {
				e.Title = acc.Title
				e.CanPost = acc.CanPost
			}
			out[i] = e
		}(i, id)
	}
	wg.Wait()
	return out
}
