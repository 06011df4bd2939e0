// Package broadcast sends one post to many channels, once each.
package broadcast

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"postbot/internal/post"
	logx "postbot/pkg/logx"

	"golang.org/x/time/rate"
)

const DefaultSendTimeout = 15 * time.Second

// Sender delivers media with an HTML caption to one channel.
type Sender interface {
	Send(ctx context.Context, channelID string, media post.Media, caption string) error
}

type Config struct {
	Workers     int
	RatePerSec  int // 0 disables the limiter
	SendTimeout time.Duration
}

type Result struct {
	ChannelID string
	OK        bool
	Err       error
}

// Summary counts successful results.
func Summary(results []Result) (ok, total int) {
	for _, r := range results {
		if r.OK {
			ok++
		}
	}
	return ok, len(results)
}

// Failed returns the channel ids that were not delivered, in input order.
func Failed(results []Result) []string {
	var out []string
	for _, r := range results {
		if !r.OK {
			out = append(out, r.ChannelID)
		}
	}
	return out
}

type Executor struct {
	sender Sender
	log    logx.Logger

	mu      sync.RWMutex
	cfg     Config
	limiter *rate.Limiter
}

func New(cfg Config, sender Sender, log logx.Logger) *Executor {
	if log.IsZero() {
		log = logx.Nop()
	}
	e := &Executor{sender: sender, log: log.With(logx.String("comp", "broadcast"))}
	e.Apply(cfg)
	return e
}

// Apply swaps workers, rate and timeout. Running broadcasts keep the old values.
func (e *Executor) Apply(cfg Config) {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = DefaultSendTimeout
	}
	var lim *rate.Limiter
	if cfg.RatePerSec > 0 {
		lim = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec)
	}
	e.mu.Lock()
	e.cfg = cfg
	e.limiter = lim
	e.mu.Unlock()
}

// Broadcast attempts every channel exactly once. The result slice has the
// same length and order as channels whatever fails.
func (e *Executor) Broadcast(ctx context.Context, media post.Media, caption string, channels []string) []Result {
	e.mu.RLock()
	cfg, lim := e.cfg, e.limiter
	e.mu.RUnlock()

	results := make([]Result, len(channels))
	if len(channels) == 0 {
		return results
	}
	start := time.Now()

	workers := min(cfg.Workers, len(channels))
	idx := make(chan int)
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for i := range idx {
				results[i] = e.sendOne(ctx, lim, cfg.SendTimeout, media, caption, channels[i])
			}
		}()
	}
	for i := range channels {
		idx <- i
	}
	close(idx)
	wg.Wait()

	ok, total := Summary(results)
	if ok < total {
		e.log.Warn("broadcast incomplete",
			logx.Int("ok", ok),
			logx.Int("total", total),
			logx.Strings("failed", Failed(results)),
			logx.Duration("took", time.Since(start)),
		)
	} else {
		e.log.Info("broadcast done", logx.Int("total", total), logx.Duration("took", time.Since(start)))
	}
	return results
}

func (e *Executor) sendOne(ctx context.Context, lim *rate.Limiter, timeout time.Duration, media post.Media, caption, channelID string) (res Result) {
	res = Result{ChannelID: channelID}
	defer func() {
		if r := recover(); r != nil {
			res.OK = false
			res.Err = fmt.Errorf("panic: %v", r)
			e.log.Error("panic in send", logx.String("channel_id", channelID), logx.Any("panic", r), logx.Stack(string(debug.Stack())))
		}
	}()

	if lim != nil {
		if err := lim.Wait(ctx); err != nil {
			res.Err = err
			e.log.Warn("send skipped", logx.String("channel_id", channelID), logx.Err(err))
			return res
		}
	}
	sctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := e.sender.Send(sctx, channelID, media, caption); err != nil {
		res.Err = err
		e.log.Warn("send failed", logx.String("channel_id", channelID), logx.Err(err))
		return res
	}
	res.OK = true
	return res
}
