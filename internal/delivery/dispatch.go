package delivery

import (
	"context"
	"errors"
	"time"

	"postbot/internal/post"
	"postbot/internal/schedule"
	"postbot/internal/task/scheduler"
	logx "postbot/pkg/logx"
)

// PostNow broadcasts content to every channel the user has registered.
func (s *Service) PostNow(ctx context.Context, user int64, content post.Content) (Report, error) {
	info, err := s.resolve(content)
	if err != nil {
		return Report{}, err
	}
	channels := s.Channels.List(ctx, user)
	if len(channels) == 0 {
		return Report{}, ErrNoChannels
	}
	caption := post.RenderCaption(content.LinkText, info.TutorialLink, s.cfg.Footer)
	rep := newReport(s.Exec.Broadcast(ctx, content.Media, caption, channels))

	s.log.Info("post dispatched", logx.Int64("user_id", user), logx.String("variant", string(content.Variant)), logx.Int("ok", rep.OK), logx.Int("total", rep.Total))
	s.publish("post.dispatched", DispatchedEvent{UserID: user, Variant: string(content.Variant), OK: rep.OK, Total: rep.Total, Failed: rep.Failed()})
	return rep, nil
}

// Schedule stores a Pending post for at, with the user's current channels,
// and arms its one-shot job. ErrAlreadyScheduled comes back unchanged.
func (s *Service) Schedule(ctx context.Context, user int64, content post.Content, at time.Time) (schedule.ScheduledPost, error) {
	info, err := s.resolve(content)
	if err != nil {
		return schedule.ScheduledPost{}, err
	}
	channels := s.Channels.List(ctx, user)
	if len(channels) == 0 {
		return schedule.ScheduledPost{}, ErrNoChannels
	}
	p, err := s.Posts.Append(ctx, schedule.ScheduledPost{
		OwnerID:           user,
		FireAt:            at,
		Content:           content,
		SupplementaryLink: info.TutorialLink,
		Channels:          channels,
	})
	if err != nil {
		return schedule.ScheduledPost{}, err
	}
	if err := s.arm(p); err != nil {
		// The record is durable; the reconcile sweep retries arming.
		s.log.Error("arm scheduled post failed", logx.String("job_id", p.JobID), logx.Err(err))
	}
	s.publish("post.scheduled", ScheduledEvent{UserID: user, JobID: p.JobID, FireAt: p.FireAt, Channels: len(p.Channels)})
	return p, nil
}

func (s *Service) arm(p schedule.ScheduledPost) error {
	err := s.Sched.ScheduleOnce(p.FireAt, p.JobID, s.cfg.FireTimeout, func(ctx context.Context) error {
		s.fire(ctx, p)
		return nil
	})
	if errors.Is(err, scheduler.ErrAlreadyFired) {
		return nil
	}
	return err
}

// fire broadcasts a scheduled post, records the outcome, then tells the
// owner. Marking happens only after every channel was attempted.
func (s *Service) fire(ctx context.Context, p schedule.ScheduledPost) {
	log := s.log.With(logx.String("job_id", p.JobID), logx.Int64("user_id", p.OwnerID))
	caption := post.RenderCaption(p.Content.LinkText, p.SupplementaryLink, s.cfg.Footer)
	rep := newReport(s.Exec.Broadcast(ctx, p.Content.Media, caption, p.Channels))

	// The broadcast already happened; don't let a cancelled job context
	// lose the status update.
	markCtx := context.WithoutCancel(ctx)
	if _, err := s.Posts.MarkPosted(markCtx, p.OwnerID, p.FireAt, rep.OK, rep.Total); err != nil {
		log.Error("mark posted failed", logx.Err(err))
	}
	log.Info("scheduled post fired", logx.Int("ok", rep.OK), logx.Int("total", rep.Total))

	if s.Notifier != nil {
		if err := s.Notifier.NotifyUser(markCtx, p.OwnerID, rep.StatusText("Scheduled Post Status Update:")); err != nil {
			log.Warn("notify owner failed", logx.Err(err))
		}
	}
	s.publish("post.fired", DispatchedEvent{UserID: p.OwnerID, JobID: p.JobID, Variant: string(p.Content.Variant), OK: rep.OK, Total: rep.Total, Failed: rep.Failed()})
}

// Reseed arms every Pending post. Overdue posts fire right away. Posts that
// already fired in this process or are already armed are left alone, so it
// doubles as the periodic reconcile sweep.
func (s *Service) Reseed(ctx context.Context) (int, error) {
	var n int
	var errs []error
	for _, p := range s.Posts.Pending(ctx) {
		if ctx.Err() != nil {
			return n, ctx.Err()
		}
		if err := s.arm(p); err != nil {
			errs = append(errs, err)
			continue
		}
		n++
	}
	if err := errors.Join(errs...); err != nil {
		s.log.Warn("reseed incomplete", logx.Int("armed", n), logx.Int("failed", len(errs)), logx.Err(err))
		return n, err
	}
	s.log.Debug("pending posts armed", logx.Int("count", n))
	return n, nil
}
