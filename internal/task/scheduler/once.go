package scheduler

import (
	"errors"
	"strings"
	"time"

	"postbot/internal/task/engine"
	logx "postbot/pkg/logx"
)

// ErrAlreadyFired is returned by ScheduleOnce for a job id that already fired
// in this process.
var ErrAlreadyFired = errors.New("scheduler: job already fired")

// ScheduleOnce arms a one-shot trigger for jobID at the given instant.
//
// A live id with the same instant is left untouched; a live id with a
// different instant has its timer replaced. An instant in the past fires as
// soon as the scheduler runs. The job is handed to the engine with the id
// as its overlap key, so a fired post can't run twice concurrently.
func (s *Service) ScheduleOnce(at time.Time, jobID string, timeout time.Duration, job Job) error {
	jobID = strings.TrimSpace(jobID)
	switch {
	case jobID == "":
		return errors.New("job id required")
	case at.IsZero():
		return errors.New("fire time required")
	case job == nil:
		return errors.New("job required")
	}

	s.tmu.Lock()
	defer s.tmu.Unlock()
	if _, ok := s.fired[jobID]; ok {
		return ErrAlreadyFired
	}
	if cur, ok := s.once[jobID]; ok {
		if cur.at.Equal(at) {
			cur.job, cur.timeout = job, timeout
			return nil
		}
		if cur.timer != nil {
			cur.timer.Stop()
		}
	}
	s.onceSeq++
	d := &onceDef{at: at, timeout: timeout, job: job, ver: s.onceSeq}
	s.once[jobID] = d
	if s.running {
		s.armLocked(jobID, d)
	}
	s.log.Debug("one-shot registered", logx.String("job", jobID), logx.Time("at", at))
	return nil
}

// Pending reports whether jobID is armed and not yet fired.
func (s *Service) Pending(jobID string) bool {
	s.tmu.Lock()
	defer s.tmu.Unlock()
	_, ok := s.once[jobID]
	return ok
}

// armLocked requires s.tmu.
func (s *Service) armLocked(jobID string, d *onceDef) {
	if d.timer != nil {
		d.timer.Stop()
	}
	ver := d.ver
	d.timer = time.AfterFunc(max(time.Until(d.at), 0), func() { s.fireOnce(jobID, ver) })
}

func (s *Service) fireOnce(jobID string, ver uint64) {
	s.tmu.Lock()
	d, ok := s.once[jobID]
	if !ok || d.ver != ver || !s.running {
		s.tmu.Unlock()
		return
	}
	delete(s.once, jobID)
	s.fired[jobID] = struct{}{}
	s.tmu.Unlock()

	err := s.engine.Enqueue(engine.Task{
		ID:      jobID,
		Name:    "once." + jobID,
		Key:     jobID,
		Timeout: d.timeout,
		Run:     d.job,
		Opt:     engine.TaskOptions{Overlap: engine.OverlapSkipIfRunning},
	})
	if err == nil {
		return
	}
	if !errors.Is(err, engine.ErrOverlapSkip) {
		// Forget the id so a later ScheduleOnce can re-arm it.
		s.tmu.Lock()
		delete(s.fired, jobID)
		s.tmu.Unlock()
	}
	s.reportEnqueueError(jobID, err)
}
