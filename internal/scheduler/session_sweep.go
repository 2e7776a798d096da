package scheduler

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/ndewijer/portfolio-dashboard/internal/service"
)

// Sweeper closes idle sessions. *service.SessionService implements it.
type Sweeper interface {
	Sweep(idle, retention time.Duration) (service.SweepResult, error)
}

// SessionSweepJob releases the drill-down state of idle sessions and deletes sessions past
// retention.
type SessionSweepJob struct {
	sessions  Sweeper
	idle      time.Duration
	retention time.Duration
	log       zerolog.Logger
}

// NewSessionSweepJob creates the job.
func NewSessionSweepJob(sessions Sweeper, idle, retention time.Duration, log zerolog.Logger) *SessionSweepJob {
	return &SessionSweepJob{
		sessions:  sessions,
		idle:      idle,
		retention: retention,
		log:       log.With().Str("job", "session_sweep").Logger(),
	}
}

// Name returns the job name.
func (j *SessionSweepJob) Name() string { return "session_sweep" }

// Run performs one sweep.
func (j *SessionSweepJob) Run() error {
	res, err := j.sessions.Sweep(j.idle, j.retention)
	if err != nil {
		return err
	}
	if res.Closed > 0 || res.Deleted > 0 {
		j.log.Info().
			Int("closed", res.Closed).
			Int64("deleted", res.Deleted).
			Msg("Sessions swept")
	}
	return nil
}
