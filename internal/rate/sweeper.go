package rate

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Sweeper runs [Memory.Sweep] on a fixed cadence.
type Sweeper struct {
	cron *cron.Cron
}

// NewSweeper schedules sweeps of m every interval. Call Start to begin.
func NewSweeper(m *Memory, interval time.Duration, log logrus.FieldLogger) (*Sweeper, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("rate: sweep interval must be > 0")
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	c := cron.New()
	_, err := c.AddFunc(fmt.Sprintf("@every %s", interval), func() {
		if n := m.Sweep(); n > 0 {
			log.WithField("removed", n).Debug("rate limit sweep")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("rate: schedule sweep: %w", err)
	}

	return &Sweeper{cron: c}, nil
}

func (s *Sweeper) Start() {
	s.cron.Start()
}

// Stop halts scheduling and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
}
