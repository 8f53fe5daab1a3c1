package scheduler

import (
	"fmt"
	"log"

	"github.com/robfig/cron/v3"
)

// OnScanDue is called when the schedule fires. The callback should hand
// off quickly (enqueue a job, not run the scan); a slow callback delays
// Stop and later fires.
type OnScanDue func()

// Scheduler fires catalog scans on a cron expression. It knows nothing
// about the queue so the package stays wiring-free; cmd decides what a
// due scan means.
type Scheduler struct {
	cron     *cron.Cron
	spec     string
	callback OnScanDue
}

func New(spec string, cb OnScanDue) *Scheduler {
	return &Scheduler{
		cron:     cron.New(),
		spec:     spec,
		callback: cb,
	}
}

// Start validates the expression and begins firing. A bad expression is
// a config error worth failing startup over.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.spec, s.fire); err != nil {
		return fmt.Errorf("invalid scan schedule %q: %w", s.spec, err)
	}
	s.cron.Start()
	log.Printf("[scheduler] scheduled scans started (%s)", s.spec)
	return nil
}

// Stop halts the schedule and waits for an in-flight callback.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Println("[scheduler] scheduler stopped")
}

func (s *Scheduler) fire() {
	log.Println("[scheduler] catalog scan due")
	s.callback()
}
