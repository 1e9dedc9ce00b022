package worker

import (
	"github.com/robfig/cron/v3"

	"github.com/onliops/inventoryd/internal/log"
)

// Sweeper removes expired state and reports how much it removed.
type Sweeper interface {
	Sweep() (int, error)
}

// Janitor runs a Sweeper on a cron schedule. It keeps the session
// directory from accumulating abandoned uploads.
type Janitor struct {
	cron    *cron.Cron
	sweeper Sweeper
	spec    string
}

// NewJanitor creates a janitor running sweeper on the cron spec,
// every 15 minutes when spec is empty.
func NewJanitor(sweeper Sweeper, spec string) *Janitor {
	if spec == "" {
		spec = "*/15 * * * *"
	}
	return &Janitor{
		cron:    cron.New(),
		sweeper: sweeper,
		spec:    spec,
	}
}

// Start schedules the sweep and runs one immediately so stale state from
// a previous run does not linger until the first tick.
func (j *Janitor) Start() error {
	if _, err := j.cron.AddFunc(j.spec, j.sweep); err != nil {
		return err
	}
	j.cron.Start()
	go j.sweep()
	log.Info("Session janitor started", "schedule", j.spec)
	return nil
}

// Stop stops the schedule and waits for a running sweep to finish.
func (j *Janitor) Stop() {
	ctx := j.cron.Stop()
	<-ctx.Done()
}

func (j *Janitor) sweep() {
	removed, err := j.sweeper.Sweep()
	if err != nil {
		log.Error("Session sweep failed", "error", err)
		return
	}
	if removed > 0 {
		log.Info("Swept expired sessions", "removed", removed)
	}
}
