package agent

import (
	"context"
	"time"
)

// How often the maintenance loop checks the background engines.
const maintenanceInterval = 60 * time.Second

// RunMaintenance periodically drives the background engines until ctx is
// cancelled: reflective synthesis when the session has gone idle, a
// consolidation check (the engine itself decides whether the threshold is
// crossed), and an incremental vault index sweep. It blocks; run it on its
// own goroutine.
func (a *Assistant) RunMaintenance(ctx context.Context) {
	ticker := time.NewTicker(maintenanceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.maintenanceTick(ctx)
		}
	}
}

func (a *Assistant) maintenanceTick(ctx context.Context) {
	if _, err := a.synthesizer.RunIfIdle(ctx); err != nil && a.log != nil {
		a.log.Errorf("synthesis pass failed: %v", err)
	}
	if _, err := a.consolidator.RunOnce(ctx); err != nil && a.log != nil {
		a.log.Errorf("consolidation pass failed: %v", err)
	}
	if a.vault != nil {
		a.vault.Trigger(ctx, false)
	}
}
