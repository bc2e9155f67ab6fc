package engine

import (
	"context"
	"time"

	"github.com/lapis-cms/lapisup/internal/config"
	"github.com/lapis-cms/lapisup/internal/source"
)

// Unattended configures the scheduled checker's auto-install gate.
// Unattended installs require both the enabled flag and a maintenance
// window; a lone boolean is not enough to mutate a production tree on a
// timer.
type Unattended struct {
	Enabled bool
	Window  *config.Window
	Now     func() time.Time // defaults to time.Now
}

// ScheduleResult describes a scheduled check run.
type ScheduleResult struct {
	Info      *source.UpdateInfo
	Performed bool
	Session   *Session
}

// CheckScheduled is the non-interactive periodic entry point. It records the
// check result in the cache for later surfacing to an operator and, only
// when the unattended gate is fully open, runs the pipeline without
// confirmation. Otherwise it stops before anything destructive.
func (o *Orchestrator) CheckScheduled(ctx context.Context, cache *source.CheckCache, auto Unattended) (*ScheduleResult, error) {
	info, err := o.src.Check(ctx)
	if err != nil {
		return nil, err
	}

	if cache != nil {
		if err := cache.Store(info); err != nil {
			o.log.Warnw("failed to record check result", "error", err)
		}
	}

	res := &ScheduleResult{Info: info}
	if !info.HasUpdate {
		return res, nil
	}

	if !auto.Enabled {
		o.log.Infow("update available, waiting for operator",
			"current", info.CurrentVersion, "latest", info.LatestVersion)
		return res, nil
	}

	now := time.Now
	if auto.Now != nil {
		now = auto.Now
	}
	if auto.Window == nil || !auto.Window.Contains(now()) {
		o.log.Infow("update available but outside the maintenance window",
			"latest", info.LatestVersion)
		return res, nil
	}

	sess, err := o.Perform(ctx, PerformOptions{Force: true})
	res.Performed = true
	res.Session = sess
	return res, err
}
