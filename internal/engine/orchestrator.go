package engine

import (
	"context"
	"fmt"
	"os"

	"github.com/Masterminds/semver/v3"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lapis-cms/lapisup/internal/authz"
	"github.com/lapis-cms/lapisup/internal/backup"
	"github.com/lapis-cms/lapisup/internal/hooks"
	"github.com/lapis-cms/lapisup/internal/installer"
	"github.com/lapis-cms/lapisup/internal/rollback"
	"github.com/lapis-cms/lapisup/internal/source"
	"github.com/lapis-cms/lapisup/internal/verify"
)

// Orchestrator drives one installation's update pipeline. At most one session
// runs per installation at a time, enforced by the lock file.
type Orchestrator struct {
	src            source.Source
	verifier       *verify.Verifier
	backups        *backup.Manager
	installer      *installer.Installer
	rollbacks      *rollback.Manager
	hooks          *hooks.Registry
	preflight      []authz.Predicate
	installRoot    string
	currentVersion string
	log            *zap.SugaredLogger
}

// Options wires an orchestrator's collaborators.
type Options struct {
	Source         source.Source
	Verifier       *verify.Verifier
	Backups        *backup.Manager
	Installer      *installer.Installer
	Rollbacks      *rollback.Manager
	Hooks          *hooks.Registry
	Preflight      []authz.Predicate
	InstallRoot    string
	CurrentVersion string
	Log            *zap.SugaredLogger
}

// New creates an orchestrator.
func New(opts Options) *Orchestrator {
	if opts.Verifier == nil {
		opts.Verifier = verify.New()
	}
	if opts.Hooks == nil {
		opts.Hooks = hooks.NewRegistry()
	}
	if opts.Log == nil {
		opts.Log = zap.NewNop().Sugar()
	}
	return &Orchestrator{
		src:            opts.Source,
		verifier:       opts.Verifier,
		backups:        opts.Backups,
		installer:      opts.Installer,
		rollbacks:      opts.Rollbacks,
		hooks:          opts.Hooks,
		preflight:      opts.Preflight,
		installRoot:    opts.InstallRoot,
		currentVersion: opts.CurrentVersion,
		log:            opts.Log,
	}
}

// PerformOptions control one pipeline run.
type PerformOptions struct {
	// Version pins a target; empty or "latest" follows the feed.
	Version string
	// Force skips the confirmation prompt.
	Force bool
	// Confirm answers the confirmation question when Force is unset.
	Confirm Confirmer
}

// Check queries the release feed without any side effects.
func (o *Orchestrator) Check(ctx context.Context) (*source.UpdateInfo, error) {
	return o.src.Check(ctx)
}

// Perform runs the full pipeline. The returned session always describes the
// terminal state reached, including the causal error and the rollback
// outcome when an install-phase step failed.
func (o *Orchestrator) Perform(ctx context.Context, opts PerformOptions) (*Session, error) {
	sess := &Session{ID: uuid.NewString(), State: StateIdle}

	// Authorization runs before anything else; nothing to clean up on failure.
	if err := authz.All(o.preflight...); err != nil {
		return o.fail(sess, err)
	}

	o.transition(sess, StateChecking)
	info, err := o.src.Check(ctx)
	if err != nil {
		return o.fail(sess, err)
	}

	target, proceed, err := o.resolveTarget(info, opts.Version)
	if err != nil {
		return o.fail(sess, err)
	}
	sess.TargetVersion = target
	if !proceed {
		// Already up to date; nothing touched the filesystem.
		o.transition(sess, StateSucceeded)
		return sess, nil
	}

	if err := o.checkUpgradePath(info); err != nil {
		return o.fail(sess, err)
	}

	if !opts.Force {
		o.transition(sess, StateAwaitingConfirmation)
		ok, err := o.confirm(opts.Confirm, target)
		if err != nil {
			return o.fail(sess, err)
		}
		if !ok {
			sess.State = StateIdle
			return sess, ErrUpdateDeclined
		}
	}

	release, err := acquireLock(o.installRoot, sess.ID)
	if err != nil {
		return o.fail(sess, err)
	}
	defer release()

	o.transition(sess, StateBackingUp)
	rec, err := o.backups.Create()
	if err != nil {
		return o.fail(sess, err)
	}
	sess.Backup = rec

	// From here on, cancellation only applies between steps: a half-finished
	// step is more dangerous than a completed one.
	o.transition(sess, StateDownloading)
	artifact, dlInfo, err := o.src.Download(ctx, opts.Version)
	if err != nil {
		return o.fail(sess, err)
	}
	defer func() { _ = os.Remove(artifact) }()

	if err := ctx.Err(); err != nil {
		return o.fail(sess, err)
	}

	o.transition(sess, StateVerifying)
	if err := o.verifier.Verify(artifact, dlInfo.Checksum); err != nil {
		return o.fail(sess, err)
	}

	if err := ctx.Err(); err != nil {
		return o.fail(sess, err)
	}

	if err := o.installer.EnterMaintenance(); err != nil {
		return o.fail(sess, err)
	}

	o.transition(sess, StateInstalling)
	if err := o.installer.Install(ctx, artifact); err != nil {
		return o.failWithRollback(sess, err)
	}

	o.transition(sess, StatePostInstalling)
	if err := o.installer.PostInstall(ctx, target); err != nil {
		return o.failWithRollback(sess, err)
	}

	o.transition(sess, StateSucceeded)
	o.hooks.Do("update.succeeded", target)
	return sess, nil
}

// resolveTarget picks the version to install and whether to proceed. Equal
// versions never proceed, pinned or not.
func (o *Orchestrator) resolveTarget(info *source.UpdateInfo, pinned string) (string, bool, error) {
	if pinned == "" || pinned == "latest" {
		return info.LatestVersion, info.HasUpdate, nil
	}

	target, err := semver.NewVersion(pinned)
	if err != nil {
		return "", false, fmt.Errorf("invalid target version %q: %w", pinned, err)
	}
	current, err := semver.NewVersion(o.currentVersion)
	if err != nil {
		return "", false, fmt.Errorf("invalid current version %q: %w", o.currentVersion, err)
	}
	return target.String(), !target.Equal(current), nil
}

// checkUpgradePath enforces the release's minimum-version floor before any
// destructive step.
func (o *Orchestrator) checkUpgradePath(info *source.UpdateInfo) error {
	if info.MinVersion == "" {
		return nil
	}

	min, err := semver.NewVersion(info.MinVersion)
	if err != nil {
		return fmt.Errorf("%w: feed reports unparseable min_version %q", source.ErrInvalidResponse, info.MinVersion)
	}
	current, err := semver.NewVersion(o.currentVersion)
	if err != nil {
		return fmt.Errorf("invalid current version %q: %w", o.currentVersion, err)
	}
	if current.LessThan(min) {
		return fmt.Errorf("%w: release requires at least %s, have %s", ErrIncompatibleVersion, min, current)
	}
	return nil
}

// confirm asks the confirm filter first, then the operator.
func (o *Orchestrator) confirm(c Confirmer, target string) (bool, error) {
	allowed, _ := o.hooks.Apply("update.confirm", true, target).(bool)
	if !allowed {
		o.log.Infow("update vetoed by confirm hook", "target", target)
		return false, nil
	}
	if c == nil {
		return false, fmt.Errorf("confirmation required but no prompt is available (re-run with --force)")
	}
	return c.Confirm(fmt.Sprintf("Install update %s (current version %s)?", target, o.currentVersion))
}

// fail marks the session failed with no rollback. Used for errors before any
// destructive step.
func (o *Orchestrator) fail(sess *Session, err error) (*Session, error) {
	sess.Err = err
	sess.State = StateFailed
	o.log.Errorw("update failed", "session", sess.ID, "error", err)
	o.hooks.Do("update.failed", err)
	return sess, err
}

// failWithRollback attempts exactly one rollback to this session's backup,
// then reports the causal error. The rollback outcome is recorded separately
// so operators know whether the tree is consistent.
func (o *Orchestrator) failWithRollback(sess *Session, cause error) (*Session, error) {
	sess.Err = cause
	o.log.Errorw("install failed, attempting rollback", "session", sess.ID, "error", cause)

	var backupPath string
	if sess.Backup != nil {
		backupPath = sess.Backup.Path
	}

	if err := o.rollbacks.Rollback(backupPath); err != nil {
		sess.RollbackErr = err
		sess.State = StateFailed
		o.log.Errorw("rollback failed, manual intervention required", "session", sess.ID, "error", err)
		o.hooks.Do("update.rollback_failed", err)
		return sess, cause
	}

	// The snapshot predates the maintenance marker, so restoring does not
	// remove it.
	_ = o.installer.LeaveMaintenance()

	sess.State = StateRolledBack
	o.log.Infow("rollback succeeded, previous version restored", "session", sess.ID)
	o.hooks.Do("update.rolled_back", sess.TargetVersion)
	return sess, cause
}

// transition advances the session state, logging and firing the state hook.
func (o *Orchestrator) transition(sess *Session, state State) {
	sess.State = state
	o.log.Debugw("state transition", "session", sess.ID, "state", string(state))
	o.hooks.Do("update.state", sess.ID, string(state))
}
