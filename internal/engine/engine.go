// Package engine coordinates the update pipeline: check, confirm, backup,
// download, verify, install, post-install, with rollback on failure.
package engine

import (
	"errors"

	"github.com/lapis-cms/lapisup/internal/backup"
)

// State is a phase of an update session.
type State string

const (
	StateIdle                 State = "idle"
	StateChecking             State = "checking"
	StateAwaitingConfirmation State = "awaiting_confirmation"
	StateBackingUp            State = "backing_up"
	StateDownloading          State = "downloading"
	StateVerifying            State = "verifying"
	StateInstalling           State = "installing"
	StatePostInstalling       State = "post_installing"
	StateSucceeded            State = "succeeded"
	StateFailed               State = "failed"
	StateRolledBack           State = "rolled_back"
)

var (
	// ErrUpdateInProgress means another session holds the installation lock.
	ErrUpdateInProgress = errors.New("another update is already in progress")

	// ErrIncompatibleVersion means the installed version is below the
	// release's upgrade-path floor.
	ErrIncompatibleVersion = errors.New("installed version is too old for this release")

	// ErrUpdateDeclined means the operator answered no at the confirmation
	// prompt.
	ErrUpdateDeclined = errors.New("update declined")
)

// Session tracks one update run. Sessions live in memory only and are not
// persisted across process restarts.
type Session struct {
	ID            string
	State         State
	TargetVersion string
	Backup        *backup.Record

	// Err is the causal failure; RollbackErr is set only when the automatic
	// rollback itself failed, which requires manual intervention.
	Err         error
	RollbackErr error
}

// Confirmer answers the pre-install confirmation question.
type Confirmer interface {
	Confirm(question string) (bool, error)
}
