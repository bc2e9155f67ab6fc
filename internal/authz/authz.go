// Package authz gates the update pipeline behind composable authorization
// predicates. Predicates are independent checks combined with logical AND.
package authz

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrPermissionDenied reports a failed authorization predicate. It is always
// raised before the pipeline starts, so no cleanup is needed.
var ErrPermissionDenied = errors.New("permission denied")

// Predicate is a single named authorization check.
type Predicate struct {
	Name  string
	Check func() error
}

// All evaluates predicates in order and returns ErrPermissionDenied wrapping
// the first failure.
func All(preds ...Predicate) error {
	for _, p := range preds {
		if err := p.Check(); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrPermissionDenied, p.Name, err)
		}
	}
	return nil
}

// UpdatesEnabled fails when updates are administratively disabled.
func UpdatesEnabled(disabled bool) Predicate {
	return Predicate{
		Name: "updates enabled",
		Check: func() error {
			if disabled {
				return errors.New("updates are disabled in the configuration")
			}
			return nil
		},
	}
}

// WritableRoot fails when the installation root cannot be written to, which
// would doom extraction and rollback alike.
func WritableRoot(root string) Predicate {
	return Predicate{
		Name: "install root writable",
		Check: func() error {
			probe := filepath.Join(root, ".lapisup-writecheck")
			f, err := os.OpenFile(probe, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
			if err != nil {
				return fmt.Errorf("cannot write to %s: %w", root, err)
			}
			_ = f.Close()
			_ = os.Remove(probe)
			return nil
		},
	}
}
