package authz

import (
	"errors"
	"path/filepath"
	"testing"
)

func TestAllCombinesWithAnd(t *testing.T) {
	pass := Predicate{Name: "pass", Check: func() error { return nil }}
	fail := Predicate{Name: "fail", Check: func() error { return errors.New("nope") }}

	if err := All(pass, pass); err != nil {
		t.Errorf("All(pass, pass) = %v, want nil", err)
	}
	if err := All(pass, fail); !errors.Is(err, ErrPermissionDenied) {
		t.Errorf("All(pass, fail) = %v, want ErrPermissionDenied", err)
	}
	if err := All(fail, pass); !errors.Is(err, ErrPermissionDenied) {
		t.Errorf("All(fail, pass) = %v, want ErrPermissionDenied", err)
	}
	if err := All(); err != nil {
		t.Errorf("All() = %v, want nil", err)
	}
}

func TestUpdatesEnabled(t *testing.T) {
	if err := All(UpdatesEnabled(false)); err != nil {
		t.Errorf("UpdatesEnabled(false) = %v, want nil", err)
	}
	if err := All(UpdatesEnabled(true)); !errors.Is(err, ErrPermissionDenied) {
		t.Errorf("UpdatesEnabled(true) = %v, want ErrPermissionDenied", err)
	}
}

func TestWritableRoot(t *testing.T) {
	if err := All(WritableRoot(t.TempDir())); err != nil {
		t.Errorf("WritableRoot(tempdir) = %v, want nil", err)
	}
	missing := filepath.Join(t.TempDir(), "nope")
	if err := All(WritableRoot(missing)); !errors.Is(err, ErrPermissionDenied) {
		t.Errorf("WritableRoot(missing) = %v, want ErrPermissionDenied", err)
	}
}
