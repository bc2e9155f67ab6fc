package cmd

import (
	"errors"
	"strings"
	"testing"

	"github.com/lapis-cms/lapisup/internal/backup"
	"github.com/lapis-cms/lapisup/internal/engine"
)

func TestFormatSize(t *testing.T) {
	tests := []struct {
		bytes int64
		want  string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{1024, "1.0 KB"},
		{1536, "1.5 KB"},
		{1048576, "1.0 MB"},
		{5 * 1024 * 1024 * 1024, "5.0 GB"},
	}
	for _, tt := range tests {
		if got := formatSize(tt.bytes); got != tt.want {
			t.Errorf("formatSize(%d) = %q, want %q", tt.bytes, got, tt.want)
		}
	}
}

func TestReportFailureWrapsCause(t *testing.T) {
	cause := errors.New("migration exploded")
	sess := &engine.Session{
		State:         engine.StateRolledBack,
		TargetVersion: "2.0.0",
		Backup:        &backup.Record{ID: "b1", Path: "/tmp/b1.zip"},
		Err:           cause,
	}

	err := reportFailure(sess, cause)
	if !errors.Is(err, cause) {
		t.Errorf("reportFailure() error = %v, want wrapped cause", err)
	}
	if !strings.Contains(err.Error(), "update failed") {
		t.Errorf("reportFailure() error = %q, want update failed prefix", err)
	}
}

func TestReportFailureNilSession(t *testing.T) {
	cause := errors.New("config missing")
	if err := reportFailure(nil, cause); !errors.Is(err, cause) {
		t.Errorf("reportFailure(nil) error = %v, want cause", err)
	}
}
