package hooks

import (
	"testing"
)

func TestApplyOrdersByPriority(t *testing.T) {
	r := NewRegistry()

	r.AddFilter("greeting", func(v any, args ...any) any {
		return v.(string) + "!"
	}, 20)
	r.AddFilter("greeting", func(v any, args ...any) any {
		return "hello " + v.(string)
	}, 10)

	got := r.Apply("greeting", "world")
	if got != "hello world!" {
		t.Errorf("Apply() = %q, want %q", got, "hello world!")
	}
}

func TestApplyEqualPriorityKeepsRegistrationOrder(t *testing.T) {
	r := NewRegistry()

	r.AddFilter("seq", func(v any, args ...any) any { return v.(string) + "a" }, 10)
	r.AddFilter("seq", func(v any, args ...any) any { return v.(string) + "b" }, 10)
	r.AddFilter("seq", func(v any, args ...any) any { return v.(string) + "c" }, 10)

	if got := r.Apply("seq", ""); got != "abc" {
		t.Errorf("Apply() = %q, want abc", got)
	}
}

func TestApplyUnknownNamePassesThrough(t *testing.T) {
	r := NewRegistry()
	if got := r.Apply("nobody-registered", 42); got != 42 {
		t.Errorf("Apply() = %v, want 42", got)
	}
}

func TestApplyPassesArgs(t *testing.T) {
	r := NewRegistry()
	r.AddFilter("confirm", func(v any, args ...any) any {
		// veto updates targeting a blocked version
		if len(args) > 0 && args[0] == "2.0.0" {
			return false
		}
		return v
	}, 10)

	if got := r.Apply("confirm", true, "2.0.0"); got != false {
		t.Errorf("Apply() = %v, want false", got)
	}
	if got := r.Apply("confirm", true, "2.1.0"); got != true {
		t.Errorf("Apply() = %v, want true", got)
	}
}

func TestDoFiresActions(t *testing.T) {
	r := NewRegistry()

	var events []string
	r.AddAction("update.state", func(args ...any) {
		events = append(events, args[0].(string))
	}, 10)

	r.Do("update.state", "checking")
	r.Do("update.state", "downloading")
	r.Do("unregistered")

	if len(events) != 2 || events[0] != "checking" || events[1] != "downloading" {
		t.Errorf("events = %v, want [checking downloading]", events)
	}
}
