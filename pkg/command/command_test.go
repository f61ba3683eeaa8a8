package command

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"warden/pkg/model"
)

type replies struct {
	lines []string
}

func (r *replies) fn(text string) { r.lines = append(r.lines, text) }

func caller(role model.Role, r *replies) Caller {
	return Caller{Name: "mod1", Role: role, Reply: r.fn}
}

func TestDispatchRunsHandler(t *testing.T) {
	reg := NewRegistry()
	var gotArgs []string
	reg.Register(Command{
		Name:       "ban",
		Usage:      "ban <player>",
		Permission: model.PermBan,
		Handler: func(c Caller, args []string) error {
			gotArgs = args
			return nil
		},
	})

	r := &replies{}
	if !reg.Dispatch(caller(model.RoleModerator, r), "/ban alice now") {
		t.Fatal("command not handled")
	}
	if !reflect.DeepEqual(gotArgs, []string{"alice", "now"}) {
		t.Errorf("args = %v", gotArgs)
	}
	if len(r.lines) != 0 {
		t.Errorf("unexpected replies: %v", r.lines)
	}
}

func TestDispatchLeadingSlashOptionalAndCaseInsensitive(t *testing.T) {
	reg := NewRegistry()
	calls := 0
	reg.Register(Command{
		Name:       "banlist",
		Permission: model.PermBanList,
		Handler:    func(Caller, []string) error { calls++; return nil },
	})

	r := &replies{}
	c := caller(model.RoleModerator, r)
	for _, line := range []string{"/banlist", "banlist", "BanList", "  /banlist  "} {
		if !reg.Dispatch(c, line) {
			t.Errorf("%q not handled", line)
		}
	}
	if calls != 4 {
		t.Errorf("handler ran %d times, want 4", calls)
	}
}

func TestDispatchUnknownCommandNotHandled(t *testing.T) {
	reg := NewRegistry()
	r := &replies{}
	if reg.Dispatch(caller(model.RoleAdmin, r), "/frobnicate") {
		t.Error("unknown command reported handled")
	}
	if reg.Dispatch(caller(model.RoleAdmin, r), "   ") {
		t.Error("blank line reported handled")
	}
}

func TestDispatchDeniesMissingPermission(t *testing.T) {
	reg := NewRegistry()
	ran := false
	reg.Register(Command{
		Name:       "ipban",
		Permission: model.PermIPBan,
		Handler:    func(Caller, []string) error { ran = true; return nil },
	})

	r := &replies{}
	if !reg.Dispatch(caller(model.RoleModerator, r), "/ipban 10.0.0.1") {
		t.Fatal("denial should still count as handled")
	}
	if ran {
		t.Error("handler ran without permission")
	}
	if len(r.lines) != 1 {
		t.Fatalf("expected a denial reply, got %v", r.lines)
	}
}

func TestConsoleBypassesPermissions(t *testing.T) {
	reg := NewRegistry()
	ran := false
	reg.Register(Command{
		Name:       "ipban",
		Permission: model.PermIPBan,
		Handler:    func(Caller, []string) error { ran = true; return nil },
	})

	r := &replies{}
	c := Caller{Name: "console", Console: true, Reply: r.fn}
	if !reg.Dispatch(c, "ipban 10.0.0.1") {
		t.Fatal("not handled")
	}
	if !ran {
		t.Error("console call blocked")
	}
}

func TestDispatchErrorReplies(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{"usage", ErrUsage, "Usage: warn <player> <reason>"},
		{"not sanctioned", model.ErrNotSanctioned, "no active ban"},
		{"offline", model.ErrTargetNotConnected, "not online"},
		{"duplicate address", model.ErrDuplicateAddress, "already banned"},
		{"internal", errors.New("disk on fire"), "see server log"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			reg := NewRegistry()
			reg.Register(Command{
				Name:       "warn",
				Usage:      "warn <player> <reason>",
				Permission: model.PermWarn,
				Handler:    func(Caller, []string) error { return tc.err },
			})
			r := &replies{}
			if !reg.Dispatch(caller(model.RoleModerator, r), "/warn") {
				t.Fatal("not handled")
			}
			if len(r.lines) != 1 || !strings.Contains(r.lines[0], tc.want) {
				t.Errorf("reply %v, want substring %q", r.lines, tc.want)
			}
			if strings.Contains(strings.ToLower(r.lines[0]), "disk on fire") {
				t.Error("internal error detail leaked to caller")
			}
		})
	}
}

func TestCompleteCommandNames(t *testing.T) {
	reg := NewRegistry()
	reg.Register(Command{Name: "ban", Permission: model.PermBan, Handler: nop})
	reg.Register(Command{Name: "banlist", Permission: model.PermBanList, Handler: nop})
	reg.Register(Command{Name: "ipban", Permission: model.PermIPBan, Handler: nop})

	got := reg.Complete(caller(model.RoleModerator, &replies{}), "/ban")
	if !reflect.DeepEqual(got, []string{"ban", "banlist"}) {
		t.Errorf("Complete = %v", got)
	}

	// ipban is admin-only; a moderator never sees it.
	got = reg.Complete(caller(model.RoleModerator, &replies{}), "/ip")
	if len(got) != 0 {
		t.Errorf("moderator offered admin command: %v", got)
	}
	got = reg.Complete(caller(model.RoleAdmin, &replies{}), "/ip")
	if !reflect.DeepEqual(got, []string{"ipban"}) {
		t.Errorf("Complete = %v", got)
	}
}

func TestCompleteArguments(t *testing.T) {
	reg := NewRegistry()
	reg.Register(Command{
		Name:       "ban",
		Permission: model.PermBan,
		Handler:    nop,
		Completer: func(c Caller, args []string) []string {
			return []string{"alice", "bob"}
		},
	})

	got := reg.Complete(caller(model.RoleModerator, &replies{}), "/ban a")
	if !reflect.DeepEqual(got, []string{"alice", "bob"}) {
		t.Errorf("Complete = %v", got)
	}
}

func nop(Caller, []string) error { return nil }
