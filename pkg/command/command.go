// Package command parses and dispatches moderation commands from chat or
// console input, enforcing the permission each command requires.
package command

import (
	"errors"
	"log/slog"
	"sort"
	"strings"

	"warden/pkg/model"
	"warden/pkg/moderation"
	"warden/pkg/rbac"
	"warden/pkg/selection"
)

// ErrUsage signals a malformed invocation; Dispatch replies with the
// command's usage line.
var ErrUsage = errors.New("command: bad usage")

// Caller identifies who typed a command and how to answer them. Console
// callers bypass permission checks.
type Caller struct {
	Name    string
	Role    model.Role
	Console bool
	Reply   func(text string)
}

// Handler executes one command invocation. args excludes the command name.
type Handler func(c Caller, args []string) error

// Completer proposes completions for the argument currently being typed.
type Completer func(c Caller, args []string) []string

// Command is one registered command.
type Command struct {
	Name       string
	Usage      string
	Permission model.Permission
	Handler    Handler
	Completer  Completer // optional
}

// Registry maps command names to handlers.
type Registry struct {
	commands map[string]Command
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{commands: make(map[string]Command)}
}

// Register adds a command. Re-registering a name replaces it.
func (r *Registry) Register(cmd Command) {
	r.commands[strings.ToLower(cmd.Name)] = cmd
}

// Names returns the registered command names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.commands))
	for name := range r.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Dispatch parses a line and runs the matching command. The leading slash
// is optional. Returns false when the line names no registered command;
// permission denials and handler errors are answered to the caller and
// count as handled.
func (r *Registry) Dispatch(c Caller, line string) bool {
	fields := strings.Fields(strings.TrimPrefix(strings.TrimSpace(line), "/"))
	if len(fields) == 0 {
		return false
	}
	cmd, ok := r.commands[strings.ToLower(fields[0])]
	if !ok {
		return false
	}

	if !c.Console {
		if errMsg := rbac.RequirePermission(c.Role, cmd.Permission); errMsg != "" {
			c.Reply(errMsg)
			return true
		}
	}

	if err := cmd.Handler(c, fields[1:]); err != nil {
		c.Reply(friendlyError(cmd, err))
		if !isExpected(err) {
			slog.Error("command failed", "command", cmd.Name, "caller", c.Name, "err", err)
		}
	}
	return true
}

// Complete proposes completions for a partially typed line.
func (r *Registry) Complete(c Caller, line string) []string {
	fields := strings.Split(strings.TrimPrefix(line, "/"), " ")
	if len(fields) <= 1 {
		// Completing the command name itself.
		prefix := strings.ToLower(strings.TrimSpace(line))
		prefix = strings.TrimPrefix(prefix, "/")
		var out []string
		for _, name := range r.Names() {
			cmd := r.commands[name]
			if !c.Console && !rbac.HasPermission(c.Role, cmd.Permission) {
				continue
			}
			if strings.HasPrefix(name, prefix) {
				out = append(out, name)
			}
		}
		return out
	}

	cmd, ok := r.commands[strings.ToLower(fields[0])]
	if !ok || cmd.Completer == nil {
		return nil
	}
	if !c.Console && !rbac.HasPermission(c.Role, cmd.Permission) {
		return nil
	}
	return cmd.Completer(c, fields[1:])
}

// friendlyError maps handler errors to the message shown to the caller.
// Sanction sentinels get specific wording; anything else is reported
// generically and logged.
func friendlyError(cmd Command, err error) string {
	switch {
	case errors.Is(err, ErrUsage):
		return "Usage: " + cmd.Usage
	case errors.Is(err, model.ErrNotSanctioned):
		return "That player has no active ban."
	case errors.Is(err, model.ErrTargetNotConnected):
		return "That player is not online."
	case errors.Is(err, model.ErrDuplicateAddress):
		return "That address is already banned."
	case errors.Is(err, selection.ErrNoSession):
		return "You have no ban selection open."
	case errors.Is(err, selection.ErrIncomplete):
		return "Choose a reason and a duration first."
	case errors.Is(err, selection.ErrUnknownDuration):
		return "Unknown duration. Options: " + strings.Join(durationOptions(), ", ")
	default:
		return "Command failed, see server log."
	}
}

func isExpected(err error) bool {
	for _, known := range []error{
		ErrUsage,
		model.ErrNotSanctioned,
		model.ErrTargetNotConnected,
		model.ErrDuplicateAddress,
		selection.ErrNoSession,
		selection.ErrIncomplete,
		selection.ErrUnknownDuration,
	} {
		if errors.Is(err, known) {
			return true
		}
	}
	return false
}

func durationOptions() []string {
	return append([]string(nil), moderation.DurationTokens...)
}
