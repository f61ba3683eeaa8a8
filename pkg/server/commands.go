package server

import (
	"fmt"
	"strconv"
	"strings"

	"warden/pkg/command"
	"warden/pkg/model"
	"warden/pkg/moderation"
)

const noReasonGiven = "no reason given"

// registerCommands wires the moderation command set into the registry.
func (s *Server) registerCommands() {
	s.reg.Register(command.Command{
		Name:       "ban",
		Usage:      "ban <player> [duration] [reason] | ban reason <text> | ban duration <token> | ban confirm | ban cancel",
		Permission: model.PermBan,
		Handler:    s.cmdBan,
		Completer:  s.completeBan,
	})
	s.reg.Register(command.Command{
		Name:       "unban",
		Usage:      "unban <player>",
		Permission: model.PermUnban,
		Handler:    s.cmdUnban,
		Completer:  s.completeNames,
	})
	s.reg.Register(command.Command{
		Name:       "banlist",
		Usage:      "banlist",
		Permission: model.PermBanList,
		Handler:    s.cmdBanList,
	})
	s.reg.Register(command.Command{
		Name:       "baninfo",
		Usage:      "baninfo <player>",
		Permission: model.PermBanInfo,
		Handler:    s.cmdBanInfo,
		Completer:  s.completeNames,
	})
	s.reg.Register(command.Command{
		Name:       "warn",
		Usage:      "warn <player> <reason>",
		Permission: model.PermWarn,
		Handler:    s.cmdWarn,
		Completer:  s.completeNames,
	})
	s.reg.Register(command.Command{
		Name:       "warnings",
		Usage:      "warnings <player>",
		Permission: model.PermWarnings,
		Handler:    s.cmdWarnings,
		Completer:  s.completeNames,
	})
	s.reg.Register(command.Command{
		Name:       "ipban",
		Usage:      "ipban <address> [reason]",
		Permission: model.PermIPBan,
		Handler:    s.cmdIPBan,
	})
}

// cmdBan covers both forms: a direct ban with duration and reason inline,
// and the interactive selection flow (open, choose, confirm, cancel).
func (s *Server) cmdBan(c command.Caller, args []string) error {
	if len(args) == 0 {
		return command.ErrUsage
	}

	switch strings.ToLower(args[0]) {
	case "reason":
		if len(args) < 2 {
			return command.ErrUsage
		}
		sess, err := s.sel.ChooseReason(c.Name, s.reasonFromArgs(args[1:]))
		if err != nil {
			return err
		}
		c.Reply(fmt.Sprintf("Reason set: %s", sess.Reason))
		s.promptConfirm(c, sess.CanConfirm())
		return nil
	case "duration":
		if len(args) != 2 {
			return command.ErrUsage
		}
		sess, err := s.sel.ChooseDuration(c.Name, args[1])
		if err != nil {
			return err
		}
		c.Reply(fmt.Sprintf("Duration set: %s", sess.Duration))
		s.promptConfirm(c, sess.CanConfirm())
		return nil
	case "confirm":
		ban, err := s.sel.Confirm(c.Name)
		if err != nil {
			return err
		}
		c.Reply(fmt.Sprintf("Banned %s (#%d).", ban.Name, ban.ID))
		return nil
	case "cancel":
		if err := s.sel.Cancel(c.Name); err != nil {
			return err
		}
		c.Reply("Ban selection cancelled.")
		return nil
	}

	target := args[0]
	if len(args) == 1 {
		if c.Console {
			// Console shorthand: permanent ban, no menu to walk.
			ban, err := s.mgr.Issue(target, c.Name, noReasonGiven, 0, true)
			if err != nil {
				return err
			}
			c.Reply(fmt.Sprintf("Banned %s permanently (#%d).", ban.Name, ban.ID))
			return nil
		}
		s.sel.Open(c.Name, target)
		c.Reply(fmt.Sprintf("Banning %s. Choose with 'ban reason <text>' and 'ban duration <token>'.", target))
		c.Reply("Reasons: " + s.numberedReasons())
		c.Reply("Durations: " + strings.Join(moderation.DurationTokens, ", "))
		return nil
	}

	// Direct form: ban <player> <duration> [reason...]
	millis, permanent, ok := moderation.ParseDurationToken(args[1])
	if !ok {
		return fmt.Errorf("%w: %q", command.ErrUsage, args[1])
	}
	reason := noReasonGiven
	if len(args) > 2 {
		reason = strings.Join(args[2:], " ")
	}
	ban, err := s.mgr.Issue(target, c.Name, reason, millis, permanent)
	if err != nil {
		return err
	}
	c.Reply(fmt.Sprintf("Banned %s (#%d).", ban.Name, ban.ID))
	return nil
}

// reasonFromArgs accepts either a preset number or free text.
func (s *Server) reasonFromArgs(args []string) string {
	reasons := s.sel.Reasons()
	if len(args) == 1 {
		if n, err := strconv.Atoi(args[0]); err == nil && n >= 1 && n <= len(reasons) {
			return reasons[n-1]
		}
	}
	return strings.Join(args, " ")
}

func (s *Server) numberedReasons() string {
	reasons := s.sel.Reasons()
	parts := make([]string, len(reasons))
	for i, r := range reasons {
		parts[i] = fmt.Sprintf("%d=%s", i+1, r)
	}
	return strings.Join(parts, ", ")
}

func (s *Server) promptConfirm(c command.Caller, ready bool) {
	if ready {
		c.Reply("Type 'ban confirm' to issue, or 'ban cancel'.")
	}
}

func (s *Server) cmdUnban(c command.Caller, args []string) error {
	if len(args) != 1 {
		return command.ErrUsage
	}
	ban, err := s.mgr.Revoke(args[0], c.Name)
	if err != nil {
		return err
	}
	c.Reply(fmt.Sprintf("Unbanned %s (#%d).", ban.Name, ban.ID))
	return nil
}

func (s *Server) cmdBanList(c command.Caller, _ []string) error {
	bans, err := s.mgr.ListActive()
	if err != nil {
		return err
	}
	if len(bans) == 0 {
		c.Reply("No active bans.")
		return nil
	}
	now := s.nowMillis()
	c.Reply(fmt.Sprintf("Active bans (%d):", len(bans)))
	for _, ban := range bans {
		c.Reply(fmt.Sprintf("  #%d %s by %s: %s (%s)",
			ban.ID, ban.Name, ban.IssuedBy, ban.Reason, moderation.FormatDuration(ban.Remaining(now))))
	}
	return nil
}

func (s *Server) cmdBanInfo(c command.Caller, args []string) error {
	if len(args) != 1 {
		return command.ErrUsage
	}
	info, err := s.mgr.InfoFor(args[0])
	if err != nil {
		return err
	}
	if len(info.History) == 0 {
		c.Reply(fmt.Sprintf("No ban records for %s.", args[0]))
		return nil
	}
	now := s.nowMillis()
	if info.Active != nil {
		c.Reply(fmt.Sprintf("%s is banned: #%d by %s, %s (%s)",
			args[0], info.Active.ID, info.Active.IssuedBy, info.Active.Reason,
			moderation.FormatDuration(info.Active.Remaining(now))))
	} else {
		c.Reply(fmt.Sprintf("%s has no active ban.", args[0]))
	}
	c.Reply(fmt.Sprintf("History (%d):", len(info.History)))
	for _, ban := range info.History {
		status := "inactive"
		if ban.Active {
			status = "active"
		}
		c.Reply(fmt.Sprintf("  #%d by %s: %s (%s, %s)",
			ban.ID, ban.IssuedBy, ban.Reason, moderation.FormatDuration(ban.Remaining(now)), status))
	}
	return nil
}

func (s *Server) cmdWarn(c command.Caller, args []string) error {
	if len(args) < 2 {
		return command.ErrUsage
	}
	count, err := s.mgr.Warn(args[0], c.Name, strings.Join(args[1:], " "))
	if err != nil {
		return err
	}
	c.Reply(fmt.Sprintf("Warned %s (%d warning(s)).", args[0], count))
	return nil
}

func (s *Server) cmdWarnings(c command.Caller, args []string) error {
	if len(args) != 1 {
		return command.ErrUsage
	}
	warnings, err := s.mgr.Warnings(args[0])
	if err != nil {
		return err
	}
	if len(warnings) == 0 {
		c.Reply(fmt.Sprintf("No warnings for %s.", args[0]))
		return nil
	}
	c.Reply(fmt.Sprintf("Warnings for %s (%d):", args[0], len(warnings)))
	for _, w := range warnings {
		c.Reply(fmt.Sprintf("  by %s: %s", w.IssuedBy, w.Reason))
	}
	return nil
}

func (s *Server) cmdIPBan(c command.Caller, args []string) error {
	if len(args) < 1 {
		return command.ErrUsage
	}
	reason := noReasonGiven
	if len(args) > 1 {
		reason = strings.Join(args[1:], " ")
	}
	ipban, err := s.mgr.BanAddress(args[0], c.Name, reason)
	if err != nil {
		return err
	}
	c.Reply(fmt.Sprintf("Banned address %s (#%d).", ipban.Address, ipban.ID))
	return nil
}

// completeNames proposes connected display names matching the last arg.
func (s *Server) completeNames(_ command.Caller, args []string) []string {
	prefix := ""
	if len(args) > 0 {
		prefix = strings.ToLower(args[len(args)-1])
	}
	var out []string
	for _, name := range s.sessions.Names() {
		if strings.HasPrefix(strings.ToLower(name), prefix) {
			out = append(out, name)
		}
	}
	return out
}

// completeBan proposes names for the target slot and tokens for the
// selection subcommands.
func (s *Server) completeBan(c command.Caller, args []string) []string {
	if len(args) >= 2 {
		switch strings.ToLower(args[0]) {
		case "duration":
			return append([]string(nil), moderation.DurationTokens...)
		case "reason":
			return s.sel.Reasons()
		}
		return append([]string(nil), moderation.DurationTokens...)
	}
	return s.completeNames(c, args)
}

func (s *Server) nowMillis() int64 {
	return timeNowMillis()
}
