package server

import (
	"bufio"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
	"unicode"

	"warden/pkg/command"
	"warden/pkg/model"
)

// lineConn frames one text line per message over a net.Conn.
type lineConn struct {
	mu   sync.Mutex
	conn net.Conn
}

func (lc *lineConn) Send(text string) error {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	_, err := fmt.Fprintf(lc.conn, "%s\n", text)
	return err
}

func (lc *lineConn) Close() error {
	return lc.conn.Close()
}

// StartControl starts the TCP session listener.
func (s *Server) StartControl() error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("server: listen: %w", err)
	}
	s.ln = ln
	slog.Info("listening", "addr", s.cfg.ListenAddr)

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
					slog.Error("accept error", "err", err)
					continue
				}
			}
			go s.handleConn(conn)
		}
	}()

	return nil
}

// handleConn handles a single session lifecycle. The first line is the
// display name; every later line is chat or a command.
func (s *Server) handleConn(conn net.Conn) {
	defer func() { _ = conn.Close() }()

	s.metrics.TotalConnections.Add(1)
	s.metrics.ActiveConnections.Add(1)
	defer s.metrics.ActiveConnections.Add(-1)

	lc := &lineConn{conn: conn}
	scanner := bufio.NewScanner(conn)

	if !scanner.Scan() {
		return
	}
	name := strings.TrimSpace(scanner.Text())
	if err := model.ValidateName(name); err != nil {
		_ = lc.Send("Invalid name: " + err.Error())
		s.metrics.RejectedNames.Add(1)
		return
	}
	address := hostOnly(conn.RemoteAddr())

	// Session creation, identity resolution, and the sanction check all
	// happen on the main loop.
	joined := make(chan *Session, 1)
	s.loop.Submit(func() {
		role := s.policy.RoleFor(name)
		sess := s.sessions.Create(name, s.resolver.Resolve(name), role, address, lc)
		if err := s.mgr.CheckOnConnect(liveView(sess)); err != nil {
			slog.Error("connect check failed", "name", name, "err", err)
		}
		joined <- sess
	})
	sess := <-joined
	slog.Info("session joined", "name", name, "role", sess.Role, "address", address, "session", sess.ID)
	_ = lc.Send(fmt.Sprintf("Welcome, %s.", name))

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		s.loop.Submit(func() {
			s.dispatchLine(sess, lc, line)
		})
	}

	s.loop.Submit(func() {
		if s.sessions.Get(sess.ID) == nil {
			return // already severed by the enforcer
		}
		s.sessions.Remove(sess.ID)
		s.sel.Close(sess.Name)
		s.metrics.TotalDisconnects.Add(1)
		slog.Info("session left", "name", sess.Name, "session", sess.ID)
	})
}

// dispatchLine routes one input line: commands to the registry, everything
// else to chat. Runs on the main loop.
func (s *Server) dispatchLine(sess *Session, lc *lineConn, line string) {
	caller := command.Caller{
		Name: sess.Name,
		Role: sess.Role,
		Reply: func(text string) {
			_ = lc.Send(text)
		},
	}
	if strings.HasPrefix(line, "/") {
		if s.reg.Dispatch(caller, line) {
			s.metrics.CommandsDispatched.Add(1)
		} else {
			_ = lc.Send("Unknown command.")
		}
		return
	}

	text := sanitizeText(line)
	if text == "" {
		return
	}
	for _, other := range s.sessions.All() {
		_ = other.Conn.Send(fmt.Sprintf("<%s> %s", sess.Name, text))
	}
	s.metrics.ChatMessagesSent.Add(1)
}

// DispatchConsole runs one console command line on the main loop. Console
// callers bypass permission checks; replies go to the server log.
func (s *Server) DispatchConsole(line string) {
	s.loop.Submit(func() {
		caller := command.Caller{
			Name:    "Console",
			Console: true,
			Reply: func(text string) {
				slog.Info("console", "reply", text)
			},
		}
		if s.reg.Dispatch(caller, line) {
			s.metrics.CommandsDispatched.Add(1)
		} else {
			slog.Info("console", "reply", "Unknown command.")
		}
	})
}

// hostOnly strips the port from a remote address. Returns "" when the
// address cannot be split, leaving the session without address capture.
func hostOnly(addr net.Addr) string {
	if addr == nil {
		return ""
	}
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return ""
	}
	return host
}

// sanitizeText strips control characters from user-supplied text to prevent
// terminal escape injection and null-byte attacks.
func sanitizeText(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' {
			return ' '
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}
