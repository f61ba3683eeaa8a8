package server

import (
	"strings"
	"testing"

	"warden/pkg/command"
	"warden/pkg/datastore"
	"warden/pkg/identity"
	"warden/pkg/model"
)

type fakeConn struct {
	sent   []string
	closed bool
}

func (c *fakeConn) Send(text string) error {
	c.sent = append(c.sent, text)
	return nil
}

func (c *fakeConn) Close() error {
	c.closed = true
	return nil
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := DefaultConfig()
	cfg.MetricsAddr = ""
	srv, err := New(cfg, Dependencies{Store: datastore.NewMemory()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return srv
}

func join(srv *Server, name, address string, role model.Role) (*Session, *fakeConn) {
	conn := &fakeConn{}
	sess := srv.sessions.Create(name, identity.SynthesizeID(name), role, address, conn)
	return sess, conn
}

type replyRec struct {
	lines []string
}

func (r *replyRec) caller(name string, role model.Role) command.Caller {
	return command.Caller{Name: name, Role: role, Reply: func(text string) { r.lines = append(r.lines, text) }}
}

func (r *replyRec) console() command.Caller {
	return command.Caller{Name: "Console", Console: true, Reply: func(text string) { r.lines = append(r.lines, text) }}
}

func (r *replyRec) joined() string { return strings.Join(r.lines, "\n") }

func TestEnforcerGraceDelay(t *testing.T) {
	srv := newTestServer(t)
	sess, conn := join(srv, "alice", "10.0.0.5", model.RoleUser)

	srv.enforcer.ScheduleDisconnect(sess.ID, "you are out")
	if len(conn.sent) != 1 || conn.sent[0] != "you are out" {
		t.Fatalf("explanation not delivered first: %v", conn.sent)
	}
	if conn.closed {
		t.Fatal("closed before the grace delay")
	}

	for i := 0; i < DefaultDisconnectGraceTicks-1; i++ {
		srv.loop.Step()
		if conn.closed {
			t.Fatalf("closed at tick %d, want %d", i+1, DefaultDisconnectGraceTicks)
		}
	}
	srv.loop.Step()
	if !conn.closed {
		t.Fatal("not closed after the grace delay")
	}
	if srv.sessions.Get(sess.ID) != nil {
		t.Error("session not removed")
	}
	if got := srv.metrics.DisconnectsExecuted.Load(); got != 1 {
		t.Errorf("DisconnectsExecuted = %d, want 1", got)
	}
}

func TestEnforcerNoopWhenSessionGone(t *testing.T) {
	srv := newTestServer(t)
	sess, conn := join(srv, "bob", "", model.RoleUser)

	srv.enforcer.ScheduleDisconnect(sess.ID, "bye")
	srv.sessions.Remove(sess.ID) // client left during the grace window

	for i := 0; i < DefaultDisconnectGraceTicks; i++ {
		srv.loop.Step()
	}
	if conn.closed {
		t.Error("closed a session that already left")
	}
	if got := srv.metrics.DisconnectsExecuted.Load(); got != 0 {
		t.Errorf("DisconnectsExecuted = %d, want 0", got)
	}
}

func TestBanSelectionFlow(t *testing.T) {
	srv := newTestServer(t)
	_, targetConn := join(srv, "alice", "10.0.0.5", model.RoleUser)

	r := &replyRec{}
	mod := r.caller("mod1", model.RoleModerator)

	for _, line := range []string{"/ban alice", "/ban duration 7d", "/ban reason 2"} {
		if !srv.reg.Dispatch(mod, line) {
			t.Fatalf("%q not handled", line)
		}
	}
	if !strings.Contains(r.joined(), "ban confirm") {
		t.Errorf("no confirm prompt after both choices: %q", r.joined())
	}

	if !srv.reg.Dispatch(mod, "/ban confirm") {
		t.Fatal("confirm not handled")
	}

	bans, err := srv.mgr.ListActive()
	if err != nil {
		t.Fatalf("ListActive: %v", err)
	}
	if len(bans) != 1 {
		t.Fatalf("got %d active bans, want 1", len(bans))
	}
	if bans[0].Reason != srv.sel.Reasons()[1] {
		t.Errorf("preset number not applied: %q", bans[0].Reason)
	}
	if bans[0].IssuedBy != "mod1" {
		t.Errorf("issuer = %q", bans[0].IssuedBy)
	}

	// Explanation delivered, cut after the grace delay.
	if len(targetConn.sent) == 0 || !strings.Contains(targetConn.sent[0], "banned") {
		t.Fatalf("target got no explanation: %v", targetConn.sent)
	}
	for i := 0; i < DefaultDisconnectGraceTicks; i++ {
		srv.loop.Step()
	}
	if !targetConn.closed {
		t.Error("target not disconnected")
	}
}

func TestBanCancelDiscardsSelection(t *testing.T) {
	srv := newTestServer(t)
	r := &replyRec{}
	mod := r.caller("mod1", model.RoleModerator)

	srv.reg.Dispatch(mod, "/ban alice")
	srv.reg.Dispatch(mod, "/ban cancel")
	r.lines = nil
	srv.reg.Dispatch(mod, "/ban confirm")
	if !strings.Contains(r.joined(), "no ban selection") {
		t.Errorf("confirm after cancel should fail: %q", r.joined())
	}
}

func TestDirectBanWithDurationAndReason(t *testing.T) {
	srv := newTestServer(t)
	r := &replyRec{}
	mod := r.caller("mod1", model.RoleModerator)

	if !srv.reg.Dispatch(mod, "/ban ghost 1d ban evasion") {
		t.Fatal("not handled")
	}
	bans, _ := srv.mgr.ListActive()
	if len(bans) != 1 || bans[0].Reason != "ban evasion" || bans[0].Permanent {
		t.Fatalf("direct ban wrong: %+v", bans)
	}
}

func TestConsoleBanShorthandIsPermanent(t *testing.T) {
	srv := newTestServer(t)
	r := &replyRec{}

	if !srv.reg.Dispatch(r.console(), "ban ghost") {
		t.Fatal("not handled")
	}
	bans, _ := srv.mgr.ListActive()
	if len(bans) != 1 {
		t.Fatalf("got %d bans", len(bans))
	}
	if !bans[0].Permanent || bans[0].Reason != noReasonGiven {
		t.Errorf("console shorthand: %+v", bans[0])
	}
}

func TestModeratorCannotIPBan(t *testing.T) {
	srv := newTestServer(t)
	r := &replyRec{}

	if !srv.reg.Dispatch(r.caller("mod1", model.RoleModerator), "/ipban 10.0.0.1 evasion") {
		t.Fatal("denial should count as handled")
	}
	bans, _ := srv.mgr.ListAddresses()
	if len(bans) != 0 {
		t.Errorf("moderator created an ip ban: %+v", bans)
	}

	if !srv.reg.Dispatch(r.caller("admin1", model.RoleAdmin), "/ipban 10.0.0.1 evasion") {
		t.Fatal("not handled")
	}
	bans, _ = srv.mgr.ListAddresses()
	if len(bans) != 1 {
		t.Errorf("admin ip ban missing: %+v", bans)
	}
}

func TestConnectRejectionEndToEnd(t *testing.T) {
	srv := newTestServer(t)
	r := &replyRec{}
	if !srv.reg.Dispatch(r.console(), "ban bob") {
		t.Fatal("ban not handled")
	}

	sess, conn := join(srv, "bob", "10.0.0.9", model.RoleUser)
	if err := srv.mgr.CheckOnConnect(liveView(sess)); err != nil {
		t.Fatalf("CheckOnConnect: %v", err)
	}
	if len(conn.sent) != 1 {
		t.Fatalf("expected exactly one explanation, got %v", conn.sent)
	}
	for _, want := range []string{noReasonGiven, "Console", "Permanent", "#1"} {
		if !strings.Contains(conn.sent[0], want) {
			t.Errorf("explanation missing %q: %q", want, conn.sent[0])
		}
	}
	for i := 0; i < DefaultDisconnectGraceTicks; i++ {
		srv.loop.Step()
	}
	if !conn.closed {
		t.Error("banned session not severed")
	}
}

func TestBroadcastPermissionGated(t *testing.T) {
	srv := newTestServer(t)
	_, userConn := join(srv, "alice", "", model.RoleUser)
	_, modConn := join(srv, "mod1", "", model.RoleModerator)

	srv.notify.Broadcast(model.PermNotify, "[ban] test")
	if len(userConn.sent) != 0 {
		t.Errorf("user received staff broadcast: %v", userConn.sent)
	}
	if len(modConn.sent) != 1 {
		t.Errorf("moderator missed broadcast: %v", modConn.sent)
	}
}

func TestWarnEscalationThroughCommands(t *testing.T) {
	srv := newTestServer(t)
	_, targetConn := join(srv, "carol", "10.0.0.7", model.RoleUser)
	r := &replyRec{}
	mod := r.caller("mod1", model.RoleModerator)

	for i := 0; i < 3; i++ {
		if !srv.reg.Dispatch(mod, "/warn carol spamming chat") {
			t.Fatal("warn not handled")
		}
	}

	bans, _ := srv.mgr.ListActive()
	if len(bans) != 1 {
		t.Fatalf("third warning did not auto-ban: %d bans", len(bans))
	}
	if bans[0].IssuedBy != "System" {
		t.Errorf("auto ban issuer = %q", bans[0].IssuedBy)
	}
	for i := 0; i < DefaultDisconnectGraceTicks; i++ {
		srv.loop.Step()
	}
	if !targetConn.closed {
		t.Error("auto-banned target not disconnected")
	}
}

func TestHostOnly(t *testing.T) {
	if got := hostOnly(nil); got != "" {
		t.Errorf("nil addr = %q", got)
	}
}

func TestBanCompleterOffersTokens(t *testing.T) {
	srv := newTestServer(t)
	join(srv, "alice", "", model.RoleUser)
	r := &replyRec{}

	got := srv.reg.Complete(r.caller("mod1", model.RoleModerator), "/ban al")
	if len(got) != 1 || got[0] != "alice" {
		t.Errorf("name completion = %v", got)
	}
	got = srv.reg.Complete(r.caller("mod1", model.RoleModerator), "/ban duration 7")
	if len(got) == 0 || got[len(got)-1] != "Permanent" {
		t.Errorf("duration completion = %v", got)
	}
}
