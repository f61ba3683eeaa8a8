package selection

import (
	"errors"
	"testing"

	"warden/pkg/model"
	"warden/pkg/moderation"
)

type issueCall struct {
	Target, Issuer, Reason string
	Millis                 int64
	Permanent              bool
}

type fakeIssuer struct {
	calls []issueCall
	err   error
}

func (f *fakeIssuer) Issue(target, issuer, reason string, millis int64, permanent bool) (*model.Ban, error) {
	f.calls = append(f.calls, issueCall{target, issuer, reason, millis, permanent})
	if f.err != nil {
		return nil, f.err
	}
	return &model.Ban{ID: int64(len(f.calls)), Name: target, IssuedBy: issuer, Reason: reason, Permanent: permanent}, nil
}

func newManager(issuer Issuer) *Manager {
	return New(issuer, nil, func() int64 { return 1_700_000_000_000 })
}

func TestConfirmIssuesBan(t *testing.T) {
	issuer := &fakeIssuer{}
	m := newManager(issuer)

	m.Open("mod1", "alice")
	if _, err := m.ChooseReason("mod1", "Griefing"); err != nil {
		t.Fatalf("ChooseReason: %v", err)
	}
	if _, err := m.ChooseDuration("mod1", "7d"); err != nil {
		t.Fatalf("ChooseDuration: %v", err)
	}

	ban, err := m.Confirm("mod1")
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if ban == nil || len(issuer.calls) != 1 {
		t.Fatal("ban not issued")
	}
	call := issuer.calls[0]
	if call.Target != "alice" || call.Issuer != "mod1" || call.Reason != "Griefing" {
		t.Errorf("wrong call: %+v", call)
	}
	if call.Permanent || call.Millis != moderation.DurationTable["7d"] {
		t.Errorf("wrong duration: %+v", call)
	}

	if _, ok := m.Get("mod1"); ok {
		t.Error("session not discarded after confirm")
	}
}

func TestConfirmGatedOnBothChoicesEitherOrder(t *testing.T) {
	issuer := &fakeIssuer{}
	m := newManager(issuer)

	m.Open("mod1", "bob")
	if _, err := m.Confirm("mod1"); !errors.Is(err, ErrIncomplete) {
		t.Errorf("empty session: err = %v, want ErrIncomplete", err)
	}

	// Duration first, then reason.
	if _, err := m.ChooseDuration("mod1", "1h"); err != nil {
		t.Fatalf("ChooseDuration: %v", err)
	}
	if _, err := m.Confirm("mod1"); !errors.Is(err, ErrIncomplete) {
		t.Errorf("duration only: err = %v, want ErrIncomplete", err)
	}
	if _, err := m.ChooseReason("mod1", "Spamming"); err != nil {
		t.Fatalf("ChooseReason: %v", err)
	}
	if _, err := m.Confirm("mod1"); err != nil {
		t.Errorf("Confirm: %v", err)
	}
}

func TestPermanentToken(t *testing.T) {
	issuer := &fakeIssuer{}
	m := newManager(issuer)

	m.Open("mod1", "carol")
	m.ChooseReason("mod1", "Harassment")
	m.ChooseDuration("mod1", "Permanent")
	if _, err := m.Confirm("mod1"); err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if !issuer.calls[0].Permanent {
		t.Error("Permanent token did not set the flag")
	}
}

func TestReopenEvictsPriorSession(t *testing.T) {
	m := newManager(&fakeIssuer{})

	m.Open("mod1", "dave")
	m.ChooseReason("mod1", "Griefing")
	m.ChooseDuration("mod1", "1d")

	s := m.Open("mod1", "erin")
	if s.Target != "erin" || s.Reason != "" || s.Duration != "" {
		t.Errorf("reopen carried over state: %+v", s)
	}
	if _, err := m.Confirm("mod1"); !errors.Is(err, ErrIncomplete) {
		t.Errorf("err = %v, want ErrIncomplete after reopen", err)
	}
}

func TestRechoosingOverwrites(t *testing.T) {
	issuer := &fakeIssuer{}
	m := newManager(issuer)

	m.Open("mod1", "frank")
	m.ChooseReason("mod1", "Spamming")
	m.ChooseReason("mod1", "Advertising")
	m.ChooseDuration("mod1", "1h")
	m.ChooseDuration("mod1", "30d")

	if _, err := m.Confirm("mod1"); err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	call := issuer.calls[0]
	if call.Reason != "Advertising" || call.Millis != moderation.DurationTable["30d"] {
		t.Errorf("latest choices not used: %+v", call)
	}
}

func TestUnknownDurationRejected(t *testing.T) {
	m := newManager(&fakeIssuer{})
	m.Open("mod1", "gina")
	if _, err := m.ChooseDuration("mod1", "2h"); !errors.Is(err, ErrUnknownDuration) {
		t.Errorf("err = %v, want ErrUnknownDuration", err)
	}
	if s, _ := m.Get("mod1"); s.Duration != "" {
		t.Errorf("rejected token stored: %q", s.Duration)
	}
}

func TestConfirmFailureKeepsSession(t *testing.T) {
	issuer := &fakeIssuer{err: errors.New("store down")}
	m := newManager(issuer)

	m.Open("mod1", "henry")
	m.ChooseReason("mod1", "Griefing")
	m.ChooseDuration("mod1", "1d")
	if _, err := m.Confirm("mod1"); err == nil {
		t.Fatal("expected issue failure")
	}
	if _, ok := m.Get("mod1"); !ok {
		t.Error("session discarded on failure, retry impossible")
	}
}

func TestNoSessionErrors(t *testing.T) {
	m := newManager(&fakeIssuer{})
	if _, err := m.ChooseReason("mod1", "x"); !errors.Is(err, ErrNoSession) {
		t.Errorf("ChooseReason: %v", err)
	}
	if _, err := m.ChooseDuration("mod1", "1h"); !errors.Is(err, ErrNoSession) {
		t.Errorf("ChooseDuration: %v", err)
	}
	if _, err := m.Confirm("mod1"); !errors.Is(err, ErrNoSession) {
		t.Errorf("Confirm: %v", err)
	}
	if err := m.Cancel("mod1"); !errors.Is(err, ErrNoSession) {
		t.Errorf("Cancel: %v", err)
	}
	m.Close("mod1") // silent
}

func TestSessionsAreIndependentPerModerator(t *testing.T) {
	issuer := &fakeIssuer{}
	m := newManager(issuer)

	m.Open("mod1", "ivan")
	m.Open("mod2", "ivan")
	m.ChooseReason("mod1", "Griefing")
	m.ChooseDuration("mod1", "1d")
	m.ChooseReason("mod2", "Spamming")
	m.ChooseDuration("mod2", "1h")

	if _, err := m.Confirm("mod1"); err != nil {
		t.Fatalf("Confirm mod1: %v", err)
	}
	if _, ok := m.Get("mod2"); !ok {
		t.Error("mod2 session lost when mod1 confirmed")
	}
	if _, err := m.Confirm("mod2"); err != nil {
		t.Fatalf("Confirm mod2: %v", err)
	}
	if issuer.calls[0].Reason != "Griefing" || issuer.calls[1].Reason != "Spamming" {
		t.Errorf("cross-talk between sessions: %+v", issuer.calls)
	}
}
