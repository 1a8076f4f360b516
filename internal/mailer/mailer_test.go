package mailer

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type fakeTransport struct {
	cfg    Config
	sent   []Message
	fail   bool
	closed bool
}

func (f *fakeTransport) Send(_ context.Context, msg Message) (Result, error) {
	if f.fail {
		return Result{}, errors.New("boom")
	}
	f.sent = append(f.sent, msg)
	return Result{MessageID: "<test@local>", Accepted: append(append([]string{}, msg.To...), msg.CC...)}, nil
}

func (f *fakeTransport) Close() error {
	f.closed = true
	return nil
}

type fakeFactory struct {
	built []*fakeTransport
	fail  bool
}

func (ff *fakeFactory) new(cfg Config) Transport {
	t := &fakeTransport{cfg: cfg, fail: ff.fail}
	ff.built = append(ff.built, t)
	return t
}

func TestDispatcher_ReusesTransportPerAccount(t *testing.T) {
	t.Parallel()

	ff := &fakeFactory{}
	d := NewDispatcher(WithFactory(ff.new))

	cfg := Config{Host: "smtp.example.com", Port: 587, Username: "u", FromEmail: "noreply@example.com"}
	other := Config{Host: "smtp.example.com", Port: 587, Username: "v", FromEmail: "noreply@example.com"}

	for i := 0; i < 3; i++ {
		if _, err := d.Send(context.Background(), cfg, Message{To: []string{"a@b.com"}, Subject: "hi"}); err != nil {
			t.Fatalf("send %d: %v", i, err)
		}
	}
	if _, err := d.Send(context.Background(), other, Message{To: []string{"a@b.com"}}); err != nil {
		t.Fatalf("send other: %v", err)
	}

	if len(ff.built) != 2 {
		t.Fatalf("expected one transport per account, built %d", len(ff.built))
	}
	if len(ff.built[0].sent) != 3 || len(ff.built[1].sent) != 1 {
		t.Fatalf("unexpected distribution: %d / %d", len(ff.built[0].sent), len(ff.built[1].sent))
	}
}

func TestDispatcher_EvictsFailedTransport(t *testing.T) {
	t.Parallel()

	ff := &fakeFactory{fail: true}
	d := NewDispatcher(WithFactory(ff.new))
	cfg := Config{Host: "smtp.example.com", Port: 587, Username: "u"}

	if _, err := d.Send(context.Background(), cfg, Message{To: []string{"a@b.com"}}); err == nil {
		t.Fatalf("expected send error")
	}
	if !ff.built[0].closed {
		t.Fatalf("failed transport must be closed")
	}

	ff.fail = false
	if _, err := d.Send(context.Background(), cfg, Message{To: []string{"a@b.com"}}); err != nil {
		t.Fatalf("send after eviction: %v", err)
	}
	if len(ff.built) != 2 {
		t.Fatalf("expected a fresh transport after failure, built %d", len(ff.built))
	}
}

func TestDispatcher_FromFallback(t *testing.T) {
	t.Parallel()

	ff := &fakeFactory{}
	d := NewDispatcher(WithFactory(ff.new))

	cases := []struct {
		cfg  Config
		from string
		want string
	}{
		{Config{Host: "h", Port: 25, Username: "user@x.com", FromEmail: "cfg@x.com"}, "payload@x.com", "payload@x.com"},
		{Config{Host: "h", Port: 25, Username: "user@x.com", FromEmail: "cfg@x.com"}, "", "cfg@x.com"},
		{Config{Host: "h", Port: 25, Username: "user@x.com"}, "", "user@x.com"},
	}
	for _, tc := range cases {
		if _, err := d.Send(context.Background(), tc.cfg, Message{From: tc.from, To: []string{"a@b.com"}}); err != nil {
			t.Fatalf("send: %v", err)
		}
	}

	sent := ff.built[0].sent
	if len(sent) != 3 {
		t.Fatalf("expected 3 messages on one transport, got %d", len(sent))
	}
	for i, tc := range cases {
		if sent[i].From != tc.want {
			t.Fatalf("case %d: expected from %q, got %q", i, tc.want, sent[i].From)
		}
	}
}

func TestDispatcher_RejectsUnconfigured(t *testing.T) {
	t.Parallel()

	d := NewDispatcher(WithFactory((&fakeFactory{}).new))

	if _, err := d.Send(context.Background(), Config{}, Message{To: []string{"a@b.com"}}); err == nil {
		t.Fatalf("expected error for missing host")
	}
	if _, err := d.Send(context.Background(), Config{Host: "h", Port: 25}, Message{}); err == nil {
		t.Fatalf("expected error for missing recipients")
	}
	if _, err := d.Send(context.Background(), Config{Host: "h", Port: 25}, Message{To: []string{"a@b.com"}}); err == nil {
		t.Fatalf("expected error when no sender can be derived")
	}
}

func TestTransportKey(t *testing.T) {
	t.Parallel()

	if got := transportKey(Config{Host: "SMTP.Example.com", Port: 587, Username: "u"}); got != "smtp.example.com:587:u" {
		t.Fatalf("unexpected key %q", got)
	}
	if got := transportKey(Config{Host: "h", Port: 25}); got != "h:25:anon" {
		t.Fatalf("unexpected anon key %q", got)
	}
}

func TestBuildMessage(t *testing.T) {
	t.Parallel()

	raw := string(buildMessage(Message{
		From:    "noreply@example.com",
		To:      []string{"a@b.com", "c@d.com"},
		CC:      []string{"e@f.com"},
		Subject: "New submission",
		Text:    "line one\nline two",
		HTML:    "<p>line one</p>",
	}, "<id@host>"))

	for _, want := range []string{
		"From: noreply@example.com\r\n",
		"To: a@b.com, c@d.com\r\n",
		"Cc: e@f.com\r\n",
		"Subject: New submission\r\n",
		"Message-ID: <id@host>\r\n",
		"multipart/alternative",
		"text/plain; charset=utf-8",
		"text/html; charset=utf-8",
		"line one\r\nline two",
	} {
		if !strings.Contains(raw, want) {
			t.Fatalf("message missing %q:\n%s", want, raw)
		}
	}

	textOnly := string(buildMessage(Message{From: "a@b.com", To: []string{"c@d.com"}, Text: "hi"}, "<id@host>"))
	if strings.Contains(textOnly, "multipart") {
		t.Fatalf("text-only message must not be multipart:\n%s", textOnly)
	}
	if !strings.Contains(textOnly, "Content-Type: text/plain; charset=utf-8\r\n\r\nhi") {
		t.Fatalf("unexpected text-only body:\n%s", textOnly)
	}
}
