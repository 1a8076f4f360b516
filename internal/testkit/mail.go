package testkit

import (
	"context"
	"fmt"
	"sync"

	"github.com/Developersbbs/Embedd-Mailer/internal/mailer"
	"github.com/google/uuid"
)

// SentMail is one message captured by the MailRecorder, together with the
// SMTP account it would have been sent through.
type SentMail struct {
	Account mailer.Config
	Message mailer.Message
}

// MailRecorder is a mailer.Transport factory that records every message
// instead of dialing SMTP. FailWith makes subsequent sends return an error,
// which is how tests exercise the bounce path.
type MailRecorder struct {
	mu   sync.Mutex
	sent []SentMail
	fail error
}

func (r *MailRecorder) Factory(cfg mailer.Config) mailer.Transport {
	return &recordingTransport{rec: r, cfg: cfg}
}

func (r *MailRecorder) Sent() []SentMail {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]SentMail, len(r.sent))
	copy(out, r.sent)
	return out
}

func (r *MailRecorder) FailWith(err error) {
	r.mu.Lock()
	r.fail = err
	r.mu.Unlock()
}

type recordingTransport struct {
	rec *MailRecorder
	cfg mailer.Config
}

func (t *recordingTransport) Send(_ context.Context, msg mailer.Message) (mailer.Result, error) {
	t.rec.mu.Lock()
	defer t.rec.mu.Unlock()

	if t.rec.fail != nil {
		return mailer.Result{}, t.rec.fail
	}
	t.rec.sent = append(t.rec.sent, SentMail{Account: t.cfg, Message: msg})
	return mailer.Result{
		MessageID: fmt.Sprintf("<%s@testkit>", uuid.NewString()),
		Accepted:  append([]string(nil), msg.To...),
	}, nil
}

func (t *recordingTransport) Close() error { return nil }
