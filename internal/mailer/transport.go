package mailer

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"net/textproto"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	// maxConnections bounds how many SMTP connections one upstream account
	// may hold at once.
	maxConnections = 5

	// maxMessagesPerConn is how many messages a connection carries before it
	// is rotated. Some providers drop connections that send indefinitely.
	maxMessagesPerConn = 100
)

// smtpTransport is the default Transport. It keeps a small pool of idle
// connections to one upstream account and rotates them after
// maxMessagesPerConn messages.
type smtpTransport struct {
	cfg         Config
	dialTimeout time.Duration

	sem chan struct{}

	mu     sync.Mutex
	idle   []*smtpConn
	closed bool
}

type smtpConn struct {
	client *smtp.Client
	sent   int
}

func newSMTPTransport(cfg Config, dialTimeout time.Duration) *smtpTransport {
	return &smtpTransport{
		cfg:         cfg,
		dialTimeout: dialTimeout,
		sem:         make(chan struct{}, maxConnections),
	}
}

// Send delivers one message, reusing an idle connection when available. A
// recipient rejected with a 4xx/5xx reply is reported in Result.Rejected; any
// other failure aborts the whole send.
func (t *smtpTransport) Send(ctx context.Context, msg Message) (Result, error) {
	select {
	case t.sem <- struct{}{}:
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
	defer func() { <-t.sem }()

	conn, err := t.acquire(ctx)
	if err != nil {
		return Result{}, err
	}

	res, err := t.deliver(conn, msg)
	if err != nil {
		conn.client.Close()
		return res, err
	}

	conn.sent++
	t.release(conn)
	return res, nil
}

func (t *smtpTransport) Close() error {
	t.mu.Lock()
	idle := t.idle
	t.idle = nil
	t.closed = true
	t.mu.Unlock()

	var first error
	for _, conn := range idle {
		if err := conn.client.Quit(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (t *smtpTransport) acquire(ctx context.Context) (*smtpConn, error) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil, fmt.Errorf("mailer: transport closed")
	}
	if n := len(t.idle); n > 0 {
		conn := t.idle[n-1]
		t.idle = t.idle[:n-1]
		t.mu.Unlock()
		return conn, nil
	}
	t.mu.Unlock()

	client, err := t.dial(ctx)
	if err != nil {
		return nil, err
	}
	return &smtpConn{client: client}, nil
}

func (t *smtpTransport) release(conn *smtpConn) {
	if conn.sent >= maxMessagesPerConn {
		_ = conn.client.Quit()
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		_ = conn.client.Quit()
		return
	}
	t.idle = append(t.idle, conn)
}

// dial establishes and authenticates one connection. Secure means implicit
// TLS (typically port 465); otherwise the connection starts in plaintext and
// upgrades via STARTTLS when the server offers it.
func (t *smtpTransport) dial(ctx context.Context) (*smtp.Client, error) {
	addr := net.JoinHostPort(t.cfg.Host, fmt.Sprintf("%d", t.cfg.Port))

	timeout := t.dialTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if until := time.Until(deadline); until < timeout {
			timeout = until
		}
	}

	var (
		conn net.Conn
		err  error
	)
	if t.cfg.Secure {
		dialer := &net.Dialer{Timeout: timeout}
		conn, err = tls.DialWithDialer(dialer, "tcp", addr, &tls.Config{ServerName: t.cfg.Host})
	} else {
		conn, err = net.DialTimeout("tcp", addr, timeout)
	}
	if err != nil {
		return nil, fmt.Errorf("mailer: dial %s: %w", addr, err)
	}

	client, err := smtp.NewClient(conn, t.cfg.Host)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("mailer: handshake %s: %w", addr, err)
	}

	if err := client.Hello(localName()); err != nil {
		client.Close()
		return nil, err
	}

	if !t.cfg.Secure {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(&tls.Config{ServerName: t.cfg.Host}); err != nil {
				client.Close()
				return nil, err
			}
		}
	}

	if t.cfg.Username != "" {
		auth := smtp.PlainAuth("", t.cfg.Username, t.cfg.Password, t.cfg.Host)
		if err := client.Auth(auth); err != nil {
			client.Close()
			return nil, fmt.Errorf("mailer: auth: %w", err)
		}
	}

	return client, nil
}

func (t *smtpTransport) deliver(conn *smtpConn, msg Message) (Result, error) {
	res := Result{MessageID: newMessageID(t.cfg.Host)}

	if err := conn.client.Mail(msg.From); err != nil {
		return res, err
	}

	for _, rcpt := range append(append([]string{}, msg.To...), msg.CC...) {
		if err := conn.client.Rcpt(rcpt); err != nil {
			if isReplyErr(err) {
				res.Rejected = append(res.Rejected, rcpt)
				continue
			}
			return res, err
		}
		res.Accepted = append(res.Accepted, rcpt)
	}
	if len(res.Accepted) == 0 {
		_ = conn.client.Reset()
		return res, fmt.Errorf("mailer: all recipients rejected")
	}

	w, err := conn.client.Data()
	if err != nil {
		return res, err
	}
	if _, err := w.Write(buildMessage(msg, res.MessageID)); err != nil {
		return res, err
	}
	if err := w.Close(); err != nil {
		return res, err
	}

	return res, nil
}

// isReplyErr reports whether err carries an SMTP reply code, as opposed to a
// broken connection.
func isReplyErr(err error) bool {
	var protoErr *textproto.Error
	return errors.As(err, &protoErr)
}

func newMessageID(host string) string {
	return fmt.Sprintf("<%s@%s>", uuid.NewString(), host)
}

func localName() string {
	if name, err := net.LookupCNAME("localhost"); err == nil && name != "" {
		return strings.TrimSuffix(name, ".")
	}
	return "localhost"
}

// buildMessage renders the RFC 5322 wire form. With both a text and an HTML
// body it emits multipart/alternative, text part first.
func buildMessage(msg Message, messageID string) []byte {
	var b strings.Builder

	writeHeader(&b, "From", msg.From)
	writeHeader(&b, "To", strings.Join(msg.To, ", "))
	if len(msg.CC) > 0 {
		writeHeader(&b, "Cc", strings.Join(msg.CC, ", "))
	}
	writeHeader(&b, "Subject", mime.QEncoding.Encode("utf-8", msg.Subject))
	writeHeader(&b, "Message-ID", messageID)
	writeHeader(&b, "Date", time.Now().UTC().Format(time.RFC1123Z))
	writeHeader(&b, "MIME-Version", "1.0")

	switch {
	case msg.Text != "" && msg.HTML != "":
		boundary := strings.ReplaceAll(uuid.NewString(), "-", "")
		writeHeader(&b, "Content-Type", fmt.Sprintf("multipart/alternative; boundary=%q", boundary))
		b.WriteString("\r\n")

		writePart(&b, boundary, "text/plain; charset=utf-8", msg.Text)
		writePart(&b, boundary, "text/html; charset=utf-8", msg.HTML)
		fmt.Fprintf(&b, "--%s--\r\n", boundary)

	case msg.HTML != "":
		writeHeader(&b, "Content-Type", "text/html; charset=utf-8")
		b.WriteString("\r\n")
		b.WriteString(normalizeNewlines(msg.HTML))

	default:
		writeHeader(&b, "Content-Type", "text/plain; charset=utf-8")
		b.WriteString("\r\n")
		b.WriteString(normalizeNewlines(msg.Text))
	}

	return []byte(b.String())
}

func writeHeader(b *strings.Builder, key, value string) {
	fmt.Fprintf(b, "%s: %s\r\n", key, value)
}

func writePart(b *strings.Builder, boundary, contentType, body string) {
	fmt.Fprintf(b, "--%s\r\n", boundary)
	fmt.Fprintf(b, "Content-Type: %s\r\n\r\n", contentType)
	b.WriteString(normalizeNewlines(body))
	b.WriteString("\r\n")
}

func normalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\n", "\r\n")
}
