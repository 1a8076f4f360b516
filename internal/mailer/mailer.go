package mailer

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// Config holds the per-project SMTP settings a transport is built from.
type Config struct {
	Host     string
	Port     int
	Secure   bool
	Username string
	Password string

	// FromEmail is the default sender when the message does not set one.
	FromEmail string
}

// Message is one outbound mail. From may be empty, in which case the
// dispatcher falls back to Config.FromEmail and then to Config.Username.
type Message struct {
	From    string
	To      []string
	CC      []string
	Subject string
	Text    string
	HTML    string
}

// Result reports the per-recipient outcome of one send.
type Result struct {
	MessageID string
	Accepted  []string
	Rejected  []string
}

// Transport delivers messages over one upstream SMTP account.
type Transport interface {
	Send(ctx context.Context, msg Message) (Result, error)
	Close() error
}

// Dispatcher caches one transport per upstream account so consecutive sends
// for the same project reuse connections instead of dialing every time. A
// transport that returns an error is evicted, so the next send for that
// account starts from a fresh one.
type Dispatcher struct {
	mu         sync.Mutex
	transports map[string]Transport
	factory    func(Config) Transport
}

type Option func(*Dispatcher)

// WithFactory overrides how transports are constructed. Tests use this to
// substitute a fake for the real SMTP transport.
func WithFactory(factory func(Config) Transport) Option {
	return func(d *Dispatcher) {
		d.factory = factory
	}
}

// WithDialTimeout bounds how long the SMTP transport waits for the upstream
// server when dialing.
func WithDialTimeout(d time.Duration) Option {
	return func(disp *Dispatcher) {
		if d > 0 {
			disp.factory = func(cfg Config) Transport {
				return newSMTPTransport(cfg, d)
			}
		}
	}
}

func NewDispatcher(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		transports: make(map[string]Transport),
		factory: func(cfg Config) Transport {
			return newSMTPTransport(cfg, 10*time.Second)
		},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Send delivers msg through the cached transport for cfg, creating it on
// first use. Delivery failures evict the transport before the error is
// returned to the caller.
func (d *Dispatcher) Send(ctx context.Context, cfg Config, msg Message) (Result, error) {
	if cfg.Host == "" {
		return Result{}, fmt.Errorf("mailer: no smtp host configured")
	}
	if len(msg.To) == 0 {
		return Result{}, fmt.Errorf("mailer: no recipients")
	}

	if msg.From == "" {
		msg.From = cfg.FromEmail
	}
	if msg.From == "" {
		msg.From = cfg.Username
	}
	if msg.From == "" {
		return Result{}, fmt.Errorf("mailer: no sender address available")
	}

	key := transportKey(cfg)
	transport := d.transport(key, cfg)

	res, err := transport.Send(ctx, msg)
	if err != nil {
		d.evict(key, transport)
		return res, err
	}
	return res, nil
}

// Close shuts down every cached transport. Used on graceful shutdown.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var first error
	for key, t := range d.transports {
		if err := t.Close(); err != nil && first == nil {
			first = err
		}
		delete(d.transports, key)
	}
	return first
}

func (d *Dispatcher) transport(key string, cfg Config) Transport {
	d.mu.Lock()
	defer d.mu.Unlock()

	if t, ok := d.transports[key]; ok {
		return t
	}
	t := d.factory(cfg)
	d.transports[key] = t
	return t
}

// evict drops a failed transport from the cache, but only if it is still the
// cached one. A concurrent send may already have replaced it.
func (d *Dispatcher) evict(key string, failed Transport) {
	d.mu.Lock()
	if d.transports[key] == failed {
		delete(d.transports, key)
	}
	d.mu.Unlock()

	_ = failed.Close()
}

func transportKey(cfg Config) string {
	user := cfg.Username
	if user == "" {
		user = "anon"
	}
	return fmt.Sprintf("%s:%d:%s", strings.ToLower(cfg.Host), cfg.Port, user)
}
