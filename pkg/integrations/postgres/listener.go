package postgres

import (
	"context"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	// DefaultChannel is the NOTIFY channel raised by taxonomy table triggers.
	DefaultChannel = "taxonomy_changed"
	// DefaultDebounce drops notifications arriving within this window of
	// the last handled one.
	DefaultDebounce = time.Second
	// DefaultReconnectDelay is the pause before reconnecting after a failure.
	DefaultReconnectDelay = 5 * time.Second
)

// Conn is the subset of [pgx.Conn] used by [Listener].
type Conn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	WaitForNotification(ctx context.Context) (*pgconn.Notification, error)
	Close(ctx context.Context) error
}

// Connector opens a dedicated connection for LISTEN.
type Connector func(ctx context.Context) (Conn, error)

// DSNConnector connects with [pgx.Connect].
func DSNConnector(dsn string) Connector {
	return func(ctx context.Context) (Conn, error) {
		return pgx.Connect(ctx, dsn)
	}
}

// Listener calls a handler whenever the taxonomy table signals a change.
// Typically the handler force-reloads a [taxonomy.Store].
//
// [taxonomy.Store]: github.com/matzehuels/diagramir/pkg/taxonomy.Store
type Listener struct {
	connect   Connector
	onChange  func(ctx context.Context)
	channel   string
	debounce  time.Duration
	reconnect time.Duration
	logger    *log.Logger
	now       func() time.Time
}

// ListenerOption configures a [Listener].
type ListenerOption func(*Listener)

// WithChannel overrides [DefaultChannel].
func WithChannel(name string) ListenerOption {
	return func(l *Listener) { l.channel = name }
}

// WithDebounce overrides [DefaultDebounce].
func WithDebounce(d time.Duration) ListenerOption {
	return func(l *Listener) { l.debounce = d }
}

// WithReconnectDelay overrides [DefaultReconnectDelay].
func WithReconnectDelay(d time.Duration) ListenerOption {
	return func(l *Listener) { l.reconnect = d }
}

// WithListenerLogger sets the logger. Nil discards.
func WithListenerLogger(lg *log.Logger) ListenerOption {
	return func(l *Listener) { l.logger = lg }
}

// NewListener creates a listener. Nothing happens until [Listener.Run].
func NewListener(connect Connector, onChange func(ctx context.Context), opts ...ListenerOption) *Listener {
	l := &Listener{
		connect:   connect,
		onChange:  onChange,
		channel:   DefaultChannel,
		debounce:  DefaultDebounce,
		reconnect: DefaultReconnectDelay,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.logger == nil {
		l.logger = log.New(io.Discard)
	}
	return l
}

// Run listens until ctx is cancelled, reconnecting after connection
// failures. It always returns ctx.Err().
func (l *Listener) Run(ctx context.Context) error {
	var last time.Time
	for {
		err := l.session(ctx, &last)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		l.logger.Error("taxonomy listener failed, reconnecting", "error", err, "delay", l.reconnect)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(l.reconnect):
		}
	}
}

// Start runs the listener in a goroutine. The returned channel is closed
// when it exits.
func (l *Listener) Start(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = l.Run(ctx)
	}()
	return done
}

func (l *Listener) session(ctx context.Context, last *time.Time) error {
	conn, err := l.connect(ctx)
	if err != nil {
		return err
	}
	defer conn.Close(context.Background())

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{l.channel}.Sanitize()); err != nil {
		return err
	}
	l.logger.Info("taxonomy listener started", "channel", l.channel)

	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			return err
		}
		l.logger.Debug("taxonomy notification", "channel", n.Channel, "payload", truncate(n.Payload, 200))
		now := l.now()
		if !last.IsZero() && now.Sub(*last) < l.debounce {
			continue
		}
		*last = now
		l.onChange(ctx)
		l.logger.Info("taxonomy reloaded after notification")
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
