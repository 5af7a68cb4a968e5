package amqp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rabbitmq/amqp091-go"

	applog "ledger/internal/log"
)

// Circuit breaker states
const (
	StateClosed int32 = iota
	StateOpen
	StateHalfOpen
)

const (
	maxFailures      = 5
	openTimeout      = 30 * time.Second
	publishTimeout   = 5 * time.Second
	handshakeTimeout = 10 * time.Second
	heartbeat        = 10 * time.Second
	maxBackoff       = 30 * time.Second
	dialAttempts     = 3
)

var (
	ErrCircuitOpen  = errors.New("circuit breaker is open")
	ErrNotConnected = errors.New("not connected to broker")
)

// Client publishes and consumes ledger events. After the initial connection
// a single watcher goroutine owns reconnection; publishers never dial.
type Client struct {
	url          string
	exchangeName string
	queueName    string

	mu      sync.Mutex
	conn    *amqp091.Connection
	channel *amqp091.Channel

	done      chan struct{}
	closeOnce sync.Once

	state        int32
	failureCount int64
	lastFailure  atomic.Int64 // unix nanos
}

// closeSignals fire when the broker or the network drops the connection or
// the channel.
type closeSignals struct {
	conn    chan *amqp091.Error
	channel chan *amqp091.Error
}

func newClient(url, exchangeName, queueName string) *Client {
	return &Client{
		url:          url,
		exchangeName: exchangeName,
		queueName:    queueName,
		done:         make(chan struct{}),
	}
}

// NewClient dials the broker, retrying with exponential backoff, and declares
// the exchange and queue. Every attempt is bounded by ctx.
func NewClient(ctx context.Context, url, exchangeName, queueName string) (*Client, error) {
	client := newClient(url, exchangeName, queueName)

	var err error
	for attempt := 0; attempt < dialAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(exponentialBackoff(attempt - 1)):
			}
		}
		var signals closeSignals
		if signals, err = client.connect(ctx); err == nil {
			go client.watch(signals)
			return client, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !isConnectionError(err) {
			break
		}
		slog.WarnContext(ctx, "AMQP connection attempt failed",
			applog.FieldComponent, applog.ComponentAMQP, "attempt", attempt+1, applog.FieldError, err)
	}
	return nil, err
}

// dialer returns a dial function whose TCP connect and AMQP handshake finish
// before ctx's deadline, or handshakeTimeout when ctx has none.
func dialer(ctx context.Context) func(network, addr string) (net.Conn, error) {
	return func(network, addr string) (net.Conn, error) {
		deadline := time.Now().Add(handshakeTimeout)
		if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
			deadline = d
		}
		var d net.Dialer
		dialCtx, cancel := context.WithDeadline(ctx, deadline)
		defer cancel()
		conn, err := d.DialContext(dialCtx, network, addr)
		if err != nil {
			return nil, err
		}
		// amqp091 clears the deadline once the handshake completes.
		if err := conn.SetDeadline(deadline); err != nil {
			conn.Close()
			return nil, err
		}
		return conn, nil
	}
}

func (c *Client) connect(ctx context.Context) (closeSignals, error) {
	conn, err := amqp091.DialConfig(c.url, amqp091.Config{
		Heartbeat: heartbeat,
		Locale:    "en_US",
		Dial:      dialer(ctx),
	})
	if err != nil {
		return closeSignals{}, fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return closeSignals{}, fmt.Errorf("open channel: %w", err)
	}

	if err := c.setup(channel); err != nil {
		channel.Close()
		conn.Close()
		return closeSignals{}, fmt.Errorf("setup exchange and queue: %w", err)
	}

	signals := closeSignals{
		conn:    conn.NotifyClose(make(chan *amqp091.Error, 1)),
		channel: channel.NotifyClose(make(chan *amqp091.Error, 1)),
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	select {
	case <-c.done:
		channel.Close()
		conn.Close()
		return closeSignals{}, amqp091.ErrClosed
	default:
	}
	c.conn = conn
	c.channel = channel
	return signals, nil
}

// watch waits for the connection or channel to drop and reconnects with
// backoff until it succeeds or the client is closed.
func (c *Client) watch(signals closeSignals) {
	for {
		var reason *amqp091.Error
		select {
		case <-c.done:
			return
		case reason = <-signals.conn:
		case reason = <-signals.channel:
		}
		select {
		case <-c.done:
			return
		default:
		}

		slog.Warn("AMQP connection lost, reconnecting",
			applog.FieldComponent, applog.ComponentAMQP, "reason", reason)
		c.dropConn()

		var ok bool
		if signals, ok = c.reconnect(); !ok {
			return
		}
	}
}

func (c *Client) reconnect() (closeSignals, bool) {
	for attempt := 0; ; attempt++ {
		select {
		case <-c.done:
			return closeSignals{}, false
		case <-time.After(exponentialBackoff(attempt)):
		}

		ctx, cancel := context.WithTimeout(context.Background(), handshakeTimeout)
		signals, err := c.connect(ctx)
		cancel()
		if err == nil {
			slog.Info("AMQP connection restored",
				applog.FieldComponent, applog.ComponentAMQP, "attempts", attempt+1)
			return signals, true
		}
		slog.Warn("AMQP reconnect failed",
			applog.FieldComponent, applog.ComponentAMQP, "attempt", attempt+1, applog.FieldError, err)
	}
}

func (c *Client) setup(channel *amqp091.Channel) error {
	// Declare exchange
	err := channel.ExchangeDeclare(
		c.exchangeName, // name
		"direct",       // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	// Declare queue
	_, err = channel.QueueDeclare(
		c.queueName, // name
		true,        // durable
		false,       // delete when unused
		false,       // exclusive
		false,       // no-wait
		nil,         // arguments
	)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	// Bind queue to exchange
	err = channel.QueueBind(
		c.queueName,    // queue name
		c.queueName,    // routing key (same as queue name for direct exchange)
		c.exchangeName, // exchange
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}

	return nil
}

// currentChannel returns the open channel without blocking. While the watcher
// is reconnecting it reports ErrNotConnected.
func (c *Client) currentChannel() (*amqp091.Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.channel == nil || c.channel.IsClosed() {
		return nil, ErrNotConnected
	}
	return c.channel, nil
}

// PublishEvent publishes a persistent ledger event.
func (c *Client) PublishEvent(ctx context.Context, evt *LedgerEvent) error {
	if c.isCircuitOpen() {
		return fmt.Errorf("publish %s: %w", evt.Type, ErrCircuitOpen)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	body, err := evt.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	ch, err := c.currentChannel()
	if err != nil {
		c.recordFailure()
		return fmt.Errorf("get channel: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err = ch.PublishWithContext(
		ctx,
		c.exchangeName, // exchange
		c.queueName,    // routing key
		false,          // mandatory
		false,          // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent, // make message persistent
			Timestamp:    evt.Timestamp,
			Type:         string(evt.Type),
			Body:         body,
		},
	)
	if err != nil {
		c.recordFailure()
		return fmt.Errorf("publish message: %w", err)
	}
	c.recordSuccess()

	slog.DebugContext(ctx, "Published ledger event",
		"type", evt.Type,
		"entity_id", evt.EntityID,
		"exchange", c.exchangeName,
		"queue", c.queueName)

	return nil
}

// ConsumeEvents delivers ledger events to handler until ctx is cancelled.
// Successful handling acks the delivery; a handler error requeues it.
func (c *Client) ConsumeEvents(ctx context.Context, handler func(*LedgerEvent) error) error {
	ch, err := c.currentChannel()
	if err != nil {
		return fmt.Errorf("get channel: %w", err)
	}

	msgs, err := ch.Consume(
		c.queueName, // queue
		"",          // consumer
		false,       // auto-ack (we want manual ack)
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	slog.InfoContext(ctx, "Started consuming ledger events", "queue", c.queueName)

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Stopping message consumption", "reason", ctx.Err())
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return fmt.Errorf("message channel closed")
			}

			evt, err := LedgerEventFromJSON(delivery.Body)
			if err != nil {
				slog.ErrorContext(ctx, "Failed to unmarshal message", "error", err)
				delivery.Nack(false, false) // reject and don't requeue
				continue
			}

			if err := handler(evt); err != nil {
				slog.ErrorContext(ctx, "Failed to handle message",
					"error", err,
					"type", evt.Type,
					"entity_id", evt.EntityID)
				delivery.Nack(false, true) // reject and requeue
				continue
			}

			delivery.Ack(false)
		}
	}
}

func (c *Client) isCircuitOpen() bool {
	switch atomic.LoadInt32(&c.state) {
	case StateOpen:
		last := time.Unix(0, c.lastFailure.Load())
		if time.Since(last) > openTimeout {
			atomic.CompareAndSwapInt32(&c.state, StateOpen, StateHalfOpen)
			return false
		}
		return true
	default:
		return false
	}
}

func (c *Client) recordSuccess() {
	atomic.StoreInt64(&c.failureCount, 0)
	atomic.StoreInt32(&c.state, StateClosed)
}

func (c *Client) recordFailure() {
	c.lastFailure.Store(time.Now().UnixNano())
	failures := atomic.AddInt64(&c.failureCount, 1)
	if failures >= maxFailures || atomic.LoadInt32(&c.state) == StateHalfOpen {
		atomic.StoreInt32(&c.state, StateOpen)
	}
}

// exponentialBackoff returns 1s, 2s, 4s, ... capped at maxBackoff.
func exponentialBackoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > 5 {
		return maxBackoff
	}
	d := time.Second << attempt
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, amqp091.ErrClosed) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"connection refused",
		"connection closed",
		"connection reset",
		"eof",
		"broken pipe",
		"use of closed network connection",
		"no such host",
		"i/o timeout",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// dropConn releases a dead connection so publishers fail fast until the
// watcher installs a new one.
func (c *Client) dropConn() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.channel != nil {
		c.channel.Close()
		c.channel = nil
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

// Close stops the watcher and closes the connection. It is safe to call more
// than once.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		if c.done != nil {
			close(c.done)
		}
	})

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.channel != nil {
		c.channel.Close()
		c.channel = nil
	}
	if c.conn != nil {
		err := c.conn.Close()
		c.conn = nil
		if errors.Is(err, amqp091.ErrClosed) {
			return nil
		}
		return err
	}
	return nil
}
