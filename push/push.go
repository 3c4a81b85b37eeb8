// Package push delivers Web Push notifications to respondents.
package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/kentoooo/mellowq/log"
	"github.com/kentoooo/mellowq/metrics"
	"github.com/kentoooo/mellowq/model"
)

// Message is the JSON payload handed to the service worker.
type Message struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	URL   string `json:"url"`
}

// Result is the outcome of a single delivery. Send never fails loudly:
// callers decide what an undelivered message means for them.
type Result struct {
	Delivered bool
	// Gone means the push service no longer knows the subscription.
	Gone   bool
	Reason string
}

type Sender interface {
	Send(ctx context.Context, sub model.PushSubscription, msg Message) Result
}

type Config struct {
	PublicKey  string
	PrivateKey string
	Subscriber string
	// TTL is how long, in seconds, the push service keeps an undelivered message.
	TTL     int
	Timeout time.Duration
}

type Dispatcher struct {
	cfg    Config
	client webpush.HTTPClient

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[int]
}

func NewDispatcher(cfg Config) *Dispatcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Dispatcher{
		cfg:      cfg,
		client:   transport{&http.Client{Timeout: cfg.Timeout}},
		breakers: map[string]*gobreaker.CircuitBreaker[int]{},
	}
}

func (d *Dispatcher) Enabled() bool {
	return d.cfg.PublicKey != "" && d.cfg.PrivateKey != ""
}

// PublicKey is the application server key browsers subscribe with.
func (d *Dispatcher) PublicKey() string {
	return d.cfg.PublicKey
}

// unavailableError marks failures of the push service itself, as opposed to
// problems with one subscription. Only these trip the circuit breaker.
type unavailableError struct {
	err error
}

func (e unavailableError) Error() string { return e.err.Error() }
func (e unavailableError) Unwrap() error { return e.err }

type transport struct {
	client *http.Client
}

func (t transport) Do(req *http.Request) (*http.Response, error) {
	resp, err := t.client.Do(req)
	if err != nil {
		return nil, unavailableError{err}
	}
	return resp, nil
}

func stateToFloat(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	}
	return 0
}

// breaker returns the circuit breaker of one push service host.
func (d *Dispatcher) breaker(host string) *gobreaker.CircuitBreaker[int] {
	d.mu.Lock()
	defer d.mu.Unlock()

	if cb, ok := d.breakers[host]; ok {
		return cb
	}
	name := "push:" + host
	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)
	cb := gobreaker.NewCircuitBreaker[int](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warnf("push.breaker: %s %s -> %s", name, from, to)
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
		},
		IsSuccessful: func(err error) bool {
			var unavailable unavailableError
			return !errors.As(err, &unavailable)
		},
	})
	d.breakers[host] = cb
	return cb
}

func (d *Dispatcher) Send(ctx context.Context, sub model.PushSubscription, msg Message) Result {
	if !d.Enabled() {
		return Result{Reason: "push notifications are not configured"}
	}

	endpoint, err := url.Parse(sub.Endpoint)
	if err != nil || endpoint.Host == "" {
		return Result{Reason: "invalid push endpoint"}
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return Result{Reason: err.Error()}
	}

	status, err := d.breaker(endpoint.Host).Execute(func() (int, error) {
		resp, err := webpush.SendNotificationWithContext(ctx, payload, &webpush.Subscription{
			Endpoint: sub.Endpoint,
			Keys:     webpush.Keys{P256dh: sub.Keys.P256dh, Auth: sub.Keys.Auth},
		}, &webpush.Options{
			HTTPClient:      d.client,
			Subscriber:      d.cfg.Subscriber,
			VAPIDPublicKey:  d.cfg.PublicKey,
			VAPIDPrivateKey: d.cfg.PrivateKey,
			TTL:             d.cfg.TTL,
			Urgency:         webpush.UrgencyHigh,
		})
		if err != nil {
			return 0, err
		}
		defer resp.Body.Close()
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return resp.StatusCode, unavailableError{fmt.Errorf("push service answered %d", resp.StatusCode)}
		}
		return resp.StatusCode, nil
	})

	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		log.Warnf("push.send: %s: %v", endpoint.Host, err)
		return Result{Reason: "push service temporarily unavailable"}
	case err != nil:
		log.Warnf("push.send: %s: %v", endpoint.Host, err)
		return Result{Reason: err.Error()}
	case status >= 200 && status < 300:
		return Result{Delivered: true}
	case status == http.StatusNotFound || status == http.StatusGone:
		log.Debugf("push.send: %s: subscription gone (%d)", endpoint.Host, status)
		return Result{Gone: true, Reason: "subscription expired"}
	}
	log.Warnf("push.send: %s: push service answered %d", endpoint.Host, status)
	return Result{Reason: fmt.Sprintf("push service answered %d", status)}
}
