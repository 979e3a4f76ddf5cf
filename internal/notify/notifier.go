package notify

import (
	"context"
	"time"

	"payway/internal/status"
)

// Resolver resolves the status of one intent at a point in time.
type Resolver interface {
	Resolve(ctx context.Context, id string, now time.Time) (status.Result, error)
}

// Sink receives the status updates for one subscriber.
type Sink interface {
	Send(res status.Result) error
}

// Reason says why a watch loop stopped.
type Reason string

const (
	ReasonTerminal     Reason = "terminal"     // PAID or EXPIRED was sent
	ReasonDisconnected Reason = "disconnected" // subscriber went away or a send failed
	ReasonTimeout      Reason = "timeout"      // max watch duration elapsed
	ReasonError        Reason = "error"        // resolver hard failure
)

// Notifier runs one polling loop per subscriber. Loops share nothing but the
// resolver, which is safe for concurrent use.
type Notifier struct {
	resolver    Resolver
	interval    time.Duration
	maxDuration time.Duration
	Now         func() time.Time
}

func NewNotifier(resolver Resolver, interval, maxDuration time.Duration) *Notifier {
	if interval <= 0 {
		interval = time.Second
	}
	return &Notifier{
		resolver:    resolver,
		interval:    interval,
		maxDuration: maxDuration,
		Now:         time.Now,
	}
}

// Watch resolves id every interval and sends the result to sink whenever the
// status differs from the last one sent. It returns after sending PAID or
// EXPIRED, when ctx is cancelled, when a send fails, or when the max watch
// duration elapses. A non-nil error is returned only with ReasonError.
func (n *Notifier) Watch(ctx context.Context, id string, sink Sink) (Reason, error) {
	parent := ctx
	if n.maxDuration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.maxDuration)
		defer cancel()
	}

	var (
		last  status.Result
		sent  bool
		timer *time.Timer
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		if ctx.Err() != nil {
			return stopReason(parent), nil
		}
		res, err := n.resolver.Resolve(ctx, id, n.Now())
		if ctx.Err() != nil {
			return stopReason(parent), nil
		}
		if err != nil {
			return ReasonError, err
		}
		if !sent || res.Status != last.Status {
			if err := sink.Send(res); err != nil {
				return ReasonDisconnected, nil
			}
			last, sent = res, true
		}
		if res.Status.Terminal() {
			return ReasonTerminal, nil
		}

		if timer == nil {
			timer = time.NewTimer(n.interval)
		} else {
			timer.Reset(n.interval)
		}
		select {
		case <-ctx.Done():
			return stopReason(parent), nil
		case <-timer.C:
		}
	}
}

// stopReason tells a subscriber going away apart from the watch deadline.
func stopReason(parent context.Context) Reason {
	if parent.Err() != nil {
		return ReasonDisconnected
	}
	return ReasonTimeout
}
