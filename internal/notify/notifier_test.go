package notify_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"payway/internal/domain"
	"payway/internal/intent"
	"payway/internal/notify"
	"payway/internal/status"
	"payway/pkg/payment"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedProvider struct {
	mu    sync.Mutex
	calls int
	check func(call int) (bool, error)
}

func (p *scriptedProvider) CheckPayment(context.Context, string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	return p.check(p.calls)
}

func (p *scriptedProvider) GetPayment(context.Context, string) (*payment.Transaction, error) {
	return &payment.Transaction{Hash: "tx"}, nil
}

func (p *scriptedProvider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// recordingSink collects sent results; failAt makes the n-th send fail.
type recordingSink struct {
	mu     sync.Mutex
	got    []status.Result
	failAt int
}

func (s *recordingSink) Send(res status.Result) error {
	s.mu.Lock()
	n := len(s.got) + 1
	if s.failAt > 0 && n == s.failAt {
		s.mu.Unlock()
		return errors.New("broken pipe")
	}
	s.got = append(s.got, res)
	s.mu.Unlock()
	return nil
}

func (s *recordingSink) statuses() []domain.PaymentStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.PaymentStatus, len(s.got))
	for i, r := range s.got {
		out[i] = r.Status
	}
	return out
}

// stepClock returns start, start+step, start+2*step, ... on successive calls.
func stepClock(start time.Time, step time.Duration) func() time.Time {
	var mu sync.Mutex
	next := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now := next
		next = next.Add(step)
		return now
	}
}

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newNotifier(reg *intent.Registry, p status.Provider) *notify.Notifier {
	return notify.NewNotifier(status.NewResolver(reg, p), time.Millisecond, 0)
}

func TestWatch_PaidOnFirstQuery(t *testing.T) {
	reg := intent.NewRegistry()
	reg.Put("h", "INV", t0.Add(time.Minute))
	p := &scriptedProvider{check: func(int) (bool, error) { return true, nil }}
	sink := &recordingSink{}

	reason, err := newNotifier(reg, p).Watch(context.Background(), "h", sink)
	require.NoError(t, err)
	assert.Equal(t, notify.ReasonTerminal, reason)
	assert.Equal(t, []domain.PaymentStatus{domain.StatusPaid}, sink.statuses())
	assert.Equal(t, 1, p.Calls())
}

func TestWatch_ExpiryStream(t *testing.T) {
	const unit = time.Second
	reg := intent.NewRegistry()
	reg.Put("h", "INV", t0.Add(5*unit))
	p := &scriptedProvider{check: func(int) (bool, error) { return false, nil }}
	sink := &recordingSink{}

	n := newNotifier(reg, p)
	n.Now = stepClock(t0.Add(time.Millisecond), unit)

	reason, err := n.Watch(context.Background(), "h", sink)
	require.NoError(t, err)
	assert.Equal(t, notify.ReasonTerminal, reason)
	assert.Equal(t, []domain.PaymentStatus{domain.StatusUnpaid, domain.StatusExpired}, sink.statuses())
	assert.Equal(t, 6, p.Calls(), "one UNPAID, four silent iterations, then EXPIRED")
}

func TestWatch_UnknownThenUnpaidStaysOpen(t *testing.T) {
	reg := intent.NewRegistry()
	reg.Put("h", "INV", time.Now().Add(time.Hour))
	p := &scriptedProvider{check: func(call int) (bool, error) {
		if call == 1 {
			return false, errors.New("dial tcp: i/o timeout")
		}
		return false, nil
	}}
	sink := &recordingSink{}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan notify.Reason, 1)
	go func() {
		reason, _ := newNotifier(reg, p).Watch(ctx, "h", sink)
		done <- reason
	}()

	assert.Eventually(t, func() bool { return p.Calls() >= 5 }, time.Second, time.Millisecond)
	select {
	case <-done:
		t.Fatal("loop closed on a non-terminal status")
	default:
	}
	cancel()
	assert.Equal(t, notify.ReasonDisconnected, <-done)

	sink.mu.Lock()
	defer sink.mu.Unlock()
	require.Len(t, sink.got, 2)
	assert.Equal(t, domain.StatusUnknown, sink.got[0].Status)
	require.NotNil(t, sink.got[0].Warning)
	assert.Contains(t, *sink.got[0].Warning, "i/o timeout")
	assert.Equal(t, domain.StatusUnpaid, sink.got[1].Status)
	assert.Nil(t, sink.got[1].Warning)
}

func TestWatch_SuppressesRepeats(t *testing.T) {
	script := []struct {
		paid bool
		err  error
	}{
		{false, nil},
		{false, nil},
		{false, errors.New("flaky")},
		{false, errors.New("flaky")},
		{false, nil},
		{true, nil},
	}
	p := &scriptedProvider{check: func(call int) (bool, error) {
		s := script[call-1]
		return s.paid, s.err
	}}
	sink := &recordingSink{}

	reason, err := newNotifier(intent.NewRegistry(), p).Watch(context.Background(), "h", sink)
	require.NoError(t, err)
	assert.Equal(t, notify.ReasonTerminal, reason)
	assert.Equal(t, []domain.PaymentStatus{
		domain.StatusUnpaid,
		domain.StatusUnknown,
		domain.StatusUnpaid,
		domain.StatusPaid,
	}, sink.statuses())
}

func TestWatch_SendFailureCloses(t *testing.T) {
	p := &scriptedProvider{check: func(call int) (bool, error) {
		if call%2 == 0 {
			return false, errors.New("flaky")
		}
		return false, nil
	}}
	sink := &recordingSink{failAt: 2}

	reason, err := newNotifier(intent.NewRegistry(), p).Watch(context.Background(), "h", sink)
	require.NoError(t, err)
	assert.Equal(t, notify.ReasonDisconnected, reason)
	assert.Equal(t, 2, p.Calls())
}

func TestWatch_CancelledBeforeStartSendsNothing(t *testing.T) {
	p := &scriptedProvider{check: func(int) (bool, error) { return false, nil }}
	sink := &recordingSink{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	reason, err := newNotifier(intent.NewRegistry(), p).Watch(ctx, "h", sink)
	require.NoError(t, err)
	assert.Equal(t, notify.ReasonDisconnected, reason)
	assert.Empty(t, sink.statuses())
	assert.Equal(t, 0, p.Calls())
}

func TestWatch_MaxDuration(t *testing.T) {
	p := &scriptedProvider{check: func(int) (bool, error) { return false, errors.New("always down") }}
	sink := &recordingSink{}
	n := notify.NewNotifier(status.NewResolver(intent.NewRegistry(), p), time.Millisecond, 30*time.Millisecond)

	reason, err := n.Watch(context.Background(), "h", sink)
	require.NoError(t, err)
	assert.Equal(t, notify.ReasonTimeout, reason)
	assert.Equal(t, []domain.PaymentStatus{domain.StatusUnknown}, sink.statuses())
}

type failingResolver struct{}

func (failingResolver) Resolve(context.Context, string, time.Time) (status.Result, error) {
	return status.Result{}, errors.New("settlement fetch failed")
}

func TestWatch_ResolverErrorStops(t *testing.T) {
	sink := &recordingSink{}
	n := notify.NewNotifier(failingResolver{}, time.Millisecond, 0)

	reason, err := n.Watch(context.Background(), "h", sink)
	require.Error(t, err)
	assert.Equal(t, notify.ReasonError, reason)
	assert.Empty(t, sink.statuses())
}

func TestWatch_IndependentSubscribers(t *testing.T) {
	reg := intent.NewRegistry()
	p := &scriptedProvider{check: func(call int) (bool, error) { return call > 4, nil }}
	n := newNotifier(reg, p)

	var wg sync.WaitGroup
	sinks := make([]*recordingSink, 3)
	for i := range sinks {
		sinks[i] = &recordingSink{}
		wg.Add(1)
		go func(s *recordingSink) {
			defer wg.Done()
			reason, err := n.Watch(context.Background(), "h", s)
			assert.NoError(t, err)
			assert.Equal(t, notify.ReasonTerminal, reason)
		}(sinks[i])
	}
	wg.Wait()
	for _, s := range sinks {
		st := s.statuses()
		require.NotEmpty(t, st)
		assert.Equal(t, domain.StatusPaid, st[len(st)-1], "each subscriber gets exactly one terminal message")
	}
}
