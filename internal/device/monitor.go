package device

import (
	"context"
	"sync"
	"time"

	"github.com/ahamlinman/panelrelay/internal/log"
)

// Status is a snapshot of the controller's /api/status endpoint. Exactly one of
// Response and Err is set in any snapshot taken by a Monitor.
type Status struct {
	Response *Response
	Err      error
	Time     time.Time
}

// Monitor polls the controller's status on a fixed interval and notifies
// subscribers of each new snapshot.
type Monitor struct {
	client   *Client
	interval time.Duration
	timeout  time.Duration

	mu     sync.Mutex
	status Status
	subs   map[*Subscription]struct{}
}

// NewMonitor creates a Monitor that polls through client every interval, with
// each poll bounded by timeout. Polling begins when Run is called.
func NewMonitor(client *Client, interval, timeout time.Duration) *Monitor {
	return &Monitor{
		client:   client,
		interval: interval,
		timeout:  timeout,
		subs:     make(map[*Subscription]struct{}),
	}
}

// Run polls the controller until ctx is canceled, starting immediately. A
// Monitor without a positive interval polls exactly once.
func (m *Monitor) Run(ctx context.Context) {
	if m.interval <= 0 {
		m.Poll(ctx)
		return
	}

	log.Tprintf(m, "Polling %s%s every %v", m.client.BaseURL, EndpointStatus, m.interval)
	defer log.Tprintf(m, "Stopped polling: %v", context.Cause(ctx))

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		m.Poll(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Poll takes a single snapshot of the controller's status and publishes it to
// all subscribers.
func (m *Monitor) Poll(ctx context.Context) Status {
	resp, err := m.client.Fetch(ctx, EndpointStatus, m.timeout)
	s := Status{Response: resp, Err: err, Time: time.Now()}
	m.publish(s)
	return s
}

// Status returns the most recent snapshot, which has a zero Time if no poll
// has finished yet.
func (m *Monitor) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

func (m *Monitor) publish(s Status) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.status = s
	for sub := range m.subs {
		sub.update(s)
	}
}

// Subscribe arranges for handler to receive status snapshots as they are
// taken, starting with the most recent one if any poll has finished.
//
// Each subscription runs up to one instance of handler at a time in a new
// goroutine. If snapshots arrive while a call is in flight, handler is called
// once more with the latest snapshot when it returns; the ones in between are
// dropped. A slow subscriber never delays polling or other subscribers.
func (m *Monitor) Subscribe(handler func(Status)) *Subscription {
	sub := &Subscription{
		monitor: m,
		handler: handler,
		next:    make(chan Status, 1),
		done:    make(chan struct{}),
	}

	m.mu.Lock()
	if !m.status.Time.IsZero() {
		sub.update(m.status)
	}
	m.subs[sub] = struct{}{}
	m.mu.Unlock()

	go sub.run()
	return sub
}

func (m *Monitor) unsubscribe(sub *Subscription) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.subs, sub)
}

// Subscription represents a single subscriber to a Monitor.
type Subscription struct {
	monitor *Monitor
	handler func(Status)
	next    chan Status // Buffered with size 1
	done    chan struct{}

	cancelOnce sync.Once
}

func (s *Subscription) run() {
	defer close(s.done)
	for next := range s.next {
		s.dispatch(next)
	}
}

// dispatch insulates the run loop from the handler, so that a handler calling
// runtime.Goexit cannot end the subscription.
func (s *Subscription) dispatch(x Status) {
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.handler(x)
	}()
	wg.Wait()
}

// update must be called with the monitor's lock held.
func (s *Subscription) update(x Status) {
	select {
	case <-s.next:
		s.next <- x
	case s.next <- x:
	}
}

// Cancel stops delivery of new snapshots. A handler call that is already in
// flight is allowed to finish; use Wait to block until it has.
func (s *Subscription) Cancel() {
	s.cancelOnce.Do(func() {
		s.monitor.unsubscribe(s)
		select {
		case <-s.next:
		default:
		}
		close(s.next)
	})
}

// Wait blocks until the subscription has terminated following a call to
// Cancel.
func (s *Subscription) Wait() {
	<-s.done
}
