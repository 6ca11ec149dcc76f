// Package poller watches a transaction from the client side until it reaches a terminal
// status, the wait budget runs out or the watcher is canceled.
package poller

import (
	// Go Internal Packages
	"context"
	"sync"
	"time"

	// Local Packages
	models "payflow/models"

	// External Packages
	"go.uber.org/zap"
)

type State int

const (
	StateActive State = iota
	StateTerminal
	StateTimedOut
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateTerminal:
		return "terminal"
	case StateTimedOut:
		return "timed_out"
	case StateCancelled:
		return "cancelled"
	}
	return "unknown"
}

type StatusFetcher interface {
	TransactionStatus(ctx context.Context, requestNumber string) (models.Transaction, error)
}

type Config struct {
	Interval    time.Duration
	MaxWait     time.Duration
	TickTimeout time.Duration
}

// Poller runs at most one polling loop per request number.
type Poller struct {
	conf    Config
	fetcher StatusFetcher
	logger  *zap.Logger

	mu   sync.Mutex
	subs map[string]*Subscription
}

func New(conf Config, fetcher StatusFetcher, logger *zap.Logger) *Poller {
	if conf.Interval <= 0 {
		conf.Interval = 3 * time.Second
	}
	if conf.MaxWait <= 0 {
		conf.MaxWait = 5 * time.Minute
	}
	if conf.TickTimeout <= 0 {
		conf.TickTimeout = conf.Interval
	}
	return &Poller{
		conf:    conf,
		fetcher: fetcher,
		logger:  logger,
		subs:    make(map[string]*Subscription),
	}
}

// Watch starts polling requestNumber. A loop already watching the same request number is
// canceled, and the new loop only starts once the old one has stopped, so onUpdate is
// never called by two loops at once. onUpdate runs on the polling goroutine whenever the
// observed status changes.
func (p *Poller) Watch(ctx context.Context, requestNumber string, onUpdate func(models.Transaction)) *Subscription {
	subCtx, cancel := context.WithCancel(ctx)
	sub := &Subscription{
		RequestNumber: requestNumber,
		cancel:        cancel,
		done:          make(chan struct{}),
	}

	p.mu.Lock()
	prev := p.subs[requestNumber]
	p.subs[requestNumber] = sub
	p.mu.Unlock()

	go func() {
		if prev != nil {
			prev.Cancel()
			<-prev.done
		}
		p.run(subCtx, sub, onUpdate)
	}()
	return sub
}

// Close cancels every active loop and waits for them to stop.
func (p *Poller) Close() {
	p.mu.Lock()
	subs := make([]*Subscription, 0, len(p.subs))
	for _, sub := range p.subs {
		subs = append(subs, sub)
	}
	p.mu.Unlock()

	for _, sub := range subs {
		sub.Cancel()
		<-sub.done
	}
}

func (p *Poller) run(ctx context.Context, sub *Subscription, onUpdate func(models.Transaction)) {
	waitCtx, cancelWait := context.WithTimeout(ctx, p.conf.MaxWait)
	defer cancelWait()

	logger := p.logger.With(zap.String("request_number", sub.RequestNumber))
	ticker := time.NewTicker(p.conf.Interval)
	defer ticker.Stop()

	var last models.Status
	finish := func(state State) {
		sub.finish(state)
		p.mu.Lock()
		if p.subs[sub.RequestNumber] == sub {
			delete(p.subs, sub.RequestNumber)
		}
		p.mu.Unlock()
		logger.Debug("polling stopped", zap.Stringer("state", state))
	}

	for {
		if state, stopped := stopState(ctx, waitCtx); stopped {
			finish(state)
			return
		}

		tickCtx, cancelTick := context.WithTimeout(waitCtx, p.conf.TickTimeout)
		tx, err := p.fetcher.TransactionStatus(tickCtx, sub.RequestNumber)
		cancelTick()

		if state, stopped := stopState(ctx, waitCtx); stopped {
			finish(state)
			return
		}

		if err != nil {
			logger.Debug("status check failed", zap.Error(err))
			sub.record(models.Transaction{}, err)
		} else {
			sub.record(tx, nil)
			if tx.Status != last {
				last = tx.Status
				if onUpdate != nil {
					onUpdate(tx)
				}
			}
			if tx.Status.IsTerminal() {
				finish(StateTerminal)
				return
			}
		}

		select {
		case <-waitCtx.Done():
		case <-ticker.C:
		}
	}
}

func stopState(ctx, waitCtx context.Context) (State, bool) {
	if ctx.Err() != nil {
		return StateCancelled, true
	}
	if waitCtx.Err() != nil {
		return StateTimedOut, true
	}
	return StateActive, false
}

type Subscription struct {
	RequestNumber string

	cancel context.CancelFunc
	done   chan struct{}

	mu    sync.Mutex
	state State
	last  models.Transaction
	err   error
}

func (s *Subscription) Cancel() {
	s.cancel()
}

// Done is closed once the loop has stopped and will issue no more requests.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

func (s *Subscription) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Result returns the last transaction observed and the error of the last check, if any.
func (s *Subscription) Result() (models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last, s.err
}

// Wait blocks until the loop stops or ctx is done.
func (s *Subscription) Wait(ctx context.Context) State {
	select {
	case <-s.done:
	case <-ctx.Done():
	}
	return s.State()
}

func (s *Subscription) record(tx models.Transaction, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		s.last = tx
	}
	s.err = err
}

func (s *Subscription) finish(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
	s.cancel()
	close(s.done)
}
