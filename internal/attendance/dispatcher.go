package attendance

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Runner executes one worker request.
type Runner interface {
	Run(ctx context.Context, req Request) Outcome
}

// Dispatcher runs worker requests off the frame loop, one at a time.
// A request made while another is in flight is parked; a newer request
// replaces a parked one.
type Dispatcher struct {
	ctx     context.Context
	runner  Runner
	timeout time.Duration
	log     logrus.FieldLogger

	// OnOutcome, if set, is called after every run from the worker goroutine.
	OnOutcome func(Outcome)

	mu     sync.Mutex
	busy   bool
	parked *Request
	wg     sync.WaitGroup
}

// NewDispatcher creates a dispatcher whose runs derive from ctx. Cancelling
// ctx cancels the in-flight run and drops any parked request.
func NewDispatcher(ctx context.Context, runner Runner, timeout time.Duration, log logrus.FieldLogger) *Dispatcher {
	return &Dispatcher{
		ctx:     ctx,
		runner:  runner,
		timeout: timeout,
		log:     log,
	}
}

// Dispatch schedules req without blocking. It reports false if the request
// was parked behind an in-flight run.
func (d *Dispatcher) Dispatch(req Request) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.busy {
		if d.parked != nil {
			d.log.WithField("student_id", d.parked.ID).Debug("Replacing parked worker request")
		}
		d.parked = &req
		return false
	}

	d.busy = true
	d.wg.Add(1)
	go d.loop(req)
	return true
}

// Busy reports whether a worker is running.
func (d *Dispatcher) Busy() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.busy
}

// Wait blocks until the in-flight run and any parked request finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) loop(req Request) {
	defer d.wg.Done()
	for {
		d.runOne(req)

		d.mu.Lock()
		if d.parked == nil || d.ctx.Err() != nil {
			d.parked = nil
			d.busy = false
			d.mu.Unlock()
			return
		}
		req = *d.parked
		d.parked = nil
		d.mu.Unlock()
	}
}

func (d *Dispatcher) runOne(req Request) {
	ctx := d.ctx
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	out := func() (out Outcome) {
		defer func() {
			if r := recover(); r != nil {
				out = Outcome{Request: req, Err: fmt.Errorf("worker panic: %v", r)}
				d.log.WithField("student_id", req.ID).Errorf("Worker panicked: %v", r)
			}
		}()
		return d.runner.Run(ctx, req)
	}()

	if d.OnOutcome != nil {
		d.OnOutcome(out)
	}
}
