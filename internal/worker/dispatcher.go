package worker

import (
	"errors"
	"sync"
)

var (
	// ErrDispatcherBusy is returned when a user's queue is full.
	ErrDispatcherBusy = errors.New("dispatcher busy")
	// ErrDispatcherStopped is returned after Stop.
	ErrDispatcherStopped = errors.New("dispatcher stopped")
)

// Config bounds the dispatcher. MaxWorkers caps concurrent jobs across
// all users; QueueSize caps pending jobs per user.
type Config struct {
	MaxWorkers int
	QueueSize  int
}

// Dispatcher runs submitted jobs with per-user FIFO serialization: a
// user's next job starts only after the previous one returned, so two
// requests from the same user can never interleave their writes. Jobs
// for different users run concurrently up to MaxWorkers.
type Dispatcher struct {
	cfg Config

	mu       sync.Mutex
	queues   map[int64][]func()
	inflight map[int64]bool
	stopped  bool
	wg       sync.WaitGroup

	sem chan struct{}
}

func NewDispatcher(cfg Config) *Dispatcher {
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = 8
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 16
	}
	return &Dispatcher{
		cfg:      cfg,
		queues:   make(map[int64][]func()),
		inflight: make(map[int64]bool),
		sem:      make(chan struct{}, cfg.MaxWorkers),
	}
}

// Submit enqueues a job for a user. The job runs on a dispatcher
// goroutine; callers that need the result should have the job deliver
// it over a channel.
func (d *Dispatcher) Submit(userID int64, job func()) error {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return ErrDispatcherStopped
	}
	if len(d.queues[userID]) >= d.cfg.QueueSize {
		d.mu.Unlock()
		return ErrDispatcherBusy
	}
	d.queues[userID] = append(d.queues[userID], job)
	if !d.inflight[userID] {
		d.inflight[userID] = true
		d.wg.Add(1)
		go d.drain(userID)
	}
	d.mu.Unlock()
	return nil
}

// drain runs the user's queue to completion, one job at a time.
func (d *Dispatcher) drain(userID int64) {
	defer d.wg.Done()
	for {
		d.mu.Lock()
		queue := d.queues[userID]
		if len(queue) == 0 {
			d.inflight[userID] = false
			delete(d.queues, userID)
			d.mu.Unlock()
			return
		}
		job := queue[0]
		d.queues[userID] = queue[1:]
		d.mu.Unlock()

		d.sem <- struct{}{}
		job()
		<-d.sem
	}
}

// Stop rejects new submissions and waits for queued jobs to finish.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	d.stopped = true
	d.mu.Unlock()
	d.wg.Wait()
}
