// Package workerpool runs file-drop chunk writes off the reactor goroutine.
// Disk I/O inside a reactor handler would stall every other connection's
// dispatch (§5: the reactor is a single cooperative loop; only the
// out-of-core file-transfer path is allowed to suspend), so each DFTR chunk
// is handed to a bounded pool instead of applied inline. Adapted from the
// teacher's generic goroutine pool (agent/internal/workerpool) down to the
// one job shape the server actually queues: a chunk applied to a
// filetransfer.Receiver, with its outcome routed back by connection id.
package workerpool

import (
	"context"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/barriernet/barriernet/internal/filetransfer"
	"github.com/barriernet/barriernet/internal/logging"
	"github.com/barriernet/barriernet/internal/proto"
)

var log = logging.L("workerpool")

// Job is one file-drop chunk queued for off-reactor disk I/O: the
// connection it belongs to, the receiver its bytes apply to, and the DFTR
// chunk itself (§4.9).
type Job struct {
	ConnID string
	Recv   *filetransfer.Receiver
	Chunk  proto.FileChunk
}

// Result is what a completed Job reports back, keyed by the same ConnID a
// Job was submitted with so the caller can route it to that connection.
type Result struct {
	ConnID   string
	Received *filetransfer.Received
	Err      error
}

// Pool is a bounded goroutine pool with a fixed-size job queue. Every
// completed Job's outcome is delivered to onResult; workers never touch
// reactor or connection state directly.
type Pool struct {
	maxWorkers int
	queue      chan Job
	onResult   func(Result)
	wg         sync.WaitGroup
	accepting  atomic.Bool
	stopOnce   sync.Once
	closeOnce  sync.Once
	stopChan   chan struct{}
}

// New creates a pool with maxWorkers goroutines and a job queue of
// queueSize, delivering every completed job's outcome to onResult.
func New(maxWorkers, queueSize int, onResult func(Result)) *Pool {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}

	p := &Pool{
		maxWorkers: maxWorkers,
		queue:      make(chan Job, queueSize),
		onResult:   onResult,
		stopChan:   make(chan struct{}),
	}
	p.accepting.Store(true)

	for i := 0; i < maxWorkers; i++ {
		go p.worker()
	}

	log.Info("worker pool started", "workers", maxWorkers, "queueSize", queueSize)
	return p
}

// Submit enqueues a job. Returns false if the pool is stopped or the queue
// is full. wg.Add is called here (before enqueue) to prevent a race with
// Drain.
func (p *Pool) Submit(job Job) bool {
	if !p.accepting.Load() {
		return false
	}

	p.wg.Add(1)
	select {
	case p.queue <- job:
		return true
	default:
		p.wg.Done() // undo the Add since the job was not enqueued
		log.Warn("worker pool queue full, chunk dropped", "connection", job.ConnID)
		return false
	}
}

// StopAccepting prevents new jobs from being submitted.
func (p *Pool) StopAccepting() {
	p.accepting.Store(false)
}

// Drain waits for all in-flight and queued jobs to complete, respecting the
// context deadline. Drain also stops accepting new jobs, so a Submit after
// Drain returns false. After Drain returns, the queue channel is closed so
// worker goroutines exit.
func (p *Pool) Drain(ctx context.Context) {
	p.accepting.Store(false)
	p.stopOnce.Do(func() {
		close(p.stopChan)
	})

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info("worker pool drained")
	case <-ctx.Done():
		log.Warn("worker pool drain timed out")
	}

	// Close queue so worker goroutines exit and are not leaked
	p.closeOnce.Do(func() {
		close(p.queue)
	})
}

func (p *Pool) worker() {
	for {
		select {
		case job, ok := <-p.queue:
			if !ok {
				return
			}
			p.runJob(job)
		case <-p.stopChan:
			// Drain remaining queued jobs
			for {
				select {
				case job, ok := <-p.queue:
					if !ok {
						return
					}
					p.runJob(job)
				default:
					return
				}
			}
		}
	}
}

// runJob executes a single job with panic recovery. wg.Done is called here
// to match the wg.Add in Submit.
func (p *Pool) runJob(job Job) {
	defer p.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			log.Error("file-drop chunk panicked", "panic", r, "stack", string(debug.Stack()))
		}
	}()
	received, err := job.Recv.HandleChunk(job.Chunk)
	p.onResult(Result{ConnID: job.ConnID, Received: received, Err: err})
}
