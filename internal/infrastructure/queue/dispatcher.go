package queue

import (
	"context"
	"errors"
	"hash/fnv"
	"strconv"
	"sync"

	"github.com/rs/zerolog"

	"github.com/carelink/portal-auth/internal/core/ports"
	"github.com/carelink/portal-auth/internal/pkg/metrics"
)

const (
	defaultWorkers = 4
	channelBuffer  = 256
)

// ErrQueueFull is returned when a recipient's shard cannot take more mail.
var ErrQueueFull = errors.New("mail queue full")

// ErrClosed is returned for mail submitted after Shutdown.
var ErrClosed = errors.New("mail queue closed")

type job struct {
	to, link string
}

// Dispatcher delivers magic links off the request path. Jobs are sharded by
// recipient so links to one address go out in request order. It implements
// ports.Mailer and wraps the mailer that actually sends.
type Dispatcher struct {
	workers []chan job
	mailer  ports.Mailer
	log     zerolog.Logger
	wg      sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewDispatcher creates a Dispatcher with numWorkers sharded workers.
// If numWorkers <= 0, defaultWorkers is used.
func NewDispatcher(numWorkers int, mailer ports.Mailer, log zerolog.Logger) *Dispatcher {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	d := &Dispatcher{
		workers: make([]chan job, numWorkers),
		mailer:  mailer,
		log:     log,
	}
	for i := range d.workers {
		d.workers[i] = make(chan job, channelBuffer)
	}
	return d
}

// Start launches all worker goroutines. ctx is handed to the wrapped mailer;
// workers run until Shutdown closes their queues and they have drained.
func (d *Dispatcher) Start(ctx context.Context) {
	for i, ch := range d.workers {
		d.wg.Add(1)
		go d.runWorker(ctx, i, ch)
	}
}

// Shutdown stops accepting mail and waits until every link already accepted
// has been handed to the mailer. If ctx ends first the remaining links are
// abandoned and ctx's error is returned.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		for _, ch := range d.workers {
			close(ch)
		}
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SendMagicLink enqueues delivery and returns immediately. It never blocks the
// request: a full shard yields ErrQueueFull.
func (d *Dispatcher) SendMagicLink(_ context.Context, to, link string) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrClosed
	}

	idx := d.shardIndex(to)
	select {
	case d.workers[idx] <- job{to: to, link: link}:
		metrics.MailQueueDepth.WithLabelValues(strconv.Itoa(idx)).Inc()
		return nil
	default:
		metrics.MailDeliveriesTotal.WithLabelValues("dropped").Inc()
		d.log.Warn().Str("to", to).Int("worker_id", idx).Msg("mail queue full, dropping magic link")
		return ErrQueueFull
	}
}

// shardIndex maps a recipient deterministically to a worker index.
func (d *Dispatcher) shardIndex(to string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(to))
	return int(h.Sum32() % uint32(len(d.workers)))
}

func (d *Dispatcher) runWorker(ctx context.Context, id int, ch <-chan job) {
	defer d.wg.Done()
	depth := metrics.MailQueueDepth.WithLabelValues(strconv.Itoa(id))
	for j := range ch {
		depth.Dec()
		if err := d.mailer.SendMagicLink(ctx, j.to, j.link); err != nil {
			metrics.MailDeliveriesTotal.WithLabelValues("failure").Inc()
			d.log.Error().Err(err).
				Str("to", j.to).
				Int("worker_id", id).
				Msg("magic link delivery failed")
			continue
		}
		metrics.MailDeliveriesTotal.WithLabelValues("success").Inc()
	}
}
