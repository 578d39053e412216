package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dealmungchi/reviewcrawler/logger"
	"github.com/dealmungchi/reviewcrawler/services/publisher"
)

var (
	// ErrQueueFull is returned when the publish queue has no room
	ErrQueueFull = errors.New("worker: publish queue full")
	// ErrClosed is returned by Publish after Close
	ErrClosed = errors.New("worker: closed")
)

// publishTimeout bounds one downstream publish
const publishTimeout = 10 * time.Second

type message struct {
	key  string
	data []byte
}

// Worker publishes results in the background. It implements
// publisher.Publisher so callers never wait on Redis. Streams are trimmed
// each time the queue drains.
type Worker struct {
	publisher publisher.Publisher
	queue     chan message
	log       *logger.Logger

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// NewWorker creates a worker over pub and starts it
func NewWorker(pub publisher.Publisher, queueSize int) *Worker {
	if queueSize < 1 {
		queueSize = 1
	}
	w := &Worker{
		publisher: pub,
		queue:     make(chan message, queueSize),
		log:       logger.ForComponent("worker"),
		done:      make(chan struct{}),
	}
	go w.run()
	return w
}

// Publish enqueues a message. It does not block on the downstream publisher.
func (w *Worker) Publish(ctx context.Context, key string, data []byte) error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return ErrClosed
	}

	select {
	case w.queue <- message{key: key, data: data}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrQueueFull
	}
}

// TrimStreams trims the downstream streams immediately
func (w *Worker) TrimStreams(ctx context.Context) error {
	return w.publisher.TrimStreams(ctx)
}

// Close publishes what is still queued, then closes the downstream publisher
func (w *Worker) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	close(w.queue)
	w.mu.Unlock()

	<-w.done
	return w.publisher.Close()
}

// run publishes queued messages and trims streams once the queue drains
func (w *Worker) run() {
	defer close(w.done)

	published := 0
	for msg := range w.queue {
		w.publish(msg)
		published++

		if len(w.queue) == 0 {
			w.trim()
			w.log.Debug().Int("published", published).Msg("Publish queue drained")
			published = 0
		}
	}
}

func (w *Worker) publish(msg message) {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	if err := w.publisher.Publish(ctx, msg.key, msg.data); err != nil {
		w.log.Error().Err(err).Str("key", msg.key).Msg("Failed to publish result")
	}
}

func (w *Worker) trim() {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	if err := w.publisher.TrimStreams(ctx); err != nil {
		w.log.Error().Err(err).Msg("Failed to trim streams")
	}
}
