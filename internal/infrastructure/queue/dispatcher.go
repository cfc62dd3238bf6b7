package queue

import (
	"context"
	"errors"
	"hash/fnv"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/stockpulse/authcore/internal/api/metrics"
	"github.com/stockpulse/authcore/internal/core/ports"
)

const (
	defaultWorkers  = 4
	channelBuffer   = 256
	deliveryTimeout = 30 * time.Second
)

// ErrClosed is returned by SendVerification after Close.
var ErrClosed = errors.New("queue: dispatcher closed")

// Mailer performs the actual delivery of one verification mail.
type Mailer interface {
	Send(ctx context.Context, mail ports.VerificationMail) error
}

// Dispatcher routes verification mails to a fixed set of workers using
// consistent hashing on the recipient, so mails to one address are delivered
// in the order they were requested.
type Dispatcher struct {
	workers []chan ports.VerificationMail
	mailer  Mailer
	log     zerolog.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

var _ ports.VerificationNotifier = (*Dispatcher)(nil)

// NewDispatcher creates a Dispatcher with numWorkers sharded workers.
// If numWorkers <= 0, defaultWorkers is used.
func NewDispatcher(numWorkers int, mailer Mailer, log zerolog.Logger) *Dispatcher {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	d := &Dispatcher{
		workers: make([]chan ports.VerificationMail, numWorkers),
		mailer:  mailer,
		log:     log,
	}
	for i := range d.workers {
		d.workers[i] = make(chan ports.VerificationMail, channelBuffer)
	}
	return d
}

// Start launches all worker goroutines. Workers stop when ctx is cancelled
// or, after Close, once their channel is drained.
func (d *Dispatcher) Start(ctx context.Context) {
	for i, ch := range d.workers {
		d.wg.Add(1)
		go d.runWorker(ctx, i, ch)
	}
}

// SendVerification enqueues mail on the worker responsible for its
// recipient. It blocks only while that worker's buffer is full.
func (d *Dispatcher) SendVerification(ctx context.Context, mail ports.VerificationMail) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrClosed
	}

	idx := d.shardIndex(mail.Email)
	ch := d.workers[idx]
	select {
	case ch <- mail:
		metrics.MailQueueDepth.WithLabelValues(strconv.Itoa(idx)).Set(float64(len(ch)))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting mail and waits for the workers to drain what is
// already queued.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	for _, ch := range d.workers {
		close(ch)
	}
	d.mu.Unlock()
	d.wg.Wait()
}

// shardIndex maps a recipient deterministically to a worker index.
func (d *Dispatcher) shardIndex(email string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(email))
	return int(h.Sum32() % uint32(len(d.workers)))
}

func (d *Dispatcher) runWorker(ctx context.Context, id int, ch <-chan ports.VerificationMail) {
	defer d.wg.Done()
	label := strconv.Itoa(id)
	for {
		select {
		case <-ctx.Done():
			return
		case mail, ok := <-ch:
			if !ok {
				return
			}
			metrics.MailQueueDepth.WithLabelValues(label).Set(float64(len(ch)))
			d.deliver(ctx, id, mail)
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, id int, mail ports.VerificationMail) {
	sendCtx, cancel := context.WithTimeout(ctx, deliveryTimeout)
	defer cancel()

	start := time.Now()
	err := d.mailer.Send(sendCtx, mail)
	metrics.MailDeliveryDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.VerificationMailsTotal.WithLabelValues("failed").Inc()
		d.log.Error().Err(err).
			Str("email", mail.Email).
			Int("worker_id", id).
			Msg("verification mail delivery failed")
		return
	}
	metrics.VerificationMailsTotal.WithLabelValues("sent").Inc()
	d.log.Debug().Str("email", mail.Email).Int("worker_id", id).Msg("verification mail sent")
}
