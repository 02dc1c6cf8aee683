package queue

import (
	"context"
	"hash/fnv"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/mentalcompass/platform/internal/api/metrics"
	"github.com/mentalcompass/platform/internal/core/domain"
	"github.com/mentalcompass/platform/internal/core/ports"
)

const (
	defaultWorkers = 4
	channelBuffer  = 256
)

// exchange is one assistant exchange waiting to be persisted.
type exchange struct {
	userID string
	turns  []domain.ChatTurn
}

// Dispatcher routes assessment appends to a fixed set of workers using
// consistent hashing on the user id, guaranteeing per-user append ordering.
type Dispatcher struct {
	workers []chan exchange
	repo    ports.AssessmentRepository
	log     zerolog.Logger
	wg      sync.WaitGroup
}

// NewDispatcher creates a Dispatcher with numWorkers sharded workers.
// If numWorkers <= 0, defaultWorkers is used.
func NewDispatcher(numWorkers int, repo ports.AssessmentRepository, log zerolog.Logger) *Dispatcher {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	d := &Dispatcher{
		workers: make([]chan exchange, numWorkers),
		repo:    repo,
		log:     log,
	}
	for i := range d.workers {
		d.workers[i] = make(chan exchange, channelBuffer)
	}
	return d
}

// Start launches all worker goroutines. Workers stop when ctx is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	for i, ch := range d.workers {
		d.wg.Add(1)
		go d.runWorker(ctx, i, ch)
	}
}

// Wait blocks until every worker has returned.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Enqueue hands an exchange to the worker responsible for userID. It never
// blocks: when that worker's buffer is full the exchange is dropped and false
// is returned.
func (d *Dispatcher) Enqueue(userID string, turns []domain.ChatTurn) bool {
	idx := d.shardIndex(userID)
	select {
	case d.workers[idx] <- exchange{userID: userID, turns: turns}:
		metrics.AssessmentQueueDepth.WithLabelValues(strconv.Itoa(idx)).Inc()
		return true
	default:
		metrics.AssessmentAppendsTotal.WithLabelValues("dropped").Inc()
		return false
	}
}

// shardIndex maps a user id deterministically to a worker index.
func (d *Dispatcher) shardIndex(userID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	return int(h.Sum32() % uint32(len(d.workers)))
}

func (d *Dispatcher) runWorker(ctx context.Context, id int, ch <-chan exchange) {
	defer d.wg.Done()
	depth := metrics.AssessmentQueueDepth.WithLabelValues(strconv.Itoa(id))
	for {
		select {
		case <-ctx.Done():
			return
		case ex, ok := <-ch:
			if !ok {
				return
			}
			depth.Dec()
			start := time.Now()
			err := d.repo.AppendTurns(ctx, ex.userID, ex.turns)
			metrics.AssessmentAppendDuration.Observe(time.Since(start).Seconds())
			if err != nil {
				metrics.AssessmentAppendsTotal.WithLabelValues("error").Inc()
				d.log.Error().Err(err).
					Str("user_id", ex.userID).
					Int("worker_id", id).
					Msg("assessment append failed")
				continue
			}
			metrics.AssessmentAppendsTotal.WithLabelValues("ok").Inc()
		}
	}
}
