package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/jaennil/guide_helper/tilesource/internal/tile"
	"github.com/jaennil/guide_helper/tilesource/pkg/logger"
	"github.com/jaennil/guide_helper/tilesource/pkg/metrics"
)

var ErrPoolClosed = errors.New("dispatcher: pool closed")

const inboxSize = 256

type message struct {
	op      string
	payload any
	reply   Reply
}

type worker struct {
	id      tile.WorkerID
	inbox   chan message
	handler Handler
}

// Pool is a fixed set of workers. Unpinned messages are spread round-robin.
type Pool struct {
	workers []*worker
	next    atomic.Uint64
	poster  Poster
	logger  logger.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

var _ Dispatcher = (*Pool)(nil)

// NewPool starts size workers, each with its own Handler from newHandler.
// Replies are posted to poster.
func NewPool(size int, newHandler func(id tile.WorkerID) Handler, poster Poster, l logger.Logger) (*Pool, error) {
	if size <= 0 {
		return nil, fmt.Errorf("dispatcher: pool size must be positive, got %d", size)
	}

	p := &Pool{
		poster: poster,
		logger: l,
	}
	for i := range size {
		w := &worker{
			id:      tile.WorkerID(i),
			inbox:   make(chan message, inboxSize),
			handler: newHandler(tile.WorkerID(i)),
		}
		p.workers = append(p.workers, w)

		p.wg.Add(1)
		go p.run(w)
	}

	l.Info("worker pool started", "workers", size)
	return p, nil
}

func (p *Pool) Size() int {
	return len(p.workers)
}

func (p *Pool) Send(op string, payload any, cb Callback) tile.WorkerID {
	id := tile.WorkerID(p.next.Add(1)-1) % tile.WorkerID(len(p.workers))
	p.deliver(id, op, payload, cb, false)
	return id
}

func (p *Pool) SendTo(id tile.WorkerID, op string, payload any, cb Callback) {
	p.deliver(id, op, payload, cb, true)
}

func (p *Pool) deliver(id tile.WorkerID, op string, payload any, cb Callback, pinned bool) {
	metrics.DispatchMessages.WithLabelValues(op, strconv.FormatBool(pinned)).Inc()

	reply := p.replyFunc(cb)

	if int(id) < 0 || int(id) >= len(p.workers) {
		reply(nil, fmt.Errorf("dispatcher: unknown worker %d", id))
		return
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		reply(nil, ErrPoolClosed)
		return
	}

	p.workers[id].inbox <- message{op: op, payload: payload, reply: reply}
}

// replyFunc makes a single-shot Reply that runs cb on the poster.
func (p *Pool) replyFunc(cb Callback) Reply {
	var once sync.Once
	return func(result any, err error) {
		once.Do(func() {
			if cb == nil {
				return
			}
			if !p.poster.Post(func() { cb(result, err) }) {
				p.logger.Warn("dropping worker reply, owner loop stopped")
			}
		})
	}
}

func (p *Pool) run(w *worker) {
	defer p.wg.Done()

	for msg := range w.inbox {
		p.handle(w, msg)
	}
}

func (p *Pool) handle(w *worker, msg message) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("worker handler panicked", "worker", w.id, "op", msg.op, "panic", r)
			msg.reply(nil, fmt.Errorf("worker %d: %s panicked: %v", w.id, msg.op, r))
		}
	}()
	w.handler.Handle(msg.op, msg.payload, msg.reply)
}

// Close stops accepting messages and waits for workers to drain their inboxes
// or for ctx to end.
func (p *Pool) Close(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	for _, w := range p.workers {
		close(w.inbox)
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("worker pool stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
