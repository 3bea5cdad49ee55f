package source_test

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jaennil/guide_helper/tilesource/internal/dispatcher"
	"github.com/jaennil/guide_helper/tilesource/internal/eventloop"
	"github.com/jaennil/guide_helper/tilesource/internal/repository/store"
	"github.com/jaennil/guide_helper/tilesource/internal/tile"
	"github.com/stretchr/testify/require"
)

func newTile(t *testing.T, c tile.Coordinate) *tile.Tile {
	t.Helper()
	tl, err := tile.New(c)
	require.NoError(t, err)
	return tl
}

type message struct {
	worker  tile.WorkerID
	op      string
	payload any
	cb      dispatcher.Callback
	pinned  bool
	replied bool
}

// fakeDispatcher records messages and replies only when told to, through the
// loop like a real worker pool.
type fakeDispatcher struct {
	loop     *eventloop.Loop
	workers  int
	next     int
	messages []*message
}

func newFakeDispatcher(loop *eventloop.Loop, workers int) *fakeDispatcher {
	return &fakeDispatcher{loop: loop, workers: workers}
}

func (d *fakeDispatcher) Send(op string, payload any, cb dispatcher.Callback) tile.WorkerID {
	id := tile.WorkerID(d.next % d.workers)
	d.next++
	d.messages = append(d.messages, &message{worker: id, op: op, payload: payload, cb: cb})
	return id
}

func (d *fakeDispatcher) SendTo(id tile.WorkerID, op string, payload any, cb dispatcher.Callback) {
	d.messages = append(d.messages, &message{worker: id, op: op, payload: payload, cb: cb, pinned: true})
}

func (d *fakeDispatcher) ops() []string {
	out := make([]string, 0, len(d.messages))
	for _, m := range d.messages {
		out = append(out, m.op)
	}
	return out
}

func (d *fakeDispatcher) count(op string) int {
	n := 0
	for _, m := range d.messages {
		if m.op == op {
			n++
		}
	}
	return n
}

// unreplied returns the load and reload messages still waiting for a reply.
func (d *fakeDispatcher) unreplied() []*message {
	var out []*message
	for _, m := range d.messages {
		if !m.replied && m.cb != nil {
			out = append(out, m)
		}
	}
	return out
}

// reply answers m and runs the loop until the reply is handled.
func (d *fakeDispatcher) reply(m *message, result any, err error) {
	m.replied = true
	d.loop.Post(func() { m.cb(result, err) })
	d.loop.RunPending()
}

func (d *fakeDispatcher) last() *message {
	return d.messages[len(d.messages)-1]
}

// runUntil drives loop on the calling goroutine until cond holds.
func runUntil(t *testing.T, loop *eventloop.Loop, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		loop.RunPending()
		if cond() {
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("condition not reached before deadline")
		}
		time.Sleep(time.Millisecond)
	}
}

func solidPNG(t *testing.T, c color.Color, size int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// countingStore counts lookups and can be made to fail.
type countingStore struct {
	store.TileStore
	gets     atomic.Int32
	failGet  error
	failPing error
}

func (s *countingStore) Get(ctx context.Context, k store.TileKey) (store.TileValue, bool, error) {
	s.gets.Add(1)
	if s.failGet != nil {
		return nil, false, s.failGet
	}
	return s.TileStore.Get(ctx, k)
}

func (s *countingStore) Ping(ctx context.Context) error {
	if s.failPing != nil {
		return s.failPing
	}
	return s.TileStore.Ping(ctx)
}

type recorder struct {
	calls []string
	errs  []error
}

func (r *recorder) cb(name string) tile.Callback {
	return func(err error) {
		r.calls = append(r.calls, name)
		r.errs = append(r.errs, err)
	}
}
