package tile

import (
	"fmt"

	"github.com/jaennil/guide_helper/tilesource/internal/texture"
)

// Callback receives the outcome of one load request. A nil error is passed for
// successful loads as well as for aborted or superseded ones.
type Callback func(err error)

// WorkerID identifies the decode worker holding parsed state for a tile.
type WorkerID int

// Payload is the decoded envelope a worker returns for a vector tile.
type Payload struct {
	Data         []byte
	Layers       int
	RawSize      int
	CacheControl string
	Expires      string
}

// Request is the continuation of a single outstanding load. It is owned by
// the Tile until it settles.
type Request struct {
	seq      uint64
	callback Callback
	aborted  bool
	settled  bool
	cancel   []func()
}

func (r *Request) Seq() uint64 {
	return r.seq
}

func (r *Request) Aborted() bool {
	return r.aborted
}

// OnAbort registers fn to run when the request is aborted. Backends use it to
// drop in-flight work.
func (r *Request) OnAbort(fn func()) {
	if r.aborted {
		fn()
		return
	}
	r.cancel = append(r.cancel, fn)
}

// Tile is the session object for one coordinate requested by the view. All of
// its methods must be called from the same goroutine.
type Tile struct {
	Coord Coordinate
	UID   uint64

	state         State
	seq           uint64
	request       *Request
	worker        WorkerID
	hasWorker     bool
	pendingReload Callback

	// Texture is created at most once per Tile and re-uploaded in place.
	Texture texture.Handle
	Vector  *Payload
	Expiry  *Expiry
}

// New returns an unloaded tile for coord. Invalid coordinates have no tile id
// and are rejected.
func New(coord Coordinate) (*Tile, error) {
	uid, err := coord.ID()
	if err != nil {
		return nil, err
	}
	return &Tile{
		Coord: coord,
		UID:   uid,
	}, nil
}

func (t *Tile) State() State {
	return t.state
}

func (t *Tile) String() string {
	return fmt.Sprintf("tile %v (%v)", t.Coord, t.state)
}

// Outstanding returns the in-flight request, or nil.
func (t *Tile) Outstanding() *Request {
	return t.request
}

// Aborted reports whether the outstanding request was abandoned by the caller.
func (t *Tile) Aborted() bool {
	return t.request != nil && t.request.aborted
}

func (t *Tile) Worker() (WorkerID, bool) {
	return t.worker, t.hasWorker
}

func (t *Tile) SetWorker(id WorkerID) {
	t.worker = id
	t.hasWorker = true
}

func (t *Tile) ClearWorker() {
	t.worker = 0
	t.hasWorker = false
}

// Begin moves the tile into loading and returns the new outstanding request.
// It fails when a request is already outstanding.
func (t *Tile) Begin(cb Callback) (*Request, error) {
	if err := t.transition(eventRequest); err != nil {
		return nil, err
	}
	t.seq++
	t.request = &Request{seq: t.seq, callback: cb}
	return t.request, nil
}

// Defer parks cb until the outstanding request settles. A callback parked
// earlier is returned so the caller can resolve it.
func (t *Tile) Defer(cb Callback) (replaced Callback) {
	replaced = t.pendingReload
	t.pendingReload = cb
	return replaced
}

func (t *Tile) HasPendingReload() bool {
	return t.pendingReload != nil
}

// TakePendingReload clears and returns the parked reload callback.
func (t *Tile) TakePendingReload() Callback {
	cb := t.pendingReload
	t.pendingReload = nil
	return cb
}

// Abort marks the outstanding request as abandoned and runs its abort hooks.
// The state is left alone: the completion handler performs the transition.
func (t *Tile) Abort() bool {
	req := t.request
	if req == nil || req.aborted {
		return false
	}
	req.aborted = true
	hooks := req.cancel
	req.cancel = nil
	for _, fn := range hooks {
		fn()
	}
	return true
}

// Result is the terminal outcome of a request.
type Result int

const (
	ResultLoaded Result = iota
	ResultErrored
	ResultAborted
)

func (r Result) String() string {
	switch r {
	case ResultLoaded:
		return "loaded"
	case ResultErrored:
		return "errored"
	case ResultAborted:
		return "aborted"
	}
	return fmt.Sprintf("Result(%d)", int(r))
}

// Owns reports whether req is the tile's outstanding, unsettled request.
func (t *Tile) Owns(req *Request) bool {
	return req != nil && t.request == req && !req.settled
}

// Settle performs the terminal transition of req and returns its callback.
// The request handle is cleared on every outcome.
func (t *Tile) Settle(req *Request, res Result) (Callback, error) {
	if req == nil {
		return nil, fmt.Errorf("%w: nil request on %v", ErrInvalidTransition, t.Coord)
	}
	if !t.Owns(req) {
		return nil, fmt.Errorf("%w: request %d is not outstanding on %v", ErrInvalidTransition, req.seq, t.Coord)
	}

	var e event
	switch res {
	case ResultLoaded:
		e = eventLoaded
	case ResultErrored:
		e = eventErrored
	case ResultAborted:
		e = eventAborted
	default:
		return nil, fmt.Errorf("%w: unknown result %v", ErrInvalidTransition, res)
	}
	if err := t.transition(e); err != nil {
		return nil, err
	}

	req.settled = true
	req.cancel = nil
	t.request = nil
	return req.callback, nil
}

// Expire marks a loaded or errored tile as stale so the next load re-fetches.
func (t *Tile) Expire() error {
	return t.transition(eventExpire)
}

// Unload returns a settled tile to unloaded and drops decoded data. Tiles with
// an outstanding request must be aborted and settled first.
func (t *Tile) Unload() error {
	if err := t.transition(eventUnload); err != nil {
		return err
	}
	t.Vector = nil
	t.Expiry = nil
	return nil
}

// CheckInvariants verifies that a request is outstanding exactly while the
// tile is loading.
func (t *Tile) CheckInvariants() error {
	if (t.request != nil) != (t.state == StateLoading) {
		return fmt.Errorf("tile %v: state %v with outstanding request %v", t.Coord, t.state, t.request != nil)
	}
	if t.pendingReload != nil && t.state != StateLoading {
		return fmt.Errorf("tile %v: pending reload parked while %v", t.Coord, t.state)
	}
	return nil
}
