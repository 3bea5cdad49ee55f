package texture

import "image"

// Pool keeps released textures keyed by size so new tiles can reuse them.
type Pool struct {
	capacity int
	free     map[image.Point][]Handle
	count    int
}

// NewPool returns a pool holding at most capacity textures; zero disables pooling.
func NewPool(capacity int) *Pool {
	return &Pool{
		capacity: capacity,
		free:     make(map[image.Point][]Handle),
	}
}

func (p *Pool) Get(size image.Point) (Handle, bool) {
	handles := p.free[size]
	if len(handles) == 0 {
		return 0, false
	}
	h := handles[len(handles)-1]
	p.free[size] = handles[:len(handles)-1]
	p.count--
	return h, true
}

// Put stores h; it returns false when the pool is full.
func (p *Pool) Put(h Handle, size image.Point) bool {
	if p.count >= p.capacity {
		return false
	}
	p.free[size] = append(p.free[size], h)
	p.count++
	return true
}

func (p *Pool) Len() int {
	return p.count
}
