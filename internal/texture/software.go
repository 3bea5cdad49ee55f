package texture

import (
	"fmt"
	"image"
	"sync"

	"golang.org/x/image/draw"
)

type softTexture struct {
	params Params
	levels []*image.RGBA
}

// SoftwareContext is an in-memory Context. Textures keep their level 0 pixels
// and a bilinear mip chain; Stats lets callers observe texture reuse.
type SoftwareContext struct {
	mu            sync.Mutex
	next          Handle
	textures      map[Handle]*softTexture
	maxAnisotropy float32
	stats         Stats
}

// Stats counts texture operations performed on a SoftwareContext.
type Stats struct {
	Allocations int
	Uploads     int
	SubUploads  int
}

// NewSoftwareContext returns a context; maxAnisotropy 0 reports no anisotropic
// filtering support.
func NewSoftwareContext(maxAnisotropy float32) *SoftwareContext {
	return &SoftwareContext{
		textures:      make(map[Handle]*softTexture),
		maxAnisotropy: maxAnisotropy,
	}
}

var _ Context = (*SoftwareContext)(nil)

func (c *SoftwareContext) CreateTexture() (Handle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.next++
	c.textures[c.next] = &softTexture{}
	c.stats.Allocations++
	return c.next, nil
}

func (c *SoftwareContext) DeleteTexture(h Handle) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.textures, h)
}

func (c *SoftwareContext) SetParams(h Handle, p Params) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	t, ok := c.textures[h]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownTexture, h)
	}
	t.params = p
	return nil
}

func (c *SoftwareContext) TexImage2D(h Handle, img *image.RGBA) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	t, ok := c.textures[h]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownTexture, h)
	}
	t.levels = []*image.RGBA{cloneRGBA(img)}
	c.stats.Uploads++
	return nil
}

func (c *SoftwareContext) TexSubImage2D(h Handle, img *image.RGBA) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	t, ok := c.textures[h]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownTexture, h)
	}
	if len(t.levels) == 0 || t.levels[0].Bounds().Size() != img.Bounds().Size() {
		return ErrSizeMismatch
	}
	draw.Draw(t.levels[0], t.levels[0].Bounds(), img, img.Bounds().Min, draw.Src)
	t.levels = t.levels[:1]
	c.stats.SubUploads++
	return nil
}

func (c *SoftwareContext) GenerateMipmap(h Handle) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	t, ok := c.textures[h]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownTexture, h)
	}
	if len(t.levels) == 0 {
		return fmt.Errorf("texture %d has no storage", h)
	}

	t.levels = t.levels[:1]
	level := t.levels[0]
	for {
		size := level.Bounds().Size()
		if size.X <= 1 && size.Y <= 1 {
			break
		}
		next := image.NewRGBA(image.Rect(0, 0, max(size.X/2, 1), max(size.Y/2, 1)))
		draw.BiLinear.Scale(next, next.Bounds(), level, level.Bounds(), draw.Src, nil)
		t.levels = append(t.levels, next)
		level = next
	}
	return nil
}

func (c *SoftwareContext) Size(h Handle) (image.Point, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	t, ok := c.textures[h]
	if !ok || len(t.levels) == 0 {
		return image.Point{}, false
	}
	return t.levels[0].Bounds().Size(), true
}

func (c *SoftwareContext) MaxAnisotropy() (float32, bool) {
	return c.maxAnisotropy, c.maxAnisotropy > 0
}

// Params returns the sampling parameters of h.
func (c *SoftwareContext) Params(h Handle) (Params, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	t, ok := c.textures[h]
	if !ok {
		return Params{}, false
	}
	return t.params, true
}

// ReadPixels returns a copy of level 0 of h.
func (c *SoftwareContext) ReadPixels(h Handle) (*image.RGBA, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	t, ok := c.textures[h]
	if !ok || len(t.levels) == 0 {
		return nil, false
	}
	return cloneRGBA(t.levels[0]), true
}

// Levels returns the number of mip levels of h, including level 0.
func (c *SoftwareContext) Levels(h Handle) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if t, ok := c.textures[h]; ok {
		return len(t.levels)
	}
	return 0
}

func (c *SoftwareContext) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.stats
}

func (c *SoftwareContext) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.textures)
}

func cloneRGBA(img *image.RGBA) *image.RGBA {
	out := image.NewRGBA(image.Rect(0, 0, img.Bounds().Dx(), img.Bounds().Dy()))
	draw.Draw(out, out.Bounds(), img, img.Bounds().Min, draw.Src)
	return out
}
