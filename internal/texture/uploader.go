package texture

import (
	"fmt"
	"image"

	"github.com/jaennil/guide_helper/tilesource/pkg/logger"
	"github.com/jaennil/guide_helper/tilesource/pkg/metrics"
)

// Uploader turns decoded images into textures, reusing the texture a tile
// already owns instead of allocating a new one.
type Uploader struct {
	ctx    Context
	pool   *Pool
	logger logger.Logger
}

func NewUploader(ctx Context, pool *Pool, l logger.Logger) *Uploader {
	if pool == nil {
		pool = NewPool(0)
	}
	return &Uploader{
		ctx:    ctx,
		pool:   pool,
		logger: l,
	}
}

func (u *Uploader) Context() Context {
	return u.ctx
}

// Upload puts img into h and returns the handle holding it. A zero h takes a
// pooled texture of the right size or creates a new one; a non-zero h is
// updated in place and returned unchanged. A pooled texture that fails to
// update is deleted and 0 is returned with the error.
func (u *Uploader) Upload(h Handle, img *image.RGBA) (Handle, error) {
	size := img.Bounds().Size()

	if h != 0 {
		return h, u.update(h, img)
	}

	pooled, ok := u.pool.Get(size)
	if !ok {
		return u.create(img)
	}
	if err := u.update(pooled, img); err != nil {
		u.ctx.DeleteTexture(pooled)
		return 0, err
	}
	return pooled, nil
}

func (u *Uploader) update(h Handle, img *image.RGBA) error {
	size := img.Bounds().Size()

	current, ok := u.ctx.Size(h)
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownTexture, h)
	}

	if current == size {
		if err := u.ctx.TexSubImage2D(h, img); err != nil {
			return fmt.Errorf("update texture %d: %w", h, err)
		}
	} else {
		u.logger.Debug("texture size changed, respecifying storage", "texture", h, "from", current, "to", size)
		if err := u.ctx.TexImage2D(h, img); err != nil {
			return fmt.Errorf("respecify texture %d: %w", h, err)
		}
	}
	metrics.TextureUpdates.Inc()

	if err := u.ctx.GenerateMipmap(h); err != nil {
		return fmt.Errorf("generate mipmaps for texture %d: %w", h, err)
	}
	return nil
}

func (u *Uploader) create(img *image.RGBA) (Handle, error) {
	h, err := u.ctx.CreateTexture()
	if err != nil {
		return 0, fmt.Errorf("create texture: %w", err)
	}

	params := Params{
		MinFilter:        FilterLinearMipmapNearest,
		MagFilter:        FilterLinear,
		WrapS:            WrapClampToEdge,
		WrapT:            WrapClampToEdge,
		PremultiplyAlpha: true,
	}
	if maxAniso, ok := u.ctx.MaxAnisotropy(); ok {
		params.Anisotropy = maxAniso
	}

	if err := u.ctx.SetParams(h, params); err != nil {
		u.ctx.DeleteTexture(h)
		return 0, fmt.Errorf("set texture params: %w", err)
	}
	if err := u.ctx.TexImage2D(h, img); err != nil {
		u.ctx.DeleteTexture(h)
		return 0, fmt.Errorf("upload texture: %w", err)
	}
	if err := u.ctx.GenerateMipmap(h); err != nil {
		u.ctx.DeleteTexture(h)
		return 0, fmt.Errorf("generate mipmaps: %w", err)
	}

	metrics.TextureAllocations.Inc()
	u.logger.Debug("texture created", "texture", h, "size", img.Bounds().Size())
	return h, nil
}

// Release hands h back for reuse by another tile of the same size. Textures
// beyond the pool capacity are deleted.
func (u *Uploader) Release(h Handle) {
	if h == 0 {
		return
	}
	size, ok := u.ctx.Size(h)
	if !ok {
		return
	}
	if !u.pool.Put(h, size) {
		u.ctx.DeleteTexture(h)
	}
}
