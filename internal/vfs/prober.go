package vfs

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultProbeTimeout bounds a metadata query when none is configured.
const DefaultProbeTimeout = 3 * time.Second

// Prober runs metadata queries on a worker goroutine and gives up after a
// timeout. A query that times out keeps running in the background; its
// result is discarded, never applied later. Concurrent queries for the
// same path share one worker, so a hung mount costs at most one goroutine
// per path.
type Prober struct {
	fs      FS
	timeout time.Duration
	group   singleflight.Group
}

// NewProber creates a prober over fsys. A non-positive timeout selects
// DefaultProbeTimeout.
func NewProber(fsys FS, timeout time.Duration) *Prober {
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	return &Prober{fs: fsys, timeout: timeout}
}

// FS returns the underlying file system.
func (p *Prober) FS() FS { return p.fs }

// Timeout returns the per-query limit.
func (p *Prober) Timeout() time.Duration { return p.timeout }

// Stat returns file information for path, or ErrProbeTimeout.
func (p *Prober) Stat(ctx context.Context, path string) (FileInfo, error) {
	v, err := p.do(ctx, "stat\x00"+path, func() (any, error) {
		return p.fs.Stat(path)
	})
	if err != nil {
		return FileInfo{}, err
	}
	return v.(FileInfo), nil
}

// Attributes returns the attribute bits of path, or ErrProbeTimeout.
func (p *Prober) Attributes(ctx context.Context, path string) (Attr, error) {
	v, err := p.do(ctx, "attr\x00"+path, func() (any, error) {
		return p.fs.Attributes(path)
	})
	if err != nil {
		return 0, err
	}
	return v.(Attr), nil
}

// Size returns the size of path, or -1 with the error when it cannot be
// determined in time.
func (p *Prober) Size(ctx context.Context, path string) (int64, error) {
	info, err := p.Stat(ctx, path)
	if err != nil {
		return -1, err
	}
	return info.Size(), nil
}

func (p *Prober) do(ctx context.Context, key string, fn func() (any, error)) (any, error) {
	ch := p.group.DoChan(key, fn)

	timer := time.NewTimer(p.timeout)
	defer timer.Stop()

	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-timer.C:
		return nil, ErrProbeTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
