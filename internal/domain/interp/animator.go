package interp

import (
	"context"
	"time"

	"github.com/lumendesk/backend/internal/shared/geo"
)

// Animator models the time an on-screen motion takes. The interpreter
// awaits each animation before advancing, which preserves the
// animate-then-proceed ordering without a retained UI tree.
type Animator interface {
	// Travel awaits a cursor move between two points.
	Travel(ctx context.Context, from, to geo.Point) error
	// Trace awaits the pen following one stroke.
	Trace(ctx context.Context, stroke geo.Stroke) error
}

// Paced animates in real time, sleeping a distance-proportional
// duration per motion.
type Paced struct{}

func (Paced) Travel(ctx context.Context, from, to geo.Point) error {
	return sleep(ctx, geo.TravelDuration(geo.Dist(from, to)))
}

func (Paced) Trace(ctx context.Context, stroke geo.Stroke) error {
	return sleep(ctx, geo.TravelDuration(stroke.Length()))
}

// Instant completes every motion immediately. Used by tests and by
// session restore, where replaying animations would be noise.
type Instant struct{}

func (Instant) Travel(ctx context.Context, from, to geo.Point) error { return ctx.Err() }
func (Instant) Trace(ctx context.Context, stroke geo.Stroke) error   { return ctx.Err() }

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
