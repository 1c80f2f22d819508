package layout

import (
	"github.com/tanema/gween"
	"github.com/tanema/gween/ease"
)

// DefaultSnapDuration is the snap animation length in seconds.
const DefaultSnapDuration float32 = 0.12

// Snap animates a dragged item so that the point it is held by lands on the
// center of the target cell. Call Update once per frame with the elapsed
// seconds until it reports done.
type Snap struct {
	x, y   *gween.Tween
	target Vec
	done   bool
}

// NewSnap tweens from position from so that held (a point on the item, in
// the same space) ends up at the center of cell (col, row). held is usually
// the center of the anchor cell on the item. ok is false when the cell is
// outside the layout.
func NewSnap(from, held Vec, col, row int, p Params, duration float32, fn ease.TweenFunc) (*Snap, bool) {
	rect, ok := MapCellToRect(col, row, p)
	if !ok {
		return nil, false
	}
	if fn == nil {
		fn = ease.OutCubic
	}
	if duration <= 0 {
		duration = DefaultSnapDuration
	}

	c := rect.Center()
	target := Vec{X: from.X + (c.X - held.X), Y: from.Y + (c.Y - held.Y)}
	return &Snap{
		x:      gween.New(float32(from.X), float32(target.X), duration, fn),
		y:      gween.New(float32(from.Y), float32(target.Y), duration, fn),
		target: target,
	}, true
}

// Target returns the final position.
func (s *Snap) Target() Vec { return s.target }

// Done reports whether the animation has finished.
func (s *Snap) Done() bool { return s.done }

// Update advances the animation by dt seconds and returns the current
// position.
func (s *Snap) Update(dt float32) (Vec, bool) {
	if s.done {
		return s.target, true
	}
	x, xDone := s.x.Update(dt)
	y, yDone := s.y.Update(dt)
	s.done = xDone && yDone
	if s.done {
		return s.target, true
	}
	return Vec{X: float64(x), Y: float64(y)}, false
}
