package game

// Peak bounce displacement is the tile size divided by these. Neighbor
// (swap) collisions are near misses and get the softer bump.
const (
	bounceDestinationDiv = 2.0
	bounceNeighborDiv    = 3.0
)

// bounce is a tick-boxed visual bump toward the collision and back.
// It locks the actor out of new moves while active but never changes Pos.
type bounce struct {
	peak      Vec // Displacement at the midpoint
	total     int
	remaining int
}

func (b *bounce) active() bool {
	return b.remaining > 0
}

// tick advances the bounce by one frame.
func (b *bounce) tick() {
	if b.remaining > 0 {
		b.remaining--
	}
}

// offset returns the current displacement: a linear ramp out to peak and back.
func (b *bounce) offset() Vec {
	if b.remaining <= 0 || b.total <= 0 {
		return Vec{}
	}
	elapsed := float64(b.total - b.remaining)
	half := float64(b.total) / 2
	f := elapsed / half
	if f > 1 {
		f = 2 - f
	}
	return Vec{X: b.peak.X * f, Y: b.peak.Y * f}
}

// startBounce plays the collision bump in the actor's current heading.
// A bounce already in progress is left alone. Stationary actors still get the
// movement lock, with zero displacement.
func (a *Actor) startBounce(neighbor bool, ticks int) {
	if a.bounce.active() || ticks <= 0 {
		return
	}
	div := bounceDestinationDiv
	if neighbor {
		div = bounceNeighborDiv
	}
	dx, dy := a.Dir.Delta()
	mag := float64(a.tileSize) / div
	a.bounce = bounce{
		peak:      Vec{X: float64(dx) * mag, Y: float64(dy) * mag},
		total:     ticks,
		remaining: ticks,
	}
}

// BouncePeak returns the peak displacement of the active bounce.
func (a *Actor) BouncePeak() Vec {
	if !a.bounce.active() {
		return Vec{}
	}
	return a.bounce.peak
}
