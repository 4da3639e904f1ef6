package game

// propose attempts the Idle -> Moving transition for the sampled intent.
// A move into a blocking or off-map tile is reverted on the spot.
// Returns true when the actor starts moving.
func (a *Actor) propose(intent Direction, oracle Oracle) bool {
	if intent == DirNone || a.Moving() || a.Bouncing() {
		return false
	}

	if a.behavior != nil {
		a.behavior.Step(a)
	}

	// Flipped actors mirror the intent: LEFT walks right, UP walks down.
	dir := intent
	if a.Flipped {
		dir = intent.Opposite()
	}

	next := a.OriginTile().Step(dir)
	if oracle == nil || oracle.TileAt(next.X, next.Y) != Passable {
		a.Revert()
		return false
	}

	a.Target = next.Pixel(a.tileSize)
	a.Dir = dir
	return true
}

// advance moves the actor toward its target by Speed on each axis,
// snapping onto the target instead of overshooting it.
func (a *Actor) advance() {
	a.bounce.tick()
	if !a.Moving() {
		return
	}
	a.Pos.X = approach(a.Pos.X, a.Target.X, a.Speed)
	a.Pos.Y = approach(a.Pos.Y, a.Target.Y, a.Speed)
}

// commit finalizes a finished move. Returns true if the actor arrived this tick.
func (a *Actor) commit() bool {
	arrived := a.Moving() && a.Pos == a.Target
	if arrived {
		a.Origin = a.Target
		a.Dir = DirNone
	}
	if a.behavior != nil {
		a.behavior.PostStep(a)
	}
	return arrived
}

func approach(from, to, step float64) float64 {
	switch {
	case from < to:
		if to-from <= step {
			return to
		}
		return from + step
	case from > to:
		if from-to <= step {
			return to
		}
		return from - step
	}
	return from
}
