package game

import (
	"github.com/sirupsen/logrus"
)

// Resolver reconciles the claims of one tick.
//
// Actors are visited in ascending id order and split into collided and
// non-collided sets:
//
//  1. Neighbor check: an adjacent actor is moving into this actor's origin
//     while this actor heads straight at it, and the other is coming the
//     opposite way or standing still. Both collide as neighbors.
//  2. Destination check: any other claim on this actor's target tile.
//     Both collide.
//  3. Otherwise the actor is non-collided for now.
//
// Collided actors are then reverted and their reverted claims re-registered.
// A single chain pass re-checks every non-collided actor's target against the
// updated index and reverts it on conflict. That pass does not re-register,
// so chains of three or more actors can be left unresolved unless
// Config.FullChainResolution is set.
type Resolver struct {
	bounceTicks int
	fullChain   bool
	log         *logrus.Entry
}

// NewResolver creates a resolver for the given config.
func NewResolver(config Config, log *logrus.Entry) *Resolver {
	if log == nil {
		log = logrus.NewEntry(discardLogger())
	}
	return &Resolver{
		bounceTicks: config.BounceTicks,
		fullChain:   config.FullChainResolution,
		log:         log.WithField("component", "resolver"),
	}
}

// resolution is the working state of one Resolve call.
type resolution struct {
	r        *Resolver
	tick     uint64
	byID     map[int]*Actor
	outcomes map[int]Outcome
}

// Resolve runs collision resolution over actors (sorted by ascending id) and
// the tick's index. It mutates actors and the index and returns the outcome
// of every actor that collided.
func (r *Resolver) Resolve(tick uint64, actors []*Actor, ix *Index) map[int]Outcome {
	res := &resolution{
		r:        r,
		tick:     tick,
		byID:     make(map[int]*Actor, len(actors)),
		outcomes: make(map[int]Outcome),
	}
	for _, a := range actors {
		res.byID[a.ID] = a
	}

	var candidates []*Actor
	for _, a := range actors {
		if _, done := res.outcomes[a.ID]; done {
			continue
		}
		if res.checkNeighbors(a, ix) {
			continue
		}
		if res.checkDestination(a, ix) {
			continue
		}
		candidates = append(candidates, a)
	}

	// Revert pass, in id order for determinism.
	for _, a := range actors {
		if _, hit := res.outcomes[a.ID]; !hit {
			continue
		}
		ix.Remove(a.ID, a.TargetTile(), ByTarget)
		a.Revert()
		ix.RegisterTarget(a.Claim())
	}

	if r.fullChain {
		res.chainFixedPoint(candidates, ix)
	} else {
		res.chainOnce(candidates, ix)
	}
	return res.outcomes
}

// checkNeighbors looks for an actor swapping into a's origin.
func (res *resolution) checkNeighbors(a *Actor, ix *Index) bool {
	origin := a.OriginTile()
	hit := false
	for _, c := range ix.Lookup(origin, ByTarget) {
		if c.ActorID == a.ID {
			continue
		}
		dir := origin.Adjacent(c.Origin)
		if dir == DirNone || a.Dir != dir {
			continue
		}
		if c.Dir == dir.Opposite() || c.Dir == DirNone {
			res.collide(a, res.byID[c.ActorID], true)
			hit = true
		}
	}
	return hit
}

// checkDestination looks for any other claim on a's target tile.
func (res *resolution) checkDestination(a *Actor, ix *Index) bool {
	hit := false
	for _, c := range ix.Lookup(a.TargetTile(), ByTarget) {
		if c.ActorID == a.ID {
			continue
		}
		res.collide(a, res.byID[c.ActorID], false)
		hit = true
	}
	return hit
}

// chainOnce is the single correction pass: a conflicting actor is reverted
// but its reverted claim is not registered.
func (res *resolution) chainOnce(candidates []*Actor, ix *Index) {
	for _, a := range candidates {
		if _, hit := res.outcomes[a.ID]; hit {
			continue
		}
		for _, c := range ix.Lookup(a.TargetTile(), ByTarget) {
			if c.ActorID == a.ID {
				continue
			}
			res.collide(a, res.byID[c.ActorID], false)
			a.Revert()
		}
	}
}

// chainFixedPoint repeats the correction pass, registering every revert,
// until a pass finds no conflict. Each productive pass reverts at least one
// actor, so it terminates within len(candidates) passes.
func (res *resolution) chainFixedPoint(candidates []*Actor, ix *Index) {
	for pass := 0; ; pass++ {
		changed := false
		for _, a := range candidates {
			if _, hit := res.outcomes[a.ID]; hit {
				continue
			}
			conflict := false
			for _, c := range ix.Lookup(a.TargetTile(), ByTarget) {
				if c.ActorID == a.ID {
					continue
				}
				res.collide(a, res.byID[c.ActorID], false)
				conflict = true
			}
			if conflict {
				ix.Remove(a.ID, a.TargetTile(), ByTarget)
				a.Revert()
				ix.RegisterTarget(a.Claim())
				changed = true
			}
		}
		if !changed {
			if pass > 1 {
				res.r.log.WithFields(logrus.Fields{
					"tick":   res.tick,
					"passes": pass,
				}).Debug("chain resolution needed extra passes")
			}
			return
		}
	}
}

// collide marks both actors and starts their bounce. A later collision in
// the same tick overwrites the earlier outcome.
func (res *resolution) collide(a, other *Actor, neighbor bool) {
	if other == nil {
		return
	}
	res.outcomes[a.ID] = Outcome{Collided: true, NeighborCollision: neighbor, With: other.ID}
	res.outcomes[other.ID] = Outcome{Collided: true, NeighborCollision: neighbor, With: a.ID}
	a.startBounce(neighbor, res.r.bounceTicks)
	other.startBounce(neighbor, res.r.bounceTicks)

	res.r.log.WithFields(logrus.Fields{
		"tick":     res.tick,
		"actor_id": a.ID,
		"other_id": other.ID,
		"neighbor": neighbor,
	}).Debug("collision")
}
