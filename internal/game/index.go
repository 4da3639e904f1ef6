package game

// Index maps tiles to the claims touching them for a single tick.
// Build a fresh one every tick; it is never carried over.
type Index struct {
	byTarget map[Tile][]Claim
	byOrigin map[Tile][]Claim
}

// NewIndex creates an empty position index.
func NewIndex() *Index {
	return &Index{
		byTarget: make(map[Tile][]Claim),
		byOrigin: make(map[Tile][]Claim),
	}
}

// Register files the claim under both its target and origin tiles.
func (ix *Index) Register(c Claim) {
	ix.RegisterTarget(c)
	ix.byOrigin[c.Origin] = upsert(ix.byOrigin[c.Origin], c)
}

// RegisterTarget files the claim under its target tile only.
func (ix *Index) RegisterTarget(c Claim) {
	ix.byTarget[c.Target] = upsert(ix.byTarget[c.Target], c)
}

// Remove drops the actor's claim from the given bucket.
func (ix *Index) Remove(actorID int, tile Tile, kind ClaimKind) {
	m := ix.bucket(kind)
	claims, ok := m[tile]
	if !ok {
		return
	}
	// Fresh slice: callers may still be ranging over the old one.
	kept := make([]Claim, 0, len(claims))
	for _, c := range claims {
		if c.ActorID != actorID {
			kept = append(kept, c)
		}
	}
	if len(kept) == 0 {
		delete(m, tile)
		return
	}
	m[tile] = kept
}

// Lookup returns the claims filed under tile. The slice must not be modified.
func (ix *Index) Lookup(tile Tile, kind ClaimKind) []Claim {
	return ix.bucket(kind)[tile]
}

func (ix *Index) bucket(kind ClaimKind) map[Tile][]Claim {
	if kind == ByOrigin {
		return ix.byOrigin
	}
	return ix.byTarget
}

// upsert replaces an existing claim by the same actor, or appends.
func upsert(claims []Claim, c Claim) []Claim {
	for i := range claims {
		if claims[i].ActorID == c.ActorID {
			claims[i] = c
			return claims
		}
	}
	return append(claims, c)
}
