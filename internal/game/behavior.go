package game

// Behavior is the variant-specific hook attached to an actor.
// Step runs when an idle actor accepts a move intent, before the tile check.
// PostStep runs once per tick after the commit phase.
type Behavior interface {
	Step(a *Actor)
	PostStep(a *Actor)
}

// TurnCounter counts the player's steps and reports each one.
type TurnCounter struct {
	Turns  int
	OnTurn func(turn int)
}

func (t *TurnCounter) Step(a *Actor) {
	t.Turns++
	if t.OnTurn != nil {
		t.OnTurn(t.Turns)
	}
}

func (t *TurnCounter) PostStep(a *Actor) {}

// Flipper mirrors an enemy's controls every Every steps, once it is at rest.
type Flipper struct {
	Steps int
	Every int
}

func (f *Flipper) Step(a *Actor) {
	f.Steps++
}

func (f *Flipper) PostStep(a *Actor) {
	if f.Every <= 0 || a.Moving() {
		return
	}
	if f.Steps >= f.Every {
		f.Steps = 0
		a.Flipped = !a.Flipped
	}
}
