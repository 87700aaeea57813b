package topology

// Graph is the owning registry for a layout's topology elements: blocks,
// turnouts and feedbacks are kept in id-keyed maps (no ownership cycles);
// every cross-reference elsewhere in this module is resolved by id lookup
// through a Graph.
type Graph struct {
	blocks      map[string]*Block
	turnouts    map[string]*Turnout
	feedbacks   map[string]*Feedback
	transitions []*Transition
	bySocket    map[Socket][]*Transition
}

// NewGraph returns an empty, ready-to-populate Graph.
func NewGraph() *Graph {
	return &Graph{
		blocks:    make(map[string]*Block),
		turnouts:  make(map[string]*Turnout),
		feedbacks: make(map[string]*Feedback),
		bySocket:  make(map[Socket][]*Transition),
	}
}

func (g *Graph) AddBlock(b *Block)       { g.blocks[b.ID()] = b }
func (g *Graph) AddTurnout(t *Turnout)   { g.turnouts[t.ID()] = t }
func (g *Graph) AddFeedback(f *Feedback) { g.feedbacks[f.ID()] = f }

// AddTransition registers a transition and indexes both of its endpoints.
func (g *Graph) AddTransition(t *Transition) {
	g.transitions = append(g.transitions, t)
	g.bySocket[t.a] = append(g.bySocket[t.a], t)
	g.bySocket[t.b] = append(g.bySocket[t.b], t)
}

// RemoveTransition unregisters a transition by id, dropping it from both
// endpoint indexes. A no-op if the id is unknown.
func (g *Graph) RemoveTransition(id string) {
	for i, t := range g.transitions {
		if t.ID() != id {
			continue
		}
		g.transitions = append(g.transitions[:i], g.transitions[i+1:]...)
		g.bySocket[t.a] = removeTransition(g.bySocket[t.a], t)
		g.bySocket[t.b] = removeTransition(g.bySocket[t.b], t)
		return
	}
}

func removeTransition(list []*Transition, t *Transition) []*Transition {
	for i, cand := range list {
		if cand == t {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}

func (g *Graph) Blocks() map[string]*Block       { return g.blocks }
func (g *Graph) Turnouts() map[string]*Turnout   { return g.turnouts }
func (g *Graph) Feedbacks() map[string]*Feedback { return g.feedbacks }
func (g *Graph) Transitions() []*Transition      { return g.transitions }

func (g *Graph) Block(id string) (*Block, error) {
	b, ok := g.blocks[id]
	if !ok {
		return nil, newErr(ErrBlockNotFound, "block %q", id)
	}
	return b, nil
}

func (g *Graph) Turnout(id string) (*Turnout, error) {
	t, ok := g.turnouts[id]
	if !ok {
		return nil, newErr(ErrTurnoutNotFound, "turnout %q", id)
	}
	return t, nil
}

func (g *Graph) Feedback(id string) (*Feedback, error) {
	f, ok := g.feedbacks[id]
	if !ok {
		return nil, newErr(ErrFeedbackNotFound, "feedback %q", id)
	}
	return f, nil
}

// Transition looks up a transition by id, scanning the registration order
// (there is no id-keyed index: transitions are normally addressed by
// socket, and lookup-by-id only matters for releasing a remembered
// reservation).
func (g *Graph) Transition(id string) (*Transition, error) {
	for _, t := range g.transitions {
		if t.ID() == id {
			return t, nil
		}
	}
	return nil, newErr(ErrNoTransition, "transition %q", id)
}

// TransitionsFrom returns every transition attached to socket s (normally
// zero or one; a slice future-proofs multi-link dead-end modeling).
func (g *Graph) TransitionsFrom(s Socket) []*Transition {
	return g.bySocket[s]
}

// TransitionBetween returns the transition directly joining a and b, if any.
func (g *Graph) TransitionBetween(a, b Socket) *Transition {
	for _, t := range g.bySocket[a] {
		if t.Other(a).Equals(b) {
			return t
		}
	}
	return nil
}

// TurnoutCrossing records one turnout hop taken while resolving a chain
// between two block sockets: which turnout, which sockets, and the state
// it must hold to legally route that pair.
type TurnoutCrossing struct {
	TurnoutID     string
	EntrySocket   int
	ExitSocket    int
	RequiredState TurnoutState
}

// NextOption is one physically legal continuation from a block+direction:
// the next block reached, the direction of travel inside it, and every
// turnout crossed (with required state) plus transition crossed along the
// way, in traversal order.
type NextOption struct {
	BlockID     string
	Direction   Direction
	Crossings   []TurnoutCrossing
	Transitions []*Transition
}

// arrivalDirection returns the direction of travel inside a block entered
// via the given socket.
func arrivalDirection(socket int) Direction {
	if socket == 0 {
		return DirNext
	}
	return DirPrevious
}

// NextOptions enumerates every block reachable by departing blockID in
// direction dir, crossing zero or more turnouts along the way. At each
// turnout the legal exit sockets from the entry socket are all explored
// (the "branch over legal exit sockets" step); dead ends (a socket
// with no attached transition) simply yield no option.
func (g *Graph) NextOptions(blockID string, dir Direction) []NextOption {
	b, err := g.Block(blockID)
	if err != nil {
		return nil
	}
	start := BlockSocket(blockID, OutgoingSocket(dir))
	visited := map[Socket]bool{start: true}
	_ = b
	return g.walk(start, nil, nil, visited)
}

func (g *Graph) walk(from Socket, crossings []TurnoutCrossing, transitions []*Transition, visited map[Socket]bool) []NextOption {
	trs := g.TransitionsFrom(from)
	var options []NextOption
	for _, t := range trs {
		next := t.Other(from)
		if visited[next] {
			continue
		}
		nextTransitions := append(append([]*Transition{}, transitions...), t)
		switch next.Element.Kind {
		case KindBlock:
			options = append(options, NextOption{
				BlockID:     next.Element.ID,
				Direction:   arrivalDirection(next.Socket),
				Crossings:   append([]TurnoutCrossing{}, crossings...),
				Transitions: nextTransitions,
			})
		case KindTurnout:
			to, err := g.Turnout(next.Element.ID)
			if err != nil {
				continue
			}
			entry := next.Socket
			nv := copyVisited(visited)
			nv[next] = true
			for _, exit := range to.ExitsFrom(entry) {
				exitSocket := TurnoutSocket(to.ID(), exit)
				if nv[exitSocket] {
					continue
				}
				crossing := TurnoutCrossing{
					TurnoutID:     to.ID(),
					EntrySocket:   entry,
					ExitSocket:    exit,
					RequiredState: to.RequiredState(entry, exit),
				}
				nnv := copyVisited(nv)
				nnv[exitSocket] = true
				options = append(options, g.walk(exitSocket, append(append([]TurnoutCrossing{}, crossings...), crossing), nextTransitions, nnv)...)
			}
		}
	}
	return options
}

func copyVisited(v map[Socket]bool) map[Socket]bool {
	nv := make(map[Socket]bool, len(v))
	for k, val := range v {
		nv[k] = val
	}
	return nv
}

// ChainTo resolves the unique transition/turnout chain from (fromBlockID,
// fromDir)'s outgoing side to (toBlockID, toDir)'s incoming side, as used
// by the reservation engine to reserve one route step. Returns a
// topology.LayoutError{Kind: ErrNoTransition} if no such chain exists.
func (g *Graph) ChainTo(fromBlockID string, fromDir Direction, toBlockID string, toDir Direction) ([]TurnoutCrossing, []*Transition, error) {
	for _, opt := range g.NextOptions(fromBlockID, fromDir) {
		if opt.BlockID == toBlockID && opt.Direction == toDir {
			return opt.Crossings, opt.Transitions, nil
		}
	}
	return nil, nil, newErr(ErrNoTransition, "no transition chain from %s/%s to %s/%s", fromBlockID, fromDir, toBlockID, toDir)
}
