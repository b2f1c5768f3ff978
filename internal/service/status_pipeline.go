package service

import (
	"fmt"
	"strings"
	"sync"
)

// Pipeline presets used by the role-specific dashboards
var pipelinePresets = map[string][]string{
	"brand": {"new", "inProgress", "appointment", "completed", "sold"},
	"admin": {"new", "inProgress", "waiting", "resolved"},
	"staff": {"new", "inProgress", "waiting", "resolved"},
}

// PresetStates returns a copy of the named preset's states
func PresetStates(name string) ([]string, bool) {
	states, ok := pipelinePresets[strings.ToLower(name)]
	if !ok {
		return nil, false
	}
	return append([]string(nil), states...), true
}

// StatusPipeline is the triage state machine of one board. It owns the
// ordered list of states and, per state, the ordered bucket of message IDs.
// Any state may move to any other state.
type StatusPipeline struct {
	states []string
	index  map[string]int

	mu        sync.RWMutex
	buckets   map[string][]string
	placement map[string]string // message ID -> state
}

// NewStatusPipeline creates a pipeline over the given ordered states. At
// least two states are required since the first response moves a message
// from the first state to the second.
func NewStatusPipeline(states []string) (*StatusPipeline, error) {
	if len(states) < 2 {
		return nil, &ValidationError{Message: fmt.Sprintf("pipeline needs at least 2 states, got %d", len(states))}
	}

	p := &StatusPipeline{
		states:    make([]string, 0, len(states)),
		index:     make(map[string]int, len(states)),
		buckets:   make(map[string][]string, len(states)),
		placement: make(map[string]string),
	}
	for _, s := range states {
		s = strings.TrimSpace(s)
		if s == "" {
			return nil, &ValidationError{Message: "pipeline state names cannot be empty"}
		}
		if _, dup := p.index[s]; dup {
			return nil, &ValidationError{Message: fmt.Sprintf("duplicate pipeline state %q", s)}
		}
		p.index[s] = len(p.states)
		p.states = append(p.states, s)
		p.buckets[s] = []string{}
	}
	return p, nil
}

// States returns the ordered states
func (p *StatusPipeline) States() []string {
	return append([]string(nil), p.states...)
}

// Initial returns the state every message starts in
func (p *StatusPipeline) Initial() string {
	return p.states[0]
}

// Second returns the state the first response moves a message to
func (p *StatusPipeline) Second() string {
	return p.states[1]
}

// Contains reports whether state is declared by the pipeline
func (p *StatusPipeline) Contains(state string) bool {
	_, ok := p.index[state]
	return ok
}

// IndexOf returns the column index of state, or -1
func (p *StatusPipeline) IndexOf(state string) int {
	if i, ok := p.index[state]; ok {
		return i
	}
	return -1
}

// CheckState returns an InvalidStateError when state is not declared
func (p *StatusPipeline) CheckState(state string) error {
	if !p.Contains(state) {
		return &InvalidStateError{State: state, Allowed: p.States()}
	}
	return nil
}

// Insert places id at the tail of the state's bucket
func (p *StatusPipeline) Insert(id, state string) error {
	if err := p.CheckState(state); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.placement[id]; exists {
		return &ConflictError{Resource: "message", Message: fmt.Sprintf("message %s is already on the board", id)}
	}
	p.buckets[state] = append(p.buckets[state], id)
	p.placement[id] = state
	return nil
}

// Move sets id's state to target and splices it into target's bucket at
// index. An index outside the bucket (including models.AppendIndex) means
// the tail. Within the same bucket, index is the final position. It returns
// false without touching anything when the message is already at that
// position.
func (p *StatusPipeline) Move(id, target string, index int) (bool, error) {
	if err := p.CheckState(target); err != nil {
		return false, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	current, ok := p.placement[id]
	if !ok {
		return false, &NotFoundError{Resource: "message", ID: id}
	}

	src := p.buckets[current]
	from := indexOf(src, id)

	if current == target {
		to := clampIndex(index, len(src)-1)
		if to == from {
			return false, nil
		}
		p.buckets[current] = insertAt(removeAt(src, from), to, id)
		return true, nil
	}

	p.buckets[current] = removeAt(src, from)
	dst := p.buckets[target]
	p.buckets[target] = insertAt(dst, clampIndex(index, len(dst)), id)
	p.placement[id] = target
	return true, nil
}

// Position returns the state and bucket index of id
func (p *StatusPipeline) Position(id string) (string, int, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	state, ok := p.placement[id]
	if !ok {
		return "", -1, false
	}
	return state, indexOf(p.buckets[state], id), true
}

// Bucket returns a copy of the ordered IDs in state
func (p *StatusPipeline) Bucket(state string) []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]string{}, p.buckets[state]...)
}

// Ordered returns every placed ID in column order, then bucket order
func (p *StatusPipeline) Ordered() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	ids := make([]string, 0, len(p.placement))
	for _, state := range p.states {
		ids = append(ids, p.buckets[state]...)
	}
	return ids
}

// BucketSizes returns the number of messages per state
func (p *StatusPipeline) BucketSizes() map[string]int {
	p.mu.RLock()
	defer p.mu.RUnlock()

	sizes := make(map[string]int, len(p.states))
	for _, state := range p.states {
		sizes[state] = len(p.buckets[state])
	}
	return sizes
}

func indexOf(ids []string, id string) int {
	for i, existing := range ids {
		if existing == id {
			return i
		}
	}
	return -1
}

// clampIndex maps out-of-range indexes to last (the tail)
func clampIndex(index, last int) int {
	if index < 0 || index > last {
		return last
	}
	return index
}

func removeAt(ids []string, i int) []string {
	out := make([]string, 0, len(ids)-1)
	out = append(out, ids[:i]...)
	return append(out, ids[i+1:]...)
}

func insertAt(ids []string, i int, id string) []string {
	out := make([]string, 0, len(ids)+1)
	out = append(out, ids[:i]...)
	out = append(out, id)
	return append(out, ids[i:]...)
}

// DefaultPipelineStates is the brand triage preset
func DefaultPipelineStates() []string {
	states, _ := PresetStates("brand")
	return states
}

// PipelineFor builds a board's pipeline from explicit states, falling back
// to the preset named after the board and then to the default preset
func PipelineFor(board string, states []string) (*StatusPipeline, error) {
	if len(states) == 0 {
		var ok bool
		if states, ok = PresetStates(board); !ok {
			states = DefaultPipelineStates()
		}
	}
	return NewStatusPipeline(states)
}
