package launch

import (
	"strings"
	"sync"
)

// Registry holds the launch sequences of every signed-in session
type Registry struct {
	sched  Scheduler
	delays Delays

	mu        sync.Mutex
	sequences map[string]*Sequence
}

func NewRegistry(sched Scheduler, delays Delays) *Registry {
	return &Registry{
		sched:     sched,
		delays:    delays,
		sequences: make(map[string]*Sequence),
	}
}

func registryKey(sessionID, campaignID string) string {
	return sessionID + "/" + campaignID
}

// Get returns the sequence for a campaign within a session, creating it
func (r *Registry) Get(sessionID, campaignID string) *Sequence {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := registryKey(sessionID, campaignID)
	seq, ok := r.sequences[k]
	if !ok {
		seq = NewSequence(r.sched, r.delays)
		r.sequences[k] = seq
	}
	return seq
}

// Peek returns the existing sequence or nil
func (r *Registry) Peek(sessionID, campaignID string) *Sequence {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sequences[registryKey(sessionID, campaignID)]
}

// StopSession stops and forgets every sequence of a session
func (r *Registry) StopSession(sessionID string) {
	prefix := sessionID + "/"

	r.mu.Lock()
	var stop []*Sequence
	for k, seq := range r.sequences {
		if strings.HasPrefix(k, prefix) {
			stop = append(stop, seq)
			delete(r.sequences, k)
		}
	}
	r.mu.Unlock()

	for _, seq := range stop {
		seq.Stop()
	}
}

// Close stops every sequence
func (r *Registry) Close() {
	r.mu.Lock()
	all := r.sequences
	r.sequences = make(map[string]*Sequence)
	r.mu.Unlock()

	for _, seq := range all {
		seq.Stop()
	}
}

// Len returns the number of tracked sequences
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sequences)
}
