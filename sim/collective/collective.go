// Package collective abstracts the message passing the distributed tuning
// strategy needs: a non-blocking barrier, a min-location reduction and a
// broadcast. LocalWorld implements it for ranks running as goroutines of
// one process.
package collective

import (
	"fmt"
	"sync"
)

// Request is a pending non-blocking operation.
type Request interface {
	// Test reports whether the operation has completed. It never blocks.
	Test() bool
}

// Communicator is one rank's view of a group of ranks. Collective calls
// must be made by every rank of the group in the same order.
type Communicator interface {
	Rank() int
	Size() int

	// Ibarrier enters a barrier and returns immediately. The request
	// completes once every rank has entered.
	Ibarrier() Request

	// AllreduceMinLoc returns the smallest value over all ranks and the
	// rank that contributed it. Ties go to the lowest rank. Blocks.
	AllreduceMinLoc(value float64) (float64, int)

	// Bcast returns root's data on every rank. Blocks.
	Bcast(data []byte, root int) []byte
}

// round collects one contribution per rank for a single collective call.
type round struct {
	values  []any
	arrived int
	read    int
}

type hub struct {
	size   int
	mu     sync.Mutex
	cond   *sync.Cond
	rounds map[string]*round
}

func (h *hub) roundFor(key string) *round {
	r, ok := h.rounds[key]
	if !ok {
		r = &round{values: make([]any, h.size)}
		h.rounds[key] = r
	}
	return r
}

// contribute records rank's value for key without waiting.
func (h *hub) contribute(key string, rank int, v any) *round {
	h.mu.Lock()
	defer h.mu.Unlock()
	r := h.roundFor(key)
	r.values[rank] = v
	r.arrived++
	if r.arrived == h.size {
		h.cond.Broadcast()
	}
	return r
}

// exchange records rank's value for key and waits for all ranks.
func (h *hub) exchange(key string, rank int, v any) []any {
	r := h.contribute(key, rank, v)
	h.mu.Lock()
	defer h.mu.Unlock()
	for r.arrived < h.size {
		h.cond.Wait()
	}
	r.read++
	if r.read == h.size {
		delete(h.rounds, key)
	}
	return r.values
}

// LocalWorld is a Communicator for one rank of an in-process group.
type LocalWorld struct {
	hub  *hub
	rank int
	seq  map[string]int
}

// NewLocalWorld returns one communicator per rank of a group of size ranks.
func NewLocalWorld(size int) []*LocalWorld {
	if size < 1 {
		panic(fmt.Sprintf("collective: group size must be positive, got %d", size))
	}
	h := &hub{size: size, rounds: map[string]*round{}}
	h.cond = sync.NewCond(&h.mu)
	out := make([]*LocalWorld, size)
	for r := range out {
		out[r] = &LocalWorld{hub: h, rank: r, seq: map[string]int{}}
	}
	return out
}

func (w *LocalWorld) Rank() int { return w.rank }
func (w *LocalWorld) Size() int { return w.hub.size }

func (w *LocalWorld) next(op string) string {
	n := w.seq[op]
	w.seq[op] = n + 1
	return fmt.Sprintf("%s/%d", op, n)
}

type barrierRequest struct {
	hub   *hub
	round *round
	done  bool
}

func (b *barrierRequest) Test() bool {
	if b.done {
		return true
	}
	b.hub.mu.Lock()
	defer b.hub.mu.Unlock()
	b.done = b.round.arrived == b.hub.size
	return b.done
}

func (w *LocalWorld) Ibarrier() Request {
	key := w.next("ibarrier")
	r := w.hub.contribute(key, w.rank, struct{}{})
	// The last rank to enter also drops the round; pending requests keep
	// their pointer to it.
	w.hub.mu.Lock()
	if r.arrived == w.hub.size {
		delete(w.hub.rounds, key)
	}
	w.hub.mu.Unlock()
	return &barrierRequest{hub: w.hub, round: r}
}

func (w *LocalWorld) AllreduceMinLoc(value float64) (float64, int) {
	values := w.hub.exchange(w.next("allreduce"), w.rank, value)
	best, bestRank := values[0].(float64), 0
	for r := 1; r < len(values); r++ {
		if v := values[r].(float64); v < best {
			best, bestRank = v, r
		}
	}
	return best, bestRank
}

func (w *LocalWorld) Bcast(data []byte, root int) []byte {
	values := w.hub.exchange(w.next("bcast"), w.rank, data)
	src, _ := values[root].([]byte)
	out := make([]byte, len(src))
	copy(out, src)
	return out
}

// Self is the single-rank communicator used when no group is configured.
type Self struct{}

type completed struct{}

func (completed) Test() bool { return true }

func (Self) Rank() int                                    { return 0 }
func (Self) Size() int                                    { return 1 }
func (Self) Ibarrier() Request                            { return completed{} }
func (Self) AllreduceMinLoc(value float64) (float64, int) { return value, 0 }
func (Self) Bcast(data []byte, _ int) []byte              { return data }
