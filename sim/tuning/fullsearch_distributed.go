package tuning

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/mdtune/mdtune/sim"
	"github.com/mdtune/mdtune/sim/collective"
)

// FullSearchDistributed splits the search space into contiguous shards, one
// per rank. Each rank tests its shard, then enters a non-blocking barrier and
// keeps cycling its shard until every rank has arrived. The global optimum is
// the minimum over all ranks, broadcast from the rank that measured it.
type FullSearchDistributed struct {
	comm  collective.Communicator
	space []sim.Configuration // whole space, kept to refill an emptied shard
	shard []sim.Configuration

	cursor    int
	times     map[sim.Configuration]int64
	allTested bool
	request   collective.Request

	optimum  sim.Configuration
	selected bool
}

// NewFullSearchDistributed creates this rank's share of a distributed full
// search. A rank whose shard is empty searches the whole space.
func NewFullSearchDistributed(space []sim.Configuration, comm collective.Communicator) (*FullSearchDistributed, error) {
	sorted, err := sortedCopy(space)
	if err != nil {
		return nil, err
	}
	start, end := shardBounds(len(sorted), comm.Rank(), comm.Size())
	shard := sorted[start:end]
	if len(shard) == 0 {
		shard = sorted
	}
	if comm.Rank() == 0 {
		logrus.Debugf("distributed full search: %d ranks, %d configurations", comm.Size(), len(sorted))
	}
	logrus.Debugf("distributed full search: rank %d tests [%d, %d) (%d configurations)",
		comm.Rank(), start, end, len(shard))
	return &FullSearchDistributed{
		comm:  comm,
		space: sorted,
		shard: append([]sim.Configuration(nil), shard...),
		times: map[sim.Configuration]int64{},
	}, nil
}

// shardBounds splits total items into size contiguous blocks. The first
// total%size ranks get one extra item.
func shardBounds(total, rank, size int) (start, end int) {
	block, rem := total/size, total%size
	start = block*rank + min(rank, rem)
	end = start + block
	if rank < rem {
		end++
	}
	return start, end
}

func (f *FullSearchDistributed) CurrentConfiguration() sim.Configuration {
	if f.selected {
		return f.optimum
	}
	return f.shard[f.cursor]
}

func (f *FullSearchDistributed) SearchSpaceIsEmpty() bool { return len(f.shard) == 0 }

// SearchSpaceIsTrivial looks at the whole space: a rank with a one-element
// shard must still take part in the collective selection.
func (f *FullSearchDistributed) SearchSpaceIsTrivial() bool { return len(f.space) == 1 }

func (f *FullSearchDistributed) AddEvidence(timeNs int64, _ int) {
	f.times[f.shard[f.cursor]] = timeNs
}

func (f *FullSearchDistributed) Tune(currentInvalid bool) (bool, error) {
	f.cursor++
	if f.cursor == len(f.shard) {
		f.allTested = true
		f.cursor = 0
		logrus.Debugf("distributed full search: rank %d tested its whole shard", f.comm.Rank())
	}
	if currentInvalid && !f.allTested {
		return true, nil
	}

	if f.request != nil {
		if f.request.Test() {
			logrus.Debugf("distributed full search: rank %d starts global selection", f.comm.Rank())
			return false, f.selectOptimum()
		}
	} else if f.allTested {
		f.request = f.comm.Ibarrier()
		logrus.Debugf("distributed full search: rank %d requested global selection", f.comm.Rank())
	}
	return true, nil
}

// selectOptimum runs the one blocking reduction and broadcast of a phase.
// Every rank takes part even without local evidence.
func (f *FullSearchDistributed) selectOptimum() error {
	local, localTime, ok := fastest(f.shard, func(c sim.Configuration) (float64, bool) {
		t, ok := f.times[c]
		return float64(t), ok
	})
	if !ok {
		localTime = math.Inf(1)
	} else {
		logrus.Debugf("distributed full search: rank %d local optimum %s", f.comm.Rank(), local)
	}

	globalTime, winner := f.comm.AllreduceMinLoc(localTime)
	var payload []byte
	if winner == f.comm.Rank() {
		var err error
		if payload, err = yaml.Marshal(local); err != nil {
			logrus.Errorf("distributed full search: encoding optimum: %v", err)
		}
	}
	data := f.comm.Bcast(payload, winner)
	clear(f.times)

	if math.IsInf(globalTime, 1) {
		return fmt.Errorf("distributed full search: %w: no rank measured any configuration",
			sim.ErrInsufficientEvidence)
	}
	var optimum sim.Configuration
	if err := yaml.Unmarshal(data, &optimum); err != nil {
		return fmt.Errorf("distributed full search: decoding optimum from rank %d: %w", winner, err)
	}
	f.optimum, f.selected = optimum, true
	logrus.Debugf("distributed full search: selected %s from rank %d (%.0f ns)", optimum, winner, globalTime)
	return nil
}

func (f *FullSearchDistributed) Reset(_ int) error {
	clear(f.times)
	f.cursor = 0
	f.allTested = false
	f.request = nil
	f.selected = false
	return nil
}

func (f *FullSearchDistributed) RemoveNewton3Option(mode sim.Newton3Option) error {
	f.space = sim.RemoveNewton3(f.space, mode)
	if len(f.space) == 0 {
		f.shard = nil
		return emptiedBy(mode)
	}
	f.shard, f.cursor = removeMode(f.shard, f.cursor, mode)
	if len(f.shard) == 0 {
		f.shard = append([]sim.Configuration(nil), f.space...)
		f.cursor = 0
	}
	for c := range f.times {
		if c.Newton3 == mode {
			delete(f.times, c)
		}
	}
	return nil
}
