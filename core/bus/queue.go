package bus

import (
	"math/rand"

	"stakepool/core/types"
	"stakepool/crypto"
)

// Pending is a message waiting for delivery. Seq is its global enqueue order.
type Pending struct {
	Seq uint64
	Msg *types.Message
}

// Scheduler picks which lane head is delivered next. Messages between the
// same pair of accounts are always delivered in order; only the interleaving
// across pairs is up to the scheduler.
type Scheduler interface {
	Pick(heads []*Pending) int
}

// FIFO delivers messages in global enqueue order.
type FIFO struct{}

func (FIFO) Pick(heads []*Pending) int {
	best := 0
	for i, p := range heads {
		if p.Seq < heads[best].Seq {
			best = i
		}
	}
	return best
}

// Shuffle interleaves lanes pseudo-randomly from a fixed seed.
type Shuffle struct {
	rng *rand.Rand
}

func NewShuffle(seed int64) *Shuffle {
	return &Shuffle{rng: rand.New(rand.NewSource(seed))}
}

func (s *Shuffle) Pick(heads []*Pending) int {
	return s.rng.Intn(len(heads))
}

type laneKey struct {
	src crypto.Address
	dst crypto.Address
}

type queue struct {
	lanes map[laneKey][]*Pending
	order []laneKey
	seq   uint64
	size  int
}

func newQueue() *queue {
	return &queue{lanes: make(map[laneKey][]*Pending)}
}

func (q *queue) push(msg *types.Message) {
	key := laneKey{src: msg.Src, dst: msg.Dst}
	lane, ok := q.lanes[key]
	if !ok {
		q.order = append(q.order, key)
	}
	q.seq++
	q.lanes[key] = append(lane, &Pending{Seq: q.seq, Msg: msg})
	q.size++
}

func (q *queue) heads() ([]*Pending, []laneKey) {
	heads := make([]*Pending, 0, len(q.order))
	keys := make([]laneKey, 0, len(q.order))
	for _, key := range q.order {
		lane := q.lanes[key]
		if len(lane) == 0 {
			continue
		}
		heads = append(heads, lane[0])
		keys = append(keys, key)
	}
	return heads, keys
}

func (q *queue) pop(key laneKey) *Pending {
	lane := q.lanes[key]
	head := lane[0]
	lane[0] = nil
	lane = lane[1:]
	if len(lane) == 0 {
		delete(q.lanes, key)
		q.compact(key)
	} else {
		q.lanes[key] = lane
	}
	q.size--
	return head
}

func (q *queue) compact(key laneKey) {
	for i, k := range q.order {
		if k == key {
			q.order = append(q.order[:i], q.order[i+1:]...)
			return
		}
	}
}

func (q *queue) len() int { return q.size }
