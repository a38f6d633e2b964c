package source

import "sync"

type partitionKey struct {
	topic     string
	partition int
}

// partitionOffsets holds the fetched offsets of one partition that are not
// committed yet, split by whether routing finished.
type partitionOffsets struct {
	pending map[int64]struct{}
	acked   map[int64]struct{}
}

// offsetTracker computes how far each partition may be committed.
// An offset is pending from fetch until Commit; Abandon leaves it pending.
type offsetTracker struct {
	mu         sync.Mutex
	partitions map[partitionKey]*partitionOffsets
}

func newOffsetTracker() *offsetTracker {
	return &offsetTracker{partitions: make(map[partitionKey]*partitionOffsets)}
}

// track records a fetched offset as pending
func (t *offsetTracker) track(topic string, partition int, offset int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := partitionKey{topic, partition}
	p, ok := t.partitions[key]
	if !ok {
		p = &partitionOffsets{
			pending: make(map[int64]struct{}),
			acked:   make(map[int64]struct{}),
		}
		t.partitions[key] = p
	}
	p.pending[offset] = struct{}{}
}

// ack marks offset as routed and returns the highest acknowledged offset below
// every pending one. ok is false when the commit mark does not move.
// Offsets of partitions never tracked are returned as is.
func (t *offsetTracker) ack(topic string, partition int, offset int64) (mark int64, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	p, tracked := t.partitions[partitionKey{topic, partition}]
	if !tracked {
		return offset, true
	}
	if _, pending := p.pending[offset]; !pending {
		return 0, false
	}
	delete(p.pending, offset)
	p.acked[offset] = struct{}{}

	lowest, blocked := int64(0), false
	for o := range p.pending {
		if !blocked || o < lowest {
			lowest, blocked = o, true
		}
	}

	found := false
	for o := range p.acked {
		if blocked && o >= lowest {
			continue
		}
		if !found || o > mark {
			mark, found = o, true
		}
	}
	if !found {
		return 0, false
	}
	for o := range p.acked {
		if o <= mark {
			delete(p.acked, o)
		}
	}
	return mark, true
}
