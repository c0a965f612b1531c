package matchmaking

// Pool is the FIFO waiting pool. An identity appears at most once.
//
// The pool is not safe for concurrent use; the Engine serializes access.
type Pool struct {
	order   []string
	members map[string]struct{}
}

// NewPool creates an empty pool
func NewPool() *Pool {
	return &Pool{members: make(map[string]struct{})}
}

// Enqueue appends identity unless it is already queued
func (p *Pool) Enqueue(identity string) bool {
	if _, ok := p.members[identity]; ok {
		return false
	}
	p.members[identity] = struct{}{}
	p.order = append(p.order, identity)
	return true
}

// PushFront puts identity back at the head, used when its partner turned
// out to be gone.
func (p *Pool) PushFront(identity string) {
	if _, ok := p.members[identity]; ok {
		return
	}
	p.members[identity] = struct{}{}
	p.order = append([]string{identity}, p.order...)
}

// Remove drops identity from the pool if present
func (p *Pool) Remove(identity string) bool {
	if _, ok := p.members[identity]; !ok {
		return false
	}
	delete(p.members, identity)
	for i, id := range p.order {
		if id == identity {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
	return true
}

// Contains reports whether identity is queued
func (p *Pool) Contains(identity string) bool {
	_, ok := p.members[identity]
	return ok
}

// Len returns the number of queued identities
func (p *Pool) Len() int {
	return len(p.order)
}

// Snapshot returns a copy of the queue in order
func (p *Pool) Snapshot() []string {
	out := make([]string, len(p.order))
	copy(out, p.order)
	return out
}

// PopPair takes the head as candidate A and scans forward for the first B
// with eligible(A, B). Both are removed and the relative order of the rest
// is preserved. When no B qualifies the pool is left untouched and ok is
// false.
func (p *Pool) PopPair(eligible func(a, b string) bool) (a, b string, ok bool) {
	if len(p.order) < 2 {
		return "", "", false
	}
	a = p.order[0]
	for j := 1; j < len(p.order); j++ {
		if !eligible(a, p.order[j]) {
			continue
		}
		b = p.order[j]
		rest := make([]string, 0, len(p.order)-2)
		rest = append(rest, p.order[1:j]...)
		rest = append(rest, p.order[j+1:]...)
		p.order = rest
		delete(p.members, a)
		delete(p.members, b)
		return a, b, true
	}
	return "", "", false
}
