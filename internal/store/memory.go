package store

import (
	"context"
	"strings"
	"sync"
	"time"
)

// MemoryStore is an in-process Store backed by a nested map tree. Mutations
// run under a single lock, so a multi-field Update is observed atomically.
// Each subscription owns a delivery goroutine; intermediate states may be
// coalesced but the final state is always delivered, matching push-store
// semantics where observers converge on the latest value.
type MemoryStore struct {
	mu     sync.RWMutex
	root   map[string]any
	subs   map[int64]*memSubscription
	nextID int64
	now    func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		root: make(map[string]any),
		subs: make(map[int64]*memSubscription),
		now:  time.Now,
	}
}

// SetClock overrides the clock used to resolve ServerTimestamp. Test hook.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *MemoryStore) Get(ctx context.Context, path string) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.lookup(splitPath(path))
	return Snapshot{Path: path, Value: deepCopy(value), Exists: ok}, nil
}

func (s *MemoryStore) Set(ctx context.Context, path string, value any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	segments := splitPath(path)
	s.mu.Lock()
	if len(segments) == 0 {
		if m, ok := s.resolveSentinels(deepCopy(value)).(map[string]any); ok {
			s.root = m
		}
	} else {
		node := s.ensureParent(segments)
		node[segments[len(segments)-1]] = s.resolveSentinels(deepCopy(value))
	}
	s.mu.Unlock()

	s.notify(path)
	return nil
}

func (s *MemoryStore) Update(ctx context.Context, path string, fields map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	segments := splitPath(path)
	s.mu.Lock()
	node := s.root
	if len(segments) > 0 {
		parent := s.ensureParent(segments)
		key := segments[len(segments)-1]
		child, ok := parent[key].(map[string]any)
		if !ok {
			child = make(map[string]any)
			parent[key] = child
		}
		node = child
	}
	for field, value := range fields {
		if value == nil {
			delete(node, field)
			continue
		}
		node[field] = s.resolveSentinels(deepCopy(value))
	}
	s.mu.Unlock()

	s.notify(path)
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	segments := splitPath(path)
	if len(segments) == 0 {
		s.root = make(map[string]any)
	} else {
		parent, ok := s.lookup(segments[:len(segments)-1])
		if parentMap, isMap := parent.(map[string]any); ok && isMap {
			delete(parentMap, segments[len(segments)-1])
		}
	}
	s.mu.Unlock()

	s.notify(path)
	return nil
}

func (s *MemoryStore) Subscribe(path string, fn func(Snapshot)) (Subscription, error) {
	sub := &memSubscription{
		store:  s,
		path:   path,
		fn:     fn,
		wake:   make(chan struct{}, 1),
		closed: make(chan struct{}),
	}

	s.mu.Lock()
	s.nextID++
	sub.id = s.nextID
	s.subs[sub.id] = sub
	initial := Snapshot{Path: path}
	initial.Value, initial.Exists = s.lookup(splitPath(path))
	initial.Value = deepCopy(initial.Value)
	s.mu.Unlock()

	sub.push(initial)
	go sub.deliver()
	return sub, nil
}

// notify refreshes every subscription whose subtree overlaps the changed
// path, in either direction: a write below a watched node changes the
// node's value, and a write above it can replace it wholesale.
func (s *MemoryStore) notify(changed string) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, sub := range s.subs {
		if !pathsOverlap(sub.path, changed) {
			continue
		}
		snap := Snapshot{Path: sub.path}
		snap.Value, snap.Exists = s.lookup(splitPath(sub.path))
		snap.Value = deepCopy(snap.Value)
		sub.push(snap)
	}
}

func (s *MemoryStore) release(id int64) {
	s.mu.Lock()
	delete(s.subs, id)
	s.mu.Unlock()
}

// lookup walks the tree; callers hold at least the read lock.
func (s *MemoryStore) lookup(segments []string) (any, bool) {
	var node any = s.root
	for _, seg := range segments {
		m, ok := node.(map[string]any)
		if !ok {
			return nil, false
		}
		node, ok = m[seg]
		if !ok {
			return nil, false
		}
	}
	return node, true
}

// ensureParent materialises intermediate branch nodes and returns the map
// holding the final segment. Callers hold the write lock and must pass a
// non-empty path.
func (s *MemoryStore) ensureParent(segments []string) map[string]any {
	node := s.root
	for _, seg := range segments[:len(segments)-1] {
		child, ok := node[seg].(map[string]any)
		if !ok {
			child = make(map[string]any)
			node[seg] = child
		}
		node = child
	}
	return node
}

func (s *MemoryStore) resolveSentinels(value any) any {
	switch v := value.(type) {
	case serverTimestamp:
		return s.now().UTC().UnixMilli()
	case map[string]any:
		for key, val := range v {
			v[key] = s.resolveSentinels(val)
		}
		return v
	default:
		return value
	}
}

type memSubscription struct {
	store *MemoryStore
	id    int64
	path  string
	fn    func(Snapshot)

	mu      sync.Mutex
	pending *Snapshot
	wake    chan struct{}
	closed  chan struct{}
	once    sync.Once
}

func (sub *memSubscription) push(snap Snapshot) {
	sub.mu.Lock()
	sub.pending = &snap
	sub.mu.Unlock()

	select {
	case sub.wake <- struct{}{}:
	default:
	}
}

func (sub *memSubscription) deliver() {
	for {
		select {
		case <-sub.closed:
			return
		case <-sub.wake:
		}

		sub.mu.Lock()
		snap := sub.pending
		sub.pending = nil
		sub.mu.Unlock()

		if snap != nil {
			sub.fn(*snap)
		}
	}
}

// Release detaches the subscription. Safe to call more than once; in-flight
// writes issued before the release are unaffected.
func (sub *memSubscription) Release() {
	sub.once.Do(func() {
		sub.store.release(sub.id)
		close(sub.closed)
	})
}

func pathsOverlap(a, b string) bool {
	if a == "" || b == "" {
		return true
	}
	return strings.HasPrefix(a+"/", b+"/") || strings.HasPrefix(b+"/", a+"/")
}

func deepCopy(value any) any {
	switch v := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, val := range v {
			out[key] = deepCopy(val)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, val := range v {
			out[i] = deepCopy(val)
		}
		return out
	default:
		return value
	}
}
