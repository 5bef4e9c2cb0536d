package patterns

import "sync"

// Subject represents an observable subject
type Subject[E any] interface {
	// Subscribe registers an observer and returns a function removing it again
	Subscribe(observer func(E)) (unsubscribe func())
	// Notify notifies all observers
	Notify(event E)
}

// NewSubject returns a Subject calling its observers synchronously in
// subscription order
func NewSubject[E any]() Subject[E] {
	return &subject[E]{}
}

type observer[E any] struct {
	id uint64
	fn func(E)
}

type subject[E any] struct {
	mu        sync.RWMutex
	nextID    uint64
	observers []observer[E]
}

func (s *subject[E]) Subscribe(fn func(E)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := s.nextID
	s.observers = append(s.observers, observer[E]{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() { s.unsubscribe(id) })
	}
}

func (s *subject[E]) unsubscribe(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, o := range s.observers {
		if o.id == id {
			s.observers = append(s.observers[:i:i], s.observers[i+1:]...)
			return
		}
	}
}

func (s *subject[E]) Notify(event E) {
	s.mu.RLock()
	observers := append([]observer[E](nil), s.observers...)
	s.mu.RUnlock()
	for _, o := range observers {
		o.fn(event)
	}
}
