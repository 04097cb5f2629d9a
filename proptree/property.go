package proptree

import (
	"encoding/json"
	"fmt"
	"sync"
)

// A Property is a typed value in a Tree.
type Property[T any] struct {
	setMu sync.Mutex
	mu    sync.RWMutex
	path  string

	desiredSubs []func(T) error
	coercer     func(T) (T, error)
	coercedSubs []func(T) error
	publisher   func() (T, error)

	value    T
	hasValue bool
}

// Path returns where the property lives in its tree.
func (p *Property[T]) Path() string {
	return p.path
}

// AddDesiredSubscriber registers fn to be called with every requested value
// before it is coerced.
func (p *Property[T]) AddDesiredSubscriber(fn func(T) error) *Property[T] {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.desiredSubs = append(p.desiredSubs, fn)

	return p
}

// SetCoercer installs fn to turn requested values into the values that are
// committed. Only one coercer is allowed.
func (p *Property[T]) SetCoercer(fn func(T) (T, error)) *Property[T] {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.coercer != nil {
		panic("proptree: coercer of " + p.path + " already set")
	}

	p.coercer = fn

	return p
}

// AddCoercedSubscriber registers fn to be called with every coerced value
// before it is committed. An error from fn aborts the set.
func (p *Property[T]) AddCoercedSubscriber(fn func(T) error) *Property[T] {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.coercedSubs = append(p.coercedSubs, fn)

	return p
}

// SetPublisher makes Get return the result of fn instead of the stored
// value.
func (p *Property[T]) SetPublisher(fn func() (T, error)) *Property[T] {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.publisher != nil {
		panic("proptree: publisher of " + p.path + " already set")
	}

	p.publisher = fn

	return p
}

// Set requests v. Sets on one property are serialized. The value is stored
// only if every subscriber accepts it.
func (p *Property[T]) Set(v T) error {
	p.setMu.Lock()
	defer p.setMu.Unlock()

	p.mu.RLock()
	desiredSubs := p.desiredSubs
	coercer := p.coercer
	coercedSubs := p.coercedSubs
	p.mu.RUnlock()

	for _, fn := range desiredSubs {
		if err := fn(v); err != nil {
			return fmt.Errorf("proptree: %s: %w", p.path, err)
		}
	}

	coerced := v
	if coercer != nil {
		var err error

		coerced, err = coercer(v)
		if err != nil {
			return fmt.Errorf("proptree: coercing %s: %w", p.path, err)
		}
	}

	for _, fn := range coercedSubs {
		if err := fn(coerced); err != nil {
			return fmt.Errorf("proptree: %s: %w", p.path, err)
		}
	}

	p.mu.Lock()
	p.value = coerced
	p.hasValue = true
	p.mu.Unlock()

	return nil
}

// Get returns the committed value, or the published one if the property
// has a publisher.
func (p *Property[T]) Get() (T, error) {
	p.mu.RLock()
	publisher := p.publisher
	value, hasValue := p.value, p.hasValue
	p.mu.RUnlock()

	if publisher != nil {
		return publisher()
	}

	if !hasValue {
		var zero T
		return zero, fmt.Errorf("%w: %s", ErrEmpty, p.path)
	}

	return value, nil
}

// Value returns the same as Get, typed as any.
func (p *Property[T]) Value() (any, error) {
	return p.Get()
}

// SetJSON decodes data into a T and sets it.
func (p *Property[T]) SetJSON(data []byte) error {
	var v T

	err := json.Unmarshal(data, &v)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrTypeMismatch, p.path, err)
	}

	return p.Set(v)
}
