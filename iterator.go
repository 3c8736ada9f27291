package tmrm

import (
	"iter"

	"github.com/hupe1980/tmrm/storage"
)

// source adapts a typed storage cursor to Objects.
type source interface {
	next() (Object, bool)
	err() error
	close() error
	reset() error
}

type cursorSource[T any] struct {
	c    storage.Cursor[T]
	conv func(T) Object
}

func (s *cursorSource[T]) next() (Object, bool) {
	if !s.c.Next() {
		return Object{}, false
	}
	return s.conv(s.c.Value()), true
}

func (s *cursorSource[T]) err() error   { return s.c.Err() }
func (s *cursorSource[T]) close() error { return s.c.Close() }

func (s *cursorSource[T]) reset() error {
	r, ok := s.c.(storage.Resetter)
	if !ok {
		return ErrResetUnsupported
	}
	return r.Reset()
}

// Iterator is a finite, forward-only sequence of Objects.
//
// An Iterator is positioned on its first element when created:
//
//	for !it.End() {
//		obj, _ := it.Object()
//		// ...
//		_ = it.Next()
//	}
//
// An Iterator is not safe for concurrent use.
type Iterator struct {
	src     source
	cur     Object
	done    bool
	err     error
	counted int
}

func newIterator[T any](c storage.Cursor[T], conv func(T) Object) *Iterator {
	it := &Iterator{src: &cursorSource[T]{c: c, conv: conv}}
	it.advance()
	return it
}

func (it *Iterator) advance() {
	if it.done {
		return
	}
	obj, ok := it.src.next()
	if !ok {
		it.done = true
		it.cur = Object{}
		it.err = it.src.err()
		return
	}
	it.cur = obj
	it.counted++
}

// End reports whether the iterator is exhausted. It does not consume.
func (it *Iterator) End() bool { return it.done }

// Next advances to the following element. Calling Next on an exhausted
// iterator returns ErrIteratorExhausted.
func (it *Iterator) Next() error {
	if it.done {
		return ErrIteratorExhausted
	}
	it.advance()
	return it.err
}

// Object returns the current element without advancing.
func (it *Iterator) Object() (Object, error) {
	if it.done {
		if it.err != nil {
			return Object{}, it.err
		}
		return Object{}, ErrIteratorExhausted
	}
	return it.cur, nil
}

// Err returns the error that ended iteration, if any.
func (it *Iterator) Err() error { return it.err }

// Close releases the underlying cursor.
func (it *Iterator) Close() error {
	it.done = true
	it.cur = Object{}
	return it.src.close()
}

// Reset rewinds to the first element. It fails with ErrResetUnsupported
// when the backend cursor cannot rewind.
func (it *Iterator) Reset() error {
	if err := it.src.reset(); err != nil {
		return err
	}
	it.done = false
	it.err = nil
	it.counted = 0
	it.advance()
	return nil
}

// All yields the remaining elements and closes the iterator when done.
func (it *Iterator) All() iter.Seq2[Object, error] {
	return func(yield func(Object, error) bool) {
		defer func() { _ = it.Close() }()

		for !it.done {
			if !yield(it.cur, nil) {
				return
			}
			it.advance()
		}
		if it.err != nil {
			yield(Object{}, it.err)
		}
	}
}

// Count drains the iterator and returns the number of elements it held,
// including those already passed.
func (it *Iterator) Count() (int, error) {
	for !it.done {
		it.advance()
	}
	n := it.counted
	if err := it.Close(); err != nil {
		return n, err
	}
	return n, it.err
}
