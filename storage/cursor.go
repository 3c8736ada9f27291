package storage

// Cursor is a forward-only stream of values produced by a backend.
//
//	for c.Next() {
//	    v := c.Value()
//	}
//	if err := c.Err(); err != nil { ... }
type Cursor[T any] interface {
	// Next advances to the next value. It returns false when the stream is
	// exhausted or an error occurred.
	Next() bool
	// Value returns the current value. Only valid after Next returned true.
	Value() T
	// Err returns the first error encountered.
	Err() error
	// Close releases the cursor. It is safe to call more than once.
	Close() error
}

// Resetter is implemented by cursors that can rewind to the first value.
type Resetter interface {
	Reset() error
}

// SliceCursor iterates over an immutable snapshot.
type SliceCursor[T any] struct {
	items []T
	pos   int
}

// NewSliceCursor returns a cursor over items. The slice must not be modified
// while the cursor is in use.
func NewSliceCursor[T any](items []T) *SliceCursor[T] {
	return &SliceCursor[T]{items: items, pos: -1}
}

// Next implements Cursor.
func (c *SliceCursor[T]) Next() bool {
	if c.pos+1 >= len(c.items) {
		c.pos = len(c.items)
		return false
	}
	c.pos++
	return true
}

// Value implements Cursor.
func (c *SliceCursor[T]) Value() T {
	if c.pos < 0 || c.pos >= len(c.items) {
		var zero T
		return zero
	}
	return c.items[c.pos]
}

// Err implements Cursor.
func (c *SliceCursor[T]) Err() error { return nil }

// Close implements Cursor.
func (c *SliceCursor[T]) Close() error { return nil }

// Reset implements Resetter.
func (c *SliceCursor[T]) Reset() error {
	c.pos = -1
	return nil
}

// Len returns the number of values in the snapshot.
func (c *SliceCursor[T]) Len() int { return len(c.items) }

// Collect drains c into a slice and closes it.
func Collect[T any](c Cursor[T]) ([]T, error) {
	defer func() { _ = c.Close() }()

	var out []T
	for c.Next() {
		out = append(out, c.Value())
	}
	return out, c.Err()
}
