package parser

// stack is a LIFO used for the lifter's operand, statement, block and branch
// target stacks. At(0) is the top.
type stack[T any] struct {
	items []T
}

func (s *stack[T]) Push(v T) { s.items = append(s.items, v) }

func (s *stack[T]) Pop() (T, bool) {
	var zero T
	n := len(s.items)
	if n == 0 {
		return zero, false
	}
	v := s.items[n-1]
	s.items[n-1] = zero
	s.items = s.items[:n-1]
	return v, true
}

func (s *stack[T]) Top() (T, bool) {
	return s.At(0)
}

// At returns the element i positions below the top.
func (s *stack[T]) At(i int) (T, bool) {
	var zero T
	n := len(s.items)
	if i < 0 || i >= n {
		return zero, false
	}
	return s.items[n-1-i], true
}

// SetTop replaces the top element. It is a no-op on an empty stack.
func (s *stack[T]) SetTop(v T) {
	if n := len(s.items); n > 0 {
		s.items[n-1] = v
	}
}

func (s *stack[T]) Len() int { return len(s.items) }

func (s *stack[T]) Reset() {
	clear(s.items)
	s.items = s.items[:0]
}
