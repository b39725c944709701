package bvh

import "github.com/achilleasa/accel/types"

// A split request describes a subtree that has not been built yet. Its node
// slot is assigned when the request is created.
type splitRequest struct {
	bounds         types.AABB
	centroidBounds types.AABB

	// Ref range [start, start+count).
	start int
	count int

	depth int
	index uint32
}

// A bounded LIFO of split requests.
type requestStack struct {
	items []splitRequest
}

func newRequestStack(capacity int) *requestStack {
	return &requestStack{
		items: make([]splitRequest, 0, capacity),
	}
}

// Push a request. Returns false if the stack is full.
func (s *requestStack) push(req splitRequest) bool {
	if len(s.items) == cap(s.items) {
		return false
	}
	s.items = append(s.items, req)
	return true
}

// Pop the most recently pushed request.
func (s *requestStack) pop() (splitRequest, bool) {
	if len(s.items) == 0 {
		return splitRequest{}, false
	}
	req := s.items[len(s.items)-1]
	s.items = s.items[:len(s.items)-1]
	return req, true
}

func (s *requestStack) len() int {
	return len(s.items)
}
