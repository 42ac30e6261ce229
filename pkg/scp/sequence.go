package scp

// DefaultSequenceMask bounds sequence numbers to 16 bits.
const DefaultSequenceMask = 0xffff

// SequenceAllocator hands out sequence numbers that increase monotonically
// and wrap to zero after the mask. It is not safe for concurrent use; the
// owning Connection is its only caller.
type SequenceAllocator struct {
	next uint16
	mask uint16
}

// NewSequenceAllocator creates an allocator starting at zero with the
// default 16-bit wrap.
func NewSequenceAllocator() *SequenceAllocator {
	return NewSequenceAllocatorWithMask(DefaultSequenceMask)
}

// NewSequenceAllocatorWithMask creates an allocator that wraps after mask.
// mask should be of the form 2^n-1.
func NewSequenceAllocatorWithMask(mask uint16) *SequenceAllocator {
	return &SequenceAllocator{mask: mask}
}

// Next returns the next sequence number.
func (a *SequenceAllocator) Next() uint16 {
	v := a.next
	a.next = (a.next + 1) & a.mask
	return v
}

// Current returns the value Next will return, without consuming it.
func (a *SequenceAllocator) Current() uint16 {
	return a.next
}

// Span returns the number of distinct values produced before wrapping.
func (a *SequenceAllocator) Span() int {
	return int(a.mask) + 1
}

// NextFree returns the next sequence number not present in inUse.
// inUse must hold fewer than Span() entries.
func (a *SequenceAllocator) NextFree(inUse func(uint16) bool) uint16 {
	for {
		if v := a.Next(); !inUse(v) {
			return v
		}
	}
}
