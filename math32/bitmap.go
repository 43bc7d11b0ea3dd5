package math32

// Bitmap is a dense set of small unsigned integers.
type Bitmap []uint64

// NewBitmap returns a bitmap able to hold values in [0, n) without growing.
func NewBitmap(n int) Bitmap {
	return make(Bitmap, (n+63)>>6)
}

// Set sets the bit x in the bitmap and grows it if necessary.
func (dst *Bitmap) Set(x uint32) {
	blkAt := int(x >> 6)
	if blkAt >= len(*dst) {
		dst.grow(blkAt)
	}
	(*dst)[blkAt] |= 1 << (x % 64)
}

// Remove removes the bit x from the bitmap, but does not shrink it.
func (dst *Bitmap) Remove(x uint32) {
	if blkAt := int(x >> 6); blkAt < len(*dst) {
		(*dst)[blkAt] &^= 1 << (x % 64)
	}
}

// Contains checks whether a value is contained in the bitmap or not.
func (dst Bitmap) Contains(x uint32) bool {
	blkAt := int(x >> 6)
	if blkAt >= len(dst) {
		return false
	}
	return dst[blkAt]&(1<<(x%64)) != 0
}

// Count returns the number of set bits.
func (dst Bitmap) Count() int {
	n := 0
	for _, blk := range dst {
		for ; blk != 0; blk &= blk - 1 {
			n++
		}
	}
	return n
}

// Reset clears all bits and keeps the capacity.
func (dst Bitmap) Reset() {
	clear(dst)
}

func (dst *Bitmap) grow(blkAt int) {
	if cap(*dst) > blkAt {
		*dst = (*dst)[:blkAt+1]
		return
	}
	old := *dst
	*dst = make(Bitmap, blkAt+1, 2*(blkAt+1))
	copy(*dst, old)
}
