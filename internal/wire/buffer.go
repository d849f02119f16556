package wire

import (
	"encoding/binary"
	"math"
)

// DefaultBufferCap is the initial capacity of a connection buffer.
// Large enough to absorb a burst of pipelined requests without growing.
const DefaultBufferCap = 64 * 1024

// Buffer is an append-extendable, front-consumable byte queue. Data lives
// in the window [start, end) of the backing slice; Append extends the end,
// Consume advances the start.
type Buffer struct {
	buf   []byte
	start int
	end   int
}

// NewBuffer returns a Buffer with the default initial capacity.
func NewBuffer() *Buffer {
	return NewBufferCap(DefaultBufferCap)
}

// NewBufferCap returns a Buffer with the given initial capacity.
func NewBufferCap(n int) *Buffer {
	if n <= 0 {
		n = DefaultBufferCap
	}
	return &Buffer{buf: make([]byte, n)}
}

// Append copies p to the end of the buffer. If the tail space does not
// suffice but the total free space does, the data window is compacted to
// the front; otherwise the backing slice is doubled until p fits.
func (b *Buffer) Append(p []byte) {
	n := len(p)
	if n == 0 {
		return
	}

	if n > len(b.buf)-b.end {
		size := b.end - b.start
		if n <= len(b.buf)-size {
			// Enough total free space, compact to the front.
			copy(b.buf, b.buf[b.start:b.end])
		} else {
			grown := len(b.buf) * 2
			for grown-size < n {
				grown *= 2
			}
			next := make([]byte, grown)
			copy(next, b.buf[b.start:b.end])
			b.buf = next
		}
		b.start = 0
		b.end = size
	}

	copy(b.buf[b.end:], p)
	b.end += n
}

// AppendUint8 appends a single byte.
func (b *Buffer) AppendUint8(v uint8) {
	b.Append([]byte{v})
}

// AppendUint32 appends v in little-endian order.
func (b *Buffer) AppendUint32(v uint32) {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	b.Append(tmp[:])
}

// AppendInt64 appends v in little-endian order.
func (b *Buffer) AppendInt64(v int64) {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], uint64(v))
	b.Append(tmp[:])
}

// AppendFloat64 appends the IEEE-754 bits of v in little-endian order.
func (b *Buffer) AppendFloat64(v float64) {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], math.Float64bits(v))
	b.Append(tmp[:])
}

// Consume discards up to n bytes from the front of the buffer. Consuming
// more than is present discards everything.
func (b *Buffer) Consume(n int) {
	if n > b.Len() {
		n = b.Len()
	}
	b.start += n
	if b.start == b.end {
		b.start = 0
		b.end = 0
	}
}

// Data returns the readable window. The slice aliases the buffer's backing
// store and is invalidated by the next Append.
func (b *Buffer) Data() []byte {
	return b.buf[b.start:b.end]
}

// Len returns the number of readable bytes.
func (b *Buffer) Len() int {
	return b.end - b.start
}

// Cap returns the capacity of the backing slice.
func (b *Buffer) Cap() int {
	return len(b.buf)
}
