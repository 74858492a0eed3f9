package relay

// DefaultBufferSize caps a session's retained output at 20 000 bytes.
const DefaultBufferSize = 20000

// OutputBuffer is a bounded sliding window over a session's output stream.
// It always holds the most recent suffix of everything appended. Not
// synchronized; mutated only under the hub lock.
type OutputBuffer struct {
	data string
	max  int
}

func NewOutputBuffer(max int) *OutputBuffer {
	if max <= 0 {
		max = DefaultBufferSize
	}
	return &OutputBuffer{max: max}
}

// Append concatenates chunk, truncating from the front when over the cap.
func (b *OutputBuffer) Append(chunk string) {
	b.data += chunk
	if len(b.data) > b.max {
		b.data = b.data[len(b.data)-b.max:]
	}
}

func (b *OutputBuffer) String() string {
	return b.data
}

func (b *OutputBuffer) Len() int {
	return len(b.data)
}
