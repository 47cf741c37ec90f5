package audio

// DefaultChunkSamples is the number of samples per outbound audio chunk.
// 1024 PCM16 mono samples = 2048 bytes, 64 ms at 16 kHz.
const DefaultChunkSamples = 1024

// Reframer slices an arbitrary byte stream into fixed-size chunks for
// outbound streaming, carrying any remainder across Push calls. Backends emit
// fragments of irregular size; the reframer turns them into uniform
// low-latency protocol chunks.
//
// Total bytes emitted across all Push and Flush calls equal the total bytes
// pushed, minus at most one orphaned trailing byte that cannot form a whole
// sample. Reframer is not safe for concurrent use.
type Reframer struct {
	chunkBytes int
	rem        []byte
}

// NewReframer creates a Reframer producing chunks of chunkSamples PCM16
// samples each. chunkSamples <= 0 selects [DefaultChunkSamples].
func NewReframer(chunkSamples int) *Reframer {
	if chunkSamples <= 0 {
		chunkSamples = DefaultChunkSamples
	}
	return &Reframer{chunkBytes: chunkSamples * BytesPerSample}
}

// Push appends p to the carried remainder and returns all complete chunks now
// available, in order. Anything shorter than a full chunk is held for the
// next Push or the final Flush.
func (r *Reframer) Push(p []byte) [][]byte {
	r.rem = append(r.rem, p...)

	var chunks [][]byte
	for len(r.rem) >= r.chunkBytes {
		chunk := make([]byte, r.chunkBytes)
		copy(chunk, r.rem[:r.chunkBytes])
		r.rem = r.rem[r.chunkBytes:]
		chunks = append(chunks, chunk)
	}
	return chunks
}

// Flush emits the remaining whole samples as one final short chunk, or nil
// when fewer than one whole sample (2 bytes) is held. A single orphaned
// trailing byte is discarded. Flush resets the carry so the Reframer can be
// reused for the next stream.
func (r *Reframer) Flush() []byte {
	whole := len(r.rem) / BytesPerSample * BytesPerSample
	var chunk []byte
	if whole >= BytesPerSample {
		chunk = make([]byte, whole)
		copy(chunk, r.rem[:whole])
	}
	r.rem = r.rem[:0]
	return chunk
}

// Pending returns the number of carried bytes awaiting the next Push or
// Flush.
func (r *Reframer) Pending() int { return len(r.rem) }
