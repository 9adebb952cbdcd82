package transaction

// Chunk splits content into consecutive pieces of at most size bytes. Empty
// content yields a single empty chunk.
func Chunk(content []byte, size int) [][]byte {
	if size <= 0 || len(content) <= size {
		return [][]byte{content}
	}
	out := make([][]byte, 0, (len(content)+size-1)/size)
	for start := 0; start < len(content); start += size {
		end := start + size
		if end > len(content) {
			end = len(content)
		}
		out = append(out, content[start:end])
	}
	return out
}

// Reassemble concatenates chunks in order.
func Reassemble(chunks [][]byte) []byte {
	n := 0
	for _, c := range chunks {
		n += len(c)
	}
	out := make([]byte, 0, n)
	for _, c := range chunks {
		out = append(out, c...)
	}
	return out
}
