package stream

// MemoryStream is a ByteStream over an in-memory buffer
type MemoryStream struct {
	data   []byte
	offset uint32
	closed bool
}

// NewMemoryStream wraps data; data beyond MaxSize is not addressable
func NewMemoryStream(data []byte) *MemoryStream {
	if uint64(len(data)) > MaxSize {
		data = data[:MaxSize]
	}
	return &MemoryStream{data: data}
}

func (s *MemoryStream) Seek(offset int64, move Move) uint32 {
	s.offset = Resolve(s.offset, s.SizeInBytes(), offset, move)
	return s.offset
}

func (s *MemoryStream) ReadNext(p []byte) int {
	if s.closed {
		return 0
	}
	n := copy(p, s.data[s.offset:])
	s.offset += uint32(n)
	return n
}

func (s *MemoryStream) SizeInBytes() uint32 { return uint32(len(s.data)) }

// Close marks the stream closed; later reads return 0
func (s *MemoryStream) Close() error {
	s.closed = true
	return nil
}

// Closed reports whether Close has been called
func (s *MemoryStream) Closed() bool { return s.closed }
