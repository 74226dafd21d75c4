package ptypes

// BufferType is a by-reference value recording a byte layout copied
// C-contiguously from a foreign producer's buffer: {len, itemsize, ndim,
// format, shape[], strides[], bytes[]}. It carries no conversion
// logic; it interoperates with foreign numeric buffers and exposes a
// read-write view back to consumers on read.
type BufferType struct{ name string }

func (t *BufferType) Name() string    { return t.name }
func (*BufferType) ByReference() bool { return true }
func (*BufferType) AssignSize() int   { return 8 }

func (t *BufferType) descriptor() *typeDescriptor {
	return &typeDescriptor{Kind: descBuffer, ClassName: t.name}
}

// BufferLayout is the foreign-buffer description a producer supplies when
// constructing a Buffer. Shape and Strides are measured in elements and
// bytes respectively, mirroring a C-contiguous buffer-protocol export.
type BufferLayout struct {
	ItemSize int
	Format   string
	Shape    []int64
	Strides  []int64
	Bytes    []byte
}

// headerFields: len:8 itemsize:8 ndim:8 formatOff:8(ByteString) shapeOff:8
// stridesOff:8 bytesOff:8(ByteString). Shape/strides are persisted as
// packed int64 arrays via two extra allocations.
const bufferHeaderSize = 56

type Buffer struct{ *Proxy }

func (st *Storage) wrapBuffer(t *BufferType, off Offset) Buffer {
	return Buffer{st.newProxy(t, off)}
}

// NewBuffer copies layout C-contiguously into the mapping. Non-C-contiguous
// producer buffers must be linearized by the caller before this call; a
// request to reconstruct a non-C-contiguous *view* (Buffer.View) fails
// Value.
func (st *Storage) NewBuffer(t *BufferType, layout BufferLayout) (Buffer, error) {
	if err := st.assertOpen("NewBuffer"); err != nil {
		return Buffer{}, err
	}
	formatStr, err := st.NewByteString([]byte(layout.Format))
	if err != nil {
		return Buffer{}, err
	}
	defer formatStr.Close()
	shapeOff, err := writeInt64Array(st, layout.Shape)
	if err != nil {
		return Buffer{}, err
	}
	stridesOff, err := writeInt64Array(st, layout.Strides)
	if err != nil {
		return Buffer{}, err
	}
	data, err := st.NewByteString(layout.Bytes)
	if err != nil {
		return Buffer{}, err
	}
	defer data.Close()

	off, err := st.file.allocate(bufferHeaderSize)
	if err != nil {
		return Buffer{}, err
	}
	buf := make([]byte, bufferHeaderSize)
	putUint64(buf[0:], uint64(len(layout.Bytes)))
	putUint64(buf[8:], uint64(layout.ItemSize))
	putUint64(buf[16:], uint64(len(layout.Shape)))
	putOffset(buf[24:], formatStr.off)
	putOffset(buf[32:], shapeOff)
	putOffset(buf[40:], stridesOff)
	putOffset(buf[48:], data.off)
	if err := st.writeThroughLog(off, buf); err != nil {
		return Buffer{}, err
	}
	return st.wrapBuffer(t, off), nil
}

func writeInt64Array(st *Storage, vals []int64) (Offset, error) {
	off, err := st.file.allocate(len(vals) * 8)
	if err != nil {
		return 0, err
	}
	buf := make([]byte, len(vals)*8)
	for i, v := range vals {
		putInt64(buf[i*8:], v)
	}
	if len(buf) == 0 {
		return off, nil
	}
	return off, st.writeThroughLog(off, buf)
}

func (v Buffer) Layout() (BufferLayout, error) {
	if err := v.assertLive("Buffer.Layout"); err != nil {
		return BufferLayout{}, err
	}
	hdr := v.st.file.bytes(v.off, bufferHeaderSize)
	n := int(getUint64(hdr[0:]))
	itemSize := int(getUint64(hdr[8:]))
	ndim := int(getUint64(hdr[16:]))
	formatOff := getOffset(hdr[24:])
	shapeOff := getOffset(hdr[32:])
	stridesOff := getOffset(hdr[40:])
	dataOff := getOffset(hdr[48:])

	shape := make([]int64, ndim)
	strides := make([]int64, ndim)
	for i := 0; i < ndim; i++ {
		shape[i] = getInt64(v.st.file.bytes(shapeOff+Offset(i*8), 8))
		strides[i] = getInt64(v.st.file.bytes(stridesOff+Offset(i*8), 8))
	}
	return BufferLayout{
		ItemSize: itemSize,
		Format:   string(readByteStringBytes(v.st, formatOff)),
		Shape:    shape,
		Strides:  strides,
		Bytes:    v.st.file.bytes(dataOff+4, n),
	}, nil
}

// View returns the raw bytes backing this buffer, a direct read-write
// window into the mapping; the caller is responsible for interpreting
// itemsize/format/shape/strides. Requesting a view when strides don't
// describe a C-contiguous layout fails Value.
func (v Buffer) View() ([]byte, error) {
	layout, err := v.Layout()
	if err != nil {
		return nil, err
	}
	if !isCContiguous(layout) {
		return nil, newErr(KindValueErr, "Buffer.View", nil)
	}
	return layout.Bytes, nil
}

func isCContiguous(l BufferLayout) bool {
	if len(l.Shape) == 0 {
		return true
	}
	expected := int64(l.ItemSize)
	for i := len(l.Shape) - 1; i >= 0; i-- {
		if l.Strides[i] != expected {
			return false
		}
		expected *= l.Shape[i]
	}
	return true
}
