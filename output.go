package forthvm

import (
	"encoding/binary"
	"math"

	"github.com/gocolumnar/forthvm/internal/growable"
)

// OutputBuffer is the introspectable surface every typed output exposes to
// the engine and to callers, regardless of its element type.
type OutputBuffer interface {
	Len() int64
	Rewind(n int64) error
	Dtype() Dtype
}

// typedOutput is implemented by every concrete *output[T]; the engine uses
// it to feed raw bytes read from an input straight into the buffer without
// needing a type switch at every call site.
type typedOutput interface {
	OutputBuffer
	appendFromStack(v int64) error
	appendBytes(raw []byte, count int64, order binary.ByteOrder) error
}

type output[T any] struct {
	dtype Dtype
	buf   *growable.Buffer[T]
	conv  func(int64) T
	from  func([]byte, binary.ByteOrder) T
	size  int
}

func (o *output[T]) Dtype() Dtype        { return o.dtype }
func (o *output[T]) Len() int64          { return o.buf.Len() }
func (o *output[T]) Rewind(n int64) error { return o.buf.Rewind(n) }

func (o *output[T]) appendFromStack(v int64) error {
	return o.buf.Append(o.conv(v))
}

func (o *output[T]) appendBytes(raw []byte, count int64, order binary.ByteOrder) error {
	vs := make([]T, count)
	for i := int64(0); i < count; i++ {
		chunk := raw[i*int64(o.size) : (i+1)*int64(o.size)]
		vs[i] = o.from(chunk, order)
	}
	return o.buf.AppendN(vs)
}

// Snapshot materializes out's contents as a concrete Go slice for host
// inspection. The concrete element type matches out.Dtype().
func Snapshot(out OutputBuffer) any {
	switch o := out.(type) {
	case *output[bool]:
		return o.buf.Snapshot()
	case *output[int8]:
		return o.buf.Snapshot()
	case *output[int16]:
		return o.buf.Snapshot()
	case *output[int32]:
		return o.buf.Snapshot()
	case *output[int64]:
		return o.buf.Snapshot()
	case *output[uint8]:
		return o.buf.Snapshot()
	case *output[uint16]:
		return o.buf.Snapshot()
	case *output[uint32]:
		return o.buf.Snapshot()
	case *output[uint64]:
		return o.buf.Snapshot()
	case *output[float32]:
		return o.buf.Snapshot()
	case *output[float64]:
		return o.buf.Snapshot()
	default:
		return nil
	}
}

func newOutput(dtype Dtype, initialSize int64, resizeFactor float64) typedOutput {
	switch dtype {
	case DtypeBool:
		return &output[bool]{dtype: dtype, size: 1,
			buf:  growable.New[bool](initialSize, resizeFactor, 0),
			conv: func(v int64) bool { return v != 0 },
			from: func(b []byte, _ binary.ByteOrder) bool { return b[0] != 0 },
		}
	case DtypeInt8:
		return &output[int8]{dtype: dtype, size: 1,
			buf:  growable.New[int8](initialSize, resizeFactor, 0),
			conv: func(v int64) int8 { return int8(v) },
			from: func(b []byte, _ binary.ByteOrder) int8 { return int8(b[0]) },
		}
	case DtypeInt16:
		return &output[int16]{dtype: dtype, size: 2,
			buf:  growable.New[int16](initialSize, resizeFactor, 0),
			conv: func(v int64) int16 { return int16(v) },
			from: func(b []byte, order binary.ByteOrder) int16 { return int16(order.Uint16(b)) },
		}
	case DtypeInt32:
		return &output[int32]{dtype: dtype, size: 4,
			buf:  growable.New[int32](initialSize, resizeFactor, 0),
			conv: func(v int64) int32 { return int32(v) },
			from: func(b []byte, order binary.ByteOrder) int32 { return int32(order.Uint32(b)) },
		}
	case DtypeInt64:
		return &output[int64]{dtype: dtype, size: 8,
			buf:  growable.New[int64](initialSize, resizeFactor, 0),
			conv: func(v int64) int64 { return v },
			from: func(b []byte, order binary.ByteOrder) int64 { return int64(order.Uint64(b)) },
		}
	case DtypeUint8:
		return &output[uint8]{dtype: dtype, size: 1,
			buf:  growable.New[uint8](initialSize, resizeFactor, 0),
			conv: func(v int64) uint8 { return uint8(v) },
			from: func(b []byte, _ binary.ByteOrder) uint8 { return b[0] },
		}
	case DtypeUint16:
		return &output[uint16]{dtype: dtype, size: 2,
			buf:  growable.New[uint16](initialSize, resizeFactor, 0),
			conv: func(v int64) uint16 { return uint16(v) },
			from: func(b []byte, order binary.ByteOrder) uint16 { return order.Uint16(b) },
		}
	case DtypeUint32:
		return &output[uint32]{dtype: dtype, size: 4,
			buf:  growable.New[uint32](initialSize, resizeFactor, 0),
			conv: func(v int64) uint32 { return uint32(v) },
			from: func(b []byte, order binary.ByteOrder) uint32 { return order.Uint32(b) },
		}
	case DtypeUint64:
		return &output[uint64]{dtype: dtype, size: 8,
			buf:  growable.New[uint64](initialSize, resizeFactor, 0),
			conv: func(v int64) uint64 { return uint64(v) },
			from: func(b []byte, order binary.ByteOrder) uint64 { return order.Uint64(b) },
		}
	case DtypeFloat32:
		return &output[float32]{dtype: dtype, size: 4,
			buf:  growable.New[float32](initialSize, resizeFactor, 0),
			conv: func(v int64) float32 { return float32(v) },
			from: func(b []byte, order binary.ByteOrder) float32 {
				return math.Float32frombits(order.Uint32(b))
			},
		}
	case DtypeFloat64:
		return &output[float64]{dtype: dtype, size: 8,
			buf:  growable.New[float64](initialSize, resizeFactor, 0),
			conv: func(v int64) float64 { return float64(v) },
			from: func(b []byte, order binary.ByteOrder) float64 {
				return math.Float64frombits(order.Uint64(b))
			},
		}
	default:
		panic("forthvm: unknown output dtype")
	}
}
