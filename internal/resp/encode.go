package resp

import (
	"strconv"
	"sync"
)

// bufPool recycles the []byte scratch buffers Encode builds replies into,
// the same pool-of-slices idiom the teacher's parser uses for bulk payloads,
// applied here to the encode side instead.
var bufPool = sync.Pool{New: func() any { b := make([]byte, 0, 256); return &b }}

// GetBuffer and PutBuffer let a connection's write loop reuse one scratch
// buffer across many Encode calls instead of allocating per reply.
func GetBuffer() []byte {
	p := bufPool.Get().(*[]byte)
	return (*p)[:0]
}

func PutBuffer(b []byte) {
	if cap(b) > 1<<20 {
		return
	}
	b = b[:0]
	bufPool.Put(&b)
}

// Encode appends the wire representation of v to dst and returns the
// extended slice. RDBFile is the sole asymmetry in the codec: it encodes as
// a bulk string without the trailing CRLF, to match the replication
// handshake framing (spec.md §4.1).
func Encode(dst []byte, v Value) []byte {
	switch v.Type {
	case Null:
		return append(dst, "_\r\n"...)
	case NullString:
		return append(dst, "$-1\r\n"...)
	case NullArray:
		return append(dst, "*-1\r\n"...)
	case Integer:
		dst = append(dst, ':')
		dst = strconv.AppendInt(dst, v.Int, 10)
		return append(dst, '\r', '\n')
	case Double:
		dst = append(dst, ',')
		dst = strconv.AppendFloat(dst, v.Dbl, 'g', -1, 64)
		return append(dst, '\r', '\n')
	case Boolean:
		if v.Bool {
			return append(dst, "#t\r\n"...)
		}
		return append(dst, "#f\r\n"...)
	case SimpleString:
		dst = append(dst, '+')
		dst = append(dst, v.Str...)
		return append(dst, '\r', '\n')
	case SimpleError:
		dst = append(dst, '-')
		dst = append(dst, v.Str...)
		return append(dst, '\r', '\n')
	case BulkString, BufBulk:
		dst = append(dst, '$')
		dst = strconv.AppendInt(dst, int64(len(v.Bytes)), 10)
		dst = append(dst, '\r', '\n')
		dst = append(dst, v.Bytes...)
		return append(dst, '\r', '\n')
	case RDBFile:
		dst = append(dst, '$')
		dst = strconv.AppendInt(dst, int64(len(v.Bytes)), 10)
		dst = append(dst, '\r', '\n')
		return append(dst, v.Bytes...)
	case Array:
		dst = append(dst, '*')
		dst = strconv.AppendInt(dst, int64(len(v.Array)), 10)
		dst = append(dst, '\r', '\n')
		for _, el := range v.Array {
			dst = Encode(dst, el)
		}
		return dst
	default:
		return append(dst, "-ERR unknown value type\r\n"...)
	}
}

// EncodeBytes is a convenience wrapper for call sites that don't hold a
// reusable scratch buffer (tests, one-off encodes).
func EncodeBytes(v Value) []byte {
	return Encode(nil, v)
}

// EncodeCommand builds a RESP array of bulk strings, the shape used to send
// outbound commands (PING, REPLCONF, PSYNC) during the replica handshake.
func EncodeCommand(parts ...string) []byte {
	items := make([]Value, len(parts))
	for i, p := range parts {
		items[i] = NewBulk(p)
	}
	return EncodeBytes(NewArray(items...))
}
