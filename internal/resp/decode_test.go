package resp

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeSimpleTypes(t *testing.T) {
	buf := append(EncodeBytes(NewSimpleString("OK")), EncodeBytes(NewSimpleError("ERR bad"))...)
	buf = append(buf, EncodeBytes(NewInteger(123))...)

	v, n, err := Decode(buf)
	require.NoError(t, err)
	require.Equal(t, SimpleString, v.Type)
	require.Equal(t, "OK", v.Str)
	buf = buf[n:]

	v, n, err = Decode(buf)
	require.NoError(t, err)
	require.Equal(t, SimpleError, v.Type)
	require.Equal(t, "ERR bad", v.Str)
	buf = buf[n:]

	v, _, err = Decode(buf)
	require.NoError(t, err)
	require.Equal(t, Integer, v.Type)
	require.EqualValues(t, 123, v.Int)
}

func TestDecodeBulkString(t *testing.T) {
	buf := EncodeBytes(NewBufBulk([]byte("hello")))
	v, n, err := Decode(buf)
	require.NoError(t, err)
	require.Equal(t, BufBulk, v.Type)
	require.Equal(t, "hello", string(v.Bytes))
	require.Equal(t, len(buf), n)
}

func TestDecodeBinarySafeBulk(t *testing.T) {
	payload := []byte{0, 1, 2, '\r', '\n', 255}
	buf := EncodeBytes(NewBufBulk(payload))
	v, _, err := Decode(buf)
	require.NoError(t, err)
	require.Equal(t, payload, v.Bytes)
}

func TestDecodeNullBulk(t *testing.T) {
	v, n, err := Decode([]byte("$-1\r\n"))
	require.NoError(t, err)
	require.Equal(t, NullString, v.Type)
	require.Equal(t, 5, n)
}

func TestDecodeNegativeBulkLenMalformed(t *testing.T) {
	_, _, err := Decode([]byte("$-2\r\n"))
	require.ErrorIs(t, err, ErrMalformed)
}

func TestDecodeArray(t *testing.T) {
	buf := EncodeBytes(NewArray(NewSimpleString("OK"), NewInteger(42), NewBulk("hi")))
	v, n, err := Decode(buf)
	require.NoError(t, err)
	require.Equal(t, Array, v.Type)
	require.Len(t, v.Array, 3)
	require.Equal(t, len(buf), n)
	require.Equal(t, "OK", v.Array[0].Str)
	require.EqualValues(t, 42, v.Array[1].Int)
	require.Equal(t, "hi", string(v.Array[2].Bytes))
}

func TestDecodeNullArray(t *testing.T) {
	v, n, err := Decode([]byte("*-1\r\n"))
	require.NoError(t, err)
	require.Equal(t, NullArray, v.Type)
	require.Equal(t, 5, n)
}

func TestDecodeNestedArray(t *testing.T) {
	inner := NewArray(NewInteger(1), NewInteger(2))
	outer := NewArray(inner, NewBulk("x"))
	buf := EncodeBytes(outer)
	v, _, err := Decode(buf)
	require.NoError(t, err)
	require.Equal(t, Array, v.Array[0].Type)
	require.Len(t, v.Array[0].Array, 2)
}

func TestDecodeEmptyBufferIsUnexpectedEOF(t *testing.T) {
	_, _, err := Decode(nil)
	require.ErrorIs(t, err, ErrUnexpectedEOF)
}

func TestDecodeNeedMoreOnEveryPrefix(t *testing.T) {
	full := EncodeBytes(NewArray(NewBulk("SET"), NewBulk("k"), NewBulk("v")))
	for k := 1; k < len(full); k++ {
		_, _, err := Decode(full[:k])
		require.ErrorIsf(t, err, ErrNeedMore, "prefix length %d should need more, buf=%q", k, full[:k])
	}
}

func TestDecodeUnknownPrefixMalformed(t *testing.T) {
	_, _, err := Decode([]byte("@nope\r\n"))
	require.ErrorIs(t, err, ErrMalformed)
}

func TestDecodeAllPipeline(t *testing.T) {
	a := EncodeBytes(NewArray(NewBulk("PING")))
	b := EncodeBytes(NewArray(NewBulk("PING")))
	partial := EncodeBytes(NewArray(NewBulk("ECHO"), NewBulk("hi")))
	partial = partial[:len(partial)-3]

	buf := append(append(append([]byte{}, a...), b...), partial...)
	values, consumed, err := DecodeAll(buf)
	require.NoError(t, err)
	require.Len(t, values, 2)
	require.Equal(t, len(a)+len(b), consumed)
}

func TestRoundTrip(t *testing.T) {
	values := []Value{
		NewSimpleString("PONG"),
		NewSimpleError("ERR oops"),
		NewInteger(-7),
		NewDouble(3.25),
		NewBoolean(true),
		NewBoolean(false),
		Value{Type: Null},
		NullStringValue(),
		NullArrayValue(),
		NewBufBulk([]byte("binary\x00safe")),
		NewArray(NewInteger(1), NewArray(NewBulk("x"))),
	}
	for _, v := range values {
		buf := EncodeBytes(v)
		decoded, n, err := Decode(buf)
		require.NoError(t, err)
		require.Equal(t, len(buf), n)
		require.Equal(t, v.Type, decoded.Type)
	}
}

func TestRDBFileEncodingHasNoTrailingCRLF(t *testing.T) {
	payload := []byte("REDIS0011fakepayload")
	buf := EncodeBytes(NewRDBFile(payload))
	require.Equal(t, "$20\r\n"+string(payload), string(buf))
}
