package cmd

import (
	"math"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"gridctl/internal/resp"
	"gridctl/internal/store"
)

// fakeKeyspace is a minimal in-memory stand-in for *store.Keyspace, so
// these tests exercise command parsing and transaction wiring without
// going through the real keyspace; only store.ErrNotInteger is reused.
type fakeKeyspace struct {
	values map[string][]byte
	txID   string
	txSet  bool
}

func newFakeKeyspace() *fakeKeyspace { return &fakeKeyspace{values: map[string][]byte{}} }

func (k *fakeKeyspace) Get(key string) ([]byte, bool) { v, ok := k.values[key]; return v, ok }
func (k *fakeKeyspace) Set(key string, value []byte)  { k.values[key] = value }
func (k *fakeKeyspace) SetWithExpiry(key string, value []byte, _ time.Duration) {
	k.values[key] = value
}
func (k *fakeKeyspace) Incr(key string) (int64, error) {
	var n int64
	if existing, ok := k.values[key]; ok {
		parsed, err := strconv.ParseInt(string(existing), 10, 32)
		if err != nil {
			return 0, store.ErrNotInteger
		}
		n = parsed
	}
	n++
	if n > math.MaxInt32 || n < math.MinInt32 {
		return 0, store.ErrNotInteger
	}
	k.values[key] = []byte(strconv.FormatInt(n, 10))
	return n, nil
}
func (k *fakeKeyspace) SetTransaction(id string) { k.txID, k.txSet = id, true }
func (k *fakeKeyspace) ClearTransactionIfCurrent(id string) {
	if k.txSet && k.txID == id {
		k.txSet = false
	}
}

type fakeJournal struct{ appended [][]byte }

func (j *fakeJournal) Append(raw []byte) string {
	j.appended = append(j.appended, raw)
	return strconv.Itoa(len(j.appended))
}

type fakeConn struct {
	inTx     bool
	queue    []Command
	port     string
	hasPort  bool
	offset   int64
	armed    bool
}

func (c *fakeConn) InTransaction() bool   { return c.inTx }
func (c *fakeConn) EnterTransaction()     { c.inTx = true; c.queue = nil }
func (c *fakeConn) Queue(cmd Command)     { c.queue = append(c.queue, cmd) }
func (c *fakeConn) TakeQueue() []Command  { q := c.queue; c.queue = nil; return q }
func (c *fakeConn) ExitTransaction()      { c.inTx = false; c.queue = nil }
func (c *fakeConn) SetReplicaListeningPort(port string) { c.port, c.hasPort = port, true }
func (c *fakeConn) ReplicaPort() (string, bool)         { return c.port, c.hasPort }
func (c *fakeConn) BytesOffset() int64                  { return c.offset }
func (c *fakeConn) ArmPSYNC()                           { c.armed = true }

type fakeInfo struct{}

func (fakeInfo) Role() string      { return "master" }
func (fakeInfo) ReplID() string    { return "replid123" }
func (fakeInfo) Offset() int64     { return 0 }
func (fakeInfo) AddOffset(n int64) {}

func newCtx(conn ConnState) (*Context, *fakeKeyspace, *fakeJournal) {
	ks := newFakeKeyspace()
	j := &fakeJournal{}
	return &Context{Store: ks, Journal: j, Conn: conn, Info: fakeInfo{}}, ks, j
}

func arr(parts ...string) resp.Value {
	items := make([]resp.Value, len(parts))
	for i, p := range parts {
		items[i] = resp.NewBulk(p)
	}
	return resp.NewArray(items...)
}

func TestPingInsideArrayAndCaseInsensitive(t *testing.T) {
	ctx, _, _ := newCtx(&fakeConn{})
	recognizers := DefaultRecognizers()

	v := Dispatch(ctx, recognizers, arr("PiNg"))
	require.Equal(t, resp.SimpleString, v.Type)
	require.Equal(t, "PONG", v.Str)
}

func TestEchoWithAndWithoutMessage(t *testing.T) {
	ctx, _, _ := newCtx(&fakeConn{})
	recognizers := DefaultRecognizers()

	v := Dispatch(ctx, recognizers, arr("ECHO", "hello"))
	require.Equal(t, "hello", string(v.Bytes))

	v = Dispatch(ctx, recognizers, arr("ECHO"))
	require.Equal(t, resp.NullString, v.Type)
}

func TestSetGetRoundTrip(t *testing.T) {
	conn := &fakeConn{}
	ctx, _, journal := newCtx(conn)
	recognizers := DefaultRecognizers()

	v := Dispatch(ctx, recognizers, arr("SET", "k", "v"))
	require.Equal(t, "OK", v.Str)
	require.Len(t, journal.appended, 1)

	v = Dispatch(ctx, recognizers, arr("GET", "k"))
	require.Equal(t, "v", string(v.Bytes))
}

func TestGetMissingReturnsNullString(t *testing.T) {
	ctx, _, _ := newCtx(&fakeConn{})
	v := Dispatch(ctx, DefaultRecognizers(), arr("GET", "nope"))
	require.Equal(t, resp.NullString, v.Type)
}

func TestSetWithPX(t *testing.T) {
	ctx, ks, _ := newCtx(&fakeConn{})
	v := Dispatch(ctx, DefaultRecognizers(), arr("SET", "k", "v", "PX", "100"))
	require.Equal(t, "OK", v.Str)
	got, ok := ks.Get("k")
	require.True(t, ok)
	require.Equal(t, "v", string(got))
}

func TestIncrFromMissingKey(t *testing.T) {
	ctx, _, _ := newCtx(&fakeConn{})
	v := Dispatch(ctx, DefaultRecognizers(), arr("INCR", "counter"))
	require.Equal(t, resp.Integer, v.Type)
	require.EqualValues(t, 1, v.Int)
}

func TestIncrNonIntegerValueErrors(t *testing.T) {
	ctx, ks, _ := newCtx(&fakeConn{})
	ks.Set("counter", []byte("abc"))
	v := Dispatch(ctx, DefaultRecognizers(), arr("INCR", "counter"))
	require.Equal(t, resp.SimpleError, v.Type)
	require.Equal(t, notIntegerErr, v.Str)
}

func TestIncrOverflowErrors(t *testing.T) {
	ctx, ks, _ := newCtx(&fakeConn{})
	ks.Set("counter", []byte("2147483647"))
	v := Dispatch(ctx, DefaultRecognizers(), arr("INCR", "counter"))
	require.Equal(t, resp.SimpleError, v.Type)
	require.Equal(t, notIntegerErr, v.Str)
}

func TestUnknownCommandErrors(t *testing.T) {
	ctx, _, _ := newCtx(&fakeConn{})
	v := Dispatch(ctx, DefaultRecognizers(), arr("NOPE", "x"))
	require.Equal(t, resp.SimpleError, v.Type)
}

func TestMultiQueuesWritesAndExecReplays(t *testing.T) {
	conn := &fakeConn{}
	ctx, _, journal := newCtx(conn)
	recognizers := DefaultRecognizers()

	v := Dispatch(ctx, recognizers, arr("MULTI"))
	require.Equal(t, "OK", v.Str)
	require.True(t, conn.InTransaction())

	v = Dispatch(ctx, recognizers, arr("SET", "k", "v"))
	require.Equal(t, "QUEUED", v.Str)
	require.Len(t, conn.queue, 1)
	require.Empty(t, journal.appended, "queued command must not execute or journal yet")

	v = Dispatch(ctx, recognizers, arr("EXEC"))
	require.Equal(t, resp.Array, v.Type)
	require.Len(t, v.Array, 1)
	require.Equal(t, "OK", v.Array[0].Str)
	require.Len(t, journal.appended, 1, "exec must run the queued SET, journaling it exactly once")
	require.False(t, conn.InTransaction())
}

func TestPingEchoInfoRunImmediatelyInsideTransaction(t *testing.T) {
	conn := &fakeConn{}
	ctx, _, _ := newCtx(conn)
	recognizers := DefaultRecognizers()

	Dispatch(ctx, recognizers, arr("MULTI"))

	v := Dispatch(ctx, recognizers, arr("PING"))
	require.Equal(t, "PONG", v.Str)
	require.Empty(t, conn.queue)

	v = Dispatch(ctx, recognizers, arr("ECHO", "hi"))
	require.Equal(t, "hi", string(v.Bytes))
	require.Empty(t, conn.queue)

	v = Dispatch(ctx, recognizers, arr("INFO", "replication"))
	require.Equal(t, resp.BulkString, v.Type)
	require.Empty(t, conn.queue)
}

func TestExecWithoutMultiErrors(t *testing.T) {
	ctx, _, _ := newCtx(&fakeConn{})
	v := Dispatch(ctx, DefaultRecognizers(), arr("EXEC"))
	require.Equal(t, "ERR EXEC without MULTI", v.Str)
}

func TestDiscardWithoutMultiErrors(t *testing.T) {
	ctx, _, _ := newCtx(&fakeConn{})
	v := Dispatch(ctx, DefaultRecognizers(), arr("DISCARD"))
	require.Equal(t, "ERR DISCARD without MULTI", v.Str)
}

func TestDiscardDropsQueuedCommands(t *testing.T) {
	conn := &fakeConn{}
	ctx, ks, _ := newCtx(conn)
	recognizers := DefaultRecognizers()

	Dispatch(ctx, recognizers, arr("MULTI"))
	Dispatch(ctx, recognizers, arr("SET", "k", "v"))
	v := Dispatch(ctx, recognizers, arr("DISCARD"))
	require.Equal(t, "OK", v.Str)
	require.False(t, conn.InTransaction())

	_, ok := ks.Get("k")
	require.False(t, ok, "discarded transaction must not apply queued writes")
}

func TestInfoReplicationSection(t *testing.T) {
	ctx, _, _ := newCtx(&fakeConn{})
	v := Dispatch(ctx, DefaultRecognizers(), arr("INFO", "replication"))
	require.Contains(t, string(v.Bytes), "role:master")
	require.Contains(t, string(v.Bytes), "master_replid:replid123")
}

func TestReplconfListeningPortThenGetack(t *testing.T) {
	conn := &fakeConn{offset: 42}
	ctx, _, _ := newCtx(conn)
	recognizers := DefaultRecognizers()

	v := Dispatch(ctx, recognizers, arr("REPLCONF", "listening-port", "6380"))
	require.Equal(t, "OK", v.Str)

	v = Dispatch(ctx, recognizers, arr("REPLCONF", "GETACK", "*"))
	require.Equal(t, resp.Array, v.Type)
	require.Len(t, v.Array, 3)
	require.Equal(t, "ACK", string(v.Array[1].Bytes))
	require.Equal(t, "42", string(v.Array[2].Bytes))
}

func TestReplconfGetackWithoutListeningPortIsProtocolViolation(t *testing.T) {
	ctx, _, _ := newCtx(&fakeConn{})
	v := Dispatch(ctx, DefaultRecognizers(), arr("REPLCONF", "GETACK", "*"))
	require.Equal(t, resp.SimpleError, v.Type)
}

func TestPsyncRepliesFullresyncAndArmsConnection(t *testing.T) {
	conn := &fakeConn{}
	ctx, _, _ := newCtx(conn)
	v := Dispatch(ctx, DefaultRecognizers(), arr("PSYNC", "?", "-1"))
	require.Equal(t, resp.SimpleString, v.Type)
	require.Contains(t, v.Str, "FULLRESYNC replid123 0")
	require.True(t, conn.armed)
}
