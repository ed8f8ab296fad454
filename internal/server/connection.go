package server

import (
	"errors"
	"net"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"gridctl/internal/cmd"
	"gridctl/internal/logger"
	"gridctl/internal/resp"
)

// role is the per-connection mode described in spec.md §4.4. A connection
// starts ClientFacing and may switch to ReplicaFacing (after it issues
// PSYNC against us) or starts life as UpstreamPrimary (the one connection
// a replica opens to its primary during startup).
type role int

const (
	roleClientFacing role = iota
	roleReplicaFacing
	roleUpstreamPrimary
)

// keepAliveInterval and replicaDeliveryInterval match spec.md §5's
// "every 10s" peer-liveness probe and the small, bounded-delay tick a
// ReplicaFacing connection uses to drain the journal.
const (
	keepAliveInterval       = 10 * time.Second
	replicaDeliveryInterval = 20 * time.Millisecond
)

// Connection owns one TCP socket end to end: it is the per-connection
// state spec.md §3 describes (role, transaction buffer, replica_info) and
// implements internal/cmd.ConnState so the registry can queue into it and
// query its replication bookkeeping. Per spec.md §5, a Connection is owned
// by its own goroutine; the only fields its keep-alive probe goroutine also
// touches are the socket and the atomic dead flag.
type Connection struct {
	id   string
	conn net.Conn
	srv  *Server
	role role

	inTransaction bool
	queue         []cmd.Command

	// replica_info, populated only once this connection is (or is
	// becoming) ReplicaFacing.
	replicaPort    string
	hasReplicaPort bool
	journalCursor  string
	bytesOffset    int64
	rdbPending     bool

	// set by Handshake when this Connection represents the socket to our
	// own primary (roleUpstreamPrimary).
	leftover []byte

	dead int32 // atomic bool, set on write/read failure so sibling goroutines stop
}

func newConnection(conn net.Conn, srv *Server) *Connection {
	return &Connection{id: conn.RemoteAddr().String(), conn: conn, srv: srv, role: roleClientFacing}
}

// --- internal/cmd.ConnState ---

func (c *Connection) InTransaction() bool { return c.inTransaction }

func (c *Connection) EnterTransaction() {
	c.inTransaction = true
	c.queue = c.queue[:0]
}

func (c *Connection) Queue(command cmd.Command) { c.queue = append(c.queue, command) }

func (c *Connection) TakeQueue() []cmd.Command {
	q := c.queue
	c.queue = nil
	return q
}

func (c *Connection) ExitTransaction() {
	c.inTransaction = false
	c.queue = nil
}

func (c *Connection) SetReplicaListeningPort(port string) {
	c.replicaPort, c.hasReplicaPort = port, true
}

func (c *Connection) ReplicaPort() (string, bool) { return c.replicaPort, c.hasReplicaPort }

func (c *Connection) BytesOffset() int64 { return atomic.LoadInt64(&c.bytesOffset) }

func (c *Connection) ArmPSYNC() {
	c.rdbPending = true
	if c.hasReplicaPort {
		c.srv.manager.RegisterReplica(c.id)
	}
}

// --- connection loop ---

// serve drives this connection until it dies. It starts a keep-alive
// probe sibling goroutine (spec.md §4.4/§5), then runs the role-dependent
// loop: ClientFacing reads and dispatches, ReplicaFacing ticks journal
// delivery, UpstreamPrimary reads and silently applies.
func (c *Connection) serve() {
	defer c.cleanup()
	go c.keepAliveProbe()

	switch c.role {
	case roleUpstreamPrimary:
		c.serveUpstream()
	default:
		c.serveClient()
	}
}

func (c *Connection) cleanup() {
	_ = c.conn.Close()
	if c.hasReplicaPort {
		c.srv.manager.UnregisterReplica(c.id)
	}
	logger.Debugf("connection %s closed", c.id)
}

func (c *Connection) isDead() bool { return atomic.LoadInt32(&c.dead) != 0 }
func (c *Connection) markDead()    { atomic.StoreInt32(&c.dead, 1) }

// keepAliveProbe attempts a zero-byte write every keepAliveInterval; a
// failure means the peer is gone, so it marks the connection dead and lets
// the owning loop unwind at its next suspension point, per spec.md §5's
// cooperative-cancellation model.
func (c *Connection) keepAliveProbe() {
	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()
	for range ticker.C {
		if c.isDead() {
			return
		}
		if _, err := c.conn.Write(nil); err != nil {
			logger.Debugf("connection %s failed keep-alive probe: %v", c.id, err)
			c.markDead()
			_ = c.conn.Close()
			return
		}
	}
}

// serveClient is the ClientFacing loop of spec.md §4.4: read, decode one
// or more pipelined values, dispatch each, write the replies, then flush
// the empty RDB payload if PSYNC armed it. Once PSYNC switches this
// connection's role, the loop hands off to replica delivery instead.
func (c *Connection) serveClient() {
	var buf []byte
	tmp := make([]byte, 64*1024)

	for !c.isDead() {
		n, err := c.conn.Read(tmp)
		if err != nil || n == 0 {
			return
		}
		buf = append(buf, tmp[:n]...)

		values, consumed, derr := resp.DecodeAll(buf)
		buf = buf[consumed:]

		out := resp.GetBuffer()
		for _, v := range values {
			ctx := &cmd.Context{Store: c.srv.store, Journal: c.srv.journal, Conn: c, Info: c.srv.manager}
			reply := cmd.Dispatch(ctx, c.srv.recognizers, v)
			out = resp.Encode(out, reply)
		}
		if derr != nil {
			out = resp.Encode(out, resp.NewSimpleError("ERR Protocol error: "+derr.Error()))
		}

		if len(out) > 0 {
			_, werr := c.conn.Write(out)
			resp.PutBuffer(out)
			if werr != nil {
				return
			}
		} else {
			resp.PutBuffer(out)
		}

		// A malformed frame is never consumed by DecodeAll, so buf still
		// starts with the same bad bytes -- re-reading would decode the
		// identical error forever. Redis's behavior on a protocol error is
		// to drop the connection; do the same instead of looping.
		if derr != nil {
			return
		}

		if c.rdbPending {
			c.rdbPending = false
			if _, werr := c.conn.Write(resp.EncodeBytes(resp.NewRDBFile(c.srv.emptyRDB))); werr != nil {
				return
			}
			c.role = roleReplicaFacing
			c.serveReplicaFacing()
			return
		}
	}
}

// serveReplicaFacing drains the journal to this replica on a tick, per
// spec.md §4.5: fetch everything after the connection's cursor, write it
// in order, advance the cursor. A write failure marks the connection dead.
func (c *Connection) serveReplicaFacing() {
	ticker := time.NewTicker(replicaDeliveryInterval)
	defer ticker.Stop()
	for range ticker.C {
		if c.isDead() {
			return
		}
		cursor, batch, ok := c.srv.journal.ReadAfter(c.journalCursor)
		if !ok {
			continue
		}
		for _, raw := range batch {
			if _, err := c.conn.Write(raw); err != nil {
				logger.Debugf("replica %s died: %v", c.id, err)
				c.markDead()
				return
			}
			atomic.AddInt64(&c.bytesOffset, int64(len(raw)))
		}
		c.journalCursor = cursor
		c.srv.manager.UpdateCursor(c.id, cursor)
	}
}

// serveUpstream is the UpstreamPrimary loop of spec.md §4.4: the stream
// may start with the tail of the RDB bulk (framed without a trailing CRLF,
// so it can't be decoded directly), so it first scans for the earliest
// offset where the remainder decodes as a RESP array, then iteratively
// decodes and applies commands from there, accumulating bytes_offset and
// answering REPLCONF GETACK inline.
func (c *Connection) serveUpstream() {
	buf := c.leftover
	tmp := make([]byte, 64*1024)

	for {
		pos, v, n, found := locateFirstArray(buf)
		if found {
			buf = buf[pos+n:]
			c.applyUpstream(v)
			break
		}
		m, err := c.conn.Read(tmp)
		if err != nil {
			logger.Warnf("lost connection to primary while syncing: %v", err)
			return
		}
		buf = append(buf, tmp[:m]...)
	}

	for {
		v, n, err := resp.Decode(buf)
		if err == nil {
			buf = buf[n:]
			c.applyUpstream(v)
			continue
		}
		if !errors.Is(err, resp.ErrNeedMore) {
			logger.Warnf("malformed command from primary, dropping connection: %v", err)
			return
		}
		m, rerr := c.conn.Read(tmp)
		if rerr != nil {
			logger.Infof("primary connection closed: %v", rerr)
			return
		}
		buf = append(buf, tmp[:m]...)
	}
}

// applyUpstream silently runs one command decoded from the primary's
// stream against the keyspace, with no Conn (so it can never re-queue into
// a transaction -- the replica has no transactional surface of its own)
// and no Journal (a replica does not itself fan out further). GETACK is
// answered directly here, using this connection's own running byte
// counter, rather than through the registry -- see internal/cmd's
// REPLCONF handler doc comment for why the two are split.
func (c *Connection) applyUpstream(v resp.Value) {
	encoded := resp.EncodeBytes(v)
	length := int64(len(encoded))

	if isGetAck(v) {
		atomic.AddInt64(&c.bytesOffset, length)
		c.srv.manager.AddOffset(length)
		reply := resp.NewArray(
			resp.NewBulk("REPLCONF"), resp.NewBulk("ACK"),
			resp.NewBulk(strconv.FormatInt(c.BytesOffset(), 10)),
		)
		if _, err := c.conn.Write(resp.EncodeBytes(reply)); err != nil {
			c.markDead()
		}
		return
	}

	ctx := &cmd.Context{Store: c.srv.store, Journal: nil, Conn: nil, Info: c.srv.manager}
	cmd.Dispatch(ctx, c.srv.recognizers, v)
	atomic.AddInt64(&c.bytesOffset, length)
	c.srv.manager.AddOffset(length)
}

// locateFirstArray scans buf byte by byte for the earliest offset at which
// the remainder decodes as a complete RESP Array, per spec.md §4.4. A
// partial array (ErrNeedMore) at any offset, including 0, is treated the
// same as any other non-match: the scan just advances to the next offset,
// relying on the caller reading more and retrying the whole scan.
func locateFirstArray(buf []byte) (pos int, v resp.Value, consumed int, found bool) {
	for start := 0; start < len(buf); start++ {
		val, n, err := resp.Decode(buf[start:])
		if err == nil && val.Type == resp.Array {
			return start, val, n, true
		}
	}
	return 0, resp.Value{}, 0, false
}

// isGetAck reports whether v is REPLCONF GETACK, case-insensitively.
func isGetAck(v resp.Value) bool {
	if v.Type != resp.Array || len(v.Array) < 2 {
		return false
	}
	verb, ok := textOf(v.Array[0])
	if !ok || !strings.EqualFold(verb, "replconf") {
		return false
	}
	sub, ok := textOf(v.Array[1])
	return ok && strings.EqualFold(sub, "getack")
}

func textOf(v resp.Value) (string, bool) {
	switch v.Type {
	case resp.BulkString, resp.BufBulk:
		return string(v.Bytes), true
	default:
		return "", false
	}
}
