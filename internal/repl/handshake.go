package repl

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"gridctl/internal/logger"
	"gridctl/internal/resp"
)

// HandshakeTimeout bounds each individual step of the replica handshake;
// a primary that never replies is a HandshakeFatal error (spec.md §7).
const HandshakeTimeout = 5 * time.Second

// HandshakeResult carries what the replica learns from a successful
// handshake: the live connection to the primary (now ready to be driven
// as an UpstreamPrimary connection), any bytes already read past the
// FULLRESYNC line (the start of the RDB payload, or even pipelined
// commands following it), and the learned replication identity.
type HandshakeResult struct {
	Conn     net.Conn
	Leftover []byte
	ReplID   string
	Offset   int64
}

// Handshake performs the replica-side initial sync against addr
// ("host:port"), per spec.md §4.6: PING, REPLCONF listening-port,
// REPLCONF capa psync, PSYNC ? -1, each waiting for its expected simple
// string reply before proceeding. Any mismatch or I/O failure is fatal
// (HandshakeFatal) and the process should not start serving clients.
func Handshake(addr, ownPort string) (*HandshakeResult, error) {
	conn, err := net.DialTimeout("tcp", addr, HandshakeTimeout)
	if err != nil {
		return nil, fmt.Errorf("handshake: dial %s: %w", addr, err)
	}
	logger.Infof("connecting to primary at %s for initial sync", addr)

	var carry []byte

	carry, err = step(conn, carry, resp.EncodeCommand("PING"), "PONG")
	if err != nil {
		conn.Close()
		return nil, err
	}

	carry, err = step(conn, carry, resp.EncodeCommand("REPLCONF", "listening-port", ownPort), "OK")
	if err != nil {
		conn.Close()
		return nil, err
	}

	carry, err = step(conn, carry, resp.EncodeCommand("REPLCONF", "capa", "psync"), "OK")
	if err != nil {
		conn.Close()
		return nil, err
	}

	var reply string
	carry, reply, err = sendAndRead(conn, carry, resp.EncodeCommand("PSYNC", "?", "-1"))
	if err != nil {
		conn.Close()
		return nil, err
	}
	if !strings.HasPrefix(reply, "FULLRESYNC ") {
		conn.Close()
		return nil, fmt.Errorf("handshake: expected FULLRESYNC, got %q", reply)
	}
	fields := strings.Fields(reply)
	if len(fields) != 3 {
		conn.Close()
		return nil, fmt.Errorf("handshake: malformed FULLRESYNC reply %q", reply)
	}
	offset, err := strconv.ParseInt(fields[2], 10, 64)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("handshake: bad offset in FULLRESYNC reply %q: %w", reply, err)
	}

	logger.Infof("full resync with replid %s at offset %d", fields[1], offset)
	return &HandshakeResult{Conn: conn, Leftover: carry, ReplID: fields[1], Offset: offset}, nil
}

// step sends a command, waits for a SimpleString reply equal to want
// (case-sensitively -- these are the primary's own framing, not a command
// verb), and returns whatever bytes were read past the reply for the next
// step to carry forward.
func step(conn net.Conn, carry, cmd []byte, want string) ([]byte, error) {
	carry, reply, err := sendAndRead(conn, carry, cmd)
	if err != nil {
		return nil, err
	}
	if reply != want {
		return nil, fmt.Errorf("handshake: expected +%s, got %q", want, reply)
	}
	return carry, nil
}

// sendAndRead writes cmd, then decodes exactly one RESP value from the
// connection (carrying forward any bytes already buffered in carry),
// returning its SimpleString text and the unconsumed remainder.
func sendAndRead(conn net.Conn, carry, cmd []byte) ([]byte, string, error) {
	if _, err := conn.Write(cmd); err != nil {
		return nil, "", fmt.Errorf("handshake: write: %w", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(HandshakeTimeout))
	v, rest, err := readValue(conn, carry)
	if err != nil {
		return nil, "", fmt.Errorf("handshake: read: %w", err)
	}
	_ = conn.SetReadDeadline(time.Time{})
	if v.Type != resp.SimpleString && v.Type != resp.SimpleError {
		return nil, "", fmt.Errorf("handshake: expected simple reply, got type %v", v.Type)
	}
	return rest, v.Str, nil
}

// readValue decodes one RESP value from conn, reading more bytes as
// needed and carrying any unconsumed tail in carry forward across calls.
func readValue(conn net.Conn, carry []byte) (resp.Value, []byte, error) {
	buf := carry
	tmp := make([]byte, 4096)
	for {
		v, n, err := resp.Decode(buf)
		if err == nil {
			return v, buf[n:], nil
		}
		if err != resp.ErrNeedMore {
			return resp.Value{}, nil, err
		}
		m, rerr := conn.Read(tmp)
		if rerr != nil {
			return resp.Value{}, nil, rerr
		}
		buf = append(buf, tmp[:m]...)
	}
}
