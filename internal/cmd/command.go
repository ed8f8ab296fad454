// Package cmd implements the command registry: recognize-in-order dispatch
// over decoded RESP values, one handler per supported command (spec.md
// §4.2). The dispatch model is grounded directly on the original Rust
// source's Command trait (can_execute/run) rather than the teacher's
// name-indexed map[string]*Command registry, because this spec's
// first-recognizer-wins semantics (PING matching inside a one-element
// array, GETACK's special casing, ...) don't reduce to a single string key.
package cmd

import (
	"strings"
	"time"

	"gridctl/internal/resp"
)

// Command is a fully-recognized, argument-bound command ready to run.
// Recognizers build a fresh Command per invocation (capturing whatever
// arguments they parsed out of the RESP value), so a Command pushed onto a
// transaction queue never shares mutable state with the connection that
// queued it -- it is replayed later by the registry with a nil Conn,
// exactly the "plain tagged data, re-dispatched by the registry" shape
// spec.md §9 calls for instead of self-referential handler objects.
type Command interface {
	// Run executes the command against the store and, when Conn is
	// non-nil, the connection's transaction/replication state. Conn is nil
	// when EXEC is replaying a queued command.
	Run(ctx *Context) resp.Value
	// Queueable reports whether this command participates in MULTI
	// queueing. PING/ECHO/INFO/REPLCONF/PSYNC/MULTI/EXEC/DISCARD are never
	// queued; they execute immediately even inside a transaction.
	Queueable() bool
}

// Recognizer attempts to parse v into a Command. It returns ok=false
// without side effects if v doesn't match (wrong verb, wrong arity, wrong
// RESP shape) so the registry can try the next recognizer in order.
type Recognizer func(v resp.Value) (Command, bool)

// Journal is the subset of the replication journal the registry needs: an
// append-only sink for the raw encoded bytes of a write-class command,
// returning the id it assigned to the entry. Defined here (not imported
// from internal/repl) so internal/cmd has no dependency on internal/repl;
// internal/repl.Journal satisfies it.
type Journal interface {
	Append(raw []byte) string
}

// ConnState is the subset of connection state the registry needs, so that
// internal/cmd does not depend on internal/server. internal/server.Connection
// implements this interface.
type ConnState interface {
	InTransaction() bool
	EnterTransaction()
	Queue(cmd Command)
	TakeQueue() []Command
	ExitTransaction()

	// SetReplicaListeningPort records the port a connecting replica
	// reported via REPLCONF listening-port, ahead of PSYNC.
	SetReplicaListeningPort(port string)
	// ReplicaPort reports the port recorded by SetReplicaListeningPort, if
	// any has been recorded on this connection yet.
	ReplicaPort() (string, bool)
	// BytesOffset returns the number of replicated bytes this connection
	// has accounted for so far (used to answer REPLCONF GETACK).
	BytesOffset() int64

	// ArmPSYNC marks this connection replica-facing and arms emission of
	// the empty RDB payload once the FULLRESYNC reply has been flushed.
	ArmPSYNC()
}

// ServerInfo exposes the server identity INFO and PSYNC need, plus the
// mutator a primary's write commands use to advance master_repl_offset as
// they append to the replication journal.
type ServerInfo interface {
	Role() string // "master" or "slave"
	ReplID() string
	Offset() int64
	AddOffset(n int64)
}

// Context bundles everything a Command.Run needs. Conn is nil when a
// queued command is being replayed by EXEC, matching spec.md §9's
// "re-runs the handlers with conn=None" rule (which also makes nested
// MULTI structurally impossible, intentionally).
type Context struct {
	Store   Keyspace
	Journal Journal
	Conn    ConnState
	Info    ServerInfo
}

// Keyspace is the subset of *store.Keyspace the registry depends on.
type Keyspace interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte)
	SetWithExpiry(key string, value []byte, ttl time.Duration)
	Incr(key string) (int64, error)
	SetTransaction(id string)
	ClearTransactionIfCurrent(id string)
}

// asArray returns v's elements if v is a (non-nil) Array.
func asArray(v resp.Value) ([]resp.Value, bool) {
	if v.Type != resp.Array {
		return nil, false
	}
	return v.Array, true
}

// bulkText extracts the text of a BulkString/BufBulk element.
func bulkText(v resp.Value) (string, bool) {
	switch v.Type {
	case resp.BulkString, resp.BufBulk:
		return string(v.Bytes), true
	default:
		return "", false
	}
}

// verbIs reports whether args[0] is a bulk string equal to verb,
// case-insensitively. Per spec.md §9, every command verb -- including
// PSYNC, which the Rust reference compared case-sensitively -- is
// normalized to case-insensitive here.
func verbIs(args []resp.Value, verb string) bool {
	if len(args) == 0 {
		return false
	}
	s, ok := bulkText(args[0])
	if !ok {
		return false
	}
	return strings.EqualFold(s, verb)
}
