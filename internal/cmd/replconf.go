package cmd

import (
	"strconv"
	"strings"

	"gridctl/internal/resp"
)

// replconfCmd implements REPLCONF, grounded on original_source's
// replconf.rs. It covers the handshake-time subcommands a connecting
// replica sends to the primary (listening-port, capa) and the generic
// GETACK acknowledgement shape.
//
// GETACK as sent by a primary down its replication stream to an already
// syncing replica is handled inline by the UpstreamPrimary read loop in
// internal/server, not through this registry: at that point there is no
// client Connection to query, only the replica's own running byte-offset
// counter, and the loop already has that counter in hand. This handler
// exists for the symmetric case: a REPLCONF GETACK arriving on an ordinary
// client-facing connection, resolved against whatever this connection has
// recorded via a prior REPLCONF listening-port.
type replconfCmd struct {
	subkey string
	value  string
}

func recognizeReplconf(v resp.Value) (Command, bool) {
	args, ok := asArray(v)
	if !ok || len(args) != 3 || !verbIs(args, "replconf") {
		return nil, false
	}
	subkey, ok := bulkText(args[1])
	if !ok {
		return nil, false
	}
	value, ok := bulkText(args[2])
	if !ok {
		return nil, false
	}
	return replconfCmd{subkey: subkey, value: value}, true
}

func (c replconfCmd) Run(ctx *Context) resp.Value {
	switch strings.ToLower(c.subkey) {
	case "listening-port":
		if ctx.Conn != nil {
			ctx.Conn.SetReplicaListeningPort(c.value)
		}
		return resp.NewSimpleString("OK")
	case "getack":
		if ctx.Conn == nil {
			return resp.NewSimpleError("ERR REPLCONF GETACK without prior REPLCONF listening-port")
		}
		if _, ok := ctx.Conn.ReplicaPort(); !ok {
			return resp.NewSimpleError("ERR REPLCONF GETACK without prior REPLCONF listening-port")
		}
		offset := ctx.Conn.BytesOffset()
		return resp.NewArray(
			resp.NewBulk("REPLCONF"),
			resp.NewBulk("ACK"),
			resp.NewBulk(strconv.FormatInt(offset, 10)),
		)
	default:
		// capa and any other acknowledged-but-unused subcommand.
		return resp.NewSimpleString("OK")
	}
}

func (replconfCmd) Queueable() bool { return false }
