package cmd

import (
	"strconv"

	"gridctl/internal/resp"
)

// psyncCmd implements PSYNC replicationid offset, grounded on
// original_source's psync.rs. This server only ever answers with a full
// resync (partial resync from a prior replication id is a Non-goal), so the
// requested replicationid/offset arguments are recognized but unused.
type psyncCmd struct{}

func recognizePsync(v resp.Value) (Command, bool) {
	args, ok := asArray(v)
	if !ok || len(args) != 3 || !verbIs(args, "psync") {
		return nil, false
	}
	if _, ok := bulkText(args[1]); !ok {
		return nil, false
	}
	if _, ok := bulkText(args[2]); !ok {
		return nil, false
	}
	return psyncCmd{}, true
}

func (psyncCmd) Run(ctx *Context) resp.Value {
	if ctx.Conn != nil {
		ctx.Conn.ArmPSYNC()
	}
	reply := "FULLRESYNC " + ctx.Info.ReplID() + " " + strconv.FormatInt(ctx.Info.Offset(), 10)
	return resp.NewSimpleString(reply)
}

func (psyncCmd) Queueable() bool { return false }
