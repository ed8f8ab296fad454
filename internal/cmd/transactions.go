package cmd

import (
	"crypto/rand"
	"encoding/hex"
	"time"

	"gridctl/internal/resp"
)

// multiCmd, execCmd and discardCmd implement MULTI/EXEC/DISCARD, grounded on
// original_source's multi.rs/exec.rs/discard.rs and the transaction fields
// on original_source's connection.rs. None of the three is ever queued --
// MULTI inside MULTI, and EXEC/DISCARD, all execute immediately -- which is
// also what makes nested MULTI structurally impossible here: EXEC replays
// queued commands with Conn set to nil, so a queued MULTI could never
// re-enter queueing even if one were ever queued.
type multiCmd struct{}
type execCmd struct{}
type discardCmd struct{}

func recognizeMulti(v resp.Value) (Command, bool) {
	return recognizeNullary(v, "multi", multiCmd{})
}

func recognizeExec(v resp.Value) (Command, bool) {
	return recognizeNullary(v, "exec", execCmd{})
}

func recognizeDiscard(v resp.Value) (Command, bool) {
	return recognizeNullary(v, "discard", discardCmd{})
}

func recognizeNullary(v resp.Value, verb string, c Command) (Command, bool) {
	args, ok := asArray(v)
	if !ok || len(args) != 1 || !verbIs(args, verb) {
		return nil, false
	}
	return c, true
}

func (multiCmd) Run(ctx *Context) resp.Value {
	if ctx.Conn == nil {
		return resp.NewSimpleError("ERR MULTI is not allowed here")
	}
	ctx.Conn.EnterTransaction()
	return resp.NewSimpleString("OK")
}

func (multiCmd) Queueable() bool { return false }

// execWatchdog bounds how long a transaction id may linger in the store
// before EXEC's own completion clears it, per spec.md §4.3/§9.
const execWatchdog = 30 * time.Millisecond

func (execCmd) Run(ctx *Context) resp.Value {
	if ctx.Conn == nil || !ctx.Conn.InTransaction() {
		return resp.NewSimpleError("ERR EXEC without MULTI")
	}
	queued := ctx.Conn.TakeQueue()
	ctx.Conn.ExitTransaction()

	id := newTransactionID()
	ctx.Store.SetTransaction(id)
	timer := time.AfterFunc(execWatchdog, func() {
		ctx.Store.ClearTransactionIfCurrent(id)
	})
	defer func() {
		timer.Stop()
		ctx.Store.ClearTransactionIfCurrent(id)
	}()

	inner := &Context{Store: ctx.Store, Journal: ctx.Journal, Conn: nil, Info: ctx.Info}
	results := make([]resp.Value, len(queued))
	for i, queuedCmd := range queued {
		results[i] = queuedCmd.Run(inner)
	}
	return resp.NewArray(results...)
}

func (execCmd) Queueable() bool { return false }

func (discardCmd) Run(ctx *Context) resp.Value {
	if ctx.Conn == nil || !ctx.Conn.InTransaction() {
		return resp.NewSimpleError("ERR DISCARD without MULTI")
	}
	ctx.Conn.ExitTransaction()
	return resp.NewSimpleString("OK")
}

func (discardCmd) Queueable() bool { return false }

func newTransactionID() string {
	var buf [16]byte
	_, _ = rand.Read(buf[:])
	return hex.EncodeToString(buf[:])
}
