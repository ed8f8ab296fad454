package cmd

import (
	"gridctl/internal/resp"
)

// incrCmd implements INCR key, grounded on original_source's incr.rs: the
// existing value (if any) must parse as a 32-bit signed decimal integer,
// and the incremented result must stay within that same range.
type incrCmd struct {
	key string
	raw []byte
}

const notIntegerErr = "ERR value is not an integer or out of range"

func recognizeIncr(v resp.Value) (Command, bool) {
	args, ok := asArray(v)
	if !ok || len(args) != 2 || !verbIs(args, "incr") {
		return nil, false
	}
	key, ok := bulkText(args[1])
	if !ok {
		return nil, false
	}
	return incrCmd{key: key, raw: resp.EncodeBytes(v)}, true
}

func (c incrCmd) Run(ctx *Context) resp.Value {
	n, err := ctx.Store.Incr(c.key)
	if err != nil {
		return resp.NewSimpleError(notIntegerErr)
	}

	if ctx.Journal != nil {
		ctx.Journal.Append(c.raw)
		ctx.Info.AddOffset(int64(len(c.raw)))
	}
	return resp.NewInteger(n)
}

func (incrCmd) Queueable() bool { return true }
