package cmd

import "gridctl/internal/resp"

// getCmd implements GET key, grounded on original_source's get.rs.
type getCmd struct {
	key string
}

func recognizeGet(v resp.Value) (Command, bool) {
	args, ok := asArray(v)
	if !ok || len(args) != 2 || !verbIs(args, "get") {
		return nil, false
	}
	key, ok := bulkText(args[1])
	if !ok {
		return nil, false
	}
	return getCmd{key: key}, true
}

func (c getCmd) Run(ctx *Context) resp.Value {
	v, ok := ctx.Store.Get(c.key)
	if !ok {
		return resp.NullStringValue()
	}
	return resp.NewBufBulk(v)
}

func (getCmd) Queueable() bool { return true }
