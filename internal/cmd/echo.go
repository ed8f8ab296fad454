package cmd

import "gridctl/internal/resp"

// echoCmd implements ECHO message, grounded on original_source's echo.rs.
type echoCmd struct {
	message []byte
	hasMsg  bool
}

func recognizeEcho(v resp.Value) (Command, bool) {
	args, ok := asArray(v)
	if !ok || len(args) == 0 || !verbIs(args, "echo") {
		return nil, false
	}
	if len(args) == 1 {
		return echoCmd{}, true
	}
	if len(args) != 2 {
		return nil, false
	}
	text, ok := bulkText(args[1])
	if !ok {
		return nil, false
	}
	return echoCmd{message: []byte(text), hasMsg: true}, true
}

func (c echoCmd) Run(*Context) resp.Value {
	if !c.hasMsg {
		return resp.NullStringValue()
	}
	return resp.NewBufBulk(c.message)
}

func (echoCmd) Queueable() bool { return false }
