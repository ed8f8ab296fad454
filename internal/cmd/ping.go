package cmd

import "gridctl/internal/resp"

// pingCmd implements PING, grounded on original_source's ping.rs: recognized
// whether it arrives as a one-element array or, degenerately, a bare
// command verb, and always answers immediately even inside a transaction.
type pingCmd struct{}

func recognizePing(v resp.Value) (Command, bool) {
	if verbIs([]resp.Value{v}, "ping") {
		return pingCmd{}, true
	}
	args, ok := asArray(v)
	if !ok || len(args) != 1 {
		return nil, false
	}
	if !verbIs(args, "ping") {
		return nil, false
	}
	return pingCmd{}, true
}

func (pingCmd) Run(*Context) resp.Value { return resp.NewSimpleString("PONG") }
func (pingCmd) Queueable() bool         { return false }
