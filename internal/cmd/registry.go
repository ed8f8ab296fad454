package cmd

import "gridctl/internal/resp"

// DefaultRecognizers returns the recognizer chain in the order command
// verbs are tried. Order matches the command table in spec.md §4.2, which
// itself mirrors the registration order in the original Rust source's
// get_registered_commands -- PING first, since it's the hottest path and
// the cheapest to rule out.
func DefaultRecognizers() []Recognizer {
	return []Recognizer{
		recognizePing,
		recognizeEcho,
		recognizeSet,
		recognizeGet,
		recognizeIncr,
		recognizeMulti,
		recognizeExec,
		recognizeDiscard,
		recognizeInfo,
		recognizeReplconf,
		recognizePsync,
	}
}

// Dispatch runs v through recognizers in order and executes (or queues) the
// first match. It returns a SimpleError if nothing recognizes v, matching
// the "unknown command" behavior of a registry with no name-keyed fallback.
func Dispatch(ctx *Context, recognizers []Recognizer, v resp.Value) resp.Value {
	for _, rec := range recognizers {
		command, ok := rec(v)
		if !ok {
			continue
		}
		if command.Queueable() && ctx.Conn != nil && ctx.Conn.InTransaction() {
			ctx.Conn.Queue(command)
			return resp.NewSimpleString("QUEUED")
		}
		return command.Run(ctx)
	}
	return resp.NewSimpleError("ERR command not found")
}
