package cmd

import (
	"strconv"
	"strings"
	"time"

	"gridctl/internal/resp"
)

// setCmd implements SET key value [PX milliseconds], grounded on
// original_source's set.rs. raw holds the command's own encoded bytes,
// captured at recognize time, so Run can hand the exact wire bytes to the
// replication journal without re-encoding a reconstructed command.
type setCmd struct {
	key   string
	value []byte
	ttl   time.Duration
	raw   []byte
}

func recognizeSet(v resp.Value) (Command, bool) {
	args, ok := asArray(v)
	if !ok || len(args) < 3 || !verbIs(args, "set") {
		return nil, false
	}
	key, ok := bulkText(args[1])
	if !ok {
		return nil, false
	}
	value, ok := bulkText(args[2])
	if !ok {
		return nil, false
	}

	// Options are parsed leniently: anything other than a well-formed
	// "PX <positive ms>" is ignored and the key is stored without a TTL.
	c := setCmd{key: key, value: []byte(value), raw: resp.EncodeBytes(v)}
	if len(args) != 5 {
		return c, true
	}
	opt, ok := bulkText(args[3])
	if !ok || !strings.EqualFold(opt, "px") {
		return c, true
	}
	msText, ok := bulkText(args[4])
	if !ok {
		return c, true
	}
	ms, err := strconv.ParseInt(msText, 10, 64)
	if err != nil || ms <= 0 {
		return c, true
	}
	c.ttl = time.Duration(ms) * time.Millisecond
	return c, true
}

func (c setCmd) Run(ctx *Context) resp.Value {
	if c.ttl > 0 {
		ctx.Store.SetWithExpiry(c.key, c.value, c.ttl)
	} else {
		ctx.Store.Set(c.key, c.value)
	}
	if ctx.Journal != nil {
		ctx.Journal.Append(c.raw)
		ctx.Info.AddOffset(int64(len(c.raw)))
	}
	return resp.NewSimpleString("OK")
}

func (setCmd) Queueable() bool { return true }
