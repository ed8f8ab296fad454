package cmd

import (
	"fmt"
	"strings"

	"gridctl/internal/resp"
)

// infoCmd implements INFO [section], grounded on original_source's info.rs.
// Only the replication section is modeled; spec.md scopes INFO down to the
// fields a replica handshake or a health check would actually read.
type infoCmd struct {
	section string
}

func recognizeInfo(v resp.Value) (Command, bool) {
	args, ok := asArray(v)
	if !ok || len(args) == 0 || !verbIs(args, "info") {
		return nil, false
	}
	section := ""
	if len(args) == 2 {
		s, ok := bulkText(args[1])
		if !ok {
			return nil, false
		}
		section = strings.ToLower(s)
	} else if len(args) != 1 {
		return nil, false
	}
	return infoCmd{section: section}, true
}

func (c infoCmd) Run(ctx *Context) resp.Value {
	if c.section != "" && c.section != "replication" {
		return resp.NewBulk("")
	}
	body := fmt.Sprintf(
		"# Replication\nrole:%s\nmaster_replid:%s\nmaster_repl_offset:%d",
		ctx.Info.Role(), ctx.Info.ReplID(), ctx.Info.Offset(),
	)
	return resp.NewBulk(body)
}

func (infoCmd) Queueable() bool { return false }
