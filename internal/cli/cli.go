// Package cli implements the interactive client described in SPEC_FULL.md
// §4.7: a small redis-cli-style REPL that dials a running server, encodes
// typed lines as RESP command arrays, decodes the reply, and pretty-prints
// it. It talks to the server exclusively over the wire protocol, so it
// doubles as a manual integration-test harness for internal/resp and
// internal/cmd.
//
// Adapted from the teacher's internal/cli package, scoped down: no TLS, no
// AUTH (an explicit spec Non-goal), no --eval/--pipe batch modes, no
// multi-database SELECT. Line editing and bounded history are kept because
// they are what exercises golang.org/x/term, the dependency this module is
// grounded on.
package cli

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/term"

	"gridctl/internal/resp"
)

// Config holds the interactive client's connection settings.
type Config struct {
	Host    string
	Port    int
	Timeout time.Duration
}

// History is a bounded ring of previously entered lines, navigated with
// the up/down arrow keys, mirroring the teacher's CommandHistory.
type History struct {
	lines    []string
	position int
	max      int
}

// NewHistory returns an empty history bounded to max entries.
func NewHistory(max int) *History {
	return &History{lines: make([]string, 0, max), max: max}
}

// Add appends line to history, skipping empty lines and immediate repeats,
// and resets the browse position to "current input".
func (h *History) Add(line string) {
	if line == "" || (len(h.lines) > 0 && h.lines[len(h.lines)-1] == line) {
		return
	}
	h.lines = append(h.lines, line)
	if len(h.lines) > h.max {
		h.lines = h.lines[1:]
	}
	h.position = len(h.lines)
}

// Previous moves one step back in history and returns that line. At the
// oldest entry it stays there and returns that entry again; it returns ""
// only when the history is empty.
func (h *History) Previous() string {
	if len(h.lines) == 0 {
		return ""
	}
	if h.position > 0 {
		h.position--
	}
	return h.lines[h.position]
}

// Next moves one step forward in history, returning "" once back at the
// current (not-yet-submitted) input.
func (h *History) Next() string {
	if h.position >= len(h.lines)-1 {
		h.position = len(h.lines)
		return ""
	}
	h.position++
	return h.lines[h.position]
}

// Run connects to the configured server and drives the REPL until the
// user types quit/exit or sends EOF.
func Run(cfg Config) error {
	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	conn, err := net.DialTimeout("tcp", addr, cfg.Timeout)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", addr, err)
	}
	defer conn.Close()

	fmt.Printf("connected to %s\n", addr)
	fmt.Println("type a command (e.g. SET key value), 'quit' to exit")

	history := NewHistory(100)

	fd := int(os.Stdin.Fd())
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return runPlain(conn, history)
	}
	defer term.Restore(fd, oldState)

	reader := bufio.NewReader(os.Stdin)
	for {
		line, err := readLine(reader, history)
		if err != nil {
			if err == io.EOF {
				fmt.Print("\r\n")
				return nil
			}
			return err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "quit" || line == "exit" {
			return nil
		}
		history.Add(line)

		if err := sendAndPrint(conn, line); err != nil {
			fmt.Fprintf(os.Stderr, "\r\nerror: %v\r\n", err)
		}
	}
}

// runPlain is the fallback used when the terminal can't be put in raw
// mode (e.g. stdin is a pipe): no history navigation, one line at a time.
func runPlain(conn net.Conn, history *History) error {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "quit" || line == "exit" {
			return nil
		}
		history.Add(line)
		if err := sendAndPrint(conn, line); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
	}
	return scanner.Err()
}

// sendAndPrint encodes line as a RESP array of bulk strings (splitting on
// whitespace, the same shape redis-cli uses), writes it, reads one reply,
// and pretty-prints it.
func sendAndPrint(conn net.Conn, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	if _, err := conn.Write(resp.EncodeCommand(fields...)); err != nil {
		return err
	}

	_ = conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	v, err := readReply(conn)
	if err != nil {
		return err
	}
	_ = conn.SetReadDeadline(time.Time{})

	fmt.Print("\r\n" + format(v) + "\r\n")
	return nil
}

func readReply(conn net.Conn) (resp.Value, error) {
	var buf []byte
	tmp := make([]byte, 4096)
	for {
		v, _, err := resp.Decode(buf)
		if err == nil {
			return v, nil
		}
		if err != resp.ErrNeedMore {
			return resp.Value{}, err
		}
		m, rerr := conn.Read(tmp)
		if rerr != nil {
			return resp.Value{}, rerr
		}
		buf = append(buf, tmp[:m]...)
	}
}

// format renders a decoded reply the way redis-cli does: bulk strings as
// quoted text, arrays indented one level with 1-based indices, nil shapes
// as "(nil)".
func format(v resp.Value) string {
	return formatIndent(v, 0)
}

func formatIndent(v resp.Value, depth int) string {
	indent := strings.Repeat("  ", depth)
	switch v.Type {
	case resp.Null, resp.NullString, resp.NullArray:
		return indent + "(nil)"
	case resp.SimpleString:
		return indent + v.Str
	case resp.SimpleError:
		return indent + "(error) " + v.Str
	case resp.Integer:
		return indent + fmt.Sprintf("(integer) %d", v.Int)
	case resp.Double:
		return indent + fmt.Sprintf("(double) %g", v.Dbl)
	case resp.Boolean:
		return indent + fmt.Sprintf("(boolean) %t", v.Bool)
	case resp.BulkString, resp.BufBulk, resp.RDBFile:
		return indent + fmt.Sprintf("%q", string(v.Bytes))
	case resp.Array:
		if len(v.Array) == 0 {
			return indent + "(empty array)"
		}
		lines := make([]string, len(v.Array))
		for i, el := range v.Array {
			lines[i] = fmt.Sprintf("%s%d) %s", indent, i+1, strings.TrimLeft(formatIndent(el, depth+1), " "))
		}
		return strings.Join(lines, "\n")
	default:
		return indent + "(unknown)"
	}
}

// readLine reads one line of raw-mode terminal input, supporting arrow-key
// history navigation and basic line editing (backspace, ctrl-c, ctrl-d).
func readLine(reader *bufio.Reader, history *History) (string, error) {
	var line []rune
	cursor := 0
	fmt.Print("gridctl> ")

	redraw := func() {
		fmt.Print("\r\033[Kgridctl> " + string(line))
		if back := len(line) - cursor; back > 0 {
			fmt.Printf("\033[%dD", back)
		}
	}

	for {
		b, err := reader.ReadByte()
		if err != nil {
			return "", err
		}

		switch b {
		case '\r', '\n':
			fmt.Print("\r\n")
			return string(line), nil
		case 3: // Ctrl-C
			return "", io.EOF
		case 4: // Ctrl-D
			if len(line) == 0 {
				return "", io.EOF
			}
		case 127, 8: // Backspace
			if cursor > 0 {
				line = append(line[:cursor-1], line[cursor:]...)
				cursor--
				redraw()
			}
			continue
		case 27: // ESC, start of an arrow-key escape sequence
			b2, err := reader.ReadByte()
			if err != nil {
				return "", err
			}
			if b2 != '[' {
				continue
			}
			b3, err := reader.ReadByte()
			if err != nil {
				return "", err
			}
			switch b3 {
			case 'A': // Up
				if prev := history.Previous(); prev != "" {
					line = []rune(prev)
					cursor = len(line)
					redraw()
				}
			case 'B': // Down
				next := history.Next()
				line = []rune(next)
				cursor = len(line)
				redraw()
			case 'C': // Right
				if cursor < len(line) {
					cursor++
					fmt.Print("\033[C")
				}
			case 'D': // Left
				if cursor > 0 {
					cursor--
					fmt.Print("\033[D")
				}
			}
			continue
		default:
			line = append(line[:cursor], append([]rune{rune(b)}, line[cursor:]...)...)
			cursor++
			redraw()
		}
	}
}
