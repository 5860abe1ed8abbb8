package interaction

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/fatih/color"

	"github.com/hupe1980/cmdmesh/core"
)

// ConsoleOptions configures a Console.
type ConsoleOptions struct {
	NoColor bool
	// ShowTools renders tool requests and responses.
	ShowTools bool
}

// Console renders events to a terminal and answers questions by reading
// lines from its input. Streamed chunks are printed as they arrive; the
// final text of a streamed reply only terminates the line.
type Console struct {
	opts ConsoleOptions

	mu        sync.Mutex
	out       io.Writer
	in        *bufio.Reader
	streaming bool
	streamer  string

	speaker  *color.Color
	warn     *color.Color
	fail     *color.Color
	question *color.Color
	dim      *color.Color
}

var _ core.Interaction = (*Console)(nil)

// NewConsole creates a console reading answers from in and writing to out.
func NewConsole(in io.Reader, out io.Writer, optFns ...func(o *ConsoleOptions)) *Console {
	opts := ConsoleOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}

	c := &Console{
		opts:     opts,
		out:      out,
		in:       bufio.NewReader(in),
		speaker:  color.New(color.FgCyan, color.Bold),
		warn:     color.New(color.FgYellow),
		fail:     color.New(color.FgRed, color.Bold),
		question: color.New(color.FgGreen),
		dim:      color.New(color.Faint),
	}
	if opts.NoColor {
		for _, col := range []*color.Color{c.speaker, c.warn, c.fail, c.question, c.dim} {
			col.DisableColor()
		}
	}

	return c
}

// Notify renders ev.
func (c *Console) Notify(ev core.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.render(ev)
}

func (c *Console) render(ev core.Event) {
	switch e := ev.(type) {
	case core.Text:
		if e.Partial {
			if !c.streaming || c.streamer != e.Speaker {
				c.endStream()
				c.prefix(e.Speaker)
				c.streaming, c.streamer = true, e.Speaker
			}
			fmt.Fprint(c.out, e.Text)
			return
		}
		if c.streaming && c.streamer == e.Speaker {
			c.endStream()
			return
		}
		c.endStream()
		c.prefix(e.Speaker)
		fmt.Fprintln(c.out, e.Text)
	case core.Warn:
		c.endStream()
		c.warn.Fprintf(c.out, "warning: %s\n", e.Message)
	case core.ErrorEvent:
		c.endStream()
		if e.Code != "" {
			c.fail.Fprintf(c.out, "error [%s]: %s\n", e.Code, e.Message)
		} else {
			c.fail.Fprintf(c.out, "error: %s\n", e.Message)
		}
	case core.ToolRequest:
		if c.opts.ShowTools {
			c.endStream()
			c.dim.Fprintf(c.out, "-> %s %s\n", e.Tool, e.Arguments)
		}
	case core.ToolResponse:
		if c.opts.ShowTools {
			c.endStream()
			if e.Error != "" {
				c.dim.Fprintf(c.out, "<- %s failed: %s\n", e.Tool, e.Error)
			} else {
				c.dim.Fprintf(c.out, "<- %s ok\n", e.Tool)
			}
		}
	case core.Invite:
		c.endStream()
		c.question.Fprint(c.out, e.Prompt)
		if e.Default != "" {
			c.dim.Fprintf(c.out, " [%s]", e.Default)
		}
		fmt.Fprint(c.out, " ")
	case core.Choice:
		c.endStream()
		c.question.Fprintln(c.out, e.Prompt)
		for i, o := range e.Options {
			mark := " "
			if o == e.Default {
				mark = "*"
			}
			fmt.Fprintf(c.out, " %s %d) %s\n", mark, i+1, o)
		}
		fmt.Fprint(c.out, "> ")
	}
}

func (c *Console) prefix(speaker string) {
	if speaker != "" {
		c.speaker.Fprintf(c.out, "%s> ", speaker)
	}
}

func (c *Console) endStream() {
	if c.streaming {
		fmt.Fprintln(c.out)
		c.streaming, c.streamer = false, ""
	}
}

// Ask renders q and reads one line as the answer. An empty line selects
// the default. A Choice also accepts the 1-based option number.
func (c *Console) Ask(ctx context.Context, q core.Question) (core.Answer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return core.Answer{}, err
	}

	c.render(q)

	line, err := c.in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return core.Answer{}, core.NewError(core.ErrCodeStreamAborted, "console input closed", err)
	}
	value := strings.TrimSpace(line)

	switch qq := q.(type) {
	case core.Invite:
		if value == "" {
			value = qq.Default
		}
	case core.Choice:
		if value == "" {
			value = qq.Default
		}
		var n int
		if _, scanErr := fmt.Sscanf(value, "%d", &n); scanErr == nil && n >= 1 && n <= len(qq.Options) && fmt.Sprint(n) == value {
			value = qq.Options[n-1]
		}
	}

	return q.BuildAnswer(value), nil
}

// ReadLine reads the next input line. ok is false at end of input.
func (c *Console) ReadLine(prompt string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.endStream()
	c.question.Fprint(c.out, prompt)

	line, err := c.in.ReadString('\n')
	if err != nil && line == "" {
		return "", false
	}
	return strings.TrimRight(line, "\r\n"), true
}
