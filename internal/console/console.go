// Package console implements the broker's interactive operator
// terminal: a thin adapter over the state engine's Send/Broadcast
// operations, run on stdin inside the broker process.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/skvil/piertotum/internal/state"
)

// Console reads operator commands from an input stream and reports
// results to an output stream. Every message it sends uses the reserved
// "broker" sender, which the state engine exempts from the
// sender-must-be-registered check.
type Console struct {
	engine *state.Engine
	in     io.Reader
	out    io.Writer
	logger *zap.Logger
}

// New creates a Console reading from in and writing to out.
func New(engine *state.Engine, in io.Reader, out io.Writer, logger *zap.Logger) *Console {
	return &Console{engine: engine, in: in, out: out, logger: logger.Named("console")}
}

// Run reads one command per line until ctx is cancelled or the input
// stream is exhausted. Errors from individual commands are reported to
// out, never returned — a malformed command must not stop the console.
func (c *Console) Run(ctx context.Context) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(c.in)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			c.handle(strings.TrimSpace(line))
		}
	}
}

func (c *Console) handle(line string) {
	switch {
	case line == "":
		return

	case line == "/help":
		c.printHelp()

	case line == "/agents":
		c.printAgents()

	case strings.HasPrefix(line, "@"):
		c.handleTargetedSend(line)

	default:
		c.handleBroadcast(line)
	}
}

func (c *Console) printHelp() {
	fmt.Fprintln(c.out, "commands:")
	fmt.Fprintln(c.out, "  /help              show this message")
	fmt.Fprintln(c.out, "  /agents            list registered agents")
	fmt.Fprintln(c.out, "  @<id> <text>       send <text> to agent <id>")
	fmt.Fprintln(c.out, "  <text>             broadcast <text> to every agent")
}

func (c *Console) printAgents() {
	st := c.engine.Status()
	if len(st.Agents) == 0 {
		fmt.Fprintln(c.out, "no agents registered")
		return
	}
	for _, a := range st.Agents {
		fmt.Fprintf(c.out, "  %s  %s  project=%s  unread=%d\n", a.ID, a.Name, a.Project, a.UnreadMessages)
	}
}

func (c *Console) handleTargetedSend(line string) {
	rest := strings.TrimPrefix(line, "@")
	id, text, found := strings.Cut(rest, " ")
	if !found || strings.TrimSpace(text) == "" {
		fmt.Fprintln(c.out, "usage: @<id> <text>")
		return
	}

	if _, err := c.engine.Send(state.BrokerSender, id, text, "text"); err != nil {
		fmt.Fprintf(c.out, "error: %s\n", err)
		return
	}
	fmt.Fprintf(c.out, "sent to %s\n", id)
}

func (c *Console) handleBroadcast(line string) {
	sentTo, err := c.engine.Broadcast(state.BrokerSender, line, "text")
	if err != nil {
		fmt.Fprintf(c.out, "error: %s\n", err)
		return
	}
	fmt.Fprintf(c.out, "broadcast to %d agents\n", sentTo)
}
