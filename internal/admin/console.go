// Package admin reads operator commands from a console and injects server
// notices into the relay.
package admin

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/gookit/color"
	"github.com/olekukonko/tablewriter"

	"github.com/Tyrowin/relaychat/internal/server"
)

const (
	exitCommand = "/exit"
	whoCommand  = "/who"
)

// Relay is the part of the hub the console drives.
type Relay interface {
	Broadcast(envelope server.Envelope, excludeID string) int
	Online() []server.SessionInfo
}

// Console executes one command per input line:
//
//	/exit   shut the server down
//	/who    list online sessions
//	<text>  broadcast "SERVER: <text>" to every client
type Console struct {
	in       io.Reader
	out      io.Writer
	relay    Relay
	log      *slog.Logger
	shutdown func()
}

// NewConsole creates a Console. shutdown is called once when /exit is read.
func NewConsole(in io.Reader, out io.Writer, relay Relay, log *slog.Logger, shutdown func()) *Console {
	return &Console{
		in:       in,
		out:      out,
		relay:    relay,
		log:      log,
		shutdown: shutdown,
	}
}

// Run reads commands until /exit, end of input, or ctx cancellation.
func (c *Console) Run(ctx context.Context) error {
	lines := make(chan string)
	var scanErr error

	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(c.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr = scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				if scanErr != nil {
					return fmt.Errorf("read admin input: %w", scanErr)
				}
				c.log.Info("Admin console input closed")
				return nil
			}
			if !c.Execute(line) {
				return nil
			}
		}
	}
}

// Execute runs a single command line and reports whether the console should
// keep reading.
func (c *Console) Execute(line string) bool {
	command := strings.TrimSpace(line)
	switch {
	case command == "":
		return true
	case strings.EqualFold(command, exitCommand):
		fmt.Fprintln(c.out, "Shutting down server...")
		c.log.Info("Shutdown requested from admin console")
		if c.shutdown != nil {
			c.shutdown()
		}
		return false
	case strings.EqualFold(command, whoCommand):
		c.printOnline()
		return true
	default:
		recipients := c.relay.Broadcast(server.ServerNotice(line), "")
		fmt.Fprintln(c.out, color.New(color.FgCyan).Render("[Server sent]: "+line))
		c.log.Info("Server notice broadcast", "recipients", recipients)
		return true
	}
}

func (c *Console) printOnline() {
	online := c.relay.Online()
	slices.SortFunc(online, func(a, b server.SessionInfo) int {
		return a.ConnectedAt.Compare(b.ConnectedAt)
	})

	table := tablewriter.NewWriter(c.out)
	table.SetHeader([]string{"Name", "Address", "Connected", "Session"})
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)
	for _, info := range online {
		table.Append([]string{
			info.Name,
			info.RemoteAddr,
			info.ConnectedAt.Format(time.RFC3339),
			info.ID,
		})
	}
	table.Render()
	fmt.Fprintf(c.out, "%d client(s) online\n", len(online))
}
