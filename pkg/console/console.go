package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/gwillem/armctl/pkg/command"
)

// MaxLineLength caps one operator line. Longer lines are rejected whole and
// reading continues with the next line.
const MaxLineLength = 4096

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

// Console reads operator lines from a reader and writes replies to a writer.
type Console struct {
	d      *Dispatcher
	in     io.Reader
	out    io.Writer
	logger *zap.Logger
}

// New creates a line console over in and out.
func New(d *Dispatcher, in io.Reader, out io.Writer) *Console {
	return &Console{d: d, in: in, out: out, logger: d.logger}
}

// Run serves lines until quit, end of input, or ctx is cancelled. End of
// input stops the controller. A read blocked in the reader is abandoned on
// cancellation.
func (c *Console) Run(ctx context.Context) error {
	fmt.Fprintln(c.out, titleStyle.Render("=== Motor Control Commands ==="))
	fmt.Fprintln(c.out, HelpText)
	fmt.Fprintln(c.out, dimStyle.Render("================================"))
	fmt.Fprintln(c.out, "Motor control system initialized. Type 'start' to begin control.")

	lines := make(chan inputLine)
	readErr := make(chan error, 1)
	go func() {
		r := bufio.NewReader(c.in)
		for {
			line, err := readLine(r, MaxLineLength)
			if err != nil {
				if errors.Is(err, io.EOF) {
					err = nil
				}
				readErr <- err
				return
			}
			select {
			case lines <- line:
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		if !c.d.state.Running() {
			return nil
		}
		fmt.Fprint(c.out, "> ")

		select {
		case <-ctx.Done():
			return nil

		case err := <-readErr:
			if c.d.state.Stop() {
				c.logger.Info("input closed, stopping")
			}
			if err != nil {
				return fmt.Errorf("read input: %w", err)
			}
			return nil

		case line := <-lines:
			if line.tooLong {
				c.print(c.rejectLong())
				continue
			}
			if isBlank(line.text) {
				continue
			}
			reply := c.d.Handle(line.text)
			c.print(reply)
			if reply.Quit {
				return nil
			}
		}
	}
}

type inputLine struct {
	text    string
	tooLong bool
}

// readLine reads one newline-terminated line. A line over limit bytes is
// consumed to its end and reported with tooLong set.
func readLine(r *bufio.Reader, limit int) (inputLine, error) {
	var (
		buf     []byte
		tooLong bool
		started bool
	)
	for {
		chunk, isPrefix, err := r.ReadLine()
		if err != nil {
			if started {
				return inputLine{text: string(buf), tooLong: tooLong}, nil
			}
			return inputLine{}, err
		}
		started = true
		if !tooLong {
			buf = append(buf, chunk...)
			if len(buf) > limit {
				tooLong = true
				buf = nil
			}
		}
		if !isPrefix {
			return inputLine{text: string(buf), tooLong: tooLong}, nil
		}
	}
}

func (c *Console) rejectLong() Reply {
	err := fmt.Errorf("%w: line longer than %d bytes", command.ErrMalformedInput, MaxLineLength)
	c.logger.Debug("rejected line", zap.Error(err))
	return Reply{Text: fmt.Sprintf("Invalid command format: line longer than %d bytes", MaxLineLength), Err: err}
}

func (c *Console) print(r Reply) {
	if r.Err != nil {
		fmt.Fprintln(c.out, errStyle.Render(r.Text))
		return
	}
	fmt.Fprintln(c.out, okStyle.Render(r.Text))
}

func isBlank(s string) bool {
	for _, r := range s {
		if r != ' ' && r != '\t' && r != '\r' {
			return false
		}
	}
	return true
}
