package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"
)

type lineResult struct {
	text string
	err  error
}

// Prompter asks questions on the terminal. A line is read only when asked
// for, and a line read for a canceled caller is handed to the next one.
type Prompter struct {
	r   *bufio.Reader
	out io.Writer
	fd  int // terminal for hidden input, -1 when input is piped

	mu      sync.Mutex
	reading bool
	pending chan lineResult
}

func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	fd := -1
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fd = int(f.Fd())
	}
	if out == nil {
		out = io.Discard
	}
	return &Prompter{
		r:       bufio.NewReader(in),
		out:     out,
		fd:      fd,
		pending: make(chan lineResult, 1),
	}
}

// Interactive reports whether input comes from a terminal.
func (p *Prompter) Interactive() bool {
	return p.fd >= 0
}

// ReadLine returns the next input line without its line ending. It
// implements voice.LineSource.
func (p *Prompter) ReadLine(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p.mu.Lock()
	if !p.reading {
		p.reading = true
		go func() {
			line, err := p.r.ReadString('\n')
			if err == io.EOF && line != "" {
				err = nil
			}
			p.pending <- lineResult{text: strings.TrimRight(line, "\r\n"), err: err}
		}()
	}
	p.mu.Unlock()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-p.pending:
		p.mu.Lock()
		p.reading = false
		p.mu.Unlock()
		return res.text, res.err
	}
}

// Ask prints label and returns the trimmed answer.
func (p *Prompter) Ask(ctx context.Context, label string) (string, error) {
	fmt.Fprintf(p.out, "%s: ", label)
	line, err := p.ReadLine(ctx)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// Password reads a secret without echo when input is a terminal.
func (p *Prompter) Password(ctx context.Context, label string) (string, error) {
	p.mu.Lock()
	busy := p.reading
	p.mu.Unlock()
	if p.fd < 0 || busy {
		line, err := p.Ask(ctx, label)
		return line, err
	}

	fmt.Fprintf(p.out, "%s: ", label)
	b, err := term.ReadPassword(p.fd)
	fmt.Fprintln(p.out)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(b), nil
}

// Confirm asks a yes/no question; an empty answer picks def.
func (p *Prompter) Confirm(ctx context.Context, label string, def bool) (bool, error) {
	hint := "[y/N]"
	if def {
		hint = "[Y/n]"
	}
	answer, err := p.Ask(ctx, label+" "+hint)
	if err != nil {
		return false, err
	}
	switch strings.ToLower(answer) {
	case "":
		return def, nil
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}
