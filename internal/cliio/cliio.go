// Package cliio holds the small terminal I/O helpers shared by commands.
package cliio

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/skaphos/topickeeper/internal/tableutil"
)

// Prompter asks questions on a terminal. It keeps one buffered reader so
// consecutive prompts do not lose typed-ahead input.
type Prompter struct {
	out io.Writer
	in  *bufio.Reader
}

// NewPrompter returns a Prompter writing to out and reading from in.
func NewPrompter(out io.Writer, in io.Reader) *Prompter {
	return &Prompter{out: out, in: bufio.NewReader(in)}
}

// Line writes prompt and returns the next input line without its newline.
// EOF on an empty line is returned as io.EOF.
func (p *Prompter) Line(prompt string) (string, error) {
	if _, err := fmt.Fprint(p.out, prompt); err != nil {
		return "", err
	}
	line, err := p.in.ReadString('\n')
	if err == io.EOF && line != "" {
		err = nil
	}
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// YesNo writes prompt and reports whether the answer was y or yes.
// EOF counts as no.
func (p *Prompter) YesNo(prompt string) (bool, error) {
	line, err := p.Line(prompt)
	if err == io.EOF {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	choice := strings.ToLower(strings.TrimSpace(line))
	return choice == "y" || choice == "yes", nil
}

// Confirm is YesNo with a "(y/n)" suffix. It satisfies review.Confirmer.
func (p *Prompter) Confirm(ctx context.Context, prompt string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return p.YesNo(prompt + " (y/n): ")
}

// WriteTable renders a simple tab-separated table with optional headers.
func WriteTable(out io.Writer, stripEscape bool, noHeaders bool, headers []string, rows [][]string) error {
	w := tableutil.New(out, stripEscape)
	if err := tableutil.PrintHeaders(w, noHeaders, strings.Join(headers, "\t")); err != nil {
		return err
	}
	for _, row := range rows {
		if _, err := fmt.Fprintln(w, strings.Join(row, "\t")); err != nil {
			return err
		}
	}
	return w.Flush()
}
