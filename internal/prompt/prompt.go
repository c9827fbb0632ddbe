package prompt

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/olekukonko/tablewriter"

	"candlescope/pkg/model"
)

// Selector asks the run questions on a line-oriented terminal
type Selector struct {
	in  *bufio.Reader
	out io.Writer

	start sync.Once
	lines chan line
	eof   bool
}

type line struct {
	text string
	err  error
}

// New creates a selector reading answers from in and printing menus to out
func New(in io.Reader, out io.Writer) *Selector {
	return &Selector{in: bufio.NewReader(in), out: out, lines: make(chan line, 1)}
}

func (s *Selector) Category(ctx context.Context) (string, error) {
	fmt.Fprintln(s.out, "Choose a category:")
	fmt.Fprintln(s.out, "1. Stock")
	fmt.Fprintln(s.out, "2. Mutual Fund")
	return s.ask(ctx, "Enter 1 or 2: ")
}

func (s *Selector) Count(ctx context.Context) (string, error) {
	return s.ask(ctx, "\nHow many top stocks do you want to view? ")
}

// Choose lists the candidates and returns the raw index answer
func (s *Selector) Choose(ctx context.Context, c model.Category, candidates []model.SymbolCandidate) (string, error) {
	heading := "Top Stocks:"
	if c == model.CategoryFund {
		heading = "Top Mutual Funds:"
	}
	fmt.Fprintf(s.out, "\n%s\n", heading)

	table := tablewriter.NewTable(s.out, tablewriter.WithHeader([]string{"#", "Ticker"}))
	for _, cand := range candidates {
		table.Append([]string{strconv.Itoa(cand.Rank), cand.Ticker})
	}
	if err := table.Render(); err != nil {
		return "", fmt.Errorf("rendering menu: %w", err)
	}

	return s.ask(ctx, fmt.Sprintf("Enter the number of the %s you want to chart: ", c.Noun()))
}

// ask prints the question and reads one trimmed line. End of input is an
// empty answer, which the caller rejects. A cancelled ctx returns at once
// even while the read is still blocked.
func (s *Selector) ask(ctx context.Context, question string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	fmt.Fprint(s.out, question)

	if s.eof {
		return "", nil
	}
	s.start.Do(func() { go s.readLines() })

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case l := <-s.lines:
		if l.err != nil {
			s.eof = true
			if !errors.Is(l.err, io.EOF) {
				return "", fmt.Errorf("reading answer: %w", l.err)
			}
		}
		return strings.TrimSpace(l.text), nil
	}
}

// readLines feeds lines to ask until the input ends
func (s *Selector) readLines() {
	for {
		text, err := s.in.ReadString('\n')
		s.lines <- line{text: text, err: err}
		if err != nil {
			return
		}
	}
}
