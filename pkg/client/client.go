// Package client captures a report interactively on the terminal.
package client

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/wurt83ow/netalerte-client/pkg/models"
)

// ErrAborted is returned when the user interrupts the prompts.
var ErrAborted = errors.New("report capture aborted")

const (
	defaultNetworkType = "4G"
	defaultSignalBars  = 3
	maxSignalBars      = 4
)

// NetworkChoices are offered for the network type prompt.
var NetworkChoices = []string{"2G", "3G", "4G", "5G", "wifi"}

// LineReader is the part of *readline.Instance the prompts use.
type LineReader interface {
	SetPrompt(prompt string)
	Readline() (string, error)
}

// Reporter asks for report fields one prompt at a time.
type Reporter struct {
	rl  LineReader
	out io.Writer // menus and validation messages
	cl  io.Closer // the readline instance, nil for injected readers
}

// NewReporter opens a readline session on the terminal.
func NewReporter() (*Reporter, error) {
	rl, err := readline.New("> ")
	if err != nil {
		return nil, fmt.Errorf("open terminal: %w", err)
	}
	return &Reporter{rl: rl, out: rl.Stdout(), cl: rl}, nil
}

// NewReporterWith drives the prompts from rl and writes messages to out.
func NewReporterWith(rl LineReader, out io.Writer) *Reporter {
	if out == nil {
		out = os.Stdout
	}
	return &Reporter{rl: rl, out: out}
}

// Close releases the terminal.
func (r *Reporter) Close() error {
	if r.cl == nil {
		return nil
	}
	return r.cl.Close()
}

// CaptureReport asks for every report field. The result is a draft: it has no
// ID or timestamp yet.
func (r *Reporter) CaptureReport() (models.PendingReport, error) {
	var rep models.PendingReport
	var err error

	if rep.Operator, err = r.choose("Operator", models.Operators, ""); err != nil {
		return rep, err
	}
	if rep.ProblemType, err = r.choose("Problem", models.ProblemTypes, ""); err != nil {
		return rep, err
	}
	if rep.NetworkType, err = r.choose("Network type", NetworkChoices, defaultNetworkType); err != nil {
		return rep, err
	}

	bars, err := r.number(fmt.Sprintf("Signal bars 0-%d [%d]: ", maxSignalBars, defaultSignalBars), 0, maxSignalBars, float64(defaultSignalBars))
	if err != nil {
		return rep, err
	}
	rep.SignalStrength = models.Float(*bars * 100 / maxSignalBars)

	if rep.Latitude, err = r.number("Latitude (blank to skip): ", -90, 90, -1000); err != nil {
		return rep, err
	}
	if rep.Longitude, err = r.number("Longitude (blank to skip): ", -180, 180, -1000); err != nil {
		return rep, err
	}

	if rep.Region, err = r.line("Region (optional): "); err != nil {
		return rep, err
	}
	if rep.Description, err = r.line("Description (optional): "); err != nil {
		return rep, err
	}
	return rep, nil
}

func (r *Reporter) line(prompt string) (string, error) {
	r.rl.SetPrompt(prompt)
	s, err := r.rl.Readline()
	if err != nil {
		if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
			return "", ErrAborted
		}
		return "", err
	}
	return strings.TrimSpace(s), nil
}

// choose accepts a 1-based index or a case-insensitive name. An empty answer
// picks def when def is set.
func (r *Reporter) choose(title string, options []string, def string) (string, error) {
	fmt.Fprintf(r.out, "%s:\n", title)
	for i, o := range options {
		fmt.Fprintf(r.out, "  %d) %s\n", i+1, o)
	}
	prompt := "Choose: "
	if def != "" {
		prompt = fmt.Sprintf("Choose [%s]: ", def)
	}

	for {
		answer, err := r.line(prompt)
		if err != nil {
			return "", err
		}
		if answer == "" && def != "" {
			return def, nil
		}
		if n, err := strconv.Atoi(answer); err == nil && n >= 1 && n <= len(options) {
			return options[n-1], nil
		}
		for _, o := range options {
			if strings.EqualFold(o, answer) {
				return o, nil
			}
		}
		fmt.Fprintf(r.out, "Pick a number between 1 and %d!\n", len(options))
	}
}

// number reads a value in [lo,hi]. An empty answer yields def, or nil when
// def lies outside the range.
func (r *Reporter) number(prompt string, lo, hi, def float64) (*float64, error) {
	for {
		answer, err := r.line(prompt)
		if err != nil {
			return nil, err
		}
		if answer == "" {
			if def < lo || def > hi {
				return nil, nil
			}
			return models.Float(def), nil
		}
		v, err := strconv.ParseFloat(strings.ReplaceAll(answer, ",", "."), 64)
		if err != nil || v < lo || v > hi {
			fmt.Fprintf(r.out, "Enter a number between %g and %g!\n", lo, hi)
			continue
		}
		return models.Float(v), nil
	}
}
