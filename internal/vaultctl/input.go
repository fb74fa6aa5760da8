package vaultctl

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"golang.org/x/term"
)

// Seams for tests.
var (
	readPassword = term.ReadPassword
	isTerminal   = term.IsTerminal
)

// readLine prints prompt to w and reads one trimmed line from r. A final
// line without newline is accepted.
func readLine(r io.Reader, w io.Writer, prompt string) (string, error) {
	if _, err := fmt.Fprint(w, prompt+"\n> "); err != nil {
		return "", err
	}
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && len(line) > 0 {
			return strings.TrimSpace(line), nil
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// readSecret reads a password without echo when r is a terminal. Pipes, and
// any input when asLine is set, are read as a single line.
func readSecret(r io.Reader, w io.Writer, prompt string, asLine bool) (string, error) {
	if f, ok := r.(*os.File); ok && !asLine && isTerminal(int(f.Fd())) {
		if _, err := fmt.Fprint(w, prompt+": "); err != nil {
			return "", err
		}
		pw, err := readPassword(int(f.Fd()))
		fmt.Fprintln(w)
		if err != nil {
			return "", err
		}
		return string(pw), nil
	}

	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && len(line) > 0) {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// startSpinner shows message next to a spinner while a storage call runs.
// Nothing is drawn unless w is a terminal, so scripted output stays clean.
func startSpinner(w io.Writer, message string) func() {
	f, ok := w.(*os.File)
	if !ok || !isTerminal(int(f.Fd())) {
		return func() {}
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(f))
	s.Suffix = " " + message
	_ = s.Color("cyan")
	s.Start()

	return s.Stop
}
