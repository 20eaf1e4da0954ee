// Package prompt models the two user interactions the document core needs:
// a yes/no confirmation and a blocking error notice.
package prompt

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"
)

// Prompter asks the user things.
type Prompter interface {
	// AskYesNo blocks until the user answers. It returns true for yes.
	AskYesNo(title, question string) bool
	// ShowError shows a message the user must acknowledge.
	ShowError(title, message string)
}

// Console prompts on a terminal. When the input is not a terminal it never
// reads and answers every question with Default.
type Console struct {
	mu          sync.Mutex
	in          *bufio.Reader
	out         io.Writer
	interactive bool

	// Default is the answer used when the console is not interactive.
	Default bool
}

// NewConsole creates a console prompter on in and out.
func NewConsole(in *os.File, out io.Writer) *Console {
	return &Console{
		in:          bufio.NewReader(in),
		out:         out,
		interactive: term.IsTerminal(int(in.Fd())),
	}
}

// Interactive reports whether the console reads answers from a terminal.
func (c *Console) Interactive() bool { return c.interactive }

// AskYesNo implements Prompter.
func (c *Console) AskYesNo(title, question string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.interactive {
		fmt.Fprintf(c.out, "%s: %s [answering %s]\n", title, question, yesNo(c.Default))
		return c.Default
	}

	for {
		fmt.Fprintf(c.out, "%s: %s [y/n] ", title, question)
		line, err := c.in.ReadString('\n')
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return true
		case "n", "no":
			return false
		}
		if err != nil {
			return c.Default
		}
	}
}

// ShowError implements Prompter.
func (c *Console) ShowError(title, message string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, "%s: %s\n", title, message)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// Auto answers every question with Answer and records shown errors.
// It is used for batch runs and tests.
type Auto struct {
	mu     sync.Mutex
	Answer bool
	asked  []string
	errors []string
}

// AskYesNo implements Prompter.
func (a *Auto) AskYesNo(title, question string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.asked = append(a.asked, title+": "+question)
	return a.Answer
}

// ShowError implements Prompter.
func (a *Auto) ShowError(title, message string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.errors = append(a.errors, title+": "+message)
}

// Asked returns the questions asked so far.
func (a *Auto) Asked() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.asked...)
}

// Errors returns the errors shown so far.
func (a *Auto) Errors() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.errors...)
}
