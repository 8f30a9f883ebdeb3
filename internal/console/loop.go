// Package console runs the interactive question/answer loop on a terminal.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"rag-chat/internal/session"
	"rag-chat/internal/usecase"
)

const (
	exitKeyword   = "exit"
	resetKeyword  = "/reset"
	promptText    = "Enter your question (or 'exit' to quit): "
	invalidInput  = "Please enter a valid question."
	exitingNotice = "Exiting the application."
)

// Sender runs one exchange against a session.
type Sender interface {
	Send(ctx context.Context, sess *session.Session, text string) (usecase.Reply, error)
}

type Loop struct {
	sender       Sender
	sess         *session.Session
	systemPrompt string
	in           *bufio.Scanner
	out          io.Writer

	prompt *color.Color
	reply  *color.Color
	notice *color.Color
	failed *color.Color
}

func NewLoop(sender Sender, sess *session.Session, systemPrompt string, in io.Reader, out io.Writer) (*Loop, error) {
	if sender == nil {
		return nil, errors.New("console: sender must not be nil")
	}
	if sess == nil {
		return nil, errors.New("console: session must not be nil")
	}
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	return &Loop{
		sender:       sender,
		sess:         sess,
		systemPrompt: systemPrompt,
		in:           scanner,
		out:          out,
		prompt:       color.New(color.FgGreen, color.Bold),
		reply:        color.New(color.FgCyan, color.Bold),
		notice:       color.New(color.FgYellow),
		failed:       color.New(color.FgRed),
	}, nil
}

// Run reads questions until "exit", end of input or ctx is done. Provider
// failures are printed and the loop keeps going. Cancelling ctx returns
// immediately, even while waiting for input.
func (l *Loop) Run(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	lines := make(chan string)
	readErr := make(chan error, 1)
	stop := make(chan struct{})
	defer close(stop)
	go l.readLines(lines, readErr, stop)

	for {
		l.prompt.Fprint(l.out, promptText)

		var raw string
		select {
		case <-ctx.Done():
			fmt.Fprintln(l.out)
			return ctx.Err()
		case err := <-readErr:
			fmt.Fprintln(l.out)
			return err
		case raw = <-lines:
		}
		input := strings.TrimSpace(raw)

		switch {
		case strings.EqualFold(input, exitKeyword):
			fmt.Fprintln(l.out, exitingNotice)
			return nil
		case input == "":
			l.notice.Fprintln(l.out, invalidInput)
			continue
		case strings.EqualFold(input, resetKeyword):
			l.sess.Reset(l.systemPrompt)
			l.notice.Fprintln(l.out, "Conversation cleared.")
			continue
		}

		reply, err := l.sender.Send(ctx, l.sess, raw)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				fmt.Fprintln(l.out)
				return ctxErr
			}
			l.failed.Fprintf(l.out, "Error: %s\n", describe(err))
			continue
		}
		l.reply.Fprint(l.out, "AI: ")
		fmt.Fprintln(l.out, reply.Answer)
		if refs := usecase.FormatCitations(reply.Citations); refs != "" {
			l.notice.Fprintln(l.out, refs)
		}
	}
}

// readLines feeds scanned lines to Run. A read blocked on the terminal is
// abandoned when Run returns; the scanner is not used again.
func (l *Loop) readLines(lines chan<- string, readErr chan<- error, stop <-chan struct{}) {
	for l.in.Scan() {
		select {
		case lines <- l.in.Text():
		case <-stop:
			return
		}
	}
	readErr <- l.in.Err()
}

func describe(err error) string {
	var uerr *usecase.Error
	if !errors.As(err, &uerr) {
		return err.Error()
	}
	switch uerr.Code {
	case usecase.ErrorInvalidInput:
		return invalidInput
	case usecase.ErrorRateLimited:
		return "the service is rate limiting requests, try again shortly"
	}
	if uerr.Err != nil {
		return uerr.Err.Error()
	}
	return string(uerr.Code)
}
