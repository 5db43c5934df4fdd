package chat

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/fintellect/nexus/internal/agentstream"
	"github.com/fintellect/nexus/internal/agentstream/event"
	"github.com/fintellect/nexus/internal/agentstream/toolcall"
	"github.com/fintellect/nexus/internal/agentstream/turn"
)

// session renders one engine to the terminal. The engine reports through the
// observer and notifier returned by hooks; ask blocks until the turn ends.
type session struct {
	engine *agentstream.Engine
	out    io.Writer
	errOut io.Writer
	tty    bool

	mu      sync.Mutex
	started bool
	lines   int
	done    chan event.Status
}

func newSession(out, errOut io.Writer) *session {
	return &session{
		out:    out,
		errOut: errOut,
		tty:    isTerminal(out),
		done:   make(chan event.Status, 1),
	}
}

func (s *session) observer() agentstream.Observer {
	return agentstream.Observer{
		OnDelta: func(_, delta string) {
			s.mu.Lock()
			defer s.mu.Unlock()
			s.beginOutput()
			fmt.Fprint(s.out, delta)
			s.lines += strings.Count(delta, "\n")
		},
		OnToolStarted: func(_ string, rec toolcall.Record) {
			s.printTool(toolStartedLine(rec))
		},
		OnToolCompleted: func(_ string, rec toolcall.Record) {
			s.printTool(toolCompletedLine(rec, getTermWidth()))
		},
		OnStateChange: func(_ string, _, to event.Status) {
			if !to.IsTerminal() {
				return
			}
			select {
			case s.done <- to:
			default:
			}
		},
	}
}

func (s *session) notifier() turn.Notifier {
	return turn.NotifierFunc(func(n turn.Notification) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.beginOutput()
		fmt.Fprintln(s.out)
		s.lines++
		printNotification(s.errOut, n)
	})
}

// beginOutput clears the "Thinking..." indicator once. Callers hold mu.
func (s *session) beginOutput() {
	if !s.started {
		fmt.Fprint(s.out, clearLine)
		s.started = true
	}
}

func (s *session) printTool(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.beginOutput()
	fmt.Fprintf(s.out, "\n%s\n", line)
	s.lines += strings.Count(line, "\n") + 2
}

func (s *session) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = false
	s.lines = 0
	select {
	case <-s.done:
	default:
	}
}

// ask submits text and waits for the turn to end and its commit to resolve.
func (s *session) ask(ctx context.Context, text string) (event.Status, error) {
	printUserMessage(s.out, text)
	printAssistantLabel(s.out)
	s.reset()
	dim.Fprint(s.out, "Thinking...")

	if _, err := s.engine.Submit(ctx, text); err != nil {
		s.mu.Lock()
		s.beginOutput()
		s.mu.Unlock()
		return event.StatusError, err
	}

	var final event.Status
	select {
	case final = <-s.done:
	case <-ctx.Done():
		return event.StatusError, ctx.Err()
	}
	s.engine.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.beginOutput()
	fmt.Fprintln(s.out)

	snap := s.engine.Snapshot()
	if final == event.StatusCompleted && s.tty && snap.DisplayText != "" {
		// Replace the raw streamed text with its markdown rendering.
		for i := 0; i <= s.lines; i++ {
			fmt.Fprint(s.out, "\033[A\033[K")
		}
		fmt.Fprintln(s.out, renderMarkdownToTerminal(snap.DisplayText, getTermWidth()-4))
	}
	return final, nil
}

// loop runs the interactive line mode until EOF or /quit.
func (s *session) loop(ctx context.Context, in io.Reader, server string) error {
	prompt := bannerStyle.Render("> ")
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for {
		fmt.Fprint(s.out, prompt)
		if !scanner.Scan() {
			dim.Fprintln(s.out, "\nGoodbye!")
			return scanner.Err()
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		if !strings.HasPrefix(input, "/") {
			if _, err := s.ask(ctx, input); err != nil {
				if errors.Is(err, context.Canceled) {
					return nil
				}
				errColor.Fprintf(s.errOut, "Error: %v\n", err)
			}
			fmt.Fprintln(s.out)
			continue
		}

		cmd, arg, _ := strings.Cut(input, " ")
		arg = strings.TrimSpace(arg)
		switch cmd {
		case "/quit", "/exit":
			dim.Fprintln(s.out, "Goodbye!")
			return nil
		case "/clear":
			fmt.Fprint(s.out, "\033[H\033[2J")
		case "/tools":
			printToolTable(s.out, s.engine.Snapshot().ToolCalls)
		case "/files":
			printFiles(s.out, s.engine.Snapshot().Artifacts)
		case "/new":
			conv, err := s.engine.NewConversation(ctx, arg)
			if err == nil {
				err = s.engine.Switch(ctx, conv.ID)
			}
			if err != nil {
				errColor.Fprintf(s.errOut, "Error: %v\n", err)
				continue
			}
			printWelcomeBanner(s.out, server, conv.ID, conv.Title)
		case "/switch":
			if arg == "" {
				warnColor.Fprintln(s.errOut, "usage: /switch <conversation-id>")
				continue
			}
			if err := s.engine.Switch(ctx, arg); err != nil {
				errColor.Fprintf(s.errOut, "Error: %v\n", err)
				continue
			}
			snap := s.engine.Snapshot()
			dim.Fprintf(s.out, "Switched to %s (%d messages, %d tool calls)\n",
				arg, len(snap.Transcript), len(snap.ToolCalls))
		default:
			warnColor.Fprintf(s.errOut, "unknown command %s\n", cmd)
		}
	}
}
