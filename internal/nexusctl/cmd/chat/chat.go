// Package chat implements "nexusctl chat", a terminal client that streams an
// agent turn from nexusd through the agentstream engine.
package chat

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/fintellect/nexus/internal/agentstream"
	"github.com/fintellect/nexus/internal/agentstream/event"
	"github.com/fintellect/nexus/internal/nexusctl/cmd/util"
	"github.com/spf13/cobra"
)

// ChatOptions is the start of the data required to perform the operation.
type ChatOptions struct {
	Conversation string
	Title        string
	Message      string

	factory util.Factory
	util.IOStreams
}

var chatExample = heredoc.Doc(`
	# Start an interactive chat in a new conversation
	nexusctl chat

	# Continue an existing conversation
	nexusctl chat --conversation 5f0c...

	# Ask a single question and exit when the turn ends
	nexusctl chat "summarize docs/plan.md"`)

// NewChatOptions returns an initialized ChatOptions instance.
func NewChatOptions(ioStreams util.IOStreams) *ChatOptions {
	return &ChatOptions{IOStreams: ioStreams}
}

// NewCmdChat returns the chat command.
func NewCmdChat(f util.Factory, ioStreams util.IOStreams) *cobra.Command {
	o := NewChatOptions(ioStreams)

	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "Chat with the agent behind nexusd",
		Long: heredoc.Doc(`
			Open a conversation and stream agent turns into the terminal.

			Without a message the command enters interactive mode. Lines starting
			with a slash are commands: /new [title], /switch <id>, /tools, /files,
			/clear and /quit.`),
		Example:               chatExample,
		DisableFlagsInUseLine: true,
		Args:                  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := o.Complete(f, args); err != nil {
				return err
			}
			return o.Run(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&o.Conversation, "conversation", o.Conversation, "Conversation ID to open; a new one is created when empty.")
	cmd.Flags().StringVar(&o.Title, "title", o.Title, "Title of the conversation created when --conversation is empty.")

	return cmd
}

// Complete completes all the required options.
func (o *ChatOptions) Complete(f util.Factory, args []string) error {
	o.factory = f
	o.Message = strings.TrimSpace(strings.Join(args, " "))
	return nil
}

// Run opens the conversation and either answers one message or loops.
func (o *ChatOptions) Run(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	s := newSession(o.Out, o.ErrOut)
	engine, err := o.factory.NewEngine(ctx, agentstream.Dependencies{
		Observer: s.observer(),
		Notifier: s.notifier(),
	})
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	defer engine.Close()
	s.engine = engine

	convID, title, err := o.open(ctx, engine)
	if err != nil {
		return err
	}

	if o.Message != "" {
		final, err := s.ask(ctx, o.Message)
		if err != nil {
			return err
		}
		if final != event.StatusCompleted {
			return util.ErrExit
		}
		return nil
	}

	printWelcomeBanner(o.Out, o.factory.ServerURL(), convID, title)
	return s.loop(ctx, o.In, o.factory.ServerURL())
}

func (o *ChatOptions) open(ctx context.Context, engine *agentstream.Engine) (string, string, error) {
	id, title := o.Conversation, o.Title
	if id == "" {
		conv, err := engine.NewConversation(ctx, o.Title)
		if err != nil {
			return "", "", fmt.Errorf("create conversation: %w", err)
		}
		id, title = conv.ID, conv.Title
	}
	if err := engine.Switch(ctx, id); err != nil {
		return "", "", fmt.Errorf("open conversation %s: %w", id, err)
	}
	return id, title, nil
}
