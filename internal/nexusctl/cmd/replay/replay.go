// Package replay implements "nexusctl replay", which runs a recorded event
// stream through the engine offline and prints what it reconciled.
package replay

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/fintellect/nexus/internal/agentstream"
	"github.com/fintellect/nexus/internal/agentstream/event"
	"github.com/fintellect/nexus/internal/agentstream/session"
	"github.com/fintellect/nexus/internal/agentstream/store/local"
	"github.com/fintellect/nexus/internal/agentstream/turn"
	"github.com/fintellect/nexus/internal/nexus/service/conversation"
	"github.com/fintellect/nexus/internal/nexusctl/cmd/util"
	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"
)

// ReplayOptions is the start of the data required to perform the operation.
type ReplayOptions struct {
	File      string
	StoreType string
	StorePath string
	Wait      time.Duration

	factory util.Factory
	util.IOStreams
}

// NewReplayOptions returns an initialized ReplayOptions instance.
func NewReplayOptions(ioStreams util.IOStreams) *ReplayOptions {
	return &ReplayOptions{
		StoreType: conversation.StoreInMemory,
		Wait:      10 * time.Second,
		IOStreams: ioStreams,
	}
}

// NewCmdReplay returns the replay command.
func NewCmdReplay(f util.Factory, ioStreams util.IOStreams) *cobra.Command {
	o := NewReplayOptions(ioStreams)

	cmd := &cobra.Command{
		Use:   "replay <events.jsonl>",
		Short: "Replay a recorded agent event stream without a server",
		Long: heredoc.Doc(`
			Feed a recording of agent events, one JSON object per line, through the
			streaming engine as a single turn. The committed message, the consolidated
			tool calls and the extracted files are printed when the turn ends.

			Lines that are empty or start with # are skipped.`),
		Example: heredoc.Doc(`
			nexusctl replay testdata/plan.jsonl
			nexusctl replay --store sqlite --store-path /tmp/replay.sqlite run.jsonl`),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := o.Complete(f, args); err != nil {
				return err
			}
			if err := o.Validate(); err != nil {
				return err
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return o.Run(ctx)
		},
	}

	cmd.Flags().StringVar(&o.StoreType, "store", o.StoreType, "Store for the replayed conversation: inmemory, boltdb or sqlite.")
	cmd.Flags().StringVar(&o.StorePath, "store-path", o.StorePath, "Database file for the boltdb and sqlite stores.")
	cmd.Flags().DurationVar(&o.Wait, "wait", o.Wait, "How long to wait for the turn to end.")

	return cmd
}

// Complete completes all the required options.
func (o *ReplayOptions) Complete(f util.Factory, args []string) error {
	o.factory = f
	o.File = args[0]
	return nil
}

// Validate makes sure there is no discrepancy in command options.
func (o *ReplayOptions) Validate() error {
	if _, err := os.Stat(o.File); err != nil {
		return fmt.Errorf("recording: %w", err)
	}
	switch o.StoreType {
	case conversation.StoreInMemory, conversation.StoreBoltDB, conversation.StoreSQLite:
	default:
		return fmt.Errorf("unknown store %q", o.StoreType)
	}
	if o.Wait <= 0 {
		return errors.New("--wait must be positive")
	}
	return nil
}

// Run replays the recording as one turn and prints the outcome.
func (o *ReplayOptions) Run(ctx context.Context) error {
	mod, err := (&conversation.Config{
		StoreType:  o.StoreType,
		BoltDBPath: o.StorePath,
		SQLitePath: o.StorePath,
	}).Complete().New(ctx)
	if err != nil {
		return err
	}
	defer mod.Close()

	done := make(chan event.Status, 1)
	engine, err := o.factory.NewEngine(ctx, agentstream.Dependencies{
		Store:  local.New(mod.Service),
		Dialer: session.NewReplayFile(o.File),
		Submitter: session.SubmitterFunc(func(context.Context, string, string, string) error {
			return nil
		}),
		Notifier: turn.NotifierFunc(func(n turn.Notification) {
			fmt.Fprintf(o.ErrOut, "%s: %s\n", n.Title, n.Message)
		}),
		Observer: agentstream.Observer{
			OnStateChange: func(_ string, _, to event.Status) {
				if to.IsTerminal() {
					select {
					case done <- to:
					default:
					}
				}
			},
		},
	})
	if err != nil {
		return err
	}
	defer engine.Close()

	conv, err := engine.NewConversation(ctx, "replay "+filepath.Base(o.File))
	if err != nil {
		return err
	}
	if err := engine.Switch(ctx, conv.ID); err != nil {
		return err
	}
	if _, err := engine.Submit(ctx, "replay "+o.File); err != nil {
		return err
	}

	timer := time.NewTimer(o.Wait)
	defer timer.Stop()
	select {
	case <-done:
	case <-timer.C:
	case <-ctx.Done():
		return ctx.Err()
	}
	engine.Wait()

	return o.print(engine.Snapshot())
}

func (o *ReplayOptions) print(snap agentstream.Snapshot) error {
	fmt.Fprintf(o.Out, "conversation: %s\nstate:        %s\n", snap.ConversationID, snap.State)
	if snap.Commit == turn.CommitDone {
		fmt.Fprintln(o.Out, "committed:    yes")
	}

	fmt.Fprintln(o.Out, "\nmessage:")
	fmt.Fprintln(o.Out, strings.TrimSpace(snap.DisplayText))

	if len(snap.ToolCalls) > 0 {
		fmt.Fprintln(o.Out, "\ntool calls:")
		table := uitable.New()
		table.MaxColWidth = 60
		table.AddRow("#", "TOOL", "STATUS", "SUMMARY")
		for i, rec := range snap.ToolCalls {
			summary := strings.ReplaceAll(strings.TrimSpace(rec.Content), "\n", " ")
			if rec.Error != "" {
				summary = rec.Error
			}
			table.AddRow(i+1, rec.ToolName, rec.Status, summary)
		}
		fmt.Fprintln(o.Out, table)
	}

	if len(snap.Artifacts) > 0 {
		fmt.Fprintln(o.Out, "\nfiles:")
		table := uitable.New()
		table.AddRow("PATH", "LANGUAGE", "BYTES")
		for _, a := range snap.Artifacts {
			table.AddRow(a.Path, a.Language, len(a.Content))
		}
		fmt.Fprintln(o.Out, table)
	}

	switch {
	case snap.State == event.StatusCompleted:
		return nil
	case snap.LastError != nil:
		fmt.Fprintf(o.ErrOut, "turn failed: %s\n", snap.LastError.Message)
	default:
		fmt.Fprintf(o.ErrOut, "recording ended with the turn %s\n", snap.State)
	}
	return util.ErrExit
}
