// Package conversations implements "nexusctl conversations".
package conversations

import (
	"context"
	"fmt"
	"time"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/fintellect/nexus/internal/nexusctl/cmd/util"
	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"
)

// NewCmdConversations returns the conversations command group.
func NewCmdConversations(f util.Factory, ioStreams util.IOStreams) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "conversations",
		Aliases: []string{"conv"},
		Short:   "Manage conversations stored by nexusd",
		Example: heredoc.Doc(`
			nexusctl conversations list
			nexusctl conversations create "Quarterly plan"
			nexusctl conversations delete 5f0c...`),
	}
	cmd.AddCommand(newCmdList(f, ioStreams))
	cmd.AddCommand(newCmdCreate(f, ioStreams))
	cmd.AddCommand(newCmdDelete(f, ioStreams))
	return cmd
}

func newCmdList(f util.Factory, ioStreams util.IOStreams) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List conversations, most recently updated first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			convs, err := f.Store().ListConversations(ctxOf(cmd))
			if err != nil {
				return err
			}
			if len(convs) == 0 {
				fmt.Fprintln(ioStreams.Out, "No conversations.")
				return nil
			}
			table := uitable.New()
			table.MaxColWidth = 48
			table.AddRow("ID", "TITLE", "UPDATED")
			for _, c := range convs {
				table.AddRow(c.ID, c.Title, c.UpdatedAt.Local().Format(time.DateTime))
			}
			fmt.Fprintln(ioStreams.Out, table)
			return nil
		},
	}
}

func newCmdCreate(f util.Factory, ioStreams util.IOStreams) *cobra.Command {
	return &cobra.Command{
		Use:   "create [title]",
		Short: "Create a conversation and print its ID",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			title := ""
			if len(args) == 1 {
				title = args[0]
			}
			conv, err := f.Store().CreateConversation(ctxOf(cmd), title)
			if err != nil {
				return err
			}
			fmt.Fprintln(ioStreams.Out, conv.ID)
			return nil
		},
	}
}

func newCmdDelete(f util.Factory, ioStreams util.IOStreams) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>...",
		Short: "Delete conversations with their messages and tool calls",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, id := range args {
				if err := f.Store().DeleteConversation(ctxOf(cmd), id); err != nil {
					return fmt.Errorf("delete %s: %w", id, err)
				}
				fmt.Fprintf(ioStreams.Out, "conversation %q deleted\n", id)
			}
			return nil
		},
	}
}

func ctxOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
