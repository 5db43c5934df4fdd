// Package cmd assembles the nexusctl command tree.
package cmd

import (
	"errors"
	"io"
	"os"
	"strings"
	"time"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/fintellect/nexus/internal/nexusctl/cmd/chat"
	"github.com/fintellect/nexus/internal/nexusctl/cmd/conversations"
	"github.com/fintellect/nexus/internal/nexusctl/cmd/replay"
	"github.com/fintellect/nexus/internal/nexusctl/cmd/util"
	"github.com/fintellect/nexus/pkg/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// NewDefaultNexusCtlCommand creates the `nexusctl` command with default arguments.
func NewDefaultNexusCtlCommand() *cobra.Command {
	return NewNexusCtlCommand(os.Stdin, os.Stdout, os.Stderr)
}

// NewNexusCtlCommand creates the `nexusctl` command over the given streams.
func NewNexusCtlCommand(in io.Reader, out, errOut io.Writer) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("NEXUS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	cmds := &cobra.Command{
		Use:   "nexusctl",
		Short: "nexusctl talks to agents through a nexusd gateway",
		Long: heredoc.Doc(`
			nexusctl is the terminal client of nexusd. It streams agent turns into the
			terminal, manages stored conversations and replays recorded event streams.

			Global flags can also be set through NEXUS_SERVER, NEXUS_TOKEN and
			NEXUS_TIMEOUT, or in a config file given with --config. The "engine"
			section of that file tunes the streaming engine.`),
		SilenceUsage:  true,
		SilenceErrors: true,
		Run: func(cmd *cobra.Command, _ []string) {
			_ = cmd.Help()
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := logger.SetLevel(v.GetString("log-level")); err != nil {
				return err
			}
			logger.SetOutput(errOut)
			return readConfig(v)
		},
	}

	flags := cmds.PersistentFlags()
	flags.String(util.FlagServer, "http://127.0.0.1:11790", "Base URL of the nexusd gateway.")
	flags.String(util.FlagToken, "", "Bearer token for the gateway.")
	flags.Duration(util.FlagTimeout, 30*time.Second, "Timeout of each request to the gateway.")
	flags.String(util.FlagConfig, "", "Path to a nexusctl config file.")
	flags.String("log-level", "warn", "Log level of the client: debug, info, warn or error.")
	_ = v.BindPFlags(flags)

	ioStreams := util.IOStreams{In: in, Out: out, ErrOut: errOut}
	f := util.NewDefaultFactory(v)

	cmds.AddCommand(chat.NewCmdChat(f, ioStreams))
	cmds.AddCommand(conversations.NewCmdConversations(f, ioStreams))
	cmds.AddCommand(replay.NewCmdReplay(f, ioStreams))

	return cmds
}

func readConfig(v *viper.Viper) error {
	file := v.GetString(util.FlagConfig)
	if file == "" {
		return nil
	}
	v.SetConfigFile(file)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return err
	}
	logger.Debug("[Nexusctl] using config file %s", v.ConfigFileUsed())
	return nil
}
