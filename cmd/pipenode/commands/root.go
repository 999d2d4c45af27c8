// Package commands implements the pipenode command-line interface.
package commands

import (
	"fmt"

	"github.com/creachadair/pipenode/internal/config"
	"github.com/spf13/cobra"
)

// VersionInfo describes the build of the binary.
type VersionInfo struct {
	Version, Commit, Date string
}

func (v VersionInfo) String() string {
	return fmt.Sprintf("%s (commit: %s, built: %s)", v.Version, v.Commit, v.Date)
}

// globalFlags are the flags shared by every subcommand.
type globalFlags struct {
	configPath string
}

// load reads the configuration named by the --config flag, or by the
// environment if the flag is empty.
func (g *globalFlags) load() (*config.Config, error) { return config.Load(g.configPath) }

// NewRootCmd constructs the root command and its subcommands.
func NewRootCmd(v VersionInfo) *cobra.Command {
	var g globalFlags
	root := &cobra.Command{
		Use:   "pipenode",
		Short: "Receive data pushed over named local channels",
		Long: `pipenode runs a computation node that receives data pushed by another
process over a named local channel, and sends data to such nodes.

Each message is a single frame on a Unix-domain socket named after the
channel. The receiving node reports the latest message each time it is
computed, reuses the previous one when nothing new has arrived, and defers
its computation until the first message arrives.`,
		Version: v.String(),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.PersistentFlags().StringVarP(&g.configPath, "config", "c", "", "Config file (.yaml, .yml or .toml)")

	root.AddCommand(newListenCmd(&g), newSendCmd(&g), newVersionCmd(v))
	return root
}

func newVersionCmd(v VersionInfo) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "pipenode %s\n", v)
		},
	}
}
