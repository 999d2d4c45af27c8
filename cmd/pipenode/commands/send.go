package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/creachadair/pipenode/codec"
	"github.com/creachadair/pipenode/datatree"
	"github.com/creachadair/pipenode/internal/printer"
	"github.com/creachadair/pipenode/pipe"
	"github.com/spf13/cobra"
)

type sendFlags struct {
	name    string
	value   string
	file    string
	timeout time.Duration
}

func newSendCmd(g *globalFlags) *cobra.Command {
	var f sendFlags
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send one message to a channel",
		Long: `Send one message to a channel, waiting for a listener to accept it.

The message is either a single value given with --value, which is parsed
as JSON when possible and sent as a string otherwise, or a complete data
tree read from --file in the configured codec.

Examples:
  pipenode send --name alpha --value 42
  pipenode send --name alpha --file tree.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSend(cmd, g, &f)
		},
	}
	cmd.Flags().StringVarP(&f.name, "name", "n", "", "Channel name (overrides config)")
	cmd.Flags().StringVarP(&f.value, "value", "v", "", "Value to send")
	cmd.Flags().StringVarP(&f.file, "file", "f", "", "File holding the data tree to send")
	cmd.Flags().DurationVar(&f.timeout, "timeout", 10*time.Second, "How long to wait for a listener")
	cmd.MarkFlagsMutuallyExclusive("value", "file")
	cmd.MarkFlagsOneRequired("value", "file")
	return cmd
}

func runSend(cmd *cobra.Command, g *globalFlags, f *sendFlags) error {
	cfg, err := g.load()
	if err != nil {
		return err
	}
	if f.name != "" {
		cfg.Name = f.name
	}
	if cfg.Name == "" {
		return errors.New("a channel name is required (--name or config)")
	}
	cdc, err := codec.ByName[*datatree.Node](cfg.Codec)
	if err != nil {
		return err
	}

	var tree *datatree.Node
	if f.file != "" {
		data, err := os.ReadFile(f.file)
		if err != nil {
			return err
		}
		if tree, err = cdc.Decode(data); err != nil {
			return fmt.Errorf("read %q: %w", f.file, err)
		}
	} else {
		tree = datatree.New("value", parseValue(f.value))
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), f.timeout)
	defer cancel()
	opts := &pipe.Options{Dir: cfg.Dir, MaxFrame: cfg.MaxFrame}
	if err := pipe.SendValue(ctx, cfg.Name, tree, cdc.Encode, opts); err != nil {
		return err
	}
	printer.Success(cmd.OutOrStdout(), "sent %d node(s) to %q", tree.Len(), cfg.Name)
	return nil
}

// parseValue interprets s as a JSON value if possible, or else as a string.
func parseValue(s string) any {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return s
	}
	return v
}
