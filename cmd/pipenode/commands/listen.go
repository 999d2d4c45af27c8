package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/creachadair/pipenode"
	"github.com/creachadair/pipenode/codec"
	"github.com/creachadair/pipenode/datatree"
	"github.com/creachadair/pipenode/host"
	"github.com/creachadair/pipenode/internal/config"
	"github.com/creachadair/pipenode/internal/log"
	"github.com/creachadair/pipenode/internal/printer"
	"github.com/spf13/cobra"
)

// nodeID is the identifier of the receiver node in the engine.
const nodeID = "receiver"

type listenFlags struct {
	name     string
	interval time.Duration
	count    int
}

func newListenCmd(g *globalFlags) *cobra.Command {
	var f listenFlags
	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Run a receiver node on a channel",
		Long: `Run a receiver node on a channel and print each of its solutions.

The node is solved whenever a message arrives. With --interval it is also
solved periodically, reporting the last message received when nothing new
has arrived.

Examples:
  # Print each message sent to channel "alpha"
  pipenode listen --name alpha

  # Re-solve every second, and exit after three messages
  pipenode listen --name alpha --interval 1s --count 3`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runListen(cmd, g, &f)
		},
	}
	cmd.Flags().StringVarP(&f.name, "name", "n", "", "Channel name (overrides config)")
	cmd.Flags().DurationVarP(&f.interval, "interval", "i", 0, "Re-solve interval (overrides config; 0 disables)")
	cmd.Flags().IntVar(&f.count, "count", 0, "Exit after receiving this many messages (0 runs until interrupted)")
	return cmd
}

func runListen(cmd *cobra.Command, g *globalFlags, f *listenFlags) error {
	cfg, err := g.load()
	if err != nil {
		return err
	}
	if f.name != "" {
		cfg.Name = f.name
	}
	if cmd.Flags().Changed("interval") {
		cfg.Interval = config.Duration(f.interval)
	}
	if cfg.Name == "" {
		return errors.New("a channel name is required (--name or config)")
	}
	log.Setup(cfg.LogLevel)

	cdc, err := codec.ByName[*datatree.Node](cfg.Codec)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Solutions and asynchronous warnings print from different goroutines.
	var μ sync.Mutex
	out := cmd.OutOrStdout()

	var eng *host.Engine
	var rcv *pipenode.Receiver[*datatree.Node]
	eng = host.New(&host.Options{
		Logger: log.WithComponent("host"),
		OnSolve: func(r host.Result) {
			μ.Lock()
			printer.Result(out, r)
			μ.Unlock()
			if f.count > 0 && rcv.Stats().Consumed >= f.count {
				cancel()
			}
		},
	})
	rcv = pipenode.NewReceiver(cdc.Decode, &pipenode.Options{
		Dir:      cfg.Dir,
		MaxFrame: cfg.MaxFrame,
		NoChain:  !cfg.Chain,
		Logger:   log.WithChannel("receiver", cfg.Name),
		Notify:   func() { eng.Expire(nodeID) },
		Warn: func(msg string) {
			eng.Warn(nodeID, msg)
			μ.Lock()
			defer μ.Unlock()
			printer.Warning(out, "%s", msg)
		},
	})
	defer rcv.Close()

	if err := eng.Add(nodeID, pipenode.NewNode(rcv, pipenode.NameInput), map[string]any{
		pipenode.NameInput: cfg.Name,
	}); err != nil {
		return err
	}

	log.WithComponent("cli").Info("listening", "channel", cfg.Name, "dir", cfg.Dir)
	if err := eng.Run(ctx, cfg.Interval.Std()); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("run: %w", err)
	}
	return nil
}
