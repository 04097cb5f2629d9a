package cmd

import (
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sarchlab/dmafifo/datarecording"
	"github.com/sarchlab/dmafifo/dmafifo"
	"github.com/sarchlab/dmafifo/fifocore"
	"github.com/sarchlab/dmafifo/idgen"
	"github.com/sarchlab/dmafifo/monitoring"
	"github.com/sarchlab/dmafifo/proptree"
	"github.com/sarchlab/dmafifo/simdev"
)

// Environment variables that provide defaults for flags that are not set on
// the command line.
var flagEnv = map[string]string{
	"channels":     "FIFOCTL_CHANNELS",
	"default-size": "FIFOCTL_DEFAULT_SIZE",
	"db":           "FIFOCTL_DB",
	"port":         "FIFOCTL_PORT",
}

type bringUpOptions struct {
	name        string
	channels    int
	defaultSize uint32
	capacity    uint64
	legacy      bool
	failChannel int
	failCode    uint32
	db          string
	serve       bool
	port        int
	openBrowser bool
	quiet       bool
}

func newBringUpCmd() *cobra.Command {
	opts := bringUpOptions{}

	cmd := &cobra.Command{
		Use:   "bringup",
		Short: "Bring up a DMA FIFO block on simulated hardware.",
		Long: "`bringup` creates a simulated device, brings up every FIFO " +
			"channel with its self-test and prints the resulting regions.",
		Args: cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			return applyEnvDefaults(cmd)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBringUp(cmd, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.name, "name", "DmaFIFO", "Name of the block.")
	flags.IntVar(&opts.channels, "channels", 2, "Number of FIFO channels.")
	flags.Uint32Var(&opts.defaultSize, "default-size", dmafifo.DefaultSize,
		"Region size of each channel after bring-up, in bytes.")
	flags.Uint64Var(&opts.capacity, "capacity", 0,
		"Size of the simulated staging buffer. "+
			"Defaults to channels times the default size.")
	flags.BoolVar(&opts.legacy, "legacy-bist", false,
		"Simulate cores that only report pass or fail.")
	flags.IntVar(&opts.failChannel, "fail-channel", -1,
		"Make the self-test of this channel fail.")
	flags.Uint32Var(&opts.failCode, "fail-code", 1,
		"Error code reported by the failing self-test.")
	flags.StringVar(&opts.db, "db", "",
		"Record self-tests and resizes into this SQLite database "+
			"(without the .sqlite3 suffix).")
	flags.BoolVar(&opts.serve, "serve", false,
		"Serve the block for monitoring until interrupted.")
	flags.IntVar(&opts.port, "port", 0,
		"Port of the monitoring server. 0 picks a random port.")
	flags.BoolVar(&opts.openBrowser, "open-browser", false,
		"Open the monitoring server in a browser.")
	flags.BoolVarP(&opts.quiet, "quiet", "q", false,
		"Do not log self-tests and resizes.")

	return cmd
}

func applyEnvDefaults(cmd *cobra.Command) error {
	for flag, env := range flagEnv {
		if cmd.Flags().Changed(flag) {
			continue
		}

		value, ok := os.LookupEnv(env)
		if !ok {
			continue
		}

		err := cmd.Flags().Set(flag, value)
		if err != nil {
			return fmt.Errorf("%s: %w", env, err)
		}
	}

	return nil
}

func runBringUp(cmd *cobra.Command, opts bringUpOptions) error {
	if opts.channels <= 0 {
		return fmt.Errorf("need at least one channel, got %d", opts.channels)
	}

	dev := buildDevice(opts)
	tree := proptree.New()
	monitor := monitoring.NewMonitor(tree).
		WithPortNumber(opts.port).
		WithBrowser(opts.openBrowser)
	progress := monitor.CreateProgressBar(
		opts.name+" bring-up", uint64(opts.channels))

	builder := dmafifo.MakeBuilder().
		WithTransport(dev).
		WithTree(tree).
		WithNumChannels(opts.channels).
		WithDefaultSize(opts.defaultSize).
		WithCoreMaker(fifocore.MakeBuilder().Maker()).
		WithHook(progress)

	if !opts.quiet {
		logger := log.New(cmd.ErrOrStderr(), "", log.LstdFlags)
		builder = builder.WithHook(dmafifo.NewLogHook(logger))
	}

	if opts.db != "" {
		recorder, err := datarecording.New(opts.db)
		if err != nil {
			return err
		}
		defer recorder.Close()

		hook, err := dmafifo.NewRecordingHook(recorder, idgen.NewGlobal())
		if err != nil {
			return err
		}

		builder = builder.WithHook(hook)
		defer func() {
			if hook.Err() != nil {
				fmt.Fprintf(cmd.ErrOrStderr(),
					"Recording failed: %v\n", hook.Err())
			}
		}()
	}

	blk, err := builder.Build(opts.name)
	if err != nil {
		return err
	}

	monitor.CompleteProgressBar(progress)
	printRegions(cmd.OutOrStdout(), blk)

	if !opts.serve {
		return nil
	}

	monitor.RegisterBlock(blk)

	_, err = monitor.StartServer()
	if err != nil {
		return err
	}
	defer monitor.StopServer()

	waitForInterrupt()

	return nil
}

func buildDevice(opts bringUpOptions) *simdev.Device {
	capacity := opts.capacity
	if capacity == 0 {
		capacity = uint64(opts.channels) * uint64(opts.defaultSize)
	}

	builder := simdev.MakeBuilder().
		WithNumChannels(opts.channels).
		WithCapacity(capacity)
	if opts.legacy {
		builder = builder.WithLegacyBIST()
	}

	dev := builder.Build(opts.name + ".Device")

	if opts.failChannel >= 0 && opts.failChannel < opts.channels {
		dev.InjectBISTError(opts.failChannel, opts.failCode)
	}

	return dev
}

func printRegions(w io.Writer, blk *dmafifo.Block) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	fmt.Fprintln(tw, "CHANNEL\tBASE\tDEPTH")
	for ch, r := range blk.Regions() {
		fmt.Fprintf(tw, "%d\t0x%08x\t0x%08x\n", ch, r.BaseAddr, r.Depth)
	}

	tw.Flush()
}

func waitForInterrupt() {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
	signal.Stop(sig)
}
