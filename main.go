package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	Td "github.com/maroda/teachtiles/display"
	To "github.com/maroda/teachtiles/obvy"
	Tp "github.com/maroda/teachtiles/plugin"
	Ts "github.com/maroda/teachtiles/server"
	Tt "github.com/maroda/teachtiles/types"
	"github.com/spf13/cobra"
)

type options struct {
	config    string
	transport string
	input     string
	device    string
	httpAddr  string
	logFile   string
	debug     bool
	local     bool
	headless  bool
}

var opts options

var rootCmd = &cobra.Command{
	Use:   "teachtiles",
	Short: "Piano MIDI to LED matrix bridge",
	Long: `TeachTiles reads a MIDI keyboard, turns each finished note into a
five byte packet and sends it over one transport (link, peer or datagram)
to a matrix that lights it up.`,
	SilenceUsage: true,
}

var bridgeCmd = &cobra.Command{
	Use:   "bridge",
	Short: "Read MIDI and send finished notes",
	RunE:  runBridge,
}

var matrixCmd = &cobra.Command{
	Use:   "matrix",
	Short: "Receive notes and drive the LED matrix",
	RunE:  runMatrix,
}

var statusCmd = &cobra.Command{
	Use:   "status [url]",
	Short: "Show what a running bridge is hearing",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runStatus,
}

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List MIDI input ports",
	Run: func(cmd *cobra.Command, args []string) {
		ins := Tp.MIDIInputs()
		if len(ins) == 0 {
			fmt.Println("no MIDI inputs")
			return
		}
		for i, name := range ins {
			fmt.Printf("%d: %s\n", i, name)
		}
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(Ts.Version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&opts.config, "config", "c", "",
		"Config file (.json, .yaml)")
	rootCmd.PersistentFlags().StringVarP(&opts.transport, "transport", "t", "",
		"Transport: link, peer or datagram")
	rootCmd.PersistentFlags().StringVar(&opts.httpAddr, "http", "",
		"Address for metrics and the API")
	rootCmd.PersistentFlags().StringVarP(&opts.logFile, "log", "l", "",
		"Write logs to this file")
	rootCmd.PersistentFlags().BoolVar(&opts.debug, "debug", false,
		"Debug logging")

	bridgeCmd.Flags().StringVarP(&opts.input, "input", "i", "",
		"MIDI input: serial, midi or stdin")
	bridgeCmd.Flags().StringVarP(&opts.device, "device", "d", "",
		"Serial device, or MIDI port index or name")
	bridgeCmd.Flags().BoolVar(&opts.local, "local", false,
		"Also render in this terminal")

	matrixCmd.Flags().BoolVar(&opts.headless, "headless", false,
		"No terminal panel, web viewers only")

	rootCmd.AddCommand(bridgeCmd, matrixCmd, statusCmd, portsCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// setupLogging picks the level and where logs go. The terminal panel
// owns stdout, so a file is used whenever it is on.
func setupLogging(tui bool) (func(), error) {
	level := slog.LevelInfo
	if opts.debug || strings.EqualFold(Ts.FillEnvVar("TEACHTILES_LOG_LEVEL"), "debug") {
		level = slog.LevelDebug
	}

	out := os.Stderr
	closer := func() {}
	path := opts.logFile
	if path == "" && tui {
		path = "teachtiles.log"
	}
	if path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("log file: %w", err)
		}
		out = f
		closer = func() { f.Close() }
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level})))
	return closer, nil
}

// loadConfig is defaults, then the file, then env, then flags
func loadConfig() (*Ts.ConfigFile, error) {
	c := Ts.DefaultConfig()
	if opts.config != "" {
		loaded, err := Ts.LoadConfigFileName(opts.config)
		if err != nil {
			return nil, fmt.Errorf("config %q: %w", opts.config, err)
		}
		c = loaded
	}
	c.ApplyEnv()

	if opts.transport != "" {
		c.Transport = Tt.TransportKind(opts.transport)
	}
	if opts.httpAddr != "" {
		c.HTTPAddr = opts.httpAddr
	}
	if opts.input != "" {
		c.Input.Source = opts.input
	}
	if opts.device != "" {
		c.Input.Device = opts.device
	}
	return c, c.Validate()
}

func runBridge(cmd *cobra.Command, args []string) error {
	closeLog, err := setupLogging(opts.local)
	if err != nil {
		return err
	}
	defer closeLog()

	c, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdown := To.InitOTel()
	defer shutdown()

	stats := To.NewStatsInternal()
	b, err := Ts.NewBridgeFromConfig(c, stats)
	if err != nil {
		return err
	}
	defer b.Close()

	if opts.local {
		tp, err := openTerminal(stop, "bridge "+string(c.Transport))
		if err != nil {
			return err
		}
		defer tp.Close()
		tp.Status = func() string {
			st := b.Status()
			if st.Playing {
				return st.Name
			}
			return "idle"
		}
		b.View = Td.NewVisualizerFromConfig(c, tp)
	}

	slog.Info("TeachTiles bridge",
		slog.String("version", Ts.Version),
		slog.String("transport", string(c.Transport)),
		slog.String("input", c.Input.Source))
	return Ts.StartBridge(ctx, b, c.HTTPAddr, time.Duration(c.Visual.TickMS)*time.Millisecond)
}

func runMatrix(cmd *cobra.Command, args []string) error {
	tui := !opts.headless
	closeLog, err := setupLogging(tui)
	if err != nil {
		return err
	}
	defer closeLog()

	c, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdown := To.InitOTel()
	defer shutdown()

	hub := Td.NewFrameHub(Td.GridFromConfig(c))
	panels := Td.Panels{hub}

	var tp *Td.TerminalPanel
	if tui {
		tp, err = openTerminal(stop, "matrix "+string(c.Transport))
		if err != nil {
			return err
		}
		defer tp.Close()
		panels = append(panels, tp)
	}

	r, err := Td.NewReceiverFromConfig(ctx, c, panels, To.NewStatsInternal())
	if err != nil {
		return err
	}
	defer r.Close()

	if tp != nil {
		tp.Submit = r.Submit
		tp.Status = func() string {
			st := r.State()
			return fmt.Sprintf("%s %s rx=%d", st.Transport, st.Mode, st.Received)
		}
	}

	slog.Info("TeachTiles matrix",
		slog.String("version", Ts.Version),
		slog.String("transport", string(c.Transport)))
	return Td.StartMatrix(ctx, r, c.HTTPAddr, hub)
}

// openTerminal starts the panel's key loop, quitting cancels ctx
func openTerminal(stop context.CancelFunc, title string) (*Td.TerminalPanel, error) {
	s, err := Td.GetTTY()
	if err != nil {
		slog.Error("Could not open terminal", slog.Any("error", err))
		return nil, err
	}
	tp := Td.NewTerminalPanel(s, title)
	tp.Quit = stop
	go tp.HandleEvents()
	return tp, nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	base := "http://localhost:8090"
	if len(args) == 1 {
		base = args[0]
	}
	st, err := Ts.FetchBridgeStatus(base)
	if err != nil {
		return err
	}

	heard := "no signal"
	if st.SignalPresent {
		heard = "signal"
	}
	fmt.Printf("%s | %s ready=%v sent=%d dropped=%d\n", heard, st.Transport, st.Ready, st.Sent, st.Dropped)
	if st.Playing {
		fmt.Printf("playing %s (%d) velocity %d\n", st.Name, st.Note, st.Velocity)
	} else {
		fmt.Println("idle")
	}
	return nil
}
