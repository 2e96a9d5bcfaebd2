package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/srg/antscope/internal/profile"
	"github.com/srg/antscope/internal/registry"
	"github.com/srg/antscope/internal/transport/replay"
	"github.com/srg/antscope/pkg/config"
	"golang.org/x/term"
)

type replayOptions struct {
	raw      bool
	interval time.Duration
	format   string
	watch    bool
	updates  bool
	speed    float64
	timeout  time.Duration
	missed   int
}

func newReplayCmd() *cobra.Command {
	opts := &replayOptions{}

	cmd := &cobra.Command{
		Use:   "replay <capture>",
		Short: "Replay a recorded capture through the device registry",
		Long: `Replay a recorded ANT session and display the devices it contains.

The capture is a YAML file of received pages, or with --raw a byte stream
read from an ANT USB stick. Every message is fed to the device registry,
which creates a decoder per device and tracks its liveness exactly as it
would on a live radio.`,
		Example: `  antscope replay session.yaml
  antscope replay --raw --interval 250ms dump.bin --format json
  antscope replay --watch --speed 1 session.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(cmd, args[0], opts)
		},
	}

	cmd.Flags().BoolVar(&opts.raw, "raw", false, "Capture is a raw ANT serial byte stream")
	cmd.Flags().DurationVar(&opts.interval, "interval", 250*time.Millisecond, "Spacing between messages of a raw capture")
	cmd.Flags().StringVarP(&opts.format, "format", "f", config.FormatTable, "Output format (table, json)")
	cmd.Flags().BoolVarP(&opts.watch, "watch", "w", false, "Print device lifecycle events as they happen")
	cmd.Flags().BoolVar(&opts.updates, "updates", false, "With --watch, also print every decoded page")
	cmd.Flags().Float64Var(&opts.speed, "speed", 0, "Replay speed factor (0 replays without delays)")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 0, "Liveness timeout replacing the family broadcast period")
	cmd.Flags().IntVar(&opts.missed, "missed", 0, "Missed messages tolerated before a device goes offline")

	return cmd
}

// applyFlags overrides configuration values with flags set on the command line.
func (o *replayOptions) applyFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("format") || cfg.OutputFormat == "" {
		cfg.OutputFormat = o.format
	}
	if flags.Changed("speed") {
		cfg.ReplaySpeed = o.speed
	}
	if flags.Changed("timeout") {
		cfg.LivenessTimeout = o.timeout
	}
	if flags.Changed("missed") {
		cfg.MissedMessages = o.missed
	}
}

func runReplay(cmd *cobra.Command, path string, opts *replayOptions) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	opts.applyFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := configureLogger(cmd, cfg)
	if err != nil {
		return err
	}

	// All arguments validated - don't show usage on runtime errors
	cmd.SilenceUsage = true

	capture, err := loadReplayCapture(path, opts, logger)
	if err != nil {
		return err
	}

	radio := replay.New(capture, replay.Options{Speed: cfg.ReplaySpeed, Logger: logger})
	reg := registry.New(radio, registry.Options{
		Timeout:        cfg.LivenessTimeout,
		MissedMessages: cfg.MissedMessages,
		EventBuffer:    cfg.EventBuffer,
		Updates:        opts.watch && opts.updates,
		SendBackoff:    cfg.SendBackoff,
		Decoder:        decoderOptions(cfg, logger),
		Logger:         logger,
	})

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := reg.Start(ctx); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	printer := newEventPrinter(out, isTerminal(out))

	events := reg.Events()
	done := radio.PlayAsync(ctx)

	var playErr error
loop:
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				// Fatal teardown; stop feeding a registry that is gone.
				events = nil
				cancel()
				continue
			}
			if opts.watch {
				printer.Print(ev)
			}
		case playErr = <-done:
			break loop
		}
	}

	devices := describeAll(reg.Devices())
	closeErr := reg.Close()
	for ev := range reg.Events() {
		if opts.watch {
			printer.Print(ev)
		}
	}

	if err := reg.Err(); err != nil {
		return fmt.Errorf("replay of %s stopped: %w", path, err)
	}
	if playErr != nil && !errors.Is(playErr, context.Canceled) {
		return fmt.Errorf("replay of %s failed: %w", path, playErr)
	}
	if closeErr != nil {
		logger.WithError(closeErr).Warn("failed to close channels")
	}

	if err := displayDevices(out, devices, cfg.OutputFormat); err != nil {
		return err
	}
	return playErr
}

func loadReplayCapture(path string, opts *replayOptions, logger *logrus.Logger) (*replay.Capture, error) {
	if !opts.raw {
		return replay.LoadCapture(path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	capture, stats, err := replay.ReadRaw(f, opts.interval)
	logger.WithFields(logrus.Fields{
		"messages":      stats.Messages,
		"bad_checksum":  stats.BadChecksum,
		"skipped_bytes": stats.SkippedBytes,
	}).Debug("Raw capture framed")
	if err != nil {
		return nil, fmt.Errorf("failed to read raw capture %s: %w", path, err)
	}
	capture.Name = path
	return capture, nil
}

func decoderOptions(cfg *config.Config, logger *logrus.Logger) profile.Options {
	return profile.Options{
		Logger:             logger,
		WheelCircumference: cfg.WheelCircumference,
		SendTimeout:        cfg.SendTimeout,
		PageHistory:        uint32(cfg.PageHistory),
	}
}

func describeAll(devices []profile.Decoder) []profile.Snapshot {
	out := make([]profile.Snapshot, len(devices))
	for i, d := range devices {
		out[i] = profile.Describe(d)
	}
	return out
}

func displayDevices(w io.Writer, devices []profile.Snapshot, format string) error {
	switch format {
	case config.FormatJSON:
		return writeJSON(w, devices)
	case config.FormatTable:
		return displayDevicesTable(w, devices)
	default:
		return fmt.Errorf("%w '%s': must be one of %v", ErrInvalidFormat, format, []string{config.FormatTable, config.FormatJSON})
	}
}

func displayDevicesTable(w io.Writer, devices []profile.Snapshot) error {
	if len(devices) == 0 {
		fmt.Fprintln(w, "No devices discovered")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DEVICE\tTYPE\tTRANS\tKIND\tSTATE")
	fmt.Fprintln(tw, strings.Repeat("-", 80))

	for _, d := range devices {
		fmt.Fprintf(tw, "%d\t%d\t%d\t%s\t%s\n",
			d.ID.DeviceNumber, d.ID.DeviceClass(), d.ID.TransmissionType, d.Kind, summarize(d.State))
	}

	return tw.Flush()
}

// summarize renders a decoder state as compact JSON, truncated for the table.
func summarize(state any) string {
	data, err := json.Marshal(state)
	if err != nil {
		return "?"
	}
	s := string(data)
	if len(s) > 60 {
		s = s[:57] + "..."
	}
	return s
}

func writeJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// eventPrinter writes one line per registry event, coloured on a terminal.
type eventPrinter struct {
	w      io.Writer
	colors map[registry.EventType]*color.Color
}

func newEventPrinter(w io.Writer, colorize bool) *eventPrinter {
	colors := map[registry.EventType]*color.Color{
		registry.EventAdded:           color.New(color.FgGreen),
		registry.EventUpdated:         color.New(color.FgCyan),
		registry.EventOffline:         color.New(color.FgYellow),
		registry.EventRemoved:         color.New(color.FgMagenta),
		registry.EventRegistryOffline: color.New(color.FgRed, color.Bold),
	}
	for _, c := range colors {
		if colorize {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return &eventPrinter{w: w, colors: colors}
}

func (p *eventPrinter) Print(ev registry.Event) {
	c, ok := p.colors[ev.Type]
	if !ok {
		c = color.New(color.Reset)
	}

	if ev.Type == registry.EventRegistryOffline {
		c.Fprintln(p.w, ev.Type)
		return
	}

	line := fmt.Sprintf("%-16s %-22s %s", ev.Type, ev.Kind, ev.ID)
	if ev.Type == registry.EventUpdated && ev.Decoder != nil {
		line += " " + summarize(ev.Decoder.Snapshot())
	}
	c.Fprintln(p.w, line)
}
