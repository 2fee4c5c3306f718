// Command iptsd decodes an Intel Precise Touch & Stylus character device
// into normalized stylus and heatmap events.
//
// Code is split across:
// - internal/config: YAML settings + env-var overrides
// - internal/transport: poll-driven reads off the IPTS char device
// - internal/stream: WebSocket broadcast of decoded events to debug viewers
// - ipts: the protocol decoder and DFT pen-localization core
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/dikkadev/prettyslog"

	"iptsd/internal/config"
	"iptsd/internal/stream"
	"iptsd/internal/transport"
	"iptsd/ipts"
)

func main() {
	configPath := flag.String("config", "", "Path to a YAML config file; IPTSD_* env overrides are applied on top of it. If empty, built-in defaults apply without env overrides.")
	devicePath := flag.String("device", "", "IPTS character device path. If empty, auto-detect under /dev/ipts.")
	invertX := flag.Bool("invert-x", false, "Invert the X axis")
	invertY := flag.Bool("invert-y", false, "Invert the Y axis")
	streamAddr := flag.String("stream-addr", "", "Debug WebSocket listen address, e.g. :8077")
	logLevel := flag.String("log-level", "", "Log level: debug|info|warn|error")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		if err := config.Load(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "fatal: loading config: %v\n", err)
			os.Exit(1)
		}
		cfg = config.Snapshot()
	}
	if *devicePath != "" {
		cfg.Device = *devicePath
	}
	if *invertX {
		cfg.InvertX = true
	}
	if *invertY {
		cfg.InvertY = true
	}
	if *streamAddr != "" {
		cfg.StreamAddr = *streamAddr
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}

	log := slog.New(prettyslog.NewPrettyslogHandler("iptsd",
		prettyslog.WithLevel(parseLevel(cfg.LogLevel)),
	))
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	devicePath := cfg.Device
	if devicePath == "" {
		paths, err := transport.ListCandidatePaths()
		if err != nil {
			return fmt.Errorf("no device configured and auto-detect failed: %w", err)
		}
		devicePath = paths[0]
		log.Info("auto-detected device", "path", devicePath)
	}

	dev, err := transport.Open(devicePath)
	if err != nil {
		return fmt.Errorf("opening %s: %w", devicePath, err)
	}
	defer dev.Close()

	broadcaster := stream.NewBroadcaster(log)
	go serveStream(cfg.StreamAddr, broadcaster, log)

	sink := ipts.MultiSink{broadcaster, loggingSink{log: log}}
	parser := ipts.NewFrameParser(sink, cfg.InvertX, cfg.InvertY)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return decodeLoop(ctx, dev, parser, log)
}

func serveStream(addr string, b *stream.Broadcaster, log *slog.Logger) {
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/debug", b)
	log.Info("debug stream listening", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Error("debug stream stopped", "err", err)
	}
}

// decodeLoop reads frames off dev and feeds them to parser until ctx is
// canceled. A frame that fails with ipts.ErrOutOfRange is logged and
// skipped: the host resynchronizes at the next frame boundary rather than
// treating a single corrupt buffer as fatal.
func decodeLoop(ctx context.Context, dev *transport.DeviceReader, parser *ipts.FrameParser, log *slog.Logger) error {
	buf := make([]byte, 64*1024)
	for {
		n, err := dev.ReadFrame(ctx, buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("reading device: %w", err)
		}

		if err := parser.Parse(buf[:n], 0); err != nil {
			if err == ipts.ErrOutOfRange {
				log.Warn("dropped truncated frame", "len", n)
				continue
			}
			log.Error("unexpected decode error", "err", err, "len", n)
			continue
		}
	}
}

// loggingSink records a one-line trace of every decoded event at debug
// level, independent of whether a debug stream client is attached.
type loggingSink struct {
	log *slog.Logger
}

func (s loggingSink) OnStylus(v ipts.StylusSample) {
	s.log.Debug("stylus", "proximity", v.Proximity, "contact", v.Contact, "x", v.X, "y", v.Y, "pressure", v.Pressure)
}

func (s loggingSink) OnHeatmap(v ipts.Heatmap) {
	s.log.Debug("heatmap", "width", v.Width, "height", v.Height)
}

func (s loggingSink) OnDft(ipts.DftWindow) {}

func (s loggingSink) OnMetadata(v ipts.Metadata) {
	s.log.Info("metadata", "rows", v.Rows, "columns", v.Columns)
}
