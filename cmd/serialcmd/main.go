// Command serialcmd listens on a serial device and reports every command line it receives.
package main

import (
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	serial "github.com/luhtfiimanal/go-serial-commands"
)

func main() {
	var (
		configPath string
		device     string
		baud       int
		verbose    bool
	)
	flag.StringVar(&configPath, "config", "", "TOML config file")
	flag.StringVar(&device, "device", "", "Serial device (overrides config)")
	flag.IntVar(&baud, "baud", 0, "Baud rate (overrides config)")
	flag.BoolVar(&verbose, "v", false, "Verbose mode")
	flag.Parse()

	logger := initLogger("serialcmd")
	if flag.NArg() != 0 {
		logger.Fatal().Strs("args", flag.Args()).Msg("unknown arguments")
	}

	cfg := defaultServiceConfig()
	if configPath != "" {
		loaded, err := loadServiceConfig(configPath)
		if err != nil {
			logger.Fatal().Err(err).Str("path", configPath).Msg("config load failed")
		}
		cfg = loaded
	}
	if device != "" {
		cfg.Port.Device = device
	}
	if baud != 0 {
		cfg.Port.BaudRate = baud
	}
	if verbose {
		cfg.LogLevel = zerolog.DebugLevel
	}
	if err := validateServiceConfig(cfg); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}
	logger = logger.Level(cfg.LogLevel)
	cfg.Port.Logger = &logger

	if cfg.MetricsAddr != "" {
		serial.RegisterMetrics()
		go serveMetrics(cfg.MetricsAddr, logger)
	}

	port, err := serial.Open(cfg.Port)
	if err != nil {
		logger.Fatal().Err(err).Str("device", cfg.Port.Device).Msg("serial open failed")
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigs
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
		port.Close()
	}()

	logger.Info().
		Str("device", cfg.Port.Device).
		Int("baud", cfg.Port.BaudRate).
		Dur("line_timeout", cfg.Port.LineTimeout).
		Msg("listening")

	failed := false
	port.ReadEventsLoop(
		func(ev serial.Event) { handleEvent(port, ev, logger) },
		func(error) { failed = true },
	)
	port.Close()
	if failed {
		os.Exit(1)
	}
}

func initLogger(app string) zerolog.Logger {
	output := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
	}
	return zerolog.New(output).With().Timestamp().Str("app", app).Logger()
}

// replier is the reply side of a serial.Port.
type replier interface {
	WriteLine(line string, newline string) error
}

func handleEvent(out replier, ev serial.Event, logger zerolog.Logger) {
	var reply string
	switch ev.Kind {
	case serial.EventCommand:
		logger.Info().Str("text", ev.Text).Msg("command")
		reply = "OK"
	case serial.EventOverflow:
		logger.Warn().Int("limit", serial.MaxLineLength).Msg("command too long")
		reply = "ERR overflow"
	case serial.EventDiscarded:
		logger.Info().Int("bytes", len(ev.Text)).Msg("partial line timed out")
		return
	default:
		return
	}
	if err := out.WriteLine(reply, "\r\n"); err != nil {
		logger.Error().Err(err).Msg("reply failed")
	}
}

func serveMetrics(addr string, logger zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	logger.Info().Str("addr", addr).Msg("metrics listening")
	if err := http.ListenAndServe(addr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("metrics server stopped")
	}
}
