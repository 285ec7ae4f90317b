package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/henryproto/turnstile-emu/internal/adminserver"
	"github.com/henryproto/turnstile-emu/internal/catalog"
	"github.com/henryproto/turnstile-emu/internal/config"
	"github.com/henryproto/turnstile-emu/internal/device"
	"github.com/henryproto/turnstile-emu/internal/logger"
	"github.com/henryproto/turnstile-emu/internal/metrics"
	"github.com/henryproto/turnstile-emu/internal/peripheral"
	"github.com/henryproto/turnstile-emu/internal/transport"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Run the turnstile device process",
	Long: `Start assembles every collaborator (config store, catalog, peripheral
dispatcher, state machine, validators, admin server) and runs them until
interrupted.

In network.tcp_mode "server" the device listens for one Henry host
connection at a time; in "client" mode it dials out to network.ip:port
and reconnects with backoff while the host is unreachable.

Examples:
  turnstile start --config /etc/turnstile/config.yaml`,
	RunE: runStart,
}

// dialBackoffMax bounds the delay between reconnect attempts in client mode.
const dialBackoffMax = 10 * time.Second

func runStart(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := InitLogger(cfg); err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}

	catalogPath := resolveCatalogPath(cfg.Catalog.Path)
	cat, err := catalog.Open(catalogPath)
	if err != nil {
		return fmt.Errorf("opening catalog: %w", err)
	}
	defer func() { _ = cat.Close() }()

	cfgStore := config.NewStore(*cfg)
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	dispatcher := peripheral.NewDispatcher(peripheral.DefaultChannelCapacity)
	registerReaders(dispatcher, cfg.Readers)

	dev := device.New(cfgStore, cat, dispatcher, m)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 4)

	if err := dispatcher.Start(ctx); err != nil {
		return fmt.Errorf("starting peripheral dispatcher: %w", err)
	}
	go func() { errCh <- dev.PumpPeripherals(ctx) }()
	go func() { dev.Machine().Run(ctx); errCh <- nil }()

	adminCfg := adminserver.Config{Enabled: cfg.Admin.Enabled, Port: cfg.Admin.Port}
	if adminCfg.IsEnabled() {
		admin := adminserver.NewServer(adminCfg, cat, dev, reg)
		go func() { errCh <- admin.Start(ctx) }()
		logger.Info("admin server enabled", "port", cfg.Admin.Port)
	}

	switch cfg.Network.TCPMode {
	case "server":
		srv := transport.NewServer(transport.ServerConfig{
			Addr:      fmt.Sprintf("%s:%d", cfg.Network.IP, cfg.Network.Port),
			IOTimeout: transport.DefaultIOTimeout,
			OnConnect: dev.RunConnection,
		})
		go func() { errCh <- srv.Serve(ctx) }()
	case "client":
		go dialLoop(ctx, cfg.Network.IP, cfg.Network.Port, dev, errCh)
	default:
		return fmt.Errorf("start: unrecognized network.tcp_mode %q", cfg.Network.TCPMode)
	}

	logger.Info("turnstile device running", "device_id", cfg.Device.ID, "tcp_mode", cfg.Network.TCPMode)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		signal.Stop(sigCh)
		logger.Info("shutdown signal received")
		cancel()
	case err := <-errCh:
		cancel()
		if err != nil {
			logger.Error("component exited with error", "error", err)
		}
	}

	_ = dispatcher.Close()
	logger.Info("turnstile device stopped")
	return nil
}

// registerReaders builds one driver per distinct peripheral kind named
// in readers and registers it with dispatcher. Only one driver per kind
// can be active (internal/peripheral.Dispatcher keys by Kind).
func registerReaders(dispatcher *peripheral.Dispatcher, readers map[string]string) {
	seen := map[string]bool{}
	for _, kind := range readers {
		if seen[kind] {
			continue
		}
		switch kind {
		case "rfid":
			dispatcher.Register(&peripheral.AnyRFID{Variant: peripheral.RFIDVariantMock, Mock: peripheral.NewMockRFID()})
		case "keypad":
			dispatcher.Register(&peripheral.AnyKeypad{Variant: peripheral.KeypadVariantMock, Mock: peripheral.NewMockKeypad()})
		case "biometric":
			dispatcher.Register(&peripheral.AnyBiometric{Variant: peripheral.BiometricVariantMock, Mock: peripheral.NewMockBiometric()})
		case "disabled", "wiegand":
			// wiegand has no driver implementation yet; disabled slots need none.
		}
		seen[kind] = true
	}
}

// dialLoop dials out to the configured host, reconnecting with capped
// backoff on failure or disconnect, until ctx is cancelled.
func dialLoop(ctx context.Context, ip string, port int, dev *device.Device, errCh chan<- error) {
	addr := fmt.Sprintf("%s:%d", ip, port)
	backoff := time.Second

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		conn, err := transport.Dial(ctx, addr, transport.DefaultIOTimeout)
		if err != nil {
			logger.Warn("dial failed, retrying", "address", addr, "error", err, "backoff", backoff.String())
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			if backoff < dialBackoffMax {
				backoff *= 2
				if backoff > dialBackoffMax {
					backoff = dialBackoffMax
				}
			}
			continue
		}

		backoff = time.Second
		logger.Info("connected to host", "address", addr)
		dev.RunConnection(ctx, conn)
		_ = conn.Close()

		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}
