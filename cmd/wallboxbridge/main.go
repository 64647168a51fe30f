// Wallbox Bridge - MQTT topic relay for openWB installations
//
// This is the main entry point for the wallbox bridge. It connects to
// the house broker and the wallbox controller's broker, parses the
// bridge declaration file, and mirrors the declared topic subtrees
// between the two, so home automation keeps working when the wallbox
// network segment or the controller firmware changes.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nerrad567/wallbox-bridge/internal/bridgespec"
	"github.com/nerrad567/wallbox-bridge/internal/infrastructure/config"
	"github.com/nerrad567/wallbox-bridge/internal/infrastructure/journal"
	"github.com/nerrad567/wallbox-bridge/internal/infrastructure/logging"
	"github.com/nerrad567/wallbox-bridge/internal/infrastructure/metrics"
	"github.com/nerrad567/wallbox-bridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/wallbox-bridge/internal/relay"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// statsInterval is how often per-bridge counters are snapshotted to metrics.
const statsInterval = 60 * time.Second

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting wallbox bridge",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Parse the bridge declaration
	spec, err := bridgespec.Load(cfg.Bridge.SpecFile, bridgespec.ParseOptions{
		Strict: cfg.Bridge.Strict,
		OnSkip: func(line int, text string) {
			log.Warn("skipping unknown directive", "line", line, "text", text)
		},
	})
	if err != nil {
		return fmt.Errorf("loading bridge declaration: %w", err)
	}
	log.Info("bridge declaration loaded",
		"path", cfg.Bridge.SpecFile,
		"connections", len(spec.Bridges),
	)

	// Merge templated device rules into every declared connection
	if err := mergeDeviceRules(spec, cfg.Devices, log); err != nil {
		return fmt.Errorf("generating device rules: %w", err)
	}

	// Open the relay journal (optional)
	var jrnl *journal.Journal
	if cfg.Journal.Enabled {
		jrnl, err = journal.Open(cfg.Journal)
		if err != nil {
			return fmt.Errorf("opening journal: %w", err)
		}
		defer func() {
			log.Info("closing journal")
			if closeErr := jrnl.Close(); closeErr != nil {
				log.Error("error closing journal", "error", closeErr)
			}
		}()
		log.Info("journal opened", "path", jrnl.Path())
	} else {
		log.Info("journal disabled")
	}

	// Connect to InfluxDB (optional)
	var metricsClient *metrics.Client
	if cfg.Metrics.Enabled {
		metricsClient, err = metrics.Connect(cfg.Metrics)
		if err != nil {
			return fmt.Errorf("connecting to metrics: %w", err)
		}
		defer func() {
			log.Info("closing metrics connection")
			if closeErr := metricsClient.Close(); closeErr != nil {
				log.Error("error closing metrics", "error", closeErr)
			}
		}()
		metricsClient.SetOnError(func(err error) {
			log.Error("metrics write error", "error", err)
		})
		log.Info("metrics connected",
			"url", cfg.Metrics.URL,
			"org", cfg.Metrics.Org,
			"bucket", cfg.Metrics.Bucket,
		)
	} else {
		log.Info("metrics disabled")
	}

	// Bring up one relay per declared connection
	var relays []*relay.Relay
	var clients []*mqtt.Client
	for _, br := range spec.Bridges {
		local, remote, err := connectBridge(cfg, br, log)
		if err != nil {
			return err
		}
		clients = append(clients, local, remote)

		opts := relay.Options{
			DefaultQoS: byte(cfg.Bridge.QoS), //nolint:gosec // validated 0-2
			Logger:     log,
		}
		if jrnl != nil {
			opts.Journal = jrnl
		}
		if metricsClient != nil {
			opts.Metrics = metricsClient
		}

		r := relay.New(br, local, remote, opts)
		if err := r.Start(ctx); err != nil {
			return fmt.Errorf("starting relay %q: %w", br.Name, err)
		}
		relays = append(relays, r)
		log.Info("relay started", "bridge", br.Name, "rules", len(br.Rules))
	}
	defer func() {
		for _, r := range relays {
			log.Info("stopping relay", "bridge", r.Bridge().Name)
			if stopErr := r.Stop(); stopErr != nil {
				log.Error("error stopping relay", "bridge", r.Bridge().Name, "error", stopErr)
			}
		}
		for _, c := range clients {
			if closeErr := c.Close(); closeErr != nil {
				log.Error("error closing MQTT client", "error", closeErr)
			}
		}
	}()

	// Verify all connections are healthy
	if err := healthCheck(ctx, clients, jrnl, metricsClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	// Periodic counter snapshots for the metrics backend
	if metricsClient != nil {
		go reportStats(ctx, relays, metricsClient)
	}

	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses WALLBOX_BRIDGE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("WALLBOX_BRIDGE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// mergeDeviceRules appends templated rules for each configured device to
// every declared connection, skipping rules the declaration already has.
func mergeDeviceRules(spec *bridgespec.File, devices []config.DeviceConfig, log *logging.Logger) error {
	for _, dev := range devices {
		rules, err := bridgespec.RulesForDevice(dev.Type, dev.ID)
		if err != nil {
			return err
		}
		for _, br := range spec.Bridges {
			br.AddRules(rules)
		}
		log.Info("device rules generated", "type", dev.Type, "id", dev.ID, "rules", len(rules))
	}
	return nil
}

// connectBridge connects both sides of one declared connection.
//
// The local side uses the configured local endpoint with the bridge's
// declared client id. The remote side uses the configured remote
// credentials and TLS settings, with host and port taken from the
// declaration's address directive.
//
// Parameters:
//   - cfg: Application configuration
//   - br: One connection block from the declaration
//   - log: Logger instance
//
// Returns:
//   - *mqtt.Client: Connected local client
//   - *mqtt.Client: Connected remote client
//   - error: First connection failure (fatal at startup)
func connectBridge(cfg *config.Config, br *bridgespec.Bridge, log *logging.Logger) (*mqtt.Client, *mqtt.Client, error) {
	localCfg := cfg.Local
	localCfg.Broker.ClientID = br.LocalClientID

	local, err := mqtt.Connect(localCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting local side of %q: %w", br.Name, err)
	}
	local.SetLogger(log)
	local.SetOnConnect(func() {
		log.Info("local broker reconnected", "bridge", br.Name)
	})
	local.SetOnDisconnect(func(err error) {
		log.Warn("local broker disconnected", "bridge", br.Name, "error", err)
	})
	log.Info("local broker connected",
		"bridge", br.Name,
		"broker", fmt.Sprintf("%s:%d", localCfg.Broker.Host, localCfg.Broker.Port),
		"client_id", localCfg.Broker.ClientID,
	)

	remoteCfg := cfg.Remote
	remoteCfg.Broker.Host = br.Address.Host
	remoteCfg.Broker.Port = br.Address.Port
	remoteCfg.Broker.ClientID = br.LocalClientID

	remote, err := mqtt.Connect(remoteCfg)
	if err != nil {
		_ = local.Close()
		return nil, nil, fmt.Errorf("connecting remote side of %q: %w", br.Name, err)
	}
	remote.SetLogger(log)
	remote.SetOnConnect(func() {
		log.Info("remote broker reconnected", "bridge", br.Name)
	})
	remote.SetOnDisconnect(func(err error) {
		log.Warn("remote broker disconnected", "bridge", br.Name, "error", err)
	})
	log.Info("remote broker connected",
		"bridge", br.Name,
		"broker", br.Address.String(),
		"client_id", remoteCfg.Broker.ClientID,
	)

	return local, remote, nil
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - clients: MQTT clients to check (both sides of every bridge)
//   - jrnl: Journal to check (may be nil if disabled)
//   - metricsClient: Metrics client to check (may be nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, clients []*mqtt.Client, jrnl *journal.Journal, metricsClient *metrics.Client) error {
	for _, c := range clients {
		if err := c.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}

	if jrnl != nil {
		if err := jrnl.HealthCheck(ctx); err != nil {
			return fmt.Errorf("journal: %w", err)
		}
	}

	if metricsClient != nil {
		if err := metricsClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("metrics: %w", err)
		}
	}

	return nil
}

// reportStats periodically snapshots relay counters to the metrics backend.
func reportStats(ctx context.Context, relays []*relay.Relay, metricsClient *metrics.Client) {
	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, r := range relays {
				stats := r.Stats()
				metricsClient.RecordStats(r.Bridge().Name,
					stats.RelayedIn, stats.RelayedOut,
					stats.EchoesDropped, stats.PublishErrors)
			}
		}
	}
}
