package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"tokenmart/config"
	"tokenmart/core/events"
	"tokenmart/crypto"
	"tokenmart/explorer"
	"tokenmart/native/common"
	"tokenmart/native/market"
	"tokenmart/native/registry"
	"tokenmart/observability"
	"tokenmart/observability/logging"
	"tokenmart/observability/otel"
	"tokenmart/rpc"
	"tokenmart/storage"
)

const serviceName = "martd"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "martd: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var configPath string
	flag.StringVar(&configPath, "config", "./config.toml", "path to the TOML configuration file")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := logging.Setup(serviceName, cfg.Environment, logging.Options{FilePath: cfg.LogFile})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	telemetry := cfg.TelemetryEndpoint != ""
	if telemetry {
		shutdown, err := otel.Init(ctx, otel.Config{
			ServiceName: serviceName,
			Environment: cfg.Environment,
			Endpoint:    cfg.TelemetryEndpoint,
			Insecure:    true,
			Metrics:     true,
			Traces:      true,
		})
		if err != nil {
			return fmt.Errorf("init telemetry: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				logger.Warn("telemetry shutdown failed", "err", err)
			}
		}()
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "state"))
	if err != nil {
		return fmt.Errorf("open state database: %w", err)
	}
	defer db.Close()
	manager := storage.NewManager(db)

	archive, err := explorer.Open(filepath.Join(cfg.DataDir, "events.db"))
	if err != nil {
		return fmt.Errorf("open event archive: %w", err)
	}

	reg := registry.New(manager)
	engine := market.NewEngine()
	engine.SetState(manager)
	engine.SetRegistry(reg)
	engine.SetEmitter(events.Multi(archive, observability.NewLogEmitter(logger)))
	engine.SetPauses(common.NewStaticPauses(cfg.PausedModules))

	settlement := market.NewSettlement(engine)
	if operator, enabled, err := cfg.Operator(); err != nil {
		return fmt.Errorf("resolve operator: %w", err)
	} else if enabled {
		if err := settlement.SetCommission(operator, cfg.CommissionPercent); err != nil {
			return fmt.Errorf("configure commission: %w", err)
		}
	}

	owners, err := cfg.OwnerAddresses()
	if err != nil {
		return fmt.Errorf("resolve market owners: %w", err)
	}
	facade := market.NewMarketplace(engine, settlement, market.NewStaticAuthorizer(owners...))
	facade.SetLogger(logger)
	facade.SetMetrics(observability.Market())

	if err := applyGenesis(cfg, manager, engine, logger); err != nil {
		return fmt.Errorf("apply genesis listings: %w", err)
	}

	server := rpc.NewServer(facade, archive)
	var handler http.Handler = server.Router()
	if telemetry {
		handler = otelhttp.NewHandler(handler, "rpc")
	}
	httpServer := &http.Server{
		Addr:              cfg.RPCAddress,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("rpc listening", "addr", cfg.RPCAddress, "network", cfg.NetworkName)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		return fmt.Errorf("rpc server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown rpc server: %w", err)
	}
	logger.Info("martd stopped")
	return nil
}

// applyGenesis seeds the marketplace from the configured listings manifest.
// Seeding runs only against an empty state so restarts stay idempotent.
func applyGenesis(cfg *config.Config, manager *storage.Manager, engine *market.Engine, logger *slog.Logger) error {
	if cfg.GenesisListings == "" {
		return nil
	}
	counter, err := manager.MarketCounterGet()
	if err != nil {
		return err
	}
	if counter > 0 {
		return nil
	}
	manifest, err := config.LoadGenesis(cfg.GenesisListings)
	if err != nil {
		return err
	}
	owner, err := decodeAddress(manifest.Owner)
	if err != nil {
		return fmt.Errorf("genesis owner: %w", err)
	}
	for i, listing := range manifest.Listings {
		input := market.ListingInput{
			Name:            listing.Name,
			Description:     listing.Description,
			PriceMinor:      listing.Price(),
			Keywords:        listing.Keywords,
			RoyaltyPercent:  listing.RoyaltyPercent,
			MetadataPointer: listing.MetadataPointer,
		}
		if listing.RoyaltyPercent > 0 {
			recipient, err := decodeAddress(listing.RoyaltyRecipient)
			if err != nil {
				return fmt.Errorf("genesis listing %d royalty recipient: %w", i, err)
			}
			input.RoyaltyRecipient = recipient
		}
		if _, err := engine.Create(owner, input); err != nil {
			return fmt.Errorf("genesis listing %d: %w", i, err)
		}
	}
	logger.Info("genesis listings applied", "count", len(manifest.Listings))
	return nil
}

func decodeAddress(raw string) ([20]byte, error) {
	decoded, err := crypto.DecodeAddress(raw)
	if err != nil {
		return [20]byte{}, err
	}
	return decoded.Fixed(), nil
}
