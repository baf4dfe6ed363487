package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"gobglrelayer/BGLRPC"
	"gobglrelayer/EVMRPC"
	"gobglrelayer/config"
	"gobglrelayer/redis"
	"gobglrelayer/workers"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	configPath := flag.String("config", "config.yml", "path to the configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading config: %v\n", err)
		os.Exit(1)
	}

	logger, err := config.NewLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error creating logger: %v\n", err)
		os.Exit(1)
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("relayer stopped", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
	_ = logger.Sync()
}

func run(cfg *config.Configuration, logger *zap.Logger) error {
	logger.Info("Starting BGL/WBGL bridge relayer", zap.Int("chains", len(cfg.EVM.Chains)), zap.Int("feePercentage", cfg.FeePercentage))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// without persistence do not continue
	store := redis.NewStore(cfg.Server.RedisHost, cfg.Server.RedisPort, cfg.Server.RedisPassword, cfg.Server.RedisDB)
	defer store.Close()
	if err := store.Ping(ctx); err != nil {
		return fmt.Errorf("cannot reach Redis at %s:%d: %w", cfg.Server.RedisHost, cfg.Server.RedisPort, err)
	}

	bgl := BGLRPC.NewClient(
		BGLRPC.Endpoint(cfg.BGL.Host, cfg.BGL.Port, cfg.BGL.WalletName),
		cfg.BGL.RPCUser, cfg.BGL.RPCPassword, cfg.BGL.RPCTimeout, logger)
	if _, err := bgl.GetBlockCount(ctx); err != nil {
		return fmt.Errorf("cannot reach BGL node: %w", err)
	}

	chains := make([]workers.ChainClient, 0, len(cfg.EVM.Chains))
	for _, chainCfg := range cfg.EVM.Chains {
		client, err := EVMRPC.NewClient(chainCfg, cfg.EVM.PublicAddress, cfg.EVM.PrivateKey, store, logger)
		if err != nil {
			return err
		}
		defer client.Close()
		if err := client.Init(ctx); err != nil {
			return err
		}
		logger.Info("EVM chain ready", zap.String("chain", chainCfg.ID), zap.Int32("decimals", client.Decimals()), zap.Uint64("confirmations", client.Confirmations()))
		chains = append(chains, client)
	}

	engine, err := workers.NewEngine(cfg, store, bgl, chains, logger)
	if err != nil {
		return err
	}
	server, err := workers.NewHTTPServer(cfg, workers.NewRouter(engine.API(), logger))
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return engine.Run(ctx)
	})
	g.Go(func() error {
		return workers.ServeHTTP(ctx, server, logger)
	})
	err = g.Wait()
	logger.Info("BGL/WBGL bridge relayer stopped")
	return err
}
