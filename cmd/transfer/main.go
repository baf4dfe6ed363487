// Command transfer registers a conversion request by hand, the way the
// front end does, e.g. to re-open an expired request for a late deposit.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"gobglrelayer/EVMRPC"
	"gobglrelayer/config"
	"gobglrelayer/redis"
	"gobglrelayer/types"
)

func main() {
	configPath := flag.String("config", "config.yml", "path to the configuration file")
	typ := flag.String("type", "", "deposited asset: bgl or wbgl")
	chain := flag.String("chain", "", "EVM chain id from the configuration")
	from := flag.String("from", "", "address the deposit comes from (BGL deposit address for bgl)")
	to := flag.String("to", "", "address to send the converted funds to")
	flag.Parse()

	if err := run(*configPath, types.Asset(*typ), *chain, *from, *to); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string, typ types.Asset, chain, from, to string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if _, ok := cfg.Chain(chain); !ok {
		return fmt.Errorf("unknown chain %q", chain)
	}

	switch typ {
	case types.AssetBGL:
		if err := EVMRPC.ValidateAddress(to); err != nil {
			return err
		}
	case types.AssetWBGL:
		if err := EVMRPC.ValidateAddress(from); err != nil {
			return err
		}
	default:
		return fmt.Errorf("type must be %q or %q", types.AssetBGL, types.AssetWBGL)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	store := redis.NewStore(cfg.Server.RedisHost, cfg.Server.RedisPort, cfg.Server.RedisPassword, cfg.Server.RedisDB)
	defer store.Close()

	transfer := &types.Transfer{Type: typ, Chain: chain, From: from, To: to}
	if err := store.UpsertTransfer(ctx, transfer); err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(transfer)
}
