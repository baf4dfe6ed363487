package workers

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"gobglrelayer/metrics"
)

const BGLCheckpointName = "lastBglBlockHash"

func chainPrefix(chain string) string {
	if chain == "" {
		return ""
	}
	return strings.ToUpper(chain[:1]) + chain[1:]
}

// BlockHashName is the checkpoint with the block hash of the last handled event
func BlockHashName(chain string) string {
	return "last" + chainPrefix(chain) + "BlockHash"
}

// BlockNumberName is the checkpoint with the last processed block number
func BlockNumberName(chain string) string {
	return "last" + chainPrefix(chain) + "BlockNumber"
}

// lastEVMBlock returns the processed block checkpoint of chain,
// starting LookbackBlocks behind the tip when there is none.
func (e *Engine) lastEVMBlock(ctx context.Context, chain ChainClient) (uint64, error) {
	value, err := e.store.Get(ctx, BlockNumberName(chain.ID()), func(ctx context.Context) (string, error) {
		head, err := chain.BlockNumber(ctx)
		if err != nil {
			return "", err
		}
		lookback := e.chainConfig(chain.ID()).LookbackBlocks
		if head < lookback {
			return "0", nil
		}
		return strconv.FormatUint(head-lookback, 10), nil
	})
	if err != nil {
		return 0, fmt.Errorf("cannot read %s checkpoint: %w", chain.ID(), err)
	}
	number, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("corrupt %s checkpoint %q: %w", chain.ID(), value, err)
	}
	return number, nil
}

// advanceEVMCheckpoint stores number (and hash when known) unless the
// stored checkpoint is already past it.
func (e *Engine) advanceEVMCheckpoint(ctx context.Context, chain string, number uint64, hash string) error {
	stored, err := e.store.Get(ctx, BlockNumberName(chain), nil)
	if err != nil {
		return err
	}
	if stored != "" {
		current, err := strconv.ParseUint(stored, 10, 64)
		if err == nil && number < current {
			return nil
		}
	}

	if hash != "" {
		if err := e.store.Set(ctx, BlockHashName(chain), hash); err != nil {
			return err
		}
	}
	if err := e.store.Set(ctx, BlockNumberName(chain), strconv.FormatUint(number, 10)); err != nil {
		return err
	}
	metrics.LastProcessedBlock.WithLabelValues(chain).Set(float64(number))
	return nil
}
