package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"gobglrelayer/types"

	"github.com/gomodule/redigo/redis"
	"github.com/google/uuid"
)

// EVM addresses are stored lowercased so lookups are case-insensitive,
// BGL addresses are kept as they are (base58 is case-sensitive).
func transferKey(typ types.Asset, chain, from string) string {
	if typ == types.AssetWBGL {
		return fmt.Sprintf("transfer:%s:%s:%s", typ, chain, strings.ToLower(from))
	}
	return fmt.Sprintf("transfer:%s:%s", typ, from)
}

// UpsertTransfer stores a transfer request, replacing any previous request
// for the same source address. It is the write side used by the front end.
func (s *Store) UpsertTransfer(ctx context.Context, t *types.Transfer) error {
	if t == nil {
		return errors.New("null object to store")
	}
	if t.From == "" || t.To == "" {
		return errors.New("transfer must have source and destination addresses")
	}
	if t.Type != types.AssetBGL && t.Type != types.AssetWBGL {
		return fmt.Errorf("unknown transfer type %q", t.Type)
	}

	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	now := s.now()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now

	body, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("cannot marshal transfer to JSON: %w", err)
	}

	conn, err := s.conn(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	if _, err := conn.Do("SET", transferKey(t.Type, t.Chain, t.From), body); err != nil {
		return fmt.Errorf("error Redis SET transfer: %w", err)
	}
	return nil
}

// FindOpenTransfer returns the transfer matching q, or nil when there is none
// or it was last updated before q.NotBefore.
func (s *Store) FindOpenTransfer(ctx context.Context, q types.TransferQuery) (*types.Transfer, error) {
	conn, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	body, err := redis.Bytes(conn.Do("GET", transferKey(q.Type, q.Chain, q.From)))
	if errors.Is(err, redis.ErrNil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error Redis GET transfer: %w", err)
	}

	var t types.Transfer
	if err := json.Unmarshal(body, &t); err != nil {
		return nil, fmt.Errorf("cannot unmarshal transfer: %w", err)
	}
	if !t.Open(q.NotBefore) {
		return nil, nil
	}
	return &t, nil
}
