package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"gobglrelayer/types"

	"github.com/gomodule/redigo/redis"
	"github.com/google/uuid"
)

func transactionKey(typ types.Asset, chain, id string) string {
	return fmt.Sprintf("transaction:%s:%s:%s", typ, chain, id)
}

func conversionKey(id string) string {
	return "conversion:" + id
}

// every conversion id is a member of exactly one status set and one
// chain/type/status set, both moved together on status change
func statusSetKey(status types.ConversionStatus) string {
	return fmt.Sprintf("conversions:%s", status)
}

func chainStatusSetKey(chain string, typ types.Asset, status types.ConversionStatus) string {
	return fmt.Sprintf("conversions:%s:%s:%s", chain, typ, status)
}

func (s *Store) TransactionExists(ctx context.Context, typ types.Asset, chain, id string) (bool, error) {
	conn, err := s.conn(ctx)
	if err != nil {
		return false, err
	}
	defer conn.Close()

	exists, err := redis.Bool(conn.Do("EXISTS", transactionKey(typ, chain, id)))
	if err != nil {
		return false, fmt.Errorf("error Redis EXISTS transaction: %w", err)
	}
	return exists, nil
}

// CreateTransaction stores tx once, a second create with the same
// (type, chain, id) fails with ErrDuplicate.
func (s *Store) CreateTransaction(ctx context.Context, tx *types.Transaction) error {
	if tx == nil {
		return errors.New("null object to store")
	}
	if tx.ID == "" {
		return errors.New("transaction must have an id")
	}
	if tx.RecordID == "" {
		tx.RecordID = uuid.New().String()
	}

	body, err := json.Marshal(tx)
	if err != nil {
		return fmt.Errorf("cannot marshal transaction to JSON: %w", err)
	}

	conn, err := s.conn(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	reply, err := conn.Do("SET", transactionKey(tx.Type, tx.Chain, tx.ID), body, "NX")
	if err != nil {
		return fmt.Errorf("error Redis SET transaction: %w", err)
	}
	if reply == nil {
		return fmt.Errorf("transaction %s/%s/%s: %w", tx.Type, tx.Chain, tx.ID, ErrDuplicate)
	}
	return nil
}

func (s *Store) CreateConversion(ctx context.Context, c *types.Conversion) error {
	if c == nil {
		return errors.New("null object to store")
	}
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.Status == "" {
		c.Status = types.StatusPending
	}
	c.CreatedAt = s.now()
	return s.SaveConversion(ctx, c)
}

// SaveConversion writes the whole record and moves it between status sets.
func (s *Store) SaveConversion(ctx context.Context, c *types.Conversion) error {
	if c == nil {
		return errors.New("null object to store")
	}
	if c.ID == "" {
		return errors.New("conversion must have an id")
	}
	if !c.Status.Valid() {
		return fmt.Errorf("conversion cannot have status %q", c.Status)
	}

	conn, err := s.conn(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	prev, err := loadConversion(conn, c.ID)
	if err != nil {
		return err
	}

	c.UpdatedAt = s.now()
	body, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("cannot marshal conversion to JSON: %w", err)
	}

	type command struct {
		name string
		args []interface{}
	}
	cmds := []command{{"SET", []interface{}{conversionKey(c.ID), body}}}
	if prev != nil && (prev.Status != c.Status || prev.Chain != c.Chain || prev.Type != c.Type) {
		cmds = append(cmds,
			command{"SREM", []interface{}{statusSetKey(prev.Status), c.ID}},
			command{"SREM", []interface{}{chainStatusSetKey(prev.Chain, prev.Type, prev.Status), c.ID}})
	}
	cmds = append(cmds,
		command{"SADD", []interface{}{statusSetKey(c.Status), c.ID}},
		command{"SADD", []interface{}{chainStatusSetKey(c.Chain, c.Type, c.Status), c.ID}})

	if err := conn.Send("MULTI"); err != nil {
		return fmt.Errorf("error Redis MULTI conversion %s: %w", c.ID, err)
	}
	for _, cmd := range cmds {
		if err := conn.Send(cmd.name, cmd.args...); err != nil {
			// redigo discards the open MULTI when the pooled connection is closed
			return fmt.Errorf("error Redis %s conversion %s: %w", cmd.name, c.ID, err)
		}
	}
	if _, err := conn.Do("EXEC"); err != nil {
		return fmt.Errorf("error Redis EXEC conversion %s: %w", c.ID, err)
	}
	return nil
}

func (s *Store) GetConversion(ctx context.Context, id string) (*types.Conversion, error) {
	conn, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	return loadConversion(conn, id)
}

func loadConversion(conn redis.Conn, id string) (*types.Conversion, error) {
	body, err := redis.Bytes(conn.Do("GET", conversionKey(id)))
	if errors.Is(err, redis.ErrNil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error Redis GET conversion: %w", err)
	}

	var c types.Conversion
	if err := json.Unmarshal(body, &c); err != nil {
		return nil, fmt.Errorf("cannot unmarshal conversion %s: %w", id, err)
	}
	return &c, nil
}

// FindConversions returns conversions matching q ordered by creation time.
// Status is required, it selects the index set to read.
func (s *Store) FindConversions(ctx context.Context, q types.ConversionQuery) ([]*types.Conversion, error) {
	if !q.Status.Valid() {
		return nil, fmt.Errorf("unknown conversion status %q", q.Status)
	}

	conn, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	setKey := statusSetKey(q.Status)
	if q.Chain != "" && q.Type != "" {
		setKey = chainStatusSetKey(q.Chain, q.Type, q.Status)
	}

	ids, err := redis.Strings(conn.Do("SMEMBERS", setKey))
	if err != nil {
		return nil, fmt.Errorf("error Redis SMEMBERS %s: %w", setKey, err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = conversionKey(id)
	}
	bodies, err := redis.ByteSlices(conn.Do("MGET", args...))
	if err != nil {
		return nil, fmt.Errorf("error Redis MGET conversions: %w", err)
	}

	conversions := make([]*types.Conversion, 0, len(bodies))
	for i, body := range bodies {
		// a record can be missing if the set was written by hand, skip it
		if body == nil {
			continue
		}
		var c types.Conversion
		if err := json.Unmarshal(body, &c); err != nil {
			return nil, fmt.Errorf("cannot unmarshal conversion %s: %w", ids[i], err)
		}
		if c.Status != q.Status ||
			(q.Chain != "" && c.Chain != q.Chain) ||
			(q.Type != "" && c.Type != q.Type) {
			continue
		}
		conversions = append(conversions, &c)
	}

	sort.Slice(conversions, func(i, j int) bool {
		return conversions[i].CreatedAt.Before(conversions[j].CreatedAt)
	})
	return conversions, nil
}
