package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/gomodule/redigo/redis"
)

func dataKey(name string) string {
	return "data:" + name
}

// Get returns the stored value for name. When nothing is stored the
// initializer result is returned instead (and not persisted).
// A nil initializer yields an empty string.
func (s *Store) Get(ctx context.Context, name string, init func(context.Context) (string, error)) (string, error) {
	value, found, err := s.get(ctx, name)
	if err != nil {
		return "", err
	}
	if found {
		return value, nil
	}
	if init == nil {
		return "", nil
	}
	return init(ctx)
}

func (s *Store) get(ctx context.Context, name string) (string, bool, error) {
	conn, err := s.conn(ctx)
	if err != nil {
		return "", false, err
	}
	defer conn.Close()

	value, err := redis.String(conn.Do("GET", dataKey(name)))
	if errors.Is(err, redis.ErrNil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("error Redis GET %s: %w", name, err)
	}
	return value, true, nil
}

func (s *Store) Set(ctx context.Context, name, value string) error {
	conn, err := s.conn(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	if _, err := conn.Do("SET", dataKey(name), value); err != nil {
		return fmt.Errorf("error Redis SET %s: %w", name, err)
	}
	return nil
}
