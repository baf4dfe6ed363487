package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gomodule/redigo/redis"
)

// ErrDuplicate is returned when a record with the same unique key already exists.
var ErrDuplicate = errors.New("record already exists")

// Store keeps checkpoints, transfer requests, transactions and conversions in Redis.
type Store struct {
	pool *redis.Pool
	now  func() time.Time
}

func timeoutDialOptions(password string, db int) []redis.DialOption {
	opts := []redis.DialOption{
		redis.DialConnectTimeout(5 * time.Second),
		redis.DialReadTimeout(5 * time.Second),
		redis.DialWriteTimeout(5 * time.Second),
		redis.DialDatabase(db),
	}
	if password != "" {
		opts = append(opts, redis.DialPassword(password))
	}
	return opts
}

func NewStore(host string, port int, password string, db int) *Store {
	redisAddr := fmt.Sprintf("%s:%d", host, port)
	return NewStoreWithPool(&redis.Pool{
		MaxIdle:     5,
		IdleTimeout: 240 * time.Second,
		Dial: func() (redis.Conn, error) {
			return redis.Dial("tcp", redisAddr, timeoutDialOptions(password, db)...)
		},
	})
}

func NewStoreWithPool(pool *redis.Pool) *Store {
	return &Store{pool: pool, now: time.Now}
}

// Ping checks the connection, without persistence the relayer must not start.
func (s *Store) Ping(ctx context.Context) error {
	conn, err := s.pool.GetContext(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	_, err = conn.Do("PING")
	return err
}

func (s *Store) Close() error {
	return s.pool.Close()
}

func (s *Store) conn(ctx context.Context) (redis.Conn, error) {
	conn, err := s.pool.GetContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("error Redis connection: %w", err)
	}
	return conn, nil
}
