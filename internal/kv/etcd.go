package kv

import (
	"context"
	"fmt"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
)

// EtcdConfig configures the etcd backend
type EtcdConfig struct {
	Endpoints   []string
	DialTimeout time.Duration
	Username    string
	Password    string
}

// EtcdStore keeps values under their keys in etcd
type EtcdStore struct {
	client *clientv3.Client
}

// NewEtcdStore dials the cluster
func NewEtcdStore(cfg EtcdConfig) (*EtcdStore, error) {
	if len(cfg.Endpoints) == 0 {
		return nil, fmt.Errorf("etcd store requires at least one endpoint")
	}
	dialTimeout := cfg.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = 5 * time.Second
	}

	client, err := clientv3.New(clientv3.Config{
		Endpoints:   cfg.Endpoints,
		DialTimeout: dialTimeout,
		Username:    cfg.Username,
		Password:    cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to etcd: %w", err)
	}
	return &EtcdStore{client: client}, nil
}

func (e *EtcdStore) Get(ctx context.Context, key string) ([]byte, error) {
	resp, err := e.client.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to get %s from etcd: %w", key, err)
	}
	if len(resp.Kvs) == 0 {
		return nil, ErrNotFound
	}
	return resp.Kvs[0].Value, nil
}

func (e *EtcdStore) Set(ctx context.Context, key string, value []byte) error {
	if _, err := e.client.Put(ctx, key, string(value)); err != nil {
		return fmt.Errorf("failed to store %s in etcd: %w", key, err)
	}
	return nil
}

func (e *EtcdStore) Delete(ctx context.Context, key string) error {
	if _, err := e.client.Delete(ctx, key); err != nil {
		return fmt.Errorf("failed to delete %s from etcd: %w", key, err)
	}
	return nil
}

// List returns keys only; etcd already sorts by key
func (e *EtcdStore) List(ctx context.Context, prefix string) ([]string, error) {
	resp, err := e.client.Get(ctx, prefix, clientv3.WithPrefix(), clientv3.WithKeysOnly())
	if err != nil {
		return nil, fmt.Errorf("failed to list %s from etcd: %w", prefix, err)
	}

	keys := make([]string, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		keys = append(keys, string(kv.Key))
	}
	return keys, nil
}

func (e *EtcdStore) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	resp, err := e.client.Delete(ctx, prefix, clientv3.WithPrefix())
	if err != nil {
		return 0, fmt.Errorf("failed to delete %s from etcd: %w", prefix, err)
	}
	return int(resp.Deleted), nil
}

func (e *EtcdStore) Close() error {
	return e.client.Close()
}
