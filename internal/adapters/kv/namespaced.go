package kv

import (
	"context"

	"standmap-service/internal/ports"
)

// Namespaced scopes every key of an underlying store under "<prefix>:".
type Namespaced struct {
	inner  ports.KeyValueStore
	prefix string
}

func NewNamespaced(inner ports.KeyValueStore, prefix string) *Namespaced {
	return &Namespaced{inner: inner, prefix: prefix}
}

func (n *Namespaced) key(k string) string {
	if n.prefix == "" {
		return k
	}
	return n.prefix + ":" + k
}

func (n *Namespaced) SetItem(ctx context.Context, key string, value string) error {
	return n.inner.SetItem(ctx, n.key(key), value)
}

func (n *Namespaced) GetItem(ctx context.Context, key string) (string, bool, error) {
	return n.inner.GetItem(ctx, n.key(key))
}
