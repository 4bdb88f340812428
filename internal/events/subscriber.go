// Package events turns vault domain events received over NATS into cache
// invalidations.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"

	"github.com/yourorg/vault-risk-engine/internal/cache"
	"github.com/yourorg/vault-risk-engine/internal/types"
)

// Event types
const (
	TypeVaultStateChanged = "vault_state_changed"
	TypeAnalyticsRefresh  = "analytics_refresh"
	TypeCacheFlush        = "cache_flush"
)

// ErrUnknownEvent is returned for an event type with no invalidation rule
var ErrUnknownEvent = errors.New("unknown event type")

// handleTimeout bounds the invalidation work of one message
const handleTimeout = 10 * time.Second

// Event is the wire format of a domain event
type Event struct {
	Type    string        `json:"type"`
	ChainID types.ChainID `json:"chainId,omitempty"`
	Address string        `json:"address,omitempty"`
}

// Invalidator is the part of the cache the subscriber drives
type Invalidator interface {
	InvalidateByTag(ctx context.Context, tag cache.Tag) (int, error)
}

// TagsFor returns the tags an event type invalidates
func TagsFor(eventType string) ([]cache.Tag, error) {
	switch eventType {
	case TypeVaultStateChanged:
		return []cache.Tag{cache.TagVault, cache.TagPortfolio}, nil
	case TypeAnalyticsRefresh:
		return []cache.Tag{cache.TagAnalytics}, nil
	case TypeCacheFlush:
		return []cache.Tag{cache.TagAll}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, eventType)
	}
}

// Handle decodes one message and applies its invalidations. It returns the
// number of invalidated keys.
func Handle(ctx context.Context, inv Invalidator, data []byte) (int, error) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return 0, fmt.Errorf("decode event: %w", err)
	}
	tags, err := TagsFor(ev.Type)
	if err != nil {
		return 0, err
	}

	total := 0
	for _, tag := range tags {
		n, err := inv.InvalidateByTag(ctx, tag)
		if err != nil {
			return total, fmt.Errorf("invalidate %s: %w", tag, err)
		}
		total += n
	}

	logrus.WithFields(logrus.Fields{
		"event":    ev.Type,
		"chain_id": int(ev.ChainID),
		"address":  ev.Address,
		"count":    total,
	}).Info("Applied invalidation event")
	return total, nil
}

// Subscriber listens on a NATS subject
type Subscriber struct {
	conn *nats.Conn
	sub  *nats.Subscription
	inv  Invalidator
}

// Subscribe connects to url and starts handling messages on subject
func Subscribe(url, subject string, inv Invalidator) (*Subscriber, error) {
	conn, err := nats.Connect(url,
		nats.Name("vault-risk-engine"),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logrus.Warnf("NATS disconnected: %v", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logrus.WithField("url", nc.ConnectedUrl()).Info("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	s := &Subscriber{conn: conn, inv: inv}
	sub, err := conn.Subscribe(subject, s.onMessage)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", subject, err)
	}
	s.sub = sub

	logrus.WithField("subject", subject).Info("Listening for invalidation events")
	return s, nil
}

func (s *Subscriber) onMessage(msg *nats.Msg) {
	ctx, cancel := context.WithTimeout(context.Background(), handleTimeout)
	defer cancel()

	if _, err := Handle(ctx, s.inv, msg.Data); err != nil {
		logrus.WithField("subject", msg.Subject).Warnf("Ignoring event: %v", err)
	}
}

// Close unsubscribes and drains the connection
func (s *Subscriber) Close() error {
	if err := s.sub.Unsubscribe(); err != nil {
		logrus.Warnf("NATS unsubscribe failed: %v", err)
	}
	return s.conn.Drain()
}
