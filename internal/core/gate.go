package core

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/brandchat-server/internal/bus"
	"github.com/vovakirdan/brandchat-server/internal/store"
)

// Gate admits connections once, at handshake time.
type Gate struct {
	brands store.BrandStore
	bus    bus.Bus
	now    func() time.Time
	log    *zerolog.Logger
}

// NewGate creates a gate.
func NewGate(brands store.BrandStore, b bus.Bus, logger *zerolog.Logger) *Gate {
	return &Gate{brands: brands, bus: b, now: time.Now, log: orNop(logger)}
}

// Admit applies the consumer kind's policy and returns a new unjoined
// session. offered is the subprotocol list left after the credential was
// stripped. Operator sessions are enrolled in the operators group.
func (g *Gate) Admit(ctx context.Context, kind ConsumerKind, user *store.User, offered []string, client *Client) (*Session, error) {
	if user == nil {
		return nil, ErrUnauthenticated
	}
	if !slices.Contains(offered, kind.Subprotocol()) {
		return nil, fmt.Errorf("%w: subprotocol %q not offered", ErrRejected, kind.Subprotocol())
	}

	session := &Session{
		Client: client,
		User:   user,
		Kind:   kind,
		bus:    g.bus,
		log:    g.log,
	}

	switch kind {
	case ConsumerOperator:
		if !user.IsOperator() {
			return nil, fmt.Errorf("%w: user %d is not staff", ErrRejected, user.ID)
		}
		if err := g.bus.Add(ctx, bus.OperatorsGroup, client); err != nil {
			return nil, infra("join operators group", err)
		}
	default:
		brand, err := g.brands.GetBrandByUserID(ctx, user.ID)
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: user %d has no brand", ErrRejected, user.ID)
		}
		if err != nil {
			return nil, infra("get brand", err)
		}
		active, err := g.brands.IsSubscriptionActive(ctx, brand.ID, g.now())
		if err != nil {
			return nil, infra("check subscription", err)
		}
		if !active {
			return nil, fmt.Errorf("%w: brand %d has no active subscription", ErrRejected, brand.ID)
		}
		session.Brand = brand
	}

	sl := g.log.With().Str("conn_id", client.ID()).Int64("user_id", user.ID).Str("consumer", kind.String()).Logger()
	session.log = &sl
	return session, nil
}

func orNop(logger *zerolog.Logger) *zerolog.Logger {
	if logger == nil {
		nop := zerolog.Nop()
		return &nop
	}
	return logger
}
