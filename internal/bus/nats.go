package bus

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// DefaultNATSSubject is the subject shared by gateway instances.
const DefaultNATSSubject = "brandchat.events"

// NATSBus fans publications out through a NATS subject. Like RedisBus it
// keeps membership local and delivers every publication to local members.
type NATSBus struct {
	table   *Table
	nc      *nats.Conn
	subject string
	log     *zerolog.Logger
}

// NewNATSBus creates a bus on top of a NATS connection.
func NewNATSBus(nc *nats.Conn, subject string, logger *zerolog.Logger) *NATSBus {
	if subject == "" {
		subject = DefaultNATSSubject
	}
	return &NATSBus{
		table:   NewTable(),
		nc:      nc,
		subject: subject,
		log:     orNop(logger),
	}
}

// Add subscribes sub to group on this instance.
func (b *NATSBus) Add(_ context.Context, group string, sub Subscriber) error {
	b.table.Add(group, sub)
	return nil
}

// Discard unsubscribes sub from group on this instance.
func (b *NATSBus) Discard(_ context.Context, group string, sub Subscriber) error {
	b.table.Discard(group, sub)
	return nil
}

// Members lists subscriber ids of group on this instance.
func (b *NATSBus) Members(group string) []string {
	return b.table.Members(group)
}

// Publish sends the publication to every instance, this one included.
func (b *NATSBus) Publish(_ context.Context, pub Publication) error {
	data, err := json.Marshal(pub)
	if err != nil {
		return fmt.Errorf("marshal publication: %w", err)
	}
	if err := b.nc.Publish(b.subject, data); err != nil {
		return fmt.Errorf("nats publish: %w", err)
	}
	return nil
}

// Run subscribes to the subject and delivers incoming publications locally
// until ctx is cancelled.
func (b *NATSBus) Run(ctx context.Context) error {
	sub, err := b.nc.Subscribe(b.subject, func(msg *nats.Msg) {
		var pub Publication
		if err := json.Unmarshal(msg.Data, &pub); err != nil {
			b.log.Warn().Err(err).Msg("malformed publication")
			return
		}
		deliver(b.table, pub, b.log)
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}
	if err := b.nc.Flush(); err != nil {
		_ = sub.Unsubscribe()
		return fmt.Errorf("nats flush: %w", err)
	}
	b.log.Info().Str("subject", b.subject).Msg("nats bus subscribed")

	<-ctx.Done()
	if err := sub.Unsubscribe(); err != nil && !b.nc.IsClosed() {
		return fmt.Errorf("nats unsubscribe: %w", err)
	}
	return nil
}
