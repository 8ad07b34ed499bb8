package bus

import (
	"context"

	"github.com/rs/zerolog"
)

// MemoryBus delivers publications to subscribers of this process.
type MemoryBus struct {
	table *Table
	log   *zerolog.Logger
}

// NewMemoryBus creates an in-process bus.
func NewMemoryBus(logger *zerolog.Logger) *MemoryBus {
	return &MemoryBus{table: NewTable(), log: orNop(logger)}
}

// Add subscribes sub to group.
func (b *MemoryBus) Add(_ context.Context, group string, sub Subscriber) error {
	b.table.Add(group, sub)
	return nil
}

// Discard unsubscribes sub from group.
func (b *MemoryBus) Discard(_ context.Context, group string, sub Subscriber) error {
	b.table.Discard(group, sub)
	return nil
}

// Members lists subscriber ids of group.
func (b *MemoryBus) Members(group string) []string {
	return b.table.Members(group)
}

// Publish delivers the payload to the members of every group once.
func (b *MemoryBus) Publish(_ context.Context, pub Publication) error {
	deliver(b.table, pub, b.log)
	return nil
}

func deliver(table *Table, pub Publication, logger *zerolog.Logger) int {
	delivered := 0
	for _, sub := range table.Recipients(pub.Groups, pub.Exclude) {
		if !sub.Deliver(pub.Payload) {
			logger.Warn().Str("conn_id", sub.ID()).Strs("groups", pub.Groups).Msg("dropped delivery to slow or closed connection")
			continue
		}
		delivered++
	}
	return delivered
}

func orNop(logger *zerolog.Logger) *zerolog.Logger {
	if logger == nil {
		nop := zerolog.Nop()
		return &nop
	}
	return logger
}
