package storage

import "context"

// GroupStore persists MLS group snapshots.
type GroupStore interface {
	// SaveSnapshotsAtomic persists all snapshots or none (spec §4.3
	// "Atomic group snapshot save").
	SaveSnapshotsAtomic(ctx context.Context, snapshots []*GroupSnapshot) error
	LoadLatestSnapshot(ctx context.Context, channelID string) (*GroupSnapshot, error)
}

// ChannelStore persists at-rest-encrypted channel metadata.
type ChannelStore interface {
	SaveChannel(ctx context.Context, rec *ChannelRecord) error
	LoadChannel(ctx context.Context, channelID string) (*ChannelRecord, error)
	DeleteChannel(ctx context.Context, channelID string) error
}

// MessageStore persists the append-only message log.
type MessageStore interface {
	AppendMessage(ctx context.Context, msg *MessageRecord) error
	ListMessages(ctx context.Context, channelID string, fromSequence uint64, limit int) ([]*MessageRecord, error)
}

// KeyPackageStore persists single-use KeyPackages.
type KeyPackageStore interface {
	SaveKeyPackage(ctx context.Context, kp *KeyPackageRecord) error
	// LoadKeyPackage marks the row used and returns it; a subsequent
	// load of the same id fails with errs.ErrNotFound (spec §4.3
	// "KeyPackage single-use").
	LoadKeyPackage(ctx context.Context, id string) (*KeyPackageRecord, error)
}

// OperationLogStore persists the per-channel replayable operation log.
type OperationLogStore interface {
	AppendOperation(ctx context.Context, entry *OperationLogEntry) error
	ListOperationsSince(ctx context.Context, channelID string, sinceSequence uint64) ([]*OperationLogEntry, error)
	// CompactBefore drops log entries already covered by a snapshot.
	CompactBefore(ctx context.Context, channelID string, sequence uint64) error
}

// Store combines every storage sub-interface behind one backend handle.
type Store interface {
	Groups() GroupStore
	Channels() ChannelStore
	Messages() MessageStore
	KeyPackages() KeyPackageStore
	OperationLog() OperationLogStore

	Close() error
	// Ping satisfies pkg/health's Pinger interface so the health
	// checker can verify connectivity without importing this package's
	// concrete backends.
	Ping(ctx context.Context) error
}
