package core

//go:generate mockgen -source=signal_iface.go -destination=mocks/mock_sink.go -package=mocks

// Frame is one encoded outbound envelope.
type Frame []byte

// Sink abstracts the outbound transport of a player.
// Owned by the adapter; the adapter must Close() it.
// TrySend must not block: a full queue is a failed send.
type Sink interface {
	TrySend(Frame) error
	Close()
}
