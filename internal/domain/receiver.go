package domain

import "github.com/google/uuid"

// ReceiverHandle identifies one registered receiver connection.
type ReceiverHandle uuid.UUID

func NewReceiverHandle() ReceiverHandle {
	return ReceiverHandle(uuid.New())
}

func (h ReceiverHandle) String() string {
	return uuid.UUID(h).String()
}

func (h ReceiverHandle) IsZero() bool {
	return uuid.UUID(h) == uuid.Nil
}

// Broadcaster fans a serialized command out to every registered receiver.
// It returns the number of receivers in the snapshot the payload was queued to.
type Broadcaster interface {
	Broadcast(payload []byte) (int, error)
}
