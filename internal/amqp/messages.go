package amqp

import (
	"encoding/json"
	"time"
)

// CollectionChangedMessage tells other instances that a collection changed.
// It carries no document data: receivers re-snapshot the collection from
// their own store, which keeps the message tiny and the ordering semantics
// identical to local writes.
type CollectionChangedMessage struct {
	Collection string    `json:"collection"`
	Origin     string    `json:"origin"`
	Timestamp  time.Time `json:"timestamp"`
}

// NewCollectionChangedMessage creates a change event stamped with the
// publishing instance's origin ID.
func NewCollectionChangedMessage(collection, origin string) *CollectionChangedMessage {
	return &CollectionChangedMessage{
		Collection: collection,
		Origin:     origin,
		Timestamp:  time.Now(),
	}
}

// ToJSON converts the message to JSON bytes.
func (m *CollectionChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// CollectionChangedMessageFromJSON creates a message from JSON bytes.
func CollectionChangedMessageFromJSON(data []byte) (*CollectionChangedMessage, error) {
	var msg CollectionChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
