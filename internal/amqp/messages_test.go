package amqp

import "testing"

func TestCollectionChangedMessageRoundTrip(t *testing.T) {
	msg := NewCollectionChangedMessage("houses/h1/budgets", "origin-1")

	data, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("to json: %v", err)
	}

	got, err := CollectionChangedMessageFromJSON(data)
	if err != nil {
		t.Fatalf("from json: %v", err)
	}
	if got.Collection != msg.Collection || got.Origin != msg.Origin {
		t.Errorf("got %+v, want %+v", got, msg)
	}
	if got.Timestamp.IsZero() {
		t.Error("timestamp must survive the round trip")
	}
}

func TestCollectionChangedMessageBadJSON(t *testing.T) {
	if _, err := CollectionChangedMessageFromJSON([]byte("{not json")); err == nil {
		t.Fatal("expected error for malformed payload")
	}
}
