package doculite

import (
	"testing"
	"time"
)

func TestNewObjectIdIsValidHex(t *testing.T) {
	id := NewObjectId()
	AssertTrue(t, id.Valid(), "freshly generated id should be valid")
	AssertEqual(t, len(id.Hex()), objectIdLen, "hex length")
}

func TestNewObjectIdUniqueAcrossCalls(t *testing.T) {
	seen := make(map[ObjectId]bool)
	for i := 0; i < 100; i++ {
		id := NewObjectId()
		AssertFalse(t, seen[id], "id collided within one batch")
		seen[id] = true
	}
}

func TestObjectIdHexRoundTrip(t *testing.T) {
	id := NewObjectId()
	parsed := ObjectIdHex(id.Hex())
	AssertEqual(t, parsed, id, "round trip through ObjectIdHex")
}

func TestObjectIdHexPanicsOnGarbage(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected ObjectIdHex to panic on malformed input")
		}
	}()
	ObjectIdHex("not-a-valid-id")
}

func TestIsObjectIdHex(t *testing.T) {
	AssertTrue(t, IsObjectIdHex(string(NewObjectId())), "well-formed id")
	AssertFalse(t, IsObjectIdHex("short"), "too short")
	AssertFalse(t, IsObjectIdHex("zzzzzzzzzzzzzzzzzzzzzzzz"), "non-hex characters")
}

func TestObjectIdTimeMatchesGenerationSecond(t *testing.T) {
	before := time.Now().Truncate(time.Second)
	id := NewObjectId()
	after := time.Now().Truncate(time.Second).Add(time.Second)

	got := id.Time()
	AssertTrue(t, !got.Before(before) && !got.After(after), "embedded timestamp out of range")
}
