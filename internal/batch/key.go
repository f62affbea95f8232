// Package batch holds the pure parts of batch translation: batch identity,
// planning, context windows and the failed-batch ledger. Nothing here is
// safe for concurrent use; callers serialize access.
package batch

import (
	"fmt"
	"strconv"
	"strings"
)

// DerivedIndex is the batch index of a batch whose first item has id
// firstID under the given nominal batch size. It is the only place batch
// indexes come from.
func DerivedIndex(firstID, size int) int {
	if size <= 0 || firstID <= 0 {
		return 0
	}
	return (firstID - 1) / size
}

// Key identifies a batch by nominal size and derived index. Two batches of
// different sizes never share a key.
type Key struct {
	Size  int `json:"size"`
	Index int `json:"index"`
}

func KeyFor(firstID, size int) Key {
	return Key{Size: size, Index: DerivedIndex(firstID, size)}
}

// String renders the key as "size-index", e.g. "10-3".
func (k Key) String() string {
	return strconv.Itoa(k.Size) + "-" + strconv.Itoa(k.Index)
}

func (k Key) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *Key) UnmarshalText(b []byte) error {
	parsed, err := ParseKey(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

func ParseKey(s string) (Key, error) {
	sizeStr, indexStr, ok := strings.Cut(strings.TrimSpace(s), "-")
	if !ok {
		return Key{}, fmt.Errorf("invalid batch key %q", s)
	}
	size, err := strconv.Atoi(sizeStr)
	if err != nil || size <= 0 {
		return Key{}, fmt.Errorf("invalid batch key %q: bad size", s)
	}
	index, err := strconv.Atoi(indexStr)
	if err != nil || index < 0 {
		return Key{}, fmt.Errorf("invalid batch key %q: bad index", s)
	}
	return Key{Size: size, Index: index}, nil
}
