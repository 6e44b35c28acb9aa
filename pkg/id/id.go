// Package id mints and validates the run identifiers stamped into artifact
// names and the issue feed. Identifiers are ULIDs, so artifacts from
// consecutive runs sort lexically by start time.
package id

import (
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	mutex   sync.Mutex
	entropy = ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0)
)

// ID identifies one scan run.
type ID struct {
	value ulid.ULID
}

// NewFromTime mints an identifier carrying the given start time. Two calls
// within the same millisecond still produce distinct identifiers.
func NewFromTime(t time.Time) (*ID, error) {
	mutex.Lock()
	defer mutex.Unlock()

	value, err := ulid.New(uint64(t.UnixMilli()), entropy)
	if err != nil {
		return nil, err
	}

	return &ID{value}, nil
}

// MustNewString mints an identifier for a run starting now. Minting only
// fails once the millisecond clock overflows the ULID timestamp space, so
// callers treat failure as a programming error.
func MustNewString() string {
	runID, err := NewFromTime(time.Now())
	if err != nil {
		panic(err)
	}

	return runID.String()
}

// Parse rejects strings that are not canonical run identifiers.
func Parse(s string) (*ID, error) {
	value, err := ulid.ParseStrict(s)
	if err != nil {
		return nil, err
	}

	return &ID{value}, nil
}

func IsValid(s string) bool {
	if _, err := Parse(s); err != nil {
		return false
	}
	return true
}

func (id *ID) String() string {
	return id.value.String()
}

// Time returns the start time carried in the identifier.
func (id *ID) Time() time.Time {
	return ulid.Time(id.value.Time())
}
