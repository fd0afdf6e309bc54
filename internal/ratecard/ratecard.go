package ratecard

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/iwvelando/mediaplan/pkg/constants"
)

// Program is one rate card row.
type Program struct {
	ID      int64  `json:"Id" yaml:"id"`
	Channel string `json:"Channel" yaml:"channel"`
	Day     string `json:"Day" yaml:"day"`
	Time    string `json:"Time" yaml:"time"`
	Program string `json:"Program" yaml:"program"`
	Slot    string `json:"Slot" yaml:"slot"`

	// Cost is the rate card price for a 30 second spot.
	Cost any `json:"Cost" yaml:"cost"`
	// TVR is the rating for the selected audience definition.
	TVR any `json:"TVR" yaml:"tvr"`
	// NetCost is the negotiated net rate used when the channel is a special case.
	NetCost any `json:"NetCost,omitempty" yaml:"netCost,omitempty"`
	// ClientRate is the client specific rate used for client+channel special cases.
	ClientRate any `json:"ClientRate,omitempty" yaml:"clientRate,omitempty"`
}

// IsPrime reports whether the slot is prime time, including prime sub-slots.
func IsPrime(slot string) bool {
	return strings.HasPrefix(strings.ToUpper(strings.TrimSpace(slot)), constants.SlotPrime)
}

// IsNonPrime reports whether the slot is non-prime time.
func IsNonPrime(slot string) bool {
	return strings.EqualFold(strings.TrimSpace(slot), constants.SlotNonPrime)
}

// Store reads rate card programs.
type Store interface {
	// Lookup returns the programs whose ids are listed. Unknown ids are ignored.
	Lookup(ctx context.Context, ids []int64) ([]Program, error)
	// Channels returns the distinct channel names in ascending order.
	Channels(ctx context.Context) ([]string, error)
	// ProgramsByChannel returns every program of one channel.
	ProgramsByChannel(ctx context.Context, channel string) ([]Program, error)
}

// MemoryStore is a Store backed by a slice, used by the CLI for file based
// rate cards and by tests.
type MemoryStore struct {
	mu       sync.RWMutex
	programs []Program
}

// NewMemoryStore returns a store holding a copy of programs.
func NewMemoryStore(programs []Program) *MemoryStore {
	return &MemoryStore{programs: append([]Program(nil), programs...)}
}

// Lookup implements Store.
func (s *MemoryStore) Lookup(ctx context.Context, ids []int64) ([]Program, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	wanted := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Program
	for _, p := range s.programs {
		if _, ok := wanted[p.ID]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

// Channels implements Store.
func (s *MemoryStore) Channels(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]struct{})
	var channels []string
	for _, p := range s.programs {
		if _, ok := seen[p.Channel]; ok {
			continue
		}
		seen[p.Channel] = struct{}{}
		channels = append(channels, p.Channel)
	}
	sort.Strings(channels)
	return channels, nil
}

// ProgramsByChannel implements Store.
func (s *MemoryStore) ProgramsByChannel(ctx context.Context, channel string) ([]Program, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Program
	for _, p := range s.programs {
		if p.Channel == channel {
			out = append(out, p)
		}
	}
	return out, nil
}
