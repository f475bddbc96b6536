package eventabi

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Registry resolves event signatures to ABI events. Events loaded from ABI
// files carry indexed flags and argument names; anything else is parsed from
// the signature itself.
type Registry struct {
	mu     sync.RWMutex
	events map[string]abi.Event
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{events: make(map[string]abi.Event)}
}

// LoadFiles registers the events of each ABI JSON file.
func (r *Registry) LoadFiles(paths []string) (int, error) {
	total := 0
	for _, path := range paths {
		file, err := os.Open(path)
		if err != nil {
			return total, fmt.Errorf("open abi: %w", err)
		}
		parsed, err := abi.JSON(file)
		file.Close()
		if err != nil {
			return total, fmt.Errorf("parse abi %s: %w", path, err)
		}
		total += r.Register(parsed)
	}
	return total, nil
}

// Register adds every event of an ABI and returns how many were added.
func (r *Registry) Register(parsed abi.ABI) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, event := range parsed.Events {
		r.events[event.Sig] = event
	}
	return len(parsed.Events)
}

// Resolve returns the event for a signature.
func (r *Registry) Resolve(_ context.Context, signature string) (abi.Event, error) {
	parsed, err := ParseSignature(signature)
	if err != nil {
		return abi.Event{}, err
	}

	r.mu.RLock()
	event, ok := r.events[parsed.Sig]
	r.mu.RUnlock()
	if ok {
		return event, nil
	}

	r.mu.Lock()
	if existing, ok := r.events[parsed.Sig]; ok {
		parsed = existing
	} else {
		r.events[parsed.Sig] = parsed
	}
	r.mu.Unlock()
	return parsed, nil
}
