package eventabi

import (
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/core/types"
)

// DecodeLog returns the event's argument values in declaration order.
// Indexed dynamic values (string, bytes, arrays) decode to their topic hash.
func DecodeLog(event abi.Event, log types.Log) ([]interface{}, error) {
	indexed := indexedArguments(event.Inputs)
	topics := log.Topics
	if !event.Anonymous {
		if len(topics) == 0 || topics[0] != event.ID {
			return nil, fmt.Errorf("log is not a %s event", event.Sig)
		}
		topics = topics[1:]
	}
	if len(topics) != len(indexed) {
		return nil, fmt.Errorf("expected %d indexed topics, got %d", len(indexed), len(topics))
	}

	indexedValues := make(map[string]interface{}, len(indexed))
	if err := abi.ParseTopicsIntoMap(indexedValues, indexed, topics); err != nil {
		return nil, fmt.Errorf("parse topics: %w", err)
	}

	dataValues, err := event.Inputs.NonIndexed().Unpack(log.Data)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", event.Name, err)
	}

	values := make([]interface{}, 0, len(event.Inputs))
	next := 0
	for _, arg := range event.Inputs {
		if arg.Indexed {
			values = append(values, indexedValues[arg.Name])
			continue
		}
		if next >= len(dataValues) {
			return nil, fmt.Errorf("unexpected %s values: %d", event.Name, len(dataValues))
		}
		values = append(values, dataValues[next])
		next++
	}
	return values, nil
}

// HasIndexed reports whether any argument of event is marked indexed.
func HasIndexed(event abi.Event) bool {
	for _, arg := range event.Inputs {
		if arg.Indexed {
			return true
		}
	}
	return false
}

// WithIndexedPrefix returns a copy of event whose first n arguments are
// indexed. Canonical signatures carry no indexed markers, so this recovers
// the usual layout from a log's topic count.
func WithIndexedPrefix(event abi.Event, n int) (abi.Event, error) {
	if n < 0 || n > len(event.Inputs) || n > 3 {
		return abi.Event{}, fmt.Errorf("%s cannot have %d indexed arguments", event.Sig, n)
	}
	args := make(abi.Arguments, len(event.Inputs))
	copy(args, event.Inputs)
	for i := range args {
		args[i].Indexed = i < n
	}
	return abi.NewEvent(event.Name, event.RawName, event.Anonymous, args), nil
}

func indexedArguments(args abi.Arguments) abi.Arguments {
	indexed := make(abi.Arguments, 0, len(args))
	for _, arg := range args {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	return indexed
}
