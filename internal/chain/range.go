package chain

import "fmt"

// BlockRange represents an inclusive block range.
type BlockRange struct {
	From uint64
	To   uint64
}

// SplitRange splits [from, to] into batches of at most batchSize blocks,
// newest batch first so recent matches are found early.
func SplitRange(from, to, batchSize uint64) ([]BlockRange, error) {
	if batchSize == 0 {
		return nil, fmt.Errorf("batch size must be greater than zero")
	}
	if to < from {
		return nil, fmt.Errorf("to block must be >= from block")
	}

	ranges := make([]BlockRange, 0, (to-from)/batchSize+1)
	end := to
	for {
		start := from
		if end-from+1 > batchSize {
			start = end - batchSize + 1
		}
		ranges = append(ranges, BlockRange{From: start, To: end})
		if start == from {
			break
		}
		end = start - 1
	}
	return ranges, nil
}
