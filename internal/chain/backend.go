package chain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"mbsheets/internal/eventabi"
	"mbsheets/internal/filter"
	"mbsheets/internal/model"
	"mbsheets/internal/query"
	"mbsheets/internal/retry"
)

var _ query.Backend = (*Backend)(nil)

const (
	defaultBatchSize = 2000
	defaultScanTTL   = time.Minute
	maxScans         = 64
)

// EventResolver resolves signatures to ABI events.
type EventResolver interface {
	Resolve(ctx context.Context, signature string) (abi.Event, error)
}

// BackendConfig controls which blocks and contracts are scanned.
type BackendConfig struct {
	FromBlock uint64
	// ToBlock 0 means the head at the time a scan starts.
	ToBlock      uint64
	BatchSize    uint64
	Addresses    []common.Address
	Labels       map[string]common.Address
	MaxRetries   int
	RetryBackoff time.Duration
	// ScanTTL is how long a partially consumed scan is reused by later pages.
	// With ToBlock 0 the head is fixed when a scan starts, so a page at
	// offset 0 always starts a new scan; continuation pages may lag the head
	// by up to ScanTTL.
	ScanTTL time.Duration
}

// Backend answers custom queries straight from a node: it pulls logs for the
// event topic, decodes them and evaluates the filter tree locally. Results
// are ordered newest first.
type Backend struct {
	source   LogSource
	resolver EventResolver
	cfg      BackendConfig
	logger   *zap.Logger
	now      func() time.Time

	mu    sync.Mutex
	scans map[string]*scan
}

type match struct {
	log    types.Log
	values []interface{}
}

// scan is the progress of one query across block batches.
type scan struct {
	mu      sync.Mutex
	created time.Time
	ranges  []BlockRange
	next    int
	matches []match
}

// NewBackend creates a backend over source. A nil logger disables logging.
func NewBackend(source LogSource, resolver EventResolver, cfg BackendConfig, logger *zap.Logger) *Backend {
	if cfg.BatchSize == 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.ScanTTL <= 0 {
		cfg.ScanTTL = defaultScanTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Backend{
		source:   source,
		resolver: resolver,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
		scans:    make(map[string]*scan),
	}
}

// FetchEvents returns one page of matching events keyed by projection alias.
func (b *Backend) FetchEvents(ctx context.Context, page query.Spec) ([]model.ResultRow, error) {
	if page.GroupBy != "" || page.OrderBy != "" {
		return nil, &model.QueryRejectedError{Message: "group by and order by are not supported by the rpc backend"}
	}
	for _, p := range page.Projections {
		if p.Aggregator != "" {
			return nil, &model.QueryRejectedError{Message: fmt.Sprintf("aggregator %q is not supported by the rpc backend", p.Aggregator)}
		}
	}

	event, err := b.resolver.Resolve(ctx, page.EventSignature)
	if err != nil {
		return nil, &model.QueryRejectedError{Message: err.Error()}
	}
	for _, p := range page.Projections {
		if p.ArgIndex >= len(event.Inputs) {
			return nil, &model.QueryRejectedError{Message: fmt.Sprintf("input%d out of range for %s", p.ArgIndex, event.Sig)}
		}
	}

	s, err := b.scanFor(ctx, event, page.Filter, page.Offset == 0 && b.cfg.ToBlock == 0)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	want := page.Offset + page.Limit
	for len(s.matches) < want && s.next < len(s.ranges) {
		found, err := b.scanRange(ctx, event, page.Filter, s.ranges[s.next])
		if err != nil {
			return nil, err
		}
		s.matches = append(s.matches, found...)
		s.next++
	}

	if page.Offset >= len(s.matches) {
		return []model.ResultRow{}, nil
	}
	end := want
	if end > len(s.matches) {
		end = len(s.matches)
	}

	rows := make([]model.ResultRow, 0, end-page.Offset)
	for _, m := range s.matches[page.Offset:end] {
		row := make(model.ResultRow, len(page.Projections))
		for _, p := range page.Projections {
			row[p.Alias] = eventabi.CellValue(m.values[p.ArgIndex])
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// scanFor returns the cached scan for the query, or a new one when none is
// live or fresh is set.
func (b *Backend) scanFor(ctx context.Context, event abi.Event, tree *filter.Group, fresh bool) (*scan, error) {
	key, err := b.fingerprint(event, tree)
	if err != nil {
		return nil, err
	}

	now := b.now()
	b.mu.Lock()
	s, ok := b.scans[key]
	if ok && !fresh && now.Sub(s.created) < b.cfg.ScanTTL {
		b.mu.Unlock()
		return s, nil
	}
	b.mu.Unlock()

	to := b.cfg.ToBlock
	if to == 0 {
		err := retry.Do(ctx, b.policy(), func(ctx context.Context) error {
			var err error
			to, err = b.source.LatestBlockNumber(ctx)
			return err
		})
		if err != nil {
			return nil, &model.TransportError{Op: "eth_blockNumber", Err: err}
		}
	}
	if to < b.cfg.FromBlock {
		return &scan{created: now}, nil
	}
	ranges, err := SplitRange(b.cfg.FromBlock, to, b.cfg.BatchSize)
	if err != nil {
		return nil, err
	}

	s = &scan{created: now, ranges: ranges}
	b.mu.Lock()
	for k, old := range b.scans {
		if now.Sub(old.created) >= b.cfg.ScanTTL || len(b.scans) >= maxScans {
			delete(b.scans, k)
		}
	}
	b.scans[key] = s
	b.mu.Unlock()
	return s, nil
}

func (b *Backend) fingerprint(event abi.Event, tree *filter.Group) (string, error) {
	raw, err := json.Marshal(filter.ToWire(tree))
	if err != nil {
		return "", fmt.Errorf("encode filter: %w", err)
	}
	return event.Sig + "|" + string(raw), nil
}

func (b *Backend) scanRange(ctx context.Context, event abi.Event, tree *filter.Group, r BlockRange) ([]match, error) {
	var logs []types.Log
	err := retry.Do(ctx, b.policy(), func(ctx context.Context) error {
		var err error
		logs, err = b.source.FilterLogs(ctx, r.From, r.To, b.cfg.Addresses, []common.Hash{event.ID})
		return err
	})
	if err != nil {
		return nil, &model.TransportError{Op: "eth_getLogs", Err: err}
	}

	sort.SliceStable(logs, func(i, j int) bool {
		if logs[i].BlockNumber != logs[j].BlockNumber {
			return logs[i].BlockNumber > logs[j].BlockNumber
		}
		return logs[i].Index > logs[j].Index
	})

	found := make([]match, 0)
	for _, lg := range logs {
		if lg.Removed {
			continue
		}
		decoded, values, err := decodeLog(event, lg)
		if err != nil {
			return nil, &model.QueryRejectedError{Message: fmt.Sprintf(
				"decode %s log in tx %s: %v; load the contract ABI or mark indexed arguments in the signature",
				event.Sig, lg.TxHash.Hex(), err,
			)}
		}

		ok, err := filter.Match(tree, b.record(ctx, decoded, lg, values))
		if err != nil {
			return nil, &model.QueryRejectedError{Message: err.Error()}
		}
		if ok {
			found = append(found, match{log: lg, values: values})
		}
	}

	b.logger.Debug("range scanned",
		zap.String("event", event.Sig),
		zap.Uint64("from_block", r.From),
		zap.Uint64("to_block", r.To),
		zap.Int("logs", len(logs)),
		zap.Int("matches", len(found)),
	)
	return found, nil
}

// decodeLog decodes lg as event. When event comes from a signature without
// indexed markers, the leading arguments are taken as indexed, one per topic.
func decodeLog(event abi.Event, lg types.Log) (abi.Event, []interface{}, error) {
	values, err := eventabi.DecodeLog(event, lg)
	if err == nil {
		return event, values, nil
	}
	if eventabi.HasIndexed(event) || event.Anonymous || len(lg.Topics) < 2 {
		return event, nil, err
	}
	inferred, inferErr := eventabi.WithIndexedPrefix(event, len(lg.Topics)-1)
	if inferErr != nil {
		return event, nil, err
	}
	values, err = eventabi.DecodeLog(inferred, lg)
	if err != nil {
		return event, nil, err
	}
	return inferred, values, nil
}

func (b *Backend) record(ctx context.Context, event abi.Event, lg types.Log, values []interface{}) filter.Record {
	block := lg.BlockNumber
	return filter.Record{
		Event:       event,
		Values:      values,
		BlockNumber: block,
		Address:     lg.Address,
		TxHash:      lg.TxHash,
		Timestamp: func() (uint64, error) {
			return b.source.BlockTimestamp(ctx, block)
		},
		Labels: b.cfg.Labels,
	}
}

func (b *Backend) policy() retry.Policy {
	return retry.Policy{
		MaxRetries: b.cfg.MaxRetries,
		BaseDelay:  b.cfg.RetryBackoff,
		Retryable: func(err error) bool {
			return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
		},
	}
}
