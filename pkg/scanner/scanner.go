// Package scanner replays wBAN burn events from the chain into the ledger.
// It walks the block range since the last checkpoint in bounded chunks, so
// a long outage catches up without one oversized log query.
package scanner

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/wBanano/wban-backend/pkg/bsc"
	"github.com/wBanano/wban-backend/pkg/ledger"
)

// Range is an inclusive block range
type Range struct {
	From int64
	To   int64
}

// SplitRange cuts [from, to] into chunks of at most size blocks
func SplitRange(from, to, size int64) []Range {
	if to < from || size <= 0 {
		return nil
	}
	var chunks []Range
	for start := from; start <= to; start += size {
		end := start + size - 1
		if end > to {
			end = to
		}
		chunks = append(chunks, Range{From: start, To: end})
	}
	return chunks
}

// Ingest consumes one burn event. It must be replay-safe: the scanner can
// hand over the same event again after a crash.
type Ingest func(ctx context.Context, event bsc.BurnEvent) error

// Config tunes the scanner
type Config struct {
	// StartFromBlock seeds the first scan when no checkpoint exists yet,
	// typically the token contract's deployment block.
	StartFromBlock int64
	ChunkSize      int64
}

// Scanner walks the chain for burn events
type Scanner struct {
	ledger *ledger.Service
	chain  bsc.Client
	ingest Ingest
	cfg    Config
	logger *zap.Logger
}

func NewScanner(l *ledger.Service, chain bsc.Client, ingest Ingest, cfg Config, logger *zap.Logger) *Scanner {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 1000
	}
	return &Scanner{ledger: l, chain: chain, ingest: ingest, cfg: cfg, logger: logger}
}

// Scan processes all blocks between the checkpoint and the chain head. The
// checkpoint only advances after a chunk is fully ingested, so a failure
// rescans that chunk on the next pass.
func (s *Scanner) Scan(ctx context.Context) error {
	last, err := s.ledger.LastBlockProcessed(ctx)
	if err != nil {
		return err
	}
	from := last + 1
	if last == 0 && s.cfg.StartFromBlock > from {
		from = s.cfg.StartFromBlock
	}
	latest, err := s.chain.LatestBlock(ctx)
	if err != nil {
		return err
	}
	if from > latest {
		return nil
	}

	chunks := SplitRange(from, latest, s.cfg.ChunkSize)
	s.logger.Info("Scanning for burn events",
		zap.Int64("from", from),
		zap.Int64("to", latest),
		zap.Int("chunks", len(chunks)))

	for _, chunk := range chunks {
		events, err := s.chain.BurnEvents(ctx, chunk.From, chunk.To)
		if err != nil {
			return fmt.Errorf("failed to scan blocks %d to %d: %w", chunk.From, chunk.To, err)
		}
		for _, event := range events {
			if err := s.ingest(ctx, event); err != nil {
				return fmt.Errorf("failed to ingest burn %s: %w", event.TxHash.Hex(), err)
			}
		}
		if err := s.ledger.SetLastBlockProcessed(ctx, chunk.To); err != nil {
			return err
		}
	}
	return nil
}
