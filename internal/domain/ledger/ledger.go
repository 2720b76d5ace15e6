// Package ledger is an append-only, hash-linked log of amendment state
// transitions. It is tamper-evident for a single writer, not a distributed
// consensus system.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Ledger is safe for concurrent use. Appends are serialized; readers get a
// consistent snapshot.
type Ledger struct {
	mu     sync.RWMutex
	chain  []Block
	store  BlockStore
	now    func() time.Time
	logger *slog.Logger
}

type Option func(*Ledger)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) { l.logger = logger }
}

// New builds an empty ledger. store may be nil for an in-memory chain.
func New(store BlockStore, opts ...Option) *Ledger {
	l := &Ledger{
		store:  store,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = l.logger.With("component", "ledger")
	return l
}

// Load replaces the in-memory chain with the stored one and verifies it.
// The chain is kept even when verification fails so it can be inspected;
// the returned error is then an *IntegrityError.
func (l *Ledger) Load(ctx context.Context) error {
	if l.store == nil {
		return nil
	}
	blocks, err := l.store.Blocks(ctx)
	if err != nil {
		return fmt.Errorf("failed to load ledger: %w", err)
	}
	l.mu.Lock()
	l.chain = blocks
	l.mu.Unlock()

	rep := l.Verify()
	l.logger.Info("ledger loaded", "blocks", rep.Total, "valid", rep.Valid)
	return rep.Err()
}

// Append adds a block for amendmentID. The block is persisted before it
// becomes visible; on any error the chain is unchanged.
func (l *Ledger) Append(ctx context.Context, amendmentID string, typ TxType, payload any) (Block, error) {
	if amendmentID == "" {
		return Block{}, fmt.Errorf("ledger append: empty amendment id")
	}
	if !typ.Valid() {
		return Block{}, fmt.Errorf("ledger append: unknown transaction type %q", typ)
	}
	data, err := normalizePayload(payload)
	if err != nil {
		return Block{}, fmt.Errorf("ledger append: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	prev := GenesisHash
	if n := len(l.chain); n > 0 {
		prev = l.chain[n-1].Hash
	}
	b := Block{
		Index:        int64(len(l.chain)) + 1,
		Timestamp:    l.now().UTC().Format(time.RFC3339Nano),
		AmendmentID:  amendmentID,
		Type:         typ,
		Data:         data,
		PreviousHash: prev,
	}
	if b.Hash, err = ComputeHash(b); err != nil {
		return Block{}, err
	}

	if l.store != nil {
		if err := l.store.AppendBlock(ctx, b); err != nil {
			return Block{}, fmt.Errorf("failed to persist block %d: %w", b.Index, err)
		}
	}
	l.chain = append(l.chain, b)
	return b.Clone(), nil
}

// History returns every block of one amendment in chain order.
func (l *Ledger) History(amendmentID string) []Block {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return history(l.chain, amendmentID)
}

func history(chain []Block, amendmentID string) []Block {
	var out []Block
	for _, b := range chain {
		if b.AmendmentID == amendmentID {
			out = append(out, b.Clone())
		}
	}
	return out
}

func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.chain)
}

// Report is the result of Verify.
type Report struct {
	Valid            bool   `json:"valid"`
	Total            int    `json:"total_blocks"`
	FirstBrokenIndex int64  `json:"first_broken_index,omitempty"`
	Reason           string `json:"reason,omitempty"`
	LastHash         string `json:"last_hash,omitempty"`
}

// Err is nil for a valid chain.
func (r Report) Err() error {
	if r.Valid {
		return nil
	}
	return &IntegrityError{Index: r.FirstBrokenIndex, Reason: r.Reason}
}

// Verify walks the whole chain and stops at the first broken block.
func (l *Ledger) Verify() Report {
	l.mu.RLock()
	defer l.mu.RUnlock()

	rep := verifyChain(l.chain)
	if !rep.Valid {
		l.logger.Error("ledger integrity violation",
			"first_broken_index", rep.FirstBrokenIndex, "reason", rep.Reason)
	}
	return rep
}

func verifyChain(chain []Block) Report {
	rep := Report{Valid: true, Total: len(chain)}
	prev := GenesisHash
	for i, b := range chain {
		fail := func(reason string) Report {
			rep.Valid = false
			rep.FirstBrokenIndex = int64(i) + 1
			rep.Reason = reason
			return rep
		}
		if b.Index != int64(i)+1 {
			return fail(fmt.Sprintf("index %d out of sequence", b.Index))
		}
		if b.PreviousHash != prev {
			return fail("previous hash does not match")
		}
		h, err := ComputeHash(b)
		if err != nil {
			return fail(err.Error())
		}
		if h != b.Hash {
			return fail("hash does not match content")
		}
		prev = b.Hash
	}
	rep.LastHash = prev
	if len(chain) == 0 {
		rep.LastHash = ""
	}
	return rep
}

// AuditTrail is the per-amendment view of the chain.
type AuditTrail struct {
	AmendmentID       string  `json:"amendment_id"`
	TotalTransactions int     `json:"total_transactions"`
	ChainValid        bool    `json:"chain_valid"`
	Transactions      []Block `json:"transactions"`
}

// AuditTrail reads the blocks and verifies the chain under one read lock,
// so ChainValid describes the same chain the transactions came from.
func (l *Ledger) AuditTrail(amendmentID string) AuditTrail {
	l.mu.RLock()
	blocks := history(l.chain, amendmentID)
	rep := verifyChain(l.chain)
	l.mu.RUnlock()

	if !rep.Valid {
		l.logger.Error("ledger integrity violation",
			"first_broken_index", rep.FirstBrokenIndex, "reason", rep.Reason)
	}
	if blocks == nil {
		blocks = []Block{}
	}
	return AuditTrail{
		AmendmentID:       amendmentID,
		TotalTransactions: len(blocks),
		ChainValid:        rep.Valid,
		Transactions:      blocks,
	}
}

// Check lets the ledger serve as a health check.
func (l *Ledger) Check(ctx context.Context) error {
	return l.Verify().Err()
}
