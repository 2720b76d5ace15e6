package ledger

import "context"

// BlockStore persists blocks. AppendBlock must be durable before it returns.
type BlockStore interface {
	AppendBlock(ctx context.Context, b Block) error
	Blocks(ctx context.Context) ([]Block, error)
}
