package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gowebpki/jcs"
)

// GenesisHash is the previous hash of the first block.
var GenesisHash = strings.Repeat("0", 64)

// TxType enum
type TxType string

const (
	TxCreation            TxType = "creation"
	TxExecutionUpdate     TxType = "execution_update"
	TxMilestoneCompletion TxType = "milestone_completion"
	TxAlert               TxType = "alert"
)

func (t TxType) Valid() bool {
	switch t {
	case TxCreation, TxExecutionUpdate, TxMilestoneCompletion, TxAlert:
		return true
	}
	return false
}

// Block is one immutable entry of the chain.
type Block struct {
	Index        int64          `json:"index"`
	Timestamp    string         `json:"timestamp"`
	AmendmentID  string         `json:"amendment_id"`
	Type         TxType         `json:"transaction_type"`
	Data         map[string]any `json:"data"`
	PreviousHash string         `json:"previous_hash"`
	Hash         string         `json:"hash"`
}

// header is every field of Block except its own hash.
type header struct {
	Index        int64          `json:"index"`
	Timestamp    string         `json:"timestamp"`
	AmendmentID  string         `json:"amendment_id"`
	Type         TxType         `json:"transaction_type"`
	Data         map[string]any `json:"data"`
	PreviousHash string         `json:"previous_hash"`
}

// ComputeHash is SHA-256 over the RFC 8785 canonical JSON of the block
// without its hash field.
func ComputeHash(b Block) (string, error) {
	raw, err := json.Marshal(header{
		Index:        b.Index,
		Timestamp:    b.Timestamp,
		AmendmentID:  b.AmendmentID,
		Type:         b.Type,
		Data:         b.Data,
		PreviousHash: b.PreviousHash,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal block %d: %w", b.Index, err)
	}
	canon, err := jcs.Transform(raw)
	if err != nil {
		return "", fmt.Errorf("failed to canonicalize block %d: %w", b.Index, err)
	}
	sum := sha256.Sum256(canon)
	return hex.EncodeToString(sum[:]), nil
}

// normalizePayload turns any JSON-encodable payload into the generic form a
// block carries once it has been stored and read back.
func normalizePayload(payload any) (map[string]any, error) {
	if payload == nil {
		return map[string]any{}, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("payload is not json encodable: %w", err)
	}
	out := map[string]any{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("payload must be a json object: %w", err)
	}
	return out, nil
}

// Clone deep-copies the payload so callers cannot reach into the chain.
func (b Block) Clone() Block {
	c := b
	c.Data = cloneMap(b.Data)
	return c
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case []any:
		s := make([]any, len(t))
		for i := range t {
			s[i] = cloneValue(t[i])
		}
		return s
	}
	return v
}
