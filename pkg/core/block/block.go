package block

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nspcc-dev/eventbridge/pkg/core/transaction"
)

// Block represents one block in the chain.
type Block struct {
	ID        uint64 `json:"id,string"`
	Height    uint32 `json:"height"`
	Timestamp uint64 `json:"timestamp"`
	// Generator is the account that forged the block, it gets all fees.
	Generator    uint64                     `json:"generator,string"`
	Transactions []*transaction.Transaction `json:"tx"`
}

// Verify checks the block for internal consistency.
func (b *Block) Verify() error {
	if b.ID == 0 {
		return errors.New("zero block id")
	}
	seen := make(map[uint64]struct{}, len(b.Transactions))
	for _, tx := range b.Transactions {
		if err := tx.Validate(); err != nil {
			return fmt.Errorf("tx %d: %w", tx.ID, err)
		}
		if _, ok := seen[tx.ID]; ok {
			return errors.New("transaction duplication is not allowed")
		}
		seen[tx.ID] = struct{}{}
	}
	return nil
}

// TotalFee returns the sum of all transaction fees.
func (b *Block) TotalFee() int64 {
	var fee int64
	for _, tx := range b.Transactions {
		fee += tx.Fee
	}
	return fee
}

// Bytes returns the serialized block.
func (b *Block) Bytes() ([]byte, error) {
	return json.Marshal(b)
}

// NewBlockFromBytes decodes a block serialized with Bytes.
func NewBlockFromBytes(data []byte) (*Block, error) {
	b := new(Block)
	if err := json.Unmarshal(data, b); err != nil {
		return nil, err
	}
	return b, nil
}
