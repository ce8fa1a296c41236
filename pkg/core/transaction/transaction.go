package transaction

import (
	"encoding/json"
	"errors"
)

// ErrInvalidTransaction is returned by Validate for structurally broken
// transactions.
var ErrInvalidTransaction = errors.New("invalid transaction")

// Transaction is a value transfer between two accounts. Phased transactions
// are held by the mempool until they're either released or rejected.
type Transaction struct {
	ID        uint64 `json:"id,string"`
	Sender    uint64 `json:"sender,string"`
	Recipient uint64 `json:"recipient,string"`
	Amount    int64  `json:"amount"`
	Fee       int64  `json:"fee"`
	Phased    bool   `json:"phased,omitempty"`
}

// Validate performs basic sanity checks.
func (t *Transaction) Validate() error {
	switch {
	case t.ID == 0:
		return errors.Join(ErrInvalidTransaction, errors.New("zero id"))
	case t.Amount < 0 || t.Fee < 0:
		return errors.Join(ErrInvalidTransaction, errors.New("negative amount or fee"))
	case t.Sender == 0 || t.Recipient == 0:
		return errors.Join(ErrInvalidTransaction, errors.New("missing account"))
	}
	return nil
}

// Bytes returns the serialized transaction.
func (t *Transaction) Bytes() ([]byte, error) {
	return json.Marshal(t)
}

// NewTransactionFromBytes decodes a transaction serialized with Bytes.
func NewTransactionFromBytes(b []byte) (*Transaction, error) {
	tx := new(Transaction)
	if err := json.Unmarshal(b, tx); err != nil {
		return nil, err
	}
	return tx, nil
}

// IDs returns transaction ids of the given batch in order.
func IDs(txes []*Transaction) []uint64 {
	res := make([]uint64, 0, len(txes))
	for _, tx := range txes {
		res = append(res, tx.ID)
	}
	return res
}
