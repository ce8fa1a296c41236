/*
Package address implements the textual form of ledger account identifiers. An
account id is a plain uint64 internally, externally it's represented as a
base58check string with a version prefix, the same way node addresses are
usually shown to users. Account ids are derived from public keys, the first
eight bytes of the key's Hash160 make the id.
*/
package address

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"

	"github.com/mr-tron/base58"
	"github.com/nspcc-dev/eventbridge/pkg/crypto/hash"
)

const (
	// Prefix is the byte used to prepend to addresses when encoding them, it can
	// be changed and defaults to 0x21 which makes all addresses start with 'E'.
	Prefix = byte(0x21)

	// PublicKeyLen is the length of compressed public key accepted by
	// ParseAccount.
	PublicKeyLen = 33

	checksumLen = 4
	decodedLen  = 1 + 8 + checksumLen
)

var (
	// ErrBadChecksum is returned for addresses with invalid checksum.
	ErrBadChecksum = errors.New("address checksum mismatch")
	// ErrBadPrefix is returned for addresses with unexpected version byte.
	ErrBadPrefix = errors.New("wrong address prefix")
)

// AccountToString returns the address representation of the given account id.
func AccountToString(id uint64) string {
	b := make([]byte, 1+8, decodedLen)
	b[0] = Prefix
	binary.BigEndian.PutUint64(b[1:], id)
	return base58.Encode(append(b, checksum(b)...))
}

// StringToAccount converts the given address into an account id.
func StringToAccount(s string) (uint64, error) {
	b, err := base58.Decode(s)
	if err != nil {
		return 0, fmt.Errorf("bad base58: %w", err)
	}
	if len(b) != decodedLen {
		return 0, fmt.Errorf("invalid address length %d", len(b))
	}
	payload := b[:len(b)-checksumLen]
	if !bytes.Equal(checksum(payload), b[len(b)-checksumLen:]) {
		return 0, ErrBadChecksum
	}
	if payload[0] != Prefix {
		return 0, ErrBadPrefix
	}
	return binary.BigEndian.Uint64(payload[1:]), nil
}

// AccountFromKey returns the account id owned by the given public key.
func AccountFromKey(pub []byte) uint64 {
	h := hash.Hash160(pub)
	return binary.BigEndian.Uint64(h[:8])
}

// ParseAccount accepts an address, a decimal account id or a hex-encoded
// compressed public key of the account.
func ParseAccount(s string) (uint64, error) {
	if id, err := strconv.ParseUint(s, 10, 64); err == nil {
		return id, nil
	}
	if len(s) == 2*PublicKeyLen {
		if pub, err := hex.DecodeString(s); err == nil {
			if pub[0] != 0x02 && pub[0] != 0x03 {
				return 0, fmt.Errorf("not a compressed public key: prefix %#x", pub[0])
			}
			return AccountFromKey(pub), nil
		}
	}
	return StringToAccount(s)
}

func checksum(data []byte) []byte {
	return hash.Checksum(data)
}
