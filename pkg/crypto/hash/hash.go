/*
Package hash contains the hashing primitives used to derive account
identifiers and address checksums.
*/
package hash

import (
	"crypto/sha256"

	"golang.org/x/crypto/ripemd160"
)

// Sha256 hashes the incoming byte slice using the sha256 algorithm.
func Sha256(data []byte) [sha256.Size]byte {
	return sha256.Sum256(data)
}

// DoubleSha256 performs sha256 twice on the given data.
func DoubleSha256(data []byte) [sha256.Size]byte {
	h := sha256.Sum256(data)
	return sha256.Sum256(h[:])
}

// RipeMD160 performs the RIPEMD160 hash algorithm on the given data.
func RipeMD160(data []byte) [ripemd160.Size]byte {
	var res [ripemd160.Size]byte
	h := ripemd160.New()
	_, _ = h.Write(data)
	h.Sum(res[:0])
	return res
}

// Hash160 performs sha256 and then ripemd160 on the given data.
func Hash160(data []byte) [ripemd160.Size]byte {
	h := Sha256(data)
	return RipeMD160(h[:])
}

// Checksum returns the first four bytes of the double sha256 of data.
func Checksum(data []byte) []byte {
	h := DoubleSha256(data)
	return h[:4]
}
