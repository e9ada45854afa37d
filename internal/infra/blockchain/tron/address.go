package tron

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/mr-tron/base58"
)

// addressPrefix is the version byte carried by every Tron mainnet address.
const addressPrefix = 0x41

// rawAddressLength is the byte length of a decoded Tron address: the
// version byte followed by the 20-byte account hash.
const rawAddressLength = 21

// Base58CheckAddress converts a hex-encoded Tron address (0x41-prefixed,
// 21 bytes) into its base58check display form: payload plus the first four
// bytes of a double-SHA256 checksum, base58 encoded.
//
// The API already returns display addresses in most fields, so anything
// that does not parse as a raw hex address passes through unchanged.
func Base58CheckAddress(address string) string {
	raw, err := hex.DecodeString(address)
	if err != nil || len(raw) != rawAddressLength || raw[0] != addressPrefix {
		return address
	}

	first := sha256.Sum256(raw)
	second := sha256.Sum256(first[:])

	return base58.Encode(append(raw, second[:4]...))
}
