package crypto

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/btcsuite/btcutil/bech32"
	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// AddressPrefix defines the human-readable part used when rendering addresses.
type AddressPrefix string

const (
	// LevfPrefix is the bech32 prefix applied to every protocol address.
	LevfPrefix AddressPrefix = "levf"

	// AddressLength is the byte length of an account identifier.
	AddressLength = 20
)

// Address identifies an account, pool or module. The zero value is the null
// address and is never a valid recipient.
type Address [AddressLength]byte

// ZeroAddress is the null address.
var ZeroAddress = Address{}

// BytesToAddress converts a 20 byte slice into an Address.
func BytesToAddress(b []byte) (Address, error) {
	var out Address
	if len(b) != AddressLength {
		return out, fmt.Errorf("crypto: address must be %d bytes long, got %d", AddressLength, len(b))
	}
	copy(out[:], b)
	return out, nil
}

// String renders the address in bech32 form using the levf prefix.
func (a Address) String() string {
	conv, err := bech32.ConvertBits(a[:], 8, 5, true)
	if err != nil {
		panic(err)
	}
	encoded, err := bech32.Encode(string(LevfPrefix), conv)
	if err != nil {
		panic(err)
	}
	return encoded
}

// Hex returns the 0x prefixed hexadecimal form of the address.
func (a Address) Hex() string {
	return "0x" + hex.EncodeToString(a[:])
}

// Bytes returns a copy of the raw address bytes.
func (a Address) Bytes() []byte {
	out := make([]byte, AddressLength)
	copy(out, a[:])
	return out
}

// IsZero reports whether the address is the null address.
func (a Address) IsZero() bool {
	return a == ZeroAddress
}

// Less orders addresses lexicographically.
func (a Address) Less(other Address) bool {
	return bytes.Compare(a[:], other[:]) < 0
}

// DecodeAddress parses either a bech32 levf address or a 0x prefixed hex
// address.
func DecodeAddress(addrStr string) (Address, error) {
	trimmed := strings.TrimSpace(addrStr)
	if trimmed == "" {
		return Address{}, fmt.Errorf("crypto: empty address")
	}
	if strings.HasPrefix(trimmed, "0x") || strings.HasPrefix(trimmed, "0X") {
		if !common.IsHexAddress(trimmed) {
			return Address{}, fmt.Errorf("crypto: invalid hex address %q", trimmed)
		}
		return Address(common.HexToAddress(trimmed)), nil
	}
	prefix, decoded, err := bech32.Decode(trimmed)
	if err != nil {
		return Address{}, fmt.Errorf("invalid bech32 string: %w", err)
	}
	if AddressPrefix(prefix) != LevfPrefix {
		return Address{}, fmt.Errorf("crypto: unexpected address prefix %q", prefix)
	}
	conv, err := bech32.ConvertBits(decoded, 5, 8, false)
	if err != nil {
		return Address{}, fmt.Errorf("error converting bits: %w", err)
	}
	return BytesToAddress(conv)
}

// MustDecodeAddress is DecodeAddress for static inputs; it panics on error.
func MustDecodeAddress(addrStr string) Address {
	addr, err := DecodeAddress(addrStr)
	if err != nil {
		panic(err)
	}
	return addr
}

// ModuleAddress derives the deterministic address owned by a protocol module,
// taken from the last 20 bytes of Keccak256("levf/module/" + label).
func ModuleAddress(label string) Address {
	digest := ethcrypto.Keccak256([]byte("levf/module/" + strings.ToLower(strings.TrimSpace(label))))
	var out Address
	copy(out[:], digest[len(digest)-AddressLength:])
	return out
}
