package crypto

import (
	"encoding/json"
	"fmt"

	"github.com/btcsuite/btcutil/bech32"
)

// AddressPrefix defines the human-readable prefix carried by an address.
type AddressPrefix string

const (
	// AccountPrefix is the prefix used for participant accounts.
	AccountPrefix AddressPrefix = "liq"
	// ModulePrefix is the prefix used for ledger-owned vault accounts.
	ModulePrefix AddressPrefix = "liqmod"
)

// Address represents a 20-byte account identifier with a bech32 prefix.
type Address struct {
	prefix AddressPrefix
	bytes  []byte
}

func NewAddress(prefix AddressPrefix, b []byte) Address {
	if len(b) != 20 {
		panic("address must be 20 bytes long")
	}
	buf := make([]byte, 20)
	copy(buf, b)
	return Address{prefix: prefix, bytes: buf}
}

func (a Address) String() string {
	conv, err := bech32.ConvertBits(a.bytes, 8, 5, true)
	if err != nil {
		panic(err)
	}
	encoded, err := bech32.Encode(string(a.prefix), conv)
	if err != nil {
		panic(err)
	}
	return encoded
}

func (a Address) Bytes() []byte {
	return a.bytes
}

// Prefix returns the human-readable prefix associated with the address.
func (a Address) Prefix() AddressPrefix {
	return a.prefix
}

// IsZero reports whether the address is unset or all-zero. The zero address is
// used as the "no holder" sentinel in governance.
func (a Address) IsZero() bool {
	for _, b := range a.bytes {
		if b != 0 {
			return false
		}
	}
	return true
}

// Equal reports whether two addresses share the same 20 raw bytes. The prefix
// is presentation only and does not participate in identity.
func (a Address) Equal(other Address) bool {
	if len(a.bytes) != len(other.bytes) {
		return a.IsZero() && other.IsZero()
	}
	for i := range a.bytes {
		if a.bytes[i] != other.bytes[i] {
			return false
		}
	}
	return true
}

// ZeroAddress returns the all-zero account address.
func ZeroAddress() Address {
	return NewAddress(AccountPrefix, make([]byte, 20))
}

// ModuleAddress derives a deterministic vault address for a named ledger
// module by padding the name into the 20-byte body.
func ModuleAddress(name string) Address {
	buf := make([]byte, 20)
	copy(buf, []byte(name))
	return NewAddress(ModulePrefix, buf)
}

// MarshalJSON encodes the address as its bech32 string form.
func (a Address) MarshalJSON() ([]byte, error) {
	if len(a.bytes) == 0 {
		return json.Marshal(ZeroAddress().String())
	}
	return json.Marshal(a.String())
}

// UnmarshalJSON decodes a bech32 string back into an address.
func (a *Address) UnmarshalJSON(data []byte) error {
	var encoded string
	if err := json.Unmarshal(data, &encoded); err != nil {
		return err
	}
	decoded, err := DecodeAddress(encoded)
	if err != nil {
		return err
	}
	*a = decoded
	return nil
}

func DecodeAddress(addrStr string) (Address, error) {
	prefix, decoded, err := bech32.Decode(addrStr)
	if err != nil {
		return Address{}, fmt.Errorf("invalid bech32 string: %w", err)
	}
	conv, err := bech32.ConvertBits(decoded, 5, 8, false)
	if err != nil {
		return Address{}, fmt.Errorf("error converting bits: %w", err)
	}
	if len(conv) != 20 {
		return Address{}, fmt.Errorf("address payload must be 20 bytes, got %d", len(conv))
	}
	return NewAddress(AddressPrefix(prefix), conv), nil
}
