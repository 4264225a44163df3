package crypto

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestAddressRoundtrip(t *testing.T) {
	raw := make([]byte, 20)
	for i := range raw {
		raw[i] = byte(i + 1)
	}
	addr := NewAddress(AccountPrefix, raw)

	encoded := addr.String()
	if !strings.HasPrefix(encoded, string(AccountPrefix)+"1") {
		t.Fatalf("encoded address %q missing prefix", encoded)
	}
	decoded, err := DecodeAddress(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !decoded.Equal(addr) {
		t.Fatalf("roundtrip mismatch: %s != %s", decoded, addr)
	}
	if decoded.Prefix() != AccountPrefix {
		t.Fatalf("prefix = %s, want %s", decoded.Prefix(), AccountPrefix)
	}
}

func TestNewAddressCopiesInput(t *testing.T) {
	raw := make([]byte, 20)
	addr := NewAddress(AccountPrefix, raw)
	raw[0] = 0xff
	if addr.Bytes()[0] != 0 {
		t.Fatal("address aliases caller buffer")
	}
}

func TestNewAddressRejectsWrongLength(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for short payload")
		}
	}()
	NewAddress(AccountPrefix, []byte{1, 2, 3})
}

func TestZeroAddress(t *testing.T) {
	zero := ZeroAddress()
	if !zero.IsZero() {
		t.Fatal("zero address not zero")
	}
	var unset Address
	if !unset.IsZero() {
		t.Fatal("unset address not zero")
	}
	if !zero.Equal(unset) {
		t.Fatal("zero and unset addresses should be equal")
	}

	raw := make([]byte, 20)
	raw[19] = 1
	if NewAddress(AccountPrefix, raw).IsZero() {
		t.Fatal("non-zero address reported zero")
	}
}

func TestEqualIgnoresPrefix(t *testing.T) {
	raw := make([]byte, 20)
	raw[0] = 7
	a := NewAddress(AccountPrefix, raw)
	b := NewAddress(ModulePrefix, raw)
	if !a.Equal(b) {
		t.Fatal("identity should ignore the display prefix")
	}
}

func TestModuleAddressDeterministic(t *testing.T) {
	a := ModuleAddress("governance")
	b := ModuleAddress("governance")
	c := ModuleAddress("revenue")
	if !a.Equal(b) {
		t.Fatal("module address not deterministic")
	}
	if a.Equal(c) {
		t.Fatal("distinct modules share an address")
	}
	if a.Prefix() != ModulePrefix {
		t.Fatalf("module prefix = %s, want %s", a.Prefix(), ModulePrefix)
	}
	if !strings.HasPrefix(a.String(), string(ModulePrefix)+"1") {
		t.Fatalf("module address %q missing prefix", a.String())
	}
}

func TestAddressJSON(t *testing.T) {
	raw := make([]byte, 20)
	raw[3] = 0xab
	addr := NewAddress(AccountPrefix, raw)

	data, err := json.Marshal(addr)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded Address
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !decoded.Equal(addr) {
		t.Fatalf("json roundtrip mismatch: %s != %s", decoded, addr)
	}

	// The zero value still marshals to a decodable string.
	var unset Address
	data, err = json.Marshal(unset)
	if err != nil {
		t.Fatalf("marshal zero: %v", err)
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal zero: %v", err)
	}
	if !decoded.IsZero() {
		t.Fatalf("zero roundtrip = %s", decoded)
	}

	if err := json.Unmarshal([]byte(`"liq1notvalid"`), &decoded); err == nil {
		t.Fatal("invalid bech32 accepted")
	}
}

func TestDecodeAddressRejectsBadPayload(t *testing.T) {
	if _, err := DecodeAddress("not-bech32"); err == nil {
		t.Fatal("garbage accepted")
	}
}
