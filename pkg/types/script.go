package types

import (
	"encoding/hex"
	"encoding/json"
)

// ScriptType identifies the type of locking script.
type ScriptType uint8

const (
	ScriptTypeP2PKH ScriptType = 0x01 // Pay to public key hash (data = 20-byte address)
	ScriptTypeP2SH  ScriptType = 0x02 // Pay to script hash
	ScriptTypeBurn  ScriptType = 0x11 // Provably unspendable
)

// String returns a human-readable name for the script type.
func (st ScriptType) String() string {
	switch st {
	case ScriptTypeP2PKH:
		return "P2PKH"
	case ScriptTypeP2SH:
		return "P2SH"
	case ScriptTypeBurn:
		return "Burn"
	default:
		return "Unknown"
	}
}

// Script defines the locking condition for an unspent output.
type Script struct {
	Type ScriptType `json:"type"`
	Data []byte     `json:"data"`
}

// Address returns the address embedded in the script, if any.
// P2PKH scripts store a 20-byte address in Data.
func (s Script) Address() (Address, bool) {
	if s.Type == ScriptTypeP2PKH && len(s.Data) >= AddressSize {
		var addr Address
		copy(addr[:], s.Data[:AddressSize])
		return addr, true
	}
	return Address{}, false
}

// Bytes returns the canonical byte encoding: type(1) | data.
// This is the form hashed for the script index.
func (s Script) Bytes() []byte {
	out := make([]byte, 1+len(s.Data))
	out[0] = byte(s.Type)
	copy(out[1:], s.Data)
	return out
}

// scriptJSON is the JSON representation of a Script with hex-encoded data.
type scriptJSON struct {
	Type ScriptType `json:"type"`
	Data string     `json:"data"`
}

// MarshalJSON encodes the script with hex-encoded data.
func (s Script) MarshalJSON() ([]byte, error) {
	return json.Marshal(scriptJSON{
		Type: s.Type,
		Data: hex.EncodeToString(s.Data),
	})
}

// UnmarshalJSON decodes a script with hex-encoded data.
func (s *Script) UnmarshalJSON(data []byte) error {
	var j scriptJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	s.Type = j.Type
	if j.Data != "" {
		b, err := hex.DecodeString(j.Data)
		if err != nil {
			return err
		}
		s.Data = b
	}
	return nil
}
