package cfgutil

import (
	"encoding/hex"
)

// HexFlag holds a byte slice and implements the flags.Marshaler and
// Unmarshaler interfaces so hex-encoded values can be used as config
// struct fields.
type HexFlag struct {
	Bytes []byte
}

// NewHexFlag creates a HexFlag with a default byte slice.
func NewHexFlag(defaultValue []byte) *HexFlag {
	return &HexFlag{defaultValue}
}

// MarshalFlag satisifes the flags.Marshaler interface.
func (h *HexFlag) MarshalFlag() (string, error) {
	return hex.EncodeToString(h.Bytes), nil
}

// UnmarshalFlag satisifes the flags.Unmarshaler interface.
func (h *HexFlag) UnmarshalFlag(value string) error {
	decoded, err := hex.DecodeString(value)
	if err != nil {
		return err
	}
	h.Bytes = decoded
	return nil
}
