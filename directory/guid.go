package directory

import (
	"fmt"

	"github.com/google/uuid"
)

// Active Directory stores objectGUID in a mixed-endian layout: the first three
// groups are little-endian, the last two big-endian. uuid.FromBytes expects
// big-endian throughout, so the prefix bytes are swapped before decoding.

// DecodeGUID converts a 16-byte binary objectGUID to its canonical hyphenated
// string form.
func DecodeGUID(raw []byte) (string, error) {
	if len(raw) != 16 {
		return "", fmt.Errorf("objectGUID must be 16 bytes, got %d", len(raw))
	}

	ordered := []byte{
		raw[3], raw[2], raw[1], raw[0],
		raw[5], raw[4],
		raw[7], raw[6],
		raw[8], raw[9],
		raw[10], raw[11], raw[12], raw[13], raw[14], raw[15],
	}

	id, err := uuid.FromBytes(ordered)
	if err != nil {
		return "", fmt.Errorf("failed to decode objectGUID: %w", err)
	}

	return id.String(), nil
}

// GUIDText returns the canonical hyphenated form of an objectGUID attribute
// value. It accepts binary data from a live directory as well as a value that
// is already in textual form. Returns an empty string when the value is
// absent or malformed.
func GUIDText(raw []byte) string {
	if len(raw) == 16 {
		guid, err := DecodeGUID(raw)
		if err != nil {
			return ""
		}
		return guid
	}

	if len(raw) > 0 {
		if _, err := uuid.Parse(string(raw)); err == nil {
			return string(raw)
		}
	}

	return ""
}
