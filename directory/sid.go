package directory

import (
	"fmt"

	"github.com/bwmarrin/go-objectsid"
)

// Active Directory stores security identifiers in binary form; claim values
// need the canonical "S-1-5-21-..." textual representation.

// DecodeSID converts a binary security identifier to its string form.
func DecodeSID(raw []byte) (string, error) {
	if len(raw) == 0 {
		return "", fmt.Errorf("binary SID cannot be empty")
	}

	sid := objectsid.Decode(raw)
	return sid.String(), nil
}

// SIDText returns the canonical textual form of an objectSid attribute
// value. It accepts binary SID data from a live directory as well as a
// value that is already in textual form. Returns an empty string when the
// value is absent or malformed.
func SIDText(raw []byte) string {
	if len(raw) == 0 {
		return ""
	}
	if looksLikeSIDString(string(raw)) {
		return string(raw)
	}
	sid, err := DecodeSID(raw)
	if err != nil {
		return ""
	}
	return sid
}

// looksLikeSIDString reports whether a value is already in textual SID form.
func looksLikeSIDString(s string) bool {
	return len(s) >= 4 && s[:2] == "S-"
}
