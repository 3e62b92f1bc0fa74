package storage

import (
	"errors"
	"strings"
	"unicode"
)

var ErrResultNotFound = errors.New("result not found")

// PlantID returns the storage key of a plant name: lower-cased with runs of
// anything but letters and digits collapsed to a single dash.
func PlantID(plantName string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(plantName)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
