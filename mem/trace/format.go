// Package trace provides hooks that record the accesses of initiators and
// targets, either as log entries or as database rows.
package trace

import (
	"encoding/binary"
	"fmt"

	"github.com/sarchlab/tlm/mem/tlm"
	"github.com/sarchlab/tlm/sim/hooking"
	"github.com/sarchlab/tlm/sim/modeling"
)

// formatData renders up to a word of little-endian bytes as one hex number.
// Longer data is rendered byte by byte.
func formatData(b []byte) string {
	if len(b) == 0 || len(b) > 8 {
		return fmt.Sprintf("%X", b)
	}

	var full [8]byte
	copy(full[:], b)

	return fmt.Sprintf("%0*X", 2*len(b), binary.LittleEndian.Uint64(full[:]))
}

// splitWords cuts a debug dump into words. A trailing partial word is kept.
func splitWords(b []byte) [][]byte {
	words := make([][]byte, 0, (len(b)+tlm.WordSize-1)/tlm.WordSize)

	for i := 0; i < len(b); i += tlm.WordSize {
		end := i + tlm.WordSize
		if end > len(b) {
			end = len(b)
		}

		words = append(words, b[i:end])
	}

	return words
}

func componentName(ctx hooking.HookCtx) string {
	if named, ok := ctx.Domain.(modeling.Named); ok {
		return named.Name()
	}

	return ""
}

// wordAddress returns the address of the word that a debug transfer at addr
// starts from.
func wordAddress(addr uint64) uint64 {
	return addr / tlm.WordSize * tlm.WordSize
}
