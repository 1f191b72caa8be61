package breadcrumbs

import (
	"encoding/hex"
	"fmt"
)

// decodeEntry pulls (slot, hashHex) out of a generically-decoded JSON pair
// [slot, hash_hex]; json.Unmarshal into [2]any yields float64 and string.
func decodeEntry(pair [2]any) (uint64, string, error) {
	slotFloat, ok := pair[0].(float64)
	if !ok {
		return 0, "", fmt.Errorf("breadcrumbs: expected numeric slot, got %T", pair[0])
	}
	hashHex, ok := pair[1].(string)
	if !ok {
		return 0, "", fmt.Errorf("breadcrumbs: expected string hash, got %T", pair[1])
	}
	return uint64(slotFloat), hashHex, nil
}

func hexDecode(s string) ([]byte, error) {
	return hex.DecodeString(s)
}
