package ldapdir

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
)

// DecodeSID converts the binary SID form AD stores in objectSid and
// securityIdentifier into the S-1-... string form: one revision byte, one
// sub-authority count byte, a 48-bit big-endian authority, then count
// little-endian 32-bit sub-authorities.
func DecodeSID(raw []byte) (string, error) {
	if len(raw) < 8 {
		return "", fmt.Errorf("sid too short: %d bytes", len(raw))
	}

	revision := raw[0]
	count := int(raw[1])
	if len(raw) < 8+4*count {
		return "", fmt.Errorf("sid truncated: %d sub-authorities in %d bytes", count, len(raw))
	}

	var authority uint64
	for _, b := range raw[2:8] {
		authority = authority<<8 | uint64(b)
	}

	var sb strings.Builder
	sb.WriteString("S-")
	sb.WriteString(strconv.Itoa(int(revision)))
	sb.WriteString("-")
	sb.WriteString(strconv.FormatUint(authority, 10))
	for i := 0; i < count; i++ {
		sub := binary.LittleEndian.Uint32(raw[8+4*i:])
		sb.WriteString("-")
		sb.WriteString(strconv.FormatUint(uint64(sub), 10))
	}

	return sb.String(), nil
}
