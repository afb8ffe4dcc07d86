package codec

// lsb/msb split a 14-bit value into two 7-bit bytes.
func lsb(v int) byte { return byte(v & 0x7F) }
func msb(v int) byte { return byte((v >> 7) & 0x7F) }

func join14(lo, hi byte) int {
	return int(lo&0x7F) | int(hi&0x7F)<<7
}

// appendPairs writes each byte as two 7-bit bytes, LSB first.
func appendPairs(dst, data []byte) []byte {
	for _, b := range data {
		dst = append(dst, b&0x7F, (b>>7)&0x01)
	}
	return dst
}

// joinPairs is the inverse of appendPairs. ok is false for an odd length.
func joinPairs(data []byte) (out []byte, ok bool) {
	if len(data)%2 != 0 {
		return nil, false
	}
	if len(data) == 0 {
		return nil, true
	}
	out = make([]byte, 0, len(data)/2)
	for i := 0; i < len(data); i += 2 {
		out = append(out, byte(join14(data[i], data[i+1])))
	}
	return out, true
}

// appendGroups writes v as 7-bit groups, least significant first, at least
// one group and no trailing zero groups.
func appendGroups(dst []byte, v int) []byte {
	for {
		dst = append(dst, byte(v&0x7F))
		v >>= 7
		if v == 0 {
			return dst
		}
	}
}

func joinGroups(data []byte) int {
	v := 0
	for i, b := range data {
		v |= int(b&0x7F) << (7 * uint(i))
	}
	return v
}
