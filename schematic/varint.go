package schematic

import "io"

// readVarint decodes the varint at buf[i] and returns the position after it.
func readVarint(buf []byte, i int) (int32, int, error) {
	var v uint32
	for n := 0; ; n++ {
		if n == 5 {
			return 0, i, ErrVarint
		}
		if i >= len(buf) {
			return 0, i, io.ErrUnexpectedEOF
		}
		b := buf[i]
		i++
		v |= uint32(b&0x7f) << (7 * n)
		if b&0x80 == 0 {
			return int32(v), i, nil
		}
	}
}

func appendVarint(buf []byte, v int32) []byte {
	u := uint32(v)
	for u >= 0x80 {
		buf = append(buf, byte(u)|0x80)
		u >>= 7
	}
	return append(buf, byte(u))
}
