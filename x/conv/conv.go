// Package conv holds allocation-free number formatting for console output.
// No fmt/strconv dependency, so it is cheap on MCU builds.
package conv

const hexd = "0123456789ABCDEF"

// Hex writes n as uppercase hex without 0x, zero-padded to digits (1..16),
// into the tail of buf and returns the used slice.
func Hex(buf []byte, n uint64, digits int) []byte {
	if digits < 1 {
		digits = 1
	}
	if digits > 16 {
		digits = 16
	}
	if len(buf) < digits {
		return buf[:0]
	}
	i := len(buf)
	for j := 0; j < digits; j++ {
		i--
		buf[i] = hexd[n&0xF]
		n >>= 4
	}
	return buf[i:]
}

// AddrHex formats a program-memory address as 0x-prefixed hex, using four
// digits below 64 KiB and eight above.
func AddrHex(buf []byte, a uint32) []byte {
	digits := 4
	if a > 0xFFFF {
		digits = 8
	}
	out := Hex(buf, uint64(a), digits)
	i := len(buf) - len(out)
	if i < 2 {
		return out
	}
	buf[i-1] = 'x'
	buf[i-2] = '0'
	return buf[i-2:]
}

// Utoa writes base-10 representation of n into buf and returns the used slice.
// buf should be length >= 20 for uint64.
func Utoa(buf []byte, n uint64) []byte {
	if len(buf) == 0 {
		return buf[:0]
	}
	i := len(buf)
	if n == 0 {
		i--
		buf[i] = '0'
		return buf[i:]
	}
	for n > 0 && i > 0 {
		i--
		buf[i] = byte('0' + (n % 10))
		n /= 10
	}
	return buf[i:]
}

// Itoa is Utoa for signed values. buf should be length >= 20.
func Itoa(buf []byte, n int64) []byte {
	if n >= 0 {
		return Utoa(buf, uint64(n))
	}
	out := Utoa(buf, uint64(-n))
	i := len(buf) - len(out)
	if i == 0 {
		return out
	}
	buf[i-1] = '-'
	return buf[i-1:]
}
