package server

import "crypto/rand"

// newRoomCode produces the short join code players type in. The alphabet
// drops lookalike characters (I, O, 0, 1).
func newRoomCode() string {
	const alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return "AAAA"
	}
	for i := range buf {
		buf[i] = alphabet[int(buf[i])%len(alphabet)]
	}
	return string(buf)
}
