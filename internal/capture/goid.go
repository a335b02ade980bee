package capture

import "runtime"

// goroutineID returns the current goroutine's ID, parsed from the first
// line of its stack trace ("goroutine 123 [running]:"). It returns 0 if the
// format is not recognized.
func goroutineID() int64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	return parseGoroutineID(buf[:n])
}

func parseGoroutineID(buf []byte) int64 {
	const prefix = "goroutine "
	if len(buf) <= len(prefix) || string(buf[:len(prefix)]) != prefix {
		return 0
	}

	var id int64
	for _, c := range buf[len(prefix):] {
		if c < '0' || c > '9' {
			break
		}
		id = id*10 + int64(c-'0')
	}
	return id
}
