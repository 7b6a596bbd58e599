package pipeline

import (
	"bytes"
	"fmt"
	"runtime"
	"strconv"
)

var goroutineSpace = []byte("goroutine ")

// goroutineID returns the id of the calling goroutine, parsed from the header
// of its stack trace ("goroutine 18 [running]:")
func goroutineID() uint64 {
	buf := make([]byte, 64)
	buf = buf[:runtime.Stack(buf, false)]
	buf = bytes.TrimPrefix(buf, goroutineSpace)
	if i := bytes.IndexByte(buf, ' '); i >= 0 {
		buf = buf[:i]
	}
	id, err := strconv.ParseUint(string(buf), 10, 64)
	if err != nil {
		panic(fmt.Sprintf("failed to parse goroutine id from %q: %v", buf, err))
	}
	return id
}
