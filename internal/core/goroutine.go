package core

import (
	"bytes"
	"fmt"
	"runtime"
	"strconv"
)

// currentGoroutine returns the id of the calling goroutine, parsed from the
// header line of its stack trace ("goroutine 42 [running]:").
func currentGoroutine() int64 {
	var buf [64]byte

	n := runtime.Stack(buf[:], false)
	header := bytes.TrimPrefix(buf[:n], []byte("goroutine "))

	end := bytes.IndexByte(header, ' ')
	if end < 0 {
		panic(fmt.Sprintf("imprint failure - unexpected stack header %q", buf[:n]))
	}

	id, err := strconv.ParseInt(string(header[:end]), 10, 64)
	if err != nil {
		panic(fmt.Sprintf("imprint failure - unparseable goroutine id: %v", err))
	}

	return id
}
