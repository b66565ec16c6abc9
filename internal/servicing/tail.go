package servicing

import (
	"bufio"
	"io"
	"os"
	"strings"
	"time"
)

// tailFile reads lines from path as they are appended and passes them to
// emit, polling at the given interval. It drains whatever remains after stop
// is closed and then returns. Errors opening or reading the file end the
// tail silently; progress output is a side channel, never a correctness
// dependency.
func tailFile(path string, stop <-chan struct{}, interval time.Duration, emit func(string)) {
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()

	reader := bufio.NewReader(f)
	stopped := false

	for {
		line, err := reader.ReadString('\n')
		if len(line) > 0 {
			emit(strings.TrimRight(line, "\r\n"))
		}

		if err == io.EOF {
			if stopped {
				return
			}
			select {
			case <-stop:
				// One more pass to drain output written since the
				// last read.
				stopped = true
			case <-time.After(interval):
			}
			continue
		}
		if err != nil {
			return
		}
	}
}
