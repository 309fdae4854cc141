// Package sse reads and writes text/event-stream frames.
package sse

import (
	"bufio"
	"io"
	"strings"
)

// DoneSentinel terminates a stream
const DoneSentinel = "[DONE]"

// Reader yields the data payload of each event in an event stream. Comment
// lines (":"), event/id/retry fields and blank keep-alives are skipped.
type Reader struct {
	r *bufio.Reader
}

// NewReader creates a Reader over r
func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReaderSize(r, 64*1024)}
}

// Next returns the next event's data. Multiple data lines in one event are
// joined with "\n". It returns io.EOF once the stream is exhausted.
func (s *Reader) Next() (string, error) {
	var data []string
	for {
		line, err := s.r.ReadString('\n')
		if err != nil && err != io.EOF {
			return "", err
		}
		line = strings.TrimRight(line, "\r\n")

		if line == "" {
			if len(data) > 0 {
				return strings.Join(data, "\n"), nil
			}
			if err == io.EOF {
				return "", io.EOF
			}
			continue
		}

		if payload, ok := strings.CutPrefix(line, "data:"); ok {
			data = append(data, strings.TrimPrefix(payload, " "))
		}

		if err == io.EOF {
			if len(data) > 0 {
				return strings.Join(data, "\n"), nil
			}
			return "", io.EOF
		}
	}
}

// IsDone reports whether data is the end-of-stream sentinel
func IsDone(data string) bool {
	return strings.TrimSpace(data) == DoneSentinel
}
