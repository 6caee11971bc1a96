package otlived

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// maxLineSize bounds one request or response line.
const maxLineSize = 4 << 20

var errLineTooLong = errors.New("line too long")

// ReadLine returns the next non-blank line without its terminator. A final
// line without a newline is accepted.
func ReadLine(r *bufio.Reader) ([]byte, error) {
	if r == nil {
		return nil, fmt.Errorf("reader is nil")
	}

	for {
		var buf []byte
		var err error
		for {
			var chunk []byte
			chunk, err = r.ReadSlice('\n')
			buf = append(buf, chunk...)
			if len(buf) > maxLineSize {
				return nil, errLineTooLong
			}
			if !errors.Is(err, bufio.ErrBufferFull) {
				break
			}
		}
		if err != nil && !(errors.Is(err, io.EOF) && len(buf) > 0) {
			return nil, err
		}

		line := bytes.TrimSpace(buf)
		if len(line) == 0 {
			if errors.Is(err, io.EOF) {
				return nil, io.EOF
			}
			continue
		}
		return line, nil
	}
}

func WriteLine(w io.Writer, obj any) error {
	if w == nil {
		return fmt.Errorf("writer is nil")
	}
	b, err := json.Marshal(obj)
	if err != nil {
		return err
	}
	b = append(b, '\n')
	_, err = w.Write(b)
	return err
}
