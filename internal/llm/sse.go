package llm

import (
	"bufio"
	"io"
	"strings"
)

// sseEvent is one Server-Sent Event. Multiple data lines are joined with
// newlines.
type sseEvent struct {
	Type string
	Data string
}

// sseScanner reads events delimited by blank lines. Comment lines and
// fields other than data/event are ignored.
type sseScanner struct {
	reader  *bufio.Reader
	current sseEvent
	err     error
}

func newSSEScanner(r io.Reader) *sseScanner {
	return &sseScanner{reader: bufio.NewReaderSize(r, 64*1024)}
}

// Next advances to the next event. It returns false at EOF or on error;
// Err tells the two apart.
func (s *sseScanner) Next() bool {
	s.current = sseEvent{}
	if s.err != nil {
		return false
	}

	var data []string
	var eventType string
	hasData := false

	emit := func() bool {
		s.current = sseEvent{Type: eventType, Data: strings.Join(data, "\n")}
		return true
	}

	for {
		line, err := s.reader.ReadString('\n')
		if err != nil && line == "" {
			s.err = err
			if err == io.EOF && hasData {
				return emit()
			}
			return false
		}

		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			if hasData {
				return emit()
			}
			eventType = ""
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, ok := strings.Cut(line, ":")
		if !ok {
			field, value = line, ""
		}
		value = strings.TrimPrefix(value, " ")

		switch field {
		case "data":
			data = append(data, value)
			hasData = true
		case "event":
			eventType = value
		}
	}
}

func (s *sseScanner) Event() sseEvent { return s.current }

// Err returns the first non-EOF error.
func (s *sseScanner) Err() error {
	if s.err == io.EOF {
		return nil
	}
	return s.err
}
