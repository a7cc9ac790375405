package transport

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

const maxFrameSize = 16 * 1024 * 1024

// Event represents a server sent event
type Event struct {
	Name string
	ID   string
	Data string
}

// WriteTo writes event in text/event-stream format
func (e *Event) WriteTo(w io.Writer) (int64, error) {
	builder := strings.Builder{}
	if e.ID != "" {
		builder.WriteString("id: " + e.ID + "\n")
	}
	if e.Name != "" {
		builder.WriteString("event: " + e.Name + "\n")
	}
	for _, line := range strings.Split(e.Data, "\n") {
		builder.WriteString("data: " + line + "\n")
	}
	builder.WriteString("\n")
	n, err := io.WriteString(w, builder.String())
	return int64(n), err
}

// ReadEvents decodes an event stream, calling handle for every complete event
func ReadEvents(r io.Reader, handle func(event *Event)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxFrameSize)
	event := &Event{}
	var data []string
	hasData := false
	dispatch := func() {
		if hasData || event.Name != "" {
			event.Data = strings.Join(data, "\n")
			handle(event)
		}
		event = &Event{}
		data = nil
		hasData = false
	}
	for scanner.Scan() {
		line := strings.TrimSuffix(scanner.Text(), "\r")
		if line == "" {
			dispatch()
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}
		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "event":
			event.Name = value
		case "data":
			data = append(data, value)
			hasData = true
		case "id":
			event.ID = value
		}
	}
	dispatch()
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read event stream: %w", err)
	}
	return nil
}
