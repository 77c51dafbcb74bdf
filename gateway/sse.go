package gateway

import "strings"

// Frame is one decoded server-sent event: its event type and raw data payload.
type Frame struct {
	Event string
	Data  string
}

// sseDecoder turns raw text chunks into complete SSE frames. Network reads
// can split a frame anywhere, so unterminated input is carried over until the
// closing blank line arrives.
type sseDecoder struct {
	buf strings.Builder
}

const (
	eventPrefix = "event: "
	dataPrefix  = "data: "
)

// Feed appends a chunk and returns every frame completed by it, in arrival
// order. Segments missing either the event line or the data line are dropped.
func (d *sseDecoder) Feed(chunk string) []Frame {
	d.buf.WriteString(chunk)

	buffered := d.buf.String()
	var frames []Frame
	for {
		segment, rest, found := strings.Cut(buffered, "\n\n")
		if !found {
			break
		}
		buffered = rest
		if frame, ok := parseSegment(segment); ok {
			frames = append(frames, frame)
		}
	}

	d.buf.Reset()
	d.buf.WriteString(buffered)
	return frames
}

// Flush parses whatever remains once the byte source is exhausted. Servers
// may omit the final blank line, so a trailing well-formed segment still
// counts as a frame.
func (d *sseDecoder) Flush() []Frame {
	residual := d.buf.String()
	d.buf.Reset()
	if strings.TrimSpace(residual) == "" {
		return nil
	}
	if frame, ok := parseSegment(residual); ok {
		return []Frame{frame}
	}
	return nil
}

// parseSegment extracts a frame from the lines between two separators. Both
// an event line and a data line must be present; anything else is not a
// frame and reports ok=false.
func parseSegment(segment string) (Frame, bool) {
	var frame Frame
	for _, line := range strings.Split(segment, "\n") {
		switch {
		case strings.HasPrefix(line, eventPrefix):
			frame.Event = line[len(eventPrefix):]
		case strings.HasPrefix(line, dataPrefix):
			frame.Data = line[len(dataPrefix):]
		}
	}
	if frame.Event == "" || frame.Data == "" {
		return Frame{}, false
	}
	return frame, true
}
