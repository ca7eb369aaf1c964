package ai

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strings"
)

const doneMarker = "[DONE]"

// chatCompletionChunk mirrors the incremental payload of a streamed
// chat-completion event.
type chatCompletionChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

func (c chatCompletionChunk) token() string {
	if len(c.Choices) == 0 {
		return ""
	}
	return c.Choices[0].Delta.Content
}

// TokenStream consumes a server-sent-event byte stream and yields assistant
// text tokens one at a time. The sequence is lazy, finite and not
// restartable.
//
// Framing: `data: <json>` lines carry events, blank lines and lines starting
// with ':' are ignored, and a `data: [DONE]` payload terminates the stream.
// A partial trailing line is carried forward until more bytes arrive, so a
// token split across read chunks is never surfaced garbled. A line whose
// JSON does not yet parse is likewise kept in the buffer until the next
// read; it is never a fatal error. End of the underlying stream terminates
// consumption even when no terminator was seen.
type TokenStream struct {
	r     io.Reader
	buf   []byte
	chunk []byte
	done  bool
}

// NewTokenStream wraps a raw event-stream reader.
func NewTokenStream(r io.Reader) *TokenStream {
	return &TokenStream{r: r, chunk: make([]byte, 4096)}
}

// Next returns the next content token. It returns io.EOF once the stream has
// terminated, either via the [DONE] marker or the reader being exhausted.
func (s *TokenStream) Next() (string, error) {
	for {
		if s.done {
			return "", io.EOF
		}

		if token, ok := s.nextBuffered(); ok {
			if s.done {
				return "", io.EOF
			}
			return token, nil
		}

		n, err := s.r.Read(s.chunk)
		if n > 0 {
			s.buf = append(s.buf, s.chunk[:n]...)
		}
		if err != nil {
			s.done = true
			if errors.Is(err, io.EOF) {
				return "", io.EOF
			}
			return "", err
		}
	}
}

// nextBuffered drains complete lines from the buffer. It reports false when
// more bytes are needed, leaving any unparsable remainder in place.
func (s *TokenStream) nextBuffered() (string, bool) {
	for {
		idx := bytes.IndexByte(s.buf, '\n')
		if idx < 0 {
			return "", false
		}

		line := strings.TrimSpace(string(s.buf[:idx]))
		rest := s.buf[idx+1:]

		if line == "" || strings.HasPrefix(line, ":") {
			s.buf = rest
			continue
		}

		payload, isData := strings.CutPrefix(line, "data:")
		if !isData {
			s.buf = rest
			continue
		}

		payload = strings.TrimSpace(payload)
		if payload == doneMarker {
			s.buf = nil
			s.done = true
			return "", true
		}

		var chunk chatCompletionChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			// Treat as a line split across chunk boundaries: wait for
			// more bytes before retrying.
			return "", false
		}

		s.buf = rest
		if token := chunk.token(); token != "" {
			return token, true
		}
	}
}

// Collect drains the stream and returns the accumulated assistant message.
func (s *TokenStream) Collect() (string, error) {
	var b strings.Builder
	for {
		token, err := s.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return b.String(), nil
			}
			return b.String(), err
		}
		b.WriteString(token)
	}
}
