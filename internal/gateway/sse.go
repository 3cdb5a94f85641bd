package gateway

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// commentReplacer escapes newlines in SSE comment fields; multi-line
// comments must prefix each line with ":".
var commentReplacer = strings.NewReplacer(
	"\n", "\n: ",
	"\r", "\\r",
)

var (
	sseDataPrefix    = []byte("data: ")
	sseCommentPrefix = []byte(": ")
	sseTerminator    = []byte("\n\n")
)

// sseWriter wraps http.ResponseWriter with the Server-Sent Events
// protocol, flushing after every event for real-time delivery.
type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// newSSEWriter validates flushing support and sets the SSE headers.
func newSSEWriter(w http.ResponseWriter) (*sseWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("ResponseWriter doesn't implement http.Flusher")
	}

	w.Header().Set("Content-Type", "text/event-stream;charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	return &sseWriter{w: w, flusher: flusher}, nil
}

// writeData marshals v to JSON and writes it as an SSE data event.
func (s *sseWriter) writeData(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	if _, err := s.w.Write(sseDataPrefix); err != nil {
		return err
	}
	if _, err := s.w.Write(data); err != nil {
		return err
	}
	if _, err := s.w.Write(sseTerminator); err != nil {
		return err
	}

	s.flusher.Flush()
	return nil
}

// writeComment writes an SSE comment line, used as a heartbeat. Clients
// ignore comments but intermediaries keep the connection warm.
func (s *sseWriter) writeComment(comment string) error {
	if _, err := s.w.Write(sseCommentPrefix); err != nil {
		return err
	}
	if _, err := commentReplacer.WriteString(s.w, comment); err != nil {
		return err
	}
	if _, err := s.w.Write(sseTerminator); err != nil {
		return err
	}

	s.flusher.Flush()
	return nil
}
