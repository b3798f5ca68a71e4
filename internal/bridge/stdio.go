// stdio.go — Message framing for the MCP stdio transport. Two framings are
// accepted on the same stream: bare JSON lines, and Content-Length headers
// followed by a body (the framing LSP-style clients emit).
package bridge

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"strconv"
	"strings"
	"unicode"
)

// Framing reports how a message arrived on the stream.
type Framing int

const (
	// FramingLine is a bare newline-terminated JSON message.
	FramingLine Framing = iota
	// FramingContentLength is a header-framed message.
	FramingContentLength
)

// ReadStdioMessage returns the next message body on reader, skipping blank
// lines. maxBodySize bounds a Content-Length body; anything larger is
// treated as line framing so a hostile header can't force a huge allocation.
func ReadStdioMessage(reader *bufio.Reader, maxBodySize int) ([]byte, error) {
	msg, _, err := ReadStdioMessageWithMode(reader, maxBodySize)
	return msg, err
}

// ReadStdioMessageWithMode reads one message and reports the framing it
// detected.
func ReadStdioMessageWithMode(reader *bufio.Reader, maxBodySize int) ([]byte, Framing, error) {
	for {
		line, err := reader.ReadBytes('\n')
		trimmed := strings.TrimSpace(string(line))
		if err != nil {
			if errors.Is(err, io.EOF) && trimmed != "" {
				// Final message without a trailing newline.
				return []byte(trimmed), FramingLine, nil
			}
			return nil, FramingLine, err
		}
		if trimmed == "" {
			continue
		}
		if !looksLikeHeader(trimmed) {
			return []byte(trimmed), FramingLine, nil
		}
		return readHeaderFramed(reader, trimmed, maxBodySize)
	}
}

// readHeaderFramed consumes the remaining header lines and the framed body.
// If no usable Content-Length header turns up, the first line is handed back
// as a line-framed message rather than failing the stream.
func readHeaderFramed(reader *bufio.Reader, firstHeader string, maxBodySize int) ([]byte, Framing, error) {
	contentLength := headerContentLength(firstHeader, maxBodySize)

	for {
		line, err := reader.ReadBytes('\n')
		if err != nil {
			return nil, FramingContentLength, err
		}
		header := strings.TrimSpace(string(line))
		if header == "" {
			break
		}
		if contentLength < 0 {
			contentLength = headerContentLength(header, maxBodySize)
		}
	}

	if contentLength < 0 {
		return []byte(firstHeader), FramingLine, nil
	}

	body := make([]byte, contentLength)
	if _, err := io.ReadFull(reader, body); err != nil {
		return nil, FramingContentLength, err
	}
	return bytes.TrimSpace(body), FramingContentLength, nil
}

// headerContentLength extracts a bounded Content-Length value from one
// header line, or -1.
func headerContentLength(header string, maxBodySize int) int {
	name, value, ok := strings.Cut(header, ":")
	if !ok || !strings.EqualFold(strings.TrimSpace(name), "content-length") {
		return -1
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || n < 0 || n > maxBodySize {
		return -1
	}
	return n
}

// looksLikeHeader distinguishes a "Name: value" header line from a JSON
// body line (whose first colon follows a quoted key, not a bare token).
func looksLikeHeader(line string) bool {
	name, _, ok := strings.Cut(line, ":")
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return false
	}
	for _, r := range name {
		if r != '-' && !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
