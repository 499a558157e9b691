package lsp

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// FramingMode selects how a Codec delimits messages on the wire.
type FramingMode int

const (
	// FramingContentLength uses the LSP base protocol's
	// "Content-Length: N\r\n\r\n<json>" framing, used with language server
	// child processes.
	FramingContentLength FramingMode = iota

	// FramingBlankLine delimits each JSON-RPC message with a single blank
	// line, used for the editor peer's simpler channel.
	FramingBlankLine
)

// maxConsecutiveBlankLines bounds how many blank header lines a
// Content-Length reader tolerates before treating the stream as unreadable.
const maxConsecutiveBlankLines = 5

// Codec frames and unframes JSON-RPC 2.0 messages on a duplex byte stream.
// One Codec owns exactly one direction pair (a reader and a writer); the two
// framing modes share the same message shape and differ only in delimiting.
type Codec struct {
	mode FramingMode
	r    *bufio.Reader
	w    io.Writer
}

// NewCodec creates a Codec for the given framing mode over r/w.
func NewCodec(mode FramingMode, r io.Reader, w io.Writer) *Codec {
	return &Codec{
		mode: mode,
		r:    bufio.NewReader(r),
		w:    w,
	}
}

// ReadMessage reads and returns the next raw JSON-RPC message. Malformed
// frames are reported as an error; the caller decides whether to log and
// continue or treat it as fatal to the stream.
func (c *Codec) ReadMessage() ([]byte, error) {
	switch c.mode {
	case FramingBlankLine:
		return c.readBlankLineFramed()
	default:
		return c.readContentLengthFramed()
	}
}

// WriteMessage frames and writes a single JSON-RPC message.
func (c *Codec) WriteMessage(data []byte) error {
	switch c.mode {
	case FramingBlankLine:
		_, err := fmt.Fprintf(c.w, "%s\n\n", data)
		return err
	default:
		_, err := fmt.Fprintf(c.w, "Content-Length: %d\r\n\r\n%s", len(data), data)
		return err
	}
}

func (c *Codec) readContentLengthFramed() ([]byte, error) {
	contentLength := -1
	blankRun := 0

	for {
		line, err := c.r.ReadString('\n')
		if err != nil {
			return nil, err
		}
		line = strings.TrimRight(line, "\r\n")

		if line == "" {
			if contentLength >= 0 {
				break
			}
			blankRun++
			if blankRun > maxConsecutiveBlankLines {
				return nil, fmt.Errorf("lsprpc: too many consecutive blank header lines")
			}
			continue
		}
		blankRun = 0

		name, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(name), "Content-Length") {
			n, err := strconv.Atoi(strings.TrimSpace(value))
			if err != nil {
				return nil, fmt.Errorf("lsprpc: invalid Content-Length: %w", err)
			}
			contentLength = n
		}
	}

	if contentLength < 0 {
		return nil, fmt.Errorf("lsprpc: missing Content-Length header")
	}

	body := make([]byte, contentLength)
	if _, err := io.ReadFull(c.r, body); err != nil {
		return nil, err
	}
	return body, nil
}

func (c *Codec) readBlankLineFramed() ([]byte, error) {
	var buf strings.Builder
	for {
		line, err := c.r.ReadString('\n')
		if err != nil {
			if err == io.EOF && buf.Len() > 0 {
				return []byte(buf.String()), nil
			}
			return nil, err
		}
		trimmed := strings.TrimRight(line, "\r\n")
		if trimmed == "" {
			if buf.Len() == 0 {
				continue // tolerate leading blank lines between messages
			}
			return []byte(buf.String()), nil
		}
		buf.WriteString(trimmed)
	}
}

// MessageShape classifies a decoded JSON-RPC message without a full
// unmarshal, using gjson path lookups against the raw bytes.
type MessageShape struct {
	HasID     bool
	HasMethod bool
	HasResult bool
	HasError  bool
}

// ClassifyMessage inspects raw JSON-RPC bytes and reports which top-level
// members are present, so the Peer can route it as a call, a notification,
// or a reply without a throwaway Unmarshal into a scratch struct.
func ClassifyMessage(data []byte) MessageShape {
	parsed := gjson.ParseBytes(data)
	return MessageShape{
		HasID:     parsed.Get("id").Exists(),
		HasMethod: parsed.Get("method").Exists(),
		HasResult: parsed.Get("result").Exists(),
		HasError:  parsed.Get("error").Exists(),
	}
}

// IsRequest reports whether the shape identifies a request (has an id and a
// method, as opposed to a notification or a reply).
func (s MessageShape) IsRequest() bool { return s.HasID && s.HasMethod }

// IsNotification reports whether the shape identifies a notification.
func (s MessageShape) IsNotification() bool { return !s.HasID && s.HasMethod }

// IsReply reports whether the shape identifies a response to a prior call.
func (s MessageShape) IsReply() bool { return s.HasID && !s.HasMethod && (s.HasResult || s.HasError) }
