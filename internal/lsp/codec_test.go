package lsp

import (
	"bytes"
	"strings"
	"testing"
)

func TestCodec_ContentLengthRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	c := NewCodec(FramingContentLength, &buf, &buf)

	msg := []byte(`{"jsonrpc":"2.0","id":1,"method":"initialize"}`)
	if err := c.WriteMessage(msg); err != nil {
		t.Fatalf("WriteMessage() error = %v", err)
	}

	got, err := c.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage() error = %v", err)
	}
	if string(got) != string(msg) {
		t.Errorf("ReadMessage() = %s, want %s", got, msg)
	}
}

func TestCodec_ContentLengthMultipleMessages(t *testing.T) {
	var buf bytes.Buffer
	c := NewCodec(FramingContentLength, &buf, &buf)

	msgs := []string{
		`{"jsonrpc":"2.0","method":"a"}`,
		`{"jsonrpc":"2.0","method":"b"}`,
	}
	for _, m := range msgs {
		if err := c.WriteMessage([]byte(m)); err != nil {
			t.Fatalf("WriteMessage() error = %v", err)
		}
	}

	for _, want := range msgs {
		got, err := c.ReadMessage()
		if err != nil {
			t.Fatalf("ReadMessage() error = %v", err)
		}
		if string(got) != want {
			t.Errorf("ReadMessage() = %s, want %s", got, want)
		}
	}
}

func TestCodec_ContentLengthMissingHeader(t *testing.T) {
	r := strings.NewReader("\r\n{}")
	c := NewCodec(FramingContentLength, r, nil)

	if _, err := c.ReadMessage(); err == nil {
		t.Fatal("expected error for missing Content-Length header")
	}
}

func TestCodec_BlankLineRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	c := NewCodec(FramingBlankLine, &buf, &buf)

	msg := []byte(`{"jsonrpc":"2.0","id":1,"method":"languageClient/isAlive"}`)
	if err := c.WriteMessage(msg); err != nil {
		t.Fatalf("WriteMessage() error = %v", err)
	}

	got, err := c.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage() error = %v", err)
	}
	if string(got) != string(msg) {
		t.Errorf("ReadMessage() = %s, want %s", got, msg)
	}
}

func TestCodec_BlankLineMultipleMessages(t *testing.T) {
	var buf bytes.Buffer
	c := NewCodec(FramingBlankLine, &buf, &buf)

	msgs := []string{`{"method":"a"}`, `{"method":"b"}`, `{"method":"c"}`}
	for _, m := range msgs {
		if err := c.WriteMessage([]byte(m)); err != nil {
			t.Fatalf("WriteMessage() error = %v", err)
		}
	}

	for _, want := range msgs {
		got, err := c.ReadMessage()
		if err != nil {
			t.Fatalf("ReadMessage() error = %v", err)
		}
		if string(got) != want {
			t.Errorf("ReadMessage() = %s, want %s", got, want)
		}
	}
}

func TestCodec_BlankLineTolerantLeadingBlanks(t *testing.T) {
	r := strings.NewReader("\n\n{\"method\":\"a\"}\n\n")
	c := NewCodec(FramingBlankLine, r, nil)

	got, err := c.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage() error = %v", err)
	}
	if string(got) != `{"method":"a"}` {
		t.Errorf("ReadMessage() = %s, want {\"method\":\"a\"}", got)
	}
}

func TestClassifyMessage(t *testing.T) {
	tests := []struct {
		name string
		data string
		want MessageShape
	}{
		{
			name: "request",
			data: `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`,
			want: MessageShape{HasID: true, HasMethod: true},
		},
		{
			name: "notification",
			data: `{"jsonrpc":"2.0","method":"textDocument/didOpen","params":{}}`,
			want: MessageShape{HasMethod: true},
		},
		{
			name: "reply with result",
			data: `{"jsonrpc":"2.0","id":1,"result":{}}`,
			want: MessageShape{HasID: true, HasResult: true},
		},
		{
			name: "reply with error",
			data: `{"jsonrpc":"2.0","id":1,"error":{"code":-32601,"message":"not found"}}`,
			want: MessageShape{HasID: true, HasError: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyMessage([]byte(tt.data))
			if got != tt.want {
				t.Errorf("ClassifyMessage() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestMessageShape_Predicates(t *testing.T) {
	req := ClassifyMessage([]byte(`{"id":1,"method":"m"}`))
	if !req.IsRequest() || req.IsNotification() || req.IsReply() {
		t.Errorf("request shape classified wrong: %+v", req)
	}

	notif := ClassifyMessage([]byte(`{"method":"m"}`))
	if notif.IsRequest() || !notif.IsNotification() || notif.IsReply() {
		t.Errorf("notification shape classified wrong: %+v", notif)
	}

	reply := ClassifyMessage([]byte(`{"id":1,"result":{}}`))
	if reply.IsRequest() || reply.IsNotification() || !reply.IsReply() {
		t.Errorf("reply shape classified wrong: %+v", reply)
	}
}
