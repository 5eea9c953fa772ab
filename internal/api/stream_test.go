package api

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"testing/iotest"
)

type fragment struct {
	text      string
	reasoning bool
}

func collect(t *testing.T, r io.Reader) ([]fragment, *StreamResult) {
	t.Helper()
	var got []fragment
	res, err := ReadStream(context.Background(), r, func(text string, reasoning bool) {
		got = append(got, fragment{text, reasoning})
	}, nil)
	if err != nil {
		t.Fatalf("ReadStream() error = %v", err)
	}
	return got, res
}

// chunkedReader returns the payload in fixed-size reads, splitting lines and
// runes at arbitrary byte positions.
type chunkedReader struct {
	data []byte
	size int
}

func (c *chunkedReader) Read(p []byte) (int, error) {
	if len(c.data) == 0 {
		return 0, io.EOF
	}
	n := c.size
	if n > len(c.data) {
		n = len(c.data)
	}
	if n > len(p) {
		n = len(p)
	}
	copy(p, c.data[:n])
	c.data = c.data[n:]
	return n, nil
}

func TestReadStream(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    []fragment
		skipped int
	}{
		{
			name: "answer deltas",
			payload: `data: {"choices":[{"delta":{"content":"Hel"}}]}
data: {"choices":[{"delta":{"content":"lo"}}]}
data: [DONE]
`,
			want: []fragment{{"Hel", false}, {"lo", false}},
		},
		{
			name: "reasoning before answer in one event",
			payload: `data: {"choices":[{"delta":{"content":"A","reasoning_content":"R"}}]}
`,
			want: []fragment{{"R", true}, {"A", false}},
		},
		{
			name: "empty fragments are not dispatched",
			payload: `data: {"choices":[{"delta":{"content":"","reasoning_content":""}}]}
data: {"choices":[{"delta":{}}]}
data: {"choices":[]}
`,
			want: nil,
		},
		{
			name: "non data lines ignored",
			payload: `event: message
: keepalive
id: 7

data:{"choices":[{"delta":{"content":"no space"}}]}
data: {"choices":[{"delta":{"content":"ok"}}]}
`,
			want: []fragment{{"ok", false}},
		},
		{
			name: "malformed line skipped, stream continues",
			payload: `data: {"choices":[{"delta":{"content":"a"}}]}
data: {not json
data: {"choices":[{"delta":{"content":"b"}}]}
`,
			want:    []fragment{{"a", false}, {"b", false}},
			skipped: 1,
		},
		{
			name:    "CRLF line endings",
			payload: "data: {\"choices\":[{\"delta\":{\"content\":\"x\"}}]}\r\ndata: [DONE]\r\n",
			want:    []fragment{{"x", false}},
		},
		{
			name:    "final line without newline",
			payload: `data: {"choices":[{"delta":{"content":"tail"}}]}`,
			want:    []fragment{{"tail", false}},
		},
		{
			name:    "DONE with trailing text is parsed and fails",
			payload: "data: [DONE] \n",
			skipped: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, res := collect(t, strings.NewReader(tt.payload))
			if len(got) != len(tt.want) {
				t.Fatalf("got %d fragments %v, want %d %v", len(got), got, len(tt.want), tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("fragment[%d] = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
			if res.Skipped != tt.skipped {
				t.Errorf("Skipped = %d, want %d", res.Skipped, tt.skipped)
			}
		})
	}
}

func TestReadStreamSplitReads(t *testing.T) {
	payload := `data: {"choices":[{"delta":{"reasoning_content":"思考中"}}]}
data: {"choices":[{"delta":{"content":"你好，世界"}}]}
data: {"choices":[{"delta":{"content":" 🎉"}}]}
data: [DONE]
`
	for _, size := range []int{1, 2, 3, 5, 7, 13} {
		got, res := collect(t, &chunkedReader{data: []byte(payload), size: size})

		want := []fragment{{"思考中", true}, {"你好，世界", false}, {" 🎉", false}}
		if len(got) != len(want) {
			t.Fatalf("size %d: got %v, want %v", size, got, want)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("size %d: fragment[%d] = %+v, want %+v", size, i, got[i], want[i])
			}
		}
		if res.Content != "你好，世界 🎉" {
			t.Errorf("size %d: Content = %q", size, res.Content)
		}
		if res.Reasoning != "思考中" {
			t.Errorf("size %d: Reasoning = %q", size, res.Reasoning)
		}
		if res.Events != 3 {
			t.Errorf("size %d: Events = %d, want 3", size, res.Events)
		}
	}
}

func TestReadStreamOneByteReader(t *testing.T) {
	payload := "data: {\"choices\":[{\"delta\":{\"content\":\"ok\"}}]}\n"
	got, _ := collect(t, iotest.OneByteReader(strings.NewReader(payload)))
	if len(got) != 1 || got[0].text != "ok" {
		t.Errorf("got %v, want [ok]", got)
	}
}

func TestReadStreamReadError(t *testing.T) {
	boom := errors.New("connection reset")
	r := io.MultiReader(
		strings.NewReader("data: {\"choices\":[{\"delta\":{\"content\":\"partial\"}}]}\n"),
		iotest.ErrReader(boom),
	)

	var got []string
	res, err := ReadStream(context.Background(), r, func(text string, _ bool) {
		got = append(got, text)
	}, nil)
	if !errors.Is(err, boom) {
		t.Fatalf("ReadStream() error = %v, want %v", err, boom)
	}
	if len(got) != 1 || got[0] != "partial" {
		t.Errorf("fragments before error = %v, want [partial]", got)
	}
	if res == nil || res.Content != "partial" {
		t.Errorf("result content = %+v, want partial", res)
	}
}

func TestReadStreamCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	_, err := ReadStream(ctx, strings.NewReader("data: {\"choices\":[{\"delta\":{\"content\":\"x\"}}]}\n"), func(string, bool) {
		called = true
	}, nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
	if called {
		t.Error("sink called after cancellation")
	}
}

func TestReadStreamLogsMalformed(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	_, err := ReadStream(context.Background(), strings.NewReader("data: nope\n"), func(string, bool) {}, logger)
	if err != nil {
		t.Fatalf("ReadStream() error = %v", err)
	}
	if !strings.Contains(buf.String(), "skipping malformed stream event") {
		t.Errorf("expected warning in log, got %q", buf.String())
	}
}

func TestParseLine(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		wantOK  bool
		wantErr bool
	}{
		{"data event", `data: {"choices":[]}`, true, false},
		{"done sentinel", "data: [DONE]\n", false, false},
		{"comment", ": ping", false, false},
		{"empty", "\n", false, false},
		{"bad json", "data: {", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok, err := parseLine(tt.line)
			if ok != tt.wantOK {
				t.Errorf("ok = %v, want %v", ok, tt.wantOK)
			}
			if (err != nil) != tt.wantErr {
				t.Errorf("err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
