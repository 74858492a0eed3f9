package relay

import (
	"strings"
	"testing"
)

func TestOutputBufferStaysBounded(t *testing.T) {
	b := NewOutputBuffer(DefaultBufferSize)
	var full strings.Builder

	chunk := strings.Repeat("x", 1024)
	for i := 0; i < 50; i++ {
		b.Append(chunk)
		full.WriteString(chunk)
		if b.Len() > DefaultBufferSize {
			t.Fatalf("buffer grew to %d, cap is %d", b.Len(), DefaultBufferSize)
		}
	}

	stream := full.String()
	if got, want := b.String(), stream[len(stream)-DefaultBufferSize:]; got != want {
		t.Error("buffer is not the suffix of the concatenated stream")
	}
}

func TestOutputBufferKeepsMostRecentSuffix(t *testing.T) {
	b := NewOutputBuffer(10)
	b.Append("abcdefgh")
	b.Append("ijklmnop")
	if got := b.String(); got != "ghijklmnop" {
		t.Errorf("got %q, want %q", got, "ghijklmnop")
	}
}

func TestOutputBufferShortContentUntouched(t *testing.T) {
	b := NewOutputBuffer(100)
	b.Append("hello ")
	b.Append("world")
	if got := b.String(); got != "hello world" {
		t.Errorf("got %q, want %q", got, "hello world")
	}
}

func TestOutputBufferDefaultCap(t *testing.T) {
	b := NewOutputBuffer(0)
	b.Append(strings.Repeat("y", DefaultBufferSize+1))
	if b.Len() != DefaultBufferSize {
		t.Errorf("got len %d, want %d", b.Len(), DefaultBufferSize)
	}
}
