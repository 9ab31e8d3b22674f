package iqfeed

import (
	"bytes"
	"errors"
	"io"
	"math/rand"
	"strings"
	"testing"

	"iqfeed_go/internal/domain"
	"iqfeed_go/internal/infra"
)

// chunkReader returns one chunk per Read, then io.EOF.
type chunkReader struct {
	chunks [][]byte
}

func (r *chunkReader) Read(p []byte) (int, error) {
	if len(r.chunks) == 0 {
		return 0, io.EOF
	}
	n := copy(p, r.chunks[0])
	r.chunks[0] = r.chunks[0][n:]
	if len(r.chunks[0]) == 0 {
		r.chunks = r.chunks[1:]
	}
	return n, nil
}

func chunks(parts ...string) *chunkReader {
	r := &chunkReader{}
	for _, p := range parts {
		r.chunks = append(r.chunks, []byte(p))
	}
	return r
}

// collect runs a Reader to EOF and returns the frames it emitted.
func collect(t *testing.T, src io.Reader, size int) ([]string, *Reader) {
	t.Helper()
	var frames []string
	r := NewReader(src, size, &infra.Metrics{})
	err := r.Run(SinkFunc(func(f []byte) error {
		frames = append(frames, string(f))
		return nil
	}))

	var ne *domain.NetworkError
	if !errors.As(err, &ne) || !errors.Is(err, io.EOF) {
		t.Fatalf("expected NetworkError wrapping EOF, got %v", err)
	}
	return frames, r
}

func equalFrames(t *testing.T, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %d frames %q, want %d %q", len(got), got, len(want), want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("frame %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestReader_Framing(t *testing.T) {
	tests := []struct {
		name  string
		parts []string
		want  []string
	}{
		{"single", []string{"Q,GME,190\n"}, []string{"Q,GME,190"}},
		{"split across reads", []string{"Q,GME,1", "90.00\n"}, []string{"Q,GME,190.00"}},
		{"many per read", []string{"T,1\nO,2\nQ,3\n"}, []string{"T,1", "O,2", "Q,3"}},
		{"empty records skipped", []string{"\n\nQ,GME\n"}, []string{"Q,GME"}},
		{"delimiter alone", []string{"Q,A", "\n", "\n", "T,B\n"}, []string{"Q,A", "T,B"}},
		{"trailing partial dropped", []string{"Q,A\nQ,B"}, []string{"Q,A"}},
		{"byte at a time", strings.Split("O,HI\nT,X\n", ""), []string{"O,HI", "T,X"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := collect(t, chunks(tt.parts...), 0)
			equalFrames(t, got, tt.want)
		})
	}
}

func TestReader_SmallScratchBuffer(t *testing.T) {
	// frames longer than one read must still come out whole
	long := "Q," + strings.Repeat("X", 100)
	got, _ := collect(t, strings.NewReader(long+"\nT,1\n"), 7)
	equalFrames(t, got, []string{long, "T,1"})
}

func TestReader_ChunkingDoesNotChangeOutput(t *testing.T) {
	var stream strings.Builder
	var want []string
	for i := 0; i < 200; i++ {
		frame := strings.Repeat(string(rune('A'+i%26)), 1+i%37)
		want = append(want, frame)
		stream.WriteString(frame)
		stream.WriteByte('\n')
		if i%17 == 0 {
			stream.WriteByte('\n')
		}
	}
	data := stream.String()

	rng := rand.New(rand.NewSource(42))
	for trial := 0; trial < 50; trial++ {
		var parts []string
		for rest := data; len(rest) > 0; {
			n := 1 + rng.Intn(64)
			if n > len(rest) {
				n = len(rest)
			}
			parts = append(parts, rest[:n])
			rest = rest[n:]
		}
		got, _ := collect(t, chunks(parts...), 0)
		equalFrames(t, got, want)
	}
}

func TestReader_FramesAreIndependentCopies(t *testing.T) {
	var frames [][]byte
	r := NewReader(chunks("Q,A\nQ,B\n", "Q,C\n"), 0, &infra.Metrics{})
	_ = r.Run(SinkFunc(func(f []byte) error {
		frames = append(frames, f)
		return nil
	}))

	want := []string{"Q,A", "Q,B", "Q,C"}
	for i, f := range frames {
		if string(f) != want[i] {
			t.Errorf("frame %d changed to %q after later reads, want %q", i, f, want[i])
		}
	}
}

func TestReader_SinkErrorStopsLoop(t *testing.T) {
	stop := errors.New("stop")
	calls := 0
	r := NewReader(chunks("Q,A\nQ,B\nQ,C\n"), 0, &infra.Metrics{})
	err := r.Run(SinkFunc(func([]byte) error {
		calls++
		if calls == 2 {
			return stop
		}
		return nil
	}))

	if !errors.Is(err, stop) {
		t.Errorf("Run error = %v, want sink error", err)
	}
	if calls != 2 {
		t.Errorf("sink called %d times, want 2", calls)
	}
}

func TestReader_ReadErrorIsFatal(t *testing.T) {
	boom := errors.New("connection reset")
	r := NewReader(io.MultiReader(strings.NewReader("Q,A\n"), &failingReader{err: boom}), 0, &infra.Metrics{})

	var frames int
	err := r.Run(SinkFunc(func([]byte) error { frames++; return nil }))

	var ne *domain.NetworkError
	if !errors.As(err, &ne) {
		t.Fatalf("expected NetworkError, got %v", err)
	}
	if ne.Op != "read" || ne.IsRetriable() || !errors.Is(err, boom) {
		t.Errorf("unexpected error: %+v", ne)
	}
	if frames != 1 {
		t.Errorf("frames before failure = %d, want 1", frames)
	}
}

type failingReader struct{ err error }

func (r *failingReader) Read([]byte) (int, error) { return 0, r.err }

func TestReader_BufferStaysBounded(t *testing.T) {
	// many complete frames must not grow the carry-over buffer
	var stream bytes.Buffer
	for i := 0; i < 10000; i++ {
		stream.WriteString("Q,GME,190.00,1\n")
	}
	stream.WriteString("Q,PART")

	_, r := collect(t, &stream, 64)
	if r.Buffered() != len("Q,PART") {
		t.Errorf("Buffered = %d, want %d", r.Buffered(), len("Q,PART"))
	}
	if cap(r.buf) > 1024 {
		t.Errorf("buffer capacity grew to %d", cap(r.buf))
	}
}

func TestReader_Metrics(t *testing.T) {
	m := &infra.Metrics{}
	r := NewReader(chunks("Q,A\n\nT,B\n"), 0, m)
	_ = r.Run(SinkFunc(func([]byte) error { return nil }))

	snap := m.Snapshot()
	if snap.BytesRead != 9 {
		t.Errorf("BytesRead = %d, want 9", snap.BytesRead)
	}
	if snap.FramesRead != 2 {
		t.Errorf("FramesRead = %d, want 2", snap.FramesRead)
	}
}

type loopReader struct {
	data []byte
	left int
}

func (r *loopReader) Read(p []byte) (int, error) {
	if r.left == 0 {
		return 0, io.EOF
	}
	r.left--
	return copy(p, r.data), nil
}

func BenchmarkReader_Throughput(b *testing.B) {
	var block bytes.Buffer
	for block.Len() < DefaultReadBufferSize-len(sampleTrade) {
		block.WriteString(sampleTrade)
		block.WriteByte('\n')
	}
	sink := SinkFunc(func([]byte) error { return nil })

	b.SetBytes(int64(block.Len()))
	b.ReportAllocs()
	b.ResetTimer()

	r := NewReader(&loopReader{data: block.Bytes(), left: b.N}, DefaultReadBufferSize, &infra.Metrics{})
	_ = r.Run(sink)
}
