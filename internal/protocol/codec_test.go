package protocol_test

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/MrWong99/voicegate/internal/protocol"
	"github.com/MrWong99/voicegate/pkg/capability"
)

// ---- helpers ----------------------------------------------------------------

// roundTrip marshals ev and decodes it back through a Decoder, failing the
// test on any error.
func roundTrip(t *testing.T, ev protocol.Event) protocol.Event {
	t.Helper()
	wire, err := protocol.Marshal(ev)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	got, err := protocol.NewDecoder(bytes.NewReader(wire)).Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	return got
}

// ---- encoding ---------------------------------------------------------------

func TestMarshal_Describe_SingleHeaderLine(t *testing.T) {
	wire, err := protocol.Marshal(protocol.Describe{})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	s := string(wire)
	if !strings.HasSuffix(s, "\n") {
		t.Errorf("wire form must end with newline, got %q", s)
	}
	if strings.Count(s, "\n") != 1 {
		t.Errorf("expected exactly one line, got %q", s)
	}
	if !strings.Contains(s, `"type":"describe"`) {
		t.Errorf("missing type tag in %q", s)
	}
}

func TestMarshal_AudioChunk_PayloadFollowsHeader(t *testing.T) {
	payload := []byte{1, 2, 3, 4}
	wire, err := protocol.Marshal(protocol.AudioChunk{
		Rate: 16000, Width: 2, Channels: 1, Audio: payload,
	})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	nl := bytes.IndexByte(wire, '\n')
	if nl < 0 {
		t.Fatalf("no header line in %q", wire)
	}
	if got := wire[nl+1:]; !bytes.Equal(got, payload) {
		t.Errorf("payload = %v, want %v", got, payload)
	}
	if !strings.Contains(string(wire[:nl]), `"payload_length":4`) {
		t.Errorf("header missing payload_length: %q", wire[:nl])
	}
}

// ---- round trips ------------------------------------------------------------

func TestRoundTrip_Transcribe_PreservesLanguage(t *testing.T) {
	got := roundTrip(t, protocol.Transcribe{Language: "de"})
	ev, ok := got.(protocol.Transcribe)
	if !ok {
		t.Fatalf("decoded %T, want Transcribe", got)
	}
	if ev.Language != "de" {
		t.Errorf("Language = %q, want %q", ev.Language, "de")
	}
}

func TestRoundTrip_Synthesize_PreservesFields(t *testing.T) {
	in := protocol.Synthesize{
		Text:           "hello there",
		Voice:          protocol.SynthesizeVoice{Name: "af_bella"},
		Speed:          1.25,
		ResponseFormat: "pcm",
	}
	got := roundTrip(t, in)
	ev, ok := got.(protocol.Synthesize)
	if !ok {
		t.Fatalf("decoded %T, want Synthesize", got)
	}
	if ev != in {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", ev, in)
	}
}

func TestRoundTrip_AudioChunk_PreservesPayloadAndFormat(t *testing.T) {
	in := protocol.AudioChunk{Rate: 22050, Width: 2, Channels: 2, Audio: []byte{9, 8, 7}}
	got := roundTrip(t, in)
	ev, ok := got.(protocol.AudioChunk)
	if !ok {
		t.Fatalf("decoded %T, want AudioChunk", got)
	}
	if ev.Rate != 22050 || ev.Width != 2 || ev.Channels != 2 {
		t.Errorf("format = (%d,%d,%d), want (22050,2,2)", ev.Rate, ev.Width, ev.Channels)
	}
	if !bytes.Equal(ev.Audio, in.Audio) {
		t.Errorf("Audio = %v, want %v", ev.Audio, in.Audio)
	}
}

func TestRoundTrip_Info_PreservesPrograms(t *testing.T) {
	in := protocol.Info{Info: capability.Info{
		ASR: []capability.ASRProgram{{
			Name:      "whisper",
			Installed: true,
			Models:    []capability.ASRModel{{Name: "base.en", Languages: []string{"en"}}},
		}},
		TTS: []capability.TTSProgram{{
			Name:   "kokoro",
			Voices: []capability.Voice{{Name: "af_bella"}},
		}},
	}}
	got := roundTrip(t, in)
	ev, ok := got.(protocol.Info)
	if !ok {
		t.Fatalf("decoded %T, want Info", got)
	}
	if len(ev.ASR) != 1 || ev.ASR[0].Models[0].Name != "base.en" {
		t.Errorf("ASR programs not preserved: %+v", ev.ASR)
	}
	if len(ev.TTS) != 1 || ev.TTS[0].Voices[0].Name != "af_bella" {
		t.Errorf("TTS programs not preserved: %+v", ev.TTS)
	}
}

// ---- decoding multiple events -----------------------------------------------

func TestDecoder_MultipleEvents_InOrder(t *testing.T) {
	var buf bytes.Buffer
	events := []protocol.Event{
		protocol.Transcribe{},
		protocol.AudioChunk{Rate: 16000, Width: 2, Channels: 1, Audio: make([]byte, 320)},
		protocol.AudioStop{},
	}
	for _, ev := range events {
		wire, err := protocol.Marshal(ev)
		if err != nil {
			t.Fatalf("Marshal: %v", err)
		}
		buf.Write(wire)
	}

	dec := protocol.NewDecoder(&buf)
	for i, want := range events {
		got, err := dec.Next()
		if err != nil {
			t.Fatalf("event %d: %v", i, err)
		}
		if got.Kind() != want.Kind() {
			t.Errorf("event %d kind = %s, want %s", i, got.Kind(), want.Kind())
		}
	}
	if _, err := dec.Next(); !errors.Is(err, io.EOF) {
		t.Errorf("after last event err = %v, want io.EOF", err)
	}
}

// ---- malformed input --------------------------------------------------------

func TestDecoder_MalformedInput_ReturnsProtocolError(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"unknown event type", `{"type":"rewind"}` + "\n"},
		{"not json", "hello world\n"},
		{"truncated header", `{"type":"describe"`},
		{"negative payload length", `{"type":"audio-chunk","payload_length":-3}` + "\n"},
		{"absurd payload length", `{"type":"audio-chunk","payload_length":1000000000000}` + "\n"},
		{"short payload", `{"type":"audio-chunk","payload_length":10}` + "\nabc"},
		{"bad data shape", `{"type":"synthesize","data":{"text":42}}` + "\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := protocol.NewDecoder(strings.NewReader(tt.input)).Next()
			if !errors.Is(err, protocol.ErrProtocol) {
				t.Errorf("err = %v, want ErrProtocol", err)
			}
		})
	}
}

// newlineLessReader yields bytes forever without ever producing '\n'.
type newlineLessReader struct{}

func (newlineLessReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = 'a'
	}
	return len(p), nil
}

func TestDecoder_UnterminatedHeader_FailsAtBound(t *testing.T) {
	// A peer streaming header bytes without a newline must be rejected
	// while reading, not buffered until the stream ends.
	_, err := protocol.NewDecoder(newlineLessReader{}).Next()
	if !errors.Is(err, protocol.ErrProtocol) {
		t.Errorf("err = %v, want ErrProtocol", err)
	}
}

func TestDecoder_EmptyStream_ReturnsEOF(t *testing.T) {
	_, err := protocol.NewDecoder(strings.NewReader("")).Next()
	if !errors.Is(err, io.EOF) {
		t.Errorf("err = %v, want io.EOF", err)
	}
}
