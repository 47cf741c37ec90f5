package protocol

import "github.com/MrWong99/voicegate/pkg/capability"

// Type identifies an event kind on the wire.
type Type string

// Wire event types. The names match the JSON "type" field exactly.
const (
	TypeDescribe   Type = "describe"
	TypeInfo       Type = "info"
	TypeTranscribe Type = "transcribe"
	TypeTranscript Type = "transcript"
	TypeSynthesize Type = "synthesize"
	TypeAudioStart Type = "audio-start"
	TypeAudioChunk Type = "audio-chunk"
	TypeAudioStop  Type = "audio-stop"
)

// Event is the tagged union of all protocol messages. Concrete event structs
// implement it via Kind; the session state machine dispatches on the concrete
// type with an exhaustive type switch. New event kinds are added by extending
// this set and the codec's type table, not by subclassing.
type Event interface {
	// Kind returns the wire type tag of the event.
	Kind() Type
}

// Describe asks the gateway to advertise its capabilities. It carries no data.
type Describe struct{}

// Info answers a Describe with the gateway's static capability descriptor.
type Info struct {
	capability.Info
}

// Transcribe begins a speech-to-text exchange. The audio that follows arrives
// as AudioChunk events terminated by AudioStop.
type Transcribe struct {
	// Language is an optional BCP-47 recognition hint.
	Language string `json:"language,omitempty"`
}

// Transcript carries the text result of a transcription. The text is empty
// when the backend failed; an empty transcript is the protocol-visible outcome
// of an ASR error.
type Transcript struct {
	Text string `json:"text"`
}

// Synthesize begins a text-to-speech exchange. The gateway answers with
// AudioStart, a run of AudioChunk events, and a closing AudioStop.
type Synthesize struct {
	Text string `json:"text"`

	// Voice selects the synthesis voice; empty means the backend default.
	Voice SynthesizeVoice `json:"voice,omitempty"`

	// Speed is a rate multiplier (1.0 = normal). Zero means unspecified.
	Speed float64 `json:"speed,omitempty"`

	// ResponseFormat is accepted for compatibility; the gateway always
	// streams raw PCM16.
	ResponseFormat string `json:"response_format,omitempty"`
}

// SynthesizeVoice names the requested voice.
type SynthesizeVoice struct {
	Name string `json:"name,omitempty"`
}

// AudioStart opens an audio stream and declares its format.
type AudioStart struct {
	Rate     int `json:"rate"`
	Width    int `json:"width"`
	Channels int `json:"channels"`
}

// AudioChunk carries one fragment of PCM audio. The format triplet is read
// from the first chunk of a stream; later chunks are expected to repeat the
// same values, and a disagreement is logged but never rejected.
type AudioChunk struct {
	Rate     int `json:"rate"`
	Width    int `json:"width"`
	Channels int `json:"channels"`

	// Audio is the binary payload. It travels after the header on the wire,
	// not inside the JSON data document.
	Audio []byte `json:"-"`
}

// AudioStop closes an audio stream. It carries no data.
type AudioStop struct{}

func (Describe) Kind() Type   { return TypeDescribe }
func (Info) Kind() Type       { return TypeInfo }
func (Transcribe) Kind() Type { return TypeTranscribe }
func (Transcript) Kind() Type { return TypeTranscript }
func (Synthesize) Kind() Type { return TypeSynthesize }
func (AudioStart) Kind() Type { return TypeAudioStart }
func (AudioChunk) Kind() Type { return TypeAudioChunk }
func (AudioStop) Kind() Type  { return TypeAudioStop }
