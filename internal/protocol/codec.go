package protocol

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// ErrProtocol is the sentinel for malformed wire data: an unknown event type,
// a truncated or non-JSON header, or a short payload. Errors wrapping it are
// fatal for the connection and must not be retried.
var ErrProtocol = errors.New("malformed protocol frame")

// maxHeaderBytes bounds a single header line so a misbehaving peer cannot
// grow the read buffer without limit.
const maxHeaderBytes = 1 << 20

// maxPayloadBytes caps a single event payload. It comfortably fits minutes
// of PCM audio while keeping a hostile payload_length from driving an
// allocation that would take down the whole process.
const maxPayloadBytes = 1 << 26

// header is the JSON envelope preceding every event on the wire.
type header struct {
	Type          Type            `json:"type"`
	Data          json.RawMessage `json:"data,omitempty"`
	PayloadLength int             `json:"payload_length,omitempty"`
}

// Marshal encodes ev into its complete wire form: one JSON header line
// terminated by '\n', followed by the binary payload when the event carries
// one. Marshal is pure; writing the bytes is the caller's responsibility.
func Marshal(ev Event) ([]byte, error) {
	h := header{Type: ev.Kind()}

	var payload []byte
	switch e := ev.(type) {
	case Describe, AudioStop:
		// no data
	case AudioChunk:
		payload = e.Audio
		h.PayloadLength = len(e.Audio)
		data, err := json.Marshal(e)
		if err != nil {
			return nil, fmt.Errorf("marshal %s data: %w", h.Type, err)
		}
		h.Data = data
	default:
		data, err := json.Marshal(ev)
		if err != nil {
			return nil, fmt.Errorf("marshal %s data: %w", h.Type, err)
		}
		h.Data = data
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(h); err != nil {
		return nil, fmt.Errorf("marshal %s header: %w", h.Type, err)
	}
	// json.Encoder.Encode already appended the trailing '\n'.
	buf.Write(payload)
	return buf.Bytes(), nil
}

// Decoder reads a stream of events from a transport. It is not safe for
// concurrent use; each connection owns exactly one Decoder.
type Decoder struct {
	r *bufio.Reader
}

// NewDecoder wraps r in an event Decoder.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: bufio.NewReader(r)}
}

// Next returns the next event from the transport. It returns io.EOF on a
// clean end of stream and an error wrapping [ErrProtocol] on malformed
// framing. After any error the Decoder must not be used again.
func (d *Decoder) Next() (Event, error) {
	line, err := d.readHeaderLine()
	if err != nil {
		return nil, err
	}

	var h header
	if err := json.Unmarshal(line, &h); err != nil {
		return nil, fmt.Errorf("%w: bad header: %v", ErrProtocol, err)
	}
	if h.PayloadLength < 0 || h.PayloadLength > maxPayloadBytes {
		return nil, fmt.Errorf("%w: payload length %d out of range [0, %d]", ErrProtocol, h.PayloadLength, maxPayloadBytes)
	}

	var payload []byte
	if h.PayloadLength > 0 {
		payload = make([]byte, h.PayloadLength)
		if _, err := io.ReadFull(d.r, payload); err != nil {
			return nil, fmt.Errorf("%w: short payload: %v", ErrProtocol, err)
		}
	}

	return decodeEvent(h, payload)
}

// readHeaderLine reads one '\n'-terminated header line. maxHeaderBytes is
// enforced while reading, so a peer streaming bytes without a newline is cut
// off at the bound rather than buffered indefinitely. A clean EOF before any
// byte is passed through as io.EOF so callers can distinguish disconnects
// from protocol violations.
func (d *Decoder) readHeaderLine() ([]byte, error) {
	var line []byte
	for {
		chunk, err := d.r.ReadSlice('\n')
		line = append(line, chunk...)
		if len(line) > maxHeaderBytes {
			return nil, fmt.Errorf("%w: header exceeds %d bytes", ErrProtocol, maxHeaderBytes)
		}
		switch {
		case err == nil:
			return line, nil
		case errors.Is(err, bufio.ErrBufferFull):
			// no newline inside the buffer yet, keep reading
		case errors.Is(err, io.EOF) && len(line) == 0:
			return nil, io.EOF
		default:
			return nil, fmt.Errorf("%w: truncated header: %v", ErrProtocol, err)
		}
	}
}

// decodeEvent maps a parsed header and payload onto a concrete event value.
func decodeEvent(h header, payload []byte) (Event, error) {
	unmarshalData := func(v any) error {
		if len(h.Data) == 0 {
			return nil
		}
		if err := json.Unmarshal(h.Data, v); err != nil {
			return fmt.Errorf("%w: bad %s data: %v", ErrProtocol, h.Type, err)
		}
		return nil
	}

	switch h.Type {
	case TypeDescribe:
		return Describe{}, nil
	case TypeInfo:
		var ev Info
		if err := unmarshalData(&ev); err != nil {
			return nil, err
		}
		return ev, nil
	case TypeTranscribe:
		var ev Transcribe
		if err := unmarshalData(&ev); err != nil {
			return nil, err
		}
		return ev, nil
	case TypeTranscript:
		var ev Transcript
		if err := unmarshalData(&ev); err != nil {
			return nil, err
		}
		return ev, nil
	case TypeSynthesize:
		var ev Synthesize
		if err := unmarshalData(&ev); err != nil {
			return nil, err
		}
		return ev, nil
	case TypeAudioStart:
		var ev AudioStart
		if err := unmarshalData(&ev); err != nil {
			return nil, err
		}
		return ev, nil
	case TypeAudioChunk:
		var ev AudioChunk
		if err := unmarshalData(&ev); err != nil {
			return nil, err
		}
		ev.Audio = payload
		return ev, nil
	case TypeAudioStop:
		return AudioStop{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown event type %q", ErrProtocol, h.Type)
	}
}
