// Package protocol implements the framed event protocol spoken between
// voicegate and its clients.
//
// Every message is one JSON header line terminated by '\n' —
//
//	{"type": "audio-chunk", "data": {"rate": 16000, "width": 2, "channels": 1}, "payload_length": 2048}
//
// — followed by exactly payload_length binary bytes when the field is present.
// Events are modelled as a tagged union ([Event]); [Marshal] produces the full
// wire form of an event and [Decoder] turns a byte stream back into events.
// Malformed framing yields errors wrapping [ErrProtocol], which are fatal for
// the connection.
package protocol
