// Package codec converts between the Firmata byte stream and typed values.
package codec

// Firmata is a MIDI derived protocol: every frame starts with a status byte
// (bit 7 set) followed by data bytes (bit 7 clear). Extended commands are
// wrapped between START_SYSEX and END_SYSEX and carry 7-bit safe payloads.
//
// The codec is stateless. Callers keep the carry-over buffer and feed it to
// Decode, which reports how many bytes were consumed; the rest is a partial
// frame to be completed by later bytes.
//
// Host side: Encode(Command) and Decode(device bytes) -> Messages.
// Device side: DecodeCommands(host bytes) -> Commands and EncodeMessage(Message).
