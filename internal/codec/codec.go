// Package codec extracts signal payloads from the raw bytes the detector terminal
// writes. The terminal is not consistent about encodings: files arrive as UTF-16LE
// with or without a BOM, as UTF-8, and occasionally with stray control bytes or
// log garbage around the JSON object.
package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"unicode"

	xunicode "golang.org/x/text/encoding/unicode"

	"bosgate/internal/signal"
)

// Kind classifies decode failures.
type Kind int

const (
	// KindMalformed means no JSON object could be extracted from the payload.
	KindMalformed Kind = iota
	// KindSchemaMismatch means the object lacks the required top-level fields.
	KindSchemaMismatch
)

func (k Kind) String() string {
	if k == KindSchemaMismatch {
		return "schema_mismatch"
	}
	return "malformed"
}

// DecodeError reports why a payload could not be turned into a Signal.
type DecodeError struct {
	Kind   Kind
	Detail string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode signal: %s: %s", e.Kind, e.Detail)
}

// Extract pulls the outermost JSON object out of a raw terminal payload,
// transcoding from UTF-16LE when the bytes look like it and dropping any
// control bytes or surrounding garbage. The result is raw JSON, not yet
// validated against any schema.
func Extract(raw []byte) ([]byte, error) {
	if len(raw) == 0 {
		return nil, &DecodeError{Kind: KindMalformed, Detail: "empty payload"}
	}
	text := stripNonPrintable(transcode(raw))
	obj, ok := outermostObject(text)
	if !ok {
		return nil, &DecodeError{Kind: KindMalformed, Detail: "no JSON object found"}
	}
	return obj, nil
}

// Decode interprets a raw channel payload as a Signal. Absent phases are
// legal here; phase completeness is the tracker's concern.
func Decode(raw []byte) (signal.Signal, error) {
	var sig signal.Signal
	obj, err := Extract(raw)
	if err != nil {
		return sig, err
	}
	if err := json.Unmarshal(obj, &sig); err != nil {
		return sig, &DecodeError{Kind: KindMalformed, Detail: err.Error()}
	}
	if sig.Symbol == "" {
		return sig, &DecodeError{Kind: KindSchemaMismatch, Detail: "missing symbol"}
	}
	if !sig.Direction.Valid() {
		return sig, &DecodeError{Kind: KindSchemaMismatch, Detail: "missing or unknown direction"}
	}
	return sig, nil
}

// transcode picks between UTF-16LE and UTF-8 interpretations of the payload.
func transcode(raw []byte) []byte {
	if looksUTF16LE(raw) {
		dec := xunicode.UTF16(xunicode.LittleEndian, xunicode.IgnoreBOM).NewDecoder()
		body := raw
		if len(body) >= 2 && body[0] == 0xFF && body[1] == 0xFE {
			body = body[2:]
		}
		if out, err := dec.Bytes(body); err == nil {
			return out
		}
	}
	return raw
}

// looksUTF16LE sniffs for a BOM or the NUL padding UTF-16LE leaves on ASCII text.
func looksUTF16LE(raw []byte) bool {
	if len(raw) >= 2 && raw[0] == 0xFF && raw[1] == 0xFE {
		return true
	}
	if len(raw) < 4 {
		return false
	}
	nuls := bytes.Count(raw, []byte{0})
	return nuls*10 >= len(raw)*3
}

// stripNonPrintable removes control bytes and invalid runes, keeping every
// printable character including whitespace inside the JSON body.
func stripNonPrintable(in []byte) []byte {
	out := make([]byte, 0, len(in))
	for _, r := range string(in) {
		if r == unicode.ReplacementChar {
			continue
		}
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' || unicode.IsPrint(r) {
			out = append(out, string(r)...)
		}
	}
	return out
}

// outermostObject returns the span from the first '{' to the last '}'.
func outermostObject(in []byte) ([]byte, bool) {
	start := bytes.IndexByte(in, '{')
	end := bytes.LastIndexByte(in, '}')
	if start < 0 || end <= start {
		return nil, false
	}
	return in[start : end+1], true
}
