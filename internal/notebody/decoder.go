// Package notebody decodes the compressed binary envelope that holds a
// note's body text. The format is reverse engineered: a gzip stream wrapping
// a nested length-delimited tagged-field structure with no published schema,
// so the decoder skips anything it does not recognize and reports "no text"
// instead of failing on drift between application versions.
package notebody

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"google.golang.org/protobuf/encoding/protowire"
)

// ErrNoText reports that the envelope decompressed cleanly but no text
// payload could be extracted from it.
var ErrNoText = errors.New("no text payload in note envelope")

// Field numbers observed in the two known envelope layouts. Older databases
// put the note message directly at the top level; newer ones wrap it in one
// more envelope layer.
const (
	legacyNoteField = 3 // top level -> note message
	modernWrapField = 2 // top level -> envelope
	modernNoteField = 3 // envelope -> note message
	noteTextField   = 2 // note message -> UTF-8 text
)

// Decode inflates a raw body blob and extracts the plain-text payload.
// Empty input decodes to the empty string. A gzip failure or an envelope
// without a recognizable text field returns an error; callers that want the
// degrade-to-empty behavior apply it themselves.
func Decode(raw []byte) (string, error) {
	if len(raw) == 0 {
		return "", nil
	}
	plain, err := inflate(raw)
	if err != nil {
		return "", fmt.Errorf("inflate note body: %w", err)
	}
	if note, ok := bytesField(plain, legacyNoteField); ok {
		if text, ok := bytesField(note, noteTextField); ok {
			return string(text), nil
		}
	}
	if env, ok := bytesField(plain, modernWrapField); ok {
		if note, ok := bytesField(env, modernNoteField); ok {
			if text, ok := bytesField(note, noteTextField); ok {
				return string(text), nil
			}
		}
	}
	return "", ErrNoText
}

func inflate(raw []byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	plain, err := io.ReadAll(zr)
	if err != nil {
		return nil, err
	}
	return plain, nil
}

// bytesField scans one message level for the first length-delimited field
// with the given number. Unknown fields are skipped by wire type; any
// malformed tag, varint, or out-of-range length ends the scan with no match
// rather than an error, since the format is inferred and future versions may
// change it.
func bytesField(buf []byte, want protowire.Number) ([]byte, bool) {
	for len(buf) > 0 {
		num, typ, n := protowire.ConsumeTag(buf)
		if n < 0 {
			return nil, false
		}
		buf = buf[n:]
		if num == want && typ == protowire.BytesType {
			v, n := protowire.ConsumeBytes(buf)
			if n < 0 {
				return nil, false
			}
			return v, true
		}
		n = protowire.ConsumeFieldValue(num, typ, buf)
		if n < 0 {
			return nil, false
		}
		buf = buf[n:]
	}
	return nil, false
}
