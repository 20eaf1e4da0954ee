package codec

import (
	"bytes"
	"errors"
	"fmt"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// ErrUnknownCodepage is returned for a codepage with no transcoder.
var ErrUnknownCodepage = errors.New("unknown codepage")

// Format is the on-disk form of a document: a Unicode mode, or an explicit
// codepage when Codepage is not NoCodepage.
type Format struct {
	Mode     UniMode
	Codepage int
}

func (f Format) unicode() bool {
	return f.Codepage == NoCodepage || f.Codepage == CodepageUTF8
}

// transcoder returns the transform from disk bytes to document bytes
// (decode) or back (encode). A nil transformer means bytes pass through.
func (f Format) transcoder(decode bool) (transform.Transformer, error) {
	var enc encoding.Encoding
	switch {
	case f.Codepage != NoCodepage && f.Codepage != CodepageUTF8:
		e, ok := codepageEncoding(f.Codepage)
		if !ok {
			return nil, fmt.Errorf("%w: %d", ErrUnknownCodepage, f.Codepage)
		}
		if !decode {
			return encoding.ReplaceUnsupported(e.NewEncoder()), nil
		}
		enc = e
	case f.Mode == Uni16BE || f.Mode == Uni16BENoBOM:
		enc = unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM)
	case f.Mode == Uni16LE || f.Mode == Uni16LENoBOM:
		enc = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)
	default:
		return nil, nil
	}
	if decode {
		return enc.NewDecoder(), nil
	}
	return enc.NewEncoder(), nil
}

// Decoder converts successive blocks read from disk into document bytes.
// A byte-order mark matching the format's mode at the start of the first
// block is dropped.
type Decoder struct {
	format  Format
	t       transform.Transformer
	started bool
}

// NewDecoder creates a decoder for f.
func NewDecoder(f Format) (*Decoder, error) {
	t, err := f.transcoder(true)
	if err != nil {
		return nil, err
	}
	return &Decoder{format: f, t: t}, nil
}

// Decode converts block. incomplete is the number of trailing bytes that
// begin a character block does not finish; the caller must prepend them to
// the next block. With atEOF set, everything is consumed.
func (d *Decoder) Decode(block []byte, atEOF bool) (out []byte, incomplete int, err error) {
	if !d.started {
		var bom []byte
		if d.format.unicode() {
			bom = BOM(d.format.Mode)
		}
		if !atEOF && len(block) < len(bom) && bytes.HasPrefix(bom, block) {
			// Too short to tell whether the mark is there.
			return nil, len(block), nil
		}
		d.started = true
		block = bytes.TrimPrefix(block, bom)
	}
	if d.t == nil {
		return append([]byte(nil), block...), 0, nil
	}
	return run(d.t, block, atEOF)
}

// Encoder converts successive document blocks to disk bytes. The first
// call emits the byte-order mark when the mode carries one.
type Encoder struct {
	format  Format
	t       transform.Transformer
	started bool
}

// NewEncoder creates an encoder for f.
func NewEncoder(f Format) (*Encoder, error) {
	t, err := f.transcoder(false)
	if err != nil {
		return nil, err
	}
	return &Encoder{format: f, t: t}, nil
}

// Encode converts block with the same incomplete-tail contract as Decode.
func (e *Encoder) Encode(block []byte, atEOF bool) (out []byte, incomplete int, err error) {
	var prefix []byte
	if !e.started {
		e.started = true
		if e.format.unicode() {
			prefix = BOM(e.format.Mode)
		}
	}
	if e.t == nil {
		out = make([]byte, 0, len(prefix)+len(block))
		out = append(append(out, prefix...), block...)
		return out, 0, nil
	}
	body, incomplete, err := run(e.t, block, atEOF)
	if err != nil {
		return nil, 0, err
	}
	if len(prefix) > 0 {
		body = append(append([]byte(nil), prefix...), body...)
	}
	return body, incomplete, nil
}

// run drives t over src, growing the destination as needed and reporting
// the unconsumed tail when src ends inside a character.
func run(t transform.Transformer, src []byte, atEOF bool) ([]byte, int, error) {
	dst := make([]byte, len(src)*2+16)
	var out []byte
	for {
		nDst, nSrc, err := t.Transform(dst, src, atEOF)
		out = append(out, dst[:nDst]...)
		src = src[nSrc:]
		switch {
		case err == nil:
			return out, 0, nil
		case errors.Is(err, transform.ErrShortDst):
			if nSrc == 0 && nDst == 0 {
				dst = make([]byte, len(dst)*2)
			}
		case errors.Is(err, transform.ErrShortSrc):
			if atEOF {
				return out, 0, err
			}
			return out, len(src), nil
		default:
			return nil, 0, err
		}
	}
}

// DecodeAll decodes a complete byte stream.
func DecodeAll(data []byte, f Format) ([]byte, error) {
	d, err := NewDecoder(f)
	if err != nil {
		return nil, err
	}
	out, _, err := d.Decode(data, true)
	return out, err
}

// EncodeAll encodes a complete document.
func EncodeAll(text []byte, f Format) ([]byte, error) {
	e, err := NewEncoder(f)
	if err != nil {
		return nil, err
	}
	out, _, err := e.Encode(text, true)
	return out, err
}
