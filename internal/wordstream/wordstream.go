// Package wordstream reassembles word updates from the tagged dictation
// wire protocol.
//
// The remote text-generation process streams records of the form
// <N>text</N>, where N is a non-negative decimal position repeated on
// both markers. The stream arrives in arbitrarily sized chunks: a single
// record's markers, position digits, content, or even an individual
// UTF-8 sequence may be split across chunk boundaries. The parser
// carries incomplete bytes between calls and emits a record only when
// its closing marker has fully arrived, so downstream consumers never
// observe fragmentation.
//
// Text outside recognized markers is protocol noise and is discarded;
// it must never reach the output surface.
package wordstream

import (
	"bytes"
	"strconv"
)

// Kind discriminates parsed stream events.
type Kind int

const (
	// KindWord is a positioned word update.
	KindWord Kind = iota

	// KindReset is a <reset/> control tag instructing the consumer to
	// discard session state and re-baseline.
	KindReset
)

// Update is one fully reconstructed record from the wire stream.
type Update struct {
	Kind Kind

	// Pos is the word slot targeted by a KindWord update.
	Pos int

	// Text is the replacement content for a KindWord update, spacing
	// included. Empty text deletes the word at Pos.
	Text string
}

// Parser reassembles updates from a chunked wire stream.
//
// Feed must be called with chunks in delivery order. The zero value is
// ready to use. Parser performs no output side effects; it is pure
// reassembly.
type Parser struct {
	buf []byte

	// skipClose, when non-empty, is the closing token terminating a
	// block whose content is being discarded (<reset>...</reset>).
	skipClose string
}

// NewParser returns an empty parser.
func NewParser() *Parser {
	return &Parser{}
}

// Feed appends a chunk to the carry buffer and returns every update
// whose closing marker completed within it, in completion order.
func (p *Parser) Feed(chunk string) []Update {
	p.buf = append(p.buf, chunk...)

	var out []Update
	for {
		u, progressed := p.step()
		if u != nil {
			out = append(out, *u)
		}
		if !progressed {
			return out
		}
	}
}

// Reset discards all carried state, beginning a fresh record sequence.
func (p *Parser) Reset() {
	p.buf = nil
	p.skipClose = ""
}

// Pending returns the unconsumed carry buffer. Intended for tests and
// debugging; the content may end mid-rune.
func (p *Parser) Pending() string {
	return string(p.buf)
}

// tag scan outcomes
const (
	tagIncomplete = iota // could still complete with more input
	tagNoise             // cannot be a marker here
	tagWord              // complete <N>text</N> record
	tagReset             // complete <reset/> control tag
	tagResetOpen         // <reset> block opened; content is discarded
	tagSkip              // recognized framing to drop (<update> envelope)
)

// step consumes at most one event from the buffer. It reports whether
// any progress was made; when it returns (nil, false) the remaining
// buffer is carry-over awaiting more input.
func (p *Parser) step() (*Update, bool) {
	if p.skipClose != "" {
		i := bytes.Index(p.buf, []byte(p.skipClose))
		if i < 0 {
			p.hold(len(p.buf) - tailPrefixLen(p.buf, p.skipClose))
			return nil, false
		}
		p.buf = p.buf[i+len(p.skipClose):]
		p.skipClose = ""
		return &Update{Kind: KindReset}, true
	}

	start := 0
	firstHold := -1
	for start < len(p.buf) {
		i := bytes.IndexByte(p.buf[start:], '<')
		if i < 0 {
			break
		}
		start += i

		u, consumed, status := scanTag(p.buf[start:])
		switch status {
		case tagWord:
			p.buf = p.buf[start+consumed:]
			return &u, true
		case tagReset:
			p.buf = p.buf[start+consumed:]
			return &Update{Kind: KindReset}, true
		case tagResetOpen:
			p.buf = p.buf[start+consumed:]
			p.skipClose = "</reset>"
			return nil, true
		case tagSkip:
			p.buf = p.buf[start+consumed:]
			return nil, true
		case tagIncomplete:
			// Remember the leftmost marker that may still complete,
			// but keep scanning: a later record can close before an
			// earlier one does, and must not be starved by it.
			if firstHold < 0 {
				firstHold = start
			}
			start++
		case tagNoise:
			start++
		}
	}

	if firstHold < 0 {
		p.buf = p.buf[:0]
	} else {
		p.hold(firstHold)
	}
	return nil, false
}

// hold drops everything before off and re-bases the carry buffer onto a
// fresh allocation so consumed chunks can be collected.
func (p *Parser) hold(off int) {
	p.buf = append([]byte(nil), p.buf[off:]...)
}

// scanTag inspects a buffer beginning with '<' and classifies the tag
// at its head. For tagWord/tagReset/tagResetOpen/tagSkip, consumed is
// the byte length of the recognized span.
func scanTag(b []byte) (Update, int, int) {
	if len(b) == 1 {
		return Update{}, 0, tagIncomplete
	}

	if isDigit(b[1]) {
		return scanWord(b)
	}

	for _, tok := range []string{"<update>", "</update>"} {
		if bytes.HasPrefix(b, []byte(tok)) {
			return Update{}, len(tok), tagSkip
		}
		if bytes.HasPrefix([]byte(tok), b) {
			return Update{}, 0, tagIncomplete
		}
	}

	if consumed, status := scanReset(b); status != tagNoise {
		return Update{}, consumed, status
	}

	return Update{}, 0, tagNoise
}

// scanWord parses <digits>content</digits> at the head of b.
func scanWord(b []byte) (Update, int, int) {
	j := 1
	for j < len(b) && isDigit(b[j]) {
		j++
	}
	if j == len(b) {
		return Update{}, 0, tagIncomplete
	}
	if b[j] != '>' {
		return Update{}, 0, tagNoise
	}

	id := string(b[1:j])
	closing := "</" + id + ">"
	k := bytes.Index(b[j+1:], []byte(closing))
	if k < 0 {
		return Update{}, 0, tagIncomplete
	}

	pos, err := strconv.Atoi(id)
	if err != nil {
		// Position overflows int; drop the whole span as malformed.
		return Update{}, j + 1 + k + len(closing), tagSkip
	}
	return Update{
		Kind: KindWord,
		Pos:  pos,
		Text: string(b[j+1 : j+1+k]),
	}, j + 1 + k + len(closing), tagWord
}

// scanReset parses <reset/>, <reset />, or the <reset> block opener.
func scanReset(b []byte) (int, int) {
	const word = "<reset"
	if len(b) < len(word) {
		if bytes.HasPrefix([]byte(word), b) {
			return 0, tagIncomplete
		}
		return 0, tagNoise
	}
	if !bytes.HasPrefix(b, []byte(word)) {
		return 0, tagNoise
	}

	j := len(word)
	for j < len(b) && (b[j] == ' ' || b[j] == '\t') {
		j++
	}
	if j == len(b) {
		return 0, tagIncomplete
	}
	switch b[j] {
	case '>':
		return j + 1, tagResetOpen
	case '/':
		if j+1 == len(b) {
			return 0, tagIncomplete
		}
		if b[j+1] == '>' {
			return j + 2, tagReset
		}
	}
	return 0, tagNoise
}

// tailPrefixLen returns the length of the longest suffix of b that is a
// proper prefix of tok.
func tailPrefixLen(b []byte, tok string) int {
	max := len(tok) - 1
	if len(b) < max {
		max = len(b)
	}
	for l := max; l > 0; l-- {
		if string(b[len(b)-l:]) == tok[:l] {
			return l
		}
	}
	return 0
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
