package loader

// streaming.go holds the reader chain every text source passes through:
// byte counting, BOM removal and UTF-8 repair, all in constant memory.

import (
	"bufio"
	"bytes"
	"io"
	"unicode/utf8"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// countingReader records how many source bytes were consumed.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// newBOMReader drops a leading UTF-8 byte order mark, common in files saved
// by Excel on Windows.
func newBOMReader(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}
	return br
}

// sanitizer replaces each invalid UTF-8 byte with '?'. A multi-byte rune
// split across two reads is carried over rather than mangled.
type sanitizer struct {
	r       io.Reader
	pending []byte
}

func newSanitizer(r io.Reader) *sanitizer {
	return &sanitizer{r: r, pending: make([]byte, 0, utf8.UTFMax)}
}

func (s *sanitizer) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	off := copy(p, s.pending)
	s.pending = s.pending[:0]

	n, err := s.r.Read(p[off:])
	n += off
	if n == 0 {
		return 0, err
	}

	data := p[:n]
	if !atEOF(err) {
		if tail := partialRuneLen(data); tail > 0 {
			s.pending = append(s.pending, data[n-tail:]...)
			data = data[:n-tail]
		}
	}
	if utf8.Valid(data) {
		return len(data), err
	}

	// Rewrite in place. Output never grows since '?' is one byte.
	w := 0
	for i := 0; i < len(data); {
		r, size := utf8.DecodeRune(data[i:])
		if r == utf8.RuneError && size == 1 {
			data[w] = '?'
			w++
			i++
			continue
		}
		copy(data[w:], data[i:i+size])
		w += size
		i += size
	}
	return w, err
}

func atEOF(err error) bool { return err == io.EOF }

// partialRuneLen reports how many trailing bytes start a rune that is not
// yet complete.
func partialRuneLen(data []byte) int {
	for i := 1; i < utf8.UTFMax && i <= len(data); i++ {
		b := data[len(data)-i]
		if utf8.RuneStart(b) {
			if b >= 0xC0 && !utf8.FullRune(data[len(data)-i:]) {
				return i
			}
			return 0
		}
	}
	return 0
}

// wrapText builds the reader chain for a text source and returns the
// counter so callers can read the consumed byte total afterwards.
func wrapText(r io.Reader) (io.Reader, *countingReader) {
	c := &countingReader{r: r}
	return newSanitizer(newBOMReader(c)), c
}
