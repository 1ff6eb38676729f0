package parser

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"unicode"

	"aida/internal/domain"
)

const defaultMaxStatement = 10 << 20

// SQLReader yields one {"query": stmt} payload per ';'-separated statement.
// Statements are trimmed of white space and byte order marks, and empty
// ones are dropped. Splitting is lexical:
// a ';' inside a string literal or comment still ends the statement.
type SQLReader struct {
	sc  *bufio.Scanner
	err error
}

// NewSQLReader wraps r. maxStatement bounds a single statement's size;
// zero picks 10 MiB.
func NewSQLReader(r io.Reader, maxStatement int) *SQLReader {
	if maxStatement <= 0 {
		maxStatement = defaultMaxStatement
	}
	sc := bufio.NewScanner(r)
	// the larger of cap(buf) and max bounds a token, so keep cap small
	sc.Buffer(make([]byte, 0, min(64*1024, maxStatement+1)), maxStatement+1)
	sc.Split(splitStatements)
	return &SQLReader{sc: sc}
}

// Next returns the next non-empty statement, or io.EOF.
func (s *SQLReader) Next() (domain.Payload, error) {
	if s.err != nil {
		return domain.Payload{}, s.err
	}
	for s.sc.Scan() {
		stmt := bytes.TrimFunc(s.sc.Bytes(), isTrimmable)
		if len(stmt) == 0 {
			continue
		}
		p := domain.NewPayload(1)
		p.Set(domain.QueryKey, domain.StringValue(string(stmt)))
		return p, nil
	}
	err := s.sc.Err()
	switch {
	case err == nil:
		s.err = io.EOF
	case errors.Is(err, bufio.ErrTooLong):
		s.err = &domain.MalformedContentError{Message: "statement exceeds maximum length"}
	default:
		s.err = ioFailure("read sql", err)
	}
	return domain.Payload{}, s.err
}

func isTrimmable(r rune) bool {
	return unicode.IsSpace(r) || r == '\uFEFF'
}

// splitStatements is a bufio.SplitFunc yielding the text between ';'.
func splitStatements(data []byte, atEOF bool) (int, []byte, error) {
	if i := bytes.IndexByte(data, ';'); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF && len(data) > 0 {
		return len(data), data, nil
	}
	return 0, nil, nil
}
