// Package parser turns stored upload bytes into a lazy sequence of records.
//
// Readers are single-pass and forward-only: each call to Next consumes
// input, and nothing is buffered beyond the record being built.
package parser

import (
	"errors"
	"io"

	"aida/internal/domain"
)

// New returns the reader for kind over r.
func New(kind domain.ContentKind, r io.Reader, maxRecordBytes int) (domain.RecordReader, error) {
	switch kind {
	case domain.ContentCSV:
		return NewCSVReader(r), nil
	case domain.ContentSQL:
		return NewSQLReader(r, maxRecordBytes), nil
	default:
		return nil, domain.ErrValidation("unsupported content kind %q", kind)
	}
}

// Drain reads every record from rr, for callers that want a slice.
func Drain(rr domain.RecordReader) ([]domain.Payload, error) {
	var out []domain.Payload
	for {
		p, err := rr.Next()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
}

func ioFailure(op string, err error) error {
	return domain.ErrIO(op, err)
}
