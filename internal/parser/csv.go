package parser

import (
	"bufio"
	"encoding/csv"
	"errors"
	"io"
	"strconv"

	"aida/internal/domain"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CSVReader yields one payload per data row, keyed by the header row.
//
// Rows shorter than the header omit the missing columns. Extra cells are
// keyed "_N" with N the 0-based column index. A later duplicate header
// name overwrites the earlier cell but keeps its position.
type CSVReader struct {
	src    *bufio.Reader
	r      *csv.Reader
	header []string
	done   bool
	err    error
}

// NewCSVReader wraps r.
func NewCSVReader(r io.Reader) *CSVReader {
	return &CSVReader{src: bufio.NewReader(r)}
}

// Next returns the next row, or io.EOF after the last one. An empty input
// yields io.EOF straight away.
func (c *CSVReader) Next() (domain.Payload, error) {
	if c.err != nil {
		return domain.Payload{}, c.err
	}
	if c.done {
		return domain.Payload{}, io.EOF
	}
	if c.r == nil {
		if err := c.start(); err != nil {
			return domain.Payload{}, c.fail(err)
		}
		if c.done {
			return domain.Payload{}, io.EOF
		}
	}

	rec, err := c.r.Read()
	if errors.Is(err, io.EOF) {
		c.done = true
		return domain.Payload{}, io.EOF
	}
	if err != nil {
		return domain.Payload{}, c.fail(err)
	}
	return c.payload(rec), nil
}

func (c *CSVReader) start() error {
	if bom, err := c.src.Peek(len(utf8BOM)); err == nil && string(bom) == string(utf8BOM) {
		_, _ = c.src.Discard(len(utf8BOM))
	}
	c.r = csv.NewReader(c.src)
	c.r.FieldsPerRecord = -1
	c.r.ReuseRecord = true

	header, err := c.r.Read()
	if errors.Is(err, io.EOF) {
		c.done = true
		return nil
	}
	if err != nil {
		return err
	}
	c.header = append([]string(nil), header...)
	return nil
}

func (c *CSVReader) payload(rec []string) domain.Payload {
	p := domain.NewPayload(len(c.header))
	for i, cell := range rec {
		key := "_" + strconv.Itoa(i)
		if i < len(c.header) {
			key = c.header[i]
		}
		p.Set(key, domain.StringValue(cell))
	}
	return p
}

// fail records err so every later call returns it.
func (c *CSVReader) fail(err error) error {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		c.err = &domain.MalformedContentError{Message: pe.Err.Error(), Line: pe.Line}
	} else {
		c.err = ioFailure("read csv", err)
	}
	return c.err
}
