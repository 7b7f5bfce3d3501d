package github

import (
	"bufio"
	"encoding/json"
	"errors"
	"io"
)

// emailRecord es un elemento de /user/emails.
type emailRecord struct {
	Email   string
	Primary bool
}

// emailSeq lee los registros de a uno sobre el stream del body.
// Acepta un array top-level o objetos concatenados.
type emailSeq struct {
	dec     *json.Decoder
	inArray bool
	started bool
	done    bool
}

func newEmailSeq(r io.Reader) *emailSeq {
	br := bufio.NewReader(r)
	s := &emailSeq{}
	if b, err := peekNonSpace(br); err == nil && b == '[' {
		s.inArray = true
	}
	s.dec = json.NewDecoder(br)
	return s
}

// Next retorna el próximo registro; ok=false al terminar la secuencia.
// Los elementos que no son objetos se saltean.
func (s *emailSeq) Next() (emailRecord, bool, error) {
	if s.done {
		return emailRecord{}, false, nil
	}
	if s.inArray && !s.started {
		s.started = true
		if _, err := s.dec.Token(); err != nil {
			s.done = true
			return emailRecord{}, false, err
		}
	}
	for {
		if s.inArray && !s.dec.More() {
			s.done = true
			return emailRecord{}, false, nil
		}
		var raw json.RawMessage
		if err := s.dec.Decode(&raw); err != nil {
			s.done = true
			if errors.Is(err, io.EOF) {
				return emailRecord{}, false, nil
			}
			return emailRecord{}, false, err
		}
		var m map[string]any
		if err := json.Unmarshal(raw, &m); err != nil || m == nil {
			continue
		}
		rec := emailRecord{}
		rec.Email, _ = m["email"].(string)
		rec.Primary, _ = m["primary"].(bool)
		return rec, true, nil
	}
}

// selectEmail corta en el primer registro primary; si no hay, gana el último visto.
func selectEmail(seq *emailSeq) (string, error) {
	var last string
	for {
		rec, ok, err := seq.Next()
		if err != nil || !ok {
			return last, err
		}
		last = rec.Email
		if rec.Primary {
			return last, nil
		}
	}
}

func peekNonSpace(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.Peek(1)
		if err != nil {
			return 0, err
		}
		switch b[0] {
		case ' ', '\t', '\r', '\n':
			_, _ = br.ReadByte()
		default:
			return b[0], nil
		}
	}
}
