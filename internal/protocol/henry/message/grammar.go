package message

import "strings"

// Parse parses a frame body into a Message. It never fails on well-formed
// input; the only failure mode is a field value mixing '{' and '}'
// sub-field separators.
//
// Grammar (see spec):
//
//	body    = [id2 "+"] command "+" opcode payload
//	payload = record ("]" record)*
//	record  = field ("[" field)*
//	field   = <chars excluding ']','[','{','}'> | subfielded
//
// The id2 "+" prefix is optional: some responses omit it (e.g.
// "REON+000+80]...").  The opcode is the maximal run of decimal digits and
// '+' characters immediately following command's separating '+'; whatever
// follows is the payload, split on ']' into records and '[' into fields
// with no separator consumed beyond the split itself, so Build(Parse(b))
// reproduces b exactly, including any parser-tolerated trailing ']'.
func Parse(body []byte) (Message, error) {
	s := string(body)

	var msg Message
	first, rest, ok := cutPlus(s)
	if ok && isID2(first) {
		msg.HasDeviceID = true
		msg.DeviceID = int(first[0]-'0')*10 + int(first[1]-'0')
		s = rest
	}

	command, rest, ok := cutPlus(s)
	if !ok {
		// No second '+': the whole remainder is the command, no opcode,
		// no payload (degenerate but legal, e.g. a bare "NULL" probe).
		msg.Command = s
		return msg, nil
	}
	msg.Command = command

	i := 0
	for i < len(rest) && (isDigit(rest[i]) || rest[i] == '+') {
		i++
	}
	msg.Opcode = rest[:i]
	payloadText := rest[i:]

	if payloadText == "" {
		return msg, nil
	}

	recordTexts := strings.Split(payloadText, "]")
	msg.Payload = make([]Record, 0, len(recordTexts))
	for _, rt := range recordTexts {
		rec, err := parseRecord(rt)
		if err != nil {
			return Message{}, err
		}
		msg.Payload = append(msg.Payload, rec)
	}
	return msg, nil
}

func parseRecord(text string) (Record, error) {
	fieldTexts := strings.Split(text, "[")
	rec := make(Record, 0, len(fieldTexts))
	for _, ft := range fieldTexts {
		f, err := parseField(ft)
		if err != nil {
			return nil, err
		}
		rec = append(rec, f)
	}
	return rec, nil
}

func parseField(text string) (Field, error) {
	hasBrace := strings.ContainsRune(text, '{')
	hasBrack := strings.ContainsRune(text, '}')
	switch {
	case hasBrace && hasBrack:
		return Field{}, ErrUnexpectedSeparator
	case hasBrace:
		return Field{Parts: strings.Split(text, "{"), Sep: '{'}, nil
	case hasBrack:
		return Field{Parts: strings.Split(text, "}"), Sep: '}'}, nil
	default:
		return Field{Parts: []string{text}}, nil
	}
}

// Build reassembles a Message into the exact frame body bytes it was
// parsed from (or, for a hand-constructed Message, the canonical bytes
// that would parse back to it).
func Build(m Message) []byte {
	var b strings.Builder
	if m.HasDeviceID {
		b.WriteString(idField(m.DeviceID))
		b.WriteByte('+')
	}
	b.WriteString(m.Command)
	b.WriteByte('+')
	b.WriteString(m.Opcode)

	for ri, rec := range m.Payload {
		if ri > 0 {
			b.WriteByte(']')
		}
		for fi, f := range rec {
			if fi > 0 {
				b.WriteByte('[')
			}
			b.WriteString(buildField(f))
		}
	}
	return []byte(b.String())
}

func buildField(f Field) string {
	if len(f.Parts) <= 1 {
		return f.Value()
	}
	var b strings.Builder
	for i, p := range f.Parts {
		if i > 0 {
			b.WriteByte(f.Sep)
		}
		b.WriteString(p)
	}
	return b.String()
}

func idField(id int) string {
	return string([]byte{byte('0' + (id/10)%10), byte('0' + id%10)})
}

// cutPlus splits s at the first '+', mirroring strings.Cut.
func cutPlus(s string) (before, after string, found bool) {
	if i := strings.IndexByte(s, '+'); i >= 0 {
		return s[:i], s[i+1:], true
	}
	return s, "", false
}

func isID2(s string) bool {
	return len(s) == 2 && isDigit(s[0]) && isDigit(s[1])
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}
