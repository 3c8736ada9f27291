package storage

import (
	"sort"
	"strconv"
	"strings"
)

// Descriptor is a parsed connection descriptor.
type Descriptor map[string]string

// ParseDescriptor parses a connection descriptor of the form
//
//	host='localhost',dbname='tmrm_test',user='jans'
//
// Pairs are separated by commas and/or spaces. Keys consist of letters,
// digits, '_' and '-'. Values are either single-quoted, where a backslash
// escapes the following byte, or bare and terminated by a comma or space.
// A repeated key keeps the last value.
func ParseDescriptor(s string) (Descriptor, error) {
	d := make(Descriptor)
	i := 0
	for {
		for i < len(s) && (s[i] == ' ' || s[i] == ',' || s[i] == '\t' || s[i] == '\n') {
			i++
		}
		if i >= len(s) {
			return d, nil
		}

		start := i
		for i < len(s) && isKeyByte(s[i]) {
			i++
		}
		if i == start {
			return nil, &DescriptorError{Offset: i, Msg: "expected key"}
		}
		key := s[start:i]

		if i >= len(s) || s[i] != '=' {
			return nil, &DescriptorError{Offset: i, Msg: "expected '=' after " + strconv.Quote(key)}
		}
		i++

		if i < len(s) && s[i] == '\'' {
			i++
			var b strings.Builder
			closed := false
			for i < len(s) {
				c := s[i]
				if c == '\\' {
					if i+1 >= len(s) {
						return nil, &DescriptorError{Offset: i, Msg: "dangling escape"}
					}
					b.WriteByte(s[i+1])
					i += 2
					continue
				}
				if c == '\'' {
					closed = true
					i++
					break
				}
				b.WriteByte(c)
				i++
			}
			if !closed {
				return nil, &DescriptorError{Offset: i, Msg: "unterminated value for " + strconv.Quote(key)}
			}
			d[key] = b.String()
			continue
		}

		start = i
		for i < len(s) && s[i] != ',' && s[i] != ' ' {
			i++
		}
		d[key] = s[start:i]
	}
}

func isKeyByte(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '_' || c == '-'
}

// Get returns the value for key or def when absent.
func (d Descriptor) Get(key, def string) string {
	if v, ok := d[key]; ok {
		return v
	}
	return def
}

// Int returns the integer value for key or def when absent.
func (d Descriptor) Int(key string, def int) (int, error) {
	v, ok := d[key]
	if !ok || v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, &DescriptorError{Msg: "invalid integer for " + strconv.Quote(key)}
	}
	return n, nil
}

// Bool returns the boolean value for key or def when absent.
func (d Descriptor) Bool(key string, def bool) (bool, error) {
	v, ok := d[key]
	if !ok || v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, &DescriptorError{Msg: "invalid boolean for " + strconv.Quote(key)}
	}
	return b, nil
}

// String formats d back into descriptor syntax with sorted keys.
func (d Descriptor) String() string {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(k)
		b.WriteString("='")
		for _, c := range []byte(d[k]) {
			if c == '\'' || c == '\\' {
				b.WriteByte('\\')
			}
			b.WriteByte(c)
		}
		b.WriteByte('\'')
	}
	return b.String()
}
