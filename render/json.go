package render

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"unicode/utf8"

	"github.com/go-ldap/ldap/v3"
)

// renderJSON builds {dn: {attribute: [values]}}. encoding/json writes map
// keys in sorted order, which keeps the output stable whatever order the
// server used.
//
// JSON strings cannot carry arbitrary bytes, so an attribute holding any
// value that is not valid UTF-8 has all of its values written as standard
// base64.
func renderJSON(entries []*ldap.Entry) ([]byte, error) {
	doc := make(map[string]map[string][]string, len(entries))
	for _, entry := range entries {
		attrs, ok := doc[entry.DN]
		if !ok {
			attrs = make(map[string][]string, len(entry.Attributes))
			doc[entry.DN] = attrs
		}
		for _, attr := range entry.Attributes {
			values := attrs[attr.Name]
			if values == nil {
				values = []string{}
			}
			attrs[attr.Name] = append(values, jsonValues(attr)...)
		}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func jsonValues(attr *ldap.EntryAttribute) []string {
	raw := attributeBytes(attr)

	binary := false
	for _, v := range raw {
		if !utf8.Valid(v) {
			binary = true
			break
		}
	}

	values := make([]string, 0, len(raw))
	for _, v := range raw {
		if binary {
			values = append(values, base64.StdEncoding.EncodeToString(v))
		} else {
			values = append(values, string(v))
		}
	}
	return values
}
