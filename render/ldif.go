package render

import (
	"fmt"

	"github.com/go-ldap/ldap/v3"
	"github.com/go-ldap/ldif"
)

// foldWidth is the longest physical line written before continuing on the
// next line with a leading space (RFC 2849).
const foldWidth = 76

// renderLDIF writes one stanza per entry. An empty result is an empty
// document, without even the version line.
func renderLDIF(entries []*ldap.Entry) ([]byte, error) {
	if len(entries) == 0 {
		return []byte{}, nil
	}

	records := make([]interface{}, 0, len(entries))
	for _, entry := range entries {
		records = append(records, textEntry(entry))
	}

	l, err := ldif.ToLDIF(records...)
	if err != nil {
		return nil, fmt.Errorf("ldif: %w", err)
	}
	l.Version = 1
	l.FoldWidth = foldWidth

	data, err := ldif.Marshal(l)
	if err != nil {
		return nil, fmt.Errorf("ldif: %w", err)
	}
	return []byte(data), nil
}

// textEntry copies entry with every attribute's values taken from its raw
// bytes, which the LDIF encoder reads through Values.
func textEntry(entry *ldap.Entry) *ldap.Entry {
	out := &ldap.Entry{DN: entry.DN, Attributes: make([]*ldap.EntryAttribute, 0, len(entry.Attributes))}
	for _, attr := range entry.Attributes {
		raw := attributeBytes(attr)
		values := make([]string, 0, len(raw))
		for _, v := range raw {
			values = append(values, string(v))
		}
		out.Attributes = append(out.Attributes, &ldap.EntryAttribute{
			Name:       attr.Name,
			Values:     values,
			ByteValues: raw,
		})
	}
	return out
}

// attributeBytes returns the raw values of attr, preferring ByteValues.
func attributeBytes(attr *ldap.EntryAttribute) [][]byte {
	if len(attr.ByteValues) > 0 {
		return attr.ByteValues
	}
	values := make([][]byte, 0, len(attr.Values))
	for _, v := range attr.Values {
		values = append(values, []byte(v))
	}
	return values
}
