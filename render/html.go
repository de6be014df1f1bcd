package render

import (
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/go-ldap/ldap/v3"
)

var (
	urlPattern   = regexp.MustCompile(`(?i)^https?://[^\s<>"]+$`)
	emailPattern = regexp.MustCompile(`^[-\w.+]+@[-.\w]+$`)
)

// renderHTML lays every entry out in one table: the DN as a spanning header
// row, then one row per attribute value with the attribute name spanning
// its values. Attributes keep the order the server sent.
func renderHTML(entries []*ldap.Entry) []byte {
	var b strings.Builder

	b.WriteString("<head><title>Directory Search Results</title></head>\n")
	b.WriteString("<h1>Directory Search Results</h1>\n")

	if len(entries) > 0 {
		b.WriteString("<table>\n")
		for i, entry := range entries {
			if i > 0 {
				b.WriteString("<tr><td colspan=\"2\"><hr></td></tr>\n")
			}
			fmt.Fprintf(&b, "<tr><th colspan=\"2\">%s</th></tr>\n", html.EscapeString(entry.DN))

			for _, attr := range entry.Attributes {
				b.WriteString(`<tr><td align="right" valign="top"`)
				if len(attr.Values) > 1 {
					fmt.Fprintf(&b, ` rowspan="%d"`, len(attr.Values))
				}
				fmt.Fprintf(&b, ">%s</td>", html.EscapeString(attr.Name))

				if len(attr.Values) == 0 {
					b.WriteString("<td></td></tr>\n")
					continue
				}
				for j, value := range attr.Values {
					if j > 0 {
						b.WriteString("<tr>")
					}
					fmt.Fprintf(&b, "<td>%s</td></tr>\n", linkify(value))
				}
			}
		}
		b.WriteString("</table>\n")
	}

	b.WriteString("<hr>\n")
	b.WriteString(matchSummary(len(entries)))

	return []byte(b.String())
}

// linkify escapes value and wraps web and mail addresses in a hyperlink.
func linkify(value string) string {
	escaped := html.EscapeString(value)
	switch {
	case urlPattern.MatchString(value):
		return fmt.Sprintf(`<a href="%s">%s</a>`, escaped, escaped)
	case emailPattern.MatchString(value):
		return fmt.Sprintf(`<a href="mailto:%s">%s</a>`, escaped, escaped)
	}
	return escaped
}

func matchSummary(n int) string {
	switch n {
	case 0:
		return "No Matches found"
	case 1:
		return "1 Match found"
	}
	return fmt.Sprintf("%d Matches found", n)
}
