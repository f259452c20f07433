// Package sanitize inspects HTML message bodies on behalf of policy scripts: it renders a
// safe subset of the markup, the visible text, and the link targets.
package sanitize

import (
	"bytes"
	"io"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var (
	cssSafe = regexp.MustCompile(".*")
	policy  = bluemonday.UGCPolicy().
		AllowElements("center").
		AllowAttrs("style").Matching(cssSafe).Globally()
)

// HTML sanitizes the provided html, keeping inline CSS properties that cannot affect page
// layout outside the message.
func HTML(input string) (string, error) {
	b := &bytes.Buffer{}
	if err := filterStyles(b, strings.NewReader(input)); err != nil {
		return "", err
	}
	return policy.Sanitize(b.String()), nil
}

// Text returns the text a reader of the html would see, one line per block element, with
// runs of whitespace collapsed.
func Text(input string) (string, error) {
	var lines []string
	var line strings.Builder
	flush := func() {
		if s := strings.Join(strings.Fields(line.String()), " "); s != "" {
			lines = append(lines, s)
		}
		line.Reset()
	}

	hidden := 0
	z := html.NewTokenizer(strings.NewReader(input))
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			if err := z.Err(); err != io.EOF {
				return "", err
			}
			flush()
			return strings.Join(lines, "\n"), nil
		case html.TextToken:
			if hidden == 0 {
				line.Write(z.Text())
				line.WriteByte(' ')
			}
		case html.StartTagToken, html.SelfClosingTagToken, html.EndTagToken:
			name, _ := z.TagName()
			a := atom.Lookup(name)
			if a == atom.Script || a == atom.Style || a == atom.Head || a == atom.Title {
				switch tt {
				case html.StartTagToken:
					hidden++
				case html.EndTagToken:
					hidden = max(hidden-1, 0)
				}
				continue
			}
			if blockElements[a] {
				flush()
			}
		}
	}
}

var blockElements = map[atom.Atom]bool{
	atom.Address: true, atom.Article: true, atom.Blockquote: true, atom.Br: true,
	atom.Dd: true, atom.Div: true, atom.Dl: true, atom.Dt: true, atom.Footer: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Header: true, atom.Hr: true, atom.Li: true, atom.Ol: true, atom.P: true,
	atom.Pre: true, atom.Section: true, atom.Table: true, atom.Td: true, atom.Th: true,
	atom.Tr: true, atom.Ul: true,
}

// Links returns the href of every anchor in the html, in document order.
func Links(input string) ([]string, error) {
	var links []string
	z := html.NewTokenizer(strings.NewReader(input))
	for {
		switch z.Next() {
		case html.ErrorToken:
			if err := z.Err(); err != io.EOF {
				return nil, err
			}
			return links, nil
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			if atom.Lookup(name) != atom.A {
				continue
			}
			for hasAttr {
				var key, val []byte
				key, val, hasAttr = z.TagAttr()
				if string(key) == "href" {
					if href := strings.TrimSpace(string(val)); href != "" {
						links = append(links, href)
					}
				}
			}
		}
	}
}

// filterStyles copies html tokens to w, rewriting tag attributes so any style attribute
// only holds allowed properties.
func filterStyles(w io.Writer, r io.Reader) error {
	b := make([]byte, 0, 256)
	z := html.NewTokenizer(r)
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			if err := z.Err(); err != io.EOF {
				return err
			}
			return nil
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			if !hasAttr {
				if _, err := w.Write(z.Raw()); err != nil {
					return err
				}
				continue
			}
			b = append(b[:0], '<')
			b = append(b, name...)
			for hasAttr {
				var key, val []byte
				key, val, hasAttr = z.TagAttr()
				v := string(val)
				if strings.EqualFold(string(key), "style") {
					if v = sanitizeStyle(v); v == "" {
						continue
					}
				}
				b = append(b, ' ')
				b = append(b, key...)
				b = append(b, `="`...)
				b = append(b, html.EscapeString(v)...)
				b = append(b, '"')
			}
			if tt == html.SelfClosingTagToken {
				b = append(b, '/')
			}
			if _, err := w.Write(append(b, '>')); err != nil {
				return err
			}
		default:
			if _, err := w.Write(z.Raw()); err != nil {
				return err
			}
		}
	}
}
