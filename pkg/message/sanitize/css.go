package sanitize

import (
	"strings"

	"github.com/gorilla/css/scanner"
)

var allowedProperties = map[string]bool{
	"align":            true,
	"background-color": true,
	"border":           true,
	"border-bottom":    true,
	"border-left":      true,
	"border-radius":    true,
	"border-right":     true,
	"border-top":       true,
	"box-sizing":       true,
	"clear":            true,
	"color":            true,
	"display":          true,
	"font-family":      true,
	"font-size":        true,
	"font-style":       true,
	"font-weight":      true,
	"height":           true,
	"line-height":      true,
	"margin":           true,
	"margin-bottom":    true,
	"margin-left":      true,
	"margin-right":     true,
	"margin-top":       true,
	"max-width":        true,
	"padding":          true,
	"padding-bottom":   true,
	"padding-left":     true,
	"padding-right":    true,
	"padding-top":      true,
	"text-align":       true,
	"text-decoration":  true,
	"vertical-align":   true,
	"width":            true,
}

// sanitizeStyle drops declarations for properties not in allowedProperties from an inline
// style attribute. Invalid CSS yields an empty string.
func sanitizeStyle(input string) string {
	var b strings.Builder
	scan := scanner.New(input)
	inDecl := false
	keep := false
	for {
		t := scan.Next()
		switch t.Type {
		case scanner.TokenEOF:
			return b.String()
		case scanner.TokenError:
			return ""
		}

		if !inDecl {
			if t.Type == scanner.TokenS {
				continue
			}
			// Anything but a property name is skipped through the next semicolon.
			inDecl = true
			keep = t.Type == scanner.TokenIdent && allowedProperties[strings.ToLower(t.Value)]
			if keep {
				b.WriteString(t.Value)
			}
			continue
		}

		if keep {
			b.WriteString(t.Value)
		}
		if t.Type == scanner.TokenChar && t.Value == ";" {
			inDecl = false
		}
	}
}
