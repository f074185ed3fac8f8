package epub

import (
	"strings"

	"github.com/beevik/etree"
)

// findFirst returns the first descendant of e, in document order, whose local
// name is tag. A non-empty space also requires the element's prefix to match.
func findFirst(e *etree.Element, space, tag string) *etree.Element {
	for _, c := range e.ChildElements() {
		if matchName(c, space, tag) {
			return c
		}
		if found := findFirst(c, space, tag); found != nil {
			return found
		}
	}
	return nil
}

// findAll returns every descendant of e matching tag, in document order.
func findAll(e *etree.Element, space, tag string) []*etree.Element {
	var out []*etree.Element
	for _, c := range e.ChildElements() {
		if matchName(c, space, tag) {
			out = append(out, c)
		}
		out = append(out, findAll(c, space, tag)...)
	}
	return out
}

// findQualified looks up tag with the given prefix first and falls back to
// any prefix.
func findQualified(e *etree.Element, space, tag string) *etree.Element {
	if found := findFirst(e, space, tag); found != nil {
		return found
	}
	return findFirst(e, "", tag)
}

func matchName(e *etree.Element, space, tag string) bool {
	if e.Tag != tag {
		return false
	}
	return space == "" || e.Space == space
}

// textContent concatenates all character data below e.
func textContent(e *etree.Element) string {
	var b strings.Builder
	var walk func(*etree.Element)
	walk = func(el *etree.Element) {
		for _, t := range el.Child {
			switch c := t.(type) {
			case *etree.CharData:
				b.WriteString(c.Data)
			case *etree.Element:
				walk(c)
			}
		}
	}
	walk(e)
	return b.String()
}
