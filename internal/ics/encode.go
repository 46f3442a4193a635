package ics

import (
	"io"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/emersion/go-ical"
)

const (
	productID = "-//agendasync//EN"
	// maxLineOctets is the folding limit for content lines, CRLF excluded
	maxLineOctets = 75
)

// encodeComponent renders a component back to iCalendar text. Property
// values are written as stored, i.e. still escaped.
func encodeComponent(comp *ical.Component) string {
	var b strings.Builder
	writeComponent(&b, comp)
	return b.String()
}

// WriteCalendar writes a VCALENDAR wrapping the given components
func WriteCalendar(w io.Writer, children []*ical.Component) error {
	var b strings.Builder
	b.WriteString("BEGIN:VCALENDAR\r\n")
	b.WriteString("VERSION:2.0\r\n")
	b.WriteString("PRODID:" + productID + "\r\n")
	for _, child := range children {
		writeComponent(&b, child)
	}
	b.WriteString("END:VCALENDAR\r\n")
	_, err := io.WriteString(w, b.String())
	return err
}

func writeComponent(b *strings.Builder, comp *ical.Component) {
	b.WriteString("BEGIN:" + comp.Name + "\r\n")

	names := make([]string, 0, len(comp.Props))
	for name := range comp.Props {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		for _, p := range comp.Props[name] {
			writeProp(b, &p)
		}
	}
	for _, child := range comp.Children {
		writeComponent(b, child)
	}

	b.WriteString("END:" + comp.Name + "\r\n")
}

func writeProp(b *strings.Builder, p *ical.Prop) {
	var line strings.Builder
	line.WriteString(p.Name)

	keys := make([]string, 0, len(p.Params))
	for k := range p.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		line.WriteString(";" + k + "=")
		for i, v := range p.Params[k] {
			if i > 0 {
				line.WriteByte(',')
			}
			// parameter values cannot carry DQUOTE, quoted or not
			v = strings.ReplaceAll(v, `"`, "'")
			if strings.ContainsAny(v, ";:,") {
				v = `"` + v + `"`
			}
			line.WriteString(v)
		}
	}

	line.WriteString(":" + p.Value)
	writeFolded(b, line.String())
}

// writeFolded writes one content line, folding it at maxLineOctets without
// splitting a UTF-8 sequence. Continuation lines start with a space.
func writeFolded(b *strings.Builder, line string) {
	limit := maxLineOctets
	for len(line) > limit {
		i := limit
		for i > 0 && !utf8.RuneStart(line[i]) {
			i--
		}
		b.WriteString(line[:i])
		b.WriteString("\r\n ")
		line = line[i:]
		limit = maxLineOctets - 1
	}
	b.WriteString(line)
	b.WriteString("\r\n")
}
