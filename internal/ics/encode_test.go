package ics

import (
	"bytes"
	"strings"
	"testing"

	"github.com/emersion/go-ical"
)

func TestWriteCalendarFoldsLongLines(t *testing.T) {
	description := strings.Repeat("Quarterly planning, ünïcödé notes ", 12)

	event := ical.NewComponent(ical.CompEvent)
	event.Props.SetText(ical.PropUID, "long")
	event.Props.SetText(ical.PropDescription, description)
	start := ical.NewProp(ical.PropDateTimeStart)
	start.Value = "20240101T090000Z"
	event.Props.Set(start)
	loc := ical.NewProp(ical.PropLocation)
	loc.Value = "Room 1"
	loc.Params.Set("X-NOTE", `the "big" one; second floor`)
	event.Props.Set(loc)

	var buf bytes.Buffer
	if err := WriteCalendar(&buf, []*ical.Component{event}); err != nil {
		t.Fatal(err)
	}

	for _, line := range strings.Split(strings.TrimSuffix(buf.String(), "\r\n"), "\r\n") {
		if len(line) > maxLineOctets {
			t.Errorf("line of %d octets: %q", len(line), line)
		}
	}

	res, err := Parse(buf.Bytes())
	if err != nil {
		t.Fatalf("folded payload does not parse: %v", err)
	}
	if len(res.Events) != 1 {
		t.Fatalf("events = %d", len(res.Events))
	}
	if got := res.Events[0].Description; got != strings.TrimSpace(description) {
		t.Errorf("description = %q", got)
	}
	if res.Events[0].Location != "Room 1" {
		t.Errorf("location = %q", res.Events[0].Location)
	}
}

func TestWriteFolded(t *testing.T) {
	var b strings.Builder
	writeFolded(&b, "SHORT:x")
	if b.String() != "SHORT:x\r\n" {
		t.Errorf("short line = %q", b.String())
	}

	b.Reset()
	// the multi-byte rune straddles octet 75 and must move to the next line
	line := strings.Repeat("a", 74) + "é" + strings.Repeat("b", 80)
	writeFolded(&b, line)
	parts := strings.Split(strings.TrimSuffix(b.String(), "\r\n"), "\r\n ")
	if parts[0] != strings.Repeat("a", 74) {
		t.Errorf("first segment = %q", parts[0])
	}
	if strings.Join(parts, "") != line {
		t.Errorf("unfolded = %q", strings.Join(parts, ""))
	}
	for _, p := range parts[1:] {
		if len(p)+1 > maxLineOctets {
			t.Errorf("continuation of %d octets", len(p)+1)
		}
	}
}
