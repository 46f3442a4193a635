// Package ics turns iCalendar payloads into normalized event records.
package ics

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/emersion/go-ical"

	"github.com/tazhate/agendasync/internal/domain"
)

var utf8BOM = []byte("\xef\xbb\xbf")

// Event is one VEVENT as read from a feed. Start and End are UTC.
type Event struct {
	UID         string
	Summary     string
	Description string
	Location    string
	Start       time.Time
	End         *time.Time
	Raw         string
}

// Result is the outcome of parsing one payload
type Result struct {
	Events  []Event
	Dropped int // VEVENTs skipped for a missing UID or start
}

// Parse decodes body and returns its events in feed order.
//
// Timestamps without zone information are read as UTC. Timestamps with a
// TZID are converted to the same instant in UTC; a TZID the zone database
// does not know is resolved against the feed's own VTIMEZONE, else read as
// UTC. A VEVENT without a UID or a usable DTSTART is logged and skipped; it
// does not fail the payload.
func Parse(body []byte) (*Result, error) {
	body = bytes.TrimLeft(bytes.TrimPrefix(body, utf8BOM), " \t\r\n")
	if err := validate(body); err != nil {
		return nil, err
	}

	dec := ical.NewDecoder(bytes.NewReader(body))
	res := &Result{}
	calendars := 0

	for {
		cal, err := dec.Decode()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &domain.ParseError{Reason: "decode calendar", Err: err}
		}
		calendars++
		tz := calendarZones(cal)

		for _, comp := range cal.Children {
			if comp.Name != ical.CompEvent {
				continue
			}
			ev, err := parseEvent(comp, tz)
			if err != nil {
				res.Dropped++
				log.Printf("ics: skipping event: %v", err)
				continue
			}
			res.Events = append(res.Events, ev)
		}
	}

	if calendars == 0 {
		return nil, &domain.ParseError{Reason: "no VCALENDAR in payload"}
	}
	return res, nil
}

// validate catches payloads that are obviously not iCalendar, e.g. an HTML
// login page served with 200 OK.
func validate(body []byte) error {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return &domain.ParseError{Reason: "empty payload"}
	}

	upper := strings.ToUpper(string(trimmed[:min(len(trimmed), 64)]))
	if strings.HasPrefix(upper, "<!DOCTYPE") || strings.HasPrefix(upper, "<HTML") {
		return &domain.ParseError{Reason: "received HTML instead of iCalendar data"}
	}
	if !strings.HasPrefix(upper, "BEGIN:VCALENDAR") {
		preview := string(trimmed[:min(len(trimmed), 40)])
		return &domain.ParseError{Reason: fmt.Sprintf("expected BEGIN:VCALENDAR, got %q", preview)}
	}
	return nil
}

func parseEvent(comp *ical.Component, tz zones) (Event, error) {
	var ev Event

	uid := textProp(comp, ical.PropUID)
	if uid == "" {
		return ev, errors.New("missing UID")
	}
	ev.UID = uid

	ev.Summary = textProp(comp, ical.PropSummary)
	ev.Description = textProp(comp, ical.PropDescription)
	ev.Location = textProp(comp, ical.PropLocation)

	startProp := comp.Props.Get(ical.PropDateTimeStart)
	if startProp == nil {
		return ev, fmt.Errorf("event %q: missing DTSTART", uid)
	}
	start, err := toUTC(startProp, tz)
	if err != nil {
		return ev, fmt.Errorf("event %q: DTSTART: %w", uid, err)
	}
	ev.Start = start

	if endProp := comp.Props.Get(ical.PropDateTimeEnd); endProp != nil {
		end, err := toUTC(endProp, tz)
		if err != nil {
			log.Printf("ics: event %q: ignoring DTEND: %v", uid, err)
		} else {
			ev.End = &end
		}
	} else if durProp := comp.Props.Get(ical.PropDuration); durProp != nil {
		d, err := durProp.Duration()
		if err != nil {
			log.Printf("ics: event %q: ignoring DURATION: %v", uid, err)
		} else {
			end := start.Add(d)
			ev.End = &end
		}
	}

	ev.Raw = encodeComponent(comp)
	return ev, nil
}

// textProp returns the unescaped text value of a property, or "" if absent
func textProp(comp *ical.Component, name string) string {
	p := comp.Props.Get(name)
	if p == nil {
		return ""
	}
	if v, err := p.Text(); err == nil {
		return strings.TrimSpace(v)
	}
	return strings.TrimSpace(p.Value)
}

// toUTC resolves a DATE or DATE-TIME property to a UTC instant.
// Floating values and dates are interpreted in UTC.
func toUTC(p *ical.Prop, tz zones) (time.Time, error) {
	normalizeTZID(p)
	if loc, tzid, ok := tz.resolve(p); ok {
		if loc == nil {
			log.Printf("ics: unknown time zone %q on %s, reading it as UTC", tzid, p.Name)
			loc = time.UTC
		}
		p = localProp(p)
		t, err := p.DateTime(loc)
		if err != nil {
			return time.Time{}, err
		}
		return t.UTC(), nil
	}

	t, err := p.DateTime(time.UTC)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
