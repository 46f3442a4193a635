package ics

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // zone database for hosts without /usr/share/zoneinfo

	"github.com/emersion/go-ical"
)

// Map of common Windows timezone names to IANA timezone names
var windowsToIANA = map[string]string{
	"Pacific Standard Time":          "America/Los_Angeles",
	"Mountain Standard Time":         "America/Denver",
	"Central Standard Time":          "America/Chicago",
	"Eastern Standard Time":          "America/New_York",
	"Atlantic Standard Time":         "America/Halifax",
	"Alaskan Standard Time":          "America/Anchorage",
	"Hawaiian Standard Time":         "Pacific/Honolulu",
	"GMT Standard Time":              "Europe/London",
	"W. Europe Standard Time":        "Europe/Berlin",
	"Romance Standard Time":          "Europe/Paris",
	"Central Europe Standard Time":   "Europe/Budapest",
	"Central European Standard Time": "Europe/Warsaw",
	"E. Europe Standard Time":        "Europe/Chisinau",
	"Russian Standard Time":          "Europe/Moscow",
	"China Standard Time":            "Asia/Shanghai",
	"Tokyo Standard Time":            "Asia/Tokyo",
	"India Standard Time":            "Asia/Kolkata",
	"AUS Eastern Standard Time":      "Australia/Sydney",
	"UTC":                            "UTC",
}

// normalizeTZID rewrites Windows or quoted TZID parameters into names
// time.LoadLocation understands.
func normalizeTZID(p *ical.Prop) {
	tzid := p.Params.Get(ical.ParamTimezoneID)
	if tzid == "" {
		return
	}
	clean := strings.Trim(strings.TrimSpace(tzid), `"`)
	if iana, ok := windowsToIANA[clean]; ok {
		clean = iana
	}
	if clean != tzid {
		p.Params.Set(ical.ParamTimezoneID, clean)
	}
}

// zones maps TZIDs defined by a calendar's own VTIMEZONE components to
// fixed offsets. Exchange, for one, emits names like "Customized Time Zone".
type zones map[string]*time.Location

func calendarZones(cal *ical.Calendar) zones {
	z := make(zones)
	for _, comp := range cal.Children {
		if comp.Name != ical.CompTimezone {
			continue
		}
		tzid := textProp(comp, ical.PropTimezoneID)
		if tzid == "" {
			continue
		}
		offset, ok := standardOffset(comp)
		if !ok {
			continue
		}
		z[tzid] = time.FixedZone(tzid, offset)
	}
	return z
}

// resolve reports whether p is a local DATE-TIME whose TZID the zone
// database does not know. loc is the calendar's definition, or nil.
func (z zones) resolve(p *ical.Prop) (loc *time.Location, tzid string, ok bool) {
	tzid = p.Params.Get(ical.ParamTimezoneID)
	if tzid == "" || p.ValueType() == ical.ValueDate || len(p.Value) != len("20060102T150405") {
		return nil, "", false
	}
	if _, err := time.LoadLocation(tzid); err == nil {
		return nil, "", false
	}
	return z[tzid], tzid, true
}

// localProp returns a copy of p without its TZID parameter
func localProp(p *ical.Prop) *ical.Prop {
	local := &ical.Prop{Name: p.Name, Params: make(ical.Params), Value: p.Value}
	for k, v := range p.Params {
		if k != ical.ParamTimezoneID {
			local.Params[k] = v
		}
	}
	return local
}

// standardOffset returns TZOFFSETTO of the STANDARD observance, falling
// back to DAYLIGHT when a zone only defines that.
func standardOffset(tz *ical.Component) (int, bool) {
	for _, name := range []string{ical.CompTimezoneStandard, ical.CompTimezoneDaylight} {
		for _, obs := range tz.Children {
			if obs.Name != name {
				continue
			}
			p := obs.Props.Get(ical.PropTimezoneOffsetTo)
			if p == nil {
				continue
			}
			if offset, err := parseUTCOffset(p.Value); err == nil {
				return offset, true
			}
		}
	}
	return 0, false
}

// parseUTCOffset parses a UTC-OFFSET value: +hhmm or +hhmmss
func parseUTCOffset(s string) (int, error) {
	s = strings.TrimSpace(s)
	if len(s) != 5 && len(s) != 7 {
		return 0, fmt.Errorf("bad utc offset %q", s)
	}

	sign := 1
	switch s[0] {
	case '+':
	case '-':
		sign = -1
	default:
		return 0, fmt.Errorf("bad utc offset %q", s)
	}

	seconds := 0
	for i, unit := range []int{3600, 60, 1} {
		lo := 1 + 2*i
		if lo >= len(s) {
			break
		}
		n, err := strconv.Atoi(s[lo : lo+2])
		if err != nil {
			return 0, fmt.Errorf("bad utc offset %q", s)
		}
		seconds += n * unit
	}
	return sign * seconds, nil
}
