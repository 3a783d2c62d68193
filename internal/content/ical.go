package content

import (
	"strings"
	"time"
)

// Invitation is a parsed VEVENT from a meeting-request payload. End is nil
// when the event carries no DTEND.
type Invitation struct {
	UID       string
	Summary   string
	Location  string
	Organizer string
	Attendees []string
	Start     time.Time
	End       *time.Time
	Method    string
}

// ParseICalendar extracts the first VEVENT from iCalendar text. Folded
// lines are unfolded per RFC 5545 before parsing. Returns false when the
// input contains no VEVENT or its DTSTART is unparseable.
func ParseICalendar(ics string) (Invitation, bool) {
	var inv Invitation
	var inEvent, haveStart bool

	method := ""
	for _, line := range unfoldLines(ics) {
		name, params, value := splitProperty(line)
		switch name {
		case "METHOD":
			method = value
		case "BEGIN":
			if value == "VEVENT" {
				inEvent = true
			}
		case "END":
			if value == "VEVENT" && inEvent {
				inv.Method = method
				return inv, haveStart
			}
		}
		if !inEvent {
			continue
		}

		switch name {
		case "UID":
			inv.UID = value
		case "SUMMARY":
			inv.Summary = unescapeText(value)
		case "LOCATION":
			inv.Location = unescapeText(value)
		case "ORGANIZER":
			inv.Organizer = stripMailto(value)
		case "ATTENDEE":
			if addr := stripMailto(value); addr != "" {
				inv.Attendees = append(inv.Attendees, addr)
			}
		case "DTSTART":
			if t, ok := parseICalTime(value, params["TZID"]); ok {
				inv.Start = t
				haveStart = true
			}
		case "DTEND":
			if t, ok := parseICalTime(value, params["TZID"]); ok {
				end := t
				inv.End = &end
			}
		}
	}
	return inv, false
}

// unfoldLines joins continuation lines (leading space or tab) with their
// predecessor.
func unfoldLines(ics string) []string {
	raw := strings.Split(strings.ReplaceAll(ics, "\r\n", "\n"), "\n")
	lines := make([]string, 0, len(raw))
	for _, line := range raw {
		if len(line) > 0 && (line[0] == ' ' || line[0] == '\t') && len(lines) > 0 {
			lines[len(lines)-1] += line[1:]
			continue
		}
		lines = append(lines, line)
	}
	return lines
}

// splitProperty breaks "NAME;PARAM=V;PARAM2=V2:value" into its parts.
func splitProperty(line string) (name string, params map[string]string, value string) {
	params = map[string]string{}
	idx := strings.Index(line, ":")
	if idx < 0 {
		return strings.ToUpper(strings.TrimSpace(line)), params, ""
	}
	head := line[:idx]
	value = line[idx+1:]

	segments := strings.Split(head, ";")
	name = strings.ToUpper(strings.TrimSpace(segments[0]))
	for _, seg := range segments[1:] {
		if k, v, ok := strings.Cut(seg, "="); ok {
			params[strings.ToUpper(strings.TrimSpace(k))] = strings.Trim(strings.TrimSpace(v), `"`)
		}
	}
	return name, params, value
}

// parseICalTime handles UTC ("...Z"), TZID-qualified local, floating local
// and date-only values. Floating times (no Z, no TZID) are read in the
// system zone; an unresolvable TZID falls back to UTC rather than failing.
func parseICalTime(value, tzid string) (time.Time, bool) {
	value = strings.TrimSpace(value)

	if strings.HasSuffix(value, "Z") {
		if t, err := time.Parse("20060102T150405Z", value); err == nil {
			return t.UTC(), true
		}
		return time.Time{}, false
	}

	loc := time.Local
	if tzid != "" {
		loc = time.UTC
		if l, err := time.LoadLocation(tzid); err == nil {
			loc = l
		}
	}
	if t, err := time.ParseInLocation("20060102T150405", value, loc); err == nil {
		return t.UTC(), true
	}
	if t, err := time.ParseInLocation("20060102", value, loc); err == nil {
		return t.UTC(), true
	}
	return time.Time{}, false
}

func stripMailto(value string) string {
	v := strings.TrimSpace(value)
	if i := strings.LastIndex(strings.ToLower(v), "mailto:"); i >= 0 {
		v = v[i+len("mailto:"):]
	}
	return strings.TrimSpace(v)
}

func unescapeText(value string) string {
	r := strings.NewReplacer(`\n`, "\n", `\N`, "\n", `\,`, ",", `\;`, ";", `\\`, `\`)
	return r.Replace(value)
}
