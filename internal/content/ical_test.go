package content

import (
	"testing"
	"time"
)

const inviteICS = "BEGIN:VCALENDAR\r\n" +
	"METHOD:REQUEST\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:evt-42@example.com\r\n" +
	"SUMMARY:Planning\\, Q1\r\n" +
	"LOCATION:Room 4\r\n" +
	"ORGANIZER;CN=Boss:mailto:boss@example.com\r\n" +
	"ATTENDEE;ROLE=REQ-PARTICIPANT:mailto:dev@example.com\r\n" +
	"ATTENDEE:mailto:qa@example.com\r\n" +
	"DTSTART;TZID=Europe/Moscow:20260115T100000\r\n" +
	"DTEND;TZID=Europe/Moscow:20260115T110000\r\n" +
	"END:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

func TestParseICalendar(t *testing.T) {
	inv, ok := ParseICalendar(inviteICS)
	if !ok {
		t.Fatal("expected a parsed event")
	}
	if inv.UID != "evt-42@example.com" {
		t.Errorf("UID = %q", inv.UID)
	}
	if inv.Summary != "Planning, Q1" {
		t.Errorf("Summary = %q", inv.Summary)
	}
	if inv.Organizer != "boss@example.com" {
		t.Errorf("Organizer = %q", inv.Organizer)
	}
	if len(inv.Attendees) != 2 || inv.Attendees[0] != "dev@example.com" {
		t.Errorf("Attendees = %v", inv.Attendees)
	}
	if inv.Method != "REQUEST" {
		t.Errorf("Method = %q", inv.Method)
	}

	// Moscow is UTC+3, so 10:00 local is 07:00 UTC.
	wantStart := time.Date(2026, 1, 15, 7, 0, 0, 0, time.UTC)
	if !inv.Start.Equal(wantStart) {
		t.Errorf("Start = %v, want %v", inv.Start, wantStart)
	}
	if inv.End == nil || !inv.End.Equal(wantStart.Add(time.Hour)) {
		t.Errorf("End = %v", inv.End)
	}
}

func TestParseICalendarNoEnd(t *testing.T) {
	ics := "BEGIN:VCALENDAR\r\nBEGIN:VEVENT\r\n" +
		"DTSTART;TZID=Europe/Moscow:20260115T100000\r\n" +
		"SUMMARY:Open ended\r\n" +
		"END:VEVENT\r\nEND:VCALENDAR\r\n"
	inv, ok := ParseICalendar(ics)
	if !ok {
		t.Fatal("expected a parsed event")
	}
	if inv.End != nil {
		t.Errorf("End = %v, want nil", inv.End)
	}
	if inv.Start.IsZero() {
		t.Error("Start should be set")
	}
}

func TestParseICalendarFoldedAndUTC(t *testing.T) {
	ics := "BEGIN:VCALENDAR\r\nBEGIN:VEVENT\r\n" +
		"SUMMARY:A very long subject line\r\n that was folded\r\n" +
		"DTSTART:20260301T120000Z\r\n" +
		"END:VEVENT\r\nEND:VCALENDAR\r\n"
	inv, ok := ParseICalendar(ics)
	if !ok {
		t.Fatal("expected a parsed event")
	}
	if inv.Summary != "A very long subject line that was folded" {
		t.Errorf("Summary = %q", inv.Summary)
	}
	if !inv.Start.Equal(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)) {
		t.Errorf("Start = %v", inv.Start)
	}
}

func TestParseICalendarNoEvent(t *testing.T) {
	if _, ok := ParseICalendar("BEGIN:VCALENDAR\r\nEND:VCALENDAR\r\n"); ok {
		t.Error("expected no event")
	}
	if _, ok := ParseICalendar(""); ok {
		t.Error("expected no event from empty input")
	}
}

func TestParseICalendarFloatingTimeIsLocal(t *testing.T) {
	ics := "BEGIN:VCALENDAR\r\nBEGIN:VEVENT\r\n" +
		"DTSTART:20260115T100000\r\n" +
		"END:VEVENT\r\nEND:VCALENDAR\r\n"
	inv, ok := ParseICalendar(ics)
	if !ok {
		t.Fatal("expected a parsed event")
	}
	// No Z suffix and no TZID: the wall clock reads in the system zone.
	want := time.Date(2026, 1, 15, 10, 0, 0, 0, time.Local).UTC()
	if !inv.Start.Equal(want) {
		t.Errorf("Start = %v, want %v", inv.Start, want)
	}
}

func TestParseICalendarUnknownTZID(t *testing.T) {
	ics := "BEGIN:VCALENDAR\r\nBEGIN:VEVENT\r\n" +
		"DTSTART;TZID=Middle/Nowhere:20260115T100000\r\n" +
		"END:VEVENT\r\nEND:VCALENDAR\r\n"
	inv, ok := ParseICalendar(ics)
	if !ok {
		t.Fatal("expected a parsed event")
	}
	// Unknown zones degrade to UTC.
	if !inv.Start.Equal(time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)) {
		t.Errorf("Start = %v", inv.Start)
	}
}
