package content

import (
	"encoding/base64"
	"strings"
	"testing"
)

// 1x1 transparent PNG.
var pngDot = []byte{
	0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A,
	0x00, 0x00, 0x00, 0x0D, 0x49, 0x48, 0x44, 0x52,
	0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1F, 0x15, 0xC4, 0x89,
}

func TestExtractPartPrefersHTML(t *testing.T) {
	raw := "From: a@example.com\r\n" +
		"Content-Type: multipart/alternative; boundary=XX\r\n" +
		"\r\n" +
		"--XX\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n" +
		"\r\n" +
		"plain body\r\n" +
		"--XX\r\n" +
		"Content-Type: text/html; charset=utf-8\r\n" +
		"\r\n" +
		"<p>html body</p>\r\n" +
		"--XX--\r\n"

	got := ExtractPart([]byte(raw))
	if got != "<p>html body</p>" {
		t.Errorf("ExtractPart = %q", got)
	}
}

func TestExtractPartPlainFallback(t *testing.T) {
	raw := "From: a@example.com\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n" +
		"\r\n" +
		"line one\nline <two>\r\n"

	got := ExtractPart([]byte(raw))
	if !strings.Contains(got, "line one<br>") {
		t.Errorf("newlines not converted: %q", got)
	}
	if !strings.Contains(got, "&lt;two&gt;") {
		t.Errorf("markup not escaped: %q", got)
	}
}

func TestExtractPartQuotedPrintableLatin1(t *testing.T) {
	raw := "Content-Type: text/plain; charset=iso-8859-1\r\n" +
		"Content-Transfer-Encoding: quoted-printable\r\n" +
		"\r\n" +
		"caf=E9 au lait\r\n"

	got := ExtractPart([]byte(raw))
	if !strings.Contains(got, "café au lait") {
		t.Errorf("ExtractPart = %q", got)
	}
}

func TestExtractPartNotAMessage(t *testing.T) {
	got := ExtractPart([]byte("just some\xE9 raw bytes"))
	if got == "" {
		t.Error("expected best-effort text, got empty")
	}
}

func TestExtractPartStripsSeparators(t *testing.T) {
	raw := "Content-Type: text/plain\r\n\r\nbody\n\n------------\n\ntrailer\n"
	got := ExtractPart([]byte(raw))
	if strings.Contains(got, "------------") {
		t.Errorf("separator not stripped: %q", got)
	}
}

func TestExtractInvitationQuotedPrintablePart(t *testing.T) {
	raw := "From: organizer@example.com\r\n" +
		"Content-Type: multipart/alternative; boundary=XX\r\n" +
		"\r\n" +
		"--XX\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n" +
		"\r\n" +
		"You are invited.\r\n" +
		"--XX\r\n" +
		"Content-Type: text/calendar; method=REQUEST; charset=utf-8\r\n" +
		"Content-Transfer-Encoding: quoted-printable\r\n" +
		"\r\n" +
		"BEGIN:VCALENDAR\r\n" +
		"METHOD:REQUEST\r\n" +
		"BEGIN:VEVENT\r\n" +
		"UID:abc-1\r\n" +
		"SUMMARY:Caf=E9 planning\r\n" +
		"LOCATION:Room 4\r\n" +
		"DTSTART:20260310T090000Z\r\n" +
		"END:VEVENT\r\n" +
		"END:VCALENDAR\r\n" +
		"--XX--\r\n"

	inv, ok := ExtractInvitation([]byte(raw))
	if !ok {
		t.Fatal("invitation not found in multipart message")
	}
	if inv.Method != "REQUEST" {
		t.Errorf("method = %q, want REQUEST", inv.Method)
	}
	// The =E9 escape is not valid UTF-8, so the Latin-1 fallback applies.
	if inv.Summary != "Café planning" {
		t.Errorf("summary = %q", inv.Summary)
	}
	if inv.Location != "Room 4" {
		t.Errorf("location = %q", inv.Location)
	}
}

func TestExtractInvitationBareICS(t *testing.T) {
	ics := "BEGIN:VCALENDAR\r\nBEGIN:VEVENT\r\nUID:x\r\nDTSTART:20260115T120000Z\r\nEND:VEVENT\r\nEND:VCALENDAR\r\n"
	inv, ok := ExtractInvitation([]byte(ics))
	if !ok {
		t.Fatal("bare iCalendar payload not accepted")
	}
	if inv.UID != "x" {
		t.Errorf("uid = %q", inv.UID)
	}
}

func TestExtractInvitationAbsent(t *testing.T) {
	raw := "From: a@example.com\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n" +
		"\r\n" +
		"no meeting here\r\n"
	if _, ok := ExtractInvitation([]byte(raw)); ok {
		t.Error("found an invitation in a plain message")
	}
}

func TestExtractInlineImagesNested(t *testing.T) {
	b64 := base64.StdEncoding.EncodeToString(pngDot)
	raw := "Content-Type: multipart/mixed; boundary=OUTER\r\n" +
		"\r\n" +
		"--OUTER\r\n" +
		"Content-Type: multipart/related; boundary=INNER\r\n" +
		"\r\n" +
		"--INNER\r\n" +
		"Content-Type: text/html\r\n" +
		"\r\n" +
		`<img src="cid:logo">` + "\r\n" +
		"--INNER\r\n" +
		"Content-Type: image/png\r\n" +
		"Content-Transfer-Encoding: base64\r\n" +
		"Content-ID: <logo>\r\n" +
		"\r\n" +
		b64 + "\r\n" +
		"--INNER--\r\n" +
		"--OUTER--\r\n"

	images := ExtractInlineImages([]byte(raw))
	got, ok := images["logo"]
	if !ok {
		t.Fatalf("missing cid logo, got keys %v", keys(images))
	}
	want := "data:image/png;base64," + b64
	if got != want {
		t.Errorf("data URL = %q, want %q", got, want)
	}
}

func TestExtractInlineImagesLooseScan(t *testing.T) {
	b64 := base64.StdEncoding.EncodeToString(pngDot)
	// No top-level multipart header; only the loose scan can find it.
	raw := "garbage preamble\r\n" +
		"Content-Type: image/gif\r\n" +
		"Content-ID: <pic1>\r\n" +
		"\r\n" +
		b64 + "\r\n"

	images := ExtractInlineImages([]byte(raw))
	if _, ok := images["pic1"]; !ok {
		t.Fatalf("loose scan missed cid, got keys %v", keys(images))
	}
	if !strings.HasPrefix(images["pic1"], "data:image/gif;base64,") {
		t.Errorf("data URL = %q", images["pic1"])
	}
}

func TestNormalizeContentID(t *testing.T) {
	cases := map[string]string{
		"<logo@host>": "logo@host",
		" <x> ":       "x",
		"bare":        "bare",
		"":            "",
	}
	for in, want := range cases {
		if got := NormalizeContentID(in); got != want {
			t.Errorf("NormalizeContentID(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestReadReceiptRequested(t *testing.T) {
	raw := "From: a@example.com\r\n" +
		"Disposition-Notification-To: a@example.com\r\n" +
		"Content-Type: text/plain\r\n\r\nhi\r\n"
	addr, ok := ReadReceiptRequested([]byte(raw))
	if !ok || addr != "a@example.com" {
		t.Errorf("got (%q, %v)", addr, ok)
	}

	if _, ok := ReadReceiptRequested([]byte("Content-Type: text/plain\r\n\r\nhi\r\n")); ok {
		t.Error("expected no receipt request")
	}
}

func keys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
