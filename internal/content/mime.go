// Package content normalizes raw server payloads — MIME multipart bodies,
// transfer encodings, inline images, calendar invitations — into the
// canonical local representation. All functions are pure transforms over
// bytes and text; persistence belongs to the caller.
package content

import (
	"bufio"
	"encoding/base64"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"regexp"
	"strings"
	"unicode/utf8"

	charsets "github.com/emersion/go-message/charset"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// maxPartBytes caps decoded text per MIME part.
const maxPartBytes = 512 * 1024

// maxInlineBytes caps a single inline image.
const maxInlineBytes = 5 * 1024 * 1024

// ExtractPart locates the display body inside a raw MIME message: the first
// text/html part, falling back to text/plain converted to HTML. Returns ""
// when the message has no usable text part. Absence of expected markers
// degrades to best-effort raw text, never an error.
func ExtractPart(raw []byte) string {
	msg, err := mail.ReadMessage(bufio.NewReader(strings.NewReader(string(raw))))
	if err != nil {
		// Not a parseable message; show the cleaned raw text.
		return StripSeparators(bestEffortUTF8(string(raw)))
	}

	ct := msg.Header.Get("Content-Type")
	cte := msg.Header.Get("Content-Transfer-Encoding")
	html, plain := extractTextParts(ct, cte, msg.Body)
	if html != "" {
		return StripSeparators(html)
	}
	if plain != "" {
		return StripSeparators(plainToHTML(plain))
	}
	return ""
}

// extractTextParts walks the MIME structure and returns the first html and
// plain bodies found, recursing into nested multipart/* parts.
func extractTextParts(contentType, transferEncoding string, body io.Reader) (html, plain string) {
	if contentType == "" {
		contentType = "text/plain"
	}
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", readLimited(body, transferEncoding, "")
	}

	charset := params["charset"]

	if strings.HasPrefix(mediaType, "multipart/") {
		return walkMultipart(params["boundary"], body)
	}

	text := readLimited(body, transferEncoding, charset)
	if mediaType == "text/html" {
		return text, ""
	}
	return "", text
}

func walkMultipart(boundary string, r io.Reader) (html, plain string) {
	if boundary == "" {
		return "", ""
	}
	mr := multipart.NewReader(r, boundary)

	for {
		part, err := mr.NextPart()
		if err != nil {
			break
		}
		ct := part.Header.Get("Content-Type")
		cte := part.Header.Get("Content-Transfer-Encoding")
		if ct == "" {
			ct = "text/plain"
		}
		partMedia, partParams, parseErr := mime.ParseMediaType(ct)
		if parseErr != nil {
			part.Close()
			continue
		}

		if strings.HasPrefix(partMedia, "multipart/") {
			h, p := walkMultipart(partParams["boundary"], part)
			if html == "" {
				html = h
			}
			if plain == "" {
				plain = p
			}
			part.Close()
			if html != "" && plain != "" {
				return html, plain
			}
			continue
		}

		charset := partParams["charset"]
		switch partMedia {
		case "text/html":
			if html == "" {
				html = readLimited(part, cte, charset)
			}
		case "text/plain":
			if plain == "" {
				plain = readLimited(part, cte, charset)
			}
		}
		part.Close()

		if html != "" && plain != "" {
			return html, plain
		}
	}
	return html, plain
}

// ExtractInvitation locates the first text/calendar part in a raw MIME
// message and parses its VEVENT. Bare iCalendar payloads without message
// headers are accepted too.
func ExtractInvitation(raw []byte) (Invitation, bool) {
	msg, err := mail.ReadMessage(bufio.NewReader(strings.NewReader(string(raw))))
	if err != nil {
		if ics := string(raw); strings.Contains(ics, "BEGIN:VCALENDAR") {
			return ParseICalendar(ics)
		}
		return Invitation{}, false
	}
	ics := findCalendarPart(msg.Header.Get("Content-Type"), msg.Header.Get("Content-Transfer-Encoding"), msg.Body)
	if ics == "" {
		return Invitation{}, false
	}
	return ParseICalendar(ics)
}

// findCalendarPart returns the decoded text of the first text/calendar or
// application/ics part, recursing into multipart containers.
func findCalendarPart(contentType, transferEncoding string, body io.Reader) string {
	if contentType == "" {
		contentType = "text/plain"
	}
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}

	if strings.HasPrefix(mediaType, "multipart/") {
		boundary := params["boundary"]
		if boundary == "" {
			return ""
		}
		mr := multipart.NewReader(body, boundary)
		for {
			part, err := mr.NextPart()
			if err != nil {
				return ""
			}
			ics := findCalendarPart(part.Header.Get("Content-Type"), part.Header.Get("Content-Transfer-Encoding"), part)
			part.Close()
			if ics != "" {
				return ics
			}
		}
	}

	if mediaType != "text/calendar" && mediaType != "application/ics" {
		return ""
	}
	return readCalendarText(body, transferEncoding, params["charset"])
}

// readCalendarText decodes a calendar part. Quoted-printable parts go
// through DecodeQuotedPrintable so its Latin-1 fallback applies; other
// encodings follow the regular part pipeline.
func readCalendarText(r io.Reader, transferEncoding, charset string) string {
	if strings.EqualFold(strings.TrimSpace(transferEncoding), "quoted-printable") {
		data, err := io.ReadAll(io.LimitReader(r, maxPartBytes))
		if err != nil && len(data) == 0 {
			return ""
		}
		return DecodeQuotedPrintable(string(data))
	}
	return readLimited(r, transferEncoding, charset)
}

// ExtractInlineImages collects image/* parts carrying a Content-Id from a
// raw MIME message, keyed by the id with angle brackets stripped, each
// re-encoded as a data: URL. Falls back to a loose content-id scan when the
// structured walk yields nothing.
func ExtractInlineImages(raw []byte) map[string]string {
	images := make(map[string]string)

	msg, err := mail.ReadMessage(bufio.NewReader(strings.NewReader(string(raw))))
	if err == nil {
		ct := msg.Header.Get("Content-Type")
		mediaType, params, perr := mime.ParseMediaType(ct)
		if perr == nil && strings.HasPrefix(mediaType, "multipart/") {
			collectInlineImages(params["boundary"], msg.Body, images)
		}
	}
	if len(images) == 0 {
		scanInlineImages(raw, images)
	}
	return images
}

func collectInlineImages(boundary string, r io.Reader, images map[string]string) {
	if boundary == "" {
		return
	}
	mr := multipart.NewReader(r, boundary)

	for {
		part, err := mr.NextPart()
		if err != nil {
			break
		}
		ct := part.Header.Get("Content-Type")
		cte := part.Header.Get("Content-Transfer-Encoding")
		partMedia, partParams, parseErr := mime.ParseMediaType(ct)
		if parseErr != nil {
			part.Close()
			continue
		}

		if strings.HasPrefix(partMedia, "multipart/") {
			collectInlineImages(partParams["boundary"], part, images)
			part.Close()
			continue
		}

		cid := NormalizeContentID(part.Header.Get("Content-ID"))
		if cid != "" && strings.HasPrefix(partMedia, "image/") {
			data, _ := io.ReadAll(io.LimitReader(decodeTransferEncoding(part, cte), maxInlineBytes))
			if len(data) > 0 {
				images[cid] = dataURL(partMedia, data)
			}
		}
		part.Close()
	}
}

// reCIDHeader matches a Content-ID header with its base64 body up to the
// next blank-line-delimited boundary, for malformed messages the multipart
// reader cannot walk.
var reCIDHeader = regexp.MustCompile(`(?is)Content-Type:\s*(image/[a-z0-9.+-]+).{0,512}?Content-ID:\s*<([^>]+)>\s*\r?\n\r?\n([A-Za-z0-9+/=\r\n]+)`)

func scanInlineImages(raw []byte, images map[string]string) {
	for _, m := range reCIDHeader.FindAllSubmatch(raw, -1) {
		contentType := strings.ToLower(string(m[1]))
		cid := strings.TrimSpace(string(m[2]))
		b64 := strings.Map(func(r rune) rune {
			if r == '\r' || r == '\n' {
				return -1
			}
			return r
		}, string(m[3]))
		data, err := base64.StdEncoding.DecodeString(b64)
		if err != nil || len(data) == 0 {
			continue
		}
		images[cid] = dataURL(contentType, data)
	}
}

func dataURL(contentType string, data []byte) string {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// NormalizeContentID strips angle brackets and whitespace from a
// Content-ID for map lookup.
func NormalizeContentID(cid string) string {
	cid = strings.TrimSpace(cid)
	if strings.HasPrefix(cid, "<") && strings.HasSuffix(cid, ">") {
		cid = strings.TrimSpace(cid[1 : len(cid)-1])
	}
	return cid
}

// ReadReceiptRequested reports whether the message asks for an MDN.
func ReadReceiptRequested(raw []byte) (requestedBy string, ok bool) {
	msg, err := mail.ReadMessage(bufio.NewReader(strings.NewReader(string(raw))))
	if err != nil {
		return "", false
	}
	addr := strings.TrimSpace(msg.Header.Get("Disposition-Notification-To"))
	return addr, addr != ""
}

// separator lines some servers inject between body and truncation notice.
var reSeparatorLine = regexp.MustCompile(`(?m)^[\t ]*[-_=*]{4,}[\t ]*$`)

// StripSeparators removes server-injected separator lines and collapses the
// blank runs they leave behind.
func StripSeparators(text string) string {
	text = reSeparatorLine.ReplaceAllString(text, "")
	for strings.Contains(text, "\n\n\n") {
		text = strings.ReplaceAll(text, "\n\n\n", "\n\n")
	}
	return strings.TrimSpace(text)
}

func plainToHTML(plain string) string {
	var b strings.Builder
	for _, r := range plain {
		switch r {
		case '&':
			b.WriteString("&amp;")
		case '<':
			b.WriteString("&lt;")
		case '>':
			b.WriteString("&gt;")
		case '\n':
			b.WriteString("<br>\n")
		case '\r':
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// readLimited reads up to maxPartBytes from r, applying transfer-encoding
// and charset decoding. Never fails; malformed input yields what was
// decodable.
func readLimited(r io.Reader, transferEncoding, charset string) string {
	r = decodeTransferEncoding(r, transferEncoding)
	r = charsetReader(charset, r)
	data, err := io.ReadAll(io.LimitReader(r, maxPartBytes))
	if err != nil && len(data) == 0 {
		return ""
	}
	return bestEffortUTF8(strings.TrimSpace(string(data)))
}

func decodeTransferEncoding(r io.Reader, encoding string) io.Reader {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "base64":
		return base64.NewDecoder(base64.StdEncoding, r)
	case "quoted-printable":
		return quotedprintable.NewReader(r)
	default:
		return r
	}
}

func charsetReader(charset string, r io.Reader) io.Reader {
	cs := strings.ToLower(strings.TrimSpace(charset))
	if cs == "" || cs == "utf-8" || cs == "us-ascii" || cs == "ascii" {
		return r
	}
	decoded, err := charsets.Reader(cs, r)
	if err != nil {
		return r
	}
	return decoded
}

// bestEffortUTF8 re-interprets invalid UTF-8 as Latin-1 so no input is ever
// rejected.
func bestEffortUTF8(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	decoded, _, err := transform.String(charmap.ISO8859_1.NewDecoder(), s)
	if err != nil {
		return s
	}
	return decoded
}
