package eas

import (
	"time"

	"github.com/dedovmosol/iwomail/internal/wbxml"
)

// DecodeResponse decodes raw response bytes, classifying codec failures as
// KindDecode. An empty body is valid for some commands (e.g. Sync with no
// changes) and yields a nil node.
func DecodeResponse(raw []byte) (*wbxml.Node, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	n, err := wbxml.Decode(raw)
	if err != nil {
		return nil, WrapError(KindDecode, "malformed server response", err)
	}
	return n, nil
}

// Compact and long datetime layouts seen on the wire.
var wireTimeLayouts = []string{
	"2006-01-02T15:04:05.000Z",
	"2006-01-02T15:04:05Z",
	"20060102T150405Z",
}

// ParseWireTime parses a server timestamp. The zero time is returned for
// anything unparseable; callers treat that as "absent".
func ParseWireTime(s string) time.Time {
	for _, layout := range wireTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// FormatWireTime renders a timestamp in the compact wire layout.
func FormatWireTime(t time.Time) string {
	return t.UTC().Format("20060102T150405Z")
}
