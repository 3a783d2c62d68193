package wbxml

import (
	"bytes"
	"fmt"
)

// Control tokens of the binary XML stream.
const (
	tokSwitchPage byte = 0x00
	tokEnd        byte = 0x01
	tokEntity     byte = 0x02
	tokStrI       byte = 0x03
	tokLiteral    byte = 0x04
	tokOpaque     byte = 0xC3

	// Tag byte modifier bits.
	bitContent byte = 0x40
	bitAttrs   byte = 0x80

	headerVersion  byte = 0x03 // WBXML 1.3
	headerPublicID byte = 0x01 // unknown / inline
	headerCharset  byte = 0x6A // UTF-8
)

// DecodeError reports a malformed token stream. It is fatal for the
// response it occurred in and must never be retried blindly.
type DecodeError struct {
	Offset int
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("wbxml: decode error at offset %d: %s", e.Offset, e.Reason)
}

// Encode serialises a command tree to the binary wire format. The root node
// becomes the document element.
func Encode(root *Node) ([]byte, error) {
	if root == nil {
		return nil, fmt.Errorf("wbxml: encode nil root")
	}
	var buf bytes.Buffer
	buf.WriteByte(headerVersion)
	buf.WriteByte(headerPublicID)
	buf.WriteByte(headerCharset)
	buf.WriteByte(0x00) // empty string table

	page := byte(0x00)
	if err := encodeNode(&buf, root, &page); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeNode(buf *bytes.Buffer, n *Node, page *byte) error {
	if n.Tag < 0x05 || n.Tag > 0x3F {
		return fmt.Errorf("wbxml: invalid tag code 0x%02X on page %s", n.Tag, PageName(n.Page))
	}
	if n.Page != *page {
		buf.WriteByte(tokSwitchPage)
		buf.WriteByte(n.Page)
		*page = n.Page
	}

	hasContent := len(n.Children) > 0 || n.Text != "" || len(n.Opaque) > 0
	if !hasContent {
		buf.WriteByte(n.Tag)
		return nil
	}

	buf.WriteByte(n.Tag | bitContent)
	if n.Text != "" {
		buf.WriteByte(tokStrI)
		buf.WriteString(n.Text)
		buf.WriteByte(0x00)
	}
	if len(n.Opaque) > 0 {
		buf.WriteByte(tokOpaque)
		writeMBUint(buf, uint32(len(n.Opaque)))
		buf.Write(n.Opaque)
	}
	for _, c := range n.Children {
		if err := encodeNode(buf, c, page); err != nil {
			return err
		}
	}
	buf.WriteByte(tokEnd)
	return nil
}

// writeMBUint writes a multi-byte unsigned integer, 7 bits per byte, high
// bit set on all but the last byte.
func writeMBUint(buf *bytes.Buffer, v uint32) {
	var tmp [5]byte
	i := len(tmp) - 1
	tmp[i] = byte(v & 0x7F)
	v >>= 7
	for v > 0 {
		i--
		tmp[i] = byte(v&0x7F) | 0x80
		v >>= 7
	}
	buf.Write(tmp[i:])
}

type decoder struct {
	data []byte
	pos  int
}

func (d *decoder) fail(reason string) *DecodeError {
	return &DecodeError{Offset: d.pos, Reason: reason}
}

func (d *decoder) byte() (byte, error) {
	if d.pos >= len(d.data) {
		return 0, d.fail("truncated stream")
	}
	b := d.data[d.pos]
	d.pos++
	return b, nil
}

func (d *decoder) mbUint() (uint32, error) {
	var v uint32
	for i := 0; ; i++ {
		if i >= 5 {
			return 0, d.fail("multi-byte integer too long")
		}
		b, err := d.byte()
		if err != nil {
			return 0, err
		}
		v = v<<7 | uint32(b&0x7F)
		if b&0x80 == 0 {
			return v, nil
		}
	}
}

func (d *decoder) cString() (string, error) {
	start := d.pos
	for d.pos < len(d.data) {
		if d.data[d.pos] == 0x00 {
			s := string(d.data[start:d.pos])
			d.pos++
			return s, nil
		}
		d.pos++
	}
	return "", d.fail("unterminated inline string")
}

// Decode parses a binary response into its element tree. The returned node
// is the document element.
func Decode(data []byte) (*Node, error) {
	d := &decoder{data: data}

	if _, err := d.byte(); err != nil { // version
		return nil, err
	}
	if _, err := d.mbUint(); err != nil { // public id
		return nil, err
	}
	if _, err := d.mbUint(); err != nil { // charset
		return nil, err
	}
	tableLen, err := d.mbUint()
	if err != nil {
		return nil, err
	}
	if int(tableLen) > len(d.data)-d.pos {
		return nil, d.fail("string table longer than stream")
	}
	d.pos += int(tableLen)

	page := byte(0x00)
	root, err := d.element(&page)
	if err != nil {
		return nil, err
	}
	if root == nil {
		return nil, d.fail("empty document")
	}
	return root, nil
}

// element decodes one element, or returns (nil, nil) on END.
func (d *decoder) element(page *byte) (*Node, error) {
	for {
		b, err := d.byte()
		if err != nil {
			return nil, err
		}
		switch b {
		case tokSwitchPage:
			p, err := d.byte()
			if err != nil {
				return nil, err
			}
			if !KnownPage(p) {
				return nil, d.fail(fmt.Sprintf("switch to unknown code page 0x%02X", p))
			}
			*page = p
			continue
		case tokEnd:
			return nil, nil
		default:
			if b&bitAttrs != 0 && b != tokOpaque {
				return nil, d.fail(fmt.Sprintf("unsupported attribute token 0x%02X", b))
			}
			return d.tag(b, page)
		}
	}
}

func (d *decoder) tag(b byte, page *byte) (*Node, error) {
	code := b &^ (bitContent | bitAttrs)
	if code < 0x05 {
		return nil, d.fail(fmt.Sprintf("unexpected control token 0x%02X", b))
	}
	n := &Node{Page: *page, Tag: code}
	if b&bitContent == 0 {
		return n, nil
	}

	for {
		c, err := d.byte()
		if err != nil {
			return nil, err
		}
		switch c {
		case tokEnd:
			return n, nil
		case tokSwitchPage:
			p, err := d.byte()
			if err != nil {
				return nil, err
			}
			if !KnownPage(p) {
				return nil, d.fail(fmt.Sprintf("switch to unknown code page 0x%02X", p))
			}
			*page = p
		case tokStrI:
			s, err := d.cString()
			if err != nil {
				return nil, err
			}
			n.Text += s
		case tokOpaque:
			length, err := d.mbUint()
			if err != nil {
				return nil, err
			}
			if int(length) > len(d.data)-d.pos {
				return nil, d.fail("opaque data longer than stream")
			}
			n.Opaque = append(n.Opaque, d.data[d.pos:d.pos+int(length)]...)
			d.pos += int(length)
		case tokEntity:
			v, err := d.mbUint()
			if err != nil {
				return nil, err
			}
			n.Text += string(rune(v))
		case tokLiteral:
			return nil, d.fail("literal tags not supported")
		default:
			if c&bitAttrs != 0 {
				return nil, d.fail(fmt.Sprintf("unsupported attribute token 0x%02X", c))
			}
			child, err := d.tag(c, page)
			if err != nil {
				return nil, err
			}
			n.Children = append(n.Children, child)
		}
	}
}
