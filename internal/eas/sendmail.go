package eas

import (
	"github.com/dedovmosol/iwomail/internal/wbxml"
)

// SendMailRequest builds the compose command carrying a complete MIME
// message. clientID deduplicates resends server-side.
func SendMailRequest(clientID string, mime []byte, saveInSent bool) *wbxml.Node {
	req := wbxml.NewNode(wbxml.PageComposeMail, wbxml.CMSendMail).Add(
		wbxml.NewTextNode(wbxml.PageComposeMail, wbxml.CMClientID, clientID),
	)
	if saveInSent {
		req.Add(wbxml.NewNode(wbxml.PageComposeMail, wbxml.CMSaveInSentItems))
	}
	return req.Add(wbxml.NewOpaqueNode(wbxml.PageComposeMail, wbxml.CMMime, mime))
}

// ParseSendMail checks a SendMail response. Success is an empty body; a
// non-empty one carries a status code.
func ParseSendMail(resp *wbxml.Node) error {
	if resp == nil {
		return nil
	}
	if status := resp.ChildText(wbxml.PageComposeMail, wbxml.CMStatus); status != "" && status != "1" {
		return NewError(KindServer, "SendMail failed with status "+status)
	}
	return nil
}
