package eas

import (
	"encoding/base64"

	"github.com/dedovmosol/iwomail/internal/wbxml"
)

// ItemOperations status codes.
const (
	itemOpsOK       = "1"
	itemOpsNotFound = "6"
)

// AttachmentFetchRequest builds an ItemOperations fetch for an attachment
// by its opaque file reference.
func AttachmentFetchRequest(fileReference string) *wbxml.Node {
	return wbxml.NewNode(wbxml.PageItemOperations, wbxml.IOItemOperations).Add(
		wbxml.NewNode(wbxml.PageItemOperations, wbxml.IOFetch).Add(
			wbxml.NewTextNode(wbxml.PageItemOperations, wbxml.IOStore, "Mailbox"),
			wbxml.NewTextNode(wbxml.PageAirSyncBase, wbxml.ASBFileReference, fileReference),
		),
	)
}

// ItemBodyFetchRequest builds an ItemOperations fetch for a full item body,
// delivered as raw MIME for client-side normalization.
func ItemBodyFetchRequest(collectionID, serverID string) *wbxml.Node {
	return wbxml.NewNode(wbxml.PageItemOperations, wbxml.IOItemOperations).Add(
		wbxml.NewNode(wbxml.PageItemOperations, wbxml.IOFetch).Add(
			wbxml.NewTextNode(wbxml.PageItemOperations, wbxml.IOStore, "Mailbox"),
			wbxml.NewTextNode(wbxml.PageAirSync, wbxml.AirCollectionID, collectionID),
			wbxml.NewTextNode(wbxml.PageAirSync, wbxml.AirServerID, serverID),
			wbxml.NewNode(wbxml.PageItemOperations, wbxml.IOOptions).Add(
				wbxml.NewTextNode(wbxml.PageAirSync, wbxml.AirMIMESupport, "2"),
				wbxml.NewNode(wbxml.PageAirSyncBase, wbxml.ASBBodyPreference).Add(
					wbxml.NewTextNode(wbxml.PageAirSyncBase, wbxml.ASBType, bodyTypeMIME),
				),
			),
		),
	)
}

// FetchResult is the payload of one ItemOperations fetch.
type FetchResult struct {
	Data        []byte
	ContentType string
	Body        WireBody
}

// ParseItemOperations projects an ItemOperations response. A not-found
// status maps to KindObjectNotFound so callers can tell an expired
// reference from a transport failure.
func ParseItemOperations(resp *wbxml.Node) (*FetchResult, error) {
	if resp == nil || !resp.Is(wbxml.PageItemOperations, wbxml.IOItemOperations) {
		return nil, NewError(KindDecode, "ItemOperations response has wrong document element")
	}
	if err := checkItemOpsStatus(resp.ChildText(wbxml.PageItemOperations, wbxml.IOStatus)); err != nil {
		return nil, err
	}

	response := resp.Child(wbxml.PageItemOperations, wbxml.IOResponse)
	if response == nil {
		return nil, NewError(KindDecode, "ItemOperations response missing Response")
	}
	fetch := response.Child(wbxml.PageItemOperations, wbxml.IOFetch)
	if fetch == nil {
		return nil, NewError(KindDecode, "ItemOperations response missing Fetch")
	}
	if err := checkItemOpsStatus(fetch.ChildText(wbxml.PageItemOperations, wbxml.IOStatus)); err != nil {
		return nil, err
	}

	props := fetch.Child(wbxml.PageItemOperations, wbxml.IOProperties)
	if props == nil {
		return nil, NewError(KindDecode, "ItemOperations response missing Properties")
	}

	result := &FetchResult{
		ContentType: props.ChildText(wbxml.PageAirSyncBase, wbxml.ASBContentType),
		Body:        parseWireBody(props),
	}
	if data := props.Child(wbxml.PageItemOperations, wbxml.IOData); data != nil {
		result.Data = fetchPayload(data)
	}
	return result, nil
}

func checkItemOpsStatus(status string) error {
	switch status {
	case itemOpsOK, "":
		return nil
	case itemOpsNotFound:
		return NewError(KindObjectNotFound, "referenced object not found on server")
	default:
		return NewError(KindServer, "ItemOperations failed with status "+status)
	}
}

// fetchPayload extracts the fetched bytes: opaque on the wire, or base64
// text from servers that inline it as a string.
func fetchPayload(data *wbxml.Node) []byte {
	if len(data.Opaque) > 0 {
		return data.Opaque
	}
	if data.Text == "" {
		return nil
	}
	if decoded, err := base64.StdEncoding.DecodeString(data.Text); err == nil {
		return decoded
	}
	return []byte(data.Text)
}
