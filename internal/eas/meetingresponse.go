package eas

import (
	"strconv"

	"github.com/dedovmosol/iwomail/internal/wbxml"
)

// Meeting response values sent in UserResponse.
const (
	MeetingAccepted  = 1
	MeetingTentative = 2
	MeetingDeclined  = 3
)

// MeetingResponse status codes.
const (
	meetingOK       = "1"
	meetingNotFound = "2"
)

// MeetingResponseRequest builds a MeetingResponse command answering the
// meeting request stored at (collectionID, requestID) with one of the
// Meeting* values.
func MeetingResponseRequest(collectionID, requestID string, userResponse int) *wbxml.Node {
	return wbxml.NewNode(wbxml.PageMeetingResponse, wbxml.MRMeetingResponse).Add(
		wbxml.NewNode(wbxml.PageMeetingResponse, wbxml.MRRequest).Add(
			wbxml.NewTextNode(wbxml.PageMeetingResponse, wbxml.MRUserResponse, strconv.Itoa(userResponse)),
			wbxml.NewTextNode(wbxml.PageMeetingResponse, wbxml.MRCollectionID, collectionID),
			wbxml.NewTextNode(wbxml.PageMeetingResponse, wbxml.MRRequestID, requestID),
		),
	)
}

// ParseMeetingResponse projects a MeetingResponse response. On acceptance
// the server may return the CalendarId of the booked event; declines remove
// the request without one. A stale request maps to KindObjectNotFound.
func ParseMeetingResponse(resp *wbxml.Node) (calendarID string, err error) {
	if resp == nil || !resp.Is(wbxml.PageMeetingResponse, wbxml.MRMeetingResponse) {
		return "", NewError(KindDecode, "MeetingResponse response has wrong document element")
	}
	result := resp.Child(wbxml.PageMeetingResponse, wbxml.MRResult)
	if result == nil {
		return "", NewError(KindDecode, "MeetingResponse response missing Result")
	}
	switch status := result.ChildText(wbxml.PageMeetingResponse, wbxml.MRStatus); status {
	case meetingOK:
		return result.ChildText(wbxml.PageMeetingResponse, wbxml.MRCalendarID), nil
	case meetingNotFound:
		return "", NewError(KindObjectNotFound, "meeting request no longer exists on server")
	default:
		return "", NewError(KindServer, "MeetingResponse failed with status "+status)
	}
}
