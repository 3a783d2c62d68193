package sync

import (
	"context"

	"github.com/dedovmosol/iwomail/internal/eas"
)

// RespondToMeeting answers a meeting request message with one of
// eas.MeetingAccepted, eas.MeetingTentative or eas.MeetingDeclined. On
// acceptance the returned id names the calendar event the server booked;
// declines return "". The originating message is consumed by the server, so
// the folder is resynced afterwards to pick up its removal.
func (e *Engine) RespondToMeeting(ctx context.Context, accountID, folderID, serverID string, response int) (string, error) {
	c, err := e.client(accountID)
	if err != nil {
		return "", err
	}

	resp, err := e.execute(ctx, c, "MeetingResponse", eas.MeetingResponseRequest(folderID, serverID, response))
	if err != nil {
		return "", err
	}
	calendarID, err := eas.ParseMeetingResponse(resp)
	if err != nil {
		return "", err
	}

	if _, err := e.SyncFolderItems(ctx, accountID, folderID); err != nil {
		return calendarID, err
	}
	return calendarID, nil
}
