package eas

import (
	"strconv"

	"github.com/dedovmosol/iwomail/internal/model"
	"github.com/dedovmosol/iwomail/internal/wbxml"
)

// Item classes of the Sync command.
const (
	ClassEmail    = "Email"
	ClassCalendar = "Calendar"
	ClassContacts = "Contacts"
	ClassTasks    = "Tasks"
)

// Sync status codes (AirSync namespace).
const (
	syncOK         = "1"
	syncInvalidKey = "3"
	syncNotFound   = "8"
)

// Body type codes of the AirSyncBase BodyPreference element.
const (
	bodyTypePlain = "1"
	bodyTypeHTML  = "2"
	bodyTypeMIME  = "4"
)

// SyncOptions tunes one Sync request.
type SyncOptions struct {
	Class      string
	WindowSize int

	// MIMESupport asks for full MIME bodies instead of extracted text;
	// the content normalizer does the extraction client-side.
	MIMESupport bool

	// TruncationSize caps body bytes per item; 0 keeps the server default.
	TruncationSize int
}

// ItemChange is one add or change from a Sync response. Data is the raw
// ApplicationData subtree; projection into entity types is class-specific.
type ItemChange struct {
	ServerID string
	Data     *wbxml.Node
}

// SyncResult is the projection of one Sync response for one collection.
type SyncResult struct {
	SyncKey       string
	MoreAvailable bool
	Adds          []ItemChange
	Changes       []ItemChange
	Deletes       []string
}

// SyncRequest builds the per-folder item sync command. syncKey "0" is the
// initial handshake: the server answers with a fresh key and no items.
func SyncRequest(collectionID, syncKey string, opts SyncOptions) *wbxml.Node {
	if syncKey == "" {
		syncKey = "0"
	}
	col := wbxml.NewNode(wbxml.PageAirSync, wbxml.AirCollection).Add(
		wbxml.NewTextNode(wbxml.PageAirSync, wbxml.AirSyncKey, syncKey),
		wbxml.NewTextNode(wbxml.PageAirSync, wbxml.AirCollectionID, collectionID),
	)
	if syncKey != "0" {
		col.Add(wbxml.NewNode(wbxml.PageAirSync, wbxml.AirDeletesAsMoves))
		col.Add(wbxml.NewNode(wbxml.PageAirSync, wbxml.AirGetChanges))
		if opts.WindowSize > 0 {
			col.Add(wbxml.NewTextNode(wbxml.PageAirSync, wbxml.AirWindowSize, strconv.Itoa(opts.WindowSize)))
		}
		col.Add(buildSyncOptions(opts))
	}
	return wbxml.NewNode(wbxml.PageAirSync, wbxml.AirSync).Add(
		wbxml.NewNode(wbxml.PageAirSync, wbxml.AirCollections).Add(col),
	)
}

func buildSyncOptions(opts SyncOptions) *wbxml.Node {
	bodyType := bodyTypeHTML
	if opts.MIMESupport {
		bodyType = bodyTypeMIME
	}
	pref := wbxml.NewNode(wbxml.PageAirSyncBase, wbxml.ASBBodyPreference).Add(
		wbxml.NewTextNode(wbxml.PageAirSyncBase, wbxml.ASBType, bodyType),
	)
	if opts.TruncationSize > 0 {
		pref.Add(wbxml.NewTextNode(wbxml.PageAirSyncBase, wbxml.ASBTruncationSize, strconv.Itoa(opts.TruncationSize)))
	}
	node := wbxml.NewNode(wbxml.PageAirSync, wbxml.AirOptions)
	if opts.MIMESupport {
		node.Add(wbxml.NewTextNode(wbxml.PageAirSync, wbxml.AirMIMESupport, "2"))
	}
	return node.Add(pref)
}

// MarkReadRequest builds a Sync Change command that flips an item's read
// state server-side.
func MarkReadRequest(collectionID, syncKey, serverID string, read bool) *wbxml.Node {
	val := "0"
	if read {
		val = "1"
	}
	return wbxml.NewNode(wbxml.PageAirSync, wbxml.AirSync).Add(
		wbxml.NewNode(wbxml.PageAirSync, wbxml.AirCollections).Add(
			wbxml.NewNode(wbxml.PageAirSync, wbxml.AirCollection).Add(
				wbxml.NewTextNode(wbxml.PageAirSync, wbxml.AirSyncKey, syncKey),
				wbxml.NewTextNode(wbxml.PageAirSync, wbxml.AirCollectionID, collectionID),
				wbxml.NewNode(wbxml.PageAirSync, wbxml.AirCommands).Add(
					wbxml.NewNode(wbxml.PageAirSync, wbxml.AirChange).Add(
						wbxml.NewTextNode(wbxml.PageAirSync, wbxml.AirServerID, serverID),
						wbxml.NewNode(wbxml.PageAirSync, wbxml.AirApplicationData).Add(
							wbxml.NewTextNode(wbxml.PageEmail, wbxml.EmailRead, val),
						),
					),
				),
			),
		),
	)
}

// ParseSync projects a Sync response for a single collection. A nil
// response means "no changes" and yields a result with an empty SyncKey,
// which callers must treat as "cursor unchanged".
func ParseSync(resp *wbxml.Node) (*SyncResult, error) {
	if resp == nil {
		return &SyncResult{}, nil
	}
	if !resp.Is(wbxml.PageAirSync, wbxml.AirSync) {
		return nil, NewError(KindDecode, "Sync response has wrong document element")
	}
	cols := resp.Child(wbxml.PageAirSync, wbxml.AirCollections)
	if cols == nil {
		return &SyncResult{}, nil
	}
	col := cols.Child(wbxml.PageAirSync, wbxml.AirCollection)
	if col == nil {
		return nil, NewError(KindDecode, "Sync response missing Collection")
	}

	switch status := col.ChildText(wbxml.PageAirSync, wbxml.AirStatus); status {
	case syncOK:
	case syncInvalidKey:
		return nil, NewError(KindCursorInvalid, "server rejected item sync key")
	case syncNotFound:
		return nil, NewError(KindObjectNotFound, "synced object no longer exists")
	default:
		return nil, NewError(KindServer, "Sync failed with status "+status)
	}

	result := &SyncResult{
		SyncKey:       col.ChildText(wbxml.PageAirSync, wbxml.AirSyncKey),
		MoreAvailable: col.Child(wbxml.PageAirSync, wbxml.AirMoreAvailable) != nil,
	}

	cmds := col.Child(wbxml.PageAirSync, wbxml.AirCommands)
	if cmds == nil {
		return result, nil
	}
	for _, add := range cmds.ChildrenOf(wbxml.PageAirSync, wbxml.AirAdd) {
		result.Adds = append(result.Adds, ItemChange{
			ServerID: add.ChildText(wbxml.PageAirSync, wbxml.AirServerID),
			Data:     add.Child(wbxml.PageAirSync, wbxml.AirApplicationData),
		})
	}
	for _, chg := range cmds.ChildrenOf(wbxml.PageAirSync, wbxml.AirChange) {
		result.Changes = append(result.Changes, ItemChange{
			ServerID: chg.ChildText(wbxml.PageAirSync, wbxml.AirServerID),
			Data:     chg.Child(wbxml.PageAirSync, wbxml.AirApplicationData),
		})
	}
	for _, del := range cmds.ChildrenOf(wbxml.PageAirSync, wbxml.AirDelete) {
		if id := del.ChildText(wbxml.PageAirSync, wbxml.AirServerID); id != "" {
			result.Deletes = append(result.Deletes, id)
		}
	}
	for _, del := range cmds.ChildrenOf(wbxml.PageAirSync, wbxml.AirSoftDelete) {
		if id := del.ChildText(wbxml.PageAirSync, wbxml.AirServerID); id != "" {
			result.Deletes = append(result.Deletes, id)
		}
	}
	return result, nil
}

// WireBody is the body subtree of a synced item before normalization.
type WireBody struct {
	Data      string
	Encoding  model.BodyEncoding
	Truncated bool
	Present   bool
}

// ParseMailItem projects an Email-class ApplicationData subtree.
func ParseMailItem(data *wbxml.Node) (model.MailItem, []model.Attachment, WireBody) {
	item := model.MailItem{
		From:    data.ChildText(wbxml.PageEmail, wbxml.EmailFrom),
		To:      data.ChildText(wbxml.PageEmail, wbxml.EmailTo),
		Cc:      data.ChildText(wbxml.PageEmail, wbxml.EmailCc),
		Subject: data.ChildText(wbxml.PageEmail, wbxml.EmailSubject),
		Date:    ParseWireTime(data.ChildText(wbxml.PageEmail, wbxml.EmailDateReceived)),
		Read:    data.ChildText(wbxml.PageEmail, wbxml.EmailRead) == "1",
	}
	if flag := data.Child(wbxml.PageEmail, wbxml.EmailFlag); flag != nil {
		item.Flagged = flag.ChildText(wbxml.PageEmail, wbxml.EmailFlagStatus) == "2"
	}

	atts := parseAttachments(data)
	item.HasAttachments = len(atts) > 0

	body := parseWireBody(data)
	return item, atts, body
}

func parseAttachments(data *wbxml.Node) []model.Attachment {
	container := data.Child(wbxml.PageAirSyncBase, wbxml.ASBAttachments)
	if container == nil {
		return nil
	}
	var atts []model.Attachment
	for _, a := range container.ChildrenOf(wbxml.PageAirSyncBase, wbxml.ASBAttachment) {
		size, _ := strconv.Atoi(a.ChildText(wbxml.PageAirSyncBase, wbxml.ASBEstimatedSize))
		atts = append(atts, model.Attachment{
			DisplayName:   a.ChildText(wbxml.PageAirSyncBase, wbxml.ASBDisplayName),
			ContentType:   a.ChildText(wbxml.PageAirSyncBase, wbxml.ASBContentType),
			SizeEstimate:  size,
			Inline:        a.ChildText(wbxml.PageAirSyncBase, wbxml.ASBIsInline) == "1",
			ContentID:     a.ChildText(wbxml.PageAirSyncBase, wbxml.ASBContentID),
			FileReference: a.ChildText(wbxml.PageAirSyncBase, wbxml.ASBFileReference),
		})
	}
	return atts
}

func parseWireBody(data *wbxml.Node) WireBody {
	b := data.Child(wbxml.PageAirSyncBase, wbxml.ASBBody)
	if b == nil {
		return WireBody{}
	}
	body := WireBody{
		Present:   true,
		Data:      b.ChildText(wbxml.PageAirSyncBase, wbxml.ASBData),
		Truncated: b.ChildText(wbxml.PageAirSyncBase, wbxml.ASBTruncated) == "1",
	}
	switch b.ChildText(wbxml.PageAirSyncBase, wbxml.ASBType) {
	case bodyTypeHTML:
		body.Encoding = model.BodyEncodingHTML
	case bodyTypeMIME:
		body.Encoding = model.BodyEncodingMIME
	default:
		body.Encoding = model.BodyEncodingPlain
	}
	return body
}

// ParseCalendarEvent projects a Calendar-class ApplicationData subtree.
func ParseCalendarEvent(data *wbxml.Node) model.CalendarEvent {
	busy, _ := strconv.Atoi(data.ChildText(wbxml.PageCalendar, wbxml.CalBusyStatus))
	reminder, _ := strconv.Atoi(data.ChildText(wbxml.PageCalendar, wbxml.CalReminder))

	ev := model.CalendarEvent{
		Subject:         data.ChildText(wbxml.PageCalendar, wbxml.CalSubject),
		Location:        data.ChildText(wbxml.PageCalendar, wbxml.CalLocation),
		AllDay:          data.ChildText(wbxml.PageCalendar, wbxml.CalAllDayEvent) == "1",
		Organizer:       data.ChildText(wbxml.PageCalendar, wbxml.CalOrganizerEmail),
		Busy:            model.BusyStatus(busy),
		Recurring:       data.Child(wbxml.PageCalendar, wbxml.CalRecurrence) != nil,
		ReminderMinutes: reminder,
	}
	if t := ParseWireTime(data.ChildText(wbxml.PageCalendar, wbxml.CalStartTime)); !t.IsZero() {
		ev.Start = t.Unix()
	}
	if t := ParseWireTime(data.ChildText(wbxml.PageCalendar, wbxml.CalEndTime)); !t.IsZero() {
		ev.End = t.Unix()
	}
	if body := parseWireBody(data); body.Present {
		ev.Body = body.Data
	}

	if attendees := data.Child(wbxml.PageCalendar, wbxml.CalAttendees); attendees != nil {
		for _, a := range attendees.ChildrenOf(wbxml.PageCalendar, wbxml.CalAttendee) {
			status, _ := strconv.Atoi(a.ChildText(wbxml.PageCalendar, wbxml.CalAttendeeStatus))
			ev.Attendees = append(ev.Attendees, model.Attendee{
				Name:   a.ChildText(wbxml.PageCalendar, wbxml.CalAttendeeName),
				Email:  a.ChildText(wbxml.PageCalendar, wbxml.CalAttendeeEmail),
				Status: model.ResponseStatus(status),
			})
		}
	}
	return ev
}

// ParseContact projects a Contacts-class ApplicationData subtree.
func ParseContact(data *wbxml.Node) model.Contact {
	return model.Contact{
		FirstName: data.ChildText(wbxml.PageContacts, wbxml.ContactFirstName),
		LastName:  data.ChildText(wbxml.PageContacts, wbxml.ContactLastName),
		FileAs:    data.ChildText(wbxml.PageContacts, wbxml.ContactFileAs),
		Company:   data.ChildText(wbxml.PageContacts, wbxml.ContactCompanyName),
		Email1:    data.ChildText(wbxml.PageContacts, wbxml.ContactEmail1),
		Email2:    data.ChildText(wbxml.PageContacts, wbxml.ContactEmail2),
		Phone:     data.ChildText(wbxml.PageContacts, wbxml.ContactHomePhone),
		Mobile:    data.ChildText(wbxml.PageContacts, wbxml.ContactMobilePhone),
	}
}

// ParseTask projects a Tasks-class ApplicationData subtree.
func ParseTask(data *wbxml.Node) model.Task {
	importance, _ := strconv.Atoi(data.ChildText(wbxml.PageTasks, wbxml.TaskImportance))
	task := model.Task{
		Subject:    data.ChildText(wbxml.PageTasks, wbxml.TaskSubject),
		Complete:   data.ChildText(wbxml.PageTasks, wbxml.TaskComplete) == "1",
		Importance: importance,
	}
	if b := data.Child(wbxml.PageTasks, wbxml.TaskBody); b != nil {
		task.Body = b.Value()
	} else if body := parseWireBody(data); body.Present {
		task.Body = body.Data
	}
	due := data.ChildText(wbxml.PageTasks, wbxml.TaskUtcDueDate)
	if due == "" {
		due = data.ChildText(wbxml.PageTasks, wbxml.TaskDueDate)
	}
	if t := ParseWireTime(due); !t.IsZero() {
		task.DueDate = t.Unix()
	}
	return task
}
