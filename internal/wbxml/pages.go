package wbxml

import "fmt"

// Code pages (namespaces) of the ActiveSync token stream. Only the pages the
// client actually speaks are listed; the decoder rejects switches to any
// other page.
const (
	PageAirSync         byte = 0x00
	PageContacts        byte = 0x01
	PageEmail           byte = 0x02
	PageCalendar        byte = 0x04
	PageFolderHierarchy byte = 0x07
	PageMeetingResponse byte = 0x08
	PageTasks           byte = 0x09
	PageProvision       byte = 0x0E
	PageAirSyncBase     byte = 0x11
	PageItemOperations  byte = 0x14
	PageComposeMail     byte = 0x15
)

// AirSync (page 0) — per-folder item sync.
const (
	AirSync            byte = 0x05
	AirResponses       byte = 0x06
	AirAdd             byte = 0x07
	AirChange          byte = 0x08
	AirDelete          byte = 0x09
	AirFetch           byte = 0x0A
	AirSyncKey         byte = 0x0B
	AirClientID        byte = 0x0C
	AirServerID        byte = 0x0D
	AirStatus          byte = 0x0E
	AirCollection      byte = 0x0F
	AirClass           byte = 0x10
	AirCollectionID    byte = 0x12
	AirGetChanges      byte = 0x13
	AirMoreAvailable   byte = 0x14
	AirWindowSize      byte = 0x15
	AirCommands        byte = 0x16
	AirOptions         byte = 0x17
	AirFilterType      byte = 0x18
	AirConflict        byte = 0x1B
	AirCollections     byte = 0x1C
	AirApplicationData byte = 0x1D
	AirDeletesAsMoves  byte = 0x1E
	AirSupported       byte = 0x20
	AirSoftDelete      byte = 0x21
	AirMIMESupport     byte = 0x22
	AirMIMETruncation  byte = 0x23
)

// Contacts (page 1).
const (
	ContactCompanyName byte = 0x17
	ContactEmail1      byte = 0x19
	ContactEmail2      byte = 0x1A
	ContactFileAs      byte = 0x1C
	ContactFirstName   byte = 0x1D
	ContactHomePhone   byte = 0x24
	ContactJobTitle    byte = 0x25
	ContactLastName    byte = 0x26
	ContactMiddleName  byte = 0x27
	ContactMobilePhone byte = 0x28
)

// Email (page 2).
const (
	EmailAttachment   byte = 0x05
	EmailAttachments  byte = 0x06
	EmailAttName      byte = 0x07
	EmailAttSize      byte = 0x08
	EmailAttOid       byte = 0x09
	EmailAttMethod    byte = 0x0A
	EmailBody         byte = 0x0C
	EmailBodySize     byte = 0x0D
	EmailBodyTrunc    byte = 0x0E
	EmailDateReceived byte = 0x0F
	EmailDisplayTo    byte = 0x11
	EmailImportance   byte = 0x12
	EmailMessageClass byte = 0x13
	EmailSubject      byte = 0x14
	EmailRead         byte = 0x15
	EmailTo           byte = 0x16
	EmailCc           byte = 0x17
	EmailFrom         byte = 0x18
	EmailReplyTo      byte = 0x19
	EmailFlag         byte = 0x3D
	EmailFlagStatus   byte = 0x3E
	EmailContentClass byte = 0x3F
)

// Calendar (page 4).
const (
	CalTimezone       byte = 0x05
	CalAllDayEvent    byte = 0x06
	CalAttendees      byte = 0x07
	CalAttendee       byte = 0x08
	CalAttendeeEmail  byte = 0x09
	CalAttendeeName   byte = 0x0A
	CalBusyStatus     byte = 0x0D
	CalDtStamp        byte = 0x11
	CalEndTime        byte = 0x12
	CalLocation       byte = 0x17
	CalMeetingStatus  byte = 0x18
	CalOrganizerEmail byte = 0x19
	CalOrganizerName  byte = 0x1A
	CalRecurrence     byte = 0x1B
	CalReminder       byte = 0x22
	CalSensitivity    byte = 0x25
	CalSubject        byte = 0x26
	CalStartTime      byte = 0x27
	CalUID            byte = 0x28
	CalAttendeeStatus byte = 0x29
	CalAttendeeType   byte = 0x2A
)

// FolderHierarchy (page 7).
const (
	FHFolders      byte = 0x05
	FHFolder       byte = 0x06
	FHDisplayName  byte = 0x07
	FHServerID     byte = 0x08
	FHParentID     byte = 0x09
	FHType         byte = 0x0A
	FHResponse     byte = 0x0B
	FHStatus       byte = 0x0C
	FHContentClass byte = 0x0D
	FHChanges      byte = 0x0E
	FHAdd          byte = 0x0F
	FHDelete       byte = 0x10
	FHUpdate       byte = 0x11
	FHSyncKey      byte = 0x12
	FHFolderCreate byte = 0x13
	FHFolderDelete byte = 0x14
	FHFolderUpdate byte = 0x15
	FHFolderSync   byte = 0x16
	FHCount        byte = 0x17
)

// MeetingResponse (page 8).
const (
	MRCalendarID      byte = 0x05
	MRCollectionID    byte = 0x06
	MRMeetingResponse byte = 0x07
	MRRequestID       byte = 0x08
	MRRequest         byte = 0x09
	MRResult          byte = 0x0A
	MRStatus          byte = 0x0B
	MRUserResponse    byte = 0x0C
	MRInstanceID      byte = 0x0E
)

// Tasks (page 9).
const (
	TaskBody          byte = 0x05
	TaskComplete      byte = 0x0A
	TaskDateCompleted byte = 0x0B
	TaskDueDate       byte = 0x0C
	TaskUtcDueDate    byte = 0x0D
	TaskImportance    byte = 0x0E
	TaskReminderSet   byte = 0x1F
	TaskSensitivity   byte = 0x21
	TaskStartDate     byte = 0x22
	TaskUtcStartDate  byte = 0x23
	TaskSubject       byte = 0x24
)

// Provision (page 14).
const (
	ProvProvision       byte = 0x05
	ProvPolicies        byte = 0x06
	ProvPolicy          byte = 0x07
	ProvPolicyType      byte = 0x08
	ProvPolicyKey       byte = 0x09
	ProvData            byte = 0x0A
	ProvStatus          byte = 0x0B
	ProvRemoteWipe      byte = 0x0C
	ProvEASProvisionDoc byte = 0x0D
)

// AirSyncBase (page 17) — shared body/attachment elements.
const (
	ASBBodyPreference byte = 0x05
	ASBType           byte = 0x06
	ASBTruncationSize byte = 0x07
	ASBAllOrNone      byte = 0x08
	ASBBody           byte = 0x0A
	ASBData           byte = 0x0B
	ASBEstimatedSize  byte = 0x0C
	ASBTruncated      byte = 0x0D
	ASBAttachments    byte = 0x0E
	ASBAttachment     byte = 0x0F
	ASBDisplayName    byte = 0x10
	ASBFileReference  byte = 0x11
	ASBMethod         byte = 0x12
	ASBContentID      byte = 0x13
	ASBContentLoc     byte = 0x14
	ASBIsInline       byte = 0x15
	ASBNativeBodyType byte = 0x16
	ASBContentType    byte = 0x17
)

// ItemOperations (page 20).
const (
	IOItemOperations byte = 0x05
	IOFetch          byte = 0x06
	IOStore          byte = 0x07
	IOOptions        byte = 0x08
	IORange          byte = 0x09
	IOTotal          byte = 0x0A
	IOProperties     byte = 0x0B
	IOData           byte = 0x0C
	IOStatus         byte = 0x0D
	IOResponse       byte = 0x0E
)

// ComposeMail (page 21).
const (
	CMSendMail        byte = 0x05
	CMSmartForward    byte = 0x06
	CMSmartReply      byte = 0x07
	CMSaveInSentItems byte = 0x08
	CMReplaceMime     byte = 0x09
	CMSource          byte = 0x0B
	CMFolderID        byte = 0x0C
	CMItemID          byte = 0x0D
	CMMime            byte = 0x10
	CMClientID        byte = 0x11
	CMStatus          byte = 0x12
)

var pageNames = map[byte]string{
	PageAirSync:         "AirSync",
	PageContacts:        "Contacts",
	PageEmail:           "Email",
	PageCalendar:        "Calendar",
	PageFolderHierarchy: "FolderHierarchy",
	PageMeetingResponse: "MeetingResponse",
	PageTasks:           "Tasks",
	PageProvision:       "Provision",
	PageAirSyncBase:     "AirSyncBase",
	PageItemOperations:  "ItemOperations",
	PageComposeMail:     "ComposeMail",
}

var tagNames = map[byte]map[byte]string{
	PageAirSync: {
		AirSync: "Sync", AirResponses: "Responses", AirAdd: "Add",
		AirChange: "Change", AirDelete: "Delete", AirFetch: "Fetch",
		AirSyncKey: "SyncKey", AirClientID: "ClientId", AirServerID: "ServerId",
		AirStatus: "Status", AirCollection: "Collection", AirClass: "Class",
		AirCollectionID: "CollectionId", AirGetChanges: "GetChanges",
		AirMoreAvailable: "MoreAvailable", AirWindowSize: "WindowSize",
		AirCommands: "Commands", AirOptions: "Options",
		AirFilterType: "FilterType", AirConflict: "Conflict",
		AirCollections: "Collections", AirApplicationData: "ApplicationData",
		AirDeletesAsMoves: "DeletesAsMoves", AirSupported: "Supported",
		AirSoftDelete: "SoftDelete", AirMIMESupport: "MIMESupport",
		AirMIMETruncation: "MIMETruncation",
	},
	PageContacts: {
		ContactCompanyName: "CompanyName", ContactEmail1: "Email1Address",
		ContactEmail2: "Email2Address", ContactFileAs: "FileAs",
		ContactFirstName: "FirstName", ContactHomePhone: "HomePhoneNumber",
		ContactJobTitle: "JobTitle", ContactLastName: "LastName",
		ContactMiddleName: "MiddleName", ContactMobilePhone: "MobilePhoneNumber",
	},
	PageEmail: {
		EmailAttachment: "Attachment", EmailAttachments: "Attachments",
		EmailAttName: "AttName", EmailAttSize: "AttSize", EmailAttOid: "AttOid",
		EmailAttMethod: "AttMethod", EmailBody: "Body", EmailBodySize: "BodySize",
		EmailBodyTrunc: "BodyTruncated", EmailDateReceived: "DateReceived",
		EmailDisplayTo: "DisplayTo", EmailImportance: "Importance",
		EmailMessageClass: "MessageClass", EmailSubject: "Subject",
		EmailRead: "Read", EmailTo: "To", EmailCc: "Cc", EmailFrom: "From",
		EmailReplyTo: "ReplyTo", EmailFlag: "Flag", EmailFlagStatus: "FlagStatus",
		EmailContentClass: "ContentClass",
	},
	PageCalendar: {
		CalTimezone: "Timezone", CalAllDayEvent: "AllDayEvent",
		CalAttendees: "Attendees", CalAttendee: "Attendee",
		CalAttendeeEmail: "Email", CalAttendeeName: "Name",
		CalBusyStatus: "BusyStatus", CalDtStamp: "DtStamp",
		CalEndTime: "EndTime", CalLocation: "Location",
		CalMeetingStatus: "MeetingStatus", CalOrganizerEmail: "OrganizerEmail",
		CalOrganizerName: "OrganizerName", CalRecurrence: "Recurrence",
		CalReminder: "Reminder", CalSensitivity: "Sensitivity",
		CalSubject: "Subject", CalStartTime: "StartTime", CalUID: "UID",
		CalAttendeeStatus: "AttendeeStatus", CalAttendeeType: "AttendeeType",
	},
	PageFolderHierarchy: {
		FHFolders: "Folders", FHFolder: "Folder", FHDisplayName: "DisplayName",
		FHServerID: "ServerId", FHParentID: "ParentId", FHType: "Type",
		FHResponse: "Response", FHStatus: "Status",
		FHContentClass: "ContentClass", FHChanges: "Changes", FHAdd: "Add",
		FHDelete: "Delete", FHUpdate: "Update", FHSyncKey: "SyncKey",
		FHFolderCreate: "FolderCreate", FHFolderDelete: "FolderDelete",
		FHFolderUpdate: "FolderUpdate", FHFolderSync: "FolderSync",
		FHCount: "Count",
	},
	PageMeetingResponse: {
		MRCalendarID: "CalendarId", MRCollectionID: "CollectionId",
		MRMeetingResponse: "MeetingResponse", MRRequestID: "RequestId",
		MRRequest: "Request", MRResult: "Result", MRStatus: "Status",
		MRUserResponse: "UserResponse", MRInstanceID: "InstanceId",
	},
	PageTasks: {
		TaskBody: "Body", TaskComplete: "Complete",
		TaskDateCompleted: "DateCompleted", TaskDueDate: "DueDate",
		TaskUtcDueDate: "UtcDueDate", TaskImportance: "Importance",
		TaskReminderSet: "ReminderSet", TaskSensitivity: "Sensitivity",
		TaskStartDate: "StartDate", TaskUtcStartDate: "UtcStartDate",
		TaskSubject: "Subject",
	},
	PageProvision: {
		ProvProvision: "Provision", ProvPolicies: "Policies",
		ProvPolicy: "Policy", ProvPolicyType: "PolicyType",
		ProvPolicyKey: "PolicyKey", ProvData: "Data", ProvStatus: "Status",
		ProvRemoteWipe: "RemoteWipe", ProvEASProvisionDoc: "EASProvisionDoc",
	},
	PageAirSyncBase: {
		ASBBodyPreference: "BodyPreference", ASBType: "Type",
		ASBTruncationSize: "TruncationSize", ASBAllOrNone: "AllOrNone",
		ASBBody: "Body", ASBData: "Data", ASBEstimatedSize: "EstimatedDataSize",
		ASBTruncated: "Truncated", ASBAttachments: "Attachments",
		ASBAttachment: "Attachment", ASBDisplayName: "DisplayName",
		ASBFileReference: "FileReference", ASBMethod: "Method",
		ASBContentID: "ContentId", ASBContentLoc: "ContentLocation",
		ASBIsInline: "IsInline", ASBNativeBodyType: "NativeBodyType",
		ASBContentType: "ContentType",
	},
	PageItemOperations: {
		IOItemOperations: "ItemOperations", IOFetch: "Fetch", IOStore: "Store",
		IOOptions: "Options", IORange: "Range", IOTotal: "Total",
		IOProperties: "Properties", IOData: "Data", IOStatus: "Status",
		IOResponse: "Response",
	},
	PageComposeMail: {
		CMSendMail: "SendMail", CMSmartForward: "SmartForward",
		CMSmartReply: "SmartReply", CMSaveInSentItems: "SaveInSentItems",
		CMReplaceMime: "ReplaceMime", CMSource: "Source",
		CMFolderID: "FolderId", CMItemID: "ItemId", CMMime: "Mime",
		CMClientID: "ClientId", CMStatus: "Status",
	},
}

// KnownPage reports whether the codec has a token table for the page.
func KnownPage(page byte) bool {
	_, ok := tagNames[page]
	return ok
}

// PageName returns the namespace name of a code page.
func PageName(page byte) string {
	if name, ok := pageNames[page]; ok {
		return name
	}
	return fmt.Sprintf("Page%d", page)
}

// TagName returns a readable name for a page/tag pair, for logs and errors.
func TagName(page, tag byte) string {
	if tags, ok := tagNames[page]; ok {
		if name, ok := tags[tag]; ok {
			return PageName(page) + ":" + name
		}
	}
	return fmt.Sprintf("%s:0x%02X", PageName(page), tag)
}
