package notification

import (
	"github.com/deleterr/deleterr/internal/notification/types"
)

// Re-export types from the types sub-package
type (
	NotifierType     = types.NotifierType
	Notifier         = types.Notifier
	MediaInfo        = types.MediaInfo
	LibrarySummary   = types.LibrarySummary
	RunEvent         = types.RunEvent
	LeavingSoonEvent = types.LeavingSoonEvent
)

// Re-export constants
const (
	NotifierWebhook  = types.NotifierWebhook
	NotifierDiscord  = types.NotifierDiscord
	NotifierSlack    = types.NotifierSlack
	NotifierTelegram = types.NotifierTelegram
	NotifierEmail    = types.NotifierEmail
	NotifierMock     = types.NotifierMock
)
