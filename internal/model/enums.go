package model

type SessionStatus string

const (
	SessionStatusWaiting   SessionStatus = "waiting"
	SessionStatusActive    SessionStatus = "active"
	SessionStatusPaused    SessionStatus = "paused"
	SessionStatusCompleted SessionStatus = "completed"
	SessionStatusCancelled SessionStatus = "cancelled"
)

// Terminal reports whether no further mutation of the session is allowed.
func (s SessionStatus) Terminal() bool {
	return s == SessionStatusCompleted || s == SessionStatusCancelled
}

type PartnerKey string

const (
	PartnerKey1 PartnerKey = "partner1"
	PartnerKey2 PartnerKey = "partner2"
)

func (k PartnerKey) Valid() bool {
	return k == PartnerKey1 || k == PartnerKey2
}

type HistoryAction string

const (
	HistoryCreated       HistoryAction = "created"
	HistoryPartnerJoined HistoryAction = "partner_joined"
	HistoryStarted       HistoryAction = "started"
	HistoryPaused        HistoryAction = "paused"
	HistoryResumed       HistoryAction = "resumed"
	HistoryCompleted     HistoryAction = "completed"
	HistoryCancelled     HistoryAction = "cancelled"
)
