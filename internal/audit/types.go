package audit

import "time"

// Action names a state-changing operation recorded in the log.
type Action string

const (
	ActionUserLogin              Action = "USER_LOGIN"
	ActionUserLogout             Action = "USER_LOGOUT"
	ActionUserCreated            Action = "USER_CREATED"
	ActionUserInvited            Action = "USER_INVITED"
	ActionUserRegistered         Action = "USER_REGISTERED"
	ActionUserRoleChanged        Action = "USER_ROLE_CHANGED"
	ActionUserProfileUpdated     Action = "USER_PROFILE_UPDATED"
	ActionPasswordResetRequested Action = "PASSWORD_RESET_REQUESTED"
	ActionPasswordResetCompleted Action = "PASSWORD_RESET_COMPLETED"
	ActionContentCreated         Action = "CONTENT_CREATED"
	ActionContentUpdated         Action = "CONTENT_UPDATED"
	ActionContentStatusChanged   Action = "CONTENT_STATUS_CHANGED"
	ActionContentScheduled       Action = "CONTENT_SCHEDULED"
	ActionContentDeleted         Action = "CONTENT_DELETED"
	ActionContentRestored        Action = "CONTENT_RESTORED"
	ActionContentPurged          Action = "CONTENT_PERMANENTLY_DELETED"
)

// Entry is an immutable audit record. IDs increase strictly with append order.
type Entry struct {
	ID         int64     `json:"id"`
	Timestamp  time.Time `json:"timestamp"`
	Action     Action    `json:"action"`
	Details    string    `json:"details"`
	ActorEmail string    `json:"actorEmail,omitempty"`
	RequestID  string    `json:"requestId,omitempty"`
}
