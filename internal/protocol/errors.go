package protocol

// ErrorCode is the numeric outcome of a command, carried in every response.
// Codes are grouped by hundreds: 1xx session state, 2xx credentials and user
// data, 3xx scene events, 4xx data streams. OK and MISSING_CREDENTIALS keep
// their historical values.
type ErrorCode int

const (
	ErrOK ErrorCode = 0

	ErrSessionAddFailed            ErrorCode = 101
	ErrSessionNotFound             ErrorCode = 102
	ErrSessionDeleteUnauthorized   ErrorCode = 103
	ErrSessionNotEmpty             ErrorCode = 104
	ErrSessionUserAlreadyInSession ErrorCode = 105
	ErrSessionUserInOtherSession   ErrorCode = 106
	ErrSessionUserNotInAnySession  ErrorCode = 107
	ErrSessionUserNotInSession     ErrorCode = 108
	ErrSessionUserNotInSameSession ErrorCode = 109

	ErrUserDataUserNotFound    ErrorCode = 201
	ErrUserDataMissingDataJSON ErrorCode = 202
	ErrMissingCredentials      ErrorCode = 204

	ErrSceneEventNoMaster      ErrorCode = 301
	ErrSceneEventNoData        ErrorCode = 302
	ErrSceneEventNoTargetID    ErrorCode = 303
	ErrSceneEventUserNotMaster ErrorCode = 304

	ErrStreamDataMissingKind ErrorCode = 401
	ErrStreamDataMissingUser ErrorCode = 402
)

var errorMessages = map[ErrorCode]string{
	ErrOK: "OK",

	ErrSessionAddFailed:            "The session could not be created",
	ErrSessionNotFound:             "No session with the given ID exists",
	ErrSessionDeleteUnauthorized:   "Only the session administrator may delete the session",
	ErrSessionNotEmpty:             "The session still has members",
	ErrSessionUserAlreadyInSession: "The user has already joined this session",
	ErrSessionUserInOtherSession:   "The user has already joined another session",
	ErrSessionUserNotInAnySession:  "The user has not joined any session",
	ErrSessionUserNotInSession:     "The user is not a member of this session",
	ErrSessionUserNotInSameSession: "The target user is not a member of the same session",

	ErrUserDataUserNotFound:    "No user with the given ID exists",
	ErrUserDataMissingDataJSON: "The request has no userDataJson field",
	ErrMissingCredentials:      "The user credentials are missing",

	ErrSceneEventNoMaster:      "The session has no master",
	ErrSceneEventNoData:        "The scene event carries no data",
	ErrSceneEventNoTargetID:    "The scene event has no target user ID",
	ErrSceneEventUserNotMaster: "Only the session master may send this scene event",

	ErrStreamDataMissingKind: "The request has no stream type",
	ErrStreamDataMissingUser: "The request has no publisher user ID",
}

// Message returns the human readable description for the code. Unlisted
// codes map to the empty string.
func (c ErrorCode) Message() string {
	return errorMessages[c]
}
