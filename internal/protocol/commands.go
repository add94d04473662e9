// Package protocol defines the wire vocabulary shared by the command
// dispatcher and the core: command names, push event names, error codes
// and the response envelope.
package protocol

// Command names accepted over the client connection.
const (
	CmdLogin  = "Login"
	CmdLogout = "Logout"

	CmdAddSession     = "AddSession"
	CmdDeleteSession  = "DeleteSession"
	CmdJoinSession    = "JoinSession"
	CmdLeaveSession   = "LeaveSession"
	CmdGetSessionInfo = "GetSessionInfo"
	CmdGetSessions    = "GetSessions"

	CmdGetUserData    = "GetUserData"
	CmdUpdateUserData = "UpdateUserDataJson"

	CmdSendMessage      = "SendMessage"
	CmdSendMessageToAll = "SendMessageToAll"

	CmdSendSceneEventToMaster = "SendSceneEventToMaster"
	CmdSendSceneEventToUser   = "SendSceneEventToUser"
	CmdSendSceneEventToAll    = "SendSceneEventToAllUsers"

	CmdDeclareDataStream        = "DeclareDataStream"
	CmdRemoveDataStream         = "RemoveDataStream"
	CmdRegisterForDataStream    = "RegisterForDataStream"
	CmdUnregisterFromDataStream = "UnregisterFromDataStream"
	CmdSendData                 = "SendData"

	CmdGetOrchestratorVersion = "GetOrchestratorVersion"
	CmdGetNTPTime             = "GetNTPTime"
	CmdDumpData               = "DumpData"
	CmdTerminateOrchestrator  = "TerminateOrchestrator"
)

// Events pushed to clients without a prior request.
const (
	EventSessionClosed  = "SessionClosed"
	EventSessionUpdated = "SessionUpdated"

	EventMessageSent  = "MessageSent"
	EventDataReceived = "DataReceived"

	EventSceneEventToMaster = "SceneEventToMaster"
	EventSceneEventToUser   = "SceneEventToUser"
)

// Event ids carried inside SessionUpdated payloads.
const (
	SessionEventUserJoined      = "USER_JOINED_SESSION"
	SessionEventUserLeft        = "USER_LEAVED_SESSION"
	SessionEventUserDataUpdated = "USER_DATA_UPDATED"
)
