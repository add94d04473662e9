package protocol

import "encoding/json"

// Envelope is one client request: a command name, a caller-chosen
// correlation id echoed back in the response, and a command specific body.
type Envelope struct {
	Command   string          `json:"command"`
	CommandID any             `json:"commandId,omitempty"`
	Body      json.RawMessage `json:"body,omitempty"`
}

// Response is sent back for every command that expects a reply.
type Response struct {
	Error     ErrorCode `json:"error"`
	Message   string    `json:"message"`
	Body      any       `json:"body"`
	CommandID any       `json:"commandId,omitempty"`
}

// Push wraps an unsolicited server-to-client event.
type Push struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// NewResponse builds a response for the given outcome. A nil body is
// rendered as an empty object so clients never see null.
func NewResponse(code ErrorCode, body any) Response {
	if body == nil {
		body = map[string]any{}
	}
	return Response{
		Error:   code,
		Message: code.Message(),
		Body:    body,
	}
}

// NewCommandResponse builds a response correlated to the originating
// request via its command id.
func NewCommandResponse(commandID any, code ErrorCode, body any) Response {
	resp := NewResponse(code, body)
	resp.CommandID = commandID
	return resp
}
