package ctxkey

const SessionId = "session_id"
