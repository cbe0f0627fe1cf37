// Package command turns chat-style operator messages into turret actions.
//
// Messages arrive on the MQTT command topic as JSON:
//
//	{"id": "msg-42", "user": "alice", "text": "!abfire 3"}
//
// A message is acted on only when its sender is on the allowlist, it is not
// the transport's own echo, and its text starts with the command prefix.
// Recognised commands:
//
//	!abfire [n]   fire n balls (default 1, capped at command.max_burst)
//	!abreload     refill the magazine
//
// Fire requests run asynchronously with the message ID as the request tag,
// so the transport is never blocked by a running sequence.
package command
