package service

// EventPusher delivers server-initiated events to every live connection of a
// user. Implemented by the websocket hub; a nil pusher means no live
// delivery, which every service tolerates.
type EventPusher interface {
	Push(userID string, event string, data map[string]interface{})
}
