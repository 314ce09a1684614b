package messaging

import "time"

// Unread is the pure read-state predicate: the latest message is unread for
// selfID when it was created after self's watermark and self did not send it.
// A nil watermark means nothing has ever been read.
func Unread(latest Message, lastReadAt *time.Time, selfID string) bool {
	if latest.SenderID == selfID {
		return false
	}
	if lastReadAt == nil {
		return true
	}
	return latest.CreatedAt.After(*lastReadAt)
}
