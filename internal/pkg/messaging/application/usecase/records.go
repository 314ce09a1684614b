package usecase

import (
	messaging "github.com/sevenatma743-beep/streetconnect/internal/pkg/messaging/application/domain"
	repository "github.com/sevenatma743-beep/streetconnect/internal/pkg/messaging/persistence/repository/port"
)

// memberFromRecord resolves the raw joined profile through the single
// normalization accessor. A profile the accessor cannot resolve stays nil;
// callers render such members degraded instead of failing.
func memberFromRecord(rec repository.MemberRecord) messaging.Member {
	m := rec.Member
	if p, ok := messaging.NormalizeProfile(rec.ProfileRaw); ok {
		m.Profile = &p
	}
	return m
}

func messageFromRecord(rec repository.MessageRecord) messaging.Message {
	msg := rec.Message
	if p, ok := messaging.NormalizeProfile(rec.SenderRaw); ok {
		msg.Sender = &p
	}
	return msg
}
