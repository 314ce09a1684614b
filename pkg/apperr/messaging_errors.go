package apperr

var (
	ErrSelfConversation    = InvalidArg("cannot open a conversation with yourself")
	ErrMissingUser         = InvalidArg("user id is required")
	ErrMissingConversation = InvalidArg("conversation id is required")
	ErrEmptyMessage        = InvalidArg("message text cannot be empty")
	ErrConversationGone    = NotFound("conversation not found")
	ErrNotEligible         = InvalidArg("recipient does not follow you back")
)

func ErrDedupNoID(raw string) error {
	return New(CodeDedupFailure, "create-or-get returned no usable conversation id: "+raw)
}

func ErrInboxLoad(cause error) error {
	return Wrap(CodeLoadFailure, "failed to load inbox", cause)
}

func ErrConversationLoad(cause error) error {
	return Wrap(CodeLoadFailure, "failed to load conversation", cause)
}

func ErrMessageSend(cause error) error {
	return Wrap(CodeSendFailure, "failed to send message", cause)
}

func ErrFeedAttach(cause error) error {
	return Wrap(CodeSubscription, "failed to attach realtime feed", cause)
}
