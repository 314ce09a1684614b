package apperr

type Code string

const (
	CodeUnknown         Code = "UNKNOWN"
	CodeInvalidArgument Code = "INVALID_ARGUMENT"
	CodeNotFound        Code = "NOT_FOUND"
	CodeTransport       Code = "TRANSPORT"
	CodeDedupFailure    Code = "DEDUP_FAILURE"
	CodeLoadFailure     Code = "LOAD_FAILURE"
	CodeSendFailure     Code = "SEND_FAILURE"
	CodeSubscription    Code = "SUBSCRIPTION_FAILURE"
)
