package dingtalk

import "fmt"

// DecodeError reports a malformed inbound event body. The event is still
// acknowledged to the platform (as a failure) and never retried by this core.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string { return "dingtalk: decode event: " + e.Err.Error() }
func (e *DecodeError) Unwrap() error { return e.Err }

// CredentialError reports a token exchange that did not yield a bearer token.
type CredentialError struct {
	ClientID string
	Err      error
}

func (e *CredentialError) Error() string {
	return fmt.Sprintf("dingtalk: get access token for %s: %v", e.ClientID, e.Err)
}
func (e *CredentialError) Unwrap() error { return e.Err }

// DownloadLinkError reports a download-code exchange that yielded no URL.
type DownloadLinkError struct {
	Err error
}

func (e *DownloadLinkError) Error() string { return "dingtalk: resolve download url: " + e.Err.Error() }
func (e *DownloadLinkError) Unwrap() error { return e.Err }

// TransferError reports a media fetch that returned a non-success status.
type TransferError struct {
	Status int
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("dingtalk: media transfer failed with status %d", e.Status)
}

// ReplyRejected reports a platform-side non-zero errcode on an otherwise
// successful webhook POST. It is logged, never retried.
type ReplyRejected struct {
	Code int
	Msg  string
}

func (e *ReplyRejected) Error() string {
	return fmt.Sprintf("dingtalk: reply rejected: errcode=%d errmsg=%s", e.Code, e.Msg)
}
