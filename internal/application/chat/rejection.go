package chat

import (
	"errors"
	"fmt"
)

type Kind string

const (
	Unauthenticated  Kind = "Unauthenticated"
	PermissionDenied Kind = "PermissionDenied"
	NotFound         Kind = "NotFound"
	Duplicate        Kind = "Duplicate"
	RateLimited      Kind = "RateLimited"
	InvalidInput     Kind = "InvalidInput"
	StorageFailure   Kind = "StorageFailure"
	ProtocolFault    Kind = "ProtocolFault"
)

// Rejection is a typed refusal reported to the originating connection.
type Rejection struct {
	Kind    Kind
	Message string
	Err     error
}

func (r *Rejection) Error() string {
	if r.Err != nil {
		return fmt.Sprintf("%s: %s: %v", r.Kind, r.Message, r.Err)
	}
	return fmt.Sprintf("%s: %s", r.Kind, r.Message)
}

func (r *Rejection) Unwrap() error {
	return r.Err
}

// Fatal reports whether the connection must be closed after the notice.
func (r *Rejection) Fatal() bool {
	return r.Kind == Unauthenticated || r.Kind == ProtocolFault
}

// Silent rejections produce no notice at all.
func (r *Rejection) Silent() bool {
	return r.Kind == Duplicate
}

func reject(kind Kind, message string, err error) *Rejection {
	return &Rejection{Kind: kind, Message: message, Err: err}
}

// IsKind reports whether err is a Rejection of the given kind.
func IsKind(err error, kind Kind) bool {
	var r *Rejection
	return errors.As(err, &r) && r.Kind == kind
}
