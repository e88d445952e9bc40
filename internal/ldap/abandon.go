package ldap

import (
	"github.com/probelab/ldapprobe/internal/ber"
)

// AbandonRequest asks the server to stop processing an outstanding request.
// Per RFC 4511 Section 4.11:
// AbandonRequest ::= [APPLICATION 16] MessageID
//
// The operation is implicitly tagged, so the contents are the bare integer
// value bytes of the abandoned message ID. The server never answers an
// abandon request.
type AbandonRequest struct {
	// MessageID identifies the request to abandon
	MessageID int
}

// Encode serializes the abandon request contents for use as a RawOperation.
func (r *AbandonRequest) Encode() (*RawOperation, error) {
	if r.MessageID < MinMessageID || r.MessageID > MaxMessageID {
		return nil, ErrInvalidMessageID
	}
	return &RawOperation{
		Tag:  ApplicationAbandonRequest,
		Data: ber.IntegerBytes(int64(r.MessageID)),
	}, nil
}

// ParseAbandonRequest parses abandon request contents from a RawOperation.
func ParseAbandonRequest(op *RawOperation) (*AbandonRequest, error) {
	if op == nil {
		return nil, ErrMissingOperation
	}

	id, err := ber.DecodeIntegerBytes(op.Data)
	if err != nil {
		return nil, NewParseError(0, "cannot read abandoned message ID", err)
	}
	if id < MinMessageID || id > MaxMessageID {
		return nil, NewParseError(0, "abandoned message ID out of range", ErrInvalidMessageID)
	}

	return &AbandonRequest{MessageID: int(id)}, nil
}

// UnbindRequest terminates the session. Per RFC 4511 Section 4.3:
// UnbindRequest ::= [APPLICATION 2] NULL
//
// The implicit tag replaces the NULL tag, leaving empty contents. The
// server never answers an unbind request; both sides simply close.
type UnbindRequest struct{}

// Encode serializes the unbind request contents for use as a RawOperation.
func (r *UnbindRequest) Encode() (*RawOperation, error) {
	return &RawOperation{
		Tag:  ApplicationUnbindRequest,
		Data: nil,
	}, nil
}
