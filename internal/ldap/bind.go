package ldap

import (
	"errors"

	"github.com/probelab/ldapprobe/internal/ber"
)

// Context tag inside BindRequest for simple authentication
const contextTagSimpleAuth = 0

// SupportedLDAPVersion is the protocol version the probe speaks.
const SupportedLDAPVersion = 3

// ErrUnsupportedAuth is returned when a bind request carries an
// authentication choice other than simple.
var ErrUnsupportedAuth = errors.New("ldap: only simple authentication is supported")

// BindRequest represents an LDAP bind request with simple authentication.
// Per RFC 4511 Section 4.2:
// BindRequest ::= [APPLICATION 0] SEQUENCE {
//
//	version                 INTEGER (1 .. 127),
//	name                    LDAPDN,
//	authentication          AuthenticationChoice
//
// }
type BindRequest struct {
	// Version is the LDAP protocol version (always 3)
	Version int
	// Name is the DN to bind as
	Name string
	// Password is the simple authentication password
	Password []byte
}

// NewBindRequest creates a version 3 simple bind request.
func NewBindRequest(name string, password []byte) *BindRequest {
	return &BindRequest{
		Version:  SupportedLDAPVersion,
		Name:     name,
		Password: password,
	}
}

// Encode serializes the bind request contents for use as a RawOperation.
func (r *BindRequest) Encode() (*RawOperation, error) {
	enc := ber.NewEncoder(64 + len(r.Name) + len(r.Password))

	if err := enc.WriteInteger(int64(r.Version)); err != nil {
		return nil, err
	}
	if err := enc.WriteOctetString([]byte(r.Name)); err != nil {
		return nil, err
	}
	// simple [0] OCTET STRING
	if err := enc.WriteTaggedValue(contextTagSimpleAuth, false, r.Password); err != nil {
		return nil, err
	}

	return &RawOperation{
		Tag:  ApplicationBindRequest,
		Data: enc.Bytes(),
	}, nil
}

// ParseBindRequest parses bind request contents from a RawOperation.
func ParseBindRequest(op *RawOperation) (*BindRequest, error) {
	if op == nil {
		return nil, ErrMissingOperation
	}

	dec := ber.NewDecoder(op.Data)

	version, err := dec.ReadInteger()
	if err != nil {
		return nil, NewParseError(dec.Offset(), "cannot read bind version", err)
	}

	name, err := dec.ReadOctetString()
	if err != nil {
		return nil, NewParseError(dec.Offset(), "cannot read bind DN", err)
	}

	tagNumber, _, password, err := dec.ReadTaggedValue()
	if err != nil {
		return nil, NewParseError(dec.Offset(), "cannot read authentication choice", err)
	}
	if tagNumber != contextTagSimpleAuth {
		return nil, ErrUnsupportedAuth
	}

	return &BindRequest{
		Version:  int(version),
		Name:     string(name),
		Password: password,
	}, nil
}

// BindResponse represents an LDAP bind response.
// BindResponse ::= [APPLICATION 1] SEQUENCE { COMPONENTS OF LDAPResult, ... }
type BindResponse struct {
	Result
}

// Encode serializes the bind response contents for use as a RawOperation.
func (r *BindResponse) Encode() (*RawOperation, error) {
	enc := ber.NewEncoder(32 + len(r.MatchedDN) + len(r.DiagnosticMessage))

	if err := encodeResult(enc, &r.Result); err != nil {
		return nil, err
	}

	return &RawOperation{
		Tag:  ApplicationBindResponse,
		Data: enc.Bytes(),
	}, nil
}

// ParseBindResponse parses bind response contents from a RawOperation.
func ParseBindResponse(op *RawOperation) (*BindResponse, error) {
	if op == nil {
		return nil, ErrMissingOperation
	}

	dec := ber.NewDecoder(op.Data)
	result, err := parseResult(dec)
	if err != nil {
		return nil, err
	}

	return &BindResponse{Result: *result}, nil
}
