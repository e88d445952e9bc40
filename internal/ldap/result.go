package ldap

import (
	"github.com/probelab/ldapprobe/internal/ber"
)

// Context tag inside LDAPResult for the optional referral field
const contextTagReferral = 3

// Result is the LDAPResult component shared by response operations.
// Per RFC 4511 Section 4.1.9:
// LDAPResult ::= SEQUENCE {
//
//	resultCode         ENUMERATED { ... },
//	matchedDN          LDAPDN,
//	diagnosticMessage  LDAPString,
//	referral           [3] Referral OPTIONAL
//
// }
type Result struct {
	ResultCode        ResultCode
	MatchedDN         string
	DiagnosticMessage string
	Referral          []string
}

// Success reports whether the result code indicates success.
func (r *Result) Success() bool {
	return r.ResultCode == ResultSuccess
}

// encodeResult writes the LDAPResult fields into the encoder. The fields
// are written bare, without an enclosing sequence, because response
// operations inline them directly under the application tag.
func encodeResult(enc *ber.Encoder, r *Result) error {
	if err := enc.WriteEnumerated(int64(r.ResultCode)); err != nil {
		return err
	}
	if err := enc.WriteOctetString([]byte(r.MatchedDN)); err != nil {
		return err
	}
	if err := enc.WriteOctetString([]byte(r.DiagnosticMessage)); err != nil {
		return err
	}

	if len(r.Referral) > 0 {
		pos := enc.WriteContextTag(contextTagReferral, true)
		for _, url := range r.Referral {
			if err := enc.WriteOctetString([]byte(url)); err != nil {
				return err
			}
		}
		if err := enc.EndContextTag(pos); err != nil {
			return err
		}
	}

	return nil
}

// parseResult reads the LDAPResult fields from the decoder.
func parseResult(dec *ber.Decoder) (*Result, error) {
	code, err := dec.ReadEnumerated()
	if err != nil {
		return nil, NewParseError(dec.Offset(), "cannot read result code", err)
	}

	matchedDN, err := dec.ReadOctetString()
	if err != nil {
		return nil, NewParseError(dec.Offset(), "cannot read matched DN", err)
	}

	diagnostic, err := dec.ReadOctetString()
	if err != nil {
		return nil, NewParseError(dec.Offset(), "cannot read diagnostic message", err)
	}

	result := &Result{
		ResultCode:        ResultCode(code),
		MatchedDN:         string(matchedDN),
		DiagnosticMessage: string(diagnostic),
	}

	if dec.Remaining() > 0 && dec.IsContextTag(contextTagReferral) {
		refLen, err := dec.ExpectContextTag(contextTagReferral)
		if err != nil {
			return nil, NewParseError(dec.Offset(), "cannot read referral tag", err)
		}
		end := dec.Offset() + refLen
		for dec.Offset() < end {
			url, err := dec.ReadOctetString()
			if err != nil {
				return nil, NewParseError(dec.Offset(), "cannot read referral URL", err)
			}
			result.Referral = append(result.Referral, string(url))
		}
	}

	return result, nil
}
