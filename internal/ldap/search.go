package ldap

import (
	"github.com/probelab/ldapprobe/internal/ber"
	"github.com/probelab/ldapprobe/internal/filter"
)

// Scope controls how deep a search descends from the base object.
// Per RFC 4511 Section 4.5.1.2.
type Scope int

const (
	// ScopeBaseObject searches only the base entry itself
	ScopeBaseObject Scope = 0
	// ScopeSingleLevel searches the immediate children of the base entry
	ScopeSingleLevel Scope = 1
	// ScopeWholeSubtree searches the base entry and all its descendants
	ScopeWholeSubtree Scope = 2
)

// String returns the string representation of the scope
func (s Scope) String() string {
	switch s {
	case ScopeBaseObject:
		return "base"
	case ScopeSingleLevel:
		return "one"
	case ScopeWholeSubtree:
		return "sub"
	default:
		return "unknown"
	}
}

// DerefAliases controls alias dereferencing during a search.
// Per RFC 4511 Section 4.5.1.3.
type DerefAliases int

const (
	// DerefNever never dereferences aliases
	DerefNever DerefAliases = 0
	// DerefInSearching dereferences aliases in subordinates of the base
	DerefInSearching DerefAliases = 1
	// DerefFindingBaseObj dereferences aliases when locating the base
	DerefFindingBaseObj DerefAliases = 2
	// DerefAlways dereferences aliases everywhere
	DerefAlways DerefAliases = 3
)

// String returns the string representation of the deref policy
func (d DerefAliases) String() string {
	switch d {
	case DerefNever:
		return "never"
	case DerefInSearching:
		return "searching"
	case DerefFindingBaseObj:
		return "finding"
	case DerefAlways:
		return "always"
	default:
		return "unknown"
	}
}

// SearchRequest represents an LDAP search request.
// Per RFC 4511 Section 4.5.1:
// SearchRequest ::= [APPLICATION 3] SEQUENCE {
//
//	baseObject      LDAPDN,
//	scope           ENUMERATED,
//	derefAliases    ENUMERATED,
//	sizeLimit       INTEGER (0 .. maxInt),
//	timeLimit       INTEGER (0 .. maxInt),
//	typesOnly       BOOLEAN,
//	filter          Filter,
//	attributes      AttributeSelection
//
// }
type SearchRequest struct {
	BaseObject   string
	Scope        Scope
	DerefAliases DerefAliases
	SizeLimit    int
	TimeLimit    int
	TypesOnly    bool
	Filter       *filter.Filter
	Attributes   []string
}

// Encode serializes the search request contents for use as a RawOperation.
func (r *SearchRequest) Encode() (*RawOperation, error) {
	enc := ber.NewEncoder(128 + len(r.BaseObject))

	if err := enc.WriteOctetString([]byte(r.BaseObject)); err != nil {
		return nil, err
	}
	if err := enc.WriteEnumerated(int64(r.Scope)); err != nil {
		return nil, err
	}
	if err := enc.WriteEnumerated(int64(r.DerefAliases)); err != nil {
		return nil, err
	}
	if err := enc.WriteInteger(int64(r.SizeLimit)); err != nil {
		return nil, err
	}
	if err := enc.WriteInteger(int64(r.TimeLimit)); err != nil {
		return nil, err
	}
	if err := enc.WriteBoolean(r.TypesOnly); err != nil {
		return nil, err
	}

	flt := r.Filter
	if flt == nil {
		flt = filter.NewPresentFilter("objectClass")
	}
	if err := flt.EncodeTo(enc); err != nil {
		return nil, err
	}

	attrs := enc.BeginSequence()
	for _, attr := range r.Attributes {
		if err := enc.WriteOctetString([]byte(attr)); err != nil {
			return nil, err
		}
	}
	if err := enc.EndSequence(attrs); err != nil {
		return nil, err
	}

	return &RawOperation{
		Tag:  ApplicationSearchRequest,
		Data: enc.Bytes(),
	}, nil
}

// ParseSearchRequest parses search request contents from a RawOperation.
func ParseSearchRequest(op *RawOperation) (*SearchRequest, error) {
	if op == nil {
		return nil, ErrMissingOperation
	}

	dec := ber.NewDecoder(op.Data)

	baseObject, err := dec.ReadOctetString()
	if err != nil {
		return nil, NewParseError(dec.Offset(), "cannot read base object", err)
	}

	scope, err := dec.ReadEnumerated()
	if err != nil {
		return nil, NewParseError(dec.Offset(), "cannot read scope", err)
	}

	deref, err := dec.ReadEnumerated()
	if err != nil {
		return nil, NewParseError(dec.Offset(), "cannot read deref aliases", err)
	}

	sizeLimit, err := dec.ReadInteger()
	if err != nil {
		return nil, NewParseError(dec.Offset(), "cannot read size limit", err)
	}

	timeLimit, err := dec.ReadInteger()
	if err != nil {
		return nil, NewParseError(dec.Offset(), "cannot read time limit", err)
	}

	typesOnly, err := dec.ReadBoolean()
	if err != nil {
		return nil, NewParseError(dec.Offset(), "cannot read types only", err)
	}

	flt, err := filter.Decode(dec)
	if err != nil {
		return nil, NewParseError(dec.Offset(), "cannot read filter", err)
	}

	req := &SearchRequest{
		BaseObject:   string(baseObject),
		Scope:        Scope(scope),
		DerefAliases: DerefAliases(deref),
		SizeLimit:    int(sizeLimit),
		TimeLimit:    int(timeLimit),
		TypesOnly:    typesOnly,
		Filter:       flt,
	}

	attrs, err := dec.ReadSequenceContents()
	if err != nil {
		return nil, NewParseError(dec.Offset(), "cannot read attribute selection", err)
	}
	for attrs.Remaining() > 0 {
		attr, err := attrs.ReadOctetString()
		if err != nil {
			return nil, NewParseError(attrs.Offset(), "cannot read attribute name", err)
		}
		req.Attributes = append(req.Attributes, string(attr))
	}

	return req, nil
}

// PartialAttribute is one attribute of a search result entry.
type PartialAttribute struct {
	Type   string
	Values [][]byte
}

// SearchResultEntry represents a single entry returned by a search.
// Per RFC 4511 Section 4.5.2:
// SearchResultEntry ::= [APPLICATION 4] SEQUENCE {
//
//	objectName      LDAPDN,
//	attributes      PartialAttributeList
//
// }
type SearchResultEntry struct {
	ObjectName string
	Attributes []PartialAttribute
}

// Encode serializes the entry contents for use as a RawOperation.
func (e *SearchResultEntry) Encode() (*RawOperation, error) {
	enc := ber.NewEncoder(128 + len(e.ObjectName))

	if err := enc.WriteOctetString([]byte(e.ObjectName)); err != nil {
		return nil, err
	}

	list := enc.BeginSequence()
	for _, attr := range e.Attributes {
		seq := enc.BeginSequence()
		if err := enc.WriteOctetString([]byte(attr.Type)); err != nil {
			return nil, err
		}
		set := enc.BeginSet()
		for _, value := range attr.Values {
			if err := enc.WriteOctetString(value); err != nil {
				return nil, err
			}
		}
		if err := enc.EndSet(set); err != nil {
			return nil, err
		}
		if err := enc.EndSequence(seq); err != nil {
			return nil, err
		}
	}
	if err := enc.EndSequence(list); err != nil {
		return nil, err
	}

	return &RawOperation{
		Tag:  ApplicationSearchResultEntry,
		Data: enc.Bytes(),
	}, nil
}

// ParseSearchResultEntry parses entry contents from a RawOperation.
func ParseSearchResultEntry(op *RawOperation) (*SearchResultEntry, error) {
	if op == nil {
		return nil, ErrMissingOperation
	}

	dec := ber.NewDecoder(op.Data)

	objectName, err := dec.ReadOctetString()
	if err != nil {
		return nil, NewParseError(dec.Offset(), "cannot read object name", err)
	}

	entry := &SearchResultEntry{ObjectName: string(objectName)}

	list, err := dec.ReadSequenceContents()
	if err != nil {
		return nil, NewParseError(dec.Offset(), "cannot read attribute list", err)
	}

	for list.Remaining() > 0 {
		sub, err := list.ReadSequenceContents()
		if err != nil {
			return nil, NewParseError(list.Offset(), "cannot read partial attribute", err)
		}

		attrType, err := sub.ReadOctetString()
		if err != nil {
			return nil, NewParseError(sub.Offset(), "cannot read attribute type", err)
		}

		attr := PartialAttribute{Type: string(attrType)}

		vals, err := sub.ReadSetContents()
		if err != nil {
			return nil, NewParseError(sub.Offset(), "cannot read attribute values", err)
		}
		for vals.Remaining() > 0 {
			value, err := vals.ReadOctetString()
			if err != nil {
				return nil, NewParseError(vals.Offset(), "cannot read attribute value", err)
			}
			attr.Values = append(attr.Values, value)
		}

		entry.Attributes = append(entry.Attributes, attr)
	}

	return entry, nil
}

// SearchResultReference represents a continuation reference returned by a
// search. SearchResultReference ::= [APPLICATION 19] SEQUENCE SIZE(1..MAX) OF uri URI
type SearchResultReference struct {
	URIs []string
}

// Encode serializes the reference contents for use as a RawOperation.
func (r *SearchResultReference) Encode() (*RawOperation, error) {
	enc := ber.NewEncoder(64)
	for _, uri := range r.URIs {
		if err := enc.WriteOctetString([]byte(uri)); err != nil {
			return nil, err
		}
	}
	return &RawOperation{
		Tag:  ApplicationSearchResultReference,
		Data: enc.Bytes(),
	}, nil
}

// ParseSearchResultReference parses reference contents from a RawOperation.
func ParseSearchResultReference(op *RawOperation) (*SearchResultReference, error) {
	if op == nil {
		return nil, ErrMissingOperation
	}

	dec := ber.NewDecoder(op.Data)
	ref := &SearchResultReference{}
	for dec.Remaining() > 0 {
		uri, err := dec.ReadOctetString()
		if err != nil {
			return nil, NewParseError(dec.Offset(), "cannot read reference URI", err)
		}
		ref.URIs = append(ref.URIs, string(uri))
	}
	return ref, nil
}

// SearchResultDone represents the final response of a search operation.
// SearchResultDone ::= [APPLICATION 5] LDAPResult
type SearchResultDone struct {
	Result
}

// Encode serializes the done contents for use as a RawOperation.
func (r *SearchResultDone) Encode() (*RawOperation, error) {
	enc := ber.NewEncoder(32 + len(r.MatchedDN) + len(r.DiagnosticMessage))

	if err := encodeResult(enc, &r.Result); err != nil {
		return nil, err
	}

	return &RawOperation{
		Tag:  ApplicationSearchResultDone,
		Data: enc.Bytes(),
	}, nil
}

// ParseSearchResultDone parses done contents from a RawOperation.
func ParseSearchResultDone(op *RawOperation) (*SearchResultDone, error) {
	if op == nil {
		return nil, ErrMissingOperation
	}

	dec := ber.NewDecoder(op.Data)
	result, err := parseResult(dec)
	if err != nil {
		return nil, err
	}

	return &SearchResultDone{Result: *result}, nil
}
