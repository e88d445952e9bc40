package filter

import (
	"errors"
	"fmt"

	"github.com/probelab/ldapprobe/internal/ber"
)

// Filter choice tags per RFC 4511 Section 4.5.1
const (
	tagAnd            = 0 // [0] SET OF filter
	tagOr             = 1 // [1] SET OF filter
	tagNot            = 2 // [2] Filter
	tagEqualityMatch  = 3 // [3] AttributeValueAssertion
	tagSubstrings     = 4 // [4] SubstringFilter
	tagGreaterOrEqual = 5 // [5] AttributeValueAssertion
	tagLessOrEqual    = 6 // [6] AttributeValueAssertion
	tagPresent        = 7 // [7] AttributeDescription
	tagApproxMatch    = 8 // [8] AttributeValueAssertion
)

// Substring component tags
const (
	tagSubstringInitial = 0
	tagSubstringAny     = 1
	tagSubstringFinal   = 2
)

// Codec errors
var (
	ErrUnsupportedFilterTag = errors.New("filter: unsupported filter tag")
	ErrEmptyNotFilter       = errors.New("filter: NOT filter has no child")
)

// EncodeTo writes the BER encoding of the filter into the encoder.
func (f *Filter) EncodeTo(enc *ber.Encoder) error {
	switch f.Type {
	case FilterAnd:
		return f.encodeSet(enc, tagAnd)
	case FilterOr:
		return f.encodeSet(enc, tagOr)
	case FilterNot:
		if f.Child == nil {
			return ErrEmptyNotFilter
		}
		pos := enc.WriteContextTag(tagNot, true)
		if err := f.Child.EncodeTo(enc); err != nil {
			return err
		}
		return enc.EndContextTag(pos)
	case FilterEquality:
		return f.encodeAssertion(enc, tagEqualityMatch)
	case FilterGreaterOrEqual:
		return f.encodeAssertion(enc, tagGreaterOrEqual)
	case FilterLessOrEqual:
		return f.encodeAssertion(enc, tagLessOrEqual)
	case FilterApproxMatch:
		return f.encodeAssertion(enc, tagApproxMatch)
	case FilterPresent:
		// present [7] is primitive; contents are the attribute description
		return enc.WriteTaggedValue(tagPresent, false, []byte(f.Attribute))
	case FilterSubstring:
		return f.encodeSubstrings(enc)
	default:
		return fmt.Errorf("filter: cannot encode filter type %s", f.Type)
	}
}

func (f *Filter) encodeSet(enc *ber.Encoder, tag int) error {
	pos := enc.WriteContextTag(tag, true)
	for _, child := range f.Children {
		if err := child.EncodeTo(enc); err != nil {
			return err
		}
	}
	return enc.EndContextTag(pos)
}

func (f *Filter) encodeAssertion(enc *ber.Encoder, tag int) error {
	pos := enc.WriteContextTag(tag, true)
	if err := enc.WriteOctetString([]byte(f.Attribute)); err != nil {
		return err
	}
	if err := enc.WriteOctetString(f.Value); err != nil {
		return err
	}
	return enc.EndContextTag(pos)
}

func (f *Filter) encodeSubstrings(enc *ber.Encoder) error {
	sf := f.Substring
	if sf == nil {
		sf = &SubstringFilter{Attribute: f.Attribute}
	}

	pos := enc.WriteContextTag(tagSubstrings, true)
	if err := enc.WriteOctetString([]byte(f.Attribute)); err != nil {
		return err
	}

	seq := enc.BeginSequence()
	if len(sf.Initial) > 0 {
		if err := enc.WriteTaggedValue(tagSubstringInitial, false, sf.Initial); err != nil {
			return err
		}
	}
	for _, any := range sf.Any {
		if err := enc.WriteTaggedValue(tagSubstringAny, false, any); err != nil {
			return err
		}
	}
	if len(sf.Final) > 0 {
		if err := enc.WriteTaggedValue(tagSubstringFinal, false, sf.Final); err != nil {
			return err
		}
	}
	if err := enc.EndSequence(seq); err != nil {
		return err
	}

	return enc.EndContextTag(pos)
}

// Decode reads a BER-encoded filter from the decoder.
func Decode(dec *ber.Decoder) (*Filter, error) {
	tag, _, contents, err := dec.ReadTaggedValue()
	if err != nil {
		return nil, err
	}

	switch tag {
	case tagAnd, tagOr:
		sub := ber.NewDecoder(contents)
		var children []*Filter
		for sub.Remaining() > 0 {
			child, err := Decode(sub)
			if err != nil {
				return nil, err
			}
			children = append(children, child)
		}
		if tag == tagAnd {
			return NewAndFilter(children...), nil
		}
		return NewOrFilter(children...), nil

	case tagNot:
		sub := ber.NewDecoder(contents)
		child, err := Decode(sub)
		if err != nil {
			return nil, err
		}
		return NewNotFilter(child), nil

	case tagEqualityMatch, tagGreaterOrEqual, tagLessOrEqual, tagApproxMatch:
		sub := ber.NewDecoder(contents)
		attr, err := sub.ReadOctetString()
		if err != nil {
			return nil, err
		}
		value, err := sub.ReadOctetString()
		if err != nil {
			return nil, err
		}
		switch tag {
		case tagEqualityMatch:
			return NewEqualityFilter(string(attr), value), nil
		case tagGreaterOrEqual:
			return NewGreaterOrEqualFilter(string(attr), value), nil
		case tagLessOrEqual:
			return NewLessOrEqualFilter(string(attr), value), nil
		default:
			return NewApproxMatchFilter(string(attr), value), nil
		}

	case tagPresent:
		return NewPresentFilter(string(contents)), nil

	case tagSubstrings:
		return decodeSubstrings(contents)

	default:
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedFilterTag, tag)
	}
}

func decodeSubstrings(contents []byte) (*Filter, error) {
	sub := ber.NewDecoder(contents)

	attr, err := sub.ReadOctetString()
	if err != nil {
		return nil, err
	}

	seq, err := sub.ReadSequenceContents()
	if err != nil {
		return nil, err
	}

	sf := &SubstringFilter{Attribute: string(attr)}
	for seq.Remaining() > 0 {
		tag, _, value, err := seq.ReadTaggedValue()
		if err != nil {
			return nil, err
		}
		switch tag {
		case tagSubstringInitial:
			sf.Initial = value
		case tagSubstringAny:
			sf.Any = append(sf.Any, value)
		case tagSubstringFinal:
			sf.Final = value
		default:
			return nil, fmt.Errorf("%w: substring component %d", ErrUnsupportedFilterTag, tag)
		}
	}

	return NewSubstringFilter(sf), nil
}
