package ldap

import (
	"github.com/probelab/ldapprobe/internal/ber"
)

// constructedOperation reports whether the given operation tag uses a
// constructed encoding. UnbindRequest and AbandonRequest are the two
// primitive operations in the protocol (implicit NULL and INTEGER).
func constructedOperation(tag int) bool {
	switch tag {
	case ApplicationUnbindRequest, ApplicationAbandonRequest:
		return false
	default:
		return true
	}
}

// ParseMessage parses a complete BER-encoded LDAP message envelope.
// The operation contents are captured raw; callers parse them with the
// operation-specific Parse functions.
func ParseMessage(data []byte) (*Message, error) {
	if len(data) == 0 {
		return nil, ErrEmptyMessage
	}

	dec := ber.NewDecoder(data)

	seqLen, err := dec.ExpectSequence()
	if err != nil {
		return nil, NewParseError(0, "expected LDAPMessage SEQUENCE", err)
	}

	end := dec.Offset() + seqLen

	messageID, err := dec.ReadInteger()
	if err != nil {
		return nil, NewParseError(dec.Offset(), "cannot read message ID", err)
	}
	if messageID < MinMessageID || messageID > MaxMessageID {
		return nil, NewParseError(dec.Offset(), "message ID out of range", ErrInvalidMessageID)
	}

	if dec.Offset() >= end {
		return nil, NewParseError(dec.Offset(), "missing protocol operation", ErrMissingOperation)
	}

	opOffset := dec.Offset()
	class, _, number, err := dec.ReadTag()
	if err != nil {
		return nil, NewParseError(opOffset, "cannot read operation tag", err)
	}
	if class != ber.ClassApplication {
		return nil, NewParseError(opOffset, "unexpected operation tag class", ErrInvalidOperation)
	}

	opLen, err := dec.ReadLength()
	if err != nil {
		return nil, NewParseError(dec.Offset(), "cannot read operation length", err)
	}
	if dec.Offset()+opLen > len(data) {
		return nil, NewParseError(dec.Offset(), "truncated operation contents", ber.ErrUnexpectedEOF)
	}

	opData := make([]byte, opLen)
	copy(opData, data[dec.Offset():dec.Offset()+opLen])
	dec.SetOffset(dec.Offset() + opLen)

	msg := &Message{
		MessageID: int(messageID),
		Operation: &RawOperation{
			Tag:  number,
			Data: opData,
		},
	}

	// Optional controls follow the operation
	if dec.Offset() < end && dec.IsContextTag(ContextTagControls) {
		controls, err := parseControls(dec)
		if err != nil {
			return nil, err
		}
		msg.Controls = controls
	}

	return msg, nil
}

// parseControls parses the [0] Controls element of the envelope.
func parseControls(dec *ber.Decoder) ([]Control, error) {
	ctlLen, err := dec.ExpectContextTag(ContextTagControls)
	if err != nil {
		return nil, NewParseError(dec.Offset(), "cannot read controls tag", err)
	}

	end := dec.Offset() + ctlLen
	var controls []Control

	for dec.Offset() < end {
		sub, err := dec.ReadSequenceContents()
		if err != nil {
			return nil, NewParseError(dec.Offset(), "cannot read control sequence", err)
		}

		var ctl Control

		oid, err := sub.ReadOctetString()
		if err != nil {
			return nil, NewParseError(sub.Offset(), "cannot read control OID", err)
		}
		ctl.OID = string(oid)

		// criticality BOOLEAN DEFAULT FALSE; the encoder omits it when false
		if sub.Remaining() > 0 {
			class, _, number, err := sub.PeekTag()
			if err == nil && class == ber.ClassUniversal && number == ber.TagBoolean {
				crit, err := sub.ReadBoolean()
				if err != nil {
					return nil, NewParseError(sub.Offset(), "cannot read control criticality", err)
				}
				ctl.Criticality = crit
			}
		}

		if sub.Remaining() > 0 {
			value, err := sub.ReadOctetString()
			if err != nil {
				return nil, NewParseError(sub.Offset(), "cannot read control value", err)
			}
			ctl.Value = value
		}

		controls = append(controls, ctl)
	}

	return controls, nil
}

// Encode serializes the message into a complete BER-encoded LDAPMessage.
func (m *Message) Encode() ([]byte, error) {
	if m.MessageID < MinMessageID || m.MessageID > MaxMessageID {
		return nil, ErrInvalidMessageID
	}
	if m.Operation == nil {
		return nil, ErrMissingOperation
	}

	enc := ber.NewEncoder(64 + len(m.Operation.Data))

	seq := enc.BeginSequence()

	if err := enc.WriteInteger(int64(m.MessageID)); err != nil {
		return nil, err
	}

	op := enc.WriteApplicationTag(m.Operation.Tag, constructedOperation(m.Operation.Tag))
	enc.WriteRaw(m.Operation.Data)
	if err := enc.EndApplicationTag(op); err != nil {
		return nil, err
	}

	if len(m.Controls) > 0 {
		if err := encodeControls(enc, m.Controls); err != nil {
			return nil, err
		}
	}

	if err := enc.EndSequence(seq); err != nil {
		return nil, err
	}

	return enc.Bytes(), nil
}

// encodeControls writes the [0] Controls element.
func encodeControls(enc *ber.Encoder, controls []Control) error {
	pos := enc.WriteContextTag(ContextTagControls, true)

	for _, ctl := range controls {
		seq := enc.BeginSequence()
		if err := enc.WriteOctetString([]byte(ctl.OID)); err != nil {
			return err
		}
		if ctl.Criticality {
			if err := enc.WriteBoolean(true); err != nil {
				return err
			}
		}
		if ctl.Value != nil {
			if err := enc.WriteOctetString(ctl.Value); err != nil {
				return err
			}
		}
		if err := enc.EndSequence(seq); err != nil {
			return err
		}
	}

	return enc.EndContextTag(pos)
}
