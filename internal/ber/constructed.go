package ber

// Constructed type support. BER requires the length of a constructed value
// to precede its contents, but callers build contents incrementally. The
// Begin* methods write the tag and remember where the contents start; the
// matching End* method measures the contents and splices the definite
// length in front of them.

// BeginSequence starts a SEQUENCE. It returns a position token that must be
// passed to EndSequence once the contents have been written.
func (e *Encoder) BeginSequence() int {
	return e.beginConstructed(ClassUniversal, TagSequence)
}

// EndSequence finishes a SEQUENCE started with BeginSequence.
func (e *Encoder) EndSequence(pos int) error {
	return e.endConstructed(pos)
}

// BeginSet starts a SET. It returns a position token that must be passed to
// EndSet once the contents have been written.
func (e *Encoder) BeginSet() int {
	return e.beginConstructed(ClassUniversal, TagSet)
}

// EndSet finishes a SET started with BeginSet.
func (e *Encoder) EndSet(pos int) error {
	return e.endConstructed(pos)
}

// WriteApplicationTag starts an application-tagged value. LDAP protocol
// operations are application tagged; most are constructed, but a few
// (UnbindRequest, AbandonRequest, DelRequest) are primitive.
func (e *Encoder) WriteApplicationTag(number int, constructed bool) int {
	flag := TypePrimitive
	if constructed {
		flag = TypeConstructed
	}
	return e.beginConstructed(ClassApplication, number, flag)
}

// EndApplicationTag finishes a value started with WriteApplicationTag.
func (e *Encoder) EndApplicationTag(pos int) error {
	return e.endConstructed(pos)
}

// WriteContextTag starts a context-specific tagged value.
func (e *Encoder) WriteContextTag(number int, constructed bool) int {
	flag := TypePrimitive
	if constructed {
		flag = TypeConstructed
	}
	return e.beginConstructed(ClassContextSpecific, number, flag)
}

// EndContextTag finishes a value started with WriteContextTag.
func (e *Encoder) EndContextTag(pos int) error {
	return e.endConstructed(pos)
}

// beginConstructed writes the tag and returns the offset where the
// contents begin (the length bytes will be inserted there).
func (e *Encoder) beginConstructed(class, number int, flag ...int) int {
	constructed := TypeConstructed
	if len(flag) > 0 {
		constructed = flag[0]
	}
	// Tag numbers used by LDAP all fit in short form; WriteTag handles the
	// long form if a caller ever exceeds 30.
	_ = e.WriteTag(class, constructed, number)
	return len(e.buf)
}

// endConstructed computes the length of the contents written since pos and
// splices the encoded length in front of them.
func (e *Encoder) endConstructed(pos int) error {
	if pos < 0 || pos > len(e.buf) {
		return ErrUnbalancedConstructed
	}

	contentLen := len(e.buf) - pos

	// Encode the length into a scratch encoder, then shift the contents to
	// make room and copy the length bytes in.
	scratch := Encoder{buf: make([]byte, 0, 5)}
	if err := scratch.WriteLength(contentLen); err != nil {
		return err
	}
	lengthBytes := scratch.buf

	e.buf = append(e.buf, lengthBytes...) // grow
	copy(e.buf[pos+len(lengthBytes):], e.buf[pos:pos+contentLen])
	copy(e.buf[pos:], lengthBytes)

	return nil
}
