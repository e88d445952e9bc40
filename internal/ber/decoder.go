package ber

// Decoder decodes ASN.1 values using BER (Basic Encoding Rules).
type Decoder struct {
	data   []byte
	offset int
}

// NewDecoder creates a new BER decoder for the given data.
func NewDecoder(data []byte) *Decoder {
	return &Decoder{
		data:   data,
		offset: 0,
	}
}

// Offset returns the current read position in the data.
func (d *Decoder) Offset() int {
	return d.offset
}

// Remaining returns the number of bytes remaining to be read.
func (d *Decoder) Remaining() int {
	return len(d.data) - d.offset
}

// SetOffset sets the current read position.
func (d *Decoder) SetOffset(offset int) {
	d.offset = offset
}

// ReadTag reads a BER tag from the current position.
// Returns the tag class, constructed flag, and tag number.
func (d *Decoder) ReadTag() (class, constructed, number int, err error) {
	startOffset := d.offset

	if d.offset >= len(d.data) {
		return 0, 0, 0, NewDecodeError(startOffset, "cannot read tag", ErrUnexpectedEOF)
	}

	firstByte := d.data[d.offset]
	d.offset++

	class = int(firstByte & 0xC0)
	constructed = int(firstByte & 0x20)
	number = int(firstByte & 0x1F)

	// Long form tag: all 5 number bits set
	if number == 0x1F {
		number, err = d.readBase128()
		if err != nil {
			return 0, 0, 0, NewDecodeError(startOffset, "cannot read long form tag number", err)
		}
	}

	return class, constructed, number, nil
}

// readBase128 reads a base-128 encoded integer (used for long form tags).
func (d *Decoder) readBase128() (int, error) {
	result := 0
	for {
		if d.offset >= len(d.data) {
			return 0, ErrUnexpectedEOF
		}

		b := d.data[d.offset]
		d.offset++

		if result > (1 << 24) {
			return 0, NewDecodeError(d.offset-1, "tag number overflow", nil)
		}

		result = (result << 7) | int(b&0x7F)

		if b&0x80 == 0 {
			break
		}
	}
	return result, nil
}

// ReadLength reads a BER length value from the current position.
func (d *Decoder) ReadLength() (int, error) {
	startOffset := d.offset

	if d.offset >= len(d.data) {
		return 0, NewDecodeError(startOffset, "cannot read length", ErrUnexpectedEOF)
	}

	firstByte := d.data[d.offset]
	d.offset++

	// Short form: bit 8 is 0, bits 1-7 contain the length
	if firstByte&LengthLongFormBit == 0 {
		return int(firstByte), nil
	}

	numBytes := int(firstByte & 0x7F)

	// 0x80 alone means indefinite length
	if numBytes == 0 {
		return 0, NewDecodeError(startOffset, "indefinite length encoding", ErrIndefiniteLength)
	}

	if d.offset+numBytes > len(d.data) {
		return 0, NewDecodeError(startOffset, "truncated length encoding", ErrUnexpectedEOF)
	}

	length := 0
	for i := 0; i < numBytes; i++ {
		if length > (1 << 24) {
			return 0, NewDecodeError(startOffset, "length value overflow", ErrInvalidLength)
		}
		length = (length << 8) | int(d.data[d.offset])
		d.offset++
	}

	return length, nil
}

// ReadBoolean reads a BER-encoded boolean value.
func (d *Decoder) ReadBoolean() (bool, error) {
	startOffset := d.offset

	class, constructed, number, err := d.ReadTag()
	if err != nil {
		return false, err
	}

	if class != ClassUniversal || constructed != TypePrimitive || number != TagBoolean {
		return false, &TagMismatchError{
			Offset:            startOffset,
			ExpectedClass:     ClassUniversal,
			ExpectedNumber:    TagBoolean,
			ActualClass:       class,
			ActualNumber:      number,
			ActualConstructed: constructed,
		}
	}

	length, err := d.ReadLength()
	if err != nil {
		return false, err
	}

	if length != 1 {
		return false, NewDecodeError(startOffset, "boolean must have length 1", ErrInvalidBoolean)
	}

	if d.offset >= len(d.data) {
		return false, NewDecodeError(d.offset, "cannot read boolean value", ErrUnexpectedEOF)
	}

	value := d.data[d.offset]
	d.offset++

	// Per X.690, FALSE is 0x00, TRUE is any non-zero value
	return value != 0x00, nil
}

// ReadInteger reads a BER-encoded integer value.
func (d *Decoder) ReadInteger() (int64, error) {
	startOffset := d.offset

	class, constructed, number, err := d.ReadTag()
	if err != nil {
		return 0, err
	}

	if class != ClassUniversal || constructed != TypePrimitive || number != TagInteger {
		return 0, &TagMismatchError{
			Offset:            startOffset,
			ExpectedClass:     ClassUniversal,
			ExpectedNumber:    TagInteger,
			ActualClass:       class,
			ActualNumber:      number,
			ActualConstructed: constructed,
		}
	}

	return d.readIntegerBody(startOffset)
}

// ReadEnumerated reads a BER-encoded enumerated value.
func (d *Decoder) ReadEnumerated() (int64, error) {
	startOffset := d.offset

	class, constructed, number, err := d.ReadTag()
	if err != nil {
		return 0, err
	}

	if class != ClassUniversal || constructed != TypePrimitive || number != TagEnumerated {
		return 0, &TagMismatchError{
			Offset:            startOffset,
			ExpectedClass:     ClassUniversal,
			ExpectedNumber:    TagEnumerated,
			ActualClass:       class,
			ActualNumber:      number,
			ActualConstructed: constructed,
		}
	}

	return d.readIntegerBody(startOffset)
}

// readIntegerBody reads a length-prefixed two's complement integer value
// after its tag has been consumed.
func (d *Decoder) readIntegerBody(startOffset int) (int64, error) {
	length, err := d.ReadLength()
	if err != nil {
		return 0, err
	}

	if length == 0 {
		return 0, NewDecodeError(startOffset, "integer must have at least 1 byte", ErrInvalidInteger)
	}
	if length > 8 {
		return 0, NewDecodeError(startOffset, "integer too large for int64", ErrInvalidInteger)
	}
	if d.offset+length > len(d.data) {
		return 0, NewDecodeError(d.offset, "truncated integer value", ErrUnexpectedEOF)
	}

	value, err := DecodeIntegerBytes(d.data[d.offset : d.offset+length])
	if err != nil {
		return 0, NewDecodeError(d.offset, "invalid integer value", err)
	}
	d.offset += length
	return value, nil
}

// ReadOctetString reads a BER-encoded octet string.
func (d *Decoder) ReadOctetString() ([]byte, error) {
	startOffset := d.offset

	class, constructed, number, err := d.ReadTag()
	if err != nil {
		return nil, err
	}

	if class != ClassUniversal || number != TagOctetString {
		return nil, &TagMismatchError{
			Offset:            startOffset,
			ExpectedClass:     ClassUniversal,
			ExpectedNumber:    TagOctetString,
			ActualClass:       class,
			ActualNumber:      number,
			ActualConstructed: constructed,
		}
	}

	// Only primitive encoding is supported; LDAP never sends constructed
	// octet strings.
	if constructed != TypePrimitive {
		return nil, NewDecodeError(startOffset, "constructed octet string not supported", nil)
	}

	length, err := d.ReadLength()
	if err != nil {
		return nil, err
	}

	if d.offset+length > len(d.data) {
		return nil, NewDecodeError(d.offset, "truncated octet string value", ErrUnexpectedEOF)
	}

	value := make([]byte, length)
	copy(value, d.data[d.offset:d.offset+length])
	d.offset += length

	return value, nil
}

// ReadNull reads a BER-encoded null value.
func (d *Decoder) ReadNull() error {
	startOffset := d.offset

	class, constructed, number, err := d.ReadTag()
	if err != nil {
		return err
	}

	if class != ClassUniversal || constructed != TypePrimitive || number != TagNull {
		return &TagMismatchError{
			Offset:            startOffset,
			ExpectedClass:     ClassUniversal,
			ExpectedNumber:    TagNull,
			ActualClass:       class,
			ActualNumber:      number,
			ActualConstructed: constructed,
		}
	}

	length, err := d.ReadLength()
	if err != nil {
		return err
	}

	if length != 0 {
		return NewDecodeError(startOffset, "null must have length 0", ErrInvalidNull)
	}

	return nil
}

// PeekTag reads a tag without advancing the offset.
func (d *Decoder) PeekTag() (class, constructed, number int, err error) {
	savedOffset := d.offset
	class, constructed, number, err = d.ReadTag()
	d.offset = savedOffset
	return
}

// Skip skips the current TLV (Tag-Length-Value) element.
func (d *Decoder) Skip() error {
	startOffset := d.offset

	if _, _, _, err := d.ReadTag(); err != nil {
		return err
	}

	length, err := d.ReadLength()
	if err != nil {
		return err
	}

	if d.offset+length > len(d.data) {
		return NewDecodeError(startOffset, "truncated value", ErrUnexpectedEOF)
	}

	d.offset += length
	return nil
}

// ReadTaggedValue reads a context-specific tagged value.
// Returns the tag number, constructed flag, and the raw contents.
func (d *Decoder) ReadTaggedValue() (tagNumber int, constructed bool, value []byte, err error) {
	startOffset := d.offset

	class, constructedFlag, number, err := d.ReadTag()
	if err != nil {
		return 0, false, nil, err
	}

	if class != ClassContextSpecific {
		return 0, false, nil, &TagMismatchError{
			Offset:            startOffset,
			ExpectedClass:     ClassContextSpecific,
			ExpectedNumber:    -1, // any number
			ActualClass:       class,
			ActualNumber:      number,
			ActualConstructed: constructedFlag,
		}
	}

	length, err := d.ReadLength()
	if err != nil {
		return 0, false, nil, err
	}

	if d.offset+length > len(d.data) {
		return 0, false, nil, NewDecodeError(d.offset, "truncated tagged value", ErrUnexpectedEOF)
	}

	value = make([]byte, length)
	copy(value, d.data[d.offset:d.offset+length])
	d.offset += length

	return number, constructedFlag == TypeConstructed, value, nil
}

// ExpectSequence reads and validates a SEQUENCE tag, returning the content
// length. The caller should read exactly 'length' bytes after this call.
func (d *Decoder) ExpectSequence() (length int, err error) {
	return d.expectTag(ClassUniversal, TagSequence, true)
}

// ExpectSet reads and validates a SET tag, returning the content length.
func (d *Decoder) ExpectSet() (length int, err error) {
	return d.expectTag(ClassUniversal, TagSet, true)
}

// ExpectContextTag reads and validates a context-specific tag with the
// given number, returning the content length.
func (d *Decoder) ExpectContextTag(num int) (length int, err error) {
	return d.expectTag(ClassContextSpecific, num, false)
}

// ExpectApplicationTag reads and validates an application-specific tag with
// the given number, returning the content length.
func (d *Decoder) ExpectApplicationTag(num int) (length int, err error) {
	return d.expectTag(ClassApplication, num, false)
}

// expectTag validates the next tag's class and number. When
// mustBeConstructed is set the constructed flag is also checked.
func (d *Decoder) expectTag(wantClass, wantNumber int, mustBeConstructed bool) (int, error) {
	startOffset := d.offset

	class, constructed, number, err := d.ReadTag()
	if err != nil {
		return 0, err
	}

	if class != wantClass || number != wantNumber ||
		(mustBeConstructed && constructed != TypeConstructed) {
		return 0, &TagMismatchError{
			Offset:            startOffset,
			ExpectedClass:     wantClass,
			ExpectedNumber:    wantNumber,
			ActualClass:       class,
			ActualNumber:      number,
			ActualConstructed: constructed,
		}
	}

	length, err := d.ReadLength()
	if err != nil {
		return 0, err
	}

	if d.offset+length > len(d.data) {
		return 0, NewDecodeError(startOffset, "truncated constructed content", ErrUnexpectedEOF)
	}

	return length, nil
}

// IsContextTag reports whether the next tag is a context-specific tag with
// the given number, without consuming it.
func (d *Decoder) IsContextTag(num int) bool {
	class, _, number, err := d.PeekTag()
	if err != nil {
		return false
	}
	return class == ClassContextSpecific && number == num
}

// IsApplicationTag reports whether the next tag is an application-specific
// tag with the given number, without consuming it.
func (d *Decoder) IsApplicationTag(num int) bool {
	class, _, number, err := d.PeekTag()
	if err != nil {
		return false
	}
	return class == ClassApplication && number == num
}

// ReadSequenceContents reads the contents of a SEQUENCE into a sub-decoder.
func (d *Decoder) ReadSequenceContents() (*Decoder, error) {
	length, err := d.ExpectSequence()
	if err != nil {
		return nil, err
	}

	contents := d.data[d.offset : d.offset+length]
	d.offset += length

	return NewDecoder(contents), nil
}

// ReadSetContents reads the contents of a SET into a sub-decoder.
func (d *Decoder) ReadSetContents() (*Decoder, error) {
	length, err := d.ExpectSet()
	if err != nil {
		return nil, err
	}

	contents := d.data[d.offset : d.offset+length]
	d.offset += length

	return NewDecoder(contents), nil
}
