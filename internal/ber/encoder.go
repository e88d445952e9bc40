package ber

// Encoder encodes ASN.1 values using BER (Basic Encoding Rules).
// The zero value is not usable; create one with NewEncoder.
type Encoder struct {
	buf []byte
}

// NewEncoder creates a new BER encoder with an optional initial capacity.
func NewEncoder(capacity int) *Encoder {
	if capacity <= 0 {
		capacity = 64
	}
	return &Encoder{
		buf: make([]byte, 0, capacity),
	}
}

// Bytes returns the encoded bytes.
func (e *Encoder) Bytes() []byte {
	return e.buf
}

// Reset clears the encoder buffer for reuse.
func (e *Encoder) Reset() {
	e.buf = e.buf[:0]
}

// Len returns the current length of encoded data.
func (e *Encoder) Len() int {
	return len(e.buf)
}

// WriteTag writes a BER tag byte(s) to the buffer.
// class: ClassUniversal, ClassApplication, ClassContextSpecific, or ClassPrivate
// constructed: TypePrimitive or TypeConstructed
// number: tag number (0-30 for short form, >30 for long form)
func (e *Encoder) WriteTag(class, constructed, number int) error {
	if class != ClassUniversal && class != ClassApplication &&
		class != ClassContextSpecific && class != ClassPrivate {
		return ErrInvalidTagClass
	}

	if number < 0 {
		return ErrInvalidTagNumber
	}

	// Short form: tag number fits in 5 bits (0-30)
	if number <= 30 {
		tag := byte(class) | byte(constructed) | byte(number)
		e.buf = append(e.buf, tag)
		return nil
	}

	// Long form: first byte has all 5 tag bits set, number follows base-128
	firstByte := byte(class) | byte(constructed) | 0x1F
	e.buf = append(e.buf, firstByte)
	e.writeBase128(number)
	return nil
}

// writeBase128 encodes an integer in base-128 format (high bit indicates continuation)
func (e *Encoder) writeBase128(value int) {
	if value == 0 {
		e.buf = append(e.buf, 0)
		return
	}

	var bytes []byte
	for value > 0 {
		bytes = append(bytes, byte(value&0x7F))
		value >>= 7
	}

	for i := len(bytes) - 1; i >= 0; i-- {
		b := bytes[i]
		if i > 0 {
			b |= 0x80 // continuation bit for all but the last byte
		}
		e.buf = append(e.buf, b)
	}
}

// WriteLength writes a BER length value to the buffer.
// Uses short form for lengths 0-127, long form for larger values.
func (e *Encoder) WriteLength(length int) error {
	if length < 0 {
		return ErrNegativeLength
	}

	if length <= MaxShortFormLength {
		e.buf = append(e.buf, byte(length))
		return nil
	}

	// Long form: first byte indicates number of length bytes
	numBytes := 0
	temp := length
	for temp > 0 {
		numBytes++
		temp >>= 8
	}

	if numBytes > 127 {
		return ErrLengthOverflow
	}

	e.buf = append(e.buf, byte(LengthLongFormBit|numBytes))

	for i := numBytes - 1; i >= 0; i-- {
		e.buf = append(e.buf, byte(length>>(i*8)))
	}

	return nil
}

// WriteBoolean writes a BER-encoded boolean value.
// Per X.690, FALSE is encoded as 0x00, TRUE as any non-zero value (we use 0xFF).
func (e *Encoder) WriteBoolean(v bool) error {
	if err := e.WriteTag(ClassUniversal, TypePrimitive, TagBoolean); err != nil {
		return err
	}
	if err := e.WriteLength(1); err != nil {
		return err
	}
	if v {
		e.buf = append(e.buf, 0xFF)
	} else {
		e.buf = append(e.buf, 0x00)
	}
	return nil
}

// WriteInteger writes a BER-encoded integer value.
// Uses the minimum number of octets with two's complement representation.
func (e *Encoder) WriteInteger(v int64) error {
	if err := e.WriteTag(ClassUniversal, TypePrimitive, TagInteger); err != nil {
		return err
	}

	encoded := encodeInteger(v)

	if err := e.WriteLength(len(encoded)); err != nil {
		return err
	}
	e.buf = append(e.buf, encoded...)
	return nil
}

// encodeInteger encodes an int64 as a minimal two's complement byte slice.
func encodeInteger(v int64) []byte {
	if v == 0 {
		return []byte{0x00}
	}

	var bytes []byte
	uv := uint64(v)

	if v < 0 {
		// A negative number needs enough bytes to preserve the sign bit.
		for i := 7; i >= 0; i-- {
			b := byte(uv >> (i * 8))
			if len(bytes) > 0 || b != 0xFF || (i > 0 && (uv>>((i-1)*8))&0x80 == 0) {
				bytes = append(bytes, b)
			}
		}
		if len(bytes) == 0 {
			bytes = []byte{0xFF}
		}
		if bytes[0]&0x80 == 0 {
			bytes = append([]byte{0xFF}, bytes...)
		}
	} else {
		for i := 7; i >= 0; i-- {
			b := byte(uv >> (i * 8))
			if len(bytes) > 0 || b != 0 {
				bytes = append(bytes, b)
			}
		}
		// If the high bit is set, prepend 0x00 to keep the value positive.
		if len(bytes) > 0 && bytes[0]&0x80 != 0 {
			bytes = append([]byte{0x00}, bytes...)
		}
	}

	return bytes
}

// WriteOctetString writes a BER-encoded octet string.
func (e *Encoder) WriteOctetString(v []byte) error {
	if err := e.WriteTag(ClassUniversal, TypePrimitive, TagOctetString); err != nil {
		return err
	}
	if err := e.WriteLength(len(v)); err != nil {
		return err
	}
	e.buf = append(e.buf, v...)
	return nil
}

// WriteEnumerated writes a BER-encoded enumerated value.
// Enumerated values are encoded identically to integers.
func (e *Encoder) WriteEnumerated(v int64) error {
	if err := e.WriteTag(ClassUniversal, TypePrimitive, TagEnumerated); err != nil {
		return err
	}

	encoded := encodeInteger(v)

	if err := e.WriteLength(len(encoded)); err != nil {
		return err
	}
	e.buf = append(e.buf, encoded...)
	return nil
}

// WriteNull writes a BER-encoded null value.
func (e *Encoder) WriteNull() error {
	if err := e.WriteTag(ClassUniversal, TypePrimitive, TagNull); err != nil {
		return err
	}
	return e.WriteLength(0)
}

// WriteRaw writes raw bytes directly to the buffer.
// Useful for pre-encoded data.
func (e *Encoder) WriteRaw(data []byte) {
	e.buf = append(e.buf, data...)
}

// WriteTaggedValue writes a context-specific tagged value with pre-encoded
// contents. This is commonly used in LDAP for protocol-specific fields.
func (e *Encoder) WriteTaggedValue(tagNumber int, constructed bool, value []byte) error {
	constructedFlag := TypePrimitive
	if constructed {
		constructedFlag = TypeConstructed
	}

	if err := e.WriteTag(ClassContextSpecific, constructedFlag, tagNumber); err != nil {
		return err
	}
	if err := e.WriteLength(len(value)); err != nil {
		return err
	}
	e.buf = append(e.buf, value...)
	return nil
}

// IntegerBytes returns the minimal two's complement encoding of v without
// any tag or length. LDAP operations whose body is a bare INTEGER under an
// implicit application tag (AbandonRequest) need the value bytes alone.
func IntegerBytes(v int64) []byte {
	return encodeInteger(v)
}

// DecodeIntegerBytes decodes a two's complement integer from raw value
// bytes, the inverse of IntegerBytes.
func DecodeIntegerBytes(data []byte) (int64, error) {
	if len(data) == 0 {
		return 0, ErrInvalidInteger
	}
	if len(data) > 8 {
		return 0, ErrInvalidInteger
	}

	var result int64
	if data[0]&0x80 != 0 {
		result = -1
	}
	for _, b := range data {
		result = (result << 8) | int64(b)
	}
	return result, nil
}
