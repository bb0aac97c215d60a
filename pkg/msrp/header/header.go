package header

import (
	"fmt"

	"firestige.xyz/msrp/pkg/msrp/uri"
)

// Header is one name/value pair in a chunk's header collection. It carries
// both the encoded textual form and the decoded typed form; whichever is
// absent is synthesized lazily from the other on first access, per
// SPEC_FULL.md §4.A.
type Header struct {
	Name string

	text     string
	hasText  bool
	value    any
	hasValue bool
}

// FromText constructs a Header from its wire-format text. Decoding is
// deferred until Value or a typed accessor is called.
func FromText(name, text string) *Header {
	return &Header{Name: name, text: text, hasText: true}
}

// FromValue constructs a Header from an already-decoded typed value.
// Encoding is deferred until Text is called. value must match the Go type
// produced by the decoder for KindOf(name):
//
//	KindOpaqueString, KindUTF8String: string
//	KindURIList:                      []*uri.URI
//	KindInteger:                      int
//	KindEnum:                         string
//	KindByteRange:                    ByteRange
//	KindStatus:                       Status
//	KindContentDisposition:           ContentDisposition
//	KindParameterList:                map[string]string
//	KindDigest:                       Digest
func FromValue(name string, value any) *Header {
	return &Header{Name: name, value: value, hasValue: true}
}

// Text returns the wire-format value, encoding it from the decoded value if
// it has not yet been materialized.
func (h *Header) Text() (string, error) {
	if h.hasText {
		return h.text, nil
	}
	if !h.hasValue {
		return "", fmt.Errorf("msrp: header %s has neither text nor value", h.Name)
	}
	text, err := encode(h.Name, h.value)
	if err != nil {
		return "", err
	}
	h.text = text
	h.hasText = true
	return h.text, nil
}

// Value returns the decoded value, parsing it from text if it has not yet
// been materialized. The concrete type follows the table documented on
// FromValue.
func (h *Header) Value() (any, error) {
	if h.hasValue {
		return h.value, nil
	}
	if !h.hasText {
		return nil, fmt.Errorf("msrp: header %s has neither text nor value", h.Name)
	}
	value, err := decode(h.Name, h.text)
	if err != nil {
		return nil, err
	}
	h.value = value
	h.hasValue = true
	return h.value, nil
}

// URIs decodes the header as a KindURIList value.
func (h *Header) URIs() ([]*uri.URI, error) {
	v, err := h.Value()
	if err != nil {
		return nil, err
	}
	list, ok := v.([]*uri.URI)
	if !ok {
		return nil, fmt.Errorf("msrp: header %s is not a URI list", h.Name)
	}
	return list, nil
}

// String decodes the header as a string-kind value (opaque or UTF-8 or
// enum).
func (h *Header) String() (string, error) {
	v, err := h.Value()
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("msrp: header %s is not a string value", h.Name)
	}
	return s, nil
}

// Int decodes the header as a KindInteger value.
func (h *Header) Int() (int, error) {
	v, err := h.Value()
	if err != nil {
		return 0, err
	}
	n, ok := v.(int)
	if !ok {
		return 0, fmt.Errorf("msrp: header %s is not an integer value", h.Name)
	}
	return n, nil
}

// ByteRangeValue decodes the header as a KindByteRange value.
func (h *Header) ByteRangeValue() (ByteRange, error) {
	v, err := h.Value()
	if err != nil {
		return ByteRange{}, err
	}
	br, ok := v.(ByteRange)
	if !ok {
		return ByteRange{}, fmt.Errorf("msrp: header %s is not a byte-range value", h.Name)
	}
	return br, nil
}

// StatusValue decodes the header as a KindStatus value.
func (h *Header) StatusValue() (Status, error) {
	v, err := h.Value()
	if err != nil {
		return Status{}, err
	}
	s, ok := v.(Status)
	if !ok {
		return Status{}, fmt.Errorf("msrp: header %s is not a status value", h.Name)
	}
	return s, nil
}

func decode(name, text string) (any, error) {
	switch KindOf(name) {
	case KindOpaqueString:
		return DecodeOpaqueString(text)
	case KindUTF8String:
		return DecodeUTF8String(text)
	case KindURIList:
		return DecodeURIList(text)
	case KindInteger:
		return DecodeInteger(text)
	case KindEnum:
		return DecodeEnum(name, text)
	case KindByteRange:
		return DecodeByteRange(text)
	case KindStatus:
		return DecodeStatus(text)
	case KindContentDisposition:
		return DecodeContentDisposition(text)
	case KindParameterList:
		return DecodeParameterList(text)
	case KindDigest:
		return DecodeDigest(text)
	default:
		return nil, fmt.Errorf("msrp: unknown header kind for %s", name)
	}
}

func encode(name string, value any) (string, error) {
	switch KindOf(name) {
	case KindOpaqueString:
		v, ok := value.(string)
		if !ok {
			return "", fmt.Errorf("msrp: header %s expects a string value", name)
		}
		return EncodeOpaqueString(v), nil
	case KindUTF8String:
		v, ok := value.(string)
		if !ok {
			return "", fmt.Errorf("msrp: header %s expects a string value", name)
		}
		return EncodeUTF8String(v), nil
	case KindURIList:
		v, ok := value.([]*uri.URI)
		if !ok {
			return "", fmt.Errorf("msrp: header %s expects a []*uri.URI value", name)
		}
		return EncodeURIList(v), nil
	case KindInteger:
		v, ok := value.(int)
		if !ok {
			return "", fmt.Errorf("msrp: header %s expects an int value", name)
		}
		return EncodeInteger(v), nil
	case KindEnum:
		v, ok := value.(string)
		if !ok {
			return "", fmt.Errorf("msrp: header %s expects a string value", name)
		}
		return EncodeEnum(v), nil
	case KindByteRange:
		v, ok := value.(ByteRange)
		if !ok {
			return "", fmt.Errorf("msrp: header %s expects a ByteRange value", name)
		}
		return EncodeByteRange(v), nil
	case KindStatus:
		v, ok := value.(Status)
		if !ok {
			return "", fmt.Errorf("msrp: header %s expects a Status value", name)
		}
		return EncodeStatus(v), nil
	case KindContentDisposition:
		v, ok := value.(ContentDisposition)
		if !ok {
			return "", fmt.Errorf("msrp: header %s expects a ContentDisposition value", name)
		}
		return EncodeContentDisposition(v), nil
	case KindParameterList:
		v, ok := value.(map[string]string)
		if !ok {
			return "", fmt.Errorf("msrp: header %s expects a map[string]string value", name)
		}
		return EncodeParameterList(v), nil
	case KindDigest:
		v, ok := value.(Digest)
		if !ok {
			return "", fmt.Errorf("msrp: header %s expects a Digest value", name)
		}
		return EncodeDigest(v), nil
	default:
		return "", fmt.Errorf("msrp: unknown header kind for %s", name)
	}
}
