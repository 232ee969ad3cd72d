package document

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/ledongthuc/pdf"
)

// MIMEPDF is the only media type the application accepts.
const MIMEPDF = "application/pdf"

const (
	dataScheme   = "data:"
	base64Marker = ";base64"
	payloadSep   = ","
)

var (
	// ErrMalformedDataURI is returned when a string is not a base64 data URI.
	ErrMalformedDataURI = errors.New("malformed data uri")
	// ErrRead is returned when the document bytes cannot be read.
	ErrRead = errors.New("failed to read document")
	// ErrNotPDF is returned by Inspect when the bytes are not a readable PDF.
	ErrNotPDF = errors.New("content is not a pdf")
)

// DataURI is a self-describing document: a media type plus the raw bytes.
// Its wire form is data:<mime>;base64,<payload>.
type DataURI struct {
	MIMEType string
	Data     []byte
}

// String returns the data URI wire form.
func (d DataURI) String() string {
	var b strings.Builder
	b.Grow(len(dataScheme) + len(d.MIMEType) + len(base64Marker) + 1 + base64.StdEncoding.EncodedLen(len(d.Data)))
	b.WriteString(dataScheme)
	b.WriteString(d.MIMEType)
	b.WriteString(base64Marker)
	b.WriteString(payloadSep)
	b.WriteString(base64.StdEncoding.EncodeToString(d.Data))
	return b.String()
}

// IsPDF reports whether the data URI declares a PDF payload.
func (d DataURI) IsPDF() bool {
	return IsPDF(d.MIMEType)
}

// Encode reads all of r and wraps it as a data URI of the given media type.
func Encode(mimeType string, r io.Reader) (DataURI, error) {
	if r == nil {
		return DataURI{}, fmt.Errorf("%w: no reader", ErrRead)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return DataURI{}, fmt.Errorf("%w: %v", ErrRead, err)
	}
	return DataURI{MIMEType: mimeType, Data: data}, nil
}

// Parse decodes the wire form produced by DataURI.String.
// Only base64 payloads are accepted.
func Parse(s string) (DataURI, error) {
	mt, payload, err := split(s)
	if err != nil {
		return DataURI{}, err
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return DataURI{}, fmt.Errorf("%w: %v", ErrMalformedDataURI, err)
	}
	return DataURI{MIMEType: mt, Data: data}, nil
}

// ParseHeader checks the data URI framing without decoding the payload. It
// returns the media type and the number of bytes the payload decodes to.
func ParseHeader(s string) (mimeType string, size int, err error) {
	mt, payload, err := split(s)
	if err != nil {
		return "", 0, err
	}
	size = base64.StdEncoding.DecodedLen(len(payload))
	if len(payload)%4 == 0 {
		size -= len(payload) - len(strings.TrimRight(payload[max(0, len(payload)-2):], "="))
	}
	return mt, size, nil
}

func split(s string) (mediaType, payload string, err error) {
	if !strings.HasPrefix(s, dataScheme) {
		return "", "", fmt.Errorf("%w: missing %q scheme", ErrMalformedDataURI, dataScheme)
	}
	meta, payload, ok := strings.Cut(s[len(dataScheme):], payloadSep)
	if !ok {
		return "", "", fmt.Errorf("%w: missing payload separator", ErrMalformedDataURI)
	}
	mediaType, isBase64 := strings.CutSuffix(meta, base64Marker)
	if !isBase64 {
		return "", "", fmt.Errorf("%w: payload is not base64", ErrMalformedDataURI)
	}
	if mediaType == "" {
		return "", "", fmt.Errorf("%w: missing media type", ErrMalformedDataURI)
	}
	mt, _, err := mime.ParseMediaType(mediaType)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrMalformedDataURI, err)
	}
	return mt, payload, nil
}

// IsPDF reports whether a declared content type is the PDF media type.
// Parameters and case are ignored.
func IsPDF(contentType string) bool {
	if contentType == "" {
		return false
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mt == MIMEPDF
}

// Info describes a document that passed Inspect.
type Info struct {
	MIMEType string
	Pages    int
}

// Inspect checks the bytes themselves rather than the declared type:
// the content must be detected as PDF and open as a PDF document.
func Inspect(data []byte) (info Info, err error) {
	// the pdf reader panics on some malformed cross-reference tables
	defer func() {
		if rec := recover(); rec != nil {
			info, err = Info{}, fmt.Errorf("%w: %v", ErrNotPDF, rec)
		}
	}()
	detected := mimetype.Detect(data)
	if !detected.Is(MIMEPDF) {
		return Info{}, fmt.Errorf("%w: detected %s", ErrNotPDF, detected.String())
	}
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return Info{}, fmt.Errorf("%w: %v", ErrNotPDF, err)
	}
	return Info{MIMEType: MIMEPDF, Pages: reader.NumPage()}, nil
}
