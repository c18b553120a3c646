// Package doc defines the validated value types that describe a document
// before and after it enters the index.
//
// Every text wrapper has exactly one constructor, and that constructor is
// the only place its non-empty check happens. Values are immutable once
// built and are trusted by the rest of zeno.
package doc

import (
	"math"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/rs/xid"

	zerrors "github.com/zeno-search/zeno/internal/errors"
)

// ID uniquely identifies an indexed document.
type ID string

// NewID returns a fresh, sortable, random id.
func NewID() ID {
	return ID(xid.New().String())
}

// ParseID validates an id received from a caller.
func ParseID(s string) (ID, error) {
	if s == "" {
		return "", zerrors.EmptyField("id")
	}
	return ID(s), nil
}

func (id ID) String() string { return string(id) }

// Title is a non-empty document title.
type Title struct{ s string }

// NewTitle returns a Title, or a validation error for "".
func NewTitle(s string) (Title, error) {
	if s == "" {
		return Title{}, zerrors.EmptyField("title")
	}
	return Title{s: s}, nil
}

func (t Title) String() string { return t.s }

// Body is non-empty document text.
type Body struct{ s string }

// NewBody returns a Body, or a validation error for "".
func NewBody(s string) (Body, error) {
	if s == "" {
		return Body{}, zerrors.EmptyField("body")
	}
	return Body{s: s}, nil
}

func (b Body) String() string { return b.s }

// Description is a non-empty document summary.
type Description struct{ s string }

// NewDescription returns a Description, or a validation error for "".
func NewDescription(s string) (Description, error) {
	if s == "" {
		return Description{}, zerrors.EmptyField("description")
	}
	return Description{s: s}, nil
}

func (d Description) String() string { return d.s }

// Type records where a document's text came from.
type Type int

const (
	TypeHTML Type = iota
	TypePDF
)

func (t Type) String() string {
	switch t {
	case TypePDF:
		return "pdf"
	default:
		return "html"
	}
}

// MarshalText encodes the type as "pdf" or "html".
func (t Type) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText is the inverse of MarshalText.
func (t *Type) UnmarshalText(b []byte) error {
	parsed, err := ParseType(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// ParseType accepts "pdf" or "html" in any case.
func ParseType(s string) (Type, error) {
	switch strings.ToLower(s) {
	case "pdf":
		return TypePDF, nil
	case "html":
		return TypeHTML, nil
	default:
		return TypeHTML, zerrors.ValidationError("unknown document type: "+s, nil)
	}
}

// TypeOf guesses a document type from its location. Paths ending in .pdf
// are PDFs, everything else is treated as HTML.
func TypeOf(location string) Type {
	p := location
	if u, err := url.Parse(location); err == nil && u.Path != "" {
		p = u.Path
	}
	if strings.EqualFold(path.Ext(p), ".pdf") {
		return TypePDF
	}
	return TypeHTML
}

// Timestamp is milliseconds since the Unix epoch.
type Timestamp uint64

// maxStorageMillis is the largest millisecond value whose nanosecond
// count still fits an int64, which is how the index stores dates.
const maxStorageMillis = math.MaxInt64 / int64(time.Millisecond)

// Now captures the current time. It never fails.
func Now() Timestamp {
	return Timestamp(uint64(time.Now().UnixMilli()))
}

// Millis returns the timestamp as a signed millisecond count.
func (t Timestamp) Millis() (int64, error) {
	if uint64(t) > math.MaxInt64 {
		return 0, zerrors.TimestampOverflow(uint64(t))
	}
	return int64(t), nil
}

// ToStorage converts the timestamp to the index's date representation.
func (t Timestamp) ToStorage() (time.Time, error) {
	ms, err := t.Millis()
	if err != nil {
		return time.Time{}, err
	}
	if ms > maxStorageMillis {
		return time.Time{}, zerrors.TimestampOverflow(uint64(t))
	}
	return time.UnixMilli(ms).UTC(), nil
}

// CreateDocument is a validated document that has not been assigned an id.
type CreateDocument struct {
	URL         string
	Title       Title
	Body        *Body
	Description *Description
	Type        Type
	Parsed      Timestamp
}

// NewCreateDocument builds a CreateDocument stamped with the current time.
// A nil body or description means the document has none.
func NewCreateDocument(rawURL string, title Title, body *Body, description *Description, typ Type) (CreateDocument, error) {
	if strings.TrimSpace(rawURL) == "" {
		return CreateDocument{}, zerrors.EmptyField("url")
	}
	return CreateDocument{
		URL:         rawURL,
		Title:       title,
		Body:        body,
		Description: description,
		Type:        typ,
		Parsed:      Now(),
	}, nil
}

// Document is a CreateDocument with its id.
type Document struct {
	ID ID
	CreateDocument
}

// Assign gives c its id. Each call produces a distinct document.
func Assign(c CreateDocument) Document {
	return Document{ID: NewID(), CreateDocument: c}
}

// BodyText returns the body, or "" when absent.
func (c CreateDocument) BodyText() string {
	if c.Body == nil {
		return ""
	}
	return c.Body.String()
}

// DescriptionText returns the description, or "" when absent.
func (c CreateDocument) DescriptionText() string {
	if c.Description == nil {
		return ""
	}
	return c.Description.String()
}

// OptionalBody wraps s as a Body, returning nil for "".
func OptionalBody(s string) *Body {
	b, err := NewBody(s)
	if err != nil {
		return nil
	}
	return &b
}

// OptionalDescription wraps s as a Description, returning nil for "".
func OptionalDescription(s string) *Description {
	d, err := NewDescription(s)
	if err != nil {
		return nil
	}
	return &d
}
