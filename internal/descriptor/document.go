package descriptor

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"
)

// SectionTMDB is the descriptor file member owned by this sync.
const SectionTMDB = "themoviedb.org"

// ErrMalformed marks descriptor content that cannot be decoded.
var ErrMalformed = errors.New("malformed descriptor")

// Document is a whole descriptor file. Members other than the TMDB section
// and the write timestamp are preserved verbatim.
type Document struct {
	TMDB      *Descriptor `json:"themoviedb.org,omitempty"`
	Timestamp string      `json:"timestamp,omitempty"`
	Extra     Extra       `json:"-"`
}

type plainDocument Document

func (d Document) MarshalJSON() ([]byte, error) {
	return marshalObject(plainDocument(d), d.Extra)
}

func (d *Document) UnmarshalJSON(data []byte) error {
	var plain plainDocument
	extra, err := unmarshalObject(data, &plain)
	if err != nil {
		return err
	}
	*d = Document(plain)
	d.Extra = extra
	return nil
}

// Parse decodes descriptor file content.
func Parse(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return &doc, nil
}

// Load reads and decodes the descriptor at path, returning the raw bytes
// alongside so callers can detect changes.
func Load(path string) (*Document, []byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	doc, err := Parse(data)
	if err != nil {
		return nil, data, fmt.Errorf("%s: %w", path, err)
	}
	return doc, data, nil
}

// Encode serializes d canonically: sorted keys, two-space indent, no
// trailing newline.
func (d *Document) Encode() ([]byte, error) {
	compact, err := encode(d)
	if err != nil {
		return nil, err
	}
	var out bytes.Buffer
	if err := json.Indent(&out, compact, "", "  "); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// EncodeIfChanged encodes d and compares it with previous. When they differ
// the write timestamp is set to now and the document is encoded again; the
// returned bool reports whether a write is needed.
func (d *Document) EncodeIfChanged(previous []byte, now time.Time) ([]byte, bool, error) {
	current, err := d.Encode()
	if err != nil {
		return nil, false, err
	}
	if bytes.Equal(current, previous) {
		return current, false, nil
	}
	d.Timestamp = FormatTime(now)
	stamped, err := d.Encode()
	if err != nil {
		return nil, false, err
	}
	return stamped, true, nil
}

// Section returns the TMDB section, creating one of descType when absent and
// descType is non-empty.
func (d *Document) Section(descType string) *Descriptor {
	if d.TMDB == nil && descType != "" {
		d.TMDB = &Descriptor{Type: descType}
	}
	return d.TMDB
}
