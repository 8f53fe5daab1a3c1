package catalog

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/imHansiy/mediadex/internal/models"
)

// Document is the persisted catalog artifact. Series records live
// under the movies key alongside movie records, which is the shape
// downstream consumers already read.
type Document struct {
	Movies      []Entry   `json:"movies"`
	Total       int       `json:"total"`
	GeneratedAt time.Time `json:"generated_at"`
}

// BuildDocument folds the version-group merge output into the artifact.
func BuildDocument(groups []models.VersionGroup) *Document {
	entries := make([]Entry, 0, len(groups))
	for _, vg := range groups {
		entries = append(entries, FromVersionGroup(vg))
	}
	return &Document{
		Movies:      entries,
		Total:       len(entries),
		GeneratedAt: time.Now().UTC(),
	}
}

// NewDocument wraps already-built entries in a fresh artifact, stamped
// with the current time.
func NewDocument(entries []Entry) *Document {
	if entries == nil {
		entries = []Entry{}
	}
	return &Document{
		Movies:      entries,
		Total:       len(entries),
		GeneratedAt: time.Now().UTC(),
	}
}

// UnmarshalJSON decodes each entry into the concrete shape named by
// its media_type discriminant.
func (d *Document) UnmarshalJSON(data []byte) error {
	var raw struct {
		Movies      []json.RawMessage `json:"movies"`
		Total       int               `json:"total"`
		GeneratedAt time.Time         `json:"generated_at"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	d.Total = raw.Total
	d.GeneratedAt = raw.GeneratedAt
	d.Movies = make([]Entry, 0, len(raw.Movies))
	for i, msg := range raw.Movies {
		entry, err := UnmarshalEntry(msg)
		if err != nil {
			return fmt.Errorf("entry %d: %w", i, err)
		}
		d.Movies = append(d.Movies, entry)
	}
	return nil
}

// UnmarshalEntry decodes a single serialized record, picking the
// concrete shape by its media_type discriminant.
func UnmarshalEntry(data []byte) (Entry, error) {
	var probe struct {
		ID        string           `json:"id"`
		MediaType models.MediaType `json:"media_type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("probe media type: %w", err)
	}
	switch probe.MediaType {
	case models.MediaTypeTV:
		var e TVEntry
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, fmt.Errorf("decode tv record: %w", err)
		}
		return &e, nil
	case models.MediaTypeMovie:
		var e MovieEntry
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, fmt.Errorf("decode movie record: %w", err)
		}
		return &e, nil
	default:
		return nil, fmt.Errorf("%s: unknown media type %q", probe.ID, probe.MediaType)
	}
}

// FindByID returns the entry with the given canonical id.
func (d *Document) FindByID(id string) (Entry, bool) {
	for _, e := range d.Movies {
		if e.EntryID() == id {
			return e, true
		}
	}
	return nil, false
}

// CountByType tallies the two record kinds.
func (d *Document) CountByType() (movies, tv int) {
	for _, e := range d.Movies {
		if e.EntryType() == models.MediaTypeTV {
			tv++
		} else {
			movies++
		}
	}
	return movies, tv
}
