// Video catalog

package main

import (
	"errors"
	"os"
	"strings"
	"sync/atomic"

	"github.com/goccy/go-json"
)

// Classroom - A single classroom entry of the catalog.
// Display metadata (dates, video entries, names) is kept
// raw and passed through to clients untouched. The allow
// list is internal authorization data and is never written
// back out when the classroom is serialized.
type Classroom struct {
	ID       string
	Allow    map[string]bool
	metadata map[string]json.RawMessage
}

func (room *Classroom) UnmarshalJSON(data []byte) error {
	fields := make(map[string]json.RawMessage)
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	rawId, found := fields["id"]
	if !found {
		return errors.New("classroom entry is missing the id field")
	}
	if err := json.Unmarshal(rawId, &room.ID); err != nil {
		return err
	}
	delete(fields, "id")

	room.Allow = make(map[string]bool)
	if rawAllow, found := fields["allow"]; found {
		allow := make([]string, 0)
		if err := json.Unmarshal(rawAllow, &allow); err != nil {
			return err
		}
		for _, subject := range allow {
			room.Allow[subject] = true
		}
		delete(fields, "allow")
	}

	room.metadata = fields

	return nil
}

// MarshalJSON writes the public view of the classroom:
// the id plus the display metadata. No allow list.
func (room Classroom) MarshalJSON() ([]byte, error) {
	fields := make(map[string]json.RawMessage, len(room.metadata)+1)

	for key, value := range room.metadata {
		fields[key] = value
	}

	rawId, err := json.Marshal(room.ID)
	if err != nil {
		return nil, err
	}
	fields["id"] = rawId

	return json.Marshal(fields)
}

// Catalog - The full video index, including the
// internal allow lists. Immutable once loaded.
type Catalog struct {
	GlobalAllow map[string]bool
	Classrooms  []Classroom
}

func (catalog *Catalog) UnmarshalJSON(data []byte) error {
	doc := struct {
		GlobalAllow []string    `json:"global_allow"`
		Classrooms  []Classroom `json:"classrooms"`
	}{}

	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}

	catalog.GlobalAllow = make(map[string]bool)
	for _, subject := range doc.GlobalAllow {
		catalog.GlobalAllow[subject] = true
	}

	catalog.Classrooms = doc.Classrooms
	if catalog.Classrooms == nil {
		catalog.Classrooms = make([]Classroom, 0)
	}

	return nil
}

// validate checks the invariants the rest of the gateway relies on:
// unique classroom ids, and ids that are usable as a single path segment.
func (catalog *Catalog) validate() error {
	seen := make(map[string]bool)

	for _, room := range catalog.Classrooms {
		if room.ID == "" || room.ID == "." || room.ID == ".." {
			return errors.New("invalid classroom id: '" + room.ID + "'")
		}
		if strings.ContainsAny(room.ID, "/\\") {
			return errors.New("classroom id contains a path separator: '" + room.ID + "'")
		}
		if seen[room.ID] {
			return errors.New("duplicated classroom id: '" + room.ID + "'")
		}
		seen[room.ID] = true
	}

	return nil
}

// CatalogStore - Holds the current catalog snapshot.
// Load replaces the snapshot atomically, so concurrent
// readers always observe a complete catalog.
type CatalogStore struct {
	file     string
	snapshot atomic.Pointer[Catalog]
}

func NewCatalogStore(file string) *CatalogStore {
	return &CatalogStore{
		file: file,
	}
}

// Load reads and parses the catalog file and swaps it in.
// On error the previous snapshot (if any) stays in place.
func (store *CatalogStore) Load() error {
	data, err := os.ReadFile(store.file)
	if err != nil {
		return err
	}

	catalog := Catalog{}
	if err := json.Unmarshal(data, &catalog); err != nil {
		return err
	}

	if err := catalog.validate(); err != nil {
		return err
	}

	store.snapshot.Store(&catalog)

	return nil
}

// Snapshot returns the current immutable catalog.
func (store *CatalogStore) Snapshot() *Catalog {
	return store.snapshot.Load()
}
