// Package roster reads and writes friend lists as YAML, so a set of friends
// can be seeded into a store or carried between profiles.
package roster

import (
	_ "embed"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"friendchat/internal/service"
)

// DefaultRoster is the built-in starter set used when no file is given.
//
//go:embed default.yaml
var DefaultRoster []byte

// ─── YAML model ──────────────────────────────────────────────────────────────

type document struct {
	Friends []Entry `yaml:"friends"`
}

// Entry mirrors one friend in a roster file. Empty fields take the store's
// defaults on import.
type Entry struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
	Model       string `yaml:"model,omitempty"`
	APIID       string `yaml:"api_id,omitempty"`
	Pinned      bool   `yaml:"pinned,omitempty"`
}

// Input controls which entries are imported.
type Input struct {
	// Count is the number of entries to import; 0 imports all of them.
	Count int
}

// Imported records the outcome of one entry.
type Imported struct {
	Entry  Entry
	Friend service.Friend
}

// Load parses the roster at filename, or DefaultRoster when filename is empty.
func Load(filename string) ([]Entry, error) {
	raw := DefaultRoster
	if filename != "" {
		var err error
		raw, err = os.ReadFile(filename)
		if err != nil {
			return nil, fmt.Errorf("reading roster: %w", err)
		}
	}
	return Parse(raw)
}

// Parse decodes a roster document. Entries without a name are rejected.
func Parse(raw []byte) ([]Entry, error) {
	var doc document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parsing roster: %w", err)
	}
	for i, e := range doc.Friends {
		if e.Name == "" {
			return nil, fmt.Errorf("parsing roster: entry %d has no name", i+1)
		}
	}
	return doc.Friends, nil
}

// pick returns the first count entries, or all of them when count <= 0.
func pick(all []Entry, count int) []Entry {
	if count <= 0 || count >= len(all) {
		return all
	}
	return all[:count]
}

// Import adds the selected entries to friends in file order. On the first
// failure it returns the friends created so far together with the error.
func Import(friends *service.Friends, filename string, in Input) ([]Imported, error) {
	all, err := Load(filename)
	if err != nil {
		return nil, err
	}

	var done []Imported
	for _, e := range pick(all, in.Count) {
		f, err := friends.Add(e.Name)
		if err != nil {
			return done, fmt.Errorf("importing %q: %w", e.Name, err)
		}

		u := service.FriendUpdate{}
		if e.Description != "" {
			u.Description = &e.Description
		}
		if e.Model != "" {
			u.ModelName = &e.Model
		}
		if e.APIID != "" {
			u.APIID = &e.APIID
		}
		if u.Description != nil || u.ModelName != nil || u.APIID != nil {
			if f, err = friends.Update(f.ID, u); err != nil {
				return done, fmt.Errorf("importing %q: %w", e.Name, err)
			}
		}

		if e.Pinned {
			if _, err := friends.TogglePin(f.ID); err != nil {
				return done, fmt.Errorf("pinning %q: %w", e.Name, err)
			}
			f, _ = friends.Get(f.ID)
		}

		done = append(done, Imported{Entry: e, Friend: f})
	}
	return done, nil
}

// Export writes list as a roster document.
func Export(w io.Writer, list []service.Friend) error {
	doc := document{Friends: make([]Entry, 0, len(list))}
	for _, f := range list {
		doc.Friends = append(doc.Friends, Entry{
			Name:        f.Name,
			Description: f.Description,
			Model:       f.ModelName,
			APIID:       f.APIID,
			Pinned:      f.IsPinned,
		})
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("writing roster: %w", err)
	}
	return enc.Close()
}
