package beacon

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/gowebpki/jcs"
)

// Manifest summarizes the shard layout of a run: which files each category
// holds and which global index range each file covers. Two runs with the
// same manifest digest were indexed from identical shard layouts.
type Manifest struct {
	Run        int                `json:"run"`
	Categories []CategoryManifest `json:"categories"`
}

type CategoryManifest struct {
	Category Category        `json:"category"`
	Records  int             `json:"records"`
	Shards   []ShardManifest `json:"shards"`
}

type ShardManifest struct {
	Name    string `json:"name"`
	First   int    `json:"first"`
	Last    int    `json:"last"`
	Size    int64  `json:"size"`
	Skipped bool   `json:"skipped,omitempty"`
}

// BuildManifest indexes every category of run. This decodes every shard
// not yet indexed.
func BuildManifest(run *Run) (Manifest, error) {
	m := Manifest{Run: run.ID}

	for _, c := range Categories {
		records, err := run.Len(c)
		if err != nil {
			return Manifest{}, err
		}

		shards, err := run.Shards(c)
		if err != nil {
			return Manifest{}, err
		}

		cm := CategoryManifest{Category: c, Records: records, Shards: make([]ShardManifest, 0, len(shards))}

		for _, s := range shards {
			info, err := run.fsys.Stat(s.Path)
			if err != nil {
				return Manifest{}, fmt.Errorf("stat shard: %w", err)
			}

			cm.Shards = append(cm.Shards, ShardManifest{
				Name:    s.Name,
				First:   s.First,
				Last:    s.Last,
				Size:    info.Size(),
				Skipped: s.Skipped,
			})
		}

		m.Categories = append(m.Categories, cm)
	}

	return m, nil
}

// Canonical returns m as RFC 8785 canonical JSON.
func (m Manifest) Canonical() ([]byte, error) {
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal manifest: %w", err)
	}

	canonical, err := jcs.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("canonicalize manifest: %w", err)
	}

	return canonical, nil
}

// Digest returns the hex SHA-256 of the canonical form.
func (m Manifest) Digest() (string, error) {
	canonical, err := m.Canonical()
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256(canonical)

	return hex.EncodeToString(sum[:]), nil
}
