package fetch

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// snapshotMeta describes a saved page so a snapshot can be replayed against
// the extractor offline when selectors drift.
type snapshotMeta struct {
	URL       string    `json:"url"`
	FetchedAt time.Time `json:"fetched_at"`
	Bytes     int       `json:"bytes"`
}

// saveSnapshot writes the markup as <key>.html and metadata as
// <key>.meta.json, where key is sha256(url). Writes go through a temp file
// and rename so a crash never leaves a torn snapshot.
func saveSnapshot(dir, pageURL string, body []byte) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	sum := sha256.Sum256([]byte(pageURL))
	key := hex.EncodeToString(sum[:])

	htmlPath := filepath.Join(dir, key+".html")
	if err := writeAtomic(htmlPath, body); err != nil {
		return err
	}

	meta := snapshotMeta{URL: pageURL, FetchedAt: time.Now().UTC(), Bytes: len(body)}
	data, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	return writeAtomic(filepath.Join(dir, key+".meta.json"), data)
}

func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
