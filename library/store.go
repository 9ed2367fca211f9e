package library

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/encoding/json"
	"golang.org/x/crypto/blake2b"
)

// DefaultDataFile is where the catalog lives when nothing else is configured.
const DefaultDataFile = "library.json"

// Snapshot is the whole persisted state of a Catalog.
type Snapshot struct {
	Books    []Book   `json:"books" validate:"dive"`
	Members  []Member `json:"members" validate:"dive"`
	Loans    []Loan   `json:"loans" validate:"dive"`
	Counters Counters `json:"counters"`
	Checksum string   `json:"checksum,omitempty"`
}

// Store persists whole snapshots. Load returns ErrNoSnapshot when nothing
// has been saved yet and an error matching ErrCorruptSnapshot when the
// stored data cannot be trusted.
type Store interface {
	Load() (*Snapshot, error)
	Save(snap *Snapshot) error
}

// Quarantiner is implemented by stores that can move corrupt data out of
// the way so the next Save does not overwrite it.
type Quarantiner interface {
	Quarantine() (string, error)
}

// JSONStore keeps the snapshot in a single indented JSON file.
type JSONStore struct {
	path           string
	verifyChecksum bool
}

// NewJSONStore returns a store backed by the file at path. When
// verifyChecksum is set, a file whose checksum does not match its content
// is reported as corrupt. Files without a checksum are always accepted.
func NewJSONStore(path string, verifyChecksum bool) *JSONStore {
	if path == "" {
		path = DefaultDataFile
	}
	return &JSONStore{path: path, verifyChecksum: verifyChecksum}
}

// Path returns the file backing the store.
func (s *JSONStore) Path() string { return s.path }

func (s *JSONStore) Load() (*Snapshot, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, errors.Wrap(err, "read snapshot")
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, corrupt(errors.Wrap(err, "decode"))
	}

	if s.verifyChecksum && snap.Checksum != "" {
		sum, err := digest(&snap)
		if err != nil {
			return nil, err
		}
		if sum != snap.Checksum {
			return nil, corrupt(errors.Errorf("checksum mismatch: stored %s, computed %s", snap.Checksum, sum))
		}
	}
	return &snap, nil
}

// Save overwrites the file with snap. The document is written to a
// temporary file in the same directory and renamed over the target, so a
// failed write never leaves a truncated snapshot behind.
func (s *JSONStore) Save(snap *Snapshot) error {
	sum, err := digest(snap)
	if err != nil {
		return err
	}
	out := *snap
	out.Checksum = sum

	data, err := json.MarshalIndent(&out, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode snapshot")
	}

	dir := filepath.Dir(s.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrap(err, "create data dir")
		}
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return errors.Wrap(err, "create temp file")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrap(err, "write snapshot")
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return errors.Wrap(err, "sync snapshot")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "close snapshot")
	}
	return errors.Wrap(os.Rename(tmp.Name(), s.path), "replace snapshot")
}

// Quarantine renames the current file to <path>.corrupt-<unix seconds> and
// returns the new name.
func (s *JSONStore) Quarantine() (string, error) {
	target := fmt.Sprintf("%s.corrupt-%d", s.path, time.Now().Unix())
	if err := os.Rename(s.path, target); err != nil {
		return "", errors.WithStack(err)
	}
	return target, nil
}

// digest is the hex blake2b-256 of the compact encoding of snap without its
// checksum field.
func digest(snap *Snapshot) (string, error) {
	c := *snap
	c.Checksum = ""
	data, err := json.Marshal(&c)
	if err != nil {
		return "", errors.Wrap(err, "encode snapshot")
	}
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
