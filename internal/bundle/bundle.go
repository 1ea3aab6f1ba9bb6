// Package bundle defines the trained model artifact and its binary format.
//
// A bundle file is laid out as
//
//	"HXRF" | uint16 format version | uint64 xxhash64(payload) | payload
//
// with little-endian integers and a msgpack payload. The header lets Restore
// reject foreign files, unknown versions and corrupted payloads before
// decoding anything.
package bundle

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"

	koierrors "github.com/paveg/huntex/internal/errors"
	"github.com/paveg/huntex/internal/forest"
	"github.com/paveg/huntex/internal/preprocess"
	"github.com/paveg/huntex/internal/schema"
	"github.com/paveg/huntex/internal/validation"
	"github.com/paveg/huntex/internal/version"
)

// FormatVersion is the current on-disk format version.
const FormatVersion uint16 = 1

const headerSize = 4 + 2 + 8

var magic = [4]byte{'H', 'X', 'R', 'F'}

// Bundle is everything inference needs: the fitted forest, the feature order
// it was trained on, the label mapping and the frozen preprocessing
// statistics.
type Bundle struct {
	ID             uuid.UUID         `msgpack:"id"`
	CreatedAt      time.Time         `msgpack:"created_at"`
	LibraryVersion string            `msgpack:"library_version"`
	FeatureNames   []string          `msgpack:"feature_names"`
	Labels         schema.LabelMap   `msgpack:"labels"`
	Stats          *preprocess.Stats `msgpack:"stats"`
	Forest         *forest.Forest    `msgpack:"forest"`
	// ClassCounts is the label distribution of the training matrix before
	// balancing.
	ClassCounts []int `msgpack:"class_counts"`
}

// New assembles a bundle with a fresh identifier.
func New(featureNames []string, labels schema.LabelMap, st *preprocess.Stats, f *forest.Forest, classCounts []int) *Bundle {
	return &Bundle{
		ID:             uuid.New(),
		CreatedAt:      time.Now().UTC(),
		LibraryVersion: version.Version,
		FeatureNames:   append([]string(nil), featureNames...),
		Labels:         labels,
		Stats:          st,
		Forest:         f,
		ClassCounts:    append([]int(nil), classCounts...),
	}
}

// Validate checks that all parts of the bundle agree with each other.
func (b *Bundle) Validate() error {
	if b.ID == uuid.Nil {
		return fmt.Errorf("bundle has no id")
	}
	if len(b.FeatureNames) == 0 {
		return fmt.Errorf("bundle has no feature names")
	}
	if err := b.Labels.Validate(); err != nil {
		return fmt.Errorf("label map: %w", err)
	}
	if b.Stats == nil {
		return fmt.Errorf("bundle has no preprocessing statistics")
	}
	if err := b.Stats.Validate(len(b.FeatureNames)); err != nil {
		return fmt.Errorf("preprocessing statistics: %w", err)
	}
	if err := validation.ValidateOrder(b.FeatureNames, b.Stats.Features, "Restore"); err != nil {
		return err
	}
	if b.Forest == nil {
		return fmt.Errorf("bundle has no forest")
	}
	if err := b.Forest.Validate(); err != nil {
		return fmt.Errorf("forest: %w", err)
	}
	if b.Forest.NumFeatures != len(b.FeatureNames) {
		return fmt.Errorf("forest expects %d features, bundle lists %d", b.Forest.NumFeatures, len(b.FeatureNames))
	}
	if b.Forest.NumClasses != b.Labels.Len() {
		return fmt.Errorf("forest predicts %d classes, label map has %d", b.Forest.NumClasses, b.Labels.Len())
	}
	return nil
}

// Write encodes b to w.
func (b *Bundle) Write(w io.Writer) error {
	const op = "Persist"
	payload, err := msgpack.Marshal(b)
	if err != nil {
		return koierrors.NewPersistenceError(op, "encoding bundle", err)
	}
	var header [headerSize]byte
	copy(header[:4], magic[:])
	binary.LittleEndian.PutUint16(header[4:6], FormatVersion)
	binary.LittleEndian.PutUint64(header[6:], xxhash.Sum64(payload))

	if _, err := w.Write(header[:]); err != nil {
		return koierrors.NewPersistenceError(op, "writing header", err)
	}
	if _, err := w.Write(payload); err != nil {
		return koierrors.NewPersistenceError(op, "writing payload", err)
	}
	return nil
}

// Save writes b to path atomically: the bundle is written to a temporary
// file in the same directory and renamed into place.
func (b *Bundle) Save(path string) (err error) {
	const op = "Persist"
	if err := b.Validate(); err != nil {
		return koierrors.NewPersistenceError(op, "refusing to save invalid bundle", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return koierrors.NewPersistenceError(op, "creating temporary file", err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if err = b.Write(tmp); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return koierrors.NewPersistenceError(op, "syncing temporary file", err)
	}
	if err = tmp.Close(); err != nil {
		return koierrors.NewPersistenceError(op, "closing temporary file", err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return koierrors.NewPersistenceError(op, fmt.Sprintf("renaming bundle into %s", path), err)
	}
	return nil
}

// Read decodes and validates a bundle from r.
func Read(r io.Reader) (*Bundle, error) {
	const op = "Restore"
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, koierrors.NewPersistenceError(op, "reading bundle", err)
	}
	if len(data) < headerSize {
		return nil, koierrors.NewPersistenceError(op,
			fmt.Sprintf("bundle is truncated: %d bytes, header needs %d", len(data), headerSize), nil)
	}
	if !bytes.Equal(data[:4], magic[:]) {
		return nil, koierrors.NewPersistenceError(op, "not a model bundle (bad magic)", nil)
	}
	if v := binary.LittleEndian.Uint16(data[4:6]); v != FormatVersion {
		return nil, koierrors.NewPersistenceError(op,
			fmt.Sprintf("unsupported bundle format version %d (supported: %d)", v, FormatVersion), nil)
	}
	payload := data[headerSize:]
	if want, got := binary.LittleEndian.Uint64(data[6:headerSize]), xxhash.Sum64(payload); want != got {
		return nil, koierrors.NewPersistenceError(op,
			fmt.Sprintf("checksum mismatch: header %016x, payload %016x", want, got), nil)
	}

	var b Bundle
	if err := msgpack.Unmarshal(payload, &b); err != nil {
		return nil, koierrors.NewPersistenceError(op, "decoding bundle", err)
	}
	if err := b.Validate(); err != nil {
		return nil, koierrors.NewPersistenceError(op, "bundle is structurally invalid", err)
	}
	return &b, nil
}

// Load reads a bundle from path.
func Load(path string) (*Bundle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, koierrors.NewPersistenceError("Restore", fmt.Sprintf("opening %s", path), err)
	}
	defer f.Close()
	return Read(f)
}
