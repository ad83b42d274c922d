package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/exchange/reconciler/pkg/logger"
)

// FileStore owns the durable order collection, a JSON array of orders
// keyed by orderID on merge.
type FileStore struct {
	path string
	log  *logger.Logger
}

// NewFileStore creates a store backed by the file at path.
func NewFileStore(path string, log *logger.Logger) *FileStore {
	return &FileStore{path: path, log: log}
}

// Load reads the persisted collection. A missing or corrupt file is an
// expected first-run condition and yields an empty collection, not an
// error.
func (s *FileStore) Load() ([]Order, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read orders file: %w", err)
	}

	var orders []Order
	if err := json.Unmarshal(data, &orders); err != nil {
		s.log.WithError(err).WithField("path", s.path).Warn("orders file corrupt, treating as empty")
		return nil, nil
	}
	return orders, nil
}

// MergeByID builds a mapping from existing keyed by orderID, then
// overlays incoming the same way, so an ID present in both takes the
// incoming record. Records without an ID are skipped; within each slice
// the last write wins.
func MergeByID(existing, incoming []Order) map[string]Order {
	merged := make(map[string]Order, len(existing)+len(incoming))
	for _, o := range existing {
		if o.OrderID == "" {
			continue
		}
		merged[o.OrderID] = o
	}
	for _, o := range incoming {
		if o.OrderID == "" {
			continue
		}
		merged[o.OrderID] = o
	}
	return merged
}

// Persist merges orders over the current on-disk state and writes the
// full set back. The merge-on-write protects orders present on disk but
// absent from the working set: the stored collection never shrinks
// except by explicit ID overwrite.
func (s *FileStore) Persist(orders []Order) error {
	current, err := s.Load()
	if err != nil {
		return err
	}

	merged := MergeByID(current, orders)
	out := make([]Order, 0, len(merged))
	for _, o := range merged {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderID < out[j].OrderID })

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("marshal orders: %w", err)
	}

	if err := os.WriteFile(s.path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("write orders file: %w", err)
	}

	s.log.Infof("orders persisted", map[string]interface{}{
		"path":  s.path,
		"count": len(out),
	})
	return nil
}
