package history

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"usdgflow/logger"
	"usdgflow/models"
)

// dateLayout is the calendar-date form used for dedup keys.
const dateLayout = "2006-01-02"

// Store is the append-only history log: one JSON object per line, each a
// self-contained LogEntry. Lines are never rewritten; readers tolerate a
// partially written trailing line.
type Store struct {
	path   string
	mirror *Mirror
	mu     sync.Mutex
	log    *logger.Log
}

// NewStore creates a store backed by the given file path. The file is created
// lazily on first append. mirror may be nil.
func NewStore(path string, mirror *Mirror) *Store {
	return &Store{
		path:   path,
		mirror: mirror,
		log:    logger.GetLogger(),
	}
}

// Append writes one LogEntry stamped with the current instant.
func (s *Store) Append(snapshot models.MetricsSnapshot) error {
	return s.AppendAt(time.Now().UTC(), snapshot)
}

// AppendAt writes one LogEntry with an explicit timestamp. Used by backfill
// to place recomputed snapshots on their historical dates.
func (s *Store) AppendAt(ts time.Time, snapshot models.MetricsSnapshot) error {
	entry := models.LogEntry{Timestamp: ts.UTC(), Metrics: snapshot}

	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode log entry: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create history directory: %w", err)
		}
	}

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open history log: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("failed to append history entry: %w", err)
	}

	logger.IncrementLogAppend(len(line) + 1)
	s.log.WithComponent("history").WithFields(logger.Fields{
		"date":    entry.Timestamp.Format(dateLayout),
		"path":    s.path,
		"mirror":  s.mirror != nil,
		"entries": 1,
	}).Info("appended history entry")

	if s.mirror != nil {
		if err := s.mirror.Upload(s.path); err != nil {
			// The local log is the source of truth; a failed mirror upload
			// does not fail the append.
			s.log.WithComponent("history").WithError(err).Warn("history mirror upload failed")
		}
	}

	return nil
}

// ReadAll returns every parseable LogEntry sorted ascending by timestamp.
// Malformed lines are skipped, and a missing file yields an empty log.
func (s *Store) ReadAll() ([]models.LogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open history log: %w", err)
	}
	defer f.Close()

	var entries []models.LogEntry
	skipped := 0
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var entry models.LogEntry
		if err := json.Unmarshal(line, &entry); err != nil || entry.Timestamp.IsZero() {
			skipped++
			continue
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read history log: %w", err)
	}

	if skipped > 0 {
		s.log.WithComponent("history").WithFields(logger.Fields{"skipped": skipped}).Debug("skipped malformed history lines")
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Timestamp.Before(entries[j].Timestamp)
	})
	return entries, nil
}

// Dates returns the set of calendar dates that already have an entry.
func (s *Store) Dates() (map[string]struct{}, error) {
	entries, err := s.ReadAll()
	if err != nil {
		return nil, err
	}
	dates := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		dates[e.Timestamp.UTC().Format(dateLayout)] = struct{}{}
	}
	return dates, nil
}

// HasDate reports whether a LogEntry already exists for the given calendar
// date (YYYY-MM-DD).
func (s *Store) HasDate(date string) (bool, error) {
	dates, err := s.Dates()
	if err != nil {
		return false, err
	}
	_, ok := dates[date]
	return ok, nil
}
