package fills

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Store provides thread-safe, chronological storage for fill records.
type Store struct {
	mu   sync.RWMutex
	logs map[string][]Record // Partitioned by SourceID (pharmacy / site)
}

// NewStore creates a new empty Store.
func NewStore() *Store {
	return &Store{
		logs: make(map[string][]Record),
	}
}

// Append adds new records for a given source, keeping chronological order and dropping duplicates.
// It returns the number of records actually added.
func (s *Store) Append(sourceID string, records []Record) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	history := s.logs[sourceID]

	existing := make(map[string]bool, len(history))
	for _, r := range history {
		existing[r.identity()] = true
	}

	added := 0
	for _, r := range records {
		id := r.identity()
		if existing[id] {
			continue
		}
		existing[id] = true
		history = append(history, r)
		added++
	}

	if added == 0 {
		return 0
	}

	// Sort by fill date, then patient and medication for deterministic ordering
	sort.SliceStable(history, func(i, j int) bool {
		a, b := history[i], history[j]
		if !a.FillDate.Equal(b.FillDate) {
			return a.FillDate.Before(b.FillDate)
		}
		if a.PatientID != b.PatientID {
			return a.PatientID < b.PatientID
		}
		return a.Medication < b.Medication
	})

	s.logs[sourceID] = history
	return added
}

// Load reads records from a JSONL file for the given source.
func (s *Store) Load(dir string, sourceID string) error {
	path := filepath.Join(dir, fmt.Sprintf("%s.jsonl", sourceID))
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // Nothing stored yet, not an error
		}
		return fmt.Errorf("failed to open fill history: %w", err)
	}
	defer file.Close()

	var records []Record
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var r Record
		if err := json.Unmarshal(scanner.Bytes(), &r); err != nil {
			log.Warn().Err(err).Str("source", sourceID).Msg("Skipping invalid JSON line in fill history")
			continue
		}
		records = append(records, r)
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading fill history: %w", err)
	}

	log.Info().Str("source", sourceID).Int("count", len(records)).Msg("Loaded fill history")
	s.Append(sourceID, records)
	return nil
}

// Save persists the records of a source to a JSONL file using write-then-rename.
func (s *Store) Save(dir string, sourceID string) error {
	s.mu.RLock()
	history, ok := s.logs[sourceID]
	s.mu.RUnlock()

	if !ok || len(history) == 0 {
		return nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create history directory: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("%s.jsonl", sourceID))
	tmpPath := path + ".tmp"

	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("failed to create temp history file: %w", err)
	}

	writer := bufio.NewWriter(file)
	encoder := json.NewEncoder(writer)

	for _, r := range history {
		if err := encoder.Encode(r); err != nil {
			file.Close()
			os.Remove(tmpPath)
			return fmt.Errorf("failed to encode fill record: %w", err)
		}
	}

	if err := writer.Flush(); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to flush writer: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename history file: %w", err)
	}

	log.Info().Str("source", sourceID).Int("count", len(history)).Msg("Fill history saved")
	return nil
}

// LatestFillDate returns the most recent fill date stored for a source.
func (s *Store) LatestFillDate(sourceID string) time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history := s.logs[sourceID]
	if len(history) == 0 {
		return time.Time{}
	}
	// Zero dates sort first, so the tail is the latest real fill
	return history[len(history)-1].FillDate
}

// Count returns the number of records stored for a source.
func (s *Store) Count(sourceID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.logs[sourceID])
}

// All returns a copy of every record of a source.
func (s *Store) All(sourceID string) []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history := s.logs[sourceID]
	result := make([]Record, len(history))
	copy(result, history)
	return result
}

// InRange returns a copy of records filled within [start, end]. A zero end means open-ended.
func (s *Store) InRange(sourceID string, start, end time.Time) []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []Record
	for _, r := range s.logs[sourceID] {
		if r.FillDate.Before(start) {
			continue
		}
		if !end.IsZero() && r.FillDate.After(end) {
			continue
		}
		result = append(result, r)
	}
	return result
}

// ForPatient returns the full fill history of one patient.
func (s *Store) ForPatient(sourceID string, patientID string) []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []Record
	for _, r := range s.logs[sourceID] {
		if r.PatientID == patientID {
			result = append(result, r)
		}
	}
	return result
}
