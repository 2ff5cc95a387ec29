package seen

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/jimezsa/jobscrape/internal/models"
)

// ReadRecords reads a JSON array of records from path.
func ReadRecords(path string) ([]models.JobRecord, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("path is required")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return []models.JobRecord{}, nil
	}

	var records []models.JobRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if records == nil {
		return []models.JobRecord{}, nil
	}
	return records, nil
}

// ReadRecordsAllowMissing treats a missing file as empty history.
func ReadRecordsAllowMissing(path string) ([]models.JobRecord, error) {
	records, err := ReadRecords(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []models.JobRecord{}, nil
		}
		return nil, err
	}
	return records, nil
}

// WriteRecords writes records as pretty JSON.
func WriteRecords(path string, records []models.JobRecord) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("path is required")
	}
	if records == nil {
		records = []models.JobRecord{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}
