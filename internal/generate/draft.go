package generate

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Draft is a generated page ready for publishing.
type Draft struct {
	Site        string    `json:"site"`
	FullKeyword string    `json:"keyword"`
	Content     Content   `json:"content"`
	HTML        string    `json:"html"`
	PublishDate time.Time `json:"publish_date"`
}

// SaveDrafts writes drafts to path as indented JSON.
func SaveDrafts(path string, drafts []Draft) error {
	if drafts == nil {
		drafts = []Draft{}
	}
	data, err := json.MarshalIndent(drafts, "", "  ")
	if err != nil {
		return fmt.Errorf("encode drafts: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("write drafts: %w", err)
	}
	return nil
}

// LoadDrafts reads drafts written by SaveDrafts.
func LoadDrafts(path string) ([]Draft, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read drafts: %w", err)
	}
	var drafts []Draft
	if err := json.Unmarshal(data, &drafts); err != nil {
		return nil, fmt.Errorf("decode drafts: %w", err)
	}
	return drafts, nil
}
