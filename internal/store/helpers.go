package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/BTreeMap/SehaCoach/internal/models"
)

// encodeOptions stores quick replies as a JSON array; no options maps to NULL.
func encodeOptions(opts []string) (interface{}, error) {
	if len(opts) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal options: %w", err)
	}
	return string(data), nil
}

// scanMessage scans a ChatMessage from sql.Rows.
func scanMessage(rows *sql.Rows) (models.ChatMessage, error) {
	var m models.ChatMessage
	var sender string
	var options sql.NullString
	if err := rows.Scan(&m.ID, &sender, &m.Text, &options, &m.Timestamp); err != nil {
		return m, fmt.Errorf("scan message failed: %w", err)
	}
	m.Sender = models.Sender(sender)
	if options.Valid && options.String != "" {
		if err := json.Unmarshal([]byte(options.String), &m.Options); err != nil {
			return m, fmt.Errorf("decode message options failed: %w", err)
		}
	}
	return m, nil
}

// collectMessages drains rows into a slice, closing them.
func collectMessages(rows *sql.Rows) ([]models.ChatMessage, error) {
	defer rows.Close()
	msgs := []models.ChatMessage{}
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate message rows: %w", err)
	}
	return msgs, nil
}

func decodeProfile(data []byte) (models.UserProfile, error) {
	var p models.UserProfile
	if err := json.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("failed to decode profile: %w", err)
	}
	return p, nil
}
