package jellyfin

import (
	"encoding/json"
	"fmt"
	"os"
)

// Session is an authenticated principal against one catalog server. Token
// acquisition is an external concern; jellysync only consumes an existing
// session.
type Session struct {
	ServerURL   string `json:"server_url"`
	AccessToken string `json:"access_token"`
	UserID      string `json:"user_id"`
}

// SessionStore defines the interface for retrieving the current session
type SessionStore interface {
	GetSession() (*Session, error)
}

// FileSessionStore implements SessionStore using a JSON file
type FileSessionStore struct {
	filepath string
}

// NewFileSessionStore creates a new file-based session store
func NewFileSessionStore(filepath string) (*FileSessionStore, error) {
	return &FileSessionStore{filepath: filepath}, nil
}

// GetSession reads and validates the session from the file
func (s *FileSessionStore) GetSession() (*Session, error) {
	data, err := os.ReadFile(s.filepath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("session file not found")
		}
		return nil, err
	}

	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, err
	}
	if session.ServerURL == "" || session.AccessToken == "" || session.UserID == "" {
		return nil, fmt.Errorf("session file is incomplete")
	}

	return &session, nil
}

// SaveSession writes the session to the file
func (s *FileSessionStore) SaveSession(session *Session) error {
	data, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(s.filepath, data, 0600)
}
