// Package persist hands conversation snapshots to external storage. Saving
// is fire-and-forget from the turn cycle's point of view: failures are
// logged by the caller and never block a turn.
package persist

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/supabase-community/supabase-go"
)

// Snapshot is the persisted view of one conversation.
type Snapshot struct {
	SessionID string `json:"session_id"`
	Language  string `json:"detected_language"`
	Ended     bool   `json:"ended"`
	Turns     []Turn `json:"turns"`
}

// Turn mirrors one committed conversation turn.
type Turn struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// Supabase stores snapshots as JSON objects in a storage bucket, one object
// per session, overwritten on each periodic save.
type Supabase struct {
	client *supabase.Client
	bucket string
}

// NewSupabase constructs the store. Returns an error when the project URL or
// key is missing so the caller can run with persistence disabled.
func NewSupabase(url, serviceKey, bucket string) (*Supabase, error) {
	if url == "" || serviceKey == "" {
		return nil, fmt.Errorf("persist: supabase url and service key required")
	}
	client, err := supabase.NewClient(url, serviceKey, &supabase.ClientOptions{})
	if err != nil {
		return nil, fmt.Errorf("persist: create supabase client: %w", err)
	}
	return &Supabase{client: client, bucket: bucket}, nil
}

// Append uploads the snapshot under transcripts/<session-id>.json,
// overwriting any earlier save for the same session.
func (s *Supabase) Append(snap Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("persist: marshal snapshot: %w", err)
	}
	key := "transcripts/" + snap.SessionID + ".json"
	if _, err := s.client.Storage.UploadFile(s.bucket, key, bytes.NewReader(data)); err != nil {
		// object may already exist from a previous periodic save
		if _, uerr := s.client.Storage.UpdateFile(s.bucket, key, bytes.NewReader(data)); uerr != nil {
			return fmt.Errorf("persist: upload snapshot: %w", err)
		}
	}
	return nil
}
