package jobdiva

import (
	"encoding/json"
	"fmt"
)

// Candidate is a JobDiva candidate found by phone.
type Candidate struct {
	ID    string
	Name  string
	Phone string
}

// rawCandidate accepts the field spellings seen in JobDiva search results.
type rawCandidate struct {
	CandidateID   json.RawMessage `json:"candidate_id"`
	ID            json.RawMessage `json:"id"`
	CandidateName string          `json:"candidate_name"`
	Name          string          `json:"name"`
	FirstName     string          `json:"firstName"`
	LastName      string          `json:"lastName"`
	Phone         string          `json:"phone"`
}

func (r rawCandidate) toCandidate() *Candidate {
	id := idString(r.CandidateID)
	if id == "" {
		id = idString(r.ID)
	}
	name := r.CandidateName
	if name == "" {
		name = r.Name
	}
	if name == "" && (r.FirstName != "" || r.LastName != "") {
		name = r.FirstName
		if r.LastName != "" {
			if name != "" {
				name += " "
			}
			name += r.LastName
		}
	}
	return &Candidate{ID: id, Name: name, Phone: r.Phone}
}

// idString renders a JSON string or number id as a string.
func idString(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

// searchResponse covers {"candidates": [...]}, {"items": [...]} and a single object.
type searchResponse struct {
	Candidates []rawCandidate `json:"candidates"`
	Items      []rawCandidate `json:"items"`
}

// parseSearch extracts the first candidate from a search response body, or nil.
func parseSearch(body []byte) (*Candidate, error) {
	trimmed := firstNonSpace(body)
	switch trimmed {
	case 0:
		return nil, nil
	case '[':
		var list []rawCandidate
		if err := json.Unmarshal(body, &list); err != nil {
			return nil, fmt.Errorf("decode candidate list: %w", err)
		}
		if len(list) == 0 {
			return nil, nil
		}
		return list[0].toCandidate(), nil
	}

	var wrapped searchResponse
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return nil, fmt.Errorf("decode candidate search: %w", err)
	}
	if len(wrapped.Candidates) > 0 {
		return wrapped.Candidates[0].toCandidate(), nil
	}
	if len(wrapped.Items) > 0 {
		return wrapped.Items[0].toCandidate(), nil
	}

	var single rawCandidate
	if err := json.Unmarshal(body, &single); err != nil {
		return nil, fmt.Errorf("decode candidate: %w", err)
	}
	c := single.toCandidate()
	if c.ID == "" {
		return nil, nil
	}
	return c, nil
}

func firstNonSpace(b []byte) byte {
	for _, c := range b {
		switch c {
		case ' ', '\t', '\r', '\n':
			continue
		}
		return c
	}
	return 0
}

// NotePayload is the body of POST /apiv2/candidates/{id}/notes.
type NotePayload struct {
	NoteText string `json:"noteText"`
}

// noteResponse accepts note_id or id.
type noteResponse struct {
	NoteID json.RawMessage `json:"note_id"`
	ID     json.RawMessage `json:"id"`
}

// NoteResult is what CreateNote reports.
type NoteResult struct {
	NoteID string
}

type loginPayload struct {
	Username string `json:"username"`
	Password string `json:"password"`
	ClientID string `json:"client_id,omitempty"`
}

type loginResponse struct {
	AccessToken string `json:"access_token"`
	Token       string `json:"token"`
	ExpiresIn   int    `json:"expires_in"`
}
