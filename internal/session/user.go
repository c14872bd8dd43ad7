package session

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// ID is a user identifier kept in its JSON form, so numeric ids stay
// numbers and string ids stay strings when marshalled again.
type ID string

// String returns the id without JSON quoting
func (id ID) String() string {
	var s string
	if err := json.Unmarshal([]byte(id), &s); err == nil {
		return s
	}
	return string(id)
}

// IsZero reports whether the id is absent or null
func (id ID) IsZero() bool {
	return id == "" || id == "null"
}

func (id ID) MarshalJSON() ([]byte, error) {
	if id.IsZero() {
		return []byte("null"), nil
	}
	return []byte(id), nil
}

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if !json.Valid(data) {
		return fmt.Errorf("invalid user id: %s", data)
	}
	*id = ID(data)
	return nil
}

// User is the normalized user record. Name joins the first and last name,
// and every backend field without a typed home survives in Extra.
type User struct {
	ID         ID
	Name       string
	Email      string
	Username   string
	FirstName  string
	LastName   string
	DateJoined string
	Extra      map[string]json.RawMessage
}

var knownUserFields = map[string]bool{
	"id": true, "$id": true, "name": true, "email": true,
	"username": true, "first_name": true, "last_name": true, "date_joined": true,
}

// UnmarshalJSON normalizes a backend user object
func (u *User) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to decode user: %w", err)
	}
	if raw == nil {
		return fmt.Errorf("failed to decode user: null")
	}

	var parsed struct {
		ID         ID     `json:"id"`
		Name       string `json:"name"`
		Email      string `json:"email"`
		Username   string `json:"username"`
		FirstName  string `json:"first_name"`
		LastName   string `json:"last_name"`
		DateJoined string `json:"date_joined"`
	}
	if err := json.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to decode user: %w", err)
	}

	*u = User{
		ID:         parsed.ID,
		Email:      parsed.Email,
		Username:   parsed.Username,
		FirstName:  parsed.FirstName,
		LastName:   parsed.LastName,
		DateJoined: parsed.DateJoined,
		Name:       strings.TrimSpace(parsed.FirstName + " " + parsed.LastName),
	}
	if u.Name == "" {
		u.Name = parsed.Name
	}

	for key, value := range raw {
		if knownUserFields[key] {
			continue
		}
		if u.Extra == nil {
			u.Extra = make(map[string]json.RawMessage)
		}
		u.Extra[key] = value
	}
	return nil
}

// MarshalJSON emits the merged record with the id duplicated under $id
func (u User) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(u.Extra)+8)
	for key, value := range u.Extra {
		out[key] = value
	}

	out["id"] = u.ID
	out["$id"] = u.ID
	if u.Name != "" {
		out["name"] = u.Name
	}
	if u.Email != "" {
		out["email"] = u.Email
	}
	for key, value := range map[string]string{
		"username":    u.Username,
		"first_name":  u.FirstName,
		"last_name":   u.LastName,
		"date_joined": u.DateJoined,
	} {
		if value != "" {
			out[key] = value
		}
	}
	return json.Marshal(out)
}

// DisplayName returns the best human readable label for the user
func (u *User) DisplayName() string {
	switch {
	case u.Name != "":
		return u.Name
	case u.Username != "":
		return u.Username
	case u.Email != "":
		return u.Email
	default:
		return u.ID.String()
	}
}
