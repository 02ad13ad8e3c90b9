package model

import "strings"

// Document field names for users.
const (
	FieldName        = "name"
	FieldAvatarColor = "avatarColor"
	FieldAvatarURL   = "avatarUrl"
)

// DefaultAvatarColor is used when a user document has no colour.
const DefaultAvatarColor = "#868E96"

// User is a board member. The board reads users once and never writes them.
type User struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	AvatarColor string  `json:"avatarColor"`
	AvatarURL   *string `json:"avatarUrl"`
}

// Initials returns up to two letters for the avatar fallback.
func (u User) Initials() string {
	var initials []rune
	for _, f := range strings.Fields(u.Name) {
		initials = append(initials, []rune(f)[0])
		if len(initials) == 2 {
			break
		}
	}
	if len(initials) == 0 {
		return "?"
	}
	return strings.ToUpper(string(initials))
}

// UserFromDocument decodes a stored user document.
func UserFromDocument(id string, data map[string]any) User {
	u := User{
		ID:          id,
		Name:        stringField(data, FieldName),
		AvatarColor: stringField(data, FieldAvatarColor),
	}
	if u.Name == "" {
		u.Name = id
	}
	if u.AvatarColor == "" {
		u.AvatarColor = DefaultAvatarColor
	}
	if url := stringField(data, FieldAvatarURL); url != "" {
		u.AvatarURL = &url
	}
	return u
}

// UserByID finds a user in users.
func UserByID(users []User, id string) (User, bool) {
	for _, u := range users {
		if u.ID == id {
			return u, true
		}
	}
	return User{}, false
}
