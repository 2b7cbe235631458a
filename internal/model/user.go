package model

// UploadsPath is the public URL prefix under which avatar files are served.
const UploadsPath = "/uploads/"

// User is a staff member as stored in the user collection.
type User struct {
	ID          int64  `json:"id"`
	Login       string `json:"login"`
	DisplayName string `json:"displayName"`
	AvatarFile  string `json:"avatarFile,omitempty"`
}

// PublicUser is the profile exposed over the API.
type PublicUser struct {
	ID          int64   `json:"id"`
	Login       string  `json:"login"`
	DisplayName string  `json:"displayName"`
	AvatarURL   *string `json:"avatarUrl"`
}

// AvatarURL turns an avatar file reference into a public URL, or nil when
// there is no avatar.
func AvatarURL(file string) *string {
	if file == "" {
		return nil
	}
	u := UploadsPath + file
	return &u
}

// Public returns the user's public profile.
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:          u.ID,
		Login:       u.Login,
		DisplayName: u.DisplayName,
		AvatarURL:   AvatarURL(u.AvatarFile),
	}
}

// FindUser returns the user with the given id, or nil.
func FindUser(users []User, id int64) *User {
	for i := range users {
		if users[i].ID == id {
			return &users[i]
		}
	}
	return nil
}

// FindUserByLogin returns the user with the given login, or nil.
func FindUserByLogin(users []User, login string) *User {
	for i := range users {
		if users[i].Login == login {
			return &users[i]
		}
	}
	return nil
}
