package model

import "testing"

func TestAvatarURL(t *testing.T) {
	if got := AvatarURL(""); got != nil {
		t.Errorf("AvatarURL(\"\") = %q, want nil", *got)
	}
	got := AvatarURL("avatar_4.jpg")
	if got == nil || *got != "/uploads/avatar_4.jpg" {
		t.Errorf("AvatarURL = %v, want /uploads/avatar_4.jpg", got)
	}
}

func TestUserPublic(t *testing.T) {
	u := User{ID: 4, Login: "ivanov", DisplayName: "Иванов И.", AvatarFile: "avatar_4.jpg"}
	p := u.Public()
	if p.ID != 4 || p.Login != "ivanov" || p.DisplayName != "Иванов И." {
		t.Errorf("unexpected public profile: %+v", p)
	}
	if p.AvatarURL == nil || *p.AvatarURL != "/uploads/avatar_4.jpg" {
		t.Errorf("unexpected avatar url: %v", p.AvatarURL)
	}
}

func TestFindUser(t *testing.T) {
	users := []User{{ID: 1, Login: "a"}, {ID: 4, Login: "b"}}

	tests := []struct {
		id    int64
		login string
	}{
		{1, "a"},
		{4, "b"},
		{7, ""},
	}
	for _, tt := range tests {
		u := FindUser(users, tt.id)
		switch {
		case tt.login == "" && u != nil:
			t.Errorf("FindUser(%d) = %+v, want nil", tt.id, u)
		case tt.login != "" && (u == nil || u.Login != tt.login):
			t.Errorf("FindUser(%d) = %+v, want login %q", tt.id, u, tt.login)
		}
	}

	if u := FindUserByLogin(users, "b"); u == nil || u.ID != 4 {
		t.Errorf("FindUserByLogin(b) = %+v", u)
	}
	if u := FindUserByLogin(users, "zzz"); u != nil {
		t.Errorf("FindUserByLogin(zzz) = %+v, want nil", u)
	}
}
