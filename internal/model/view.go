package model

import "sort"

// AssetView is the API projection of an asset. Every key is always present.
type AssetView struct {
	ID          AssetID      `json:"id"`
	Type        string       `json:"type"`
	Name        string       `json:"name"`
	Room        string       `json:"room"`
	Status      string       `json:"status"`
	Counts      Counts       `json:"counts"`
	Totals      *Counts      `json:"totals,omitempty"`
	IsMine      bool         `json:"isMine"`
	Description *Description `json:"description,omitempty"`
	BusyBy      *PublicUser  `json:"busyBy"`
}

// ViewAsset projects a stored asset for the given viewer. Detailed views
// also carry the description and cumulative totals.
func ViewAsset(a *Asset, users []User, viewerID int64, detailed bool) AssetView {
	v := AssetView{
		ID:     a.ID,
		Type:   orDefault(a.Type, TypeUnknown),
		Name:   a.Name,
		Room:   a.Room,
		Status: orDefault(a.Status, StatusFree),
		IsMine: a.OwnedBy(viewerID),
	}
	if a.Counts != nil {
		v.Counts = *a.Counts
	}
	if a.BusyByUserID != nil {
		if u := FindUser(users, *a.BusyByUserID); u != nil {
			p := u.Public()
			v.BusyBy = &p
		}
	}
	if detailed {
		d := Description{}
		if a.Description != nil {
			d = *a.Description
		}
		v.Description = &d
		t := Counts{}
		if a.Totals != nil {
			t = *a.Totals
		}
		v.Totals = &t
	}
	return v
}

// EventUser is a user entry in event metadata.
type EventUser struct {
	Login       string  `json:"login"`
	DisplayName string  `json:"displayName"`
	AvatarURL   *string `json:"avatarUrl"`
}

// EventMeta lists the distinct work types and users seen in an event list.
type EventMeta struct {
	WorkTypes []string    `json:"workTypes"`
	Users     []EventUser `json:"users"`
}

// BuildEventMeta collects distinct non-empty work types and logins, each
// sorted. Logins without a user record fall back to the login as display name.
func BuildEventMeta(events []Event, users []User) EventMeta {
	types := distinct(events, func(e Event) string { return e.Type })
	logins := distinct(events, func(e Event) string { return e.UserLogin })

	meta := EventMeta{WorkTypes: types, Users: make([]EventUser, 0, len(logins))}
	for _, login := range logins {
		eu := EventUser{Login: login, DisplayName: login}
		if u := FindUserByLogin(users, login); u != nil {
			eu.DisplayName = u.DisplayName
			eu.AvatarURL = AvatarURL(u.AvatarFile)
		}
		meta.Users = append(meta.Users, eu)
	}
	return meta
}

func distinct(events []Event, key func(Event) string) []string {
	seen := make(map[string]bool)
	out := []string{}
	for _, e := range events {
		k := key(e)
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
