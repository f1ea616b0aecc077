// Package model defines the data structures shared by every layer of the
// application. Structs carry both json tags (API shape) and bson tags (the
// MongoDB store); the SQLite store maps columns by hand.
package model

import "time"

// Theme is the client colour scheme preference.
type Theme string

const (
	ThemeDark   Theme = "dark"
	ThemeLight  Theme = "light"
	ThemeSystem Theme = "system"
)

// Valid reports whether t is one of the known themes.
func (t Theme) Valid() bool {
	switch t {
	case ThemeDark, ThemeLight, ThemeSystem:
		return true
	}
	return false
}

// Visibility controls who may see a user's profile.
type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityFriends Visibility = "friends"
	VisibilityPrivate Visibility = "private"
)

func (v Visibility) Valid() bool {
	switch v {
	case VisibilityPublic, VisibilityFriends, VisibilityPrivate:
		return true
	}
	return false
}

type NotificationSettings struct {
	NewComments    bool `json:"newComments"    bson:"newComments"`
	FriendRequests bool `json:"friendRequests" bson:"friendRequests"`
	GroupInvites   bool `json:"groupInvites"   bson:"groupInvites"`
	DailyReminder  bool `json:"dailyReminder"  bson:"dailyReminder"`
}

type PrivacySettings struct {
	ProfileVisibility   Visibility `json:"profileVisibility"   bson:"profileVisibility"`
	AllowFriendRequests bool       `json:"allowFriendRequests" bson:"allowFriendRequests"`
}

// UserSettings groups the per-user preferences stored with the account.
type UserSettings struct {
	Theme         Theme                `json:"theme"         bson:"theme"`
	Notifications NotificationSettings `json:"notifications" bson:"notifications"`
	Privacy       PrivacySettings      `json:"privacy"       bson:"privacy"`
}

// DefaultSettings returns the settings every new account starts with.
func DefaultSettings() UserSettings {
	return UserSettings{
		Theme: ThemeSystem,
		Notifications: NotificationSettings{
			NewComments:    true,
			FriendRequests: true,
			GroupInvites:   true,
			DailyReminder:  true,
		},
		Privacy: PrivacySettings{
			ProfileVisibility:   VisibilityPublic,
			AllowFriendRequests: true,
		},
	}
}

// SettingsPatch is a partial settings update. Nil fields keep their
// stored value, so {"theme":"dark"} changes the theme and nothing else.
type SettingsPatch struct {
	Theme         *Theme              `json:"theme,omitempty"`
	Notifications *NotificationsPatch `json:"notifications,omitempty"`
	Privacy       *PrivacyPatch       `json:"privacy,omitempty"`
}

type NotificationsPatch struct {
	NewComments    *bool `json:"newComments,omitempty"`
	FriendRequests *bool `json:"friendRequests,omitempty"`
	GroupInvites   *bool `json:"groupInvites,omitempty"`
	DailyReminder  *bool `json:"dailyReminder,omitempty"`
}

type PrivacyPatch struct {
	ProfileVisibility   *Visibility `json:"profileVisibility,omitempty"`
	AllowFriendRequests *bool       `json:"allowFriendRequests,omitempty"`
}

// PatchFrom returns a patch that sets every field to the value in s.
func PatchFrom(s UserSettings) *SettingsPatch {
	n, p := s.Notifications, s.Privacy
	return &SettingsPatch{
		Theme: &s.Theme,
		Notifications: &NotificationsPatch{
			NewComments:    &n.NewComments,
			FriendRequests: &n.FriendRequests,
			GroupInvites:   &n.GroupInvites,
			DailyReminder:  &n.DailyReminder,
		},
		Privacy: &PrivacyPatch{
			ProfileVisibility:   &p.ProfileVisibility,
			AllowFriendRequests: &p.AllowFriendRequests,
		},
	}
}

// Apply returns s with the patch's non-nil fields written over it.
func (p *SettingsPatch) Apply(s UserSettings) UserSettings {
	if p == nil {
		return s
	}
	if p.Theme != nil {
		s.Theme = *p.Theme
	}
	if n := p.Notifications; n != nil {
		setBool(&s.Notifications.NewComments, n.NewComments)
		setBool(&s.Notifications.FriendRequests, n.FriendRequests)
		setBool(&s.Notifications.GroupInvites, n.GroupInvites)
		setBool(&s.Notifications.DailyReminder, n.DailyReminder)
	}
	if pr := p.Privacy; pr != nil {
		if pr.ProfileVisibility != nil {
			s.Privacy.ProfileVisibility = *pr.ProfileVisibility
		}
		setBool(&s.Privacy.AllowFriendRequests, pr.AllowFriendRequests)
	}
	return s
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

// User is a registered account.
//
// PasswordHash is write-only: the json:"-" tag keeps it out of every API
// response. GitHubID is nil for accounts created with a password.
//
// Groups is derived from group membership and HasPostedToday from
// LastPostedAt; neither is stored as such.
type User struct {
	ID             string       `json:"id"                     bson:"_id"`
	Username       string       `json:"username"               bson:"username"`
	Email          string       `json:"email"                  bson:"email"`
	Name           string       `json:"name"                   bson:"name"`
	Bio            string       `json:"bio"                    bson:"bio"`
	ProfilePicture string       `json:"profilePicture"         bson:"profilePicture"`
	PasswordHash   string       `json:"-"                      bson:"passwordHash"`
	GitHubID       *int64       `json:"githubId,omitempty"     bson:"githubId,omitempty"`
	Friends        []string     `json:"friends"                bson:"friends"`
	Groups         []string     `json:"groups"                 bson:"-"`
	Settings       UserSettings `json:"settings"               bson:"settings"`
	HasPostedToday bool         `json:"hasPostedToday"         bson:"-"`
	LastPostedAt   *time.Time   `json:"lastPostedAt,omitempty" bson:"lastPostedAt,omitempty"`
	CreatedAt      time.Time    `json:"createdAt"              bson:"createdAt"`
	UpdatedAt      time.Time    `json:"updatedAt"              bson:"updatedAt"`
}

// RefreshPostedToday recomputes HasPostedToday against now, comparing UTC
// calendar days.
func (u *User) RefreshPostedToday(now time.Time) {
	if u.LastPostedAt == nil {
		u.HasPostedToday = false
		return
	}
	y1, m1, d1 := u.LastPostedAt.UTC().Date()
	y2, m2, d2 := now.UTC().Date()
	u.HasPostedToday = y1 == y2 && m1 == m2 && d1 == d2
}

// IsFriend reports whether id is in u's friend set.
func (u *User) IsFriend(id string) bool {
	return Contains(u.Friends, id)
}

// Summary returns the display-safe subset used when a user is embedded in
// another resource (post author, comment author).
func (u *User) Summary() *UserSummary {
	return &UserSummary{
		ID:             u.ID,
		Username:       u.Username,
		Name:           u.Name,
		ProfilePicture: u.ProfilePicture,
	}
}

// UserSummary is what "populate" resolves a user reference to. It never
// carries email or password.
type UserSummary struct {
	ID             string `json:"id"             bson:"_id"`
	Username       string `json:"username"       bson:"username"`
	Name           string `json:"name"           bson:"name"`
	ProfilePicture string `json:"profilePicture" bson:"profilePicture"`
}

// Contains reports whether ids holds id.
func Contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
