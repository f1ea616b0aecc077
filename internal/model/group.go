package model

import "time"

// GroupPrivacy decides who can find and join a group.
type GroupPrivacy string

const (
	GroupPublic  GroupPrivacy = "public"  // anyone can join
	GroupPrivate GroupPrivacy = "private" // invitation only
	GroupSecret  GroupPrivacy = "secret"  // invitation only, hidden from non-members
)

func (p GroupPrivacy) Valid() bool {
	switch p {
	case GroupPublic, GroupPrivate, GroupSecret:
		return true
	}
	return false
}

type GroupSettings struct {
	Privacy            GroupPrivacy `json:"privacy"            bson:"privacy"`
	AllowMemberPosts   bool         `json:"allowMemberPosts"   bson:"allowMemberPosts"`
	AllowMemberInvites bool         `json:"allowMemberInvites" bson:"allowMemberInvites"`
}

// Group is a set of users sharing posts. The admin is always a member.
type Group struct {
	ID          string        `json:"id"               bson:"_id"`
	Name        string        `json:"name"             bson:"name"`
	Description string        `json:"description"      bson:"description"`
	AdminID     string        `json:"adminId"          bson:"adminId"`
	Members     []string      `json:"members"          bson:"members"`
	Settings    GroupSettings `json:"settings"         bson:"settings"`
	Avatar      string        `json:"avatar,omitempty" bson:"avatar,omitempty"`
	CreatedAt   time.Time     `json:"createdAt"        bson:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"        bson:"updatedAt"`
}

func (g *Group) HasMember(userID string) bool {
	return Contains(g.Members, userID)
}

// VisibleTo reports whether userID may see the group at all. Secret
// groups are invisible to non-members.
func (g *Group) VisibleTo(userID string) bool {
	return g.Settings.Privacy != GroupSecret || g.HasMember(userID)
}
