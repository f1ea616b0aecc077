package model

import "time"

// Post is a single feed entry.
//
// Likes and SavedBy are sets of user ids: a user appears at most once and
// is added or removed by toggling. Author and Comments are populated by the
// service layer on the way out and are never persisted with the post.
type Post struct {
	ID           string       `json:"id"                 bson:"_id"`
	AuthorID     string       `json:"authorId"           bson:"authorId"`
	Author       *UserSummary `json:"author,omitempty"   bson:"-"`
	Content      string       `json:"content"            bson:"content"`
	MediaURL     string       `json:"mediaUrl,omitempty" bson:"mediaUrl,omitempty"`
	GroupID      string       `json:"groupId,omitempty"  bson:"groupId,omitempty"`
	Likes        []string     `json:"likes"              bson:"likes"`
	SavedBy      []string     `json:"savedBy"            bson:"savedBy"`
	Comments     []Comment    `json:"comments,omitempty" bson:"-"`
	CommentCount int          `json:"commentCount"       bson:"-"`
	CreatedAt    time.Time    `json:"createdAt"          bson:"createdAt"`
	UpdatedAt    time.Time    `json:"updatedAt"          bson:"updatedAt"`
}

// LikedBy reports whether userID has liked the post.
func (p *Post) LikedBy(userID string) bool {
	return Contains(p.Likes, userID)
}

// IsSavedBy reports whether userID has saved the post.
func (p *Post) IsSavedBy(userID string) bool {
	return Contains(p.SavedBy, userID)
}
