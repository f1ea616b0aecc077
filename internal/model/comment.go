package model

import "time"

// Comment is stored as its own record referencing the post it belongs to.
type Comment struct {
	ID        string       `json:"id"               bson:"_id"`
	PostID    string       `json:"postId"           bson:"postId"`
	AuthorID  string       `json:"authorId"         bson:"authorId"`
	Author    *UserSummary `json:"author,omitempty" bson:"-"`
	Content   string       `json:"content"          bson:"content"`
	Likes     []string     `json:"likes"            bson:"likes"`
	CreatedAt time.Time    `json:"createdAt"        bson:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"        bson:"updatedAt"`
}
