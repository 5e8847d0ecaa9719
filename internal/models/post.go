// Package models contains data structures for the application's domain models.
package models

import (
	"slices"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AuthorSnapshot is the {_id, username} pair recorded when content is authored.
type AuthorSnapshot struct {
	ID       uint   `json:"_id" bson:"id"`
	Username string `json:"username" bson:"username"`
}

// Reply is embedded in a Comment. Replies do not nest.
type Reply struct {
	ID        string         `json:"_id" bson:"_id"`
	Text      string         `json:"text" bson:"text"`
	Author    AuthorSnapshot `json:"author" bson:"author"`
	CreatedAt time.Time      `json:"createdAt" bson:"created_at"`
}

// Comment is embedded in a Post. Its ID is unique across all posts.
type Comment struct {
	ID        string         `json:"_id" bson:"_id"`
	Text      string         `json:"text" bson:"text"`
	Author    AuthorSnapshot `json:"author" bson:"author"`
	CreatedAt time.Time      `json:"createdAt" bson:"created_at"`
	Replies   []Reply        `json:"replies" bson:"replies"`
}

// Post is the feed aggregate root. Comments and replies are stored inside the
// post row and are only ever changed by rewriting the aggregate as a whole.
type Post struct {
	ID          string                       `gorm:"primaryKey;size:36" json:"_id" bson:"_id"`
	URL         string                       `gorm:"not null" json:"url" bson:"url"`
	Description string                       `gorm:"type:text" json:"description" bson:"description"`
	AuthorID    uint                         `gorm:"not null;index" json:"authorId" bson:"author_id"`
	Likes       int                          `gorm:"not null" json:"likes" bson:"likes"`
	LikedBy     datatypes.JSONSlice[uint]    `json:"likedBy" bson:"liked_by"`
	Comments    datatypes.JSONSlice[Comment] `json:"comments" bson:"comments"`
	CreatedAt   time.Time                    `gorm:"index" json:"createdAt" bson:"created_at"`
	// Version is bumped by every write and guards optimistic updates.
	Version int64 `gorm:"not null" json:"-" bson:"-"`
}

// BeforeCreate assigns the id and initial version.
func (p *Post) BeforeCreate(_ *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Version == 0 {
		p.Version = 1
	}
	p.Normalize()
	return nil
}

// Normalize replaces nil collections with empty ones so they serialize as [].
func (p *Post) Normalize() {
	if p.LikedBy == nil {
		p.LikedBy = datatypes.JSONSlice[uint]{}
	}
	if p.Comments == nil {
		p.Comments = datatypes.JSONSlice[Comment]{}
	}
	for i := range p.Comments {
		if p.Comments[i].Replies == nil {
			p.Comments[i].Replies = []Reply{}
		}
	}
}

// LikedByUser reports whether userID is in the like set.
func (p *Post) LikedByUser(userID uint) bool {
	return slices.Contains(p.LikedBy, userID)
}

// ToggleLike flips userID's membership in the like set and keeps Likes equal
// to the set size. It returns true when the user now likes the post.
func (p *Post) ToggleLike(userID uint) bool {
	liked := false
	if i := slices.Index(p.LikedBy, userID); i >= 0 {
		p.LikedBy = slices.Delete(p.LikedBy, i, i+1)
	} else {
		p.LikedBy = append(p.LikedBy, userID)
		liked = true
	}
	p.Likes = len(p.LikedBy)
	return liked
}

// FindComment returns the comment with id, or nil.
func (p *Post) FindComment(id string) *Comment {
	for i := range p.Comments {
		if p.Comments[i].ID == id {
			return &p.Comments[i]
		}
	}
	return nil
}

// AppendComment adds c at the end of the comment sequence.
func (p *Post) AppendComment(c Comment) {
	if c.Replies == nil {
		c.Replies = []Reply{}
	}
	p.Comments = append(p.Comments, c)
}

// RemoveComment drops the comment with id and its replies. It reports whether
// a comment was removed.
func (p *Post) RemoveComment(id string) bool {
	before := len(p.Comments)
	p.Comments = slices.DeleteFunc(p.Comments, func(c Comment) bool { return c.ID == id })
	return len(p.Comments) != before
}

// AppendReply adds r under the comment with commentID.
func (p *Post) AppendReply(commentID string, r Reply) bool {
	c := p.FindComment(commentID)
	if c == nil {
		return false
	}
	c.Replies = append(c.Replies, r)
	return true
}

// CommentRef indexes a comment id to the post that owns it.
type CommentRef struct {
	CommentID string    `gorm:"primaryKey;size:36"`
	PostID    string    `gorm:"size:36;not null;index"`
	CreatedAt time.Time
}

// PostView is a post enriched with its author's current record. Author is nil
// when the author no longer exists.
type PostView struct {
	Post
	Author *AuthorSnapshot `json:"author"`
}

// NewPostView builds the projection of p with author.
func NewPostView(p *Post, author *AuthorSnapshot) *PostView {
	view := &PostView{Post: *p, Author: author}
	view.Normalize()
	return view
}
