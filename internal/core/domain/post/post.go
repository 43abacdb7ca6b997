package post

import (
	"time"

	"github.com/google/uuid"

	"github.com/inkstone/newsroom/internal/core/domain/identity"
)

// Status is a post's position in the publishing workflow.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusPending   Status = "pending"
	StatusPublished Status = "published"
	StatusArchived  Status = "archived"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusDraft, StatusPending, StatusPublished, StatusArchived:
		return true
	default:
		return false
	}
}

type Post struct {
	ID          uuid.UUID  `json:"id" db:"id"`
	AuthorID    uuid.UUID  `json:"author_id" db:"author_id"`
	Title       string     `json:"title" db:"title"`
	Slug        string     `json:"slug" db:"slug"`
	Body        string     `json:"body" db:"body"`
	Status      Status     `json:"status" db:"status"`
	ViewCount   int        `json:"view_count" db:"view_count"`
	PublishedAt *time.Time `json:"published_at,omitempty" db:"published_at"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}

type CreatePostRequest struct {
	Title string `json:"title" validate:"required,max=200"`
	Slug  string `json:"slug" validate:"required,max=200"`
	Body  string `json:"body" validate:"required"`
}

type UpdatePostRequest struct {
	Title *string `json:"title,omitempty" validate:"omitempty,max=200"`
	Slug  *string `json:"slug,omitempty" validate:"omitempty,max=200"`
	Body  *string `json:"body,omitempty"`
}

// Ownership predicates. Authors keep rights over their own posts only while
// the workflow state allows it: once a post is published, modifying or
// unpublishing it needs editor or above, even for the author. This state
// bound is per-resource policy and must not be collapsed into a plain
// owner-or-role check.

// CanModify reports whether who may edit or save over p.
func CanModify(who *identity.Identity, p *Post) bool {
	if who == nil || p == nil {
		return false
	}
	if p.Status == StatusPublished {
		return who.Role.AtLeast(identity.RoleEditor)
	}
	if who.ID == p.AuthorID {
		return true
	}
	return who.Role.AtLeast(identity.RoleEditor)
}

// CanDelete reports whether who may delete p. Deleting published content is
// an admin action; drafts and pending posts follow the modify rule.
func CanDelete(who *identity.Identity, p *Post) bool {
	if who == nil || p == nil {
		return false
	}
	if p.Status == StatusPublished {
		return who.Role.AtLeast(identity.RoleAdmin)
	}
	return CanModify(who, p)
}

// CanPublish reports whether who may move p into the published state.
func CanPublish(who *identity.Identity, p *Post) bool {
	if who == nil || p == nil {
		return false
	}
	return who.Role.AtLeast(identity.RoleEditor)
}

// CanUnpublish reports whether who may pull p back out of the published
// state. The author gets no special treatment here.
func CanUnpublish(who *identity.Identity, p *Post) bool {
	if who == nil || p == nil {
		return false
	}
	return who.Role.AtLeast(identity.RoleEditor)
}
