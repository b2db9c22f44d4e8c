package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/charlesng35/rsvp/internal/models"
	apperrors "github.com/charlesng35/rsvp/pkg/errors"
)

// PostInput describes the editable attributes of a post.
type PostInput struct {
	Title        string
	Content      string
	Public       bool
	Draft        bool
	Archived     bool
	AuthorEmails []string
}

// PostService manages member posts.
type PostService struct {
	db    *gorm.DB
	audit *AuditService
}

// NewPostService constructs a PostService.
func NewPostService(db *gorm.DB, audit *AuditService) (*PostService, error) {
	if db == nil {
		return nil, errors.New("post service: db is required")
	}
	return &PostService{db: db, audit: audit}, nil
}

// Create stores a post. The actor is always one of the authors.
func (s *PostService) Create(ctx context.Context, actor *models.User, input PostInput) (*models.Post, error) {
	ctx = ensureContext(ctx)

	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, apperrors.NewBadRequest("title is required")
	}

	authors, err := s.authors(ctx, actor, input.AuthorEmails)
	if err != nil {
		return nil, err
	}

	post := &models.Post{
		Title:    title,
		Content:  input.Content,
		Public:   input.Public,
		Draft:    input.Draft,
		Archived: input.Archived,
		Authors:  authors,
	}
	if err := s.db.WithContext(ctx).Create(post).Error; err != nil {
		return nil, fmt.Errorf("post service: create: %w", err)
	}

	recordAudit(s.audit, ctx, actorEntry(actor, "post.create", "post", post.ID))
	return post, nil
}

// Update replaces the post content and authors. Only admins and authors may edit.
func (s *PostService) Update(ctx context.Context, actor *models.User, id string, input PostInput) (*models.Post, error) {
	ctx = ensureContext(ctx)

	post, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !post.CanEdit(actor) {
		return nil, apperrors.ErrForbidden
	}
	if title := strings.TrimSpace(input.Title); title != "" {
		post.Title = title
	}

	authors, err := s.authors(ctx, actor, input.AuthorEmails)
	if err != nil {
		return nil, err
	}

	post.Content = input.Content
	post.Public = input.Public
	post.Draft = input.Draft
	post.Archived = input.Archived

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(post).Association("Authors").Replace(authors); err != nil {
			return err
		}
		post.Authors = authors
		return tx.Omit("Authors").Save(post).Error
	})
	if err != nil {
		return nil, fmt.Errorf("post service: update: %w", err)
	}

	recordAudit(s.audit, ctx, actorEntry(actor, "post.update", "post", post.ID))
	return post, nil
}

// Delete removes a post. Only admins and authors may delete.
func (s *PostService) Delete(ctx context.Context, actor *models.User, id string) error {
	ctx = ensureContext(ctx)

	post, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if !post.CanEdit(actor) {
		return apperrors.ErrForbidden
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(post).Association("Authors").Clear(); err != nil {
			return err
		}
		return tx.Delete(post).Error
	})
	if err != nil {
		return fmt.Errorf("post service: delete: %w", err)
	}
	recordAudit(s.audit, ctx, actorEntry(actor, "post.delete", "post", id))
	return nil
}

// Get loads a post with its authors.
func (s *PostService) Get(ctx context.Context, id string) (*models.Post, error) {
	ctx = ensureContext(ctx)

	var post models.Post
	err := s.db.WithContext(ctx).Preload("Authors").First(&post, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPostNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("post service: get: %w", err)
	}
	return &post, nil
}

// ListPublic returns posts visible without signing in.
func (s *PostService) ListPublic(ctx context.Context) ([]models.Post, error) {
	return s.list(ctx, func(q *gorm.DB) *gorm.DB {
		return q.Where("public = ? AND draft = ? AND archived = ?", true, false, false)
	})
}

// ListPublished returns every non-draft post. Archived posts are included when all is set.
func (s *PostService) ListPublished(ctx context.Context, all bool) ([]models.Post, error) {
	return s.list(ctx, func(q *gorm.DB) *gorm.DB {
		q = q.Where("draft = ?", false)
		if !all {
			q = q.Where("archived = ?", false)
		}
		return q
	})
}

// ListDrafts returns the drafts the user can edit.
func (s *PostService) ListDrafts(ctx context.Context, user *models.User) ([]models.Post, error) {
	posts, err := s.list(ctx, func(q *gorm.DB) *gorm.DB {
		return q.Where("draft = ?", true)
	})
	if err != nil {
		return nil, err
	}
	out := posts[:0]
	for i := range posts {
		if posts[i].CanEdit(user) {
			out = append(out, posts[i])
		}
	}
	return out, nil
}

func (s *PostService) list(ctx context.Context, scope func(*gorm.DB) *gorm.DB) ([]models.Post, error) {
	ctx = ensureContext(ctx)

	var posts []models.Post
	if err := scope(s.db.WithContext(ctx).Model(&models.Post{})).
		Preload("Authors").
		Order("created_at DESC").
		Find(&posts).Error; err != nil {
		return nil, fmt.Errorf("post service: list: %w", err)
	}
	return posts, nil
}

// authors resolves author emails, always including the actor.
func (s *PostService) authors(ctx context.Context, actor *models.User, emails []string) ([]models.User, error) {
	emails = normaliseEmails(emails)

	var users []models.User
	if len(emails) > 0 {
		if err := s.db.WithContext(ctx).Where("email IN ?", emails).Find(&users).Error; err != nil {
			return nil, fmt.Errorf("post service: load authors: %w", err)
		}
		if len(users) != len(emails) {
			return nil, apperrors.NewBadRequest("unknown author email")
		}
	}

	if actor != nil {
		for i := range users {
			if users[i].ID == actor.ID {
				return users, nil
			}
		}
		users = append([]models.User{*actor}, users...)
	}
	return users, nil
}
