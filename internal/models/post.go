package models

import (
	"strings"

	"gorm.io/gorm"
)

// Post is a member-authored article. Drafts are never public.
type Post struct {
	BaseModel

	Title    string `gorm:"not null" json:"title"`
	Content  string `gorm:"type:text" json:"content"`
	Public   bool   `gorm:"default:false" json:"public"`
	Draft    bool   `gorm:"default:false;index" json:"draft"`
	Archived bool   `gorm:"default:false" json:"archived"`

	Authors []User `gorm:"many2many:post_authors;" json:"authors,omitempty"`
}

// BeforeSave clears the public flag on drafts.
func (p *Post) BeforeSave(tx *gorm.DB) error {
	if p.Draft {
		p.Public = false
	}
	return nil
}

// CanEdit reports whether user is an admin or one of the authors.
func (p *Post) CanEdit(user *User) bool {
	if user == nil {
		return false
	}
	if user.IsAdmin() {
		return true
	}
	for _, author := range p.Authors {
		if author.ID == user.ID {
			return true
		}
	}
	return false
}

// AuthorNames joins author nick names as "A, B & C".
func (p *Post) AuthorNames() string {
	names := make([]string, 0, len(p.Authors))
	for i := range p.Authors {
		names = append(names, p.Authors[i].NickName())
	}
	switch len(names) {
	case 0:
		return ""
	case 1:
		return names[0]
	}
	return strings.Join(names[:len(names)-1], ", ") + " & " + names[len(names)-1]
}
