package models

import "time"

// CategoryRecord is a category as persisted: flat, with hierarchy expressed
// only through ParentID. An empty ParentID marks a root.
type CategoryRecord struct {
	ID          string    `bson:"_id" json:"id" yaml:"id"`
	Name        string    `bson:"name" json:"name" yaml:"name"`
	Slug        string    `bson:"slug" json:"slug" yaml:"slug"`
	Description string    `bson:"description,omitempty" json:"description,omitempty" yaml:"description,omitempty"`
	ParentID    string    `bson:"parent_id,omitempty" json:"parentId,omitempty" yaml:"parentId,omitempty"`
	Template    *Template `bson:"template,omitempty" json:"template,omitempty" yaml:"template,omitempty"`
	Image       string    `bson:"image,omitempty" json:"image,omitempty" yaml:"image,omitempty"`
	CreatedAt   time.Time `bson:"created_at" json:"createdAt" yaml:"-"`
	ModifiedAt  time.Time `bson:"modified_at" json:"modifiedAt" yaml:"-"`
}

func (r CategoryRecord) IsRoot() bool {
	return r.ParentID == ""
}

// CategoryNode is a record with its materialized children. Nodes are built
// per request from a snapshot and never persisted.
type CategoryNode struct {
	CategoryRecord `bson:",inline"`
	Children       []*CategoryNode `bson:"-" json:"children"`
}

// CategoryPatch carries the fields of a partial update. Nil means unchanged;
// a ParentID pointing at "" moves the category to the root. ClearTemplate
// exists because a nil Template already means "unchanged".
type CategoryPatch struct {
	Name          *string   `bson:"name,omitempty" json:"name,omitempty"`
	Slug          *string   `bson:"slug,omitempty" json:"slug,omitempty"`
	Description   *string   `bson:"description,omitempty" json:"description,omitempty"`
	ParentID      *string   `bson:"parent_id,omitempty" json:"parentId,omitempty"`
	Template      *Template `bson:"template,omitempty" json:"template,omitempty"`
	Image         *string   `bson:"image,omitempty" json:"image,omitempty"`
	ClearTemplate bool      `bson:"-" json:"clearTemplate,omitempty"`
}

// IsEmpty reports whether applying p would change nothing.
func (p CategoryPatch) IsEmpty() bool {
	return p.Name == nil && p.Slug == nil && p.Description == nil && p.ParentID == nil &&
		p.Template == nil && p.Image == nil && !p.ClearTemplate
}

// Apply returns r with p applied. r itself is not modified.
func (p CategoryPatch) Apply(r CategoryRecord) CategoryRecord {
	if p.Name != nil {
		r.Name = *p.Name
	}
	if p.Slug != nil {
		r.Slug = *p.Slug
	}
	if p.Description != nil {
		r.Description = *p.Description
	}
	if p.ParentID != nil {
		r.ParentID = *p.ParentID
	}
	if p.Image != nil {
		r.Image = *p.Image
	}
	if p.ClearTemplate {
		r.Template = nil
	} else if p.Template != nil {
		r.Template = p.Template.Clone()
	}
	return r
}

type CategoryRequest struct {
	Name        string    `json:"name" yaml:"name" validate:"required,min=2,max=80"`
	Slug        string    `json:"slug" yaml:"slug" validate:"omitempty,max=100"`
	Description string    `json:"description" yaml:"description" validate:"max=500"`
	ParentID    string    `json:"parentId" yaml:"parentId"`
	ParentSlug  string    `json:"parentSlug" yaml:"parentSlug"`
	Template    *Template `json:"template" yaml:"template"`
	Image       string    `json:"image" yaml:"image" validate:"omitempty,url"`
}

type CategoryRequestMulti struct {
	Categories []CategoryRequest `json:"categories" yaml:"categories" validate:"required,min=1,dive"`
}

type CategoryUpdateRequest struct {
	Name          *string   `json:"name" validate:"omitempty,min=2,max=80"`
	Slug          *string   `json:"slug" validate:"omitempty,max=100"`
	Description   *string   `json:"description" validate:"omitempty,max=500"`
	Template      *Template `json:"template"`
	ClearTemplate bool      `json:"clearTemplate"`
}

type CategoryMoveRequest struct {
	ParentID string `json:"parentId"`
}

// AttributeValuesRequest is what the listing form submits for validation
// against a category's effective template.
type AttributeValuesRequest struct {
	Values map[string]any `json:"values"`
}
