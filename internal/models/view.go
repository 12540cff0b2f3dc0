package models

import (
	"fmt"
	"strings"
)

// Visibility controls whether a view is reachable through public lookups.
type Visibility string

const (
	VisibilityPublic   Visibility = "VisibilityPublic"
	VisibilityUnlisted Visibility = "VisibilityUnlisted"
	VisibilityHidden   Visibility = "VisibilityHidden"
)

// Visibilities lists every valid visibility in display order.
var Visibilities = []Visibility{VisibilityPublic, VisibilityUnlisted, VisibilityHidden}

// ParseVisibility accepts the stored names ("VisibilityPublic") and the short
// names ("Public", "public").
func ParseVisibility(raw string) (Visibility, error) {
	s := strings.TrimSpace(raw)
	for _, v := range Visibilities {
		if strings.EqualFold(s, string(v)) || strings.EqualFold(s, v.Short()) {
			return v, nil
		}
	}
	return "", fmt.Errorf("unknown visibility %q", raw)
}

// Short returns the name without the "Visibility" prefix.
func (v Visibility) Short() string {
	return strings.TrimPrefix(string(v), "Visibility")
}

func (v Visibility) Valid() bool {
	for _, known := range Visibilities {
		if v == known {
			return true
		}
	}
	return false
}

// ViewModel is a routable content page. Route carries no unique index:
// uniqueness is resolved inside the create transaction.
type ViewModel struct {
	Base
	Visibility  Visibility `json:"visibility"   gorm:"size:32;not null;index"`
	Title       string     `json:"title"        gorm:"size:255;not null"`
	ContentBody *string    `json:"content_body" gorm:"type:text"`
	ContentHead *string    `json:"content_head" gorm:"type:text"`
	Description *string    `json:"description"  gorm:"type:text"`
	Route       string     `json:"route"        gorm:"size:300;not null;index"`
	IsHomepage  bool       `json:"is_homepage"  gorm:"not null;index"`
}

func (ViewModel) TableName() string { return "views" }
