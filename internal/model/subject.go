package model

import "strings"

// SubjectProfile is the entity under assessment. It is passed by value and never mutated.
type SubjectProfile struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
	Region      string `json:"region,omitempty" yaml:"region,omitempty"`
	Industry    string `json:"industry,omitempty" yaml:"industry,omitempty"`
}

// Validate checks required fields
func (p SubjectProfile) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return &InputError{Field: "name", Message: "name is required"}
	}
	if strings.TrimSpace(p.Description) == "" {
		return &InputError{Field: "description", Message: "description is required"}
	}
	return nil
}

// Text returns the free text used for keyword matching
func (p SubjectProfile) Text() string {
	return p.Name + " " + p.Description
}
