package model

import (
	"fmt"
	"strings"
)

// MaxCapacity bounds max_attendees.
const MaxCapacity = 100_000

// Normalize trims the text fields of d and fills defaults.
func (d *EventDraft) Normalize() {
	d.Title = strings.TrimSpace(d.Title)
	d.Description = strings.TrimSpace(d.Description)
	d.Location = strings.TrimSpace(d.Location)
	d.ImageURL = strings.TrimSpace(d.ImageURL)
	if d.ImageURL == "" {
		d.ImageURL = DefaultImageURL
	}
}

// Validate checks that every required field is present and well formed.
func (d *EventDraft) Validate() error {
	switch {
	case d.Title == "":
		return fmt.Errorf("%w: title is required", ErrValidation)
	case d.Description == "":
		return fmt.Errorf("%w: description is required", ErrValidation)
	case d.Location == "":
		return fmt.Errorf("%w: location is required", ErrValidation)
	case d.Date.IsZero():
		return fmt.Errorf("%w: date is required", ErrValidation)
	case !d.Category.Valid():
		return fmt.Errorf("%w: category %q is not one of Conference, Meetup, Workshop, Social, Other", ErrValidation, d.Category)
	}
	return validateCapacity(d.MaxAttendees)
}

func validateCapacity(n int) error {
	if n < 1 {
		return fmt.Errorf("%w: max_attendees must be a positive integer", ErrValidation)
	}
	if n > MaxCapacity {
		return fmt.Errorf("%w: max_attendees cannot exceed 100,000", ErrValidation)
	}
	return nil
}

// Apply validates p and copies its fields onto e. On error e is untouched.
func (p *EventPatch) Apply(e *Event) error {
	next := e.Clone()
	if p.Title != nil {
		if next.Title = strings.TrimSpace(*p.Title); next.Title == "" {
			return fmt.Errorf("%w: title must not be empty", ErrValidation)
		}
	}
	if p.Description != nil {
		if next.Description = strings.TrimSpace(*p.Description); next.Description == "" {
			return fmt.Errorf("%w: description must not be empty", ErrValidation)
		}
	}
	if p.Location != nil {
		if next.Location = strings.TrimSpace(*p.Location); next.Location == "" {
			return fmt.Errorf("%w: location must not be empty", ErrValidation)
		}
	}
	if p.Date != nil {
		if p.Date.IsZero() {
			return fmt.Errorf("%w: date must not be empty", ErrValidation)
		}
		next.Date = *p.Date
	}
	if p.Category != nil {
		if !p.Category.Valid() {
			return fmt.Errorf("%w: category %q is not one of Conference, Meetup, Workshop, Social, Other", ErrValidation, *p.Category)
		}
		next.Category = *p.Category
	}
	if p.MaxAttendees != nil {
		if err := validateCapacity(*p.MaxAttendees); err != nil {
			return err
		}
		if *p.MaxAttendees < len(next.Attendees) {
			return fmt.Errorf("%w: max_attendees cannot be lower than the %d registered attendees",
				ErrValidation, len(next.Attendees))
		}
		next.MaxAttendees = *p.MaxAttendees
	}
	if p.ImageURL != nil {
		next.ImageURL = strings.TrimSpace(*p.ImageURL)
		if next.ImageURL == "" {
			next.ImageURL = DefaultImageURL
		}
	}
	*e = *next
	return nil
}
