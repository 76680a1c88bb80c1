package profilecache

import "context"

// RawProfile is the profile-store response before invariant
// enforcement. Identifier fields may be inconsistently populated:
// PatientID is the current field, MRN the legacy alias some deployments
// still emit, and the two are not guaranteed to agree. reconcile picks
// the canonical value; nothing downstream reads RawProfile directly.
type RawProfile struct {
	PatientID string `json:"patient_id"`
	MRN       string `json:"mrn"`
	UserID    string `json:"user_id"`
	Email     string `json:"email"`

	FirstName              string `json:"first_name"`
	LastName               string `json:"last_name"`
	DateOfBirth            string `json:"date_of_birth"`
	Gender                 string `json:"gender"`
	BloodGroup             string `json:"blood_group"`
	PhoneNumber            string `json:"phone_number"`
	Address                string `json:"address"`
	EmergencyContactName   string `json:"emergency_contact_name"`
	EmergencyContactNumber string `json:"emergency_contact_number"`
}

// ProfileFetcher is the black-box profile store contract. Fetch sends
// every available identifier (not just the one the cache key was
// derived from) to maximize the store's chance of a match, and returns
// a *FetchError classifying any failure. See fetchhttp for the HTTP
// implementation.
type ProfileFetcher interface {
	Fetch(ctx context.Context, ids IdentifierSet) (RawProfile, error)
}

// AttachmentFetcher fetches the profile photo reference for a patient.
// found=false with a nil error means the store confirmed there is no
// photo (cached under the negative sentinel, distinct from "not yet
// checked").
type AttachmentFetcher interface {
	FetchPhoto(ctx context.Context, patientID string) (url string, found bool, err error)
}

// Navigator is the abstract redirect command. It is invoked only on
// recovery exhaustion and on Unauthorized, never from cache or fetch
// internals, so the core has no UI dependency.
type Navigator interface {
	RedirectTo(path string)
}

type NopNavigator struct{}

func (NopNavigator) RedirectTo(string) {}
