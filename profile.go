package profilecache

// Profile is the canonical identity record served to callers.
// PatientID and MRN always agree after reconciliation; MRN exists only
// for consumers still reading the legacy field name.
type Profile struct {
	PatientID string `json:"patient_id"`
	MRN       string `json:"mrn"`
	UserID    string `json:"user_id,omitempty"`
	Email     string `json:"email,omitempty"`

	FirstName              string `json:"first_name,omitempty"`
	LastName               string `json:"last_name,omitempty"`
	DateOfBirth            string `json:"date_of_birth,omitempty"`
	Gender                 string `json:"gender,omitempty"`
	BloodGroup             string `json:"blood_group,omitempty"`
	PhoneNumber            string `json:"phone_number,omitempty"`
	Address                string `json:"address,omitempty"`
	EmergencyContactName   string `json:"emergency_contact_name,omitempty"`
	EmergencyContactNumber string `json:"emergency_contact_number,omitempty"`
}

// reconcile canonicalizes the identifier fields of a raw response.
// Rules, in order:
//  1. a prior cached patient ID always wins - it is immutable once
//     observed for an entity; a disagreeing response value is logged
//     and dropped, never written;
//  2. else the response's patient_id field, when structurally valid;
//  3. else a structurally valid legacy mrn value, promoted to primary;
//  4. else the profile passes through with an empty patient ID and
//     pidSafe=false, meaning it must not be cached under a pid key.
//
// reconcile never produces a patient ID that did not appear in the raw
// response or the prior cached entry, and it is idempotent: feeding its
// output back as prior yields the same canonical value.
func (r *resolver) reconcile(key string, raw RawProfile, prior *Profile) (Profile, bool) {
	candidate := ""
	switch {
	case ValidPatientID(raw.PatientID):
		candidate = raw.PatientID
	case ValidPatientID(raw.MRN):
		candidate = raw.MRN
	}

	canonical := candidate
	if prior != nil && prior.PatientID != "" {
		canonical = prior.PatientID
		if candidate != "" && candidate != canonical {
			r.log.Warn("patient id conflict; keeping cached value", Fields{
				"key": key, "cached": canonical, "response": candidate,
			})
			r.hooks.IdentifierConflict(key, canonical, candidate)
		}
	}

	p := Profile{
		PatientID:              canonical,
		MRN:                    canonical,
		UserID:                 raw.UserID,
		Email:                  raw.Email,
		FirstName:              raw.FirstName,
		LastName:               raw.LastName,
		DateOfBirth:            raw.DateOfBirth,
		Gender:                 raw.Gender,
		BloodGroup:             raw.BloodGroup,
		PhoneNumber:            raw.PhoneNumber,
		Address:                raw.Address,
		EmergencyContactName:   raw.EmergencyContactName,
		EmergencyContactNumber: raw.EmergencyContactNumber,
	}

	if canonical == "" {
		// Do not fabricate an identifier; the caller may still use the
		// demographic fields, but the entry is unsafe to key by pid.
		r.log.Warn("response carried no valid patient id", Fields{"key": key})
		r.hooks.InvariantViolation(key)
		return p, false
	}
	return p, true
}
