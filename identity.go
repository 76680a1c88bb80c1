package profilecache

import "strings"

// IdentifierSet carries whichever identifiers the caller has for an
// entity. At least one must be non-empty to attempt resolution.
// PatientID, when present and well-formed, is the single source of
// truth; the other two are weaker lookup hints.
type IdentifierSet struct {
	PatientID string
	UserID    string
	Email     string
}

// Empty reports whether no identifier is set.
func (s IdentifierSet) Empty() bool {
	return s.PatientID == "" && s.UserID == "" && s.Email == ""
}

// Key kinds prefixing derived cache keys. Prefixes keep the namespaces
// collision-free: "pid:x" can never equal "email:x".
const (
	keyKindPatient = "pid"
	keyKindUser    = "uid"
	keyKindEmail   = "email"
)

// ResolveKey derives the cache key for an identifier set. Pure, no I/O.
// Priority is patient ID > user ID > email; the first non-empty
// identifier determines both the key namespace and value, so the same
// available identifiers always yield the same key.
// Returns ErrNoIdentifiers when the set is empty (caller error, not
// retryable).
func ResolveKey(ids IdentifierSet) (string, error) {
	switch {
	case ids.PatientID != "":
		return keyKindPatient + ":" + ids.PatientID, nil
	case ids.UserID != "":
		return keyKindUser + ":" + ids.UserID, nil
	case ids.Email != "":
		return keyKindEmail + ":" + strings.ToLower(ids.Email), nil
	default:
		return "", ErrNoIdentifiers
	}
}

// ValidPatientID reports whether v is a structurally valid patient ID:
// 1..10 alphanumeric characters (e.g. "AB12C"). Permanent IDs are
// assigned server-side; this only guards against garbage in aliased
// response fields, not against unknown-but-plausible values.
func ValidPatientID(v string) bool {
	if len(v) == 0 || len(v) > 10 {
		return false
	}
	for i := 0; i < len(v); i++ {
		c := v[i]
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		default:
			return false
		}
	}
	return true
}

// reduce drops the highest-priority identifier still present, keeping
// the rest. Used by recovery after a NotFound: the identifier that
// drove the lookup is the one most likely to be stale. Returns ok=false
// when only one identifier remains (nothing useful to drop).
func (s IdentifierSet) reduce() (IdentifierSet, bool) {
	n := 0
	if s.PatientID != "" {
		n++
	}
	if s.UserID != "" {
		n++
	}
	if s.Email != "" {
		n++
	}
	if n <= 1 {
		return s, false
	}
	switch {
	case s.PatientID != "":
		s.PatientID = ""
	case s.UserID != "":
		s.UserID = ""
	}
	return s, true
}
