package parking

import (
	"fmt"
	"time"
)

// KindTag is the serialized name of a rule kind.
type KindTag string

const (
	TagTimeLimit      KindTag = "time_limit"
	TagNoParking      KindTag = "no_parking"
	TagPermitRequired KindTag = "permit_required"
	TagMetered        KindTag = "metered"
	TagFree           KindTag = "free"
	TagLoadingZone    KindTag = "loading_zone"
	TagStreetCleaning KindTag = "street_cleaning"
	TagUnknown        KindTag = "unknown"
)

// AllKindTags lists every kind in extraction order.
var AllKindTags = []KindTag{
	TagTimeLimit,
	TagNoParking,
	TagPermitRequired,
	TagMetered,
	TagFree,
	TagLoadingZone,
	TagStreetCleaning,
	TagUnknown,
}

// Kind is the closed set of things a sign can say. The unexported method keeps
// implementations inside this package; switch on the concrete types below.
type Kind interface {
	Tag() KindTag
	// Restrictive kinds make parking illegal while active.
	Restrictive() bool
	// Permissive kinds allow parking subject to a condition (pay, leave by a deadline).
	Permissive() bool
	isKind()
}

// TimeLimit allows parking for at most DurationMinutes.
type TimeLimit struct {
	DurationMinutes int
}

// NoParking forbids parking (also stopping and standing).
type NoParking struct{}

// PermitRequired restricts parking to permit holders. PermitType is the zone or
// area printed on the sign, when there is one.
type PermitRequired struct {
	PermitType string
}

type (
	Metered        struct{}
	Free           struct{}
	LoadingZone    struct{}
	StreetCleaning struct{}
	// Unknown wraps text no matcher recognized.
	Unknown struct{}
)

func (TimeLimit) Tag() KindTag      { return TagTimeLimit }
func (NoParking) Tag() KindTag      { return TagNoParking }
func (PermitRequired) Tag() KindTag { return TagPermitRequired }
func (Metered) Tag() KindTag        { return TagMetered }
func (Free) Tag() KindTag           { return TagFree }
func (LoadingZone) Tag() KindTag    { return TagLoadingZone }
func (StreetCleaning) Tag() KindTag { return TagStreetCleaning }
func (Unknown) Tag() KindTag        { return TagUnknown }

func (TimeLimit) Restrictive() bool      { return false }
func (NoParking) Restrictive() bool      { return true }
func (PermitRequired) Restrictive() bool { return true }
func (Metered) Restrictive() bool        { return false }
func (Free) Restrictive() bool           { return false }
func (LoadingZone) Restrictive() bool    { return false }
func (StreetCleaning) Restrictive() bool { return true }
func (Unknown) Restrictive() bool        { return false }

func (TimeLimit) Permissive() bool      { return true }
func (NoParking) Permissive() bool      { return false }
func (PermitRequired) Permissive() bool { return false }
func (Metered) Permissive() bool        { return true }
func (Free) Permissive() bool           { return true }
func (LoadingZone) Permissive() bool    { return false }
func (StreetCleaning) Permissive() bool { return false }
func (Unknown) Permissive() bool        { return false }

func (TimeLimit) isKind()      {}
func (NoParking) isKind()      {}
func (PermitRequired) isKind() {}
func (Metered) isKind()        {}
func (Free) isKind()           {}
func (LoadingZone) isKind()    {}
func (StreetCleaning) isKind() {}
func (Unknown) isKind()        {}

// Duration returns the limit as a time.Duration.
func (k TimeLimit) Duration() time.Duration {
	return time.Duration(k.DurationMinutes) * time.Minute
}

// Describe returns a short human-readable label for the kind.
func Describe(k Kind) string {
	switch k := k.(type) {
	case TimeLimit:
		if k.DurationMinutes%60 == 0 {
			return fmt.Sprintf("%d hour limit", k.DurationMinutes/60)
		}
		return fmt.Sprintf("%d minute limit", k.DurationMinutes)
	case NoParking:
		return "No parking"
	case PermitRequired:
		if k.PermitType != "" {
			return fmt.Sprintf("Permit required (%s)", k.PermitType)
		}
		return "Permit required"
	case Metered:
		return "Metered"
	case Free:
		return "Free parking"
	case LoadingZone:
		return "Loading zone"
	case StreetCleaning:
		return "Street cleaning"
	case Unknown:
		return "Unrecognized sign"
	default:
		return "Invalid kind"
	}
}

// Severity is how hard a rule is enforced.
type Severity int

const (
	SeverityWarning Severity = iota
	SeverityTicket
	SeverityTowAway
)

var severityNames = map[Severity]string{
	SeverityWarning: "warning",
	SeverityTicket:  "ticket",
	SeverityTowAway: "tow_away",
}

func (s Severity) String() string {
	if name, ok := severityNames[s]; ok {
		return name
	}
	return fmt.Sprintf("severity(%d)", int(s))
}

// MarshalText implements encoding.TextMarshaler.
func (s Severity) MarshalText() ([]byte, error) {
	name, ok := severityNames[s]
	if !ok {
		return nil, fmt.Errorf("invalid severity %d", int(s))
	}
	return []byte(name), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Severity) UnmarshalText(text []byte) error {
	for sev, name := range severityNames {
		if name == string(text) {
			*s = sev
			return nil
		}
	}
	return fmt.Errorf("unknown severity %q", string(text))
}

// DefaultSeverity is the enforcement level a kind carries absent stronger wording on the sign.
func DefaultSeverity(k Kind) Severity {
	switch k.(type) {
	case NoParking, PermitRequired, StreetCleaning, TimeLimit, Metered:
		return SeverityTicket
	default:
		return SeverityWarning
	}
}

// kindJSON is the wire form of a Kind: a type tag plus the payload of the
// variants that carry one.
type kindJSON struct {
	Type            KindTag `json:"type"`
	DurationMinutes int     `json:"duration_minutes,omitempty"`
	PermitType      string  `json:"permit_type,omitempty"`
}

func encodeKind(k Kind) (kindJSON, error) {
	switch k := k.(type) {
	case TimeLimit:
		return kindJSON{Type: TagTimeLimit, DurationMinutes: k.DurationMinutes}, nil
	case PermitRequired:
		return kindJSON{Type: TagPermitRequired, PermitType: k.PermitType}, nil
	case nil:
		return kindJSON{}, fmt.Errorf("rule has no kind")
	default:
		return kindJSON{Type: k.Tag()}, nil
	}
}

func decodeKind(v kindJSON) (Kind, error) {
	switch v.Type {
	case TagTimeLimit:
		return TimeLimit{DurationMinutes: v.DurationMinutes}, nil
	case TagNoParking:
		return NoParking{}, nil
	case TagPermitRequired:
		return PermitRequired{PermitType: v.PermitType}, nil
	case TagMetered:
		return Metered{}, nil
	case TagFree:
		return Free{}, nil
	case TagLoadingZone:
		return LoadingZone{}, nil
	case TagStreetCleaning:
		return StreetCleaning{}, nil
	case TagUnknown:
		return Unknown{}, nil
	default:
		return nil, fmt.Errorf("unknown rule kind %q", v.Type)
	}
}
