package domain

import (
	"encoding/json"
	"time"
)

// SessionFields are the concrete, overridable values of one session.
type SessionFields struct {
	TrainerID       string    `bson:"trainerId" json:"trainerId"`
	StartsAt        time.Time `bson:"startsAt" json:"startsAt"`
	EndsAt          time.Time `bson:"endsAt" json:"endsAt"`
	Label           *string   `bson:"label,omitempty" json:"label"`
	Notes           *string   `bson:"notes,omitempty" json:"notes"`
	Room            *string   `bson:"room,omitempty" json:"room"`
	Equipment       *string   `bson:"equipment,omitempty" json:"equipment"`
	MaxParticipants *int      `bson:"maxParticipants,omitempty" json:"maxParticipants"`
}

// Instance is a persisted occurrence. Series-backed instances are created the
// first time an occurrence is touched; one-off instances carry their own Base.
type Instance struct {
	ID              string         `bson:"_id" json:"id"`
	SeriesID        string         `bson:"seriesId,omitempty" json:"seriesId,omitempty"`
	SeriesVersionID string         `bson:"seriesVersionId,omitempty" json:"seriesVersionId,omitempty"`
	TrainerID       string         `bson:"trainerId" json:"trainerId"`
	ScheduledAt     time.Time      `bson:"scheduledAt" json:"scheduledAt"` // projected series start, the occurrence's effective timestamp
	// OccurrenceDate is the calendar day (YYYY-MM-DD, schedule time zone) a
	// series-backed instance belongs to. It identifies the occurrence within
	// its lineage and survives start-time changes of later versions.
	OccurrenceDate string         `bson:"occurrenceDate,omitempty" json:"occurrenceDate,omitempty"`
	Base            *SessionFields `bson:"base,omitempty" json:"base,omitempty"`
	Diff            InstanceDiff   `bson:"-" json:"diff"`
	Cancelled       bool           `bson:"cancelled" json:"cancelled"`
	Revision        int64          `bson:"revision" json:"revision"`
	CreatedAt       time.Time      `bson:"createdAt" json:"createdAt"`
	UpdatedAt       time.Time      `bson:"updatedAt" json:"updatedAt"`
}

func (i *Instance) OneOff() bool { return i.SeriesID == "" }

// Override reports whether any field shadows the inherited value.
func (i *Instance) Override() bool { return !i.Diff.IsEmpty() }

// Diff field names as they appear on the wire.
const (
	FieldTrainerID       = "trainerId"
	FieldStartsAt        = "startsAt"
	FieldEndsAt          = "endsAt"
	FieldMaxParticipants = "maxParticipants"
	FieldLabel           = "label"
	FieldNotes           = "notes"
	FieldRoom            = "room"
	FieldEquipment       = "equipment"
)

var diffFields = []string{
	FieldTrainerID, FieldStartsAt, FieldEndsAt, FieldMaxParticipants,
	FieldLabel, FieldNotes, FieldRoom, FieldEquipment,
}

// InstanceDiff holds per-instance overrides. Absent fields inherit, present
// null fields are explicitly cleared.
type InstanceDiff struct {
	TrainerID       Patch[string]    `json:"trainerId"`
	StartsAt        Patch[time.Time] `json:"startsAt"`
	EndsAt          Patch[time.Time] `json:"endsAt"`
	MaxParticipants Patch[int]       `json:"maxParticipants"`
	Label           Patch[string]    `json:"label"`
	Notes           Patch[string]    `json:"notes"`
	Room            Patch[string]    `json:"room"`
	Equipment       Patch[string]    `json:"equipment"`
}

func (d InstanceDiff) present() map[string]bool {
	return map[string]bool{
		FieldTrainerID:       d.TrainerID.Present(),
		FieldStartsAt:        d.StartsAt.Present(),
		FieldEndsAt:          d.EndsAt.Present(),
		FieldMaxParticipants: d.MaxParticipants.Present(),
		FieldLabel:           d.Label.Present(),
		FieldNotes:           d.Notes.Present(),
		FieldRoom:            d.Room.Present(),
		FieldEquipment:       d.Equipment.Present(),
	}
}

// Fields lists the overridden field names in a fixed order, nil when none.
func (d InstanceDiff) Fields() []string {
	p := d.present()
	var out []string
	for _, name := range diffFields {
		if p[name] {
			out = append(out, name)
		}
	}
	return out
}

func (d InstanceDiff) IsEmpty() bool {
	return len(d.Fields()) == 0
}

// Validate rejects clears of required fields and negative capacities.
func (d InstanceDiff) Validate() error {
	const op = "InstanceDiff.Validate"
	for name, null := range map[string]bool{
		FieldTrainerID: d.TrainerID.IsNull(),
		FieldStartsAt:  d.StartsAt.IsNull(),
		FieldEndsAt:    d.EndsAt.IsNull(),
	} {
		if null {
			return NewError(op, ErrValidation, "%s cannot be cleared", name)
		}
	}
	if v, ok := d.TrainerID.Value(); ok && v == "" {
		return NewError(op, ErrValidation, "trainerId cannot be empty")
	}
	if v, ok := d.MaxParticipants.Value(); ok && v < 0 {
		return NewError(op, ErrValidation, "maxParticipants cannot be negative")
	}
	return nil
}

// Merge layers other on top of d: every field present in other wins.
func (d InstanceDiff) Merge(other InstanceDiff) InstanceDiff {
	if other.TrainerID.Present() {
		d.TrainerID = other.TrainerID
	}
	if other.StartsAt.Present() {
		d.StartsAt = other.StartsAt
	}
	if other.EndsAt.Present() {
		d.EndsAt = other.EndsAt
	}
	if other.MaxParticipants.Present() {
		d.MaxParticipants = other.MaxParticipants
	}
	if other.Label.Present() {
		d.Label = other.Label
	}
	if other.Notes.Present() {
		d.Notes = other.Notes
	}
	if other.Room.Present() {
		d.Room = other.Room
	}
	if other.Equipment.Present() {
		d.Equipment = other.Equipment
	}
	return d
}

// Without drops the named overrides so those fields inherit again.
func (d InstanceDiff) Without(names ...string) (InstanceDiff, error) {
	for _, name := range names {
		switch name {
		case FieldTrainerID:
			d.TrainerID = Patch[string]{}
		case FieldStartsAt:
			d.StartsAt = Patch[time.Time]{}
		case FieldEndsAt:
			d.EndsAt = Patch[time.Time]{}
		case FieldMaxParticipants:
			d.MaxParticipants = Patch[int]{}
		case FieldLabel:
			d.Label = Patch[string]{}
		case FieldNotes:
			d.Notes = Patch[string]{}
		case FieldRoom:
			d.Room = Patch[string]{}
		case FieldEquipment:
			d.Equipment = Patch[string]{}
		default:
			return d, NewError("InstanceDiff.Without", ErrValidation, "unknown field %q", name)
		}
	}
	return d, nil
}

// ApplyTo resolves the diff against inherited defaults.
func (d InstanceDiff) ApplyTo(f SessionFields) SessionFields {
	if v, ok := d.TrainerID.Value(); ok {
		f.TrainerID = v
	}
	if v, ok := d.StartsAt.Value(); ok {
		f.StartsAt = v
	}
	if v, ok := d.EndsAt.Value(); ok {
		f.EndsAt = v
	}
	f.MaxParticipants = d.MaxParticipants.Apply(f.MaxParticipants)
	f.Label = d.Label.Apply(f.Label)
	f.Notes = d.Notes.Apply(f.Notes)
	f.Room = d.Room.Apply(f.Room)
	f.Equipment = d.Equipment.Apply(f.Equipment)
	return f
}

// MarshalJSON emits only present fields, with null for cleared ones.
func (d InstanceDiff) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(diffFields))
	if d.TrainerID.Present() {
		m[FieldTrainerID] = d.TrainerID
	}
	if d.StartsAt.Present() {
		m[FieldStartsAt] = d.StartsAt
	}
	if d.EndsAt.Present() {
		m[FieldEndsAt] = d.EndsAt
	}
	if d.MaxParticipants.Present() {
		m[FieldMaxParticipants] = d.MaxParticipants
	}
	if d.Label.Present() {
		m[FieldLabel] = d.Label
	}
	if d.Notes.Present() {
		m[FieldNotes] = d.Notes
	}
	if d.Room.Present() {
		m[FieldRoom] = d.Room
	}
	if d.Equipment.Present() {
		m[FieldEquipment] = d.Equipment
	}
	return json.Marshal(m)
}
