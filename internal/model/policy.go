package model

import (
	"math"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cast"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// SharingPriority decides who is served first when resources are shared.
type SharingPriority string

const (
	SharingElder    SharingPriority = "ELDER"
	SharingChild    SharingPriority = "CHILD"
	SharingHunter   SharingPriority = "HUNTER"
	SharingGatherer SharingPriority = "GATHERER"
	SharingYoungest SharingPriority = "YOUNGEST"
	SharingRandom   SharingPriority = "RANDOM"
)

// SharingPriorities lists the priorities in display order.
var SharingPriorities = []SharingPriority{
	SharingElder, SharingChild, SharingHunter, SharingGatherer, SharingYoungest, SharingRandom,
}

var sharingHints = map[SharingPriority]string{
	SharingElder:    "Prioritize oldest members",
	SharingChild:    "Prioritize youngest members",
	SharingHunter:   "Prioritize hunters",
	SharingGatherer: "Prioritize gatherers",
	SharingYoungest: "Prioritize by age (youngest first)",
	SharingRandom:   "No priority order",
}

// Valid reports whether the priority is one the backend knows.
func (s SharingPriority) Valid() bool {
	_, ok := sharingHints[s]
	return ok
}

// Label returns the human-readable option text, e.g. "Elder - Prioritize oldest members".
func (s SharingPriority) Label() string {
	name := cases.Title(language.English).String(strings.ToLower(string(s)))
	if hint, ok := sharingHints[s]; ok {
		return name + " - " + hint
	}
	return name
}

// Policy is the editable rule set of a tribe. It is comparable so two
// policies can be checked for equality with ==.
type Policy struct {
	FoodTaxRate           int             `json:"foodTaxRate" yaml:"food_tax_rate"`
	WaterTaxRate          int             `json:"waterTaxRate" yaml:"water_tax_rate"`
	HuntingIncentive      int             `json:"huntingIncentive" yaml:"hunting_incentive"`
	GatheringIncentive    int             `json:"gatheringIncentive" yaml:"gathering_incentive"`
	SharingPriority       SharingPriority `json:"sharingPriority" yaml:"sharing_priority"`
	EnableCentralStorage  bool            `json:"enableCentralStorage" yaml:"enable_central_storage"`
	CentralStorageTaxRate int             `json:"centralStorageTaxRate" yaml:"central_storage_tax_rate"`
	StorageDecayRate      float64         `json:"storageDecayRate" yaml:"storage_decay_rate"`
	StorageDecayInterval  int             `json:"storageDecayInterval" yaml:"storage_decay_interval"`
}

// DefaultPolicy mirrors the backend defaults for a freshly created tribe.
func DefaultPolicy() Policy {
	return Policy{
		FoodTaxRate:           10,
		WaterTaxRate:          10,
		HuntingIncentive:      5,
		GatheringIncentive:    5,
		SharingPriority:       SharingElder,
		CentralStorageTaxRate: 10,
		StorageDecayRate:      0.1,
		StorageDecayInterval:  20,
	}
}

// FieldKind is the value type of a policy field.
type FieldKind int

const (
	KindInt FieldKind = iota
	KindFloat
	KindBool
	KindEnum
)

// Field describes one editable policy field.
type Field struct {
	Name  string
	Label string
	Kind  FieldKind
}

// Policy field names as they appear on the wire.
const (
	FieldFoodTaxRate           = "foodTaxRate"
	FieldWaterTaxRate          = "waterTaxRate"
	FieldHuntingIncentive      = "huntingIncentive"
	FieldGatheringIncentive    = "gatheringIncentive"
	FieldSharingPriority       = "sharingPriority"
	FieldEnableCentralStorage  = "enableCentralStorage"
	FieldCentralStorageTaxRate = "centralStorageTaxRate"
	FieldStorageDecayRate      = "storageDecayRate"
	FieldStorageDecayInterval  = "storageDecayInterval"
)

// PolicyFields lists every editable field in form order.
var PolicyFields = []Field{
	{Name: FieldFoodTaxRate, Label: "Food Tax Rate (%)", Kind: KindInt},
	{Name: FieldWaterTaxRate, Label: "Water Tax Rate (%)", Kind: KindInt},
	{Name: FieldHuntingIncentive, Label: "Hunting Incentive", Kind: KindInt},
	{Name: FieldGatheringIncentive, Label: "Gathering Incentive", Kind: KindInt},
	{Name: FieldSharingPriority, Label: "Sharing Priority", Kind: KindEnum},
	{Name: FieldEnableCentralStorage, Label: "Enable Central Storage", Kind: KindBool},
	{Name: FieldCentralStorageTaxRate, Label: "Central Storage Tax Rate (%)", Kind: KindInt},
	{Name: FieldStorageDecayRate, Label: "Storage Decay Rate (0-1)", Kind: KindFloat},
	{Name: FieldStorageDecayInterval, Label: "Storage Decay Interval (days)", Kind: KindInt},
}

// Sentinel errors for field edits.
var (
	ErrUnknownField = eris.New("unknown policy field")
	ErrInvalidValue = eris.New("invalid policy field value")
)

// LookupField returns the descriptor for name.
func LookupField(name string) (Field, bool) {
	for _, f := range PolicyFields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Value returns the current value of the named field. The sharing priority
// is returned as its plain string code.
func (p Policy) Value(name string) (any, bool) {
	switch name {
	case FieldFoodTaxRate:
		return p.FoodTaxRate, true
	case FieldWaterTaxRate:
		return p.WaterTaxRate, true
	case FieldHuntingIncentive:
		return p.HuntingIncentive, true
	case FieldGatheringIncentive:
		return p.GatheringIncentive, true
	case FieldSharingPriority:
		return string(p.SharingPriority), true
	case FieldEnableCentralStorage:
		return p.EnableCentralStorage, true
	case FieldCentralStorageTaxRate:
		return p.CentralStorageTaxRate, true
	case FieldStorageDecayRate:
		return p.StorageDecayRate, true
	case FieldStorageDecayInterval:
		return p.StorageDecayInterval, true
	}
	return nil, false
}

// WithField returns a copy of p with the named field set to raw, coerced to
// the field's kind. Numeric fields accept numbers or numeric strings, the
// toggle accepts booleans or "true"/"false", and the enum is upper-cased but
// not checked against the known priorities.
func (p Policy) WithField(name string, raw any) (Policy, error) {
	f, ok := LookupField(name)
	if !ok {
		return p, eris.Wrapf(ErrUnknownField, "field %q", name)
	}

	switch f.Kind {
	case KindInt:
		n, err := toNumber(raw)
		if err != nil {
			return p, eris.Wrapf(err, "field %q", name)
		}
		if n != math.Trunc(n) || n > math.MaxInt32 || n < math.MinInt32 {
			return p, eris.Wrapf(ErrInvalidValue, "field %q: %v is not a whole number", name, raw)
		}
		p.setInt(name, int(n))
	case KindFloat:
		n, err := toNumber(raw)
		if err != nil {
			return p, eris.Wrapf(err, "field %q", name)
		}
		p.StorageDecayRate = n
	case KindBool:
		b, err := cast.ToBoolE(raw)
		if err != nil {
			return p, eris.Wrapf(ErrInvalidValue, "field %q: %v", name, raw)
		}
		p.EnableCentralStorage = b
	case KindEnum:
		if sp, ok := raw.(SharingPriority); ok {
			raw = string(sp)
		}
		s, err := cast.ToStringE(raw)
		if err != nil {
			return p, eris.Wrapf(ErrInvalidValue, "field %q: %v", name, raw)
		}
		p.SharingPriority = SharingPriority(strings.ToUpper(strings.TrimSpace(s)))
	}
	return p, nil
}

func (p *Policy) setInt(name string, v int) {
	switch name {
	case FieldFoodTaxRate:
		p.FoodTaxRate = v
	case FieldWaterTaxRate:
		p.WaterTaxRate = v
	case FieldHuntingIncentive:
		p.HuntingIncentive = v
	case FieldGatheringIncentive:
		p.GatheringIncentive = v
	case FieldCentralStorageTaxRate:
		p.CentralStorageTaxRate = v
	case FieldStorageDecayInterval:
		p.StorageDecayInterval = v
	}
}

func toNumber(raw any) (float64, error) {
	if s, ok := raw.(string); ok {
		raw = strings.TrimSpace(s)
	}
	n, err := cast.ToFloat64E(raw)
	if err != nil {
		return 0, eris.Wrapf(ErrInvalidValue, "%v is not a number", raw)
	}
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, eris.Wrapf(ErrInvalidValue, "%v is not a finite number", raw)
	}
	return n, nil
}

// ChangedFields lists the fields whose value in p differs from base, in form order.
func (p Policy) ChangedFields(base Policy) []string {
	var changed []string
	for _, f := range PolicyFields {
		a, _ := p.Value(f.Name)
		b, _ := base.Value(f.Name)
		if a != b {
			changed = append(changed, f.Name)
		}
	}
	return changed
}

// PolicyUpdate is a partial policy. Nil fields are left unchanged by the backend.
type PolicyUpdate struct {
	FoodTaxRate           *int             `json:"foodTaxRate,omitempty"`
	WaterTaxRate          *int             `json:"waterTaxRate,omitempty"`
	HuntingIncentive      *int             `json:"huntingIncentive,omitempty"`
	GatheringIncentive    *int             `json:"gatheringIncentive,omitempty"`
	SharingPriority       *SharingPriority `json:"sharingPriority,omitempty"`
	EnableCentralStorage  *bool            `json:"enableCentralStorage,omitempty"`
	CentralStorageTaxRate *int             `json:"centralStorageTaxRate,omitempty"`
	StorageDecayRate      *float64         `json:"storageDecayRate,omitempty"`
	StorageDecayInterval  *int             `json:"storageDecayInterval,omitempty"`
}

// FullUpdate builds an update carrying every field of p.
func FullUpdate(p Policy) PolicyUpdate {
	return PolicyUpdate{
		FoodTaxRate:           &p.FoodTaxRate,
		WaterTaxRate:          &p.WaterTaxRate,
		HuntingIncentive:      &p.HuntingIncentive,
		GatheringIncentive:    &p.GatheringIncentive,
		SharingPriority:       &p.SharingPriority,
		EnableCentralStorage:  &p.EnableCentralStorage,
		CentralStorageTaxRate: &p.CentralStorageTaxRate,
		StorageDecayRate:      &p.StorageDecayRate,
		StorageDecayInterval:  &p.StorageDecayInterval,
	}
}

// DiffUpdate builds an update carrying only the fields of draft that differ from base.
func DiffUpdate(base, draft Policy) PolicyUpdate {
	full := FullUpdate(draft)
	var u PolicyUpdate
	for _, name := range draft.ChangedFields(base) {
		switch name {
		case FieldFoodTaxRate:
			u.FoodTaxRate = full.FoodTaxRate
		case FieldWaterTaxRate:
			u.WaterTaxRate = full.WaterTaxRate
		case FieldHuntingIncentive:
			u.HuntingIncentive = full.HuntingIncentive
		case FieldGatheringIncentive:
			u.GatheringIncentive = full.GatheringIncentive
		case FieldSharingPriority:
			u.SharingPriority = full.SharingPriority
		case FieldEnableCentralStorage:
			u.EnableCentralStorage = full.EnableCentralStorage
		case FieldCentralStorageTaxRate:
			u.CentralStorageTaxRate = full.CentralStorageTaxRate
		case FieldStorageDecayRate:
			u.StorageDecayRate = full.StorageDecayRate
		case FieldStorageDecayInterval:
			u.StorageDecayInterval = full.StorageDecayInterval
		}
	}
	return u
}

// IsEmpty reports whether the update sets no field.
func (u PolicyUpdate) IsEmpty() bool {
	return u == PolicyUpdate{}
}

// Apply merges the non-nil fields of u into p.
func (u PolicyUpdate) Apply(p Policy) Policy {
	if u.FoodTaxRate != nil {
		p.FoodTaxRate = *u.FoodTaxRate
	}
	if u.WaterTaxRate != nil {
		p.WaterTaxRate = *u.WaterTaxRate
	}
	if u.HuntingIncentive != nil {
		p.HuntingIncentive = *u.HuntingIncentive
	}
	if u.GatheringIncentive != nil {
		p.GatheringIncentive = *u.GatheringIncentive
	}
	if u.SharingPriority != nil {
		p.SharingPriority = *u.SharingPriority
	}
	if u.EnableCentralStorage != nil {
		p.EnableCentralStorage = *u.EnableCentralStorage
	}
	if u.CentralStorageTaxRate != nil {
		p.CentralStorageTaxRate = *u.CentralStorageTaxRate
	}
	if u.StorageDecayRate != nil {
		p.StorageDecayRate = *u.StorageDecayRate
	}
	if u.StorageDecayInterval != nil {
		p.StorageDecayInterval = *u.StorageDecayInterval
	}
	return p
}
