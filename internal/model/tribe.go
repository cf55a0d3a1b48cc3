package model

// Tribe is the summary row used for tribe selection.
type Tribe struct {
	ID          int64  `json:"tribeId"`
	Name        string `json:"tribeName"`
	CurrentTick int64  `json:"currentTick"`
}

// Resources holds food and water counts.
type Resources struct {
	Food  int `json:"food" yaml:"food"`
	Water int `json:"water" yaml:"water"`
}

// Person is a tribe member as reported by the backend.
type Person struct {
	ID             int64   `json:"id" yaml:"id"`
	Name           string  `json:"name" yaml:"name"`
	Role           string  `json:"role" yaml:"role"`
	Age            int     `json:"age" yaml:"age"`
	Health         int     `json:"health" yaml:"health"`
	HuntingSkill   float64 `json:"huntingSkill" yaml:"hunting_skill"`
	GatheringSkill float64 `json:"gatheringSkill" yaml:"gathering_skill"`
	FamilyID       *int64  `json:"familyId,omitempty" yaml:"family_id,omitempty"`
}

// Family groups members that share storage.
type Family struct {
	ID          int64     `json:"id" yaml:"id"`
	Name        string    `json:"name" yaml:"name"`
	Storage     Resources `json:"storage" yaml:"storage"`
	MemberCount int       `json:"memberCount" yaml:"member_count"`
}

// TribeState is the full state of a tribe, including its policy.
type TribeState struct {
	ID             int64     `json:"tribeId"`
	Name           string    `json:"tribeName"`
	Description    string    `json:"description,omitempty"`
	CurrentTick    int64     `json:"currentTick"`
	BondLevel      int       `json:"bondLevel"`
	Resources      Resources `json:"resources"`
	CentralStorage Resources `json:"centralStorage"`
	Policy         Policy    `json:"policy"`
	Members        []Person  `json:"members,omitempty"`
	Families       []Family  `json:"families,omitempty"`
}

// Summary returns the selection row for the tribe.
func (s TribeState) Summary() Tribe {
	return Tribe{ID: s.ID, Name: s.Name, CurrentTick: s.CurrentTick}
}
