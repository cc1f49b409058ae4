package models

// QuestionOptions is the canonical parameter bag configuring how questions in
// an option set are generated. Every optional field carries an explicit
// default so readers never have to null-coalesce; normalization happens once
// at the validation boundary (see service.ValidateOptionSets).
type QuestionOptions struct {
	TotalCount    int    `json:"totalCount"`
	OperatorMode  string `json:"operatorMode"`
	OperatorCount int    `json:"operatorCount"`

	SpecificOperators *SpecificOperators `json:"specificOperators,omitempty"`

	EqualsCount      int `json:"equalsCount"`
	HeavyNumberCount int `json:"heavyNumberCount"`
	BlankCount       int `json:"blankCount"`
	ZeroCount        int `json:"zeroCount"`

	OperatorCounts *OperatorCounts `json:"operatorCounts,omitempty"`
	OperatorFixed  OperatorFixed   `json:"operatorFixed"`

	EqualsMode      string `json:"equalsMode,omitempty"`
	EqualsMin       *int   `json:"equalsMin,omitempty"`
	EqualsMax       *int   `json:"equalsMax,omitempty"`
	HeavyNumberMode string `json:"heavyNumberMode,omitempty"`
	HeavyNumberMin  *int   `json:"heavyNumberMin,omitempty"`
	HeavyNumberMax  *int   `json:"heavyNumberMax,omitempty"`
	BlankMode       string `json:"blankMode,omitempty"`
	BlankMin        *int   `json:"blankMin,omitempty"`
	BlankMax        *int   `json:"blankMax,omitempty"`
	ZeroMode        string `json:"zeroMode,omitempty"`
	ZeroMin         *int   `json:"zeroMin,omitempty"`
	ZeroMax         *int   `json:"zeroMax,omitempty"`
	OperatorMin     *int   `json:"operatorMin,omitempty"`
	OperatorMax     *int   `json:"operatorMax,omitempty"`

	RandomSettings *RandomSettings `json:"randomSettings,omitempty"`

	// Lock-position fields. isLockPos is the canonical flag; lockMode is kept
	// in sync for older readers. lockCount is derived from totalCount.
	IsLockPos bool `json:"isLockPos"`
	LockMode  bool `json:"lockMode"`
	LockCount int  `json:"lockCount"`
}

// SpecificOperators pins per-operator tile counts when operatorMode is "specific".
type SpecificOperators struct {
	Plus     *int `json:"plus,omitempty"`
	Minus    *int `json:"minus,omitempty"`
	Multiply *int `json:"multiply,omitempty"`
	Divide   *int `json:"divide,omitempty"`
}

// OperatorCounts carries requested counts keyed by operator glyph.
type OperatorCounts struct {
	Plus     *int `json:"+,omitempty"`
	Minus    *int `json:"-,omitempty"`
	Multiply *int `json:"×,omitempty"`
	Divide   *int `json:"÷,omitempty"`
}

// OperatorFixed pins exact counts per operator glyph; nil means not fixed.
type OperatorFixed struct {
	Plus          *int `json:"+"`
	Minus         *int `json:"-"`
	Multiply      *int `json:"×"`
	Divide        *int `json:"÷"`
	PlusMinus     *int `json:"+/-"`
	MultiplyDivide *int `json:"×/÷"`
}

// RandomSettings toggles which tile categories are randomised.
type RandomSettings struct {
	Operators bool `json:"operators"`
	Equals    bool `json:"equals"`
	Heavy     bool `json:"heavy"`
	Blank     bool `json:"blank"`
	Zero      bool `json:"zero"`
}

// OptionSet is one ordered segment of an assignment: numQuestions questions
// generated with the same parameter bag before the student advances to the
// next segment.
type OptionSet struct {
	Options      QuestionOptions `json:"options"`
	NumQuestions int             `json:"numQuestions"`
	SetLabel     string          `json:"setLabel,omitempty"`
}
