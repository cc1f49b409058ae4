package service

import (
	"fmt"
	"strings"

	"github.com/mathbingo/mathbingo-go-api/internal/dto"
	"github.com/mathbingo/mathbingo-go-api/internal/models"
)

// Tile-count defaults applied when the caller omits a field. A rack always
// carries one equals tile unless configured otherwise.
const (
	defaultEqualsCount = 1

	// Racks larger than the base size expose the surplus as lockable positions.
	lockFreePositions = 8
)

// ValidateOptionSets validates the caller-supplied option sets against the
// assignment's total question count and normalizes them into their canonical
// stored form. An empty input is valid and yields no sets; a non-empty input
// must partition totalQuestions exactly.
func ValidateOptionSets(sets []dto.OptionSetRequest, totalQuestions int) ([]models.OptionSet, error) {
	if len(sets) == 0 {
		return nil, nil
	}

	sum := 0
	for _, set := range sets {
		if set.NumQuestions != nil {
			sum += *set.NumQuestions
		}
	}
	if sum != totalQuestions {
		return nil, NewValidationError(
			"option sets cover %d questions but the assignment has %d", sum, totalQuestions)
	}

	normalized := make([]models.OptionSet, 0, len(sets))
	for i, set := range sets {
		if set.Options == nil || set.NumQuestions == nil {
			return nil, NewValidationError("option set %d is missing options or numQuestions", i+1)
		}
		if *set.NumQuestions < 1 {
			return nil, NewValidationError("option set %d must contain at least one question", i+1)
		}

		opts := set.Options
		if intOrZero(opts.TotalCount) == 0 ||
			strings.TrimSpace(stringOrEmpty(opts.OperatorMode)) == "" ||
			intOrZero(opts.OperatorCount) == 0 {
			return nil, NewValidationError(
				"option set %d needs totalCount, operatorMode and operatorCount", i+1)
		}

		totalCount := *opts.TotalCount
		isLockPos := lockFlag(opts)
		lockCount := 0
		if isLockPos && totalCount > lockFreePositions {
			lockCount = totalCount - lockFreePositions
		}

		label := strings.TrimSpace(set.SetLabel)
		if label == "" {
			label = fmt.Sprintf("Set %d", i+1)
		}

		normalized = append(normalized, models.OptionSet{
			NumQuestions: *set.NumQuestions,
			SetLabel:     label,
			Options: models.QuestionOptions{
				TotalCount:    totalCount,
				OperatorMode:  *opts.OperatorMode,
				OperatorCount: *opts.OperatorCount,

				SpecificOperators: opts.SpecificOperators,

				EqualsCount:      intOrDefault(opts.EqualsCount, defaultEqualsCount),
				HeavyNumberCount: intOrZero(opts.HeavyNumberCount),
				BlankCount:       intOrZero(opts.BlankCount),
				ZeroCount:        intOrZero(opts.ZeroCount),

				OperatorCounts: opts.OperatorCounts,
				OperatorFixed:  operatorFixed(opts.OperatorFixed),

				EqualsMode:      stringOrEmpty(opts.EqualsMode),
				EqualsMin:       opts.EqualsMin,
				EqualsMax:       opts.EqualsMax,
				HeavyNumberMode: stringOrEmpty(opts.HeavyNumberMode),
				HeavyNumberMin:  opts.HeavyNumberMin,
				HeavyNumberMax:  opts.HeavyNumberMax,
				BlankMode:       stringOrEmpty(opts.BlankMode),
				BlankMin:        opts.BlankMin,
				BlankMax:        opts.BlankMax,
				ZeroMode:        stringOrEmpty(opts.ZeroMode),
				ZeroMin:         opts.ZeroMin,
				ZeroMax:         opts.ZeroMax,
				OperatorMin:     opts.OperatorMin,
				OperatorMax:     opts.OperatorMax,

				RandomSettings: randomSettings(opts.RandomSettings),

				IsLockPos: isLockPos,
				LockMode:  isLockPos,
				LockCount: lockCount,
			},
		})
	}

	return normalized, nil
}

// lockFlag resolves the lock-position flag from whichever alias the caller
// used; the first alias present wins.
func lockFlag(opts *dto.OptionBagRequest) bool {
	for _, alias := range []*dto.FlexBool{
		opts.LockMode,
		opts.IsLockPos,
		opts.IsLockPosition,
		opts.LockPositionMode,
		opts.PosLockMode,
	} {
		if alias != nil {
			return alias.Bool()
		}
	}
	return false
}

// randomSettings fills absent sub-flags with true; a missing block stays nil.
func randomSettings(req *dto.RandomSettingsRequest) *models.RandomSettings {
	if req == nil {
		return nil
	}
	return &models.RandomSettings{
		Operators: boolOrDefault(req.Operators, true),
		Equals:    boolOrDefault(req.Equals, true),
		Heavy:     boolOrDefault(req.Heavy, true),
		Blank:     boolOrDefault(req.Blank, true),
		Zero:      boolOrDefault(req.Zero, true),
	}
}

func operatorFixed(fixed *models.OperatorFixed) models.OperatorFixed {
	if fixed == nil {
		return models.OperatorFixed{}
	}
	return *fixed
}

func intOrZero(v *int) int {
	return intOrDefault(v, 0)
}

func intOrDefault(v *int, fallback int) int {
	if v == nil {
		return fallback
	}
	return *v
}

func stringOrEmpty(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func boolOrDefault(v *bool, fallback bool) bool {
	if v == nil {
		return fallback
	}
	return *v
}
