package racial

import "github.com/kurobane/sagabrawl/model"

// Racial ability tags. These strings are what RacialAbility rows store.
const (
	TagZenkai             = "zenkai"
	TagHumanSpirit        = "human_spirit"
	TagArcosianResilience = "arcosian_resilience"
	TagMajinMagic         = "majin_magic"
	TagMajinRegeneration  = "majin_regeneration"
	TagMajinRegenEnhanced = "majin_regeneration_enhanced"
	TagNamekianPhysiology = "namekian_physiology"
	TagNamekianGiantForm  = "namekian_giant_form"
)

// defaultTags lists the abilities granted at character creation per race.
// Toggleable sub-states (enhanced regeneration, giant form) are layered on
// later by player commands, not granted up front.
var defaultTags = map[string][]string{
	model.RaceSaiyan:   {TagZenkai},
	model.RaceHuman:    {TagHumanSpirit},
	model.RaceArcosian: {TagArcosianResilience},
	model.RaceMajin:    {TagMajinMagic, TagMajinRegeneration},
	model.RaceNamekian: {TagNamekianPhysiology},
}

// DefaultTags returns the racial ability tags a new character of the given
// race starts with.
func DefaultTags(race string) []string {
	return defaultTags[race]
}

// toggleParents maps a toggleable sub-state to the base racial it layers on.
var toggleParents = map[string]string{
	TagMajinRegenEnhanced: TagMajinRegeneration,
	TagNamekianGiantForm:  TagNamekianPhysiology,
}

// ToggleParent returns the base racial a toggleable sub-state requires, and
// whether the tag is toggleable at all.
func ToggleParent(tag string) (string, bool) {
	parent, ok := toggleParents[tag]
	return parent, ok
}

// TagSet is the set of active racial tags on a character.
type TagSet map[string]bool

// NewTagSet builds a TagSet from active ability rows.
func NewTagSet(abilities []model.RacialAbility) TagSet {
	set := make(TagSet, len(abilities))
	for _, a := range abilities {
		if a.IsActive {
			set[a.Tag] = true
		}
	}
	return set
}

// Has reports whether the tag is active.
func (s TagSet) Has(tag string) bool { return s[tag] }
