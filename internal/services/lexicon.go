// internal/services/lexicon.go
package services

import (
	"regexp"
	"strings"
)

// Two distinct closed lexicons drive the image content safety path. The
// pre-screen set short-circuits generation entirely; the broader risky set
// only triggers prompt softening.

// extremeViolenceLexicon blocks image generation before any network call.
var extremeViolenceLexicon = []string{
	// ru
	"расстрел", "расстреляли", "расстрелян", "казнь", "казнили",
	"повесили", "замучили", "зверств", "резня", "изувечен", "трупы",
	// en
	"execution", "executed", "massacre", "slaughter", "tortured",
	"hanged", "atrocit", "corpses", "shot dead",
}

// ContainsExtremeViolence reports a pre-screen hit on the diary text.
func ContainsExtremeViolence(text string) bool {
	lower := strings.ToLower(text)
	for _, term := range extremeViolenceLexicon {
		if strings.Contains(lower, term) {
			return true
		}
	}
	return false
}

// riskySubstitution rewrites one risky term into an abstract replacement.
type riskySubstitution struct {
	re   *regexp.Regexp
	repl string
}

var riskySubstitutions = []riskySubstitution{
	// ru
	{regexp.MustCompile(`(?i)войн[аыеу]?`), "историческая эпоха"},
	{regexp.MustCompile(`(?i)битв[аыеу]?`), "событие"},
	{regexp.MustCompile(`(?i)бо[йя]\b`), "событие"},
	{regexp.MustCompile(`(?i)оружи[ея]`), "предмет"},
	{regexp.MustCompile(`(?i)солдат\w*`), "человек в форме"},
	{regexp.MustCompile(`(?i)кров[ьи]`), "след времени"},
	{regexp.MustCompile(`(?i)смерт[ьи]`), "утрата"},
	{regexp.MustCompile(`(?i)враг\w*`), "другая сторона"},
	// en
	{regexp.MustCompile(`(?i)\bwar\b`), "historical period"},
	{regexp.MustCompile(`(?i)\bbattle\b`), "event"},
	{regexp.MustCompile(`(?i)\bcombat\b`), "event"},
	{regexp.MustCompile(`(?i)\bweapons?\b`), "object"},
	{regexp.MustCompile(`(?i)\bsoldiers?\b`), "people in uniform"},
	{regexp.MustCompile(`(?i)\bblood\b`), "trace of time"},
	{regexp.MustCompile(`(?i)\bdeath\b`), "loss"},
	{regexp.MustCompile(`(?i)\benemy\b`), "the other side"},
	{regexp.MustCompile(`(?i)\bfighting\b`), "the period"},
}

// softenFraming is prefixed to a description whenever a substitution fired.
const softenFraming = "Symbolic, peaceful composition without any conflict imagery: "

// SoftenDescription substitutes risky vocabulary with abstract replacements.
// Reports whether anything was rewritten.
func SoftenDescription(description string) (string, bool) {
	softened := description
	changed := false
	for _, sub := range riskySubstitutions {
		if sub.re.MatchString(softened) {
			softened = sub.re.ReplaceAllString(softened, sub.repl)
			changed = true
		}
	}
	if changed {
		softened = softenFraming + softened
	}
	return softened, changed
}
