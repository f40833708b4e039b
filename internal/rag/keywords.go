// internal/rag/keywords.go
package rag

import "strings"

// Closed bilingual vocabularies scanned against the diary text. Matching is
// case-insensitive substring containment; wartime diaries inflect these
// stems heavily, so stems are kept short where Russian morphology allows.
var militaryTerms = []string{
	// ru
	"бой", "битва", "атака", "наступлени", "оборон", "танк", "артиллери",
	"пехот", "фронт", "окоп", "дивизи", "полк", "батальон", "снаряд",
	"винтовк", "пулемет", "пулемёт", "бомбежк", "бомбёжк", "госпитал",
	"разведк", "командир", "солдат",
	// en
	"battle", "attack", "offensive", "defense", "defence", "tank",
	"artillery", "infantry", "front", "trench", "division", "regiment",
	"battalion", "shell", "rifle", "machine gun", "bombing", "hospital",
	"reconnaissance", "commander", "soldier",
}

var geographicTerms = []string{
	// ru
	"ленинград", "сталинград", "москв", "курск", "киев", "минск",
	"севастопол", "одесс", "берлин", "варшав", "прага", "днепр", "волг",
	"дон", "кавказ", "крым", "белорусси", "украин",
	// en
	"leningrad", "stalingrad", "moscow", "kursk", "kiev", "minsk",
	"sevastopol", "odessa", "berlin", "warsaw", "prague", "dnieper",
	"volga", "caucasus", "crimea", "belorussia", "ukraine",
}

var periodTerms = []string{
	// ru
	"блокад", "эвакуаци", "мобилизаци", "оккупаци", "освобождени",
	"капитуляци", "контрнаступлени", "отступлени", "победа", "войн",
	"тыл", "партизан",
	// en
	"blockade", "siege", "evacuation", "mobilization", "occupation",
	"liberation", "surrender", "counteroffensive", "retreat", "victory",
	"war", "partisan",
}

// ExtractKeywords scans the diary for the three closed vocabularies and
// merges in thematic tags supplied by the emotion analysis. The result is
// deduplicated, first occurrence order preserved.
func ExtractKeywords(diaryText string, thematicTags []string) []string {
	lower := strings.ToLower(diaryText)

	var keywords []string
	seen := make(map[string]bool)

	add := func(kw string) {
		kw = strings.TrimSpace(strings.ToLower(kw))
		if kw == "" || seen[kw] {
			return
		}
		seen[kw] = true
		keywords = append(keywords, kw)
	}

	for _, vocab := range [][]string{militaryTerms, geographicTerms, periodTerms} {
		for _, term := range vocab {
			if strings.Contains(lower, term) {
				add(term)
			}
		}
	}

	for _, tag := range thematicTags {
		add(tag)
	}

	return keywords
}
