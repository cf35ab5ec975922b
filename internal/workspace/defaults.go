package workspace

// DefaultStory seeds a session that has nothing persisted yet.
const DefaultStory = "29-year-old Bong-Wi, Chauri, and Kim, whose relationships, jobs, and exams aren't going as planned.  We got it! Our fact-bombing romantic comedy!"

// DefaultKeywords is the panel's initial keyword list.
var DefaultKeywords = []string{"Michal Jackson", "pink sweater", "ducks", "halloween", "silver dolphins"}

// ExampleStories can replace the current story in one step.
var ExampleStories = []string{
	"The bad boy I knew as a kid is back and even worse! When Chul, who lives in the villa next door to Mi-ae in middle school and whom she briefly saw in the countryside as a child, goes to the same school and class as her, and is teased as duo Chul takes offense and avoids Mi-ae. Mi-ae is offended, but they continue to get involved through strange coincidences, and eventually they both get very upset and stop pretending to know each other anymore. As Mi-ae gets involved with Chul, who is always angry, and some of the strangest friends she's ever met, Mi-ae experiences puberty the hard way...",
	"Yoon Ji-ho is too positive and too unobtrusive, and there are men who have been secretly crushing on her for years.  Will their hearts be able to reach Yoon Ji-ho, the worst sensation of all? The best no-nonsense comedy romance of this era.",
	"Navier was the perfect empress of the Eastern Empire. When she realizes that her husband, the Emperor, is trying to make her Empress, she decides to divorce him. If I can't be empress here, I'll be empress somewhere else.",
}

// User-facing texts.
const (
	FailedDetail     = "Failed to load details"
	MergeFailedAlert = "Failed to fetch data. Try again."
	GaugeInfo        = "This value is calculated by comparing the previously checked text with the current one."
	SearchInfo       = "Keywords are sourced from an external corpus and preprocessed to favor creativity-provoking terms."
)
