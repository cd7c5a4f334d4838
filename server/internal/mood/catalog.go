package mood

// Level 是五个固定心情等级之一。
type Level struct {
	Mood  string `json:"mood"`
	Emoji string `json:"emoji"`
}

// Choice 是一个可多选的情绪或诱因。
type Choice struct {
	Name     string `json:"name"`
	Emoji    string `json:"emoji"`
	Category string `json:"category"`
}

var Levels = []Level{
	{Mood: "Terrible", Emoji: "😢"},
	{Mood: "Not Good", Emoji: "😔"},
	{Mood: "Ok Ok", Emoji: "😐"},
	{Mood: "Good", Emoji: "😊"},
	{Mood: "Great", Emoji: "🤩"},
}

var Emotions = []Choice{
	{Name: "Anxious", Emoji: "😰", Category: "negative"},
	{Name: "Sad", Emoji: "😔", Category: "negative"},
	{Name: "Frustrated", Emoji: "😤", Category: "negative"},
	{Name: "Tired", Emoji: "😴", Category: "neutral"},
	{Name: "Calm", Emoji: "😌", Category: "positive"},
	{Name: "Happy", Emoji: "😄", Category: "positive"},
	{Name: "Grateful", Emoji: "🤗", Category: "positive"},
	{Name: "Confident", Emoji: "😎", Category: "positive"},
	{Name: "Confused", Emoji: "🤔", Category: "neutral"},
	{Name: "Overwhelmed", Emoji: "😅", Category: "negative"},
}

var Triggers = []Choice{
	{Name: "Academic Work", Emoji: "📚", Category: "academic"},
	{Name: "Family", Emoji: "👨‍👩‍👧‍👦", Category: "personal"},
	{Name: "Friends", Emoji: "👥", Category: "social"},
	{Name: "Financial", Emoji: "💰", Category: "practical"},
	{Name: "Health", Emoji: "🏥", Category: "personal"},
	{Name: "Work/Career", Emoji: "💼", Category: "professional"},
	{Name: "Relationships", Emoji: "❤️", Category: "personal"},
	{Name: "Goals/Ambitions", Emoji: "🎯", Category: "personal"},
}

func findLevel(mood string) (Level, bool) {
	for _, l := range Levels {
		if l.Mood == mood {
			return l, true
		}
	}
	return Level{}, false
}

func hasChoice(choices []Choice, name string) bool {
	for _, c := range choices {
		if c.Name == name {
			return true
		}
	}
	return false
}
