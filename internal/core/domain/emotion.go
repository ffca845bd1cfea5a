package domain

import "strings"

// Emotion labels a catalog category. The well-known labels below are always
// present in a catalog; library folders with other names add categories of
// their own at index time.
type Emotion string

const (
	Angry    Emotion = "angry"
	Disgust  Emotion = "disgust"
	Fear     Emotion = "fear"
	Happy    Emotion = "happy"
	Sad      Emotion = "sad"
	Surprise Emotion = "surprise"
	Neutral  Emotion = "neutral"
)

var knownEmotions = []Emotion{Angry, Disgust, Fear, Happy, Sad, Surprise, Neutral}

// KnownEmotions returns the fixed label set in canonical order.
func KnownEmotions() []Emotion {
	out := make([]Emotion, len(knownEmotions))
	copy(out, knownEmotions)
	return out
}

// ParseEmotion normalizes a label received from a client or detector.
func ParseEmotion(s string) Emotion {
	return Emotion(strings.ToLower(strings.TrimSpace(s)))
}

// IsKnown reports whether e is one of the fixed labels.
func (e Emotion) IsKnown() bool {
	_, ok := profiles[e]
	return ok
}

func (e Emotion) String() string { return string(e) }

// EmotionProfile is the copy shown next to recommendations. It plays no part
// in ranking.
type EmotionProfile struct {
	LocalizedName string
	Description   string
	Tags          []string
}

var profiles = map[Emotion]EmotionProfile{
	Angry: {
		LocalizedName: "愤怒",
		Description:   "Intense, driving music to release pressure",
		Tags:          []string{"intense", "powerful", "cathartic", "energetic"},
	},
	Disgust: {
		LocalizedName: "厌恶",
		Description:   "Fresh, clean music to clear the air",
		Tags:          []string{"clean", "pure", "refreshing", "clear"},
	},
	Fear: {
		LocalizedName: "恐惧",
		Description:   "Warm, reassuring music that feels safe",
		Tags:          []string{"safe", "warm", "protective", "gentle"},
	},
	Happy: {
		LocalizedName: "快乐",
		Description:   "Light, upbeat music with a bright rhythm",
		Tags:          []string{"upbeat", "cheerful", "energetic", "positive"},
	},
	Sad: {
		LocalizedName: "悲伤",
		Description:   "Gentle, soothing music with warmth",
		Tags:          []string{"calm", "soothing", "melancholic", "warm"},
	},
	Surprise: {
		LocalizedName: "惊讶",
		Description:   "Novel, playful music full of twists",
		Tags:          []string{"novel", "interesting", "dynamic", "unexpected"},
	},
	Neutral: {
		LocalizedName: "中性",
		Description:   "Balanced, comfortable music for any moment",
		Tags:          []string{"balanced", "comfortable", "smooth", "pleasant"},
	},
}

// Profile returns the copy for e. Categories outside the fixed set have none.
func (e Emotion) Profile() (EmotionProfile, bool) {
	p, ok := profiles[e]
	if !ok {
		return EmotionProfile{}, false
	}
	p.Tags = append([]string(nil), p.Tags...)
	return p, true
}

// Description returns the recommendation blurb for e, or "".
func (e Emotion) Description() string {
	return profiles[e].Description
}

// LocalizedName returns the display name for e, falling back to the label.
func (e Emotion) LocalizedName() string {
	if p, ok := profiles[e]; ok {
		return p.LocalizedName
	}
	return string(e)
}
