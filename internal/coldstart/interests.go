package coldstart

// interestProfile describes the content shape that typically satisfies one
// declared interest.
type interestProfile struct {
	ContentTypes     []string
	Hashtags         []string
	QualityThreshold float64
}

var interestProfiles = map[string]interestProfile{
	"art": {
		ContentTypes:     []string{"image", "video"},
		Hashtags:         []string{"art", "painting", "drawing", "design", "creative"},
		QualityThreshold: 0.7,
	},
	"gaming": {
		ContentTypes:     []string{"video", "image"},
		Hashtags:         []string{"gaming", "game", "esports", "streamer", "gamer"},
		QualityThreshold: 0.6,
	},
	"sports": {
		ContentTypes:     []string{"video", "image"},
		Hashtags:         []string{"sports", "football", "basketball", "soccer", "athlete"},
		QualityThreshold: 0.8,
	},
	"comics": {
		ContentTypes:     []string{"image"},
		Hashtags:         []string{"comics", "manga", "anime", "cartoon", "illustration"},
		QualityThreshold: 0.7,
	},
	"music": {
		ContentTypes:     []string{"video", "audio"},
		Hashtags:         []string{"music", "song", "artist", "concert", "album"},
		QualityThreshold: 0.8,
	},
	"politics": {
		ContentTypes:     []string{"text", "image"},
		Hashtags:         []string{"politics", "news", "government", "policy", "election"},
		QualityThreshold: 0.9,
	},
	"photography": {
		ContentTypes:     []string{"image"},
		Hashtags:         []string{"photography", "photo", "camera", "nature", "portrait"},
		QualityThreshold: 0.8,
	},
	"science": {
		ContentTypes:     []string{"text", "image", "video"},
		Hashtags:         []string{"science", "research", "technology", "discovery", "innovation"},
		QualityThreshold: 0.9,
	},
	"news": {
		ContentTypes:     []string{"text", "image", "video"},
		Hashtags:         []string{"news", "breaking", "update", "report", "coverage"},
		QualityThreshold: 0.8,
	},
	"technology": {
		ContentTypes:     []string{"text", "image", "video"},
		Hashtags:         []string{"tech", "technology", "innovation", "startup", "ai"},
		QualityThreshold: 0.8,
	},
	"food": {
		ContentTypes:     []string{"image", "video"},
		Hashtags:         []string{"food", "cooking", "recipe", "restaurant", "chef"},
		QualityThreshold: 0.7,
	},
	"travel": {
		ContentTypes:     []string{"image", "video"},
		Hashtags:         []string{"travel", "vacation", "trip", "destination", "adventure"},
		QualityThreshold: 0.8,
	},
	"fashion": {
		ContentTypes:     []string{"image", "video"},
		Hashtags:         []string{"fashion", "style", "outfit", "trend", "designer"},
		QualityThreshold: 0.7,
	},
}

// defaultInterests seed ranking for users who declared nothing.
var defaultInterests = []string{"news", "technology", "culture"}
