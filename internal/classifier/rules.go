// Package classifier holds the zero-latency parts of page classification:
// the hardcoded rule engine, URL normalisation and the in-memory result caches.
package classifier

import (
	"net/url"
	"strings"

	"github.com/eliteGoblin/focusd/web_mon/internal/domain"
)

// Reasons attached to rule verdicts.
const (
	ReasonEntertainment = "Music/entertainment content (automatic filter)"
	ReasonTrustedDomain = "Trusted educational platform or research tool"
	ReasonEducational   = "Recognised educational content"
	ReasonDirectMatch   = "Content directly matches topic: "
)

// entertainmentMarkers always mark a title UNRELATED, whatever the topic.
var entertainmentMarkers = []string{
	"official m/v", "official mv", "music video", "official video", "lyric video",
	"phim ca nhạc", "trailer", "teaser", "gameplay", "walkthrough game", "esports",
	"tập full", "vietsub", "thuyết minh", "phim hành động", "hài kịch", "livestream game",
	"prod.", "ft.", "feat.", "remix", "cover", "lyrics", "karaoke", "album", "ca sĩ",
	"sáng tác", "trình bày", "vlog giải trí", "hài hước", "funny", "mv", "m/v",
}

// trustedDomains are reference, educational and AI tool sites that are always RELATED.
var trustedDomains = []string{
	"stackoverflow.com", "github.com", "wikipedia.org", "w3schools.com", "mdn.mozilla.org",
	"coursera.org", "udemy.com", "edx.org", "khanacademy.org", "medium.com", "dev.to",
	"chatgpt.com", "claude.ai", "perplexity.ai", "gemini.google.com", "poe.com",
	"duolingo.com", "memrise.com", "quizlet.com", "notion.so",
}

// studyMarkers make a topic count as study-related.
var studyMarkers = []string{"học", "learn", "code", "study", "tập"}

// educationalKeywords is the multi-domain keyword database.
var educationalKeywords = []string{
	// IT & programming
	"tutorial", "coding", "programming", "developer", "software", "api", "database", "sql", "python", "java",
	"javascript", "html", "css", "react", "nodejs", "backend", "frontend", "github", "git", "algorithm",
	"lập trình", "code", "hướng dẫn", "cấu trúc dữ liệu", "mạng máy tính", "cloud", "aws", "docker", "web dev",

	// AI & data science
	"ai", "machine learning", "artificial intelligence", "data science", "neural network", "deep learning",
	"trí tuệ nhân tạo", "dữ liệu", "big data", "pandas", "numpy", "tensorflow", "pytorch", "prompt engineering",

	// Business & marketing
	"marketing", "seo", "ads", "business", "finance", "kinh doanh", "tài chính", "đầu tư", "investment",
	"marketing plan", "thị trường", "sales", "management", "quản trị", "startup", "khởi nghiệp",

	// Design
	"design", "ui", "ux", "photoshop", "figma", "illustrator", "thiết kế", "đồ họa", "typography", "branding",

	// Academic & languages
	"tiếng anh", "english", "ielts", "toeic", "toefl", "vocabulary", "grammar", "math", "toán", "vật lý", "physics",
	"chemistry", "hóa học", "history", "lịch sử", "biology", "sinh học", "science", "khoa học", "ngu pháp",

	// General learning
	"lesson", "course", "class", "lecture", "academy", "university", "college", "tự học", "bài giảng",
	"khóa học", "kiến thức", "tóm tắt", "educational", "giảng dạy", "phát triển bản thân", "self improvement",
	"nâng cao", "cơ bản", "vlog học tập", "study with me", "productivity", "tập trung",
}

// RuleBasedVerdict applies the hardcoded heuristics in priority order.
// The second return value is false when no rule fired and the caller has to
// fall through to the cache and the AI classifier.
func RuleBasedVerdict(title, rawURL, topic string) (domain.Classification, bool) {
	titleLow := strings.ToLower(strings.TrimSpace(title))
	topicLow := strings.ToLower(topic)
	urlLow := strings.ToLower(rawURL)

	if IsEntertainmentTitle(titleLow) {
		return domain.Unrelated(ReasonEntertainment), true
	}

	if isTrustedHost(rawURL) {
		return domain.Related(ReasonTrustedDomain), true
	}

	if containsAny(topicLow, studyMarkers) || len([]rune(topicLow)) > 2 {
		hit := false
		for _, kw := range educationalKeywords {
			if strings.Contains(titleLow, kw) || strings.Contains(urlLow, kw) {
				hit = true
				break
			}
		}
		if hit {
			if strings.Contains(titleLow, topicLow) || strings.Contains(urlLow, topicLow) {
				return domain.Related(ReasonDirectMatch + topic), true
			}
			return domain.Related(ReasonEducational), true
		}
	}

	return domain.Classification{}, false
}

// IsEntertainmentTitle reports whether a lower-cased title carries an entertainment
// marker or looks like a music release ("Artist - Song (Official MV)").
func IsEntertainmentTitle(titleLow string) bool {
	if containsAny(titleLow, entertainmentMarkers) {
		return true
	}
	hasSeparator := strings.ContainsAny(titleLow, "-|")
	return hasSeparator && containsAny(titleLow, []string{"official", "audio", "m/v", "mv"})
}

func isTrustedHost(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return false
	}
	for _, d := range trustedDomains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
