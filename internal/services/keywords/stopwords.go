package keywords

import "strings"

// stopWordList holds English and Chinese function words, lowercase. Query
// fillers ("what about", "怎么样") are included so they never become search keys.
var stopWordList = []string{
	// English
	"the", "and", "for", "are", "but", "not", "you", "all", "any", "can", "had", "her", "was", "one",
	"our", "out", "has", "have", "him", "his", "how", "its", "may", "new", "now", "old", "see", "two",
	"who", "did", "get", "let", "say", "she", "too", "use", "that", "this", "with", "from", "they",
	"will", "would", "there", "their", "what", "about", "which", "when", "make", "like", "time", "just",
	"know", "take", "into", "year", "your", "some", "could", "them", "than", "then", "look", "only",
	"come", "over", "think", "also", "back", "after", "work", "first", "well", "even", "want", "because",
	"these", "give", "most", "been", "were", "does", "should", "why", "where", "here", "more", "very",
	"much", "tell", "please", "show", "is", "a", "an", "of", "to", "in", "on", "at", "by", "it",
	"be", "as", "or", "if", "do", "so", "me", "my", "we", "us", "am", "no", "up",
	"latest", "today", "news", "update", "updates", "recent", "summary", "summarize", "explain",
	// Chinese
	"的", "了", "和", "是", "在", "我", "有", "就", "不", "人", "都", "一", "一个", "上", "也", "很",
	"到", "说", "要", "去", "你", "会", "着", "没有", "看", "好", "自己", "这", "那", "吗", "呢", "吧",
	"啊", "么", "什么", "怎么", "怎么样", "如何", "为什么", "哪些", "哪个", "多少", "是否", "可以",
	"能否", "请", "帮我", "一下", "告诉", "告诉我", "最近", "最新", "今天", "现在", "目前", "情况",
	"分析", "看看", "觉得", "认为", "我们", "你们", "他们", "这个", "那个", "这些", "那些", "还是",
	"或者", "以及", "关于", "对于", "因为", "所以", "但是", "如果", "然后", "已经", "还有", "一些",
}

var stopWords = buildSet(stopWordList...)

func buildSet(words ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// IsStopWord reports whether word (compared lowercase) is a function word
func IsStopWord(word string) bool {
	_, ok := stopWords[strings.ToLower(word)]
	return ok
}
