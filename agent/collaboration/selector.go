package collaboration

import (
	"regexp"
	"strings"

	"github.com/ruipedro-pinheiro/CHIKA/types"
)

// MaxParticipants 单次协作最多参与的 responder 数
const MaxParticipants = 2

// DefaultResponder 没有任何活跃 responder 时使用
const DefaultResponder = types.ResponderClaude

var mentionPattern = regexp.MustCompile(`@(\w+)`)

// category 是一条关键词分类规则，按表中顺序匹配，先匹配者胜出。
type category struct {
	Name      string
	Keywords  []string
	Preferred []string
}

var categories = []category{
	{
		Name: "code",
		Keywords: []string{
			"code", "function", "bug", "implement",
			"python", "javascript", "typescript", "rust", "golang", "java",
		},
		Preferred: []string{types.ResponderClaude, types.ResponderGPT},
	},
	{
		Name:      "creative",
		Keywords:  []string{"design", "creative", "write", "story"},
		Preferred: []string{types.ResponderGPT, types.ResponderClaude},
	},
	{
		Name:      "infrastructure",
		Keywords:  []string{"deploy", "server", "docker", "infrastructure"},
		Preferred: []string{types.ResponderGemini, types.ResponderClaude},
	},
}

// ExtractMentions 返回消息中的 @name（小写，按首次出现去重）。
func ExtractMentions(message string) []string {
	matches := mentionPattern.FindAllStringSubmatch(strings.ToLower(message), -1)
	seen := make(map[string]struct{}, len(matches))
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		name := m[1]
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}

// Classify 返回消息命中的关键词分类名，未命中返回 "default"。
func Classify(message string) string {
	if c, ok := matchCategory(strings.ToLower(message)); ok {
		return c.Name
	}
	return "default"
}

func matchCategory(lower string) (category, bool) {
	for _, c := range categories {
		for _, kw := range c.Keywords {
			if strings.Contains(lower, kw) {
				return c, true
			}
		}
	}
	return category{}, false
}

// SelectParticipants 选出参与本条消息的 responder，结果按发言顺序排列。
//
// 显式 @提及（与 active 取交集后非空）原样使用；否则按关键词分类表
// 选择偏好列表，无分类命中时取 active 的前两个。结果过滤为 active
// 中存在的名称并截断到 MaxParticipants；为空时退回 active 第一个，
// active 也为空时退回 DefaultResponder。
func SelectParticipants(message string, active []string) []string {
	index := make(map[string]string, len(active))
	for _, name := range active {
		key := strings.ToLower(name)
		if _, ok := index[key]; !ok {
			index[key] = name
		}
	}

	var mentioned []string
	for _, m := range ExtractMentions(message) {
		if name, ok := index[m]; ok {
			mentioned = append(mentioned, name)
		}
	}
	if len(mentioned) > 0 {
		return mentioned
	}

	var preferred []string
	if c, ok := matchCategory(strings.ToLower(message)); ok {
		preferred = c.Preferred
	} else {
		preferred = active
		if len(preferred) > MaxParticipants {
			preferred = preferred[:MaxParticipants]
		}
	}

	selected := make([]string, 0, MaxParticipants)
	seen := make(map[string]struct{}, MaxParticipants)
	for _, p := range preferred {
		name, ok := index[strings.ToLower(p)]
		if !ok {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		selected = append(selected, name)
		if len(selected) == MaxParticipants {
			break
		}
	}

	if len(selected) == 0 {
		if len(active) > 0 {
			return []string{active[0]}
		}
		return []string{DefaultResponder}
	}
	return selected
}
