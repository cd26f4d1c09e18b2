package collaboration

import (
	"regexp"
	"strings"
)

// Pattern 是分类表中的一条规则。
type Pattern struct {
	Name string
	Re   *regexp.Regexp
}

// Match 报告 text 是否命中该规则
func (p Pattern) Match(text string) bool {
	return p.Re.MatchString(text)
}

var disagreementPatterns = []Pattern{
	{Name: "i disagree", Re: regexp.MustCompile(`(?i)\bi disagree\b`)},
	{Name: "actually", Re: regexp.MustCompile(`(?i)\bactually\b`)},
	{Name: "however", Re: regexp.MustCompile(`(?i)\bhowever\b`)},
	{Name: "instead", Re: regexp.MustCompile(`(?i)\binstead\b`)},
	{Name: "not sure", Re: regexp.MustCompile(`(?i)\bnot sure\b`)},
	{Name: "i would differently", Re: regexp.MustCompile(`(?i)\bi would.*differently\b`)},
	{Name: "better approach", Re: regexp.MustCompile(`(?i)\bbetter approach\b`)},
}

var consensusPatterns = []Pattern{
	{Name: "i agree", Re: regexp.MustCompile(`(?i)\bi agree\b`)},
	{Name: "sounds good", Re: regexp.MustCompile(`(?i)\bsounds good\b`)},
	{Name: "that works", Re: regexp.MustCompile(`(?i)\bthat works\b`)},
	{Name: "let's go with", Re: regexp.MustCompile(`(?i)\blet's go with\b`)},
	{Name: "consensus", Re: regexp.MustCompile(`(?i)\bconsensus\b`)},
}

// 标记须从词首开始，"nonconsensus:" 不算
var consensusMarker = regexp.MustCompile(`(?is)\b(?:consensus|final response|here's what we should say):\s*(.+)`)

// DisagreementPatterns 返回分歧分类表的副本，按匹配顺序排列
func DisagreementPatterns() []Pattern {
	return append([]Pattern(nil), disagreementPatterns...)
}

// ConsensusPatterns 返回共识分类表的副本，按匹配顺序排列
func ConsensusPatterns() []Pattern {
	return append([]Pattern(nil), consensusPatterns...)
}

func firstMatch(patterns []Pattern, text string) (string, bool) {
	if strings.TrimSpace(text) == "" {
		return "", false
	}
	for _, p := range patterns {
		if p.Match(text) {
			return p.Name, true
		}
	}
	return "", false
}

// MatchDisagreement 返回第一条命中的分歧规则名
func MatchDisagreement(text string) (string, bool) {
	return firstMatch(disagreementPatterns, text)
}

// MatchConsensus 返回第一条命中的共识规则名
func MatchConsensus(text string) (string, bool) {
	return firstMatch(consensusPatterns, text)
}

// DetectDisagreement 报告评审回复是否表达了不同意见
func DetectDisagreement(text string) bool {
	_, ok := MatchDisagreement(text)
	return ok
}

// ConsensusReached 报告讨论回复是否表达了同意
func ConsensusReached(text string) bool {
	_, ok := MatchConsensus(text)
	return ok
}

// ExtractConsensus 提取 "consensus:" / "final response:" /
// "here's what we should say:" 之后的文本（去除首尾空白，可能为空）；
// 没有标记时原样返回 text。
func ExtractConsensus(text string) string {
	if m := consensusMarker.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return text
}
