package collaboration

import (
	"fmt"
	"strings"

	"github.com/ruipedro-pinheiro/CHIKA/agent/persistence"
)

// topicMaxRunes 讨论主题截取用户消息的最大字符数
const topicMaxRunes = 100

// Topic 由用户消息的前 100 个字符生成讨论主题
func Topic(message string) string {
	r := []rune(message)
	if len(r) > topicMaxRunes {
		r = r[:topicMaxRunes]
	}
	return "How to respond to: " + string(r)
}

// ReviewPrompt 请第二个 responder 评审主 responder 的回答
func ReviewPrompt(primary, proposal string) string {
	return fmt.Sprintf(
		"@%s proposed this response to the user:\n\n\"%s\"\n\n"+
			"Do you agree with this approach? If not, what would you suggest instead?\n"+
			"Be constructive and specific.",
		primary, proposal)
}

// FormatHistory 把讨论记录格式化为 "@responder: content"，以空行分隔
func FormatHistory(messages []persistence.DiscussionMessage) string {
	lines := make([]string, len(messages))
	for i, m := range messages {
		lines[i] = "@" + m.Responder + ": " + m.Content
	}
	return strings.Join(lines, "\n\n")
}

// RoundPrompt 构造讨论轮次提示
func RoundPrompt(current, other, topic string, messages []persistence.DiscussionMessage) string {
	return fmt.Sprintf(
		"You are %s, discussing with @%s about: %s\n\n"+
			"Previous discussion:\n%s\n\n"+
			"What's your response? Try to reach consensus or propose a compromise.\n"+
			"If you agree with the other AI, say \"I agree\" and propose a final response to the user.",
		current, other, topic, FormatHistory(messages))
}
