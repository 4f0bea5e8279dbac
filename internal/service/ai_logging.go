package service

import (
	"log"
	"strings"
	"unicode/utf8"
)

const maxAILogSnippetRunes = 1024

// logAIExchange 输出模型请求与响应的摘要，超长内容截断。
func logAIExchange(kind, phase, content string) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		log.Printf("[AI %s] %s: <empty>", kind, phase)
		return
	}

	runeCount := utf8.RuneCountInString(trimmed)
	snippet := trimmed
	if runeCount > maxAILogSnippetRunes {
		snippet = string([]rune(trimmed)[:maxAILogSnippetRunes]) + "…(truncated)"
	}
	log.Printf("[AI %s] %s (runes=%d): %s", kind, phase, runeCount, snippet)
}

// logServiceError 记录不影响主流程的旁路失败。
func logServiceError(component, action string, err error) {
	if err == nil {
		return
	}
	log.Printf("[%s] %s failed: %v", component, action, err)
}
