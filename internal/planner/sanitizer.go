package planner

import (
	"regexp"
	"strings"
)

// 内容安全兜底：生成提示词在出图/出片前统一清洗

const safeFallbackPrompt = "professional product showcase, clean studio lighting"

// 直接剔除的词汇
var bannedTerms = []string{
	"nude", "naked", "nsfw", "gore", "blood", "violence", "violent",
	"kill", "weapon", "hateful", "racist",
	"裸", "血腥", "暴力", "枪杀", "仇恨",
}

// 风险短语替换：整短语替换而非逐词剔除
var riskyPhrases = []struct {
	pattern     *regexp.Regexp
	replacement string
}{
	{regexp.MustCompile(`(?i)close[- ]?up of skin`), "professional product shot"},
	{regexp.MustCompile(`(?i)wet body`), "fresh and clean look"},
	{regexp.MustCompile(`(?i)seductive`), "elegant"},
	{regexp.MustCompile(`皮肤特写`), "产品特写"},
	{regexp.MustCompile(`性感`), "优雅"},
}

// SanitizePrompt 清洗生成提示词：先替换风险短语，再剔除违禁词；
// 清洗后过短则整体替换为安全兜底文案。
func SanitizePrompt(prompt string) string {
	out := prompt

	for _, rp := range riskyPhrases {
		out = rp.pattern.ReplaceAllString(out, rp.replacement)
	}

	lower := strings.ToLower(out)
	for _, term := range bannedTerms {
		for {
			idx := strings.Index(lower, term)
			if idx < 0 {
				break
			}
			out = out[:idx] + out[idx+len(term):]
			lower = lower[:idx] + lower[idx+len(term):]
		}
	}

	out = strings.Join(strings.Fields(out), " ")
	if len([]rune(out)) < 4 {
		return safeFallbackPrompt
	}
	return out
}
