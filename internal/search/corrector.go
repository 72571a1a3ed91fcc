// Package search 对职位搜索词做简单拼写纠正。
package search

import (
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"
)

// DefaultVocabulary 常见职位搜索词。
var DefaultVocabulary = []string{
	"engineer", "developer", "designer", "manager", "analyst", "scientist", "architect",
	"consultant", "specialist", "administrator", "assistant", "coordinator", "director",
	"intern", "senior", "junior", "lead", "principal", "staff", "head",
	"software", "frontend", "backend", "fullstack", "mobile", "android", "ios", "web",
	"data", "product", "project", "marketing", "sales", "finance", "accountant", "support",
	"customer", "operations", "security", "devops", "cloud", "platform", "infrastructure",
	"machine", "learning", "react", "javascript", "typescript", "python", "golang", "java",
	"kotlin", "swift", "remote", "hybrid", "london", "manchester", "berlin", "paris",
	"contract", "freelance", "internship", "graduate", "teacher", "nurse", "recruiter",
}

// Corrector 将词表外的词替换为编辑距离最近的词表词。
type Corrector struct {
	words []string
	known map[string]struct{}
}

// NewCorrector 创建纠错器，extra 追加到默认词表之后。
func NewCorrector(extra ...string) *Corrector {
	c := &Corrector{known: make(map[string]struct{})}
	for _, w := range DefaultVocabulary {
		c.add(w)
	}
	for _, w := range extra {
		c.add(w)
	}
	return c
}

func (c *Corrector) add(w string) {
	w = strings.ToLower(strings.TrimSpace(w))
	if w == "" {
		return
	}
	if _, ok := c.known[w]; ok {
		return
	}
	c.known[w] = struct{}{}
	c.words = append(c.words, w)
}

// Correct 返回纠正后的查询以及是否发生了改写。
// 长度不超过 4 的词最多允许 1 处编辑，更长的词最多 2 处；含数字或过短的词保持原样。
func (c *Corrector) Correct(query string) (string, bool) {
	tokens := strings.Fields(query)
	changed := false
	for i, tok := range tokens {
		lower := strings.ToLower(tok)
		if _, ok := c.known[lower]; ok || !correctable(lower) {
			continue
		}
		limit := 2
		if len([]rune(lower)) <= 4 {
			limit = 1
		}
		n := len([]rune(lower))
		best, bestDist := "", limit+1
		for _, w := range c.words {
			if gap := n - len([]rune(w)); gap > limit || -gap > limit {
				continue
			}
			if d := levenshtein.ComputeDistance(lower, w); d < bestDist {
				best, bestDist = w, d
			}
		}
		if best != "" {
			tokens[i] = best
			changed = true
		}
	}
	return strings.Join(tokens, " "), changed
}

func correctable(tok string) bool {
	if len([]rune(tok)) < 3 {
		return false
	}
	for _, r := range tok {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}
