package service

import (
	"regexp"
	"strings"
)

// ReferenceExtractor 从转账备注中提取 "<前缀> <数字>" 形式的订单号
type ReferenceExtractor struct {
	prefix  string
	pattern *regexp.Regexp
}

func NewReferenceExtractor(prefix string) *ReferenceExtractor {
	words := strings.Fields(prefix)
	if len(words) == 0 {
		return &ReferenceExtractor{}
	}

	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = regexp.QuoteMeta(w)
	}

	return &ReferenceExtractor{
		prefix:  strings.ToUpper(strings.Join(words, " ")),
		pattern: regexp.MustCompile(`(?i)` + strings.Join(quoted, `\s*`) + `\s*(\d+)`),
	}
}

// Extract 返回订单号；找不到前缀时退回整段备注（去首尾空白），ok 为 false
func (e *ReferenceExtractor) Extract(memo string) (reference string, ok bool) {
	if e.pattern != nil {
		if m := e.pattern.FindStringSubmatch(memo); m != nil {
			return e.prefix + " " + m[1], true
		}
	}
	return strings.TrimSpace(memo), false
}
