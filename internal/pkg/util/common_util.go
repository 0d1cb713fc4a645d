package util

import (
	"strings"
)

// LikeEscapeChar 与 EscapeLike 配套，查询需带 ESCAPE '!'
const LikeEscapeChar = "!"

var likeEscaper = strings.NewReplacer(`!`, `!!`, `%`, `!%`, `_`, `!_`)

// EscapeLike 转义 LIKE 通配符
func EscapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// ClampPageSize 将分页大小限制在 [1, max]，非正数取默认值
func ClampPageSize(size, def, max int) int {
	if size <= 0 {
		size = def
	}
	if size > max {
		size = max
	}
	return size
}

// PtrString 用于将 string 转换为 *string
func PtrString(s string) *string {
	return &s
}
