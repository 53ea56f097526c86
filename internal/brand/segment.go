package brand

import (
	"regexp"
	"strings"
)

// 分词使用的边界规则。中文区间取常用汉字 U+4E00..U+9FA5，
// 与目录数据中实际出现的字符范围一致。
var (
	// controlChars 是查询中无意义、且会干扰存储层语法的符号黑名单。
	controlChars = regexp.MustCompile(`[*\-"':()]`)

	cjkToLatin = regexp.MustCompile("([一-龥])([a-zA-Z0-9])")
	latinToCJK = regexp.MustCompile("([a-zA-Z0-9])([一-龥])")
	alphaToNum = regexp.MustCompile(`([a-zA-Z])([0-9])`)
	numToAlpha = regexp.MustCompile(`([0-9])([a-zA-Z])`)
)

// Segment 将自由文本查询切分为词元：
// 先把符号黑名单替换为空格，再在中文与拉丁/数字、字母与数字的书写
// 边界处插入空格，最后按空白切分。"小米13Pro" 切为 ["小米","13","Pro"]。
// 空白输入返回空切片。
func Segment(input string) []string {
	processed := controlChars.ReplaceAllString(input, " ")
	processed = cjkToLatin.ReplaceAllString(processed, "$1 $2")
	processed = latinToCJK.ReplaceAllString(processed, "$1 $2")
	processed = alphaToNum.ReplaceAllString(processed, "$1 $2")
	processed = numToAlpha.ReplaceAllString(processed, "$1 $2")
	return strings.Fields(processed)
}
