// Package brand 维护品牌名称与品牌编码之间的映射，并提供查询分词与
// 同义词扩展能力。本包为纯函数包，不依赖任何存储后端。
package brand

import "strings"

// Pair 是一条品牌映射：Name 为常用名（多为中文），Code 为规范化的小写英文编码。
type Pair struct {
	Name string
	Code string
}

// pairs 按声明顺序定义全部品牌映射。顺序即替换与扩展的遍历顺序，
// 调整顺序会改变中文品牌替换的结果，不要随意重排。
var pairs = []Pair{
	{"小米", "xiaomi"},
	{"红米", "redmi"},
	{"华为", "huawei"},
	{"荣耀", "honor"},
	{"oppo", "oppo"},
	{"vivo", "vivo"},
	{"三星", "samsung"},
	{"苹果", "apple"},
	{"魅族", "meizu"},
	{"一加", "oneplus"},
	{"真我", "realme"},
	{"努比亚", "nubia"},
	{"中兴", "zte"},
	{"索尼", "sony"},
	{"摩托罗拉", "motorola"},
	{"联想", "lenovo"},
	{"黑鲨", "blackshark"},
	{"红魔", "redmagic"},
	{"拯救者", "legion"},
	{"酷派", "coolpad"},
	{"乐视", "leeco"},
	{"金立", "gionee"},
	{"锤子", "smartisan"},
	{"坚果", "smartisan"},
	{"360", "360"},
	{"华硕", "asus"},
	{"HTC", "htc"},
	{"谷歌", "google"},
	{"诺基亚", "nokia"},
	{"微软", "microsoft"},
	{"LG", "lg"},
}

// specialized 是产品线昵称到品牌编码的补充映射，单向生效。
var specialized = map[string][]string{
	"iphone": {"apple"},
	"ipad":   {"apple"},
	"galaxy": {"samsung"},
	"pixel":  {"google"},
	"mate":   {"huawei"},
	"nova":   {"huawei"},
	"magic":  {"honor"},
	"mi":     {"xiaomi"},
}

var (
	codeByName  map[string]string   // 小写品牌名 -> 编码
	namesByCode map[string][]string // 编码 -> 品牌名列表（保持声明顺序）
	codeSet     map[string]struct{} // 全部品牌编码
)

func init() {
	codeByName = make(map[string]string, len(pairs))
	namesByCode = make(map[string][]string, len(pairs))
	codeSet = make(map[string]struct{}, len(pairs))
	for _, p := range pairs {
		codeByName[strings.ToLower(p.Name)] = p.Code
		namesByCode[p.Code] = append(namesByCode[p.Code], p.Name)
		codeSet[p.Code] = struct{}{}
	}
}

// CodeOf 返回输入对应的品牌编码。输入大小写不敏感；
// 输入本身是品牌编码时原样返回。
func CodeOf(input string) (string, bool) {
	normalized := strings.ToLower(strings.TrimSpace(input))
	if normalized == "" {
		return "", false
	}
	if code, ok := codeByName[normalized]; ok {
		return code, true
	}
	if _, ok := codeSet[normalized]; ok {
		return normalized, true
	}
	return "", false
}

// IsCode 判断输入（大小写不敏感）是否为已知的品牌编码。
func IsCode(input string) bool {
	_, ok := codeSet[strings.ToLower(input)]
	return ok
}

// RelatedKeywords 返回一个词元的同义词扩展集，顺序固定：
// 词元本身、中文名对应的编码、编码对应的全部中文名、产品线昵称映射。
// 结果去重且至少包含词元本身；空白输入返回 nil。
func RelatedKeywords(input string) []string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return nil
	}
	normalized := strings.ToLower(trimmed)

	out := make([]string, 0, 4)
	seen := make(map[string]struct{}, 4)
	add := func(s string) {
		if _, ok := seen[s]; !ok {
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}

	add(trimmed)
	if code, ok := codeByName[normalized]; ok {
		add(code)
	}
	for _, name := range namesByCode[normalized] {
		add(name)
	}
	for _, syn := range specialized[normalized] {
		add(syn)
	}
	return out
}

// ReplaceChineseNames 将查询中出现的品牌常用名逐个替换为品牌编码，
// 每个品牌只替换第一处出现。返回替换后的查询以及是否发生了实际变化。
func ReplaceChineseNames(q string) (string, bool) {
	modified := q
	for _, p := range pairs {
		if strings.Contains(modified, p.Name) {
			modified = strings.Replace(modified, p.Name, p.Code, 1)
		}
	}
	return modified, modified != q
}

// Keyword 在一组词元中寻找第一个能识别为品牌的词元并原样返回。
// 词元的同义词扩展集中只要有任何一项是已知品牌编码即算识别成功，
// 因此产品线昵称（如 galaxy、iphone）同样能触发品牌识别。
func Keyword(tokens []string) (string, bool) {
	for _, tok := range tokens {
		for _, kw := range RelatedKeywords(tok) {
			if IsCode(kw) {
				return tok, true
			}
		}
	}
	return "", false
}
