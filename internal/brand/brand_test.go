package brand

import (
	"reflect"
	"testing"
)

func TestSegment(t *testing.T) {
	testCases := []struct {
		name  string
		input string
		want  []string
	}{
		{"中文加数字", "小米13", []string{"小米", "13"}},
		{"中文数字字母连写", "小米13Pro", []string{"小米", "13", "Pro"}},
		{"英文加数字连写", "iPhone15", []string{"iPhone", "15"}},
		{"数字在前", "13小米", []string{"13", "小米"}},
		{"已有空格保持切分", "huawei mate 60", []string{"huawei", "mate", "60"}},
		{"符号黑名单替换为空格", `(小米)-13:"Pro"*`, []string{"小米", "13", "Pro"}},
		{"撇号切分", "xiaomi's", []string{"xiaomi", "s"}},
		{"纯中文不切分", "拯救者", []string{"拯救者"}},
		{"空输入", "", []string{}},
		{"全空白输入", "   \t ", []string{}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := Segment(tc.input)
			if len(got) == 0 && len(tc.want) == 0 {
				return
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("Segment(%q) = %v, 期望 %v", tc.input, got, tc.want)
			}
		})
	}
}

func TestRelatedKeywordsBidirectional(t *testing.T) {
	// 每个品牌常用名必须扩展出其编码，每个编码必须扩展回全部常用名。
	for _, p := range pairs {
		fromName := RelatedKeywords(p.Name)
		if !contains(fromName, p.Code) {
			t.Errorf("RelatedKeywords(%q) = %v，缺少编码 %q", p.Name, fromName, p.Code)
		}
		fromCode := RelatedKeywords(p.Code)
		if !contains(fromCode, p.Name) {
			t.Errorf("RelatedKeywords(%q) = %v，缺少名称 %q", p.Code, fromCode, p.Name)
		}
	}
}

func TestRelatedKeywordsOrderAndDedup(t *testing.T) {
	got := RelatedKeywords("小米")
	want := []string{"小米", "xiaomi"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("RelatedKeywords(小米) = %v, 期望 %v", got, want)
	}

	// smartisan 对应两个常用名，按声明顺序返回。
	got = RelatedKeywords("smartisan")
	want = []string{"smartisan", "锤子", "坚果"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("RelatedKeywords(smartisan) = %v, 期望 %v", got, want)
	}

	// 自映射品牌不重复出现。
	got = RelatedKeywords("oppo")
	want = []string{"oppo"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("RelatedKeywords(oppo) = %v, 期望 %v", got, want)
	}
}

func TestRelatedKeywordsSpecialized(t *testing.T) {
	testCases := []struct {
		input string
		code  string
	}{
		{"iphone", "apple"},
		{"iPad", "apple"},
		{"Galaxy", "samsung"},
		{"pixel", "google"},
		{"mate", "huawei"},
		{"nova", "huawei"},
		{"magic", "honor"},
		{"mi", "xiaomi"},
	}
	for _, tc := range testCases {
		got := RelatedKeywords(tc.input)
		if !contains(got, tc.code) {
			t.Errorf("RelatedKeywords(%q) = %v，缺少 %q", tc.input, got, tc.code)
		}
		if got[0] != tc.input {
			t.Errorf("RelatedKeywords(%q) 首元素应为词元本身，实际 %v", tc.input, got)
		}
	}
}

func TestRelatedKeywordsNonBrand(t *testing.T) {
	got := RelatedKeywords("随便什么词")
	want := []string{"随便什么词"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("非品牌词应只扩展出自身，实际 %v", got)
	}
	if got := RelatedKeywords("   "); got != nil {
		t.Errorf("空白输入应返回 nil，实际 %v", got)
	}
}

func TestCodeOf(t *testing.T) {
	testCases := []struct {
		input  string
		want   string
		wantOK bool
	}{
		{"小米", "xiaomi", true},
		{"XIAOMI", "xiaomi", true},
		{"  华为 ", "huawei", true},
		{"htc", "htc", true},
		{"lg", "lg", true},
		{"360", "360", true},
		{"banana", "", false},
		{"", "", false},
	}
	for _, tc := range testCases {
		got, ok := CodeOf(tc.input)
		if got != tc.want || ok != tc.wantOK {
			t.Errorf("CodeOf(%q) = (%q, %v), 期望 (%q, %v)", tc.input, got, ok, tc.want, tc.wantOK)
		}
	}
}

func TestReplaceChineseNames(t *testing.T) {
	testCases := []struct {
		name        string
		input       string
		want        string
		wantChanged bool
	}{
		{"单品牌替换", "小米13", "xiaomi13", true},
		{"仅替换第一处", "小米对比小米", "xiaomi对比小米", true},
		{"多品牌各替换一处", "华为和荣耀", "huawei和honor", true},
		{"无品牌不变化", "某型号 123", "某型号 123", false},
		{"英文编码不触发变化", "xiaomi 13", "xiaomi 13", false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, changed := ReplaceChineseNames(tc.input)
			if got != tc.want || changed != tc.wantChanged {
				t.Errorf("ReplaceChineseNames(%q) = (%q, %v), 期望 (%q, %v)",
					tc.input, got, changed, tc.want, tc.wantChanged)
			}
		})
	}
}

func TestKeyword(t *testing.T) {
	if kw, ok := Keyword([]string{"999999", "xiaomi"}); !ok || kw != "xiaomi" {
		t.Errorf("Keyword 应识别出 xiaomi，实际 (%q, %v)", kw, ok)
	}
	if kw, ok := Keyword([]string{"找不到", "的词"}); ok {
		t.Errorf("不含品牌的词元组不应识别出品牌，实际 %q", kw)
	}
	if kw, ok := Keyword([]string{"红米", "999999"}); !ok || kw != "红米" {
		t.Errorf("中文品牌词元应原样返回，实际 (%q, %v)", kw, ok)
	}
	// 产品线昵称通过同义词扩展映射到品牌编码，同样算品牌识别成功。
	if kw, ok := Keyword([]string{"galaxy", "999999"}); !ok || kw != "galaxy" {
		t.Errorf("产品线昵称应识别为品牌词元，实际 (%q, %v)", kw, ok)
	}
	if kw, ok := Keyword([]string{"999999", "iPhone"}); !ok || kw != "iPhone" {
		t.Errorf("昵称识别应大小写不敏感并原样返回词元，实际 (%q, %v)", kw, ok)
	}
}

func contains(list []string, target string) bool {
	for _, s := range list {
		if s == target {
			return true
		}
	}
	return false
}
