package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConvertMarkup(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "空文字列",
			input:    "",
			expected: "",
		},
		{
			name:     "強調",
			input:    "*bold*",
			expected: "**bold**",
		},
		{
			name:     "箇条書きは強調に変換しない",
			input:    "* not bold",
			expected: "* not bold",
		},
		{
			name:     "既存の二重アスタリスクはそのまま",
			input:    "**already bold**",
			expected: "**already bold**",
		},
		{
			name:     "文中の強調",
			input:    "this is *important* here",
			expected: "this is **important** here",
		},
		{
			name:     "複数の強調",
			input:    "*one* and *two*",
			expected: "**one** and **two**",
		},
		{
			name:     "見出し",
			input:    "h2. Title",
			expected: "## Title",
		},
		{
			name:     "見出しレベル6",
			input:    "h6. Deep",
			expected: "###### Deep",
		},
		{
			name:     "リンク",
			input:    "[Confluence|https://x]",
			expected: "[Confluence](https://x)",
		},
		{
			name:     "余分なセグメント付きリンク",
			input:    "[Confluence|https://x|smart-link]",
			expected: "[Confluence](https://x)",
		},
		{
			name:     "URLのみのリンク",
			input:    "[https://x]",
			expected: "[https://x](https://x)",
		},
		{
			name:     "未チェックのチェックボックス",
			input:    "[ ]",
			expected: "[ ]",
		},
		{
			name:     "チェック済みのチェックボックス",
			input:    "[x]",
			expected: "[x]",
		},
		{
			name:     "大文字のチェックボックス",
			input:    "[X]",
			expected: "[X]",
		},
		{
			name:     "モノスペース",
			input:    "{{code}}",
			expected: "`code`",
		},
		{
			name:     "アイコン",
			input:    "(/)",
			expected: "✅",
		},
		{
			name:     "アイコン各種",
			input:    "(x) (!) (i) (y) (n)",
			expected: "❌ ⚠️ ℹ️ 👍 👎",
		},
		{
			name:     "画像マーカー",
			input:    "!screenshot.png|width=300!",
			expected: "(Attachment: screenshot.png)",
		},
		{
			name:     "パラメータなしの画像マーカー",
			input:    "!diagram.jpg!",
			expected: "(Attachment: diagram.jpg)",
		},
		{
			name:     "2段の箇条書き",
			input:    "** second level",
			expected: "  * second level",
		},
		{
			name:     "3段の箇条書き",
			input:    "*** third level",
			expected: "    * third level",
		},
		{
			name:     "番号付きリストは箇条書きへ",
			input:    "# first item",
			expected: "* first item",
		},
		{
			name:     "言語付きコードブロック",
			input:    "{code:java}",
			expected: "```java",
		},
		{
			name:     "言語なしコードブロック",
			input:    "{code}",
			expected: "```",
		},
		{
			name:     "noformatブロック",
			input:    "{noformat}",
			expected: "```",
		},
		{
			name:     "複数行の混在",
			input:    "h1. Intro\n* item\n** sub item\nsee *this* and {{that}}",
			expected: "# Intro\n* item\n  * sub item\nsee **this** and `that`",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ConvertMarkup(tt.input))
		})
	}
}

// 変換は純粋関数なので同じ入力からは常に同じ出力が得られます
func TestConvertMarkupDeterministic(t *testing.T) {
	inputs := []string{
		"*bold* and [Link|https://x] with (/) marks",
		"h3. Heading\n** nested\n{code:go}\nfunc main() {}\n{code}",
		"!file.png|thumbnail! then {{mono}}",
	}

	for _, input := range inputs {
		assert.Equal(t, ConvertMarkup(input), ConvertMarkup(input))
	}
}

// 箇条書きのマーカーが強調パスに食われないことを複合ケースで確認します
func TestConvertMarkupBulletBoldInteraction(t *testing.T) {
	input := "* bullet with *bold* inside\n** nested bullet"
	expected := "* bullet with **bold** inside\n  * nested bullet"
	assert.Equal(t, expected, ConvertMarkup(input))
}

func TestParseComment(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "標準形式",
			input:    "2021-01-01;jdoe;hello world",
			expected: "hello world",
		},
		{
			name:     "本文にセミコロンを含む",
			input:    "2021-01-01;jdoe;one;two;three",
			expected: "one;two;three",
		},
		{
			name:     "本文のマークアップ変換",
			input:    "2021-01-01;jdoe;*urgent* fix",
			expected: "**urgent** fix",
		},
		{
			name:     "区切りが足りない場合は全体を本文扱い",
			input:    "just a plain note",
			expected: "just a plain note",
		},
		{
			name:     "区切りが2つ未満",
			input:    "date;author",
			expected: "date;author",
		},
		{
			name:     "空文字列",
			input:    "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseComment(tt.input))
		})
	}
}

func TestRenderHTML(t *testing.T) {
	html, err := RenderHTML("# Title\n\nsome **bold** text")
	assert.NoError(t, err)
	assert.Contains(t, html, "<h1")
	assert.Contains(t, html, "<strong>bold</strong>")
}
