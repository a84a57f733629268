package services

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// 変換パス用のプリコンパイル済みパターン
var (
	// !filename.png|params! 形式の画像・添付マーカー
	imagePattern = regexp.MustCompile(`!([^!|]+)(?:\|[^!]*)?!`)
	// [Title|URL|params] 形式のリンク
	linkPattern = regexp.MustCompile(`\[([^\]]+)\]`)
	// 行頭の '**'以上の箇条書きマーカー
	bulletPattern = regexp.MustCompile(`(?m)^(\*{2,})\s+`)
	// 行頭の '#' による番号付きリスト
	hashBulletPattern = regexp.MustCompile(`(?m)^#\s+`)
	// 行頭の h1.〜h6. 見出し
	headingPattern = regexp.MustCompile(`(?m)^h([1-6])\.\s+`)
	// *text* 形式の強調。区切りの内側はアスタリスク・スペース・改行以外
	boldPattern = regexp.MustCompile(`\*([^* \n](?:[^*]*?[^* \n])?)\*`)
	// {{text}} 形式のモノスペース
	monoPattern = regexp.MustCompile(`\{\{(.+?)\}\}`)
	// {code} / {code:lang} 形式のコードブロック
	codePattern = regexp.MustCompile(`\{code(?::([a-zA-Z0-9]+))?\}`)

	iconReplacer = strings.NewReplacer(
		"(/)", "✅",
		"(x)", "❌",
		"(!)", "⚠️",
		"(i)", "ℹ️",
		"(y)", "👍",
		"(n)", "👎",
	)
)

// ConvertMarkup はJiraのWikiマークアップをMarkdownに変換します。
// 各パスの適用順は固定で、入れ替えると箇条書きと強調の相互作用が壊れます
func ConvertMarkup(body string) string {
	if body == "" {
		return ""
	}

	body = convertImages(body)
	body = convertLinks(body)
	body = convertLists(body)
	body = convertHeadings(body)
	body = convertBold(body)
	body = convertMonospace(body)
	body = convertIcons(body)
	body = convertCodeBlocks(body)

	return body
}

// convertImages は !filename.png|params! を (Attachment: filename.png) に変換します
func convertImages(body string) string {
	return imagePattern.ReplaceAllString(body, "(Attachment: $1)")
}

// convertLinks は [Title|URL|params] を [Title](URL) に変換します。
// [ ] と [x] はチェックボックスなのでそのまま残します
func convertLinks(body string) string {
	return linkPattern.ReplaceAllStringFunc(body, func(match string) string {
		inner := match[1 : len(match)-1]
		if inner == " " || strings.ToLower(inner) == "x" {
			return match
		}

		parts := strings.Split(inner, "|")
		if len(parts) == 1 {
			return fmt.Sprintf("[%s](%s)", parts[0], parts[0])
		}
		return fmt.Sprintf("[%s](%s)", parts[0], parts[1])
	})
}

// convertLists は多段箇条書き（** → インデント付き *）と
// '#' による番号付きリスト（* に統合）を変換します
func convertLists(body string) string {
	body = bulletPattern.ReplaceAllStringFunc(body, func(match string) string {
		depth := 0
		for depth < len(match) && match[depth] == '*' {
			depth++
		}
		return strings.Repeat("  ", depth-1) + "* "
	})

	return hashBulletPattern.ReplaceAllString(body, "* ")
}

// convertHeadings は h1.〜h6. を # 〜 ###### に変換します
func convertHeadings(body string) string {
	return headingPattern.ReplaceAllStringFunc(body, func(match string) string {
		level := int(headingPattern.FindStringSubmatch(match)[1][0] - '0')
		return strings.Repeat("#", level) + " "
	})
}

// convertBold は *text* を **text** に変換します。
// 区切りに隣接するアスタリスクがある場合（既存の ** 強調）は変換しません。
// 行頭の箇条書きマーカーは区切りの内側にスペースを許さないことで除外されます
func convertBold(body string) string {
	matches := boldPattern.FindAllStringSubmatchIndex(body, -1)
	if matches == nil {
		return body
	}

	var b strings.Builder
	last := 0
	for _, m := range matches {
		start, end := m[0], m[1]
		if (start > 0 && body[start-1] == '*') || (end < len(body) && body[end] == '*') {
			continue
		}
		b.WriteString(body[last:start])
		b.WriteString("**")
		b.WriteString(body[m[2]:m[3]])
		b.WriteString("**")
		last = end
	}
	b.WriteString(body[last:])

	return b.String()
}

// convertMonospace は {{text}} を `text` に変換します
func convertMonospace(body string) string {
	return monoPattern.ReplaceAllString(body, "`$1`")
}

// convertIcons はJira固有のアイコントークンを絵文字に置き換えます
func convertIcons(body string) string {
	return iconReplacer.Replace(body)
}

// convertCodeBlocks は {code} / {code:lang} / {noformat} をコードフェンスに変換します。
// 終了側の {code} も同じ置換で対称的にフェンスになります
func convertCodeBlocks(body string) string {
	body = codePattern.ReplaceAllString(body, "```$1")
	return strings.ReplaceAll(body, "{noformat}", "```")
}

// Taiga向けのHTML描画エンジン。変換済みのチェックボックスやテーブルを
// 生かすためGFMとTaskList拡張を有効にしています
var htmlRenderer = goldmark.New(
	goldmark.WithExtensions(extension.GFM, extension.TaskList),
	goldmark.WithRendererOptions(html.WithUnsafe()),
)

// RenderHTML は中間MarkdownをTaigaの説明文に使うHTMLへ描画します
func RenderHTML(markdown string) (string, error) {
	var buf bytes.Buffer
	if err := htmlRenderer.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("Markdown描画エラー: %w", err)
	}
	return buf.String(), nil
}

// ParseComment はJira CSVのコメント 'date;author;body' を解析して
// 本文をMarkdownに変換します。形式が想定外の場合は全体を本文として扱います
func ParseComment(raw string) string {
	if raw == "" {
		return ""
	}

	parts := strings.SplitN(raw, ";", 3)
	if len(parts) < 3 {
		return ConvertMarkup(raw)
	}

	return ConvertMarkup(parts[2])
}
