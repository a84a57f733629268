package services

import (
	"encoding/csv"
	"fmt"
	"os"
	"strings"

	"github.com/HamzaIsrar12/jira-to-taiga-migrator/config"
	"github.com/HamzaIsrar12/jira-to-taiga-migrator/models"
	"github.com/HamzaIsrar12/jira-to-taiga-migrator/utils"
)

// CSVProcessor はCSVファイルの読み込みを担当します
type CSVProcessor struct {
	config *config.Config
}

// NewCSVProcessor は新しいCSVプロセッサーを作成します
func NewCSVProcessor(cfg *config.Config) *CSVProcessor {
	return &CSVProcessor{
		config: cfg,
	}
}

// ReadJiraCSV は設定されたJiraエクスポートCSVを読み込みます
func (p *CSVProcessor) ReadJiraCSV() ([]models.CSVRecord, error) {
	utils.LogInfo("Jira CSVファイル '%s' を読み込みます", p.config.CSVFile)

	records, err := p.ReadCSV(p.config.CSVFile)
	if err != nil {
		return nil, err
	}

	utils.LogInfo("Jira CSVを読み込みました: %d 行", len(records))
	return records, nil
}

// ReadCSV は汎用CSVリーダーです。
// 先頭のUTF-8 BOMを許容し、重複するヘッダーには '.1', '.2', … を付けて区別します。
// フィールド数がヘッダーより少ない行は存在する分だけ取り込みます
func (p *CSVProcessor) ReadCSV(filePath string) ([]models.CSVRecord, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("CSVオープンエラー: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("CSV読み込みエラー: %w", err)
	}

	if len(rows) < 2 {
		return nil, fmt.Errorf("CSVデータが不足しています")
	}

	headers := rows[0]
	headers[0] = strings.TrimPrefix(headers[0], "\uFEFF")
	uniqueHeaders := uniquifyHeaders(headers)

	result := make([]models.CSVRecord, 0, len(rows)-1)
	for _, row := range rows[1:] {
		fields := make(map[string]string)
		for j := 0; j < min(len(uniqueHeaders), len(row)); j++ {
			fields[uniqueHeaders[j]] = row[j]
		}
		result = append(result, models.CSVRecord{
			Headers: uniqueHeaders,
			Fields:  fields,
		})
	}

	return result, nil
}

// uniquifyHeaders は重複するヘッダー名に連番を付けて一意にします
func uniquifyHeaders(headers []string) []string {
	unique := make([]string, 0, len(headers))
	counts := make(map[string]int)

	for _, header := range headers {
		if n, ok := counts[header]; ok {
			counts[header] = n + 1
			unique = append(unique, fmt.Sprintf("%s.%d", header, n+1))
		} else {
			counts[header] = 0
			unique = append(unique, header)
		}
	}

	return unique
}

// DistinctStatuses は全レコードから重複のないステータス名を
// 初出順で抽出します
func DistinctStatuses(records []models.CSVRecord) []string {
	seen := make(map[string]bool)
	var statuses []string

	for _, record := range records {
		status := record.Get("Status")
		if status == "" || seen[status] {
			continue
		}
		seen[status] = true
		statuses = append(statuses, status)
	}

	return statuses
}

// min は２つの整数の小さい方を返します
func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
