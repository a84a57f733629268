package models

// CSVRecord はCSVの1行を表します。
// Headers はヘッダーの出現順を保持し、コメント列の収集順など
// フィールドの走査順が必要な処理はこの順序に従います。
type CSVRecord struct {
	Headers []string
	Fields  map[string]string
}

// Get は指定した列の値を返します（存在しない場合は空文字列）
func (r CSVRecord) Get(key string) string {
	return r.Fields[key]
}

// Attachment は添付フィールド 'date;author;filename;url' から解析した添付ファイルを表します
type Attachment struct {
	Filename string
	URL      string
}

// Outcome は1レコードの処理結果を表します
type Outcome int

const (
	// OutcomeCreated はユーザーストーリーの作成に成功したことを表します
	OutcomeCreated Outcome = iota
	// OutcomeSkippedDryRun はドライランのため作成をスキップしたことを表します
	OutcomeSkippedDryRun
	// OutcomeFailed は処理中にエラーが発生したことを表します
	OutcomeFailed
)

// MigrationStats は移行処理全体の成功・失敗件数を保持します
type MigrationStats struct {
	Success int
	Failed  int
}
