package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Config はアプリケーション全体の設定を保持します
type Config struct {
	// Taiga API設定
	TaigaHost     string
	TaigaUsername string
	TaigaPassword string
	ProjectSlug   string

	// Jira設定
	CSVFile   string
	JiraUser  string
	JiraToken string

	// ファイルパス
	LogFile           string
	AttachmentsFolder string

	// 実行フラグ
	DryRun              bool
	ResetStatuses       bool
	DownloadAttachments bool

	// ユーザーマッピング（Jira表示名 → Taiga表示名）
	UserMapping map[string]string
}

// LoadConfig は環境変数から設定を読み込みます
func LoadConfig() (*Config, error) {
	// .envファイルを読み込む
	_ = godotenv.Load()

	config := &Config{
		TaigaHost:     strings.TrimRight(os.Getenv("TAIGA_HOST"), "/"),
		TaigaUsername: os.Getenv("TAIGA_USERNAME"),
		TaigaPassword: os.Getenv("TAIGA_PASSWORD"),
		ProjectSlug:   os.Getenv("TAIGA_PROJECT_SLUG"),

		CSVFile:   os.Getenv("JIRA_CSV_FILENAME"),
		JiraUser:  os.Getenv("JIRA_USERNAME"),
		JiraToken: os.Getenv("JIRA_API_TOKEN"),

		LogFile:           getEnvWithDefault("LOG_FILE", "migration.log"),
		AttachmentsFolder: getEnvWithDefault("ATTACHMENTS_FOLDER", "attachments"),

		DryRun:              getEnvAsBoolWithDefault("DRY_RUN", true),
		ResetStatuses:       getEnvAsBoolWithDefault("RESET_STATUSES", false),
		DownloadAttachments: getEnvAsBoolWithDefault("DOWNLOAD_ATTACHMENTS", false),

		UserMapping: ParseUserMapping(os.Getenv("USER_MAPPING")),
	}

	return config, nil
}

// ParseUserMapping は "JiraName1:TaigaName1,JiraName2:TaigaName2" 形式の
// マッピング文字列を解析します。区切りのない項目は無視されます
func ParseUserMapping(raw string) map[string]string {
	mapping := make(map[string]string)
	if raw == "" {
		return mapping
	}

	for _, item := range strings.Split(raw, ",") {
		jiraName, taigaName, found := strings.Cut(item, ":")
		if !found {
			continue
		}
		mapping[strings.TrimSpace(jiraName)] = strings.TrimSpace(taigaName)
	}

	return mapping
}

// デフォルト値付きで環境変数を取得
func getEnvWithDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// デフォルト値付きで環境変数を真偽値として取得
func getEnvAsBoolWithDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return strings.ToLower(value) == "true"
}
