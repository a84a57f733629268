package services

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/HamzaIsrar12/jira-to-taiga-migrator/api"
	"github.com/HamzaIsrar12/jira-to-taiga-migrator/config"
	"github.com/HamzaIsrar12/jira-to-taiga-migrator/models"
	"github.com/HamzaIsrar12/jira-to-taiga-migrator/utils"
)

// pointsField はJiraエクスポートの見積もり列の名前です
const pointsField = "Custom field (Story point estimate)"

// creationPause はストーリー作成後のレート制限対策の待機時間です
var creationPause = 100 * time.Millisecond

// TaigaAPI は移行処理が利用するTaigaの操作です
type TaigaAPI interface {
	CreateUserStory(projectID int, subject, description string, statusID, assigneeID int) (*api.UserStory, error)
	UpdatePoints(story *api.UserStory, roleID, pointID int) error
	AddComment(story *api.UserStory, comment string) error
	AttachFile(projectID, storyID int, filePath string) error
}

// AttachmentFetcher は添付ファイルをローカルに取得します
type AttachmentFetcher interface {
	DownloadAttachment(url, filename string) (string, error)
}

// MigrationService はJiraのCSVレコードをTaigaのユーザーストーリーへ移行します
type MigrationService struct {
	config   *config.Config
	taiga    TaigaAPI
	fetcher  AttachmentFetcher
	users    *UserResolver
	statuses *StatusSyncer
	project  *api.Project
	stats    models.MigrationStats
}

// NewMigrationService は新しい移行サービスを作成します
func NewMigrationService(cfg *config.Config, taiga TaigaAPI, fetcher AttachmentFetcher, users *UserResolver, statuses *StatusSyncer, project *api.Project) *MigrationService {
	return &MigrationService{
		config:   cfg,
		taiga:    taiga,
		fetcher:  fetcher,
		users:    users,
		statuses: statuses,
		project:  project,
	}
}

// Run は全レコードを順番に処理して最終的な成功・失敗件数を返します。
// 個々のレコードの失敗でバッチは中断しません
func (m *MigrationService) Run(records []models.CSVRecord) models.MigrationStats {
	startTime := time.Now()
	defer utils.TrackTime(startTime, "移行処理")

	total := len(records)
	utils.LogInfo("--- %d 件のユーザーストーリーを処理します ---", total)

	for i, record := range records {
		if (i+1)%5 == 0 {
			utils.LogInfo("処理中... %d/%d", i+1, total)
		}

		outcome, err := m.ProcessRecord(record)
		switch outcome {
		case models.OutcomeCreated:
			m.stats.Success++
		case models.OutcomeFailed:
			m.stats.Failed++
			utils.LogError("行 %d の処理に失敗しました: %v", i+1, err)
		case models.OutcomeSkippedDryRun:
			// ドライランは成功にも失敗にも数えない
		}
	}

	return m.stats
}

// ProcessRecord は1レコードを処理して結果を返します。
// 作成後のコメント・ポイント・添付で失敗した場合もレコード全体を失敗として
// 扱いますが、作成済みの内容はロールバックしません
func (m *MigrationService) ProcessRecord(record models.CSVRecord) (models.Outcome, error) {
	title := record.Get("Summary")
	if title == "" {
		title = "No Title"
	}

	rawStatus := record.Get("Status")
	statusID := 0
	if rawStatus != "" {
		if id, ok := m.statuses.Lookup(Slugify(rawStatus)); ok {
			statusID = id
		}
	}

	assignee := record.Get("Assignee")
	assigneeID := 0
	if assignee != "" {
		if id, ok := m.users.Resolve(assignee); ok {
			assigneeID = id
		}
	}

	description, err := RenderHTML(ConvertMarkup(record.Get("Description")))
	if err != nil {
		return models.OutcomeFailed, err
	}

	comments := m.collectComments(record)
	attachments := m.collectAttachments(record)

	if m.config.DryRun {
		utils.LogInfo("[DRY RUN] %s | ステータス: %s | 担当者: %s | 添付: %d | コメント: %d",
			truncate(title, 40), rawStatus, assignee, len(attachments), len(comments))
		return models.OutcomeSkippedDryRun, nil
	}

	story, err := m.taiga.CreateUserStory(m.project.ID, title, description, statusID, assigneeID)
	if err != nil {
		return models.OutcomeFailed, fmt.Errorf("ユーザーストーリー作成エラー: %w", err)
	}

	// ポイントの設定。見積もり値とプロジェクトのポイント定義を
	// 数値変換せず文字列のまま突き合わせる
	if points := record.Get(pointsField); points != "" && len(m.project.Roles) > 0 {
		if pointID, ok := matchPoint(m.project.Points, points); ok {
			if err := m.taiga.UpdatePoints(story, m.project.Roles[0].ID, pointID); err != nil {
				return models.OutcomeFailed, fmt.Errorf("ポイント設定エラー: %w", err)
			}
		}
	}

	for _, comment := range comments {
		if err := m.taiga.AddComment(story, comment); err != nil {
			return models.OutcomeFailed, fmt.Errorf("コメント追加エラー: %w", err)
		}
	}

	// レート制限対策の短い待機
	time.Sleep(creationPause)

	if m.config.DownloadAttachments {
		if err := m.uploadAttachments(story, attachments); err != nil {
			return models.OutcomeFailed, err
		}
	}

	utils.LogInfo("作成しました: %s", title)
	return models.OutcomeCreated, nil
}

// collectComments はコメント列をフィールドの出現順に解析して集めます
func (m *MigrationService) collectComments(record models.CSVRecord) []string {
	var comments []string
	for _, key := range record.Headers {
		if !strings.Contains(key, "Comment") {
			continue
		}
		value := record.Fields[key]
		if value == "" {
			continue
		}
		if comment := ParseComment(value); comment != "" {
			comments = append(comments, comment)
		}
	}
	return comments
}

// collectAttachments は添付列の生の値をフィールドの出現順に集めます
func (m *MigrationService) collectAttachments(record models.CSVRecord) []string {
	var attachments []string
	for _, key := range record.Headers {
		if !strings.HasPrefix(key, "Attachment") {
			continue
		}
		if value := record.Fields[key]; value != "" {
			attachments = append(attachments, value)
		}
	}
	return attachments
}

// uploadAttachments は添付記述ごとにダウンロードとアップロードを行います。
// 形式不正の記述とダウンロード失敗はスキップし、アップロード失敗はレコードの
// 失敗として返します。ローカルファイルは結果にかかわらず削除します
func (m *MigrationService) uploadAttachments(story *api.UserStory, attachments []string) error {
	for _, raw := range attachments {
		attachment, ok := parseAttachment(raw)
		if !ok {
			continue
		}

		localPath, err := m.fetcher.DownloadAttachment(attachment.URL, attachment.Filename)
		if err != nil {
			utils.LogError("添付ファイルのダウンロードに失敗しました: %s: %v", attachment.URL, err)
			continue
		}
		if localPath == "" {
			// 認証情報なしでスキップされた場合
			continue
		}

		uploadErr := m.taiga.AttachFile(m.project.ID, story.ID, localPath)
		os.Remove(localPath)
		if uploadErr != nil {
			return fmt.Errorf("添付ファイルアップロードエラー: %w", uploadErr)
		}
	}

	return nil
}

// parseAttachment は 'date;author;filename;url' 形式の添付記述を解析します。
// 余分な先頭セグメントは無視し、最後のセグメントをURLとして扱います
func parseAttachment(raw string) (models.Attachment, bool) {
	parts := strings.Split(raw, ";")
	if len(parts) < 4 {
		return models.Attachment{}, false
	}
	return models.Attachment{
		Filename: parts[2],
		URL:      parts[len(parts)-1],
	}, true
}

// matchPoint は見積もり値をポイント定義のJSON表現と文字列一致で突き合わせます
func matchPoint(points []api.Point, value string) (int, bool) {
	for _, p := range points {
		if string(p.Value) == value {
			return p.ID, true
		}
	}
	return 0, false
}

// truncate はログ表示用に文字列を切り詰めます
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
