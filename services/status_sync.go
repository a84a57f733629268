package services

import (
	"regexp"
	"strings"

	"github.com/HamzaIsrar12/jira-to-taiga-migrator/api"
	"github.com/HamzaIsrar12/jira-to-taiga-migrator/utils"
)

var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify はステータス名を正規化したスラッグに変換します。
// スラッグはステータス照合の結合キーとして実行をまたいで使われるため、
// 同じ入力からは常に同じ出力が得られます
func Slugify(text string) string {
	slug := slugPattern.ReplaceAllString(strings.ToLower(text), "-")
	return strings.Trim(slug, "-")
}

// closedStatusNames は完了扱いにするステータス名（小文字）です
var closedStatusNames = map[string]bool{
	"done":           true,
	"dev done":       true,
	"closed":         true,
	"ready for prod": true,
}

// statusColors は新規ステータスに作成順で循環適用するカラーパレットです
var statusColors = []string{
	"#70728F", "#E47C40", "#A58C43", "#DA6095", "#8E44AD", "#2ECC71", "#3498DB",
}

// StatusAPI はステータス同期が利用するTaigaの操作です
type StatusAPI interface {
	CreateUserStoryStatus(projectID int, name, slug string, isClosed bool, color string) (*api.UserStoryStatus, error)
	DeleteUserStoryStatus(statusID int) error
}

// StatusSyncer はCSVに現れるステータス名をTaigaのステータスレコードへ同期します
type StatusSyncer struct {
	client    StatusAPI
	projectID int
	existing  []api.UserStoryStatus
	statusMap map[string]int
}

// NewStatusSyncer は新しいステータス同期処理を作成します。
// existing は接続時点のプロジェクトのステータス一覧です
func NewStatusSyncer(client StatusAPI, projectID int, existing []api.UserStoryStatus) *StatusSyncer {
	snapshot := make([]api.UserStoryStatus, len(existing))
	copy(snapshot, existing)

	return &StatusSyncer{
		client:    client,
		projectID: projectID,
		existing:  snapshot,
		statusMap: make(map[string]int),
	}
}

// Sync はCSV上のステータス名をTaigaへ同期し、スラッグ → ステータスID の
// マッピングを返します。
// ドライランではリモート呼び出しを行わず、全キーを仮のIDに結び付けます。
// reset が真の場合は既存ステータスを先に削除します（削除失敗は警告のみ）。
// 個々の作成失敗はログに残し、そのキーはマッピングに含めません
func (s *StatusSyncer) Sync(names []string, reset, dryRun bool) map[string]int {
	utils.LogInfo("--- ステータスを同期します ---")

	if dryRun {
		utils.LogInfo("[DRY RUN] ステータス同期をスキップします。Reset=%v, 対象: %v", reset, names)
		statusMap := make(map[string]int)
		for _, name := range names {
			statusMap[Slugify(name)] = 1
		}
		s.statusMap = statusMap
		return statusMap
	}

	if reset {
		utils.LogInfo("リセットが有効です: 既存ステータスを削除します")
		var remaining []api.UserStoryStatus
		for _, status := range s.existing {
			if err := s.client.DeleteUserStoryStatus(status.ID); err != nil {
				// 既存ストーリーから参照されている場合など。残して再利用の対象にする
				utils.LogWarn("   %s を削除できませんでした: %v", status.Name, err)
				remaining = append(remaining, status)
				continue
			}
			utils.LogInfo("   削除しました: %s", status.Name)
		}
		s.existing = remaining
	}

	statusMap := make(map[string]int)
	created := 0

	for _, name := range names {
		slug := Slugify(name)

		if found, ok := s.findBySlug(slug); ok {
			statusMap[slug] = found.ID
			continue
		}

		isClosed := closedStatusNames[strings.ToLower(name)]
		color := statusColors[created%len(statusColors)]

		status, err := s.client.CreateUserStoryStatus(s.projectID, name, slug, isClosed, color)
		if err != nil {
			utils.LogError("ステータス %s の作成に失敗しました: %v", name, err)
			continue
		}

		created++
		s.existing = append(s.existing, *status)
		statusMap[slug] = status.ID
		utils.LogInfo("ステータスを作成しました: %s", name)
	}

	s.statusMap = statusMap
	return statusMap
}

// Lookup は同期済みのマッピングからステータスIDを引きます
func (s *StatusSyncer) Lookup(slug string) (int, bool) {
	id, ok := s.statusMap[slug]
	return id, ok
}

func (s *StatusSyncer) findBySlug(slug string) (api.UserStoryStatus, bool) {
	for _, status := range s.existing {
		if status.Slug == slug {
			return status, true
		}
	}
	return api.UserStoryStatus{}, false
}
