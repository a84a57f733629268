package services

import (
	"strings"

	"github.com/HamzaIsrar12/jira-to-taiga-migrator/api"
	"github.com/HamzaIsrar12/jira-to-taiga-migrator/utils"
)

// MembershipAPI はユーザーキャッシュの構築に使うTaigaの操作です
type MembershipAPI interface {
	GetUser(userID int) (*api.User, error)
}

type userEntry struct {
	key string
	id  int
}

// UserResolver はJiraの表示名をTaigaのユーザーIDに解決します。
// キャッシュの走査順はメンバーシップ一覧の取得順で固定され、あいまい一致は
// 最初に一致したエントリを返します。結果が決定的なのはTaiga側の一覧順が
// 安定している場合に限られます
type UserResolver struct {
	entries   []userEntry
	index     map[string]int
	manualMap map[string]string
}

// BuildUserResolver はプロジェクトのメンバーシップ一覧からユーザーキャッシュを
// 構築します。氏名に加え、ユーザーが解決できた場合は '@username' と 'username' も
// キーとして登録します。manualMap は表示名の手動対応表（Jira名 → Taiga名）です
func BuildUserResolver(client MembershipAPI, memberships []api.Membership, manualMap map[string]string) *UserResolver {
	if manualMap == nil {
		manualMap = make(map[string]string)
	}

	r := &UserResolver{
		index:     make(map[string]int),
		manualMap: manualMap,
	}

	for _, m := range memberships {
		if m.UserID == 0 {
			// 招待中のメンバーにはユーザーが紐付いていない
			continue
		}
		if m.FullName != "" {
			r.add(m.FullName, m.UserID)
		}

		user, err := client.GetUser(m.UserID)
		if err != nil {
			utils.LogWarn("ユーザー %d の取得に失敗しました: %v", m.UserID, err)
			continue
		}
		if user.Username != "" {
			r.add("@"+user.Username, m.UserID)
			r.add(user.Username, m.UserID)
		}
	}

	utils.LogInfo("ユーザーキャッシュを構築しました: %d キー", len(r.entries))
	return r
}

// add はキーを登録します。既存キーはIDのみ更新し、登録位置は初出のまま保ちます
func (r *UserResolver) add(key string, id int) {
	if _, ok := r.index[key]; !ok {
		r.entries = append(r.entries, userEntry{key: key, id: id})
	}
	r.index[key] = id
}

// Resolve は表示名をユーザーIDに解決します。
// 完全一致 → 手動対応表 → あいまい一致（小文字化した部分文字列の相互一致）の
// 順で試し、どれにも一致しない場合は ok=false を返します
func (r *UserResolver) Resolve(displayName string) (int, bool) {
	if displayName == "" {
		return 0, false
	}

	if id, ok := r.index[displayName]; ok {
		return id, true
	}

	if mapped, ok := r.manualMap[displayName]; ok {
		if id, ok := r.index[mapped]; ok {
			return id, true
		}
	}

	lower := strings.ToLower(displayName)
	for _, entry := range r.entries {
		cached := strings.ToLower(entry.key)
		if strings.Contains(cached, lower) || strings.Contains(lower, cached) {
			return r.index[entry.key], true
		}
	}

	return 0, false
}
