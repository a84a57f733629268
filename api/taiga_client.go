package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Project はTaigaのプロジェクトを表します。
// ステータス・ロール・ポイントの一覧は接続時点のスナップショットです
type Project struct {
	ID                int               `json:"id"`
	Name              string            `json:"name"`
	Slug              string            `json:"slug"`
	UserStoryStatuses []UserStoryStatus `json:"us_statuses"`
	Roles             []Role            `json:"roles"`
	Points            []Point           `json:"points"`
}

// UserStoryStatus はユーザーストーリーのステータスを表します
type UserStoryStatus struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// Role はプロジェクトのロールを表します
type Role struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Point はプロジェクトのポイント定義を表します。
// Value はJSON表現のまま保持し、見積もり値との突き合わせは文字列比較で行います
type Point struct {
	ID    int             `json:"id"`
	Name  string          `json:"name"`
	Value json.RawMessage `json:"value"`
}

// Membership はプロジェクトのメンバーシップを表します。
// 招待中などユーザーが確定していない場合 UserID は 0 になります
type Membership struct {
	UserID   int    `json:"user"`
	FullName string `json:"full_name"`
}

// User はTaigaのユーザーを表します
type User struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
	FullName string `json:"full_name"`
}

// UserStory は作成済みのユーザーストーリーを表します。
// Version はPATCH系の操作で必要になり、操作のたびに更新されます
type UserStory struct {
	ID      int    `json:"id"`
	Ref     int    `json:"ref"`
	Subject string `json:"subject"`
	Version int    `json:"version"`
}

// TaigaClient はTaiga APIとのやり取りを処理します
type TaigaClient struct {
	host   string
	token  string
	client *http.Client
}

// NewTaigaClient は新しいTaigaクライアントを作成します
func NewTaigaClient(host string) *TaigaClient {
	return &TaigaClient{
		host: strings.TrimRight(host, "/"),
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// doRequest はJSONリクエストを送信してレスポンスボディを返します
func (t *TaigaClient) doRequest(method, url string, payload interface{}) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		payloadBytes, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("JSONエンコードエラー: %w", err)
		}
		body = bytes.NewReader(payloadBytes)
	}

	req, err := http.NewRequest(method, url, body)
	if err != nil {
		return nil, fmt.Errorf("リクエスト作成エラー: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if t.token != "" {
		req.Header.Set("Authorization", "Bearer "+t.token)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("リクエスト送信エラー: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
	}

	return respBody, nil
}

// Auth はTaigaに認証して以降のリクエストで使うトークンを取得します
func (t *TaigaClient) Auth(username, password string) error {
	url := fmt.Sprintf("%s/api/v1/auth", t.host)

	payload := map[string]string{
		"type":     "normal",
		"username": username,
		"password": password,
	}

	body, err := t.doRequest("POST", url, payload)
	if err != nil {
		return fmt.Errorf("認証失敗: %w", err)
	}

	var result struct {
		AuthToken string `json:"auth_token"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return fmt.Errorf("レスポンス解析エラー: %w", err)
	}
	if result.AuthToken == "" {
		return fmt.Errorf("認証トークンが見つかりません")
	}

	t.token = result.AuthToken
	return nil
}

// GetProjectBySlug はスラッグでプロジェクトを取得します
func (t *TaigaClient) GetProjectBySlug(slug string) (*Project, error) {
	url := fmt.Sprintf("%s/api/v1/projects/by_slug?slug=%s", t.host, slug)

	body, err := t.doRequest("GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("プロジェクト取得失敗: %w", err)
	}

	var project Project
	if err := json.Unmarshal(body, &project); err != nil {
		return nil, fmt.Errorf("レスポンス解析エラー: %w", err)
	}

	return &project, nil
}

// ListMemberships はプロジェクトのメンバーシップ一覧を取得します。
// 一覧の順序はTaigaが返した順序をそのまま保持します
func (t *TaigaClient) ListMemberships(projectID int) ([]Membership, error) {
	url := fmt.Sprintf("%s/api/v1/memberships?project=%d", t.host, projectID)

	body, err := t.doRequest("GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("メンバーシップ取得失敗: %w", err)
	}

	var memberships []Membership
	if err := json.Unmarshal(body, &memberships); err != nil {
		return nil, fmt.Errorf("レスポンス解析エラー: %w", err)
	}

	return memberships, nil
}

// GetUser はユーザー情報を取得します
func (t *TaigaClient) GetUser(userID int) (*User, error) {
	url := fmt.Sprintf("%s/api/v1/users/%d", t.host, userID)

	body, err := t.doRequest("GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("ユーザー取得失敗: %w", err)
	}

	var user User
	if err := json.Unmarshal(body, &user); err != nil {
		return nil, fmt.Errorf("レスポンス解析エラー: %w", err)
	}

	return &user, nil
}

// CreateUserStoryStatus はユーザーストーリーのステータスを作成します
func (t *TaigaClient) CreateUserStoryStatus(projectID int, name, slug string, isClosed bool, color string) (*UserStoryStatus, error) {
	url := fmt.Sprintf("%s/api/v1/userstory-statuses", t.host)

	payload := map[string]interface{}{
		"project":   projectID,
		"name":      name,
		"slug":      slug,
		"is_closed": isClosed,
		"color":     color,
	}

	body, err := t.doRequest("POST", url, payload)
	if err != nil {
		return nil, fmt.Errorf("ステータス作成失敗: %w", err)
	}

	var status UserStoryStatus
	if err := json.Unmarshal(body, &status); err != nil {
		return nil, fmt.Errorf("レスポンス解析エラー: %w", err)
	}

	return &status, nil
}

// DeleteUserStoryStatus はユーザーストーリーのステータスを削除します
func (t *TaigaClient) DeleteUserStoryStatus(statusID int) error {
	url := fmt.Sprintf("%s/api/v1/userstory-statuses/%d", t.host, statusID)

	if _, err := t.doRequest("DELETE", url, nil); err != nil {
		return fmt.Errorf("ステータス削除失敗: %w", err)
	}

	return nil
}

// CreateUserStory はユーザーストーリーを作成します。
// statusID・assigneeID が 0 の場合は未指定として送信しません
func (t *TaigaClient) CreateUserStory(projectID int, subject, description string, statusID, assigneeID int) (*UserStory, error) {
	url := fmt.Sprintf("%s/api/v1/userstories", t.host)

	payload := map[string]interface{}{
		"project":     projectID,
		"subject":     subject,
		"description": description,
	}
	if statusID != 0 {
		payload["status"] = statusID
	}
	if assigneeID != 0 {
		payload["assigned_to"] = assigneeID
	}

	body, err := t.doRequest("POST", url, payload)
	if err != nil {
		return nil, fmt.Errorf("ユーザーストーリー作成失敗: %w", err)
	}

	var story UserStory
	if err := json.Unmarshal(body, &story); err != nil {
		return nil, fmt.Errorf("レスポンス解析エラー: %w", err)
	}

	return &story, nil
}

// UpdatePoints はユーザーストーリーに見積もりポイントを設定します
func (t *TaigaClient) UpdatePoints(story *UserStory, roleID, pointID int) error {
	url := fmt.Sprintf("%s/api/v1/userstories/%d", t.host, story.ID)

	payload := map[string]interface{}{
		"points":  map[string]int{strconv.Itoa(roleID): pointID},
		"version": story.Version,
	}

	body, err := t.doRequest("PATCH", url, payload)
	if err != nil {
		return fmt.Errorf("ポイント更新失敗: %w", err)
	}

	// 次のPATCHで使うバージョンを取り込む
	if err := json.Unmarshal(body, story); err != nil {
		return fmt.Errorf("レスポンス解析エラー: %w", err)
	}

	return nil
}

// AddComment はユーザーストーリーにコメントを追加します
func (t *TaigaClient) AddComment(story *UserStory, comment string) error {
	url := fmt.Sprintf("%s/api/v1/userstories/%d", t.host, story.ID)

	payload := map[string]interface{}{
		"comment": comment,
		"version": story.Version,
	}

	body, err := t.doRequest("PATCH", url, payload)
	if err != nil {
		return fmt.Errorf("コメント追加失敗: %w", err)
	}

	if err := json.Unmarshal(body, story); err != nil {
		return fmt.Errorf("レスポンス解析エラー: %w", err)
	}

	return nil
}

// AttachFile はユーザーストーリーにローカルファイルを添付します
func (t *TaigaClient) AttachFile(projectID, storyID int, filePath string) error {
	url := fmt.Sprintf("%s/api/v1/userstories/attachments", t.host)

	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("ファイルオープンエラー: %w", err)
	}
	defer file.Close()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	if err := writer.WriteField("project", strconv.Itoa(projectID)); err != nil {
		return fmt.Errorf("multipartフォーム作成エラー: %w", err)
	}
	if err := writer.WriteField("object_id", strconv.Itoa(storyID)); err != nil {
		return fmt.Errorf("multipartフォーム作成エラー: %w", err)
	}

	part, err := writer.CreateFormFile("attached_file", filepath.Base(filePath))
	if err != nil {
		return fmt.Errorf("multipartフォーム作成エラー: %w", err)
	}

	if _, err := io.Copy(part, file); err != nil {
		return fmt.Errorf("ファイルコピーエラー: %w", err)
	}

	if err := writer.Close(); err != nil {
		return fmt.Errorf("writerクローズエラー: %w", err)
	}

	req, err := http.NewRequest("POST", url, body)
	if err != nil {
		return fmt.Errorf("リクエスト作成エラー: %w", err)
	}

	req.Header.Set("Content-Type", writer.FormDataContentType())
	if t.token != "" {
		req.Header.Set("Authorization", "Bearer "+t.token)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("リクエスト送信エラー: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("添付ファイルアップロード失敗: %s", string(respBody))
	}

	return nil
}
