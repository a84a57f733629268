package api

import (
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/HamzaIsrar12/jira-to-taiga-migrator/utils"
)

// ダウンロードのリトライ設定（2秒・4秒の間隔で最大2回）
const (
	downloadMaxRetries     = 2
	downloadRetryInterval  = 2 * time.Second
	downloadConnectTimeout = 10 * time.Second
	downloadReadTimeout    = 90 * time.Second
)

// JiraClient はJiraからの添付ファイルダウンロードを処理します
type JiraClient struct {
	username  string
	apiToken  string
	targetDir string
	client    *http.Client
}

// NewJiraClient は新しいJiraクライアントを作成します。
// targetDir はダウンロードした添付ファイルの保存先です
func NewJiraClient(username, apiToken, targetDir string) *JiraClient {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout: downloadConnectTimeout,
		}).DialContext,
		ResponseHeaderTimeout: downloadReadTimeout,
	}

	return &JiraClient{
		username:  username,
		apiToken:  apiToken,
		targetDir: targetDir,
		client:    &http.Client{Transport: transport},
	}
}

// DownloadAttachment はJiraから添付ファイルをダウンロードしてローカルパスを返します。
// 認証情報が設定されていない場合は警告を出して空のパスを返します（エラーではありません）
func (j *JiraClient) DownloadAttachment(url, filename string) (string, error) {
	if j.username == "" || j.apiToken == "" {
		utils.LogWarn("添付ファイルのダウンロードをスキップします: Jira認証情報がありません")
		return "", nil
	}

	if err := os.MkdirAll(j.targetDir, 0o755); err != nil {
		return "", fmt.Errorf("保存先フォルダ作成エラー: %w", err)
	}

	localPath := filepath.Join(j.targetDir, sanitizeFilename(filename))

	resp, err := j.get(url)
	if err != nil {
		return "", fmt.Errorf("ダウンロード失敗: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ダウンロード失敗 (HTTP %d): %s", resp.StatusCode, url)
	}

	file, err := os.Create(localPath)
	if err != nil {
		return "", fmt.Errorf("ファイル作成エラー: %w", err)
	}

	if _, err := io.Copy(file, resp.Body); err != nil {
		file.Close()
		os.Remove(localPath)
		return "", fmt.Errorf("ファイル書き込みエラー: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(localPath)
		return "", fmt.Errorf("ファイルクローズエラー: %w", err)
	}

	utils.LogInfo("    ダウンロードしました: %s", filename)
	return localPath, nil
}

// get は一時的な障害に対して指数バックオフで再試行するGETリクエストです。
// 再試行の対象はネットワークエラーと HTTP 429/500/502/503/504 のみです
func (j *JiraClient) get(url string) (*http.Response, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = downloadRetryInterval
	bo.Multiplier = 2
	bo.RandomizationFactor = 0

	var resp *http.Response
	operation := func() error {
		req, err := http.NewRequest("GET", url, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("リクエスト作成エラー: %w", err))
		}
		req.SetBasicAuth(j.username, j.apiToken)

		r, err := j.client.Do(req)
		if err != nil {
			return fmt.Errorf("リクエスト送信エラー: %w", err)
		}

		switch r.StatusCode {
		case http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			r.Body.Close()
			return fmt.Errorf("一時的なHTTPエラー: %d", r.StatusCode)
		}

		resp = r
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithMaxRetries(bo, downloadMaxRetries)); err != nil {
		return nil, err
	}

	return resp, nil
}

// sanitizeFilename はファイル名をローカル保存できる形に整えます
func sanitizeFilename(filename string) string {
	// Jiraのエクスポートに混入する狭い非改行スペースを通常のスペースに置き換える
	sanitized := strings.ReplaceAll(filename, " ", " ")
	sanitized = strings.TrimSpace(sanitized)
	return filepath.Base(sanitized)
}
