package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/HamzaIsrar12/jira-to-taiga-migrator/api"
	"github.com/HamzaIsrar12/jira-to-taiga-migrator/config"
	"github.com/HamzaIsrar12/jira-to-taiga-migrator/services"
	"github.com/HamzaIsrar12/jira-to-taiga-migrator/utils"
)

func main() {
	// コマンドラインフラグの定義
	dryRun := flag.Bool("dry-run", false, "ドライランを強制する（環境変数の設定より優先）")
	help := flag.Bool("help", false, "ヘルプを表示する")

	// フラグのパース
	flag.Parse()

	// ヘルプフラグが指定された場合はヘルプを表示
	if *help {
		printHelp()
		return
	}

	// 開始時間の記録
	startTime := time.Now()

	// 設定の読み込み
	cfg, err := config.LoadConfig()
	if err != nil {
		utils.LogError("設定の読み込みに失敗しました: %v", err)
		os.Exit(1)
	}
	if *dryRun {
		cfg.DryRun = true
	}

	// ロガーの初期化（コンソール + ログファイル）
	if err := utils.InitLogger(cfg.LogFile); err != nil {
		utils.LogError("ロガーの初期化に失敗しました: %v", err)
		os.Exit(1)
	}
	defer utils.Sync()

	utils.LogInfo("Jira → Taiga 移行ツール (v1.0.0)")
	utils.LogInfo("設定: Dry Run=%v, Reset Statuses=%v, Download Attachments=%v",
		cfg.DryRun, cfg.ResetStatuses, cfg.DownloadAttachments)

	// Taigaへの認証
	taigaClient := api.NewTaigaClient(cfg.TaigaHost)
	if err := taigaClient.Auth(cfg.TaigaUsername, cfg.TaigaPassword); err != nil {
		utils.LogError("Taiga認証エラー: %v", err)
		os.Exit(1)
	}
	utils.LogInfo("Taigaに認証しました: %s", cfg.TaigaUsername)

	// プロジェクトへの接続
	project, err := taigaClient.GetProjectBySlug(cfg.ProjectSlug)
	if err != nil {
		utils.LogError("プロジェクト %s への接続に失敗しました: %v", cfg.ProjectSlug, err)
		os.Exit(1)
	}
	utils.LogInfo("プロジェクトに接続しました: %s (ID: %d)", project.Name, project.ID)

	// ユーザーキャッシュの構築
	memberships, err := taigaClient.ListMemberships(project.ID)
	if err != nil {
		utils.LogError("メンバーシップの取得に失敗しました: %v", err)
		os.Exit(1)
	}
	users := services.BuildUserResolver(taigaClient, memberships, cfg.UserMapping)

	// CSVの読み込み
	csvProc := services.NewCSVProcessor(cfg)
	records, err := csvProc.ReadJiraCSV()
	if err != nil {
		utils.LogError("CSVの読み込みに失敗しました: %v", err)
		os.Exit(1)
	}
	if len(records) == 0 {
		utils.LogError("処理する行がありません")
		os.Exit(1)
	}

	// ステータスの同期
	statuses := services.NewStatusSyncer(taigaClient, project.ID, project.UserStoryStatuses)
	statuses.Sync(services.DistinctStatuses(records), cfg.ResetStatuses, cfg.DryRun)

	// 移行の実行
	jiraClient := api.NewJiraClient(cfg.JiraUser, cfg.JiraToken, cfg.AttachmentsFolder)
	migration := services.NewMigrationService(cfg, taigaClient, jiraClient, users, statuses, project)
	stats := migration.Run(records)

	// 最終結果の表示
	utils.LogInfo("--- 最終結果 ---")
	utils.LogInfo("成功: %d", stats.Success)
	utils.LogInfo("失敗: %d", stats.Failed)

	elapsed := time.Since(startTime)
	utils.LogInfo("移行処理が完了しました。合計実行時間: %s", elapsed)
}

// ヘルプメッセージを表示する関数
func printHelp() {
	fmt.Printf(`
Jira → Taiga 移行ツール

使用方法:
  %s [オプション]

オプション:
  -dry-run            ドライランを強制する（リモートへの変更なし）
  -help               このヘルプを表示する

環境変数:
  TAIGA_HOST            Taiga ホストURL (必須)
  TAIGA_USERNAME        Taiga ユーザー名 (必須)
  TAIGA_PASSWORD        Taiga パスワード (必須)
  TAIGA_PROJECT_SLUG    Taiga プロジェクトスラッグ (必須)
  JIRA_CSV_FILENAME     JiraエクスポートCSVのパス (必須)
  JIRA_USERNAME         Jira ユーザー名（添付ダウンロード用）
  JIRA_API_TOKEN        Jira APIトークン（添付ダウンロード用）
  LOG_FILE              ログファイルのパス (デフォルト: migration.log)
  ATTACHMENTS_FOLDER    添付ファイルの一時保存先 (デフォルト: attachments)
  DRY_RUN               ドライラン (デフォルト: true)
  RESET_STATUSES        既存ステータスを削除してから同期する (デフォルト: false)
  DOWNLOAD_ATTACHMENTS  添付ファイルを移行する (デフォルト: false)
  USER_MAPPING          ユーザー名の手動対応表 "Jira名1:Taiga名1,Jira名2:Taiga名2"

例:
  # ドライランで内容を確認
  %s -dry-run

  # 本番実行（DRY_RUN=false を設定した上で）
  %s
`, os.Args[0], os.Args[0], os.Args[0])
}
