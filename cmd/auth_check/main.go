package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/HamzaIsrar12/jira-to-taiga-migrator/api"
	"github.com/HamzaIsrar12/jira-to-taiga-migrator/config"
	"github.com/HamzaIsrar12/jira-to-taiga-migrator/utils"
)

func main() {
	// ヘルプフラグの定義
	help := flag.Bool("help", false, "ヘルプを表示する")

	// フラグのパース
	flag.Parse()

	// ヘルプフラグが指定された場合はヘルプを表示
	if *help {
		printHelp()
		return
	}

	utils.LogInfo("Taiga認証確認ツール")

	// 設定の読み込み
	cfg, err := config.LoadConfig()
	if err != nil {
		utils.LogError("設定の読み込みに失敗しました: %v", err)
		os.Exit(1)
	}

	// Taigaクライアントの初期化と認証チェック
	taigaClient := api.NewTaigaClient(cfg.TaigaHost)

	utils.LogInfo("Taiga APIの認証を確認しています...")
	if err := taigaClient.Auth(cfg.TaigaUsername, cfg.TaigaPassword); err != nil {
		utils.LogError("Taiga認証エラー: %v", err)
		utils.LogError("認証情報を確認してください。")
		os.Exit(1)
	}
	utils.LogInfo("Taiga認証成功！ 接続先: %s", cfg.TaigaHost)

	// プロジェクトの確認
	project, err := taigaClient.GetProjectBySlug(cfg.ProjectSlug)
	if err != nil {
		utils.LogError("プロジェクト %s が見つかりません: %v", cfg.ProjectSlug, err)
		os.Exit(1)
	}

	utils.LogInfo("プロジェクト確認成功: %s (ID: %d)", project.Name, project.ID)
	utils.LogInfo("ステータス: %d 件, ロール: %d 件, ポイント定義: %d 件",
		len(project.UserStoryStatuses), len(project.Roles), len(project.Points))
}

// ヘルプメッセージを表示する関数
func printHelp() {
	fmt.Printf(`
Taiga認証確認ツール

使用方法:
  %s [オプション]

オプション:
  -help               このヘルプを表示する

環境変数:
  TAIGA_HOST          Taiga ホストURL (必須)
  TAIGA_USERNAME      Taiga ユーザー名 (必須)
  TAIGA_PASSWORD      Taiga パスワード (必須)
  TAIGA_PROJECT_SLUG  Taiga プロジェクトスラッグ (必須)

説明:
  このツールはTaiga APIの認証情報とプロジェクトスラッグが正しく設定されて
  いるかを確認します。認証が成功すれば、移行ツールも正常に動作する可能性が
  高いです。
`, os.Args[0])
}
