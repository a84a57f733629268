package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/HamzaIsrar12/jira-to-taiga-migrator/config"
	"github.com/HamzaIsrar12/jira-to-taiga-migrator/services"
	"github.com/HamzaIsrar12/jira-to-taiga-migrator/utils"
)

func main() {
	// コマンドラインフラグの定義
	csvFile := flag.String("csv", "", "CSVファイルのパス（環境変数の設定より優先）")
	help := flag.Bool("help", false, "ヘルプを表示する")

	// フラグのパース
	flag.Parse()

	// ヘルプフラグが指定された場合はヘルプを表示
	if *help {
		printHelp()
		return
	}

	utils.LogInfo("Jira CSVプレビューツール")

	// 設定の読み込み
	cfg, err := config.LoadConfig()
	if err != nil {
		utils.LogError("設定の読み込みに失敗しました: %v", err)
		os.Exit(1)
	}
	if *csvFile != "" {
		cfg.CSVFile = *csvFile
	}

	// CSVの読み込み
	csvProc := services.NewCSVProcessor(cfg)
	records, err := csvProc.ReadJiraCSV()
	if err != nil {
		utils.LogError("CSVの読み込みに失敗しました: %v", err)
		os.Exit(1)
	}

	// ステータス・コメント・添付の集計
	statuses := services.DistinctStatuses(records)

	totalComments := 0
	totalAttachments := 0
	for _, record := range records {
		for _, key := range record.Headers {
			if record.Fields[key] == "" {
				continue
			}
			if strings.Contains(key, "Comment") {
				totalComments++
			}
			if strings.HasPrefix(key, "Attachment") {
				totalAttachments++
			}
		}
	}

	utils.LogInfo("行数: %d", len(records))
	utils.LogInfo("ステータス: %d 種類", len(statuses))
	for _, status := range statuses {
		utils.LogInfo("   %s (slug: %s)", status, services.Slugify(status))
	}
	utils.LogInfo("コメント: %d 件, 添付ファイル: %d 件", totalComments, totalAttachments)
}

// ヘルプメッセージを表示する関数
func printHelp() {
	fmt.Printf(`
Jira CSVプレビューツール

使用方法:
  %s [オプション]

オプション:
  -csv=PATH           読み込むCSVファイルのパスを指定する
  -help               このヘルプを表示する

環境変数:
  JIRA_CSV_FILENAME   JiraエクスポートCSVのパス

説明:
  このツールはリモートへ接続せずにCSVを解析し、行数・ステータスの種類・
  コメントと添付ファイルの件数を表示します。移行前の確認に使います。
`, os.Args[0])
}
