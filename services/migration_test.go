package services

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HamzaIsrar12/jira-to-taiga-migrator/api"
	"github.com/HamzaIsrar12/jira-to-taiga-migrator/config"
	"github.com/HamzaIsrar12/jira-to-taiga-migrator/models"
)

func init() {
	// テストではレート制限対策の待機を行わない
	creationPause = 0
}

type createdStory struct {
	subject     string
	description string
	statusID    int
	assigneeID  int
}

type pointCall struct {
	storyID int
	roleID  int
	pointID int
}

type fakeTaiga struct {
	calls     int
	nextID    int
	stories   []createdStory
	comments  map[int][]string
	points    []pointCall
	attached  []string
	createErr map[string]error
	attachErr error
}

func newFakeTaiga() *fakeTaiga {
	return &fakeTaiga{comments: make(map[int][]string)}
}

func (f *fakeTaiga) CreateUserStory(projectID int, subject, description string, statusID, assigneeID int) (*api.UserStory, error) {
	f.calls++
	if err := f.createErr[subject]; err != nil {
		return nil, err
	}
	f.nextID++
	f.stories = append(f.stories, createdStory{
		subject:     subject,
		description: description,
		statusID:    statusID,
		assigneeID:  assigneeID,
	})
	return &api.UserStory{ID: f.nextID, Subject: subject, Version: 1}, nil
}

func (f *fakeTaiga) UpdatePoints(story *api.UserStory, roleID, pointID int) error {
	f.calls++
	f.points = append(f.points, pointCall{storyID: story.ID, roleID: roleID, pointID: pointID})
	return nil
}

func (f *fakeTaiga) AddComment(story *api.UserStory, comment string) error {
	f.calls++
	f.comments[story.ID] = append(f.comments[story.ID], comment)
	return nil
}

func (f *fakeTaiga) AttachFile(projectID, storyID int, filePath string) error {
	f.calls++
	if f.attachErr != nil {
		return f.attachErr
	}
	f.attached = append(f.attached, filePath)
	return nil
}

type fakeFetcher struct {
	dir       string
	requested []string
	err       error
}

func (f *fakeFetcher) DownloadAttachment(url, filename string) (string, error) {
	f.requested = append(f.requested, url)
	if f.err != nil {
		return "", f.err
	}
	path := filepath.Join(f.dir, filename)
	if err := os.WriteFile(path, []byte("data"), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

func record(pairs ...string) models.CSVRecord {
	rec := models.CSVRecord{Fields: make(map[string]string)}
	for i := 0; i+1 < len(pairs); i += 2 {
		rec.Headers = append(rec.Headers, pairs[i])
		rec.Fields[pairs[i]] = pairs[i+1]
	}
	return rec
}

func newTestMigration(t *testing.T, cfg *config.Config, taiga *fakeTaiga, fetcher *fakeFetcher) *MigrationService {
	t.Helper()

	statuses := NewStatusSyncer(&fakeStatusAPI{}, 1, []api.UserStoryStatus{
		{ID: 42, Name: "To Do", Slug: "to-do"},
	})
	statuses.Sync([]string{"To Do"}, false, false)

	users := BuildUserResolver(
		&fakeMembershipAPI{users: map[int]*api.User{1: {ID: 1, Username: "jdoe"}}},
		[]api.Membership{{UserID: 1, FullName: "John Doe"}},
		cfg.UserMapping,
	)

	project := &api.Project{
		ID:    1,
		Name:  "Test Project",
		Roles: []api.Role{{ID: 3, Name: "UX"}},
		Points: []api.Point{
			{ID: 9, Name: "5", Value: json.RawMessage("5")},
			{ID: 10, Name: "5.0", Value: json.RawMessage("5.0")},
		},
	}

	return NewMigrationService(cfg, taiga, fetcher, users, statuses, project)
}

func TestProcessRecordCreated(t *testing.T) {
	taiga := newFakeTaiga()
	m := newTestMigration(t, &config.Config{}, taiga, &fakeFetcher{})

	rec := record(
		"Summary", "Fix login",
		"Status", "To Do",
		"Assignee", "John Doe",
		"Description", "see *this*",
	)

	outcome, err := m.ProcessRecord(rec)
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeCreated, outcome)

	require.Len(t, taiga.stories, 1)
	story := taiga.stories[0]
	assert.Equal(t, "Fix login", story.subject)
	assert.Equal(t, 42, story.statusID)
	assert.Equal(t, 1, story.assigneeID)
	assert.Contains(t, story.description, "<strong>this</strong>")
}

func TestProcessRecordUnresolvedStatusAndAssignee(t *testing.T) {
	taiga := newFakeTaiga()
	m := newTestMigration(t, &config.Config{}, taiga, &fakeFetcher{})

	rec := record(
		"Summary", "Orphan",
		"Status", "Unknown Status",
		"Assignee", "Stranger",
	)

	outcome, err := m.ProcessRecord(rec)
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeCreated, outcome)

	// 解決できないステータスと担当者は未設定で作成される
	require.Len(t, taiga.stories, 1)
	assert.Zero(t, taiga.stories[0].statusID)
	assert.Zero(t, taiga.stories[0].assigneeID)
}

func TestProcessRecordDryRun(t *testing.T) {
	taiga := newFakeTaiga()
	m := newTestMigration(t, &config.Config{DryRun: true}, taiga, &fakeFetcher{})

	rec := record(
		"Summary", "Fix login",
		"Status", "To Do",
		"Comment", "d;a;note",
		"Attachment", "2021;jdoe;file.txt;https://jira/file.txt",
	)

	outcome, err := m.ProcessRecord(rec)
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeSkippedDryRun, outcome)

	// ドライランではリモート呼び出しを一切行わない
	assert.Zero(t, taiga.calls)

	// 成功にも失敗にも数えない
	stats := m.Run([]models.CSVRecord{rec, rec})
	assert.Equal(t, models.MigrationStats{Success: 0, Failed: 0}, stats)
	assert.Zero(t, taiga.calls)
}

func TestRunBatchResilience(t *testing.T) {
	taiga := newFakeTaiga()
	taiga.createErr = map[string]error{"Second": fmt.Errorf("server error")}
	m := newTestMigration(t, &config.Config{}, taiga, &fakeFetcher{})

	records := []models.CSVRecord{
		record("Summary", "First"),
		record("Summary", "Second"),
		record("Summary", "Third"),
	}

	stats := m.Run(records)

	// 途中の失敗でバッチは止まらず、失敗件数だけが増える
	assert.Equal(t, models.MigrationStats{Success: 2, Failed: 1}, stats)
	require.Len(t, taiga.stories, 2)
	assert.Equal(t, "First", taiga.stories[0].subject)
	assert.Equal(t, "Third", taiga.stories[1].subject)
}

func TestProcessRecordComments(t *testing.T) {
	taiga := newFakeTaiga()
	m := newTestMigration(t, &config.Config{}, taiga, &fakeFetcher{})

	rec := record(
		"Summary", "Story",
		"Comment", "2021-01-01;jdoe;first comment",
		"Comment.1", "raw note without delimiters",
		"Comment.2", "",
	)

	outcome, err := m.ProcessRecord(rec)
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeCreated, outcome)

	// コメントはフィールドの出現順で追加され、形式不正は全体が本文になる
	assert.Equal(t, []string{"first comment", "raw note without delimiters"}, taiga.comments[1])
}

func TestProcessRecordPoints(t *testing.T) {
	taiga := newFakeTaiga()
	m := newTestMigration(t, &config.Config{}, taiga, &fakeFetcher{})

	rec := record(
		"Summary", "Estimated",
		"Custom field (Story point estimate)", "5",
	)

	_, err := m.ProcessRecord(rec)
	require.NoError(t, err)

	// "5" はポイント定義 "5" に一致し "5.0" には一致しない
	require.Len(t, taiga.points, 1)
	assert.Equal(t, pointCall{storyID: 1, roleID: 3, pointID: 9}, taiga.points[0])
}

func TestProcessRecordPointsNoMatch(t *testing.T) {
	taiga := newFakeTaiga()
	m := newTestMigration(t, &config.Config{}, taiga, &fakeFetcher{})

	rec := record(
		"Summary", "Estimated",
		"Custom field (Story point estimate)", "7",
	)

	_, err := m.ProcessRecord(rec)
	require.NoError(t, err)
	assert.Empty(t, taiga.points)
}

func TestProcessRecordAttachments(t *testing.T) {
	taiga := newFakeTaiga()
	fetcher := &fakeFetcher{dir: t.TempDir()}
	cfg := &config.Config{DownloadAttachments: true}
	m := newTestMigration(t, cfg, taiga, fetcher)

	rec := record(
		"Summary", "With files",
		"Attachment", "2021-01-01;jdoe;report.pdf;https://jira/report.pdf",
		"Attachment.1", "malformed descriptor",
	)

	outcome, err := m.ProcessRecord(rec)
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeCreated, outcome)

	// 形式不正の添付記述はスキップされる
	assert.Equal(t, []string{"https://jira/report.pdf"}, fetcher.requested)
	require.Len(t, taiga.attached, 1)

	// アップロード後にローカルファイルは削除される
	_, statErr := os.Stat(taiga.attached[0])
	assert.True(t, os.IsNotExist(statErr))
}

func TestProcessRecordAttachmentUploadFailure(t *testing.T) {
	taiga := newFakeTaiga()
	taiga.attachErr = fmt.Errorf("upload rejected")
	fetcher := &fakeFetcher{dir: t.TempDir()}
	cfg := &config.Config{DownloadAttachments: true}
	m := newTestMigration(t, cfg, taiga, fetcher)

	rec := record(
		"Summary", "With files",
		"Attachment", "2021-01-01;jdoe;report.pdf;https://jira/report.pdf",
	)

	outcome, err := m.ProcessRecord(rec)
	assert.Equal(t, models.OutcomeFailed, outcome)
	assert.Error(t, err)

	// 失敗時もローカルファイルは削除される
	_, statErr := os.Stat(filepath.Join(fetcher.dir, "report.pdf"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestProcessRecordDownloadFailureIsSkipped(t *testing.T) {
	taiga := newFakeTaiga()
	fetcher := &fakeFetcher{dir: t.TempDir(), err: fmt.Errorf("timeout")}
	cfg := &config.Config{DownloadAttachments: true}
	m := newTestMigration(t, cfg, taiga, fetcher)

	rec := record(
		"Summary", "With files",
		"Attachment", "2021-01-01;jdoe;report.pdf;https://jira/report.pdf",
	)

	// ダウンロード失敗は添付のスキップに留まり、レコードは成功する
	outcome, err := m.ProcessRecord(rec)
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeCreated, outcome)
	assert.Empty(t, taiga.attached)
}

func TestParseAttachment(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		filename string
		url      string
		ok       bool
	}{
		{
			name:     "標準形式",
			input:    "2021-01-01;jdoe;report.pdf;https://jira/report.pdf",
			filename: "report.pdf",
			url:      "https://jira/report.pdf",
			ok:       true,
		},
		{
			name:     "余分なセグメント",
			input:    "2021-01-01;jdoe;report.pdf;extra;https://jira/report.pdf",
			filename: "report.pdf",
			url:      "https://jira/report.pdf",
			ok:       true,
		},
		{
			name:  "セグメント不足",
			input: "a;b;c",
			ok:    false,
		},
		{
			name:  "区切りなし",
			input: "plain text",
			ok:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attachment, ok := parseAttachment(tt.input)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.filename, attachment.Filename)
				assert.Equal(t, tt.url, attachment.URL)
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "0123456789...", truncate("0123456789abcdef", 10))
}
