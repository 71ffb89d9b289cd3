package judge_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/programme-lv/judgehost/api"
	"github.com/programme-lv/judgehost/internal/judge"
	"github.com/programme-lv/judgehost/internal/report"
	"github.com/programme-lv/judgehost/internal/syncer"
	"github.com/stretchr/testify/require"
)

type memSender struct {
	mu   sync.Mutex
	msgs []api.ResultMsg
}

func (m *memSender) Send(msg any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.msgs = append(m.msgs, msg.(api.ResultMsg))
	return nil
}

type fakeData struct {
	dir    string
	err    error
	notice string
	synced []syncer.Source
}

func (f *fakeData) SyncProblem(ctx context.Context, src syncer.Source, files []api.FileInfo, progress func(msg string)) (string, error) {
	f.synced = append(f.synced, src)
	if f.notice != "" && progress != nil {
		progress(f.notice)
	}
	return f.dir, f.err
}

type fakeRunner struct {
	res api.Result
	err error
	dir string
}

func (f *fakeRunner) Run(ctx context.Context, task *api.Task, dataDir string, rep *report.TaskReporter) (api.Result, error) {
	f.dir = dataDir
	return f.res, f.err
}

func task() *api.Task {
	return &api.Task{
		RID:       "rid-1",
		DomainID:  "system",
		ProblemID: "1001",
		Lang:      "cc",
		Data:      []api.FileInfo{{Name: "1.in", Etag: `"e"`, LastModified: "lm"}},
	}
}

func newJudge(data judge.DataSource, runner judge.Runner, langs []string) *judge.Judge {
	return judge.New("oj.example.org", data, runner, langs, slog.New(slog.DiscardHandler))
}

func taskReporter(sender *memSender) *report.TaskReporter {
	return report.New(sender, false).Task("rid-1")
}

func terminal(t *testing.T, sender *memSender) api.ResultMsg {
	t.Helper()
	require.NotEmpty(t, sender.msgs)
	last := sender.msgs[len(sender.msgs)-1]
	require.Equal(t, api.KeyEnd, last.Key)
	// exactly one terminal message
	for _, m := range sender.msgs[:len(sender.msgs)-1] {
		require.Equal(t, api.KeyNext, m.Key)
	}
	return last
}

func TestSuccessfulTaskForwardsRunnerResult(t *testing.T) {
	score := int32(100)
	data := &fakeData{dir: "/cache/oj/system/1001"}
	runner := &fakeRunner{res: api.Result{Score: &score}}
	sender := &memSender{}

	newJudge(data, runner, nil).Handle(context.Background(), task(), taskReporter(sender))

	require.Equal(t, "/cache/oj/system/1001", runner.dir)
	require.Len(t, data.synced, 1)
	require.Equal(t, "oj.example.org", data.synced[0].Host)

	end := terminal(t, sender)
	require.NotNil(t, end.Score)
	require.Equal(t, int32(100), *end.Score)
}

func TestUnsupportedLanguageEndsWithSystemError(t *testing.T) {
	data := &fakeData{}
	sender := &memSender{}

	j := newJudge(data, &fakeRunner{}, []string{"py3"})
	j.Handle(context.Background(), task(), taskReporter(sender))

	// no sync attempted for a rejected language
	require.Empty(t, data.synced)

	end := terminal(t, sender)
	require.NotNil(t, end.Status)
	require.Equal(t, api.StatusSystemError, *end.Status)
	require.Contains(t, end.Message, "unsupported language")
}

func TestSyncFailureEndsTask(t *testing.T) {
	data := &fakeData{err: &syncer.FormatError{Source: "system/1001"}}
	sender := &memSender{}

	newJudge(data, &fakeRunner{}, nil).Handle(context.Background(), task(), taskReporter(sender))

	end := terminal(t, sender)
	require.NotNil(t, end.Status)
	require.Equal(t, api.StatusSystemError, *end.Status)
	require.Contains(t, end.Message, "system/1001")
}

func TestRunnerFailureEndsTask(t *testing.T) {
	data := &fakeData{}
	runner := &fakeRunner{err: errors.New("sandbox unavailable")}
	sender := &memSender{}

	newJudge(data, runner, nil).Handle(context.Background(), task(), taskReporter(sender))

	end := terminal(t, sender)
	require.Contains(t, end.Message, "sandbox unavailable")
}

func TestSyncProgressNoticeIsForwarded(t *testing.T) {
	data := &fakeData{notice: "Syncing testdata, please wait..."}
	sender := &memSender{}

	newJudge(data, &fakeRunner{}, nil).Handle(context.Background(), task(), taskReporter(sender))

	require.GreaterOrEqual(t, len(sender.msgs), 2)
	require.Equal(t, api.KeyNext, sender.msgs[0].Key)
	require.Equal(t, "Syncing testdata, please wait...", sender.msgs[0].Message)
	terminal(t, sender)
}
