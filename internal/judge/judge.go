// Package judge drives one dispatched task to completion: whitelist
// check, test-data sync, execution, and the guarantee that every task
// ends with exactly one terminal report. The sandboxed execution
// itself lives behind the Runner interface.
package judge

import (
	"context"
	"fmt"
	"log/slog"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/programme-lv/judgehost/api"
	"github.com/programme-lv/judgehost/internal/report"
	"github.com/programme-lv/judgehost/internal/syncer"
)

// SystemError marks a local misconfiguration, fatal for the task only
type SystemError struct {
	Msg string
}

func (e *SystemError) Error() string {
	return e.Msg
}

// DataSource materializes a problem's test data and returns the local
// directory holding it
type DataSource interface {
	SyncProblem(ctx context.Context, src syncer.Source, files []api.FileInfo, progress func(msg string)) (string, error)
}

// Runner executes the prepared task against the synced test data. It
// may stream per-case results through rep.Next and returns the final
// aggregate; the terminal report itself is sent by the Judge.
type Runner interface {
	Run(ctx context.Context, task *api.Task, dataDir string, rep *report.TaskReporter) (api.Result, error)
}

type Judge struct {
	host   string
	data   DataSource
	runner Runner
	langs  mapset.Set[string]
	logger *slog.Logger
}

// New builds the executor glue for one judge host. An empty
// allowedLangs means every server-announced language is accepted.
func New(host string, data DataSource, runner Runner, allowedLangs []string, logger *slog.Logger) *Judge {
	var langs mapset.Set[string]
	if len(allowedLangs) > 0 {
		langs = mapset.NewSet(allowedLangs...)
	}
	return &Judge{
		host:   host,
		data:   data,
		runner: runner,
		langs:  langs,
		logger: logger,
	}
}

// Handle implements session.Handler
func (j *Judge) Handle(ctx context.Context, task *api.Task, rep *report.TaskReporter) {
	res, err := j.judge(ctx, task, rep)
	if err != nil {
		j.logger.Warn("task failed",
			slog.String("rid", task.RID),
			slog.String("source", task.Source()),
			slog.Any("error", err))
		status := api.StatusSystemError
		if err := rep.End(api.Result{Status: &status, Message: err.Error()}); err != nil {
			j.logger.Error("failed to send terminal report",
				slog.String("rid", task.RID), slog.Any("error", err))
		}
		return
	}
	if err := rep.End(res); err != nil {
		j.logger.Error("failed to send terminal report",
			slog.String("rid", task.RID), slog.Any("error", err))
	}
}

func (j *Judge) judge(ctx context.Context, task *api.Task, rep *report.TaskReporter) (api.Result, error) {
	if j.langs != nil && !j.langs.Contains(task.Lang) {
		return api.Result{}, &SystemError{Msg: fmt.Sprintf("unsupported language: %s", task.Lang)}
	}

	src := syncer.Source{
		Host:      j.host,
		DomainID:  task.DomainID,
		ProblemID: task.ProblemID,
	}
	dir, err := j.data.SyncProblem(ctx, src, task.Data, func(msg string) {
		// advisory progress notice; a failed send never fails the task
		_ = rep.Next(api.Result{Message: msg})
	})
	if err != nil {
		return api.Result{}, err
	}

	return j.runner.Run(ctx, task, dir, rep)
}
