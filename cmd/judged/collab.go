package main

import (
	"context"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/programme-lv/judgehost/api"
	"github.com/programme-lv/judgehost/internal/judge"
	"github.com/programme-lv/judgehost/internal/report"
)

// probeCompilers resolves toolchain versions from the server's
// language table by running each entry's version command. Failures are
// logged and the language is simply absent from the status heartbeat.
func probeCompilers(ctx context.Context, langs map[string]api.LanguageConfig) map[string]string {
	versions := make(map[string]string, len(langs))
	for name, lang := range langs {
		if lang.Version == "" {
			continue
		}
		cmdCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		out, err := exec.CommandContext(cmdCtx, "sh", "-c", lang.Version).Output()
		cancel()
		if err != nil {
			slog.Warn("failed to probe compiler version",
				slog.String("lang", name), slog.Any("error", err))
			continue
		}
		if line, _, _ := strings.Cut(strings.TrimSpace(string(out)), "\n"); line != "" {
			versions[name] = line
		}
	}
	return versions
}

// runner returns the execution backend wired into this build. The
// sandboxed executor is deployed separately; a host built without one
// fails every task with a system error instead of judging unsafely.
func runner() judge.Runner {
	return noRunner{}
}

type noRunner struct{}

func (noRunner) Run(ctx context.Context, task *api.Task, dataDir string, rep *report.TaskReporter) (api.Result, error) {
	return api.Result{}, &judge.SystemError{Msg: "no execution backend configured on this host"}
}
