package tiger

import (
	"context"
	"errors"
	"io/fs"
	"os"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Task produces Output from Inputs. Tasks follow make semantics: a task is
// skipped when its output exists and is at least as new as every input.
type Task struct {
	Name   string
	Inputs []string
	Output string
	Run    func(ctx context.Context) error
}

// TaskResult records what happened to one task.
type TaskResult struct {
	Name    string `json:"name"`
	Output  string `json:"output"`
	Skipped bool   `json:"skipped"`
}

// upToDate reports whether output exists and is no older than each input.
// A missing input makes the output stale.
func upToDate(output string, inputs []string) (bool, error) {
	out, err := os.Stat(output)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, eris.Wrapf(err, "tiger: stat %s", output)
	}
	for _, in := range inputs {
		info, err := os.Stat(in)
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		if err != nil {
			return false, eris.Wrapf(err, "tiger: stat %s", in)
		}
		if info.ModTime().After(out.ModTime()) {
			return false, nil
		}
	}
	return true, nil
}

// RunTasks runs tasks in order, skipping those already up to date unless
// force is set. It stops at the first failure.
func RunTasks(ctx context.Context, tasks []Task, force bool) ([]TaskResult, error) {
	log := zap.L().With(zap.String("component", "tiger.tasks"))

	results := make([]TaskResult, 0, len(tasks))
	for _, t := range tasks {
		if err := ctx.Err(); err != nil {
			return results, eris.Wrap(err, "tiger: cancelled")
		}

		if !force {
			fresh, err := upToDate(t.Output, t.Inputs)
			if err != nil {
				return results, err
			}
			if fresh {
				log.Debug("up to date", zap.String("task", t.Name), zap.String("output", t.Output))
				results = append(results, TaskResult{Name: t.Name, Output: t.Output, Skipped: true})
				continue
			}
		}

		log.Info("running task", zap.String("task", t.Name), zap.String("output", t.Output))
		if err := t.Run(ctx); err != nil {
			return results, eris.Wrapf(err, "tiger: task %s", t.Name)
		}
		results = append(results, TaskResult{Name: t.Name, Output: t.Output})
	}
	return results, nil
}
