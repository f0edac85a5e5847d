package task

import (
	"context"
	"fmt"
	"sort"

	"bhds/internal/config"
)

// Task is the common capability every registered task variant implements.
type Task interface {
	Run(ctx context.Context) error
}

type taskFunc func(ctx context.Context) error

func (f taskFunc) Run(ctx context.Context) error {
	return f(ctx)
}

// Factory builds a task variant from its configuration.
type Factory func(cfg *config.Config) (Task, error)

// registry is the closed set of task variants, selected by the config's
// task name at startup. No reflection, just an explicit mapping.
var registry = map[string]Factory{
	"aws_download": func(cfg *config.Config) (Task, error) {
		dl, err := NewDownloadTask(cfg)
		if err != nil {
			return nil, err
		}
		return taskFunc(func(ctx context.Context) error {
			_, err := dl.Run(ctx)
			return err
		}), nil
	},
	"failed_files": func(cfg *config.Config) (Task, error) {
		return NewFailedFilesTask(cfg), nil
	},
}

// New resolves the configured task name to its variant.
func New(cfg *config.Config) (Task, error) {
	factory, ok := registry[cfg.Task]
	if !ok {
		return nil, fmt.Errorf("unknown task %q (known: %v)", cfg.Task, Names())
	}
	return factory(cfg)
}

// Names lists the registered task names, sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
