package checks

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"

	"jaybrain/internal/logging"
)

// LoadCustom turns user-authored check scripts into Checks. Each *.go file
// in dir is a script (no package clause) that defines
//
//	func Run() (bool, string)
//
// returning (triggered, message). Scripts may use the standard library. A
// fresh interpreter is built per evaluation so one run cannot poison the
// next.
func LoadCustom(dir string, window time.Duration) ([]Check, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read checks directory: %w", err)
	}

	var out []Check
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".go") {
			continue
		}
		path := filepath.Join(dir, name)
		checkName := "custom_" + strings.TrimSuffix(name, ".go")

		out = append(out, Check{
			Name:        checkName,
			Description: fmt.Sprintf("User check script %s", name),
			Window:      window,
			Run: func(ctx context.Context, _ Deps) (Result, error) {
				return runScript(ctx, path)
			},
		})
		logging.Checks("Loaded custom check %s", checkName)
	}
	return out, nil
}

func runScript(ctx context.Context, path string) (Result, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return Result{}, fmt.Errorf("failed to read check script: %w", err)
	}

	i := interp.New(interp.Options{})
	if err := i.Use(stdlib.Symbols); err != nil {
		return Result{}, fmt.Errorf("failed to prepare interpreter: %w", err)
	}

	done := make(chan struct{})
	var result Result
	var runErr error
	go func() {
		defer close(done)
		defer func() {
			if r := recover(); r != nil {
				runErr = fmt.Errorf("check script panicked: %v", r)
			}
		}()

		if _, err := i.Eval(string(src)); err != nil {
			runErr = fmt.Errorf("check script failed to evaluate: %w", err)
			return
		}
		v, err := i.Eval("Run")
		if err != nil {
			runErr = fmt.Errorf("check script has no Run function: %w", err)
			return
		}
		fn, ok := v.Interface().(func() (bool, string))
		if !ok {
			runErr = fmt.Errorf("Run must have signature func() (bool, string)")
			return
		}
		triggered, message := fn()
		result = Result{Triggered: triggered, Message: message}
	}()

	select {
	case <-ctx.Done():
		// The interpreter goroutine is abandoned; scripts are expected to be
		// short and side-effect free.
		return Result{}, ctx.Err()
	case <-done:
		return result, runErr
	}
}
