// internal/browser/jsexec/runtime.go
package jsexec

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/xkilldash9x/facespatch/internal/browser/dom"
	"github.com/xkilldash9x/facespatch/internal/browser/jsbind"
)

// DefaultTimeout is the fallback execution timeout if the context has no deadline.
const DefaultTimeout = 30 * time.Second

// ScriptError reports a script that threw or was interrupted. Callers that
// must surface script failures to their own caller match it with errors.As.
type ScriptError struct {
	Source string
	Err    error
}

func (e *ScriptError) Error() string {
	src := e.Source
	if len(src) > 60 {
		src = src[:60] + "..."
	}
	return fmt.Sprintf("script %q failed: %v", src, e.Err)
}

func (e *ScriptError) Unwrap() error { return e.Err }

// Runtime provides a persistent environment for executing JavaScript using Goja,
// integrated with a document via the DOMBridge.
type Runtime struct {
	vm        *goja.Runtime
	bridge    *jsbind.DOMBridge
	logger    *zap.Logger
	timeout   time.Duration
	execMutex sync.Mutex
}

// NewRuntime creates a runtime bound to doc and registers itself as the
// document's script evaluator.
func NewRuntime(doc *dom.Document, timeout time.Duration, logger *zap.Logger) *Runtime {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	log := logger.Named("jsexec")
	vm := goja.New()
	r := &Runtime{
		vm:      vm,
		bridge:  jsbind.NewDOMBridge(vm, doc, log),
		logger:  log,
		timeout: timeout,
	}
	doc.SetScriptEvaluator(r)
	return r
}

// GetBridge returns the associated DOMBridge.
func (r *Runtime) GetBridge() *jsbind.DOMBridge {
	return r.bridge
}

// Evaluate runs script for its side effects under the runtime's timeout.
func (r *Runtime) Evaluate(script string) error {
	_, err := r.ExecuteScript(context.Background(), script)
	return err
}

// ExecuteScript runs a JavaScript snippet in the persistent VM and exports
// its completion value. Any failure is returned as a *ScriptError.
func (r *Runtime) ExecuteScript(ctx context.Context, script string) (interface{}, error) {
	r.execMutex.Lock()
	defer r.execMutex.Unlock()

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	done := make(chan struct{})
	watcherExited := make(chan struct{})
	go func() {
		defer close(watcherExited)
		select {
		case <-ctx.Done():
			r.vm.Interrupt(ctx.Err())
		case <-done:
		}
	}()

	result, err := r.vm.RunString(script)
	close(done)
	<-watcherExited
	r.vm.ClearInterrupt()

	if err != nil {
		var interrupted *goja.InterruptedError
		var exception *goja.Exception
		switch {
		case errors.As(err, &interrupted):
			err = fmt.Errorf("javascript execution interrupted: %w", ctx.Err())
		case errors.As(err, &exception):
			err = fmt.Errorf("javascript exception: %s", strings.TrimSpace(exception.Value().String()))
		default:
			err = fmt.Errorf("javascript error: %w", err)
		}
		r.logger.Debug("Script failed", zap.Error(err))
		return nil, &ScriptError{Source: script, Err: err}
	}
	if result == nil {
		return nil, nil
	}
	return result.Export(), nil
}
