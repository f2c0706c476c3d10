package errors_test

import (
	"fmt"
	"testing"

	pipeerrors "github.com/fractalworks/agentpipe/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestPluginExecutionError_Kind(t *testing.T) {
	err := pipeerrors.NewPluginExecutionError("BoomPlugin", "THINK", fmt.Errorf("boom"))
	assert.Equal(t, pipeerrors.KindPluginExecution, err.Kind())
	assert.Contains(t, err.Error(), "BoomPlugin")
	assert.Contains(t, err.Error(), "THINK")
}

func TestToolExecutionError_Kind(t *testing.T) {
	err := pipeerrors.NewToolExecutionError("calc", fmt.Errorf("bad params"))
	assert.Equal(t, pipeerrors.KindToolExecution, err.Kind())
	assert.Contains(t, err.Error(), "calc")
}

func TestResourceError_Kind(t *testing.T) {
	err := pipeerrors.NewResourceError("memory", "initialize", fmt.Errorf("unreachable"))
	assert.Equal(t, pipeerrors.KindResource, err.Kind())
}

func TestCircuitBreakerTripped_Kind(t *testing.T) {
	err := pipeerrors.NewCircuitBreakerTripped("reload.memory", fmt.Errorf("breaker open"))
	assert.Equal(t, pipeerrors.KindCircuitBreaker, err.Kind())
}

func TestAllTaxonomyErrorsImplementClassified(t *testing.T) {
	var errs []pipeerrors.Classified
	errs = append(errs,
		pipeerrors.NewValidationError("op", fmt.Errorf("x")),
		pipeerrors.NewPluginExecutionError("p", "s", fmt.Errorf("x")),
		pipeerrors.NewToolExecutionError("t", fmt.Errorf("x")),
		pipeerrors.NewResourceError("r", "op", fmt.Errorf("x")),
		pipeerrors.NewPipelineError("op", fmt.Errorf("x")),
		pipeerrors.NewCircuitBreakerTripped("op", fmt.Errorf("x")),
		pipeerrors.NewSandboxError("op", fmt.Errorf("x")),
	)
	for _, e := range errs {
		assert.NotEmpty(t, e.Kind())
		assert.NotEmpty(t, e.Error())
	}
}
