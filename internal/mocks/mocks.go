// File: internal/mocks/mocks.go
package mocks

import (
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/xkilldash9x/facespatch/internal/config"
	"github.com/xkilldash9x/facespatch/internal/partial"
)

// -- Config Mock --

// MockConfig mocks the config.Interface.
type MockConfig struct {
	mock.Mock
}

// --- Getters ---

func (m *MockConfig) Logger() config.LoggerConfig {
	args := m.Called()
	return args.Get(0).(config.LoggerConfig)
}

func (m *MockConfig) Partial() config.PartialConfig {
	args := m.Called()
	return args.Get(0).(config.PartialConfig)
}

func (m *MockConfig) Network() config.NetworkConfig {
	args := m.Called()
	return args.Get(0).(config.NetworkConfig)
}

// --- Setters ---

func (m *MockConfig) SetPartialNoPortletEnv(b bool) {
	m.Called(b)
}

func (m *MockConfig) SetPartialPreserveFocus(b bool) {
	m.Called(b)
}

func (m *MockConfig) SetPartialNamespace(ns string) {
	m.Called(ns)
}

func (m *MockConfig) SetNetworkTimeout(d time.Duration) {
	m.Called(d)
}

// -- Event Sink Mock --

// MockEventSink mocks partial.EventSink.
type MockEventSink struct {
	mock.Mock
}

func (m *MockEventSink) Success() {
	m.Called()
}

func (m *MockEventSink) Error(err *partial.Error) {
	m.Called(err)
}

func (m *MockEventSink) ServerError(name, message string) {
	m.Called(name, message)
}

// -- Script Evaluator Mock --

// MockScriptEvaluator mocks dom.ScriptEvaluator.
type MockScriptEvaluator struct {
	mock.Mock
}

func (m *MockScriptEvaluator) Evaluate(script string) error {
	args := m.Called(script)
	return args.Error(0)
}

var (
	_ config.Interface  = (*MockConfig)(nil)
	_ partial.EventSink = (*MockEventSink)(nil)
)
