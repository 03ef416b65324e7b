// Code generated by MockGen from SearchRunner would normally live here;
// hand written to the same shape since mockgen is not run as part of this
// build (go:generate github.com/golang/mock/mockgen -destination
// mock_search.go -package orchestrator github.com/sarchlab/pite/orchestrator SearchRunner).
package orchestrator

import (
	"context"
	"reflect"

	"github.com/golang/mock/gomock"

	"github.com/sarchlab/pite/model"
)

// MockSearchRunner is a mock of the SearchRunner interface.
type MockSearchRunner struct {
	ctrl     *gomock.Controller
	recorder *MockSearchRunnerMockRecorder
}

// MockSearchRunnerMockRecorder is the mock recorder for MockSearchRunner.
type MockSearchRunnerMockRecorder struct {
	mock *MockSearchRunner
}

// NewMockSearchRunner creates a new mock instance.
func NewMockSearchRunner(ctrl *gomock.Controller) *MockSearchRunner {
	mock := &MockSearchRunner{ctrl: ctrl}
	mock.recorder = &MockSearchRunnerMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockSearchRunner) EXPECT() *MockSearchRunnerMockRecorder {
	return m.recorder
}

// Run mocks base method.
func (m *MockSearchRunner) Run(ctx context.Context, elist *model.ExperimentList) (*model.Mapping3, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Run", ctx, elist)
	ret0, _ := ret[0].(*model.Mapping3)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// Run indicates an expected call of Run.
func (mr *MockSearchRunnerMockRecorder) Run(ctx, elist interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Run",
		reflect.TypeOf((*MockSearchRunner)(nil).Run), ctx, elist)
}
