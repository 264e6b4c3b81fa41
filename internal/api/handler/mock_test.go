package handler

import (
	"context"
	"encoding/json"

	"github.com/stretchr/testify/mock"
)

type mockLicenseService struct {
	mock.Mock
}

func (m *mockLicenseService) Provision(ctx context.Context, body map[string]any) (json.RawMessage, error) {
	args := m.Called(ctx, body)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(json.RawMessage), args.Error(1)
}

func (m *mockLicenseService) OfflineActivation(ctx context.Context, body map[string]any) ([]byte, error) {
	args := m.Called(ctx, body)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}
