package license

import (
	"context"
	"encoding/json"

	"github.com/stretchr/testify/mock"

	"github.com/edvin/licensegate/internal/cryptlex"
)

type mockUpstream struct {
	mock.Mock
}

func (m *mockUpstream) Authenticate(ctx context.Context, creds cryptlex.Credentials) (string, error) {
	args := m.Called(ctx, creds)
	return args.String(0), args.Error(1)
}

func (m *mockUpstream) CreateLicense(ctx context.Context, token, productID string, fields map[string]any) (json.RawMessage, error) {
	args := m.Called(ctx, token, productID, fields)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(json.RawMessage), args.Error(1)
}

func (m *mockUpstream) CreateOfflineActivation(ctx context.Context, token, licenseID, offlineRequest string, responseValidity int64) ([]byte, error) {
	args := m.Called(ctx, token, licenseID, offlineRequest, responseValidity)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

type mockCreds struct {
	mock.Mock
}

func (m *mockCreds) DefaultProductID(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *mockCreds) AccessToken(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *mockCreds) LicenseDefaults(ctx context.Context) (map[string]any, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]any), args.Error(1)
}
