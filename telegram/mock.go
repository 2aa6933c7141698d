package telegram

import (
	"context"
)

// MockClient implements Client with function fields, for tests.
type MockClient struct {
	ResolveEntityFunc func(ctx context.Context, link string) (*Entity, error)
	ImportInviteFunc  func(ctx context.Context, hash string) error
	FullChannelFunc   func(ctx context.Context, peer int64) (*FullChannel, error)
	MessagesFunc      func(ctx context.Context, peer int64, offsetID, limit int) ([]Message, error)
	ProfilePhotoFunc  func(ctx context.Context, peer int64) ([]byte, error)
}

func (m *MockClient) ResolveEntity(ctx context.Context, link string) (*Entity, error) {
	return m.ResolveEntityFunc(ctx, link)
}

func (m *MockClient) ImportInvite(ctx context.Context, hash string) error {
	return m.ImportInviteFunc(ctx, hash)
}

func (m *MockClient) FullChannel(ctx context.Context, peer int64) (*FullChannel, error) {
	return m.FullChannelFunc(ctx, peer)
}

func (m *MockClient) Messages(ctx context.Context, peer int64, offsetID, limit int) ([]Message, error) {
	return m.MessagesFunc(ctx, peer, offsetID, limit)
}

func (m *MockClient) ProfilePhoto(ctx context.Context, peer int64) ([]byte, error) {
	return m.ProfilePhotoFunc(ctx, peer)
}
