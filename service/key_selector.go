package service

import "context"

// KeySelector is the host hook that lets the user pick a credential.
type KeySelector interface {
	HasSelectedKey(ctx context.Context) (bool, error)
	OpenSelectKey(ctx context.Context) error
}

// EnvKeySelector reports the key configured in the environment. There is no dialog to open
// on a server, so OpenSelectKey only returns.
type EnvKeySelector struct {
	APIKey string
}

func (s EnvKeySelector) HasSelectedKey(ctx context.Context) (bool, error) {
	return s.APIKey != "", nil
}

func (s EnvKeySelector) OpenSelectKey(ctx context.Context) error {
	return nil
}
