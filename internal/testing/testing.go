// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"testing"

	"github.com/desertthunder/usher/internal/providers"
)

// MockClient is a test double for [providers.Client]
type MockClient struct{}

func (m *MockClient) Open(ctx context.Context) error { return nil }
func (m *MockClient) Close() error                   { return nil }

func (m *MockClient) TestConnection(ctx context.Context) bool { return true }

func (m *MockClient) Capabilities() providers.CapabilitySet {
	return providers.NewCapabilitySet(providers.CapCreateUser, providers.CapDeleteUser)
}

func (m *MockClient) Libraries(ctx context.Context) ([]providers.Library, error) {
	return []providers.Library{}, nil
}

func (m *MockClient) CreateUser(ctx context.Context, spec providers.UserSpec) (*providers.ExternalUser, error) {
	return &providers.ExternalUser{ExternalID: "mock-" + spec.Username, Username: spec.Username}, nil
}

func (m *MockClient) DeleteUser(ctx context.Context, externalID string) (bool, error) {
	return true, nil
}

func (m *MockClient) SetLibraryAccess(ctx context.Context, externalID string, libraryIDs []string) (bool, error) {
	return true, nil
}

func (m *MockClient) SetUserEnabled(ctx context.Context, externalID string, enabled bool) (bool, error) {
	return true, nil
}

func (m *MockClient) UpdatePermissions(ctx context.Context, externalID string, perms providers.Permissions) (bool, error) {
	return true, nil
}

func (m *MockClient) ListUsers(ctx context.Context) ([]providers.ExternalUser, error) {
	return []providers.ExternalUser{}, nil
}

func (m *MockClient) Name() string { return "mock" }

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

func MustGetwd(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	return wd
}

func MustChdir(t *testing.T, dir string) {
	t.Helper()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Failed to change directory to %s: %v", dir, err)
	}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func AssertDirExists(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		t.Errorf("Directory does not exist: %s", path)
		return
	}
	if !info.IsDir() {
		t.Errorf("Path is not a directory: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
