package fs_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/roamly/authkit/client"
	"github.com/roamly/authkit/client/stores/fs"
)

var _ client.CredentialCache = (*fs.FSCredentialStore)(nil)

func tempStore(t *testing.T) (*fs.FSCredentialStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "credentials.json")
	store, err := fs.NewFSCredentialStore(path, "")
	if err != nil {
		t.Fatalf("NewFSCredentialStore: %v", err)
	}
	return store, path
}

func testCredential() *client.Credential {
	return &client.Credential{
		Token:     "token-value",
		UserID:    "user-1",
		ExpiresAt: time.Now().Add(time.Hour).Truncate(time.Second),
	}
}

func TestSetGetRemove(t *testing.T) {
	store, _ := tempStore(t)

	got, err := store.GetCredential("https://api.example.com")
	if err != nil || got != nil {
		t.Fatalf("empty store Get = %v, %v; want nil, nil", got, err)
	}

	cred := testCredential()
	if err := store.SetCredential("https://api.example.com", cred); err != nil {
		t.Fatalf("SetCredential: %v", err)
	}

	got, err = store.GetCredential("https://api.example.com")
	if err != nil {
		t.Fatalf("GetCredential: %v", err)
	}
	if got == nil || got.Token != cred.Token {
		t.Errorf("got %+v, want stored credential", got)
	}

	if err := store.RemoveCredential("https://api.example.com"); err != nil {
		t.Fatalf("RemoveCredential: %v", err)
	}
	got, _ = store.GetCredential("https://api.example.com")
	if got != nil {
		t.Error("credential should be gone after removal")
	}
}

func TestKeysNormalizedToSchemeAndHost(t *testing.T) {
	store, _ := tempStore(t)

	if err := store.SetCredential("https://api.example.com/some/path?x=1", testCredential()); err != nil {
		t.Fatalf("SetCredential: %v", err)
	}
	got, err := store.GetCredential("https://api.example.com")
	if err != nil || got == nil {
		t.Errorf("lookup by bare host failed: %v, %v", got, err)
	}

	servers, err := store.ListServers()
	if err != nil {
		t.Fatalf("ListServers: %v", err)
	}
	if len(servers) != 1 || servers[0] != "https://api.example.com" {
		t.Errorf("servers = %v, want the normalized key", servers)
	}
}

func TestPersistsAcrossReopen(t *testing.T) {
	store, path := tempStore(t)
	cred := testCredential()
	if err := store.SetCredential("https://api.example.com", cred); err != nil {
		t.Fatalf("SetCredential: %v", err)
	}

	reopened, err := fs.NewFSCredentialStore(path, "")
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	got, err := reopened.GetCredential("https://api.example.com")
	if err != nil {
		t.Fatalf("GetCredential: %v", err)
	}
	if got == nil || got.Token != cred.Token || !got.ExpiresAt.Equal(cred.ExpiresAt) {
		t.Errorf("reopened store returned %+v, want the saved credential", got)
	}
}

func TestFilePermissions(t *testing.T) {
	store, path := tempStore(t)
	if err := store.SetCredential("https://api.example.com", testCredential()); err != nil {
		t.Fatalf("SetCredential: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("credentials file mode = %o, want 0600", perm)
	}
}

func TestCorruptFileRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	if err := os.WriteFile(path, []byte("not json"), 0600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := fs.NewFSCredentialStore(path, ""); err == nil {
		t.Error("expected an error for a corrupt credentials file")
	}
}
