package chatstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/damay/pkg/session"
)

func sampleLog() []session.Message {
	return []session.Message{
		session.NewUserMessage("Halo"),
		session.NewBotMessage("Hai!"),
	}
}

// exerciseStore runs the load/save/clear contract shared by all backends.
func exerciseStore(t *testing.T, s session.Store) {
	t.Helper()
	ctx := context.Background()

	msgs, ok, err := s.Load(ctx)
	require.NoError(t, err)
	require.False(t, ok)
	require.Empty(t, msgs)

	withPlaceholder := append(sampleLog(), session.Message{Role: session.RoleBot, Content: session.PlaceholderContent})
	require.NoError(t, s.Save(ctx, withPlaceholder))

	msgs, ok, err = s.Load(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, sampleLog(), msgs)

	require.NoError(t, s.Save(ctx, []session.Message{}))
	msgs, ok, err = s.Load(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Empty(t, msgs)

	require.NoError(t, s.Save(ctx, sampleLog()))
	require.NoError(t, s.Clear(ctx))
	_, ok, err = s.Load(ctx)
	require.NoError(t, err)
	require.False(t, ok)

	// clearing twice is fine
	require.NoError(t, s.Clear(ctx))
}

func TestMemoryStore_Contract(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestMemoryStore_LoadReturnsCopy(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, sampleLog()))

	msgs, _, err := s.Load(ctx)
	require.NoError(t, err)
	msgs[0].Content = "changed"

	again, _, err := s.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, "Halo", again[0].Content)
}

func TestFileStore_Contract(t *testing.T) {
	s, err := NewFileStore(t.TempDir(), DefaultSessionKey)
	require.NoError(t, err)
	exerciseStore(t, s)
}

func TestFileStore_PathAndSanitizedKey(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir, "../chat history")
	require.NoError(t, err)
	require.Equal(t, dir, filepath.Dir(s.Path()))
	require.Equal(t, ".._chat_history.json", filepath.Base(s.Path()))

	require.NoError(t, s.Save(context.Background(), sampleLog()))
	_, err = os.Stat(s.Path())
	require.NoError(t, err)
}

func TestFileStore_CorruptFile(t *testing.T) {
	s, err := NewFileStore(t.TempDir(), DefaultSessionKey)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(s.Path(), []byte("{not json"), 0o644))

	_, _, err = s.Load(context.Background())
	require.Error(t, err)
}

func TestFileStore_Validation(t *testing.T) {
	_, err := NewFileStore("", DefaultSessionKey)
	require.Error(t, err)
	_, err = NewFileStore(t.TempDir(), "  ")
	require.Error(t, err)
}

func TestSQLiteStore_Contract(t *testing.T) {
	dsn, err := SQLiteDSNForFile(filepath.Join(t.TempDir(), "sessions.db"))
	require.NoError(t, err)

	s, err := NewSQLiteStore(dsn, DefaultSessionKey)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	exerciseStore(t, s)
}

func TestSQLiteStore_KeysAreIsolated(t *testing.T) {
	dsn, err := SQLiteDSNForFile(filepath.Join(t.TempDir(), "sessions.db"))
	require.NoError(t, err)

	a, err := NewSQLiteStore(dsn, "a")
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	b, err := NewSQLiteStore(dsn, "b")
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })

	ctx := context.Background()
	require.NoError(t, a.Save(ctx, sampleLog()))

	_, ok, err := b.Load(ctx)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, b.Save(ctx, []session.Message{session.NewUserMessage("other")}))
	require.NoError(t, a.Clear(ctx))

	msgs, ok, err := b.Load(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, msgs, 1)
}

func TestSQLiteDSNForFile_Empty(t *testing.T) {
	_, err := SQLiteDSNForFile("")
	require.Error(t, err)
}

func TestRedisStore_Contract(t *testing.T) {
	addr := os.Getenv("DAMAY_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("DAMAY_TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })

	key := "test-" + time.Now().Format("150405.000000000")
	s, err := NewRedisStore(client, key, time.Minute)
	require.NoError(t, err)
	require.Equal(t, "damay:session:"+key, s.Key())
	t.Cleanup(func() { _ = s.Clear(context.Background()) })

	exerciseStore(t, s)
}

func TestNewRedisStore_Validation(t *testing.T) {
	_, err := NewRedisStore(nil, DefaultSessionKey, 0)
	require.Error(t, err)

	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	t.Cleanup(func() { _ = client.Close() })
	_, err = NewRedisStore(client, "", 0)
	require.Error(t, err)
}

func TestOpen_Backends(t *testing.T) {
	ctx := context.Background()

	s, cleanup, err := Open(ctx, Settings{})
	require.NoError(t, err)
	cleanup()
	require.IsType(t, &MemoryStore{}, s)

	dir := t.TempDir()
	s, cleanup, err = Open(ctx, Settings{Backend: "FILE", Dir: dir})
	require.NoError(t, err)
	cleanup()
	fs, ok := s.(*FileStore)
	require.True(t, ok)
	require.Equal(t, filepath.Join(dir, DefaultSessionKey+".json"), fs.Path())

	s, cleanup, err = Open(ctx, Settings{Backend: BackendSQLite, DB: filepath.Join(dir, "nested", "damay.db")})
	require.NoError(t, err)
	t.Cleanup(cleanup)
	require.IsType(t, &SQLiteStore{}, s)
	exerciseStore(t, s)
}

func TestOpen_Errors(t *testing.T) {
	ctx := context.Background()

	_, cleanup, err := Open(ctx, Settings{Backend: "mongo"})
	require.Error(t, err)
	require.NotNil(t, cleanup)

	_, _, err = Open(ctx, Settings{Backend: BackendSQLite})
	require.Error(t, err)

	_, _, err = Open(ctx, Settings{Backend: BackendRedis})
	require.Error(t, err)

	_, _, err = Open(ctx, Settings{Backend: BackendFile})
	require.Error(t, err)
}
