package logging

import (
	"bytes"
	"compress/gzip"
	"io"
	"path/filepath"
	"sync"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const chunkSize = 600 * 1024

func chunk(b byte) []byte {
	return bytes.Repeat([]byte{b}, chunkSize)
}

func readAll(t *testing.T, fs afero.Fs, path string) []byte {
	t.Helper()
	data, err := afero.ReadFile(fs, path)
	require.NoError(t, err)
	return data
}

func TestNewRotatingWriter(t *testing.T) {
	t.Run("creates nested directories", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		path := filepath.Join("/artifacts", "nested", FileName)

		rw, err := NewRotatingWriter(fs, path, DefaultRotationConfig())
		require.NoError(t, err)
		defer func() { _ = rw.Close() }()

		exists, err := afero.Exists(fs, path)
		require.NoError(t, err)
		assert.True(t, exists)
		assert.Equal(t, path, rw.FilePath())
	})

	t.Run("appends to existing file", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		path := "/artifacts/debug.log"
		require.NoError(t, afero.WriteFile(fs, path, []byte("initial\n"), 0o644))

		rw, err := NewRotatingWriter(fs, path, DefaultRotationConfig())
		require.NoError(t, err)
		assert.Equal(t, int64(len("initial\n")), rw.CurrentSize())

		_, err = rw.Write([]byte("appended\n"))
		require.NoError(t, err)
		require.NoError(t, rw.Close())

		assert.Equal(t, "initial\nappended\n", string(readAll(t, fs, path)))
	})

	t.Run("fails on read-only filesystem", func(t *testing.T) {
		_, err := NewRotatingWriter(afero.NewReadOnlyFs(afero.NewMemMapFs()), "/artifacts/debug.log", DefaultRotationConfig())
		assert.Error(t, err)
	})
}

func TestRotatingWriterWrite(t *testing.T) {
	fs := afero.NewMemMapFs()
	rw, err := NewRotatingWriter(fs, "/a/debug.log", DefaultRotationConfig())
	require.NoError(t, err)

	data := []byte("test message\n")
	n, err := rw.Write(data)
	require.NoError(t, err)
	assert.Equal(t, len(data), n)
	assert.Equal(t, int64(len(data)), rw.CurrentSize())
	require.NoError(t, rw.Sync())
	require.NoError(t, rw.Close())

	assert.Equal(t, data, readAll(t, fs, "/a/debug.log"))

	_, err = rw.Write(data)
	assert.Error(t, err, "write after close should fail")
	assert.NoError(t, rw.Close(), "second close is a no-op")
	assert.NoError(t, rw.Sync(), "sync after close is a no-op")
}

func TestRotatingWriterRotation(t *testing.T) {
	t.Run("shifts backups and drops the oldest", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		path := "/a/debug.log"
		rw, err := NewRotatingWriter(fs, path, RotationConfig{MaxSizeMB: 1, MaxBackups: 2})
		require.NoError(t, err)

		for _, b := range []byte("abcd") {
			_, err := rw.Write(chunk(b))
			require.NoError(t, err)
		}
		require.NoError(t, rw.Close())

		assert.Equal(t, chunk('d'), readAll(t, fs, path))
		assert.Equal(t, chunk('c'), readAll(t, fs, path+".1"))
		assert.Equal(t, chunk('b'), readAll(t, fs, path+".2"))
		exists, _ := afero.Exists(fs, path+".3")
		assert.False(t, exists)
	})

	t.Run("no backups truncates in place", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		path := "/a/debug.log"
		rw, err := NewRotatingWriter(fs, path, RotationConfig{MaxSizeMB: 1})
		require.NoError(t, err)

		_, err = rw.Write(chunk('a'))
		require.NoError(t, err)
		_, err = rw.Write(chunk('b'))
		require.NoError(t, err)
		require.NoError(t, rw.Close())

		assert.Equal(t, chunk('b'), readAll(t, fs, path))
		exists, _ := afero.Exists(fs, path+".1")
		assert.False(t, exists)
	})

	t.Run("zero size disables rotation", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		path := "/a/debug.log"
		rw, err := NewRotatingWriter(fs, path, RotationConfig{MaxBackups: 3})
		require.NoError(t, err)

		for _, b := range []byte("abc") {
			_, err := rw.Write(chunk(b))
			require.NoError(t, err)
		}
		require.NoError(t, rw.Close())

		assert.Len(t, readAll(t, fs, path), 3*chunkSize)
	})

	t.Run("oversized first write is not rotated away", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		path := "/a/debug.log"
		rw, err := NewRotatingWriter(fs, path, RotationConfig{MaxSizeMB: 1, MaxBackups: 1})
		require.NoError(t, err)

		big := bytes.Repeat([]byte{'x'}, 2*1024*1024)
		_, err = rw.Write(big)
		require.NoError(t, err)
		require.NoError(t, rw.Close())

		assert.Equal(t, big, readAll(t, fs, path))
	})
}

func TestRotatingWriterCompression(t *testing.T) {
	fs := afero.NewMemMapFs()
	path := "/a/debug.log"
	rw, err := NewRotatingWriter(fs, path, RotationConfig{MaxSizeMB: 1, MaxBackups: 2, Compress: true})
	require.NoError(t, err)

	for _, b := range []byte("abc") {
		_, err := rw.Write(chunk(b))
		require.NoError(t, err)
	}
	require.NoError(t, rw.Close())

	for i, want := range map[string]byte{".1": 'b', ".2": 'a'} {
		plain, _ := afero.Exists(fs, path+i)
		assert.False(t, plain, "uncompressed %s should be removed", i)

		f, err := fs.Open(path + i + ".gz")
		require.NoError(t, err)
		zr, err := gzip.NewReader(f)
		require.NoError(t, err)
		data, err := io.ReadAll(zr)
		require.NoError(t, err)
		_ = f.Close()

		assert.Equal(t, chunk(want), data, "backup %s", i)
	}
}

func TestRotatingWriterConcurrency(t *testing.T) {
	fs := afero.NewMemMapFs()
	rw, err := NewRotatingWriter(fs, "/a/debug.log", DefaultRotationConfig())
	require.NoError(t, err)

	line := []byte("concurrent line\n")
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_, _ = rw.Write(line)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(8*50*len(line)), rw.CurrentSize())
	require.NoError(t, rw.Close())
}

func TestDefaultRotationConfig(t *testing.T) {
	cfg := DefaultRotationConfig()
	assert.Equal(t, 10, cfg.MaxSizeMB)
	assert.Equal(t, 3, cfg.MaxBackups)
	assert.False(t, cfg.Compress)
}
