package export

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeState(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
}

func TestBuildZipsExistingStateFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeState(t, dir, map[string]string{
		"links.json": `{"phones":"https://www.olx.kz/phones/"}`,
		"sent.json":  `{"sentAdIds":["IDa"]}`,
		"other.json": `{}`,
	})

	var buf bytes.Buffer
	names, err := Build(dir, &buf)
	require.NoError(t, err)
	assert.Equal(t, []string{"links.json", "sent.json"}, names)

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	require.Len(t, zr.File, 2)

	rc, err := zr.File[1].Open()
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, `{"sentAdIds":["IDa"]}`, string(data))
}

func TestBuildWithoutStateFiles(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	_, err := Build(t.TempDir(), &buf)
	assert.ErrorIs(t, err, ErrNothingToExport)
	assert.Zero(t, buf.Len())
}

func TestWriteFileLeavesNothingWhenEmpty(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	target := filepath.Join(dir, "export.zip")

	_, err := WriteFile(dir, target)
	require.ErrorIs(t, err, ErrNothingToExport)
	_, statErr := os.Stat(target)
	assert.True(t, errors.Is(statErr, os.ErrNotExist))

	writeState(t, dir, map[string]string{"data.json": `{"Телефоны":"phones"}`})
	names, err := WriteFile(dir, target)
	require.NoError(t, err)
	assert.Equal(t, []string{"data.json"}, names)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2, "temp archive must be gone")
}

type fakePutter struct {
	in   *s3.PutObjectInput
	body []byte
	err  error
}

func (f *fakePutter) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.in = in
	if in.Body != nil {
		f.body, _ = io.ReadAll(in.Body)
	}
	return &s3.PutObjectOutput{}, f.err
}

func TestUploaderPutsArchive(t *testing.T) {
	t.Parallel()

	putter := &fakePutter{}
	u := NewUploader(putter, "backups", "/olx/")
	u.now = func() time.Time { return time.Date(2024, time.March, 5, 9, 30, 0, 0, time.UTC) }

	key, err := u.Upload(context.Background(), bytes.NewReader([]byte("zip")))
	require.NoError(t, err)
	assert.Equal(t, "olx/olxwatch-export-20240305-093000.zip", key)
	assert.Equal(t, "backups", aws.ToString(putter.in.Bucket))
	assert.Equal(t, key, aws.ToString(putter.in.Key))
	assert.Equal(t, "application/zip", aws.ToString(putter.in.ContentType))
	assert.Equal(t, []byte("zip"), putter.body)
}

func TestUploaderWrapsErrors(t *testing.T) {
	t.Parallel()

	boom := errors.New("access denied")
	u := NewUploader(&fakePutter{err: boom}, "backups", "")

	_, err := u.Upload(context.Background(), bytes.NewReader(nil))
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "olxwatch-export-20240305-093000.zip", u.Key(time.Date(2024, time.March, 5, 9, 30, 0, 0, time.UTC)))
}
