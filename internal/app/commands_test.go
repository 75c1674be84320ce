package app

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"OlxWatcher/internal/category"
	"OlxWatcher/internal/config"
	"OlxWatcher/internal/export"
	"OlxWatcher/internal/infrastructure/storage"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	var cfg config.Config
	cfg.Storage.DataDir = t.TempDir()
	cfg.Site.Domain = "olx.kz"
	return cfg
}

func TestParseCommand(t *testing.T) {
	t.Parallel()

	cases := []struct {
		args []string
		want Command
	}{
		{nil, Command{Name: CmdRun}},
		{[]string{"once"}, Command{Name: CmdOnce}},
		{[]string{"export"}, Command{Name: CmdExport, Args: []string{"data_export.zip"}}},
		{[]string{"export", "/tmp/x.zip"}, Command{Name: CmdExport, Args: []string{"/tmp/x.zip"}}},
		{[]string{"category", "add"}, Command{Name: CmdCategoryAdd, Args: []string{}}},
		{[]string{"category", "add", "Телефоны", "phones", "https://www.olx.kz/phones/"}, Command{Name: CmdCategoryAdd, Args: []string{"Телефоны", "phones", "https://www.olx.kz/phones/"}}},
		{[]string{"category", "remove", "Телефоны"}, Command{Name: CmdCategoryRemove, Args: []string{"Телефоны"}}},
		{[]string{"category", "list"}, Command{Name: CmdCategoryList}},
	}
	for _, tc := range cases {
		got, err := ParseCommand(tc.args)
		require.NoError(t, err, "%v", tc.args)
		assert.Equal(t, tc.want, got, "%v", tc.args)
	}

	for _, bad := range [][]string{
		{"serve"},
		{"once", "extra"},
		{"export", "a", "b"},
		{"category"},
		{"category", "add", "only-name"},
		{"category", "remove"},
		{"category", "list", "x"},
	} {
		_, err := ParseCommand(bad)
		assert.ErrorIs(t, err, ErrUsage, "%v", bad)
	}
}

func TestAddInteractively(t *testing.T) {
	t.Parallel()

	links, err := storage.OpenLinksStore(t.TempDir(), nil)
	require.NoError(t, err)
	require.NoError(t, links.Put("Старое", "taken", "https://www.olx.kz/old/"))

	input := strings.Join([]string{
		"Ноутбуки Астана",
		"bad uid",
		"taken",
		"https://example.com/",
		"https://www.olx.kz/new/",
	}, "\n")
	var out bytes.Buffer
	session := category.NewSession(category.NewService(links, "olx.kz"))

	err = AddInteractively(context.Background(), session, Console{In: strings.NewReader(input), Out: &out})
	require.ErrorContains(t, err, "input closed")
	assert.Contains(t, out.String(), msgBadUID)
	assert.Contains(t, out.String(), msgBadURL)
	assert.Contains(t, out.String(), msgUIDTaken)
	assert.Equal(t, category.Idle, session.State())

	out.Reset()
	input = "Ноутбуки Астана\nastlaptop\nhttps://www.olx.kz/elektronika/noutbuki/\n"
	err = AddInteractively(context.Background(), session, Console{In: strings.NewReader(input), Out: &out})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "✅ Категория добавлена!\nНазвание: Ноутбуки Астана\nUID: astlaptop")

	names, err := links.Names()
	require.NoError(t, err)
	assert.Equal(t, "astlaptop", names["Ноутбуки Астана"])
}

func TestAddInteractivelyCancel(t *testing.T) {
	t.Parallel()

	links, err := storage.OpenLinksStore(t.TempDir(), nil)
	require.NoError(t, err)

	var out bytes.Buffer
	session := category.NewSession(category.NewService(links, "olx.kz"))
	err = AddInteractively(context.Background(), session, Console{In: strings.NewReader("Имя\n/CANCEL\n"), Out: &out})
	require.NoError(t, err)
	assert.Contains(t, out.String(), msgCancelled)
	assert.Equal(t, category.Idle, session.State())
}

func TestExecuteCategoryCommands(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	ctx := context.Background()
	var out bytes.Buffer
	console := Console{In: strings.NewReader(""), Out: &out}

	add := Command{Name: CmdCategoryAdd, Args: []string{"Телефоны", "phones", "https://www.olx.kz/phones/"}}
	require.NoError(t, Execute(ctx, add, cfg, discardLogger(), console))

	err := Execute(ctx, Command{Name: CmdCategoryAdd, Args: []string{"Другие", "phones", "https://www.olx.kz/x/"}}, cfg, discardLogger(), console)
	assert.ErrorIs(t, err, category.ErrUIDTaken)

	out.Reset()
	require.NoError(t, Execute(ctx, Command{Name: CmdCategoryList}, cfg, discardLogger(), console))
	assert.Contains(t, out.String(), "NAME")
	assert.Contains(t, out.String(), "phones")
	assert.Contains(t, out.String(), "https://www.olx.kz/phones/")

	require.NoError(t, Execute(ctx, Command{Name: CmdCategoryRemove, Args: []string{"Телефоны"}}, cfg, discardLogger(), console))
	err = Execute(ctx, Command{Name: CmdCategoryRemove, Args: []string{"Телефоны"}}, cfg, discardLogger(), console)
	assert.ErrorIs(t, err, category.ErrNotFound)
}

func TestExecuteExport(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	target := filepath.Join(t.TempDir(), "export.zip")
	var out bytes.Buffer
	console := Console{Out: &out}

	err := Execute(context.Background(), Command{Name: CmdExport, Args: []string{target}}, cfg, discardLogger(), console)
	require.ErrorIs(t, err, export.ErrNothingToExport)
	assert.Contains(t, out.String(), "Нет данных для экспорта")

	require.NoError(t, os.WriteFile(filepath.Join(cfg.Storage.DataDir, "sent.json"), []byte(`{"sentAdIds":[]}`), 0o644))
	out.Reset()
	require.NoError(t, Execute(context.Background(), Command{Name: CmdExport, Args: []string{target}}, cfg, discardLogger(), console))
	assert.Contains(t, out.String(), "sent.json")
	_, err = os.Stat(target)
	require.NoError(t, err)
}
