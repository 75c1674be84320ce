package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"

	"OlxWatcher/internal/category"
	"OlxWatcher/internal/config"
	"OlxWatcher/internal/export"
	"OlxWatcher/internal/infrastructure/storage"
)

// ErrUsage is returned for unknown commands or wrong arguments.
var ErrUsage = errors.New(`usage: olxwatch [run | once | export [path] | category add [name uid url] | category remove name | category list]`)

const defaultExportPath = "data_export.zip"

// Command names.
const (
	CmdRun            = "run"
	CmdOnce           = "once"
	CmdExport         = "export"
	CmdCategoryAdd    = "category-add"
	CmdCategoryRemove = "category-remove"
	CmdCategoryList   = "category-list"
)

// Command is a parsed command line.
type Command struct {
	Name string
	Args []string
}

// ParseCommand maps os.Args[1:] to a command; no arguments means run.
func ParseCommand(args []string) (Command, error) {
	if len(args) == 0 {
		return Command{Name: CmdRun}, nil
	}

	switch args[0] {
	case CmdRun, CmdOnce:
		if len(args) != 1 {
			return Command{}, ErrUsage
		}
		return Command{Name: args[0]}, nil
	case CmdExport:
		switch len(args) {
		case 1:
			return Command{Name: CmdExport, Args: []string{defaultExportPath}}, nil
		case 2:
			return Command{Name: CmdExport, Args: args[1:]}, nil
		}
	case "category":
		if len(args) < 2 {
			return Command{}, ErrUsage
		}
		rest := args[2:]
		switch args[1] {
		case "add":
			if len(rest) == 0 || len(rest) == 3 {
				return Command{Name: CmdCategoryAdd, Args: rest}, nil
			}
		case "remove":
			if len(rest) == 1 {
				return Command{Name: CmdCategoryRemove, Args: rest}, nil
			}
		case "list":
			if len(rest) == 0 {
				return Command{Name: CmdCategoryList}, nil
			}
		}
	}
	return Command{}, ErrUsage
}

// Console carries the operator streams for interactive commands.
type Console struct {
	In  io.Reader
	Out io.Writer
}

// Execute runs cmd. Only run and once build the delivery stack.
func Execute(ctx context.Context, cmd Command, cfg config.Config, logger *slog.Logger, console Console) error {
	switch cmd.Name {
	case CmdRun, CmdOnce:
		application, err := New(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer application.Close()
		if cmd.Name == CmdOnce {
			return application.RunOnce(ctx)
		}
		return application.Run(ctx)
	case CmdExport:
		return runExport(ctx, cfg, cmd.Args[0], logger, console.Out)
	case CmdCategoryAdd, CmdCategoryRemove, CmdCategoryList:
		links, err := storage.OpenLinksStore(cfg.Storage.DataDir, logger.With("component", "storage.links"))
		if err != nil {
			return fmt.Errorf("open links: %w", err)
		}
		return runCategory(ctx, cmd, category.NewService(links, cfg.Site.Domain), console)
	default:
		return ErrUsage
	}
}

func runCategory(ctx context.Context, cmd Command, svc *category.Service, console Console) error {
	switch cmd.Name {
	case CmdCategoryAdd:
		if len(cmd.Args) == 0 {
			return AddInteractively(ctx, category.NewSession(svc), console)
		}
		entry, err := svc.Add(ctx, cmd.Args[0], cmd.Args[1], cmd.Args[2])
		if err != nil {
			return err
		}
		fmt.Fprintf(console.Out, msgAdded+"\n", entry.Name, entry.UID)
		return nil
	case CmdCategoryRemove:
		if _, err := svc.Remove(ctx, cmd.Args[0]); err != nil {
			return err
		}
		fmt.Fprintf(console.Out, "🗑 Категория %q удалена\n", cmd.Args[0])
		return nil
	default:
		entries, err := svc.List(ctx)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(console.Out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "NAME\tUID\tURL")
		for _, e := range entries {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", e.Name, e.UID, e.URL)
		}
		return tw.Flush()
	}
}

const (
	msgName      = "📝 Введите название категории:"
	msgUID       = "🔢 Введите UID (латиница, цифры, _-):\nПример: phones_oskemen"
	msgBadUID    = "❌ Недопустимый UID!\nПопробуйте снова или /cancel"
	msgURL       = "🌐 Введите URL категории OLX:\nПример: https://www.olx.kz/elektronika/"
	msgUIDTaken  = "⚠️ Этот UID уже используется!"
	msgBadURL    = "❌ Некорректный URL! Пример: https://www.olx.kz/elektronika/"
	msgAdded     = "✅ Категория добавлена!\nНазвание: %s\nUID: %s"
	msgCancelled = "🚫 Операция отменена"
	cancelInput  = "/cancel"
)

// AddInteractively walks the operator through the add dialogue line by line.
func AddInteractively(ctx context.Context, session *category.Session, console Console) error {
	if err := session.Begin(); err != nil {
		return err
	}
	fmt.Fprintln(console.Out, msgName)

	lines := bufio.NewScanner(console.In)
	for lines.Scan() {
		text := strings.TrimSpace(lines.Text())
		if strings.EqualFold(text, cancelInput) {
			session.Cancel()
			fmt.Fprintln(console.Out, msgCancelled)
			return nil
		}

		switch session.State() {
		case category.AwaitingName:
			if err := session.SubmitName(text); err != nil {
				fmt.Fprintln(console.Out, msgName)
				continue
			}
			fmt.Fprintln(console.Out, msgUID)
		case category.AwaitingUID:
			if err := session.SubmitUID(text); err != nil {
				fmt.Fprintln(console.Out, msgBadUID)
				continue
			}
			fmt.Fprintln(console.Out, msgURL)
		case category.AwaitingURL:
			entry, err := session.SubmitURL(ctx, text)
			switch {
			case errors.Is(err, category.ErrUIDTaken):
				fmt.Fprintln(console.Out, msgUIDTaken)
			case errors.Is(err, category.ErrForeignURL):
				fmt.Fprintln(console.Out, msgBadURL)
			case err != nil:
				return err
			default:
				fmt.Fprintf(console.Out, msgAdded+"\n", entry.Name, entry.UID)
				return nil
			}
		}
	}
	if err := lines.Err(); err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	session.Cancel()
	return errors.New("input closed before the category was added")
}

func runExport(ctx context.Context, cfg config.Config, path string, logger *slog.Logger, out io.Writer) error {
	names, err := export.WriteFile(cfg.Storage.DataDir, path)
	if errors.Is(err, export.ErrNothingToExport) {
		fmt.Fprintln(out, "❌ Нет данных для экспорта")
		return err
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "📦 %s: %s\n", path, strings.Join(names, ", "))

	if cfg.Export.S3Bucket == "" {
		return nil
	}
	uploader, err := export.NewS3Uploader(ctx, cfg.Export.S3Region, cfg.Export.S3Bucket, cfg.Export.S3Prefix)
	if err != nil {
		return err
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer f.Close()

	key, err := uploader.Upload(ctx, f)
	if err != nil {
		return err
	}
	logger.Info("export uploaded", slog.String("bucket", cfg.Export.S3Bucket), slog.String("key", key))
	fmt.Fprintf(out, "☁️ s3://%s/%s\n", cfg.Export.S3Bucket, key)
	return nil
}
