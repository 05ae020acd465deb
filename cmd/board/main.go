package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"taskPrioritizer/internal/board"
	"taskPrioritizer/internal/classifier"
	"taskPrioritizer/internal/client"
	"taskPrioritizer/internal/logger"
	"taskPrioritizer/internal/models/task"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"github.com/spf13/pflag"
)

type options struct {
	server   string
	email    string
	password string
	register bool
	guest    bool
	dir      string
	add      string
	preview  string
	start    string
	complete string
	remove   string
	watch    bool
	verbose  bool
}

func parseFlags() options {
	home, _ := os.UserHomeDir()

	var o options
	pflag.StringVar(&o.server, "server", "http://localhost:5000", "адрес сервера")
	pflag.StringVar(&o.email, "email", "", "email пользователя")
	pflag.StringVar(&o.password, "password", "", "пароль")
	pflag.BoolVar(&o.register, "register", false, "зарегистрироваться перед входом")
	pflag.BoolVar(&o.guest, "guest", false, "гостевой режим: задачи хранятся локально")
	pflag.StringVar(&o.dir, "dir", filepath.Join(home, ".task-prioritizer"), "каталог гостевого хранилища")
	pflag.StringVar(&o.add, "add", "", `создать задачу: "заголовок|описание[|начало|конец]"`)
	pflag.StringVar(&o.preview, "preview", "", `показать рекомендацию для "заголовок|описание[|начало|конец]"`)
	pflag.StringVar(&o.start, "start", "", "взять задачу в работу по id")
	pflag.StringVar(&o.complete, "complete", "", "завершить задачу по id")
	pflag.StringVar(&o.remove, "delete", "", "удалить задачу по id")
	pflag.BoolVarP(&o.watch, "watch", "w", false, "следить за изменениями")
	pflag.BoolVarP(&o.verbose, "verbose", "v", false, "подробный лог")
	pflag.Parse()
	return o
}

func main() {
	o := parseFlags()
	if o.verbose {
		logger.Init(true, nil)
		defer logger.Sync()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, o); err != nil {
		fmt.Fprintln(os.Stderr, "ошибка:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, o options) error {
	var (
		backend  client.Backend
		previews client.PreviewClassifier
		api      *client.API
	)

	if o.guest {
		kv, err := client.NewKV(afero.NewOsFs(), o.dir)
		if err != nil {
			return err
		}
		rules := classifier.NewRules(nil)
		guest, err := client.NewGuestBackend(kv, rules)
		if err != nil {
			return err
		}
		backend = guest
		previews = client.RulesPreview{Rules: rules}
	} else {
		if o.email == "" || o.password == "" {
			return errors.New("нужны --email и --password или --guest")
		}
		api = client.NewAPI(o.server, 15*time.Second)
		if o.register {
			if err := api.Register(ctx, o.email, o.password); err != nil {
				return fmt.Errorf("регистрация: %w", err)
			}
		}
		if _, err := api.Login(ctx, o.email, o.password); err != nil {
			return fmt.Errorf("вход: %w", err)
		}
		backend = api
		previews = api
	}

	r := client.NewReconciler(backend, client.Options{})
	defer r.Close()

	if err := r.Refresh(ctx); err != nil {
		return err
	}

	if o.preview != "" {
		draft, err := parseDraft(o.preview)
		if err != nil {
			return err
		}
		if err := preview(ctx, previews, draft); err != nil {
			return err
		}
	}

	if err := applyActions(ctx, r, o); err != nil {
		return err
	}

	printBoard(r.Board(time.Now()))
	if !o.watch {
		return nil
	}

	r.OnChange(func([]task.Task) { printBoard(r.Board(time.Now())) })
	if api == nil {
		<-ctx.Done()
		return nil
	}
	return client.NewSubscriber(api.BaseURL(), api.Token, r).Run(ctx)
}

func applyActions(ctx context.Context, r *client.Reconciler, o options) error {
	if o.add != "" {
		draft, err := parseDraft(o.add)
		if err != nil {
			return err
		}
		created, err := r.Create(ctx, draft)
		if err != nil {
			return err
		}
		fmt.Printf("создана %s [%s/%s]\n", created.ID, created.Priority, created.Status)
	}

	quick := []struct {
		raw  string
		call func(context.Context, uuid.UUID) (task.Task, error)
	}{
		{o.start, r.Start},
		{o.complete, r.Complete},
	}
	for _, q := range quick {
		if q.raw == "" {
			continue
		}
		id, err := uuid.Parse(q.raw)
		if err != nil {
			return fmt.Errorf("неверный id %q: %w", q.raw, err)
		}
		if _, err := q.call(ctx, id); err != nil {
			return err
		}
	}

	if o.remove != "" {
		id, err := uuid.Parse(o.remove)
		if err != nil {
			return fmt.Errorf("неверный id %q: %w", o.remove, err)
		}
		if err := r.Delete(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// parseDraft разбирает "заголовок|описание[|начало|конец]", даты в формате YYYY-MM-DD
func parseDraft(raw string) (task.Draft, error) {
	parts := strings.Split(raw, "|")
	draft := task.Draft{Title: strings.TrimSpace(parts[0])}
	if len(parts) > 1 {
		draft.Description = strings.TrimSpace(parts[1])
	}
	dates := []*task.Date{&draft.StartDate, &draft.EndDate}
	for i, dst := range dates {
		if len(parts) <= i+2 {
			break
		}
		d, err := task.ParseDate(strings.TrimSpace(parts[i+2]))
		if err != nil {
			return task.Draft{}, err
		}
		*dst = d
	}
	return draft, nil
}

func preview(ctx context.Context, c client.PreviewClassifier, draft task.Draft) error {
	p := client.NewPreviewer(c, 0)
	defer p.Stop()

	results := make(chan classifier.Result, 1)
	p.Request(draft, func(r classifier.Result) { results <- r })

	select {
	case r := <-results:
		fmt.Printf("рекомендация: приоритет %s, статус %s\n", r.Priority, r.Status)
		return nil
	case <-time.After(15 * time.Second):
		return errors.New("рекомендация не получена")
	case <-ctx.Done():
		return ctx.Err()
	}
}

func printBoard(b board.Board) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for _, col := range b.Columns {
		fmt.Fprintf(w, "== %s (%d)\n", col.Status, len(col.Cards))
		for _, card := range col.Cards {
			t := card.Task
			fmt.Fprintf(w, "  %s\t%s\t%s\t%3.0f%%\t%s → %s\n",
				t.ID, t.Title, t.Priority, card.Progress, t.StartDate, t.EndDate)
		}
	}
	w.Flush()
}
