package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"taskbot/internal/config"
	"taskbot/internal/manager"
	"taskbot/internal/models"
	"taskbot/internal/parser"
	"taskbot/internal/setup"
)

func main() {
	userFlag := &cli.Int64Flag{
		Name:    "user",
		Aliases: []string{"u"},
		EnvVars: []string{"TASKBOT_CLI_USER"},
		Usage:   "Telegram user id whose list to work on",
	}

	app := &cli.App{
		Name:  "todo",
		Usage: "Work with task lists from the terminal",
		Flags: []cli.Flag{userFlag},
		Commands: []*cli.Command{
			{
				Name:      "parse",
				Usage:     "Show the tasks a message would produce, without saving them",
				ArgsUsage: "<text>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "now", Usage: "Reference time, RFC3339"},
				},
				Action: parse,
			},
			{
				Name:      "add",
				Usage:     "Add tasks from natural language text",
				ArgsUsage: "<text>",
				Action: withManager(func(c *cli.Context, tm *manager.TaskManager) error {
					added, err := tm.AddFromText(c.Context, c.Int64("user"), strings.Join(c.Args().Slice(), " "))
					if err != nil {
						return err
					}
					if len(added) == 0 {
						return errors.New("nothing to add")
					}
					fmt.Println(manager.FormatAdded(added, tm.Location()))
					return nil
				}),
			},
			{
				Name:  "list",
				Usage: "List tasks",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "filter", Value: "all", Usage: "all|next|today"},
				},
				Action: withManager(list),
			},
			{
				Name:      "done",
				Usage:     "Mark a task as done",
				ArgsUsage: "<id>",
				Action: withManager(func(c *cli.Context, tm *manager.TaskManager) error {
					task, err := tm.MarkDone(c.Context, c.Int64("user"), c.Args().First())
					if err != nil {
						return err
					}
					fmt.Println(manager.FormatDone(*task))
					return nil
				}),
			},
			{
				Name:      "snooze",
				Usage:     "Push a task back",
				ArgsUsage: "<id> [30m|2h]",
				Action: withManager(func(c *cli.Context, tm *manager.TaskManager) error {
					d := manager.DefaultSnooze
					if c.Args().Len() > 1 {
						d = manager.ParseSnoozeDuration(c.Args().Get(1))
					}
					task, err := tm.Snooze(c.Context, c.Int64("user"), c.Args().First(), d)
					if err != nil {
						return err
					}
					fmt.Println(manager.FormatSnoozed(*task, tm.Location()))
					return nil
				}),
			},
			{
				Name:  "export",
				Usage: "Write the task list as JSON or CSV",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "format", Value: "json", Usage: "json|csv"},
					&cli.StringFlag{Name: "out", Usage: "Output file, stdout when empty"},
				},
				Action: withManager(export),
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func withManager(fn func(c *cli.Context, tm *manager.TaskManager) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		conf, err := config.Parse()
		if err != nil {
			return err
		}

		app, err := setup.NewApp(c.Context, conf)
		if err != nil {
			return err
		}
		defer app.Close()

		return fn(c, app.Tasks)
	}
}

func parse(c *cli.Context) error {
	conf, err := config.Parse()
	if err != nil {
		return err
	}

	loc, err := conf.Schedule.Location()
	if err != nil {
		return err
	}

	now := time.Now().In(loc)
	if raw := c.String("now"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return errors.Wrap(err, "invalid --now")
		}
		now = t.In(loc)
	}

	tasks := parser.NewExtractor().Extract(strings.Join(c.Args().Slice(), " "), now)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(tasks)
}

func list(c *cli.Context, tm *manager.TaskManager) error {
	userID := c.Int64("user")

	var (
		tasks []models.Task
		empty string
		err   error
	)
	switch c.String("filter") {
	case "next":
		tasks, err = tm.Next(c.Context, userID, manager.NextLimit)
		empty = "No open tasks."
	case "today":
		tasks, err = tm.Today(c.Context, userID)
		empty = "Nothing due today."
	case "all":
		tasks, err = tm.List(c.Context, userID)
		empty = "No tasks."
	default:
		return errors.Errorf("unknown filter %q", c.String("filter"))
	}
	if err != nil {
		return err
	}

	fmt.Println(manager.FormatTaskList(tasks, tm.Location(), empty))
	return nil
}

func export(c *cli.Context, tm *manager.TaskManager) error {
	tasks, err := tm.List(c.Context, c.Int64("user"))
	if err != nil {
		return err
	}

	var w io.Writer = os.Stdout
	if out := c.String("out"); out != "" {
		f, err := os.Create(out)
		if err != nil {
			return errors.WithStack(err)
		}
		defer f.Close()
		w = f
	}

	switch c.String("format") {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return errors.WithStack(enc.Encode(tasks))
	case "csv":
		return writeCSV(w, tasks)
	default:
		return errors.Errorf("unsupported format %q", c.String("format"))
	}
}

func writeCSV(w io.Writer, tasks []models.Task) error {
	cw := csv.NewWriter(w)
	cw.Write([]string{"id", "title", "due", "tags", "priority", "status", "created_at"})

	for _, t := range tasks {
		due := ""
		if t.HasDue() {
			due = t.Due.Format(time.RFC3339)
		}
		cw.Write([]string{
			t.ID, t.Title, due, strings.Join(t.Tags, ";"),
			string(t.Priority), string(t.Status), t.CreatedAt.Format(time.RFC3339),
		})
	}

	cw.Flush()
	return errors.WithStack(cw.Error())
}
