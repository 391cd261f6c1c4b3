package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/phrazzld/taskflow/internal/client"
	"github.com/phrazzld/taskflow/internal/domain"
	"github.com/phrazzld/taskflow/internal/session"
)

type cli struct {
	session      *session.Session
	tasks        *client.TaskClient
	callbackAddr string
	out          io.Writer
	errOut       io.Writer
	logger       *slog.Logger
}

type command struct {
	name     string
	synopsis string
	run      func(c *cli, ctx context.Context, args []string) int
}

var commandTable []command

func init() {
	commandTable = []command{
		{"login", "sign in through the identity provider", (*cli).login},
		{"logout", "sign out and forget the stored session", (*cli).logout},
		{"whoami", "show the signed-in user", (*cli).whoami},
		{"list", "list tasks [-completed true|false] [-priority p]", (*cli).list},
		{"add", "create a task [-d description] [-p priority] <title>", (*cli).add},
		{"edit", "change a task [-title t] [-d d] [-p p] [-completed b] <id>", (*cli).edit},
		{"done", "toggle a task's completion <id>", (*cli).toggle},
		{"rm", "delete a task <id>", (*cli).remove},
		{"clear", "delete every completed task", (*cli).clear},
	}
}

func (c *cli) dispatch(ctx context.Context, name string, args []string) int {
	for _, cmd := range commandTable {
		if cmd.name == name {
			return cmd.run(c, ctx, args)
		}
	}
	fmt.Fprintf(c.errOut, "error: unknown command: %s\n", name)
	return exitUsage
}

// requireSession restores the stored session and reports whether a user is
// signed in.
func (c *cli) requireSession(ctx context.Context) bool {
	ok, err := c.session.Init(ctx)
	if err != nil {
		fmt.Fprintf(c.errOut, "error: %v\n", err)
		return false
	}
	if !ok {
		fmt.Fprintln(c.errOut, "error: not signed in; run 'taskflow login'")
		return false
	}
	return true
}

func (c *cli) whoami(ctx context.Context, args []string) int {
	if !c.requireSession(ctx) {
		return exitNoLogin
	}
	user, _ := c.session.User()
	fmt.Fprintf(c.out, "%s <%s> (%s)\n", user.Username, user.Email, user.ID)
	return exitOK
}

func (c *cli) logout(ctx context.Context, args []string) int {
	if _, err := c.session.Init(ctx); err != nil {
		c.logger.Debug("ignoring unreadable session on logout", slog.String("error", err.Error()))
	}
	logoutURL := c.session.Logout("")
	fmt.Fprintln(c.out, "signed out")
	fmt.Fprintln(c.errOut, "To end the identity provider session as well, visit:")
	fmt.Fprintln(c.errOut, logoutURL)
	return exitOK
}

func (c *cli) list(ctx context.Context, args []string) int {
	fs := c.flags("list")
	completed := fs.String("completed", "", "only tasks with this completion state (true or false)")
	priority := fs.String("priority", "", "only tasks with this priority")
	if fs.Parse(args) != nil {
		return exitUsage
	}

	filter := client.Filter{Priority: domain.Priority(*priority)}
	if *completed != "" {
		done, err := strconv.ParseBool(*completed)
		if err != nil {
			fmt.Fprintf(c.errOut, "error: invalid -completed value %q\n", *completed)
			return exitUsage
		}
		filter.Completed = &done
	}

	if !c.requireSession(ctx) {
		return exitNoLogin
	}
	tasks, err := c.tasks.List(ctx, filter)
	if err != nil {
		return c.fail(err)
	}
	c.printTasks(tasks)
	return exitOK
}

func (c *cli) add(ctx context.Context, args []string) int {
	fs := c.flags("add")
	description := fs.String("d", "", "description")
	priority := fs.String("p", "", "priority (low, medium, high)")
	if fs.Parse(args) != nil {
		return exitUsage
	}
	title := strings.Join(fs.Args(), " ")

	if !c.requireSession(ctx) {
		return exitNoLogin
	}
	task, err := c.tasks.Create(ctx, client.TaskInput{
		Title:       title,
		Description: *description,
		Priority:    domain.Priority(*priority),
	})
	if err != nil {
		return c.fail(err)
	}
	fmt.Fprintln(c.out, task.ID)
	return exitOK
}

func (c *cli) edit(ctx context.Context, args []string) int {
	fs := c.flags("edit")
	title := fs.String("title", "", "new title")
	description := fs.String("d", "", "new description")
	priority := fs.String("p", "", "new priority")
	completed := fs.Bool("completed", false, "completion state")
	if fs.Parse(args) != nil {
		return exitUsage
	}
	id, ok := c.taskID(fs.Args())
	if !ok {
		return exitUsage
	}

	var changes client.TaskChanges
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "title":
			changes.Title = title
		case "d":
			changes.Description = description
		case "p":
			p := domain.Priority(*priority)
			changes.Priority = &p
		case "completed":
			changes.Completed = completed
		}
	})

	if !c.requireSession(ctx) {
		return exitNoLogin
	}
	task, err := c.tasks.Update(ctx, id, changes)
	if err != nil {
		return c.fail(err)
	}
	c.printTasks([]*domain.Task{task})
	return exitOK
}

func (c *cli) toggle(ctx context.Context, args []string) int {
	id, ok := c.taskID(args)
	if !ok {
		return exitUsage
	}
	if !c.requireSession(ctx) {
		return exitNoLogin
	}
	task, err := c.tasks.Toggle(ctx, id)
	if err != nil {
		return c.fail(err)
	}
	c.printTasks([]*domain.Task{task})
	return exitOK
}

func (c *cli) remove(ctx context.Context, args []string) int {
	id, ok := c.taskID(args)
	if !ok {
		return exitUsage
	}
	if !c.requireSession(ctx) {
		return exitNoLogin
	}
	task, err := c.tasks.Delete(ctx, id)
	if err != nil {
		return c.fail(err)
	}
	fmt.Fprintf(c.out, "deleted %q\n", task.Title)
	return exitOK
}

func (c *cli) clear(ctx context.Context, args []string) int {
	if !c.requireSession(ctx) {
		return exitNoLogin
	}
	count, err := c.tasks.DeleteCompleted(ctx)
	if err != nil {
		return c.fail(err)
	}
	fmt.Fprintf(c.out, "deleted %d completed task(s)\n", count)
	return exitOK
}

func (c *cli) flags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(c.errOut)
	return fs
}

func (c *cli) taskID(args []string) (uuid.UUID, bool) {
	if len(args) != 1 {
		fmt.Fprintln(c.errOut, "error: expected exactly one task id")
		return uuid.Nil, false
	}
	id, err := uuid.Parse(args[0])
	if err != nil {
		fmt.Fprintf(c.errOut, "error: invalid task id %q\n", args[0])
		return uuid.Nil, false
	}
	return id, true
}

// fail reports a task client error and picks the exit code for it.
func (c *cli) fail(err error) int {
	fmt.Fprintf(c.errOut, "error: %s\n", err)

	var apiErr *client.APIError
	switch {
	case errors.Is(err, client.ErrAuthenticationRequired):
		return exitNoLogin
	case errors.As(err, &apiErr) &&
		(apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden):
		return exitNoLogin
	default:
		return exitError
	}
}

func (c *cli) printTasks(tasks []*domain.Task) {
	if len(tasks) == 0 {
		fmt.Fprintln(c.out, "no tasks")
		return
	}
	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	for _, task := range tasks {
		mark := " "
		if task.Completed {
			mark = "x"
		}
		fmt.Fprintf(tw, "%s\t[%s]\t%s\t%s\n", task.ID, mark, task.Priority, task.Title)
	}
	_ = tw.Flush()
}
