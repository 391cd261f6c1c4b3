package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/phrazzld/taskflow/internal/redact"
)

const (
	loginTimeout         = 5 * time.Minute
	callbackShutdownWait = 5 * time.Second
)

// login runs the authorization-code flow through a local callback listener.
func (c *cli) login(ctx context.Context, args []string) int {
	if ok, err := c.session.Init(ctx); err == nil && ok {
		user, _ := c.session.User()
		fmt.Fprintf(c.out, "already signed in as %s\n", user.Username)
		return exitOK
	}

	listener, err := net.Listen("tcp", c.callbackAddr)
	if err != nil {
		fmt.Fprintf(c.errOut, "error: could not listen for the login callback on %s: %v\n", c.callbackAddr, err)
		return exitError
	}

	authURL, err := c.session.Login(ctx)
	if err != nil {
		_ = listener.Close()
		fmt.Fprintf(c.errOut, "error: %v\n", err)
		return exitError
	}

	done := make(chan error, 1)
	report := func(err error) {
		select {
		case done <- err:
		default:
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/callback", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if msg := q.Get("error"); msg != "" {
			http.Error(w, "Sign-in was cancelled.", http.StatusBadRequest)
			report(fmt.Errorf("identity provider returned %s", msg))
			return
		}

		err := c.session.HandleCallback(r.Context(), q.Get("state"), q.Get("code"))
		if err != nil {
			http.Error(w, "Sign-in failed. Return to the terminal for details.", http.StatusBadRequest)
		} else {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			fmt.Fprint(w, "<html><body><h1>Signed in to TaskFlow</h1><p>You may close this window.</p></body></html>")
		}
		report(err)
	})

	server := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			report(err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), callbackShutdownWait)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	fmt.Fprintln(c.errOut, "Open this URL in your browser to sign in:")
	fmt.Fprintln(c.errOut, authURL)

	select {
	case err = <-done:
	case <-time.After(loginTimeout):
		err = errors.New("timed out waiting for the login callback")
	case <-ctx.Done():
		err = ctx.Err()
	}
	if err != nil {
		c.logger.Warn("login failed", redact.ErrorAttr(err))
		fmt.Fprintf(c.errOut, "error: %v\n", err)
		return exitError
	}

	user, _ := c.session.User()
	c.logger.Debug("login completed", slog.String("username", user.Username))
	fmt.Fprintf(c.out, "signed in as %s\n", user.Username)
	return exitOK
}
