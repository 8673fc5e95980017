package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"thehub/internal/logger"
	"thehub/internal/mockapi"

	"github.com/spf13/cobra"
)

func (a *app) mockCmd() *cobra.Command {
	var (
		addr  string
		users []string
	)

	cmd := &cobra.Command{
		Use:   "mock",
		Short: "Serve an in-memory backend for local development",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			l := logger.New(logger.Options{Level: "info", Writer: []string{"console"}})
			mock := mockapi.New(mockapi.WithLogger(l))
			for _, raw := range users {
				u, err := parseUser(raw)
				if err != nil {
					return err
				}
				mock.AddUser(u)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, &http.Server{Addr: addr, Handler: mock.Handler(), ReadHeaderTimeout: 5 * time.Second}, l)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringSliceVar(&users, "user", nil, "seed user as email:password[:admin], repeatable")
	return cmd
}

func serve(ctx context.Context, srv *http.Server, l logger.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		l.Info("模拟后端已启动", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	l.Info("模拟后端正在关闭")
	return srv.Shutdown(shutdownCtx)
}

func parseUser(raw string) (mockapi.User, error) {
	parts := strings.Split(raw, ":")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return mockapi.User{}, fmt.Errorf("invalid --user %q, want email:password[:admin]", raw)
	}
	u := mockapi.User{
		Name:     strings.Split(parts[0], "@")[0],
		Email:    parts[0],
		Username: strings.Split(parts[0], "@")[0],
		Password: parts[1],
	}
	if len(parts) > 2 && parts[2] == "admin" {
		u.UserType = "admin"
	}
	return u, nil
}
