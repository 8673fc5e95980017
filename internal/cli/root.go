package cli

import (
	"fmt"
	"io"
	"os"
	"sort"

	"thehub/internal/config"
	"thehub/internal/logger"
	"thehub/pkg/api"

	"github.com/spf13/cobra"
)

// Execute 运行命令行入口
func Execute() {
	if err := newRootCmd(nil).Execute(); err != nil {
		os.Exit(1)
	}
}

// serviceFactory 根据配置创建服务；stderr 用于会话过期提示
type serviceFactory func(cfg *config.Config, l logger.Logger, stderr io.Writer) (api.Service, error)

func defaultFactory(cfg *config.Config, l logger.Logger, stderr io.Writer) (api.Service, error) {
	return api.NewService(cfg, l, api.Options{
		Redirect: func(path, reason string) {
			fmt.Fprintf(stderr, "%s (sign in again with `storefront login`, entry point %s)\n", reason, path)
		},
	})
}

type app struct {
	cfgPath     string
	envPath     string
	showMetrics bool
	newService  serviceFactory
}

func newRootCmd(factory serviceFactory) *cobra.Command {
	if factory == nil {
		factory = defaultFactory
	}
	a := &app{newService: factory}

	cmd := &cobra.Command{
		Use:          "storefront",
		Short:        "Storefront client: sign in, browse products and manage the cart",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVarP(&a.cfgPath, "config", "c", "config.yaml", "YAML config file (optional)")
	cmd.PersistentFlags().StringVar(&a.envPath, "env", ".env", "dotenv file (optional)")
	cmd.PersistentFlags().BoolVar(&a.showMetrics, "metrics", false, "print request counters after the command")

	cmd.AddCommand(
		a.loginCmd(),
		a.signupCmd(),
		a.logoutCmd(),
		a.whoamiCmd(),
		a.cartCmd(),
		a.productsCmd(),
		a.mockCmd(),
	)
	return cmd
}

func (a *app) loadConfig() (*config.Config, logger.Logger, error) {
	cfg, err := config.Load(a.cfgPath, a.envPath)
	if err != nil {
		return nil, nil, err
	}
	l := logger.New(logger.Options{Level: cfg.Log.Level, Writer: cfg.Log.Writer, File: cfg.Log.File})
	return cfg, l, nil
}

// run 为子命令创建服务，执行完毕后关闭
func (a *app) run(fn func(cmd *cobra.Command, svc api.Service, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		cfg, l, err := a.loadConfig()
		if err != nil {
			return err
		}
		svc, err := a.newService(cfg, l, cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer func() {
			if cerr := svc.Close(); cerr != nil && err == nil {
				err = cerr
			}
		}()

		if err := fn(cmd, svc, args); err != nil {
			return err
		}
		if a.showMetrics {
			return printCounts(cmd.OutOrStdout(), svc)
		}
		return nil
	}
}

func printCounts(w io.Writer, svc api.Service) error {
	counts, err := svc.RequestCounts()
	if err != nil {
		return err
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fmt.Fprintln(w, "requests:")
	for _, k := range keys {
		fmt.Fprintf(w, "  %s  %.0f\n", k, counts[k])
	}
	return nil
}
