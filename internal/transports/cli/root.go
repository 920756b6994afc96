package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"gridadmin/internal/bridge"
	"gridadmin/internal/command"
	"gridadmin/internal/core"
	"gridadmin/internal/transports/common"
)

// Source — имя источника команд CLI для authz и аудита.
const Source = "cli"

var errCommandFailed = errors.New("command failed")

// Runtime — то, что нужно CLI от собранного приложения.
type Runtime interface {
	Service(source string) *common.Service
	Serve(ctx context.Context) error
	Close() error
}

// Factory строит Runtime по пути к конфигу. Журнал пишется в logOut,
// stdout команды остается только под JSON-ответ.
type Factory func(ctx context.Context, configPath string, logOut io.Writer) (Runtime, error)

type options struct {
	configPath string
	subject    string
	timeout    time.Duration
	factory    Factory
}

// New создает корневую CLI-команду.
func New(version string, factory Factory) *cobra.Command {
	opts := &options{factory: factory}
	root := &cobra.Command{
		Use:           "gridadmin",
		Short:         "Администрирование кластера gridadmin",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "путь к YAML-конфигу")
	root.PersistentFlags().StringVar(&opts.subject, "as", "operator", "subject для авторизации и аудита")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 10*time.Second, "таймаут команды")

	list := &cobra.Command{Use: "list", Short: "Списки объектов кластера"}
	list.AddCommand(newListDeployedCmd(opts), newListMembersCmd(opts), newListDurableCQsCmd(opts))

	closeCmd := &cobra.Command{Use: "close", Short: "Закрыть durable-клиента или CQ"}
	closeCmd.AddCommand(newCloseDurableClientCmd(opts), newCloseDurableCQCmd(opts))

	destroy := &cobra.Command{Use: "destroy", Short: "Удалить объект кластера"}
	destroy.AddCommand(newDestroyRegionCmd(opts))

	show := &cobra.Command{Use: "show", Short: "Показать состояние"}
	show.AddCommand(newQueueSizeCmd(opts))

	describe := &cobra.Command{Use: "describe", Short: "Подробности об объекте"}
	describe.AddCommand(newDescribeMemberCmd(opts))

	root.AddCommand(newVersionCmd(version), newExecCmd(opts), newServeCmd(opts), list, closeCmd, destroy, show, describe)
	return root
}

func newVersionCmd(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Показать версию",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\n", version)
		},
	}
}

func newServeCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Запустить транспорты и планировщик",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := opts.factory(cmd.Context(), opts.configPath, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer rt.Close()
			if err := rt.Serve(cmd.Context()); err != nil && cmd.Context().Err() == nil {
				return err
			}
			return nil
		},
	}
}

func newExecCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "exec <command>",
		Short: "Выполнить командную строку как есть",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			line := strings.Join(args, " ")
			return opts.run(cmd, func(ctx context.Context, svc *common.Service) (string, error) {
				return svc.Processor(opts.subject).ProcessCommand(ctx, line)
			})
		},
	}
	// опции после ключевого слова принадлежат командной строке, а не CLI
	cmd.Flags().SetInterspersed(false)
	return cmd
}

// filterFlags регистрирует --member и --group.
func filterFlags(cmd *cobra.Command) func() bridge.Filter {
	member := cmd.Flags().String(command.OptionMember, "", "имя или id участника")
	groups := cmd.Flags().StringSlice(command.OptionGroup, nil, "группы участников")
	return func() bridge.Filter {
		var f bridge.Filter
		if cmd.Flags().Changed(command.OptionMember) {
			m := *member
			f.Member = &m
		}
		f.Groups = append(f.Groups, *groups...)
		return f
	}
}

func newListDeployedCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{Use: "deployed", Short: "Развернутые jar-файлы"}
	filter := filterFlags(cmd)
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return opts.bridged(cmd, func(ctx context.Context, b *bridge.Bridge) (string, error) {
			return b.ListDeployed(ctx, filter())
		})
	}
	return cmd
}

func newListMembersCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{Use: "members", Short: "Участники кластера"}
	groups := cmd.Flags().StringSlice(command.OptionGroup, nil, "группы участников")
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		b := command.NewBuilder(command.ListMembers)
		if len(*groups) > 0 {
			b.AddValues(command.OptionGroup, *groups)
		}
		return opts.execute(cmd, b.Command())
	}
	return cmd
}

func newDescribeMemberCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{Use: "member", Short: "Состояние участника"}
	name := cmd.Flags().String(command.OptionName, "", "имя или id участника")
	_ = cmd.MarkFlagRequired(command.OptionName)
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return opts.execute(cmd, command.NewBuilder(command.DescribeMember).AddOption(command.OptionName, *name).Command())
	}
	return cmd
}

func newDestroyRegionCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{Use: "region", Short: "Удалить регион во всех выбранных участниках"}
	name := cmd.Flags().String(command.OptionName, "", "путь региона")
	_ = cmd.MarkFlagRequired(command.OptionName)
	filter := filterFlags(cmd)
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		path := *name
		if !strings.HasPrefix(path, "/") {
			path = "/" + path
		}
		return opts.bridged(cmd, func(ctx context.Context, b *bridge.Bridge) (string, error) {
			return b.DestroyRegion(ctx, path, filter())
		})
	}
	return cmd
}

// durableFlags регистрирует идентификаторы durable-клиента и фильтр.
func durableFlags(cmd *cobra.Command, requireCQ bool) func() bridge.Request {
	clientID := cmd.Flags().String(command.OptionDurableClientID, "", "id durable-клиента")
	cqName := cmd.Flags().String(command.OptionDurableCQName, "", "имя CQ")
	_ = cmd.MarkFlagRequired(command.OptionDurableClientID)
	if requireCQ {
		_ = cmd.MarkFlagRequired(command.OptionDurableCQName)
	}
	filter := filterFlags(cmd)
	return func() bridge.Request {
		return bridge.Request{ClientID: *clientID, CQName: *cqName, Filter: filter()}
	}
}

func newListDurableCQsCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{Use: "durable-cqs", Short: "CQ durable-клиента"}
	req := durableFlags(cmd, false)
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return opts.bridged(cmd, func(ctx context.Context, b *bridge.Bridge) (string, error) {
			return b.ListDurableCQs(ctx, req())
		})
	}
	return cmd
}

func newQueueSizeCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{Use: "subscription-queue-size", Short: "Число событий в очередях CQ"}
	req := durableFlags(cmd, false)
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return opts.bridged(cmd, func(ctx context.Context, b *bridge.Bridge) (string, error) {
			return b.CountDurableCQEvents(ctx, req())
		})
	}
	return cmd
}

func newCloseDurableClientCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{Use: "durable-client", Short: "Закрыть durable-клиента"}
	req := durableFlags(cmd, false)
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return opts.bridged(cmd, func(ctx context.Context, b *bridge.Bridge) (string, error) {
			return b.CloseDurableClient(ctx, req())
		})
	}
	return cmd
}

func newCloseDurableCQCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{Use: "durable-cq", Short: "Закрыть CQ durable-клиента"}
	req := durableFlags(cmd, true)
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return opts.bridged(cmd, func(ctx context.Context, b *bridge.Bridge) (string, error) {
			return b.CloseDurableCQ(ctx, req())
		})
	}
	return cmd
}

func (o *options) bridged(cmd *cobra.Command, call func(ctx context.Context, b *bridge.Bridge) (string, error)) error {
	return o.run(cmd, func(ctx context.Context, svc *common.Service) (string, error) {
		return call(ctx, bridge.New(svc.Processor(o.subject)))
	})
}

func (o *options) execute(cmd *cobra.Command, c command.Command) error {
	return o.run(cmd, func(ctx context.Context, svc *common.Service) (string, error) {
		resp, err := svc.Execute(ctx, o.subject, c)
		out, renderErr := core.Render(resp)
		if renderErr != nil {
			return "", renderErr
		}
		return out, err
	})
}

// run строит Runtime, выполняет команду и печатает JSON-ответ с отступами.
func (o *options) run(cmd *cobra.Command, call func(ctx context.Context, svc *common.Service) (string, error)) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), o.timeout)
	defer cancel()

	rt, err := o.factory(ctx, o.configPath, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer rt.Close()

	out, err := call(ctx, rt.Service(Source))
	if out == "" {
		return err
	}
	if printErr := printIndented(cmd.OutOrStdout(), out); printErr != nil {
		return printErr
	}
	if err != nil {
		return err
	}
	var resp core.Response
	if json.Unmarshal([]byte(out), &resp) == nil && resp.Status == core.StatusError {
		return fmt.Errorf("%w: %s", errCommandFailed, resp.ErrorCode)
	}
	return nil
}

func printIndented(w io.Writer, raw string) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, []byte(raw), "", "  "); err != nil {
		_, werr := fmt.Fprintln(w, raw)
		return werr
	}
	buf.WriteByte('\n')
	_, err := buf.WriteTo(w)
	return err
}
