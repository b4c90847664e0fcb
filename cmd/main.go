package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/afero"
	"github.com/terabiome/mkcloud/internal/api"
	"github.com/terabiome/mkcloud/internal/config"
	"github.com/terabiome/mkcloud/internal/handler"
	"github.com/terabiome/mkcloud/internal/infrastructure/host"
	"github.com/terabiome/mkcloud/internal/infrastructure/libvirt"
	"github.com/terabiome/mkcloud/internal/routes"
	"github.com/terabiome/mkcloud/internal/service"
	"github.com/terabiome/mkcloud/pkg/executor"
	pkglibvirt "github.com/terabiome/mkcloud/pkg/libvirt"
	"github.com/terabiome/mkcloud/pkg/templator"
	"github.com/terabiome/mkcloud/templates"
	"github.com/urfave/cli/v2"
)

func main() {
	os.Exit(run())
}

// run returns the process exit code so deferred cleanup, including the
// telemetry flush, happens before os.Exit.
func run() int {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st := &state{log: slog.Default(), cancel: cancel}
	defer st.shutdown()

	app := &cli.App{
		Name:                 "mkcloud",
		Usage:                "Provision libvirt domains and networks for cloud test beds",
		EnableBashCompletion: true,
		Flags:                globalFlags(),
		Before:               st.before,
		Commands: []*cli.Command{
			{
				Name:  "admin-config",
				Usage: "Render the admin node domain XML",
				Flags: adminConfigFlags(),
				Action: func(cliCtx *cli.Context) error {
					env, err := newApplication(ctx, st.cfg, st.log)
					if err != nil {
						return err
					}
					defer env.Close()

					xml, err := env.cloudService.RenderAdmin(ctx, adaptAdminConfig(cliCtx))
					if err != nil {
						return err
					}
					return env.emit(cliCtx.String("output"), xml)
				},
			},
			{
				Name:  "net-config",
				Usage: "Render the admin network XML",
				Flags: netConfigFlags(),
				Action: func(cliCtx *cli.Context) error {
					env, err := newApplication(ctx, st.cfg, st.log)
					if err != nil {
						return err
					}
					defer env.Close()

					xml, err := env.cloudService.RenderNetwork(ctx, adaptNetConfig(cliCtx))
					if err != nil {
						return err
					}
					return env.emit(cliCtx.String("output"), xml)
				},
			},
			{
				Name:  "compute-config",
				Usage: "Render a compute node domain XML",
				Flags: computeConfigFlags(),
				Action: func(cliCtx *cli.Context) error {
					env, err := newApplication(ctx, st.cfg, st.log)
					if err != nil {
						return err
					}
					defer env.Close()

					xml, err := env.cloudService.RenderCompute(ctx, adaptComputeConfig(cliCtx))
					if err != nil {
						return err
					}
					return env.emit(cliCtx.String("output"), xml)
				},
			},
			{
				Name:      "net-start",
				Usage:     "Define the network described by NETPATH unless it exists",
				ArgsUsage: "NETPATH",
				Action: func(cliCtx *cli.Context) error {
					path := cliCtx.Args().First()
					if path == "" {
						return errors.New("empty path to network XML")
					}

					env, err := newApplication(ctx, st.cfg, st.log)
					if err != nil {
						return err
					}
					defer env.Close()

					xml, err := env.cloudService.ReadDescriptor(path)
					if err != nil {
						return err
					}
					if _, err := env.cloudService.StartNetwork(ctx, api.DescriptorRequest{XML: xml}); err != nil {
						return fmt.Errorf("unable to start network from %s: %w", path, err)
					}
					return nil
				},
			},
			{
				Name:      "vm-start",
				Usage:     "Replace and boot the domain described by VMPATH",
				ArgsUsage: "VMPATH",
				Action: func(cliCtx *cli.Context) error {
					path := cliCtx.Args().First()
					if path == "" {
						return errors.New("empty path to domain XML")
					}

					env, err := newApplication(ctx, st.cfg, st.log)
					if err != nil {
						return err
					}
					defer env.Close()

					xml, err := env.cloudService.ReadDescriptor(path)
					if err != nil {
						return err
					}
					if _, err := env.cloudService.StartNode(ctx, api.DescriptorRequest{XML: xml}); err != nil {
						return fmt.Errorf("unable to start domain from %s: %w", path, err)
					}
					return nil
				},
			},
			{
				Name:  "cleanup",
				Usage: "Remove all domains, the admin network and transient files of a cloud",
				Flags: cleanupFlags(),
				Action: func(cliCtx *cli.Context) error {
					env, err := newApplication(ctx, st.cfg, st.log)
					if err != nil {
						return err
					}
					defer env.Close()

					return env.cloudService.TeardownCloud(ctx, adaptCleanup(cliCtx))
				},
			},
			{
				Name:      "cleanup-one-node",
				Usage:     "Stop and remove a single domain",
				ArgsUsage: "NODENAME",
				Action: func(cliCtx *cli.Context) error {
					env, err := newApplication(ctx, st.cfg, st.log)
					if err != nil {
						return err
					}
					defer env.Close()

					return env.cloudService.CleanupNode(ctx, api.NodeRequest{Name: cliCtx.Args().First()})
				},
			},
			{
				Name:  "system",
				Usage: "Show system information",
				Subcommands: []*cli.Command{
					{
						Name:  "host-info",
						Usage: "Display the detected architecture and the settings derived from it",
						Action: func(cliCtx *cli.Context) error {
							env, err := newApplication(ctx, st.cfg, st.log)
							if err != nil {
								return err
							}
							defer env.Close()

							info, err := service.DescribeHost(ctx, env.profile, executor.NewLocal(st.log))
							if err != nil {
								return err
							}
							return printHostInfo(cliCtx.App.Writer, info)
						},
					},
				},
			},
			{
				Name:  "server",
				Usage: "Start HTTP API server",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "address",
						Aliases: []string{"a"},
						Usage:   "Server address",
						Value:   ":8080",
					},
				},
				Action: func(cliCtx *cli.Context) error {
					return runServer(ctx, st.cfg, st.log, cliCtx.String("address"))
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		st.log.Error("application error", slog.String("error", err.Error()))
		return 1
	}
	return 0
}

// application holds what every command needs. The libvirt connection is
// only dialed by commands that talk to the hypervisor.
type application struct {
	cloudService *service.CloudService
	profile      *host.Profile
	connManager  *pkglibvirt.ConnectionManager
}

func newApplication(ctx context.Context, cfg *config.Config, log *slog.Logger) (*application, error) {
	var templateFS fs.FS = templates.FS
	if cfg.TemplateDir != "" {
		templateFS = os.DirFS(cfg.TemplateDir)
	}
	engine := templator.NewEngine(templateFS)

	log.Debug("loading templates")
	if err := libvirt.LoadTemplates(engine); err != nil {
		return nil, err
	}

	facts, err := host.SystemProber{}.Probe(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to inspect host: %w", err)
	}
	profile := host.NewProfile(facts, engine, cfg.FirmwareLoaderPath)
	log.Debug("host inspected",
		slog.String("arch", facts.Arch),
		slog.String("vendor", facts.VendorID),
		slog.String("class", profile.Class().String()),
	)

	manager := libvirt.NewManager(afero.NewOsFs(), libvirt.Dirs{
		Tmp:              cfg.TmpDir,
		QemuRun:          cfg.QemuRunDir,
		NetworkState:     cfg.NetworkStateDir,
		SysconfigNetwork: cfg.SysconfigNetworkDir,
	}, log)

	connManager := pkglibvirt.NewConnectionManager(cfg.LibvirtURI, log)

	return &application{
		cloudService: service.NewCloudService(libvirt.NewAssembler(engine, profile, log), manager, connManager, log),
		profile:      profile,
		connManager:  connManager,
	}, nil
}

func (a *application) Close() error {
	return a.connManager.Close()
}

// emit prints xml, or writes it to path when one is given.
func (a *application) emit(path, xml string) error {
	if path == "" {
		_, err := fmt.Print(xml)
		return err
	}
	return a.cloudService.WriteDescriptor(path, xml)
}

// runServer starts the HTTP API server
func runServer(ctx context.Context, cfg *config.Config, log *slog.Logger, address string) error {
	log.Info("initializing HTTP server", slog.String("address", address))

	env, err := newApplication(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to initialize cloud service: %w", err)
	}
	defer env.Close()

	cloudHandler := handler.NewCloud(env.cloudService, log)
	systemHandler := handler.NewSystem(env.profile, executor.NewLocal(log), log)

	router := routes.SetupMux(cloudHandler, systemHandler)

	server := &http.Server{
		Addr:         address,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		log.Info("HTTP server starting", slog.String("address", address))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	select {
	case err := <-serverErrChan:
		return err
	case <-ctx.Done():
		log.Info("shutting down HTTP server")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		log.Info("HTTP server stopped")
		return nil
	}
}
